package scheduling

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Silviu2326/Dentaflow-sub002/pkg/database"
	"github.com/Silviu2326/Dentaflow-sub002/pkg/logger"
	"github.com/Silviu2326/Dentaflow-sub002/pkg/types"
)

func setupTestRepository(t *testing.T) (*Repository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	log := logger.New("debug")
	repo := &Repository{
		db:     database.Wrap(db, log),
		logger: log,
	}

	cleanup := func() {
		db.Close()
	}
	return repo, mock, cleanup
}

func appointmentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "patient_id", "professional_id", "site_id", "date", "start_time", "end_time",
		"duration_minutes", "status", "reason", "notes", "cancellation_reason", "arrival_time",
		"wait_minutes", "rescheduled_to", "created_at", "updated_at",
	})
}

func TestRepository_CreateAppointment(t *testing.T) {
	repo, mock, cleanup := setupTestRepository(t)
	defer cleanup()

	apt := &types.Appointment{
		ID:              "apt-1",
		PatientID:       "patient-123",
		ProfessionalID:  "prof-456",
		SiteID:          types.SiteCentro,
		Date:            "2026-09-01",
		StartTime:       "10:00",
		EndTime:         "10:30",
		DurationMinutes: 30,
		Status:          types.StatusScheduled,
		Reason:          "Annual cleaning",
	}

	mock.ExpectExec("INSERT INTO appointments").
		WithArgs(
			apt.ID, apt.PatientID, apt.ProfessionalID, apt.SiteID, apt.Date,
			apt.StartTime, apt.EndTime, apt.DurationMinutes, apt.Status,
			apt.Reason, apt.Notes,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.CreateAppointment(apt)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_CreateAppointment_UniqueSlotViolation(t *testing.T) {
	repo, mock, cleanup := setupTestRepository(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO appointments").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "uq_appointments_slot"})

	err := repo.CreateAppointment(&types.Appointment{ID: "apt-1"})
	require.Error(t, err)

	clinicErr, ok := err.(*types.ClinicError)
	require.True(t, ok)
	assert.Equal(t, types.ErrorTypeConflict, clinicErr.Type)
	assert.Equal(t, types.ErrCodeSlotUnavailable, clinicErr.Code)
}

func TestRepository_GetAppointmentByID(t *testing.T) {
	repo, mock, cleanup := setupTestRepository(t)
	defer cleanup()

	now := time.Now()
	rows := appointmentRows().AddRow(
		"apt-1", "patient-123", "prof-456", "centro", "2026-09-01", "10:00", "10:30",
		30, "scheduled", "Annual cleaning", "", nil, nil, nil, nil, now, now,
	)

	mock.ExpectQuery("FROM appointments").
		WithArgs("apt-1").
		WillReturnRows(rows)

	apt, err := repo.GetAppointmentByID("apt-1")
	require.NoError(t, err)

	assert.Equal(t, "apt-1", apt.ID)
	assert.Equal(t, types.SiteCentro, apt.SiteID)
	assert.Equal(t, "10:00", apt.StartTime)
	assert.Equal(t, types.StatusScheduled, apt.Status)
	assert.Nil(t, apt.WaitMinutes)
	assert.Empty(t, apt.RescheduledTo)
}

func TestRepository_GetAppointmentByID_NotFound(t *testing.T) {
	repo, mock, cleanup := setupTestRepository(t)
	defer cleanup()

	mock.ExpectQuery("FROM appointments").
		WithArgs("missing").
		WillReturnRows(appointmentRows())

	_, err := repo.GetAppointmentByID("missing")
	require.Error(t, err)

	clinicErr, ok := err.(*types.ClinicError)
	require.True(t, ok)
	assert.Equal(t, types.ErrorTypeNotFound, clinicErr.Type)
}

func TestRepository_CountConflicts(t *testing.T) {
	repo, mock, cleanup := setupTestRepository(t)
	defer cleanup()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\)").
		WithArgs("prof-456", "centro", "2026-09-01", "10:30", "10:00").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	count, err := repo.CountConflicts("2026-09-01", "10:00", "10:30", "prof-456", types.SiteCentro, "")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRepository_CountConflicts_ExcludesGivenAppointment(t *testing.T) {
	repo, mock, cleanup := setupTestRepository(t)
	defer cleanup()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\)").
		WithArgs("prof-456", "centro", "2026-09-01", "10:30", "10:00", "apt-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	count, err := repo.CountConflicts("2026-09-01", "10:00", "10:30", "prof-456", types.SiteCentro, "apt-1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestRepository_UpdateAppointment_NotFound(t *testing.T) {
	repo, mock, cleanup := setupTestRepository(t)
	defer cleanup()

	mock.ExpectExec("UPDATE appointments SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateAppointment("missing", map[string]interface{}{"status": "cancelled"})
	require.Error(t, err)

	clinicErr, ok := err.(*types.ClinicError)
	require.True(t, ok)
	assert.Equal(t, types.ErrorTypeNotFound, clinicErr.Type)
}

func TestRepository_GetDayAppointments(t *testing.T) {
	repo, mock, cleanup := setupTestRepository(t)
	defer cleanup()

	now := time.Now()
	rows := appointmentRows().
		AddRow("apt-1", "p1", "prof-456", "centro", "2026-09-01", "09:00", "09:30",
			30, "confirmed", "", "", nil, nil, nil, nil, now, now).
		AddRow("apt-2", "p2", "prof-456", "centro", "2026-09-01", "10:00", "10:30",
			30, "cancelled", "", "", "patient request", nil, nil, nil, now, now)

	mock.ExpectQuery("FROM appointments").
		WithArgs("2026-09-01", "centro", "prof-456").
		WillReturnRows(rows)

	appointments, err := repo.GetDayAppointments("2026-09-01", types.SiteCentro, "prof-456")
	require.NoError(t, err)

	// Day listing keeps cancelled visits visible.
	require.Len(t, appointments, 2)
	assert.Equal(t, types.StatusCancelled, appointments[1].Status)
	assert.Equal(t, "patient request", appointments[1].CancellationReason)
}

func TestRepository_GetBookedIntervals(t *testing.T) {
	repo, mock, cleanup := setupTestRepository(t)
	defer cleanup()

	now := time.Now()
	rows := appointmentRows().
		AddRow("apt-1", "p1", "prof-456", "centro", "2026-09-01", "09:00", "09:30",
			30, "scheduled", "", "", nil, nil, nil, nil, now, now)

	mock.ExpectQuery("FROM appointments").
		WithArgs("prof-456", "centro", "2026-09-01").
		WillReturnRows(rows)

	appointments, err := repo.GetBookedIntervals("2026-09-01", "prof-456", types.SiteCentro)
	require.NoError(t, err)
	require.Len(t, appointments, 1)
	assert.Equal(t, "09:00", appointments[0].StartTime)
}

func TestRepository_History(t *testing.T) {
	repo, mock, cleanup := setupTestRepository(t)
	defer cleanup()

	entry := &types.HistoryEntry{
		ID:            "hist-1",
		AppointmentID: "apt-1",
		At:            time.Now(),
		Description:   "Appointment created",
		Actor:         "user-1",
	}

	mock.ExpectExec("INSERT INTO appointment_history").
		WithArgs(entry.ID, entry.AppointmentID, entry.At, entry.Description, entry.Actor).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.AppendHistory(entry))

	rows := sqlmock.NewRows([]string{"id", "appointment_id", "at", "description", "actor"}).
		AddRow(entry.ID, entry.AppointmentID, entry.At, entry.Description, entry.Actor)

	mock.ExpectQuery("FROM appointment_history").
		WithArgs("apt-1").
		WillReturnRows(rows)

	history, err := repo.GetHistory("apt-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Appointment created", history[0].Description)
}
