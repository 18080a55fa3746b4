package scheduling

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/Silviu2326/Dentaflow-sub002/pkg/database"
	"github.com/Silviu2326/Dentaflow-sub002/pkg/interfaces"
	"github.com/Silviu2326/Dentaflow-sub002/pkg/logger"
	"github.com/Silviu2326/Dentaflow-sub002/pkg/types"
)

// Repository implements the SchedulingRepository interface
type Repository struct {
	db     *database.DB
	logger *logger.Logger
}

// NewRepository creates a new scheduling repository
func NewRepository(db *database.DB, log *logger.Logger) interfaces.SchedulingRepository {
	return &Repository{
		db:     db,
		logger: log,
	}
}

const appointmentColumns = `id, patient_id, professional_id, site_id, date::text, start_time, end_time,
		   duration_minutes, status, reason, notes, cancellation_reason, arrival_time,
		   wait_minutes, rescheduled_to, created_at, updated_at`

func scanAppointment(row interface{ Scan(...interface{}) error }) (*types.Appointment, error) {
	apt := &types.Appointment{}
	var cancellationReason, arrivalTime, rescheduledTo sql.NullString
	var waitMinutes sql.NullInt64

	err := row.Scan(
		&apt.ID,
		&apt.PatientID,
		&apt.ProfessionalID,
		&apt.SiteID,
		&apt.Date,
		&apt.StartTime,
		&apt.EndTime,
		&apt.DurationMinutes,
		&apt.Status,
		&apt.Reason,
		&apt.Notes,
		&cancellationReason,
		&arrivalTime,
		&waitMinutes,
		&rescheduledTo,
		&apt.CreatedAt,
		&apt.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	apt.CancellationReason = cancellationReason.String
	apt.ArrivalTime = arrivalTime.String
	apt.RescheduledTo = rescheduledTo.String
	if waitMinutes.Valid {
		w := int(waitMinutes.Int64)
		apt.WaitMinutes = &w
	}
	return apt, nil
}

// isSlotTaken reports whether err is a unique violation on the partial slot
// index, meaning a concurrent booking won the same slot.
func isSlotTaken(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == "23505" && pqErr.Constraint == "uq_appointments_slot"
}

// CreateAppointment inserts a new appointment row
func (r *Repository) CreateAppointment(apt *types.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, patient_id, professional_id, site_id, date, start_time, end_time,
			duration_minutes, status, reason, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.Exec(query,
		apt.ID,
		apt.PatientID,
		apt.ProfessionalID,
		apt.SiteID,
		apt.Date,
		apt.StartTime,
		apt.EndTime,
		apt.DurationMinutes,
		apt.Status,
		apt.Reason,
		apt.Notes,
	)

	if err != nil {
		if isSlotTaken(err) {
			return types.NewConflictError(types.ErrCodeSlotUnavailable,
				"the selected time slot is no longer available", nil)
		}
		r.logger.WithError(err).Error("Failed to create appointment")
		return fmt.Errorf("failed to create appointment: %w", err)
	}

	r.logger.WithFields(map[string]interface{}{
		"appointment_id":  apt.ID,
		"professional_id": apt.ProfessionalID,
		"site_id":         apt.SiteID,
		"date":            apt.Date,
		"start_time":      apt.StartTime,
	}).Info("Created appointment")
	return nil
}

// GetAppointmentByID retrieves an appointment by ID
func (r *Repository) GetAppointmentByID(id string) (*types.Appointment, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM appointments
		WHERE id = $1`, appointmentColumns)

	apt, err := scanAppointment(r.db.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, types.NewNotFoundError(types.ErrCodeNotFound,
				fmt.Sprintf("appointment not found: %s", id))
		}
		r.logger.WithError(err).WithField("appointment_id", id).Error("Failed to get appointment")
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}

	return apt, nil
}

// UpdateAppointment applies a partial column update to an appointment
func (r *Repository) UpdateAppointment(id string, updates map[string]interface{}) error {
	setParts := []string{}
	args := []interface{}{}
	argIndex := 1

	for field, value := range updates {
		setParts = append(setParts, fmt.Sprintf("%s = $%d", field, argIndex))
		args = append(args, value)
		argIndex++
	}

	if len(setParts) == 0 {
		return fmt.Errorf("no updates provided")
	}

	setParts = append(setParts, fmt.Sprintf("updated_at = $%d", argIndex))
	args = append(args, time.Now())
	argIndex++

	query := fmt.Sprintf("UPDATE appointments SET %s WHERE id = $%d", strings.Join(setParts, ", "), argIndex)
	args = append(args, id)

	result, err := r.db.Exec(query, args...)
	if err != nil {
		if isSlotTaken(err) {
			return types.NewConflictError(types.ErrCodeSlotUnavailable,
				"the selected time slot is no longer available", nil)
		}
		r.logger.WithError(err).WithField("appointment_id", id).Error("Failed to update appointment")
		return fmt.Errorf("failed to update appointment: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return types.NewNotFoundError(types.ErrCodeNotFound,
			fmt.Sprintf("appointment not found: %s", id))
	}

	r.logger.WithField("appointment_id", id).Info("Updated appointment")
	return nil
}

// GetAppointments retrieves appointments based on filters
func (r *Repository) GetAppointments(filters *types.AppointmentFilters) ([]*types.Appointment, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM appointments
		WHERE 1=1`, appointmentColumns)

	args := []interface{}{}
	argIndex := 1

	if filters.PatientID != "" {
		query += fmt.Sprintf(" AND patient_id = $%d", argIndex)
		args = append(args, filters.PatientID)
		argIndex++
	}

	if filters.ProfessionalID != "" {
		query += fmt.Sprintf(" AND professional_id = $%d", argIndex)
		args = append(args, filters.ProfessionalID)
		argIndex++
	}

	if filters.SiteID != "" {
		query += fmt.Sprintf(" AND site_id = $%d", argIndex)
		args = append(args, string(filters.SiteID))
		argIndex++
	}

	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, string(filters.Status))
		argIndex++
	}

	if filters.FromDate != "" {
		query += fmt.Sprintf(" AND date >= $%d", argIndex)
		args = append(args, filters.FromDate)
		argIndex++
	}

	if filters.ToDate != "" {
		query += fmt.Sprintf(" AND date <= $%d", argIndex)
		args = append(args, filters.ToDate)
		argIndex++
	}

	query += " ORDER BY date ASC, start_time ASC"

	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, filters.Limit)
		argIndex++
	}

	if filters.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, filters.Offset)
	}

	return r.queryAppointments(query, args...)
}

// GetDayAppointments retrieves every appointment for a professional's day at
// a site, all statuses included, so cancelled and no-show visits remain
// visible on the day view.
func (r *Repository) GetDayAppointments(date string, siteID types.ClinicSite, professionalID string) ([]*types.Appointment, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM appointments
		WHERE date = $1 AND site_id = $2`, appointmentColumns)

	args := []interface{}{date, string(siteID)}
	if professionalID != "" {
		query += " AND professional_id = $3"
		args = append(args, professionalID)
	}
	query += " ORDER BY start_time ASC"

	return r.queryAppointments(query, args...)
}

// CountConflicts counts slot-blocking appointments overlapping [start, end)
// for the professional's day at the site. HH:MM strings compare lexically in
// temporal order, so the overlap test runs directly in SQL.
func (r *Repository) CountConflicts(date, start, end, professionalID string, siteID types.ClinicSite, excludeID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM appointments
		WHERE professional_id = $1
		  AND site_id = $2
		  AND date = $3
		  AND status NOT IN ('cancelled', 'no_show', 'rescheduled')
		  AND start_time < $4
		  AND end_time > $5`

	args := []interface{}{professionalID, string(siteID), date, end, start}
	if excludeID != "" {
		query += " AND id != $6"
		args = append(args, excludeID)
	}

	var count int
	if err := r.db.QueryRow(query, args...).Scan(&count); err != nil {
		r.logger.WithError(err).Error("Failed to count conflicting appointments")
		return 0, fmt.Errorf("failed to count conflicting appointments: %w", err)
	}

	return count, nil
}

// GetBookedIntervals retrieves the slot-blocking appointments for a
// professional's day at a site, ascending by start time.
func (r *Repository) GetBookedIntervals(date, professionalID string, siteID types.ClinicSite) ([]*types.Appointment, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM appointments
		WHERE professional_id = $1
		  AND site_id = $2
		  AND date = $3
		  AND status NOT IN ('cancelled', 'no_show', 'rescheduled')
		ORDER BY start_time ASC`, appointmentColumns)

	return r.queryAppointments(query, professionalID, string(siteID), date)
}

// AppendHistory records an appointment status transition
func (r *Repository) AppendHistory(entry *types.HistoryEntry) error {
	query := `
		INSERT INTO appointment_history (id, appointment_id, at, description, actor)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.Exec(query, entry.ID, entry.AppointmentID, entry.At, entry.Description, entry.Actor)
	if err != nil {
		r.logger.WithError(err).WithField("appointment_id", entry.AppointmentID).Error("Failed to append appointment history")
		return fmt.Errorf("failed to append appointment history: %w", err)
	}

	return nil
}

// GetHistory retrieves the status transition trail for an appointment,
// oldest first.
func (r *Repository) GetHistory(appointmentID string) ([]*types.HistoryEntry, error) {
	query := `
		SELECT id, appointment_id, at, description, actor
		FROM appointment_history
		WHERE appointment_id = $1
		ORDER BY at ASC`

	rows, err := r.db.Query(query, appointmentID)
	if err != nil {
		r.logger.WithError(err).WithField("appointment_id", appointmentID).Error("Failed to get appointment history")
		return nil, fmt.Errorf("failed to get appointment history: %w", err)
	}
	defer rows.Close()

	var entries []*types.HistoryEntry
	for rows.Next() {
		entry := &types.HistoryEntry{}
		if err := rows.Scan(&entry.ID, &entry.AppointmentID, &entry.At, &entry.Description, &entry.Actor); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history entries: %w", err)
	}

	return entries, nil
}

// GetAppointmentsForReminder retrieves the scheduled and confirmed
// appointments for the given date across all sites.
func (r *Repository) GetAppointmentsForReminder(date string) ([]*types.Appointment, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM appointments
		WHERE date = $1
		  AND status IN ('scheduled', 'confirmed')
		ORDER BY site_id ASC, start_time ASC`, appointmentColumns)

	return r.queryAppointments(query, date)
}

func (r *Repository) queryAppointments(query string, args ...interface{}) ([]*types.Appointment, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		r.logger.WithError(err).Error("Failed to query appointments")
		return nil, fmt.Errorf("failed to query appointments: %w", err)
	}
	defer rows.Close()

	var appointments []*types.Appointment
	for rows.Next() {
		apt, err := scanAppointment(rows)
		if err != nil {
			r.logger.WithError(err).Error("Failed to scan appointment")
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		appointments = append(appointments, apt)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating appointments: %w", err)
	}

	return appointments, nil
}
