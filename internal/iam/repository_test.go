package iam

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Silviu2326/Dentaflow-sub002/pkg/database"
	"github.com/Silviu2326/Dentaflow-sub002/pkg/interfaces"
	"github.com/Silviu2326/Dentaflow-sub002/pkg/logger"
	"github.com/Silviu2326/Dentaflow-sub002/pkg/types"
)

func setupTestRepository(t *testing.T) (interfaces.UserRepository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	log := logger.New("debug")
	repo := NewRepository(database.Wrap(sqlDB, log), log)
	return repo, mock
}

func userRow() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "name", "email", "dni", "password_hash", "role", "site_id", "permissions",
		"is_active", "failed_login_attempts", "locked_until", "mfa_secret", "last_access",
		"created_at", "updated_at",
	}).AddRow(
		"user-1", "Test Dentist", "dentist@clinic.example", "12345678Z", "$2a$10$hash",
		"dentist", "centro", []byte(`{agenda:read,agenda:update}`),
		true, 0, nil, nil, nil, now, now,
	)
}

func TestRepositoryCreate(t *testing.T) {
	repo, mock := setupTestRepository(t)

	mock.ExpectExec("INSERT INTO users").
		WithArgs("user-1", "Test Dentist", "dentist@clinic.example", "12345678Z",
			"$2a$10$hash", types.RoleDentist, types.SiteCentro,
			pq.Array([]string{"agenda:read"}), true).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(&types.User{
		ID:           "user-1",
		Name:         "Test Dentist",
		Email:        "dentist@clinic.example",
		DNI:          "12345678Z",
		PasswordHash: "$2a$10$hash",
		Role:         types.RoleDentist,
		SiteID:       types.SiteCentro,
		Permissions:  []string{"agenda:read"},
		IsActive:     true,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryCreate_DuplicateBecomesValidationError(t *testing.T) {
	repo, mock := setupTestRepository(t)

	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_email_key"})

	err := repo.Create(&types.User{ID: "user-1", Permissions: []string{}})
	require.Error(t, err)

	clinicErr, ok := err.(*types.ClinicError)
	require.True(t, ok)
	assert.Equal(t, types.ErrCodeDuplicateUser, clinicErr.Code)
}

func TestRepositoryGetByEmail(t *testing.T) {
	repo, mock := setupTestRepository(t)

	mock.ExpectQuery("FROM users").
		WithArgs("dentist@clinic.example").
		WillReturnRows(userRow())

	user, err := repo.GetByEmail("dentist@clinic.example")
	require.NoError(t, err)

	assert.Equal(t, "user-1", user.ID)
	assert.Equal(t, types.RoleDentist, user.Role)
	assert.Equal(t, []string{"agenda:read", "agenda:update"}, user.Permissions)
	assert.Nil(t, user.LockedUntil)
	assert.Empty(t, user.MFASecret)
}

func TestRepositoryGetByID_NotFound(t *testing.T) {
	repo, mock := setupTestRepository(t)

	mock.ExpectQuery("FROM users").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByID("ghost")
	require.Error(t, err)

	clinicErr, ok := err.(*types.ClinicError)
	require.True(t, ok)
	assert.Equal(t, types.ErrorTypeNotFound, clinicErr.Type)
}

func TestRepositoryUpdate_NoRowsIsNotFound(t *testing.T) {
	repo, mock := setupTestRepository(t)

	mock.ExpectExec("UPDATE users SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update("ghost", map[string]interface{}{"is_active": false})
	require.Error(t, err)

	clinicErr, ok := err.(*types.ClinicError)
	require.True(t, ok)
	assert.Equal(t, types.ErrorTypeNotFound, clinicErr.Type)
}

func TestRepositoryUpdate_ConvertsPermissions(t *testing.T) {
	repo, mock := setupTestRepository(t)

	mock.ExpectExec("UPDATE users SET").
		WithArgs(pq.Array([]string{"agenda:read"}), sqlmock.AnyArg(), "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update("user-1", map[string]interface{}{"permissions": []string{"agenda:read"}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryUpdate_ConvertsDecodedPermissions(t *testing.T) {
	repo, mock := setupTestRepository(t)

	mock.ExpectExec("UPDATE users SET").
		WithArgs(pq.Array([]string{"agenda:read", "patients:read"}), sqlmock.AnyArg(), "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	// JSON bodies decode string arrays as []interface{}.
	err := repo.Update("user-1", map[string]interface{}{
		"permissions": []interface{}{"agenda:read", "patients:read"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryUpdate_RejectsUnknownColumn(t *testing.T) {
	repo, mock := setupTestRepository(t)

	err := repo.Update("user-1", map[string]interface{}{
		"role = 'owner', name": "mallory",
	})
	require.Error(t, err)

	clinicErr, ok := err.(*types.ClinicError)
	require.True(t, ok)
	assert.Equal(t, types.ErrorTypeValidation, clinicErr.Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryUpdate_ExecFailure(t *testing.T) {
	repo, mock := setupTestRepository(t)

	mock.ExpectExec("UPDATE users SET").
		WillReturnError(errors.New("connection reset"))

	err := repo.Update("user-1", map[string]interface{}{"name": "Ana"})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryList_AppliesFilters(t *testing.T) {
	repo, mock := setupTestRepository(t)

	mock.ExpectQuery("FROM users").
		WithArgs("centro", 10).
		WillReturnRows(userRow())

	users, err := repo.List(map[string]interface{}{"site_id": "centro"}, 10, 0)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "user-1", users[0].ID)
}
