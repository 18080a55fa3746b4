package iam

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

// Repository implements the UserRepository interface
type Repository struct {
	db     *database.DB
	logger *logger.Logger
}

// NewRepository creates a new user repository
func NewRepository(db *database.DB, log *logger.Logger) interfaces.UserRepository {
	return &Repository{
		db:     db,
		logger: log,
	}
}

const userColumns = `id, name, email, dni, password_hash, role, site_id, permissions,
		   is_active, failed_login_attempts, locked_until, mfa_secret, last_access,
		   created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*types.User, error) {
	user := &types.User{}
	var mfaSecret sql.NullString
	var lockedUntil, lastAccess sql.NullTime

	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.DNI,
		&user.PasswordHash,
		&user.Role,
		&user.SiteID,
		pq.Array(&user.Permissions),
		&user.IsActive,
		&user.FailedLoginAttempts,
		&lockedUntil,
		&mfaSecret,
		&lastAccess,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.MFASecret = mfaSecret.String
	if lockedUntil.Valid {
		t := lockedUntil.Time
		user.LockedUntil = &t
	}
	if lastAccess.Valid {
		t := lastAccess.Time
		user.LastAccess = &t
	}
	return user, nil
}

// Create inserts a new user row
func (r *Repository) Create(user *types.User) error {
	query := `
		INSERT INTO users (
			id, name, email, dni, password_hash, role, site_id, permissions, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.Exec(query,
		user.ID,
		user.Name,
		user.Email,
		user.DNI,
		user.PasswordHash,
		user.Role,
		user.SiteID,
		pq.Array(user.Permissions),
		user.IsActive,
	)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return types.NewValidationError(types.ErrCodeDuplicateUser,
				"a user with this email or DNI already exists", nil)
		}
		r.logger.WithError(err).Error("Failed to create user")
		return fmt.Errorf("failed to create user: %w", err)
	}

	r.logger.WithFields(map[string]interface{}{
		"user_id": user.ID,
		"role":    user.Role,
		"site_id": user.SiteID,
	}).Info("Created user")
	return nil
}

// GetByID retrieves a user by ID
func (r *Repository) GetByID(id string) (*types.User, error) {
	return r.getOne("id", id)
}

// GetByEmail retrieves a user by email
func (r *Repository) GetByEmail(email string) (*types.User, error) {
	return r.getOne("email", email)
}

// GetByDNI retrieves a user by national identity number
func (r *Repository) GetByDNI(dni string) (*types.User, error) {
	return r.getOne("dni", dni)
}

func (r *Repository) getOne(field, value string) (*types.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE %s = $1", userColumns, field)

	user, err := scanUser(r.db.QueryRow(query, value))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, types.NewNotFoundError(types.ErrCodeNotFound,
				fmt.Sprintf("user not found: %s", value))
		}
		r.logger.WithError(err).Error("Failed to get user")
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// updatableUserColumns are the only column names allowed in the dynamic SET
// clause built by Update. Map keys become query text, so anything outside
// this set is rejected before the query is assembled.
var updatableUserColumns = map[string]bool{
	"name":                  true,
	"email":                 true,
	"dni":                   true,
	"password_hash":         true,
	"role":                  true,
	"site_id":               true,
	"permissions":           true,
	"is_active":             true,
	"failed_login_attempts": true,
	"locked_until":          true,
	"mfa_secret":            true,
	"last_access":           true,
}

// Update applies a partial column update to a user
func (r *Repository) Update(id string, updates map[string]interface{}) error {
	setParts := []string{}
	args := []interface{}{}
	argIndex := 1

	for field, value := range updates {
		if !updatableUserColumns[field] {
			return types.NewValidationError(types.ErrCodeInvalidInput,
				fmt.Sprintf("unknown user field: %s", field), nil)
		}
		if field == "permissions" {
			switch perms := value.(type) {
			case []string:
				value = pq.Array(perms)
			case []interface{}:
				// JSON arrays decode as []interface{}.
				converted := make([]string, 0, len(perms))
				for _, p := range perms {
					converted = append(converted, fmt.Sprint(p))
				}
				value = pq.Array(converted)
			}
		}
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

	query := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d", strings.Join(setParts, ", "), argIndex)
	args = append(args, id)

	result, err := r.db.Exec(query, args...)
	if err != nil {
		r.logger.WithUserID(id).WithError(err).Error("Failed to update user")
		return fmt.Errorf("failed to update user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return types.NewNotFoundError(types.ErrCodeNotFound, fmt.Sprintf("user not found: %s", id))
	}

	return nil
}

// Delete removes a user row. Prefer Update with is_active=false; hard delete
// is reserved for GDPR erasure requests.
func (r *Repository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM users WHERE id = $1", id)
	if err != nil {
		r.logger.WithUserID(id).WithError(err).Error("Failed to delete user")
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return types.NewNotFoundError(types.ErrCodeNotFound, fmt.Sprintf("user not found: %s", id))
	}

	r.logger.WithUserID(id).Info("Deleted user")
	return nil
}

// List retrieves users matching the filters
func (r *Repository) List(filters map[string]interface{}, limit, offset int) ([]*types.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE 1=1", userColumns)

	args := []interface{}{}
	argIndex := 1

	for field, value := range filters {
		query += fmt.Sprintf(" AND %s = $%d", field, argIndex)
		args = append(args, value)
		argIndex++
	}

	query += " ORDER BY created_at DESC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, limit)
		argIndex++
	}

	if offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, offset)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		r.logger.WithError(err).Error("Failed to list users")
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*types.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			r.logger.WithError(err).Error("Failed to scan user")
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}
