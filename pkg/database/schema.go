package database

import (
	"context"
	"fmt"
)

// CreateSchema creates the database schema for the clinic API
func (db *DB) CreateSchema(ctx context.Context) error {
	db.logger.Info("Creating database schema...")

	// Create extension for UUID generation
	if err := db.createExtensions(ctx); err != nil {
		return fmt.Errorf("failed to create extensions: %w", err)
	}

	// Create tables
	tables := []string{
		createUsersTable,
		createAppointmentsTable,
		createAppointmentHistoryTable,
	}

	for _, table := range tables {
		if _, err := db.ExecContext(ctx, table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	// Create indexes
	indexes := []string{
		createUsersIndexes,
		createAppointmentsIndexes,
		createAppointmentHistoryIndexes,
	}

	for _, index := range indexes {
		if _, err := db.ExecContext(ctx, index); err != nil {
			return fmt.Errorf("failed to create indexes: %w", err)
		}
	}

	db.logger.Info("Database schema created successfully")
	return nil
}

// createExtensions creates required PostgreSQL extensions
func (db *DB) createExtensions(ctx context.Context) error {
	extensions := []string{
		`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	}

	for _, ext := range extensions {
		if _, err := db.ExecContext(ctx, ext); err != nil {
			return fmt.Errorf("failed to create extension: %w", err)
		}
	}

	return nil
}

// SQL DDL statements for table creation
const (
	createUsersTable = `
		CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			name VARCHAR(100) NOT NULL,
			email VARCHAR(255) UNIQUE NOT NULL,
			dni VARCHAR(20) UNIQUE NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			role VARCHAR(30) NOT NULL,
			site_id VARCHAR(20) NOT NULL,
			permissions TEXT[] NOT NULL DEFAULT '{}',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			failed_login_attempts INT NOT NULL DEFAULT 0,
			locked_until TIMESTAMPTZ,
			mfa_secret VARCHAR(64),
			last_access TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`

	createAppointmentsTable = `
		CREATE TABLE IF NOT EXISTS appointments (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			patient_id UUID NOT NULL,
			professional_id UUID NOT NULL,
			site_id VARCHAR(20) NOT NULL,
			date DATE NOT NULL,
			start_time CHAR(5) NOT NULL,
			end_time CHAR(5) NOT NULL,
			duration_minutes INT NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'scheduled',
			reason TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			cancellation_reason TEXT,
			arrival_time CHAR(5),
			wait_minutes INT,
			rescheduled_to UUID,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT appointments_time_order CHECK (start_time < end_time)
		);`

	createAppointmentHistoryTable = `
		CREATE TABLE IF NOT EXISTS appointment_history (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			appointment_id UUID NOT NULL REFERENCES appointments(id),
			at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			description TEXT NOT NULL,
			actor VARCHAR(100) NOT NULL
		);`

	createUsersIndexes = `
		CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
		CREATE INDEX IF NOT EXISTS idx_users_site ON users(site_id);`

	// The partial unique index is the storage-level backstop against
	// double-booking when two requests pass the conflict check concurrently.
	createAppointmentsIndexes = `
		CREATE INDEX IF NOT EXISTS idx_appointments_day
			ON appointments(professional_id, site_id, date);
		CREATE INDEX IF NOT EXISTS idx_appointments_patient ON appointments(patient_id);
		CREATE UNIQUE INDEX IF NOT EXISTS uq_appointments_slot
			ON appointments(professional_id, site_id, date, start_time)
			WHERE status NOT IN ('cancelled', 'no_show', 'rescheduled');`

	createAppointmentHistoryIndexes = `
		CREATE INDEX IF NOT EXISTS idx_appointment_history_appointment
			ON appointment_history(appointment_id, at);`
)
