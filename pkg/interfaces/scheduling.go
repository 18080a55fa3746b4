package interfaces

import (
	"github.com/Silviu2326/Dentaflow-sub002/pkg/types"
)

// SchedulingService defines the interface for appointment management
type SchedulingService interface {
	// Appointment lifecycle
	CreateAppointment(apt *types.Appointment, claims *types.UserClaims) (*types.Appointment, error)
	GetAppointment(aptID string, claims *types.UserClaims) (*types.Appointment, error)
	UpdateAppointment(aptID string, updates *types.AppointmentUpdates, claims *types.UserClaims) error
	CancelAppointment(aptID, reason string, claims *types.UserClaims) error
	CheckIn(aptID, arrivalTime string, claims *types.UserClaims) (*types.Appointment, error)
	Reschedule(aptID string, newDate, newStart string, claims *types.UserClaims) (*types.Appointment, error)
	MarkNoShow(aptID string, claims *types.UserClaims) error

	// Appointment queries
	GetAppointments(filters *types.AppointmentFilters, claims *types.UserClaims) ([]*types.Appointment, error)
	ListDayAppointments(date string, siteID types.ClinicSite, professionalID string, claims *types.UserClaims) ([]*types.Appointment, error)
	GetHistory(aptID string, claims *types.UserClaims) ([]*types.HistoryEntry, error)

	// Availability
	CheckAvailability(date, start, end, professionalID string, siteID types.ClinicSite, excludeID string, claims *types.UserClaims) (bool, error)
	GetAvailableSlots(date, professionalID string, siteID types.ClinicSite, durationMinutes int, claims *types.UserClaims) ([]*types.TimeSlot, error)

	// Notifications
	SendAppointmentReminder(aptID string) error
	SendAppointmentConfirmation(aptID string) error
}

// SchedulingRepository defines the interface for scheduling data persistence
type SchedulingRepository interface {
	CreateAppointment(apt *types.Appointment) error
	GetAppointmentByID(id string) (*types.Appointment, error)
	UpdateAppointment(id string, updates map[string]interface{}) error
	GetAppointments(filters *types.AppointmentFilters) ([]*types.Appointment, error)
	GetDayAppointments(date string, siteID types.ClinicSite, professionalID string) ([]*types.Appointment, error)

	// CountConflicts returns the number of slot-blocking appointments for the
	// (professional, site, date) tuple whose [start,end) interval overlaps the
	// given one, skipping excludeID when non-empty.
	CountConflicts(date, start, end, professionalID string, siteID types.ClinicSite, excludeID string) (int, error)

	// GetBookedIntervals returns the slot-blocking appointments for the tuple,
	// ascending by start time; input to the slot generator.
	GetBookedIntervals(date, professionalID string, siteID types.ClinicSite) ([]*types.Appointment, error)

	AppendHistory(entry *types.HistoryEntry) error
	GetHistory(appointmentID string) ([]*types.HistoryEntry, error)

	// GetAppointmentsForReminder returns confirmed and scheduled appointments
	// for the given date, all sites.
	GetAppointmentsForReminder(date string) ([]*types.Appointment, error)
}

// NotificationService defines the interface for appointment notifications
type NotificationService interface {
	SendEmail(to, subject, body string) error
	SendSMS(to, message string) error
}
