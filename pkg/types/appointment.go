package types

import "time"

// ClinicSite identifies a physical clinic location (sede).
type ClinicSite string

const (
	SiteCentro ClinicSite = "centro"
	SiteNorte  ClinicSite = "norte"
	SiteSur    ClinicSite = "sur"
	SiteEste   ClinicSite = "este"
	SiteOeste  ClinicSite = "oeste"
)

// AllSites lists every valid clinic site.
var AllSites = []ClinicSite{SiteCentro, SiteNorte, SiteSur, SiteEste, SiteOeste}

// IsValid reports whether the site is one of the known clinic locations.
func (s ClinicSite) IsValid() bool {
	for _, site := range AllSites {
		if s == site {
			return true
		}
	}
	return false
}

// AppointmentStatus represents appointment status values
type AppointmentStatus string

const (
	StatusScheduled      AppointmentStatus = "scheduled"
	StatusPending        AppointmentStatus = "pending"
	StatusConfirmed      AppointmentStatus = "confirmed"
	StatusInWaitingRoom  AppointmentStatus = "in_waiting_room"
	StatusInConsultation AppointmentStatus = "in_consultation"
	StatusCompleted      AppointmentStatus = "completed"
	StatusCancelled      AppointmentStatus = "cancelled"
	StatusNoShow         AppointmentStatus = "no_show"
	StatusRescheduled    AppointmentStatus = "rescheduled"
)

// NonBlockingStatuses are statuses excluded from conflict detection: a
// cancelled or no-show appointment no longer occupies its slot, and a
// rescheduled one has been superseded by its successor.
var NonBlockingStatuses = []AppointmentStatus{StatusCancelled, StatusNoShow, StatusRescheduled}

// Blocks reports whether an appointment in this status occupies its time slot
// for conflict-detection purposes.
func (s AppointmentStatus) Blocks() bool {
	for _, ns := range NonBlockingStatuses {
		if s == ns {
			return false
		}
	}
	return true
}

// ValidDurations are the accepted appointment lengths in minutes.
var ValidDurations = []int{15, 30, 45, 60, 90, 120, 150, 180}

// IsValidDuration reports whether minutes is an accepted appointment length.
func IsValidDuration(minutes int) bool {
	for _, d := range ValidDurations {
		if minutes == d {
			return true
		}
	}
	return false
}

// Appointment represents a scheduled dental appointment. Date is a naive
// calendar day (2006-01-02); StartTime and EndTime are zero-padded 24-hour
// HH:MM clock strings, so lexical order equals temporal order. EndTime is
// always derived from StartTime plus DurationMinutes, never supplied.
type Appointment struct {
	ID                 string            `json:"id" db:"id"`
	PatientID          string            `json:"patient_id" db:"patient_id"`
	ProfessionalID     string            `json:"professional_id" db:"professional_id"`
	SiteID             ClinicSite        `json:"site_id" db:"site_id"`
	Date               string            `json:"date" db:"date"`
	StartTime          string            `json:"start_time" db:"start_time"`
	EndTime            string            `json:"end_time" db:"end_time"`
	DurationMinutes    int               `json:"duration_minutes" db:"duration_minutes"`
	Status             AppointmentStatus `json:"status" db:"status"`
	Reason             string            `json:"reason" db:"reason"`
	Notes              string            `json:"notes" db:"notes"`
	CancellationReason string            `json:"cancellation_reason,omitempty" db:"cancellation_reason"`
	ArrivalTime        string            `json:"arrival_time,omitempty" db:"arrival_time"`
	WaitMinutes        *int              `json:"wait_minutes,omitempty" db:"wait_minutes"`
	RescheduledTo      string            `json:"rescheduled_to,omitempty" db:"rescheduled_to"`
	CreatedAt          time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at" db:"updated_at"`
}

// AppointmentFilters represents filters for appointment queries
type AppointmentFilters struct {
	PatientID      string            `json:"patient_id,omitempty"`
	ProfessionalID string            `json:"professional_id,omitempty"`
	SiteID         ClinicSite        `json:"site_id,omitempty"`
	Status         AppointmentStatus `json:"status,omitempty"`
	FromDate       string            `json:"from_date,omitempty"`
	ToDate         string            `json:"to_date,omitempty"`
	Limit          int               `json:"limit,omitempty"`
	Offset         int               `json:"offset,omitempty"`
}

// AppointmentUpdates represents updates to an appointment. Nil fields are
// left untouched. Time moves supply StartTime and/or DurationMinutes; the
// new EndTime is recomputed server-side.
type AppointmentUpdates struct {
	Date            *string            `json:"date,omitempty"`
	StartTime       *string            `json:"start_time,omitempty"`
	DurationMinutes *int               `json:"duration_minutes,omitempty"`
	ProfessionalID  *string            `json:"professional_id,omitempty"`
	SiteID          *ClinicSite        `json:"site_id,omitempty"`
	Status          *AppointmentStatus `json:"status,omitempty"`
	Reason          *string            `json:"reason,omitempty"`
	Notes           *string            `json:"notes,omitempty"`
}

// TimeSlot is a candidate bookable interval within clinic hours, rendered as
// HH:MM clock strings.
type TimeSlot struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// HistoryEntry is one append-only record of an appointment status transition.
type HistoryEntry struct {
	ID            string    `json:"id" db:"id"`
	AppointmentID string    `json:"appointment_id" db:"appointment_id"`
	At            time.Time `json:"at" db:"at"`
	Description   string    `json:"description" db:"description"`
	Actor         string    `json:"actor" db:"actor"`
}
