package scheduling

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Silviu2326/Dentaflow-sub002/pkg/config"
	"github.com/Silviu2326/Dentaflow-sub002/pkg/interfaces"
	"github.com/Silviu2326/Dentaflow-sub002/pkg/logger"
	"github.com/Silviu2326/Dentaflow-sub002/pkg/monitoring"
	"github.com/Silviu2326/Dentaflow-sub002/pkg/types"
)

// Service implements the SchedulingService interface
type Service struct {
	config       *config.Config
	logger       *logger.Logger
	repository   interfaces.SchedulingRepository
	notification interfaces.NotificationService
	locks        *dayLocks
}

// NewService creates a new scheduling service
func NewService(cfg *config.Config, log *logger.Logger, repository interfaces.SchedulingRepository, notification interfaces.NotificationService) interfaces.SchedulingService {
	return &Service{
		config:       cfg,
		logger:       log,
		repository:   repository,
		notification: notification,
		locks:        newDayLocks(),
	}
}

// CreateAppointment books a new appointment after validating it and checking
// the professional's day for conflicts. The check and the insert run under
// the day lock for the (professional, site, date) tuple.
func (s *Service) CreateAppointment(apt *types.Appointment, claims *types.UserClaims) (*types.Appointment, error) {
	if err := s.validateNewAppointment(apt); err != nil {
		return nil, err
	}

	if err := s.checkSiteAccess(claims, apt.SiteID); err != nil {
		return nil, err
	}

	end, err := s.computeEndTime(apt.StartTime, apt.DurationMinutes)
	if err != nil {
		return nil, err
	}
	apt.EndTime = end

	apt.ID = uuid.New().String()
	apt.Status = types.StatusScheduled
	apt.CreatedAt = time.Now()
	apt.UpdatedAt = time.Now()

	unlock := s.locks.Lock(apt.ProfessionalID, apt.SiteID, apt.Date)
	defer unlock()

	conflicts, err := s.repository.CountConflicts(apt.Date, apt.StartTime, apt.EndTime, apt.ProfessionalID, apt.SiteID, "")
	if err != nil {
		return nil, fmt.Errorf("failed to check for conflicts: %w", err)
	}
	if conflicts > 0 {
		monitoring.SlotConflict()
		return nil, types.NewConflictError(types.ErrCodeSlotUnavailable,
			"the selected time slot conflicts with an existing appointment",
			map[string]interface{}{
				"professional_id": apt.ProfessionalID,
				"site_id":         apt.SiteID,
				"date":            apt.Date,
				"start_time":      apt.StartTime,
				"end_time":        apt.EndTime,
			})
	}

	if err := s.repository.CreateAppointment(apt); err != nil {
		return nil, err
	}
	monitoring.AppointmentBooked(string(apt.SiteID))

	s.recordHistory(apt.ID, fmt.Sprintf("Appointment created for %s %s-%s", apt.Date, apt.StartTime, apt.EndTime), claims)

	if err := s.SendAppointmentConfirmation(apt.ID); err != nil {
		// Booking stands even when the confirmation cannot be delivered.
		s.logger.WithError(err).WithField("appointment_id", apt.ID).Warn("Failed to send appointment confirmation")
	}

	s.logger.Audit(claims.UserID, "create", "appointment:"+apt.ID, true, map[string]interface{}{
		"site_id": apt.SiteID,
		"date":    apt.Date,
	})
	return apt, nil
}

// GetAppointment retrieves an appointment, enforcing site scoping
func (s *Service) GetAppointment(aptID string, claims *types.UserClaims) (*types.Appointment, error) {
	apt, err := s.repository.GetAppointmentByID(aptID)
	if err != nil {
		return nil, err
	}

	if err := s.checkSiteAccess(claims, apt.SiteID); err != nil {
		return nil, err
	}

	return apt, nil
}

// UpdateAppointment applies a partial update. Any change to the appointment's
// timing, professional or site re-runs conflict detection, excluding the
// appointment itself so it never collides with its own slot.
func (s *Service) UpdateAppointment(aptID string, updates *types.AppointmentUpdates, claims *types.UserClaims) error {
	apt, err := s.GetAppointment(aptID, claims)
	if err != nil {
		return err
	}

	date := apt.Date
	start := apt.StartTime
	duration := apt.DurationMinutes
	professionalID := apt.ProfessionalID
	siteID := apt.SiteID

	timingChanged := false
	columns := map[string]interface{}{}

	if updates.Date != nil && *updates.Date != apt.Date {
		if _, err := time.Parse("2006-01-02", *updates.Date); err != nil {
			return types.NewValidationError(types.ErrCodeInvalidInput, "invalid date, expected YYYY-MM-DD", nil)
		}
		date = *updates.Date
		columns["date"] = date
		timingChanged = true
	}

	if updates.StartTime != nil && *updates.StartTime != apt.StartTime {
		if _, err := ParseClock(*updates.StartTime); err != nil {
			return types.NewValidationError(types.ErrCodeInvalidInput, "invalid start time, expected HH:MM", nil)
		}
		start = *updates.StartTime
		columns["start_time"] = start
		timingChanged = true
	}

	if updates.DurationMinutes != nil && *updates.DurationMinutes != apt.DurationMinutes {
		if !types.IsValidDuration(*updates.DurationMinutes) {
			return types.NewValidationError(types.ErrCodeInvalidInput,
				fmt.Sprintf("invalid duration: %d, must be one of %v", *updates.DurationMinutes, types.ValidDurations), nil)
		}
		duration = *updates.DurationMinutes
		columns["duration_minutes"] = duration
		timingChanged = true
	}

	if updates.ProfessionalID != nil && *updates.ProfessionalID != apt.ProfessionalID {
		professionalID = *updates.ProfessionalID
		columns["professional_id"] = professionalID
		timingChanged = true
	}

	if updates.SiteID != nil && *updates.SiteID != apt.SiteID {
		if !updates.SiteID.IsValid() {
			return types.NewValidationError(types.ErrCodeInvalidInput,
				fmt.Sprintf("invalid site: %s", *updates.SiteID), nil)
		}
		if err := s.checkSiteAccess(claims, *updates.SiteID); err != nil {
			return err
		}
		siteID = *updates.SiteID
		columns["site_id"] = string(siteID)
		timingChanged = true
	}

	if updates.Status != nil && *updates.Status != apt.Status {
		if !isValidStatus(*updates.Status) {
			return types.NewValidationError(types.ErrCodeInvalidInput,
				fmt.Sprintf("invalid status: %s", *updates.Status), nil)
		}
		// Cancelled, completed and rescheduled are terminal. Cancellation
		// itself goes through CancelAppointment, which demands a reason.
		switch apt.Status {
		case types.StatusCancelled, types.StatusCompleted, types.StatusRescheduled:
			return types.NewConflictError(types.ErrCodeInvalidInput,
				fmt.Sprintf("cannot change status of a %s appointment", apt.Status), nil)
		}
		switch *updates.Status {
		case types.StatusCancelled:
			return types.NewValidationError(types.ErrCodeInvalidInput,
				"appointments are cancelled through the cancellation endpoint", nil)
		case types.StatusRescheduled:
			return types.NewValidationError(types.ErrCodeInvalidInput,
				"appointments are rescheduled through the reschedule endpoint", nil)
		}
		columns["status"] = string(*updates.Status)
	}

	if updates.Reason != nil {
		columns["reason"] = *updates.Reason
	}
	if updates.Notes != nil {
		columns["notes"] = *updates.Notes
	}

	if len(columns) == 0 {
		return nil
	}

	if timingChanged {
		if !apt.Status.Blocks() || apt.Status == types.StatusCompleted {
			return types.NewValidationError(types.ErrCodeInvalidInput,
				fmt.Sprintf("cannot move an appointment in status %s", apt.Status), nil)
		}

		end, err := s.computeEndTime(start, duration)
		if err != nil {
			return err
		}
		columns["end_time"] = end

		unlock := s.locks.Lock(professionalID, siteID, date)
		defer unlock()

		conflicts, err := s.repository.CountConflicts(date, start, end, professionalID, siteID, aptID)
		if err != nil {
			return fmt.Errorf("failed to check for conflicts: %w", err)
		}
		if conflicts > 0 {
			return types.NewConflictError(types.ErrCodeSlotUnavailable,
				"the selected time slot conflicts with an existing appointment", nil)
		}
	}

	if err := s.repository.UpdateAppointment(aptID, columns); err != nil {
		return err
	}

	if timingChanged {
		s.recordHistory(aptID, fmt.Sprintf("Appointment moved to %s %s", date, start), claims)
	} else if updates.Status != nil {
		s.recordHistory(aptID, fmt.Sprintf("Status changed from %s to %s", apt.Status, *updates.Status), claims)
	}

	return nil
}

// CancelAppointment cancels an appointment, freeing its slot immediately.
// Cancellation always carries a reason and is irreversible; rebooking means
// creating a new appointment.
func (s *Service) CancelAppointment(aptID, reason string, claims *types.UserClaims) error {
	if reason == "" {
		return types.NewValidationError(types.ErrCodeInvalidInput, "cancellation reason is required", nil)
	}

	apt, err := s.GetAppointment(aptID, claims)
	if err != nil {
		return err
	}

	if apt.Status == types.StatusCancelled {
		return types.NewValidationError(types.ErrCodeInvalidInput, "appointment is already cancelled", nil)
	}
	if apt.Status == types.StatusCompleted {
		return types.NewValidationError(types.ErrCodeInvalidInput, "cannot cancel a completed appointment", nil)
	}

	columns := map[string]interface{}{
		"status":              string(types.StatusCancelled),
		"cancellation_reason": reason,
	}
	if err := s.repository.UpdateAppointment(aptID, columns); err != nil {
		return err
	}

	s.recordHistory(aptID, fmt.Sprintf("Appointment cancelled: %s", reason), claims)

	s.logger.Audit(claims.UserID, "cancel", "appointment:"+aptID, true, nil)
	return nil
}

// CheckIn records a patient's arrival and computes the waiting-room delay.
// A patient arriving early gets a wait of zero, never a negative value.
func (s *Service) CheckIn(aptID, arrivalTime string, claims *types.UserClaims) (*types.Appointment, error) {
	apt, err := s.GetAppointment(aptID, claims)
	if err != nil {
		return nil, err
	}

	switch apt.Status {
	case types.StatusScheduled, types.StatusPending, types.StatusConfirmed:
	default:
		return nil, types.NewValidationError(types.ErrCodeInvalidInput,
			fmt.Sprintf("cannot check in an appointment in status %s", apt.Status), nil)
	}

	arrival, err := ParseClock(arrivalTime)
	if err != nil {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "invalid arrival time, expected HH:MM", nil)
	}
	start, err := ParseClock(apt.StartTime)
	if err != nil {
		return nil, fmt.Errorf("stored start time is malformed: %w", err)
	}

	wait := arrival - start
	if wait < 0 {
		wait = 0
	}

	columns := map[string]interface{}{
		"status":       string(types.StatusInWaitingRoom),
		"arrival_time": arrivalTime,
		"wait_minutes": wait,
	}
	if err := s.repository.UpdateAppointment(aptID, columns); err != nil {
		return nil, err
	}

	s.recordHistory(aptID, fmt.Sprintf("Patient checked in at %s (wait %d min)", arrivalTime, wait), claims)

	apt.Status = types.StatusInWaitingRoom
	apt.ArrivalTime = arrivalTime
	apt.WaitMinutes = &wait
	return apt, nil
}

// Reschedule books a successor appointment at the new date and time, then
// marks the original as rescheduled and links it to the successor. The
// original keeps its full history; the successor starts a fresh one.
func (s *Service) Reschedule(aptID string, newDate, newStart string, claims *types.UserClaims) (*types.Appointment, error) {
	apt, err := s.GetAppointment(aptID, claims)
	if err != nil {
		return nil, err
	}

	if !apt.Status.Blocks() || apt.Status == types.StatusCompleted {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput,
			fmt.Sprintf("cannot reschedule an appointment in status %s", apt.Status), nil)
	}

	successor := &types.Appointment{
		PatientID:       apt.PatientID,
		ProfessionalID:  apt.ProfessionalID,
		SiteID:          apt.SiteID,
		Date:            newDate,
		StartTime:       newStart,
		DurationMinutes: apt.DurationMinutes,
		Reason:          apt.Reason,
		Notes:           apt.Notes,
	}

	successor, err = s.CreateAppointment(successor, claims)
	if err != nil {
		return nil, err
	}

	columns := map[string]interface{}{
		"status":         string(types.StatusRescheduled),
		"rescheduled_to": successor.ID,
	}
	if err := s.repository.UpdateAppointment(aptID, columns); err != nil {
		return nil, err
	}

	s.recordHistory(aptID, fmt.Sprintf("Appointment rescheduled to %s %s", newDate, newStart), claims)
	s.recordHistory(successor.ID, fmt.Sprintf("Created by rescheduling appointment %s", aptID), claims)

	s.logger.Audit(claims.UserID, "reschedule", "appointment:"+aptID, true, map[string]interface{}{
		"successor_id": successor.ID,
	})
	return successor, nil
}

// MarkNoShow flags an appointment whose patient never arrived
func (s *Service) MarkNoShow(aptID string, claims *types.UserClaims) error {
	apt, err := s.GetAppointment(aptID, claims)
	if err != nil {
		return err
	}

	switch apt.Status {
	case types.StatusScheduled, types.StatusPending, types.StatusConfirmed:
	default:
		return types.NewValidationError(types.ErrCodeInvalidInput,
			fmt.Sprintf("cannot mark no-show for an appointment in status %s", apt.Status), nil)
	}

	columns := map[string]interface{}{
		"status": string(types.StatusNoShow),
	}
	if err := s.repository.UpdateAppointment(aptID, columns); err != nil {
		return err
	}

	s.recordHistory(aptID, "Patient did not show up", claims)
	return nil
}

// GetAppointments retrieves appointments matching the filters. Site-scoped
// roles are pinned to their own site regardless of the requested filter.
func (s *Service) GetAppointments(filters *types.AppointmentFilters, claims *types.UserClaims) ([]*types.Appointment, error) {
	if filters == nil {
		filters = &types.AppointmentFilters{}
	}

	if claims.Role.SiteScoped() {
		filters.SiteID = claims.SiteID
	}

	return s.repository.GetAppointments(filters)
}

// ListDayAppointments returns a professional's full day at a site in start
// order, every status included so cancelled and no-show visits stay visible
// on the agenda.
func (s *Service) ListDayAppointments(date string, siteID types.ClinicSite, professionalID string, claims *types.UserClaims) ([]*types.Appointment, error) {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "invalid date, expected YYYY-MM-DD", nil)
	}
	if !siteID.IsValid() {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, fmt.Sprintf("invalid site: %s", siteID), nil)
	}
	if err := s.checkSiteAccess(claims, siteID); err != nil {
		return nil, err
	}

	return s.repository.GetDayAppointments(date, siteID, professionalID)
}

// GetHistory retrieves the status transition trail for an appointment
func (s *Service) GetHistory(aptID string, claims *types.UserClaims) ([]*types.HistoryEntry, error) {
	if _, err := s.GetAppointment(aptID, claims); err != nil {
		return nil, err
	}

	return s.repository.GetHistory(aptID)
}

// CheckAvailability reports whether [start, end) is free for the
// professional's day at the site, optionally ignoring one appointment.
func (s *Service) CheckAvailability(date, start, end, professionalID string, siteID types.ClinicSite, excludeID string, claims *types.UserClaims) (bool, error) {
	if err := s.checkSiteAccess(claims, siteID); err != nil {
		return false, err
	}

	conflicts, err := s.repository.CountConflicts(date, start, end, professionalID, siteID, excludeID)
	if err != nil {
		return false, err
	}
	return conflicts == 0, nil
}

// GetAvailableSlots generates the free slots of the requested duration for a
// professional's day at a site
func (s *Service) GetAvailableSlots(date, professionalID string, siteID types.ClinicSite, durationMinutes int, claims *types.UserClaims) ([]*types.TimeSlot, error) {
	if err := s.checkSiteAccess(claims, siteID); err != nil {
		return nil, err
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "invalid date, expected YYYY-MM-DD", nil)
	}
	if !siteID.IsValid() {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, fmt.Sprintf("invalid site: %s", siteID), nil)
	}
	if !types.IsValidDuration(durationMinutes) {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput,
			fmt.Sprintf("invalid duration: %d, must be one of %v", durationMinutes, types.ValidDurations), nil)
	}

	booked, err := s.repository.GetBookedIntervals(date, professionalID, siteID)
	if err != nil {
		return nil, err
	}

	return ComputeAvailableSlots(booked, durationMinutes,
		s.config.Clinic.OpenTime, s.config.Clinic.CloseTime, s.config.Clinic.SlotStepMinutes)
}

// SendAppointmentReminder sends a reminder for an upcoming appointment
func (s *Service) SendAppointmentReminder(aptID string) error {
	apt, err := s.repository.GetAppointmentByID(aptID)
	if err != nil {
		return err
	}

	subject := "Appointment reminder"
	body := fmt.Sprintf("You have a dental appointment on %s at %s (site %s).", apt.Date, apt.StartTime, apt.SiteID)
	if err := s.notification.SendEmail(apt.PatientID, subject, body); err != nil {
		return err
	}
	return s.notification.SendSMS(apt.PatientID,
		fmt.Sprintf("Reminder: dental appointment %s %s", apt.Date, apt.StartTime))
}

// SendAppointmentConfirmation sends a booking confirmation
func (s *Service) SendAppointmentConfirmation(aptID string) error {
	apt, err := s.repository.GetAppointmentByID(aptID)
	if err != nil {
		return err
	}

	subject := "Appointment confirmed"
	body := fmt.Sprintf("Your dental appointment is confirmed for %s at %s (site %s).", apt.Date, apt.StartTime, apt.SiteID)
	return s.notification.SendEmail(apt.PatientID, subject, body)
}

// validateNewAppointment validates the fields of a booking request
func (s *Service) validateNewAppointment(apt *types.Appointment) error {
	if apt.PatientID == "" {
		return types.NewValidationError(types.ErrCodeInvalidInput, "patient_id is required", nil)
	}
	if apt.ProfessionalID == "" {
		return types.NewValidationError(types.ErrCodeInvalidInput, "professional_id is required", nil)
	}
	if !apt.SiteID.IsValid() {
		return types.NewValidationError(types.ErrCodeInvalidInput,
			fmt.Sprintf("invalid site: %s", apt.SiteID), nil)
	}
	if _, err := time.Parse("2006-01-02", apt.Date); err != nil {
		return types.NewValidationError(types.ErrCodeInvalidInput, "invalid date, expected YYYY-MM-DD", nil)
	}
	if _, err := ParseClock(apt.StartTime); err != nil {
		return types.NewValidationError(types.ErrCodeInvalidInput, "invalid start time, expected HH:MM", nil)
	}
	if !types.IsValidDuration(apt.DurationMinutes) {
		return types.NewValidationError(types.ErrCodeInvalidInput,
			fmt.Sprintf("invalid duration: %d, must be one of %v", apt.DurationMinutes, types.ValidDurations), nil)
	}
	return nil
}

// computeEndTime derives the end clock and checks the appointment lies
// within clinic hours. Ending exactly at closing time is allowed.
func (s *Service) computeEndTime(start string, durationMinutes int) (string, error) {
	startMin, err := ParseClock(start)
	if err != nil {
		return "", types.NewValidationError(types.ErrCodeInvalidInput, "invalid start time, expected HH:MM", nil)
	}
	open, err := ParseClock(s.config.Clinic.OpenTime)
	if err != nil {
		return "", fmt.Errorf("invalid configured opening time: %w", err)
	}
	closing, err := ParseClock(s.config.Clinic.CloseTime)
	if err != nil {
		return "", fmt.Errorf("invalid configured closing time: %w", err)
	}

	endMin := startMin + durationMinutes
	if startMin < open || endMin > closing {
		return "", types.NewValidationError(types.ErrCodeInvalidInput,
			fmt.Sprintf("appointment must fall within clinic hours %s-%s",
				s.config.Clinic.OpenTime, s.config.Clinic.CloseTime), nil)
	}

	return FormatClock(endMin), nil
}

// checkSiteAccess enforces site scoping: owner and hq_analyst see every
// site, everyone else only their own.
func (s *Service) checkSiteAccess(claims *types.UserClaims, siteID types.ClinicSite) error {
	if claims == nil {
		return types.NewAuthenticationError(types.ErrCodeUnauthorized, "missing credentials")
	}
	if !claims.Role.SiteScoped() {
		return nil
	}
	if claims.SiteID != siteID {
		return types.NewAuthorizationError(types.ErrCodeForbidden,
			fmt.Sprintf("role %s is restricted to site %s", claims.Role, claims.SiteID))
	}
	return nil
}

// recordHistory appends an audit entry; history failures never fail the
// operation they describe.
func (s *Service) recordHistory(aptID, description string, claims *types.UserClaims) {
	entry := &types.HistoryEntry{
		ID:            uuid.New().String(),
		AppointmentID: aptID,
		At:            time.Now(),
		Description:   description,
		Actor:         claims.UserID,
	}
	if err := s.repository.AppendHistory(entry); err != nil {
		s.logger.WithError(err).WithField("appointment_id", aptID).Warn("Failed to record appointment history")
	}
}

func isValidStatus(status types.AppointmentStatus) bool {
	switch status {
	case types.StatusScheduled, types.StatusPending, types.StatusConfirmed,
		types.StatusInWaitingRoom, types.StatusInConsultation, types.StatusCompleted,
		types.StatusCancelled, types.StatusNoShow, types.StatusRescheduled:
		return true
	}
	return false
}
