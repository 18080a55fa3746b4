package scheduling

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Silviu2326/Dentaflow-sub002/pkg/interfaces"
	"github.com/Silviu2326/Dentaflow-sub002/pkg/logger"
)

// ReminderJob sends next-day appointment reminders on a cron schedule.
type ReminderJob struct {
	service    interfaces.SchedulingService
	repository interfaces.SchedulingRepository
	logger     *logger.Logger
	cron       *cron.Cron
}

// NewReminderJob creates the reminder job
func NewReminderJob(service interfaces.SchedulingService, repository interfaces.SchedulingRepository, log *logger.Logger) *ReminderJob {
	return &ReminderJob{
		service:    service,
		repository: repository,
		logger:     log,
		cron:       cron.New(),
	}
}

// Start schedules the job with the given cron spec
func (j *ReminderJob) Start(spec string) error {
	if _, err := j.cron.AddFunc(spec, j.Run); err != nil {
		return fmt.Errorf("failed to schedule reminder job: %w", err)
	}
	j.cron.Start()
	j.logger.WithField("spec", spec).Info("Appointment reminder job scheduled")
	return nil
}

// Stop stops the cron scheduler and waits for a running job to finish
func (j *ReminderJob) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
	j.logger.Info("Appointment reminder job stopped")
}

// Run sends a reminder for every scheduled or confirmed appointment
// tomorrow. Individual delivery failures are logged and skipped so one bad
// contact never blocks the rest of the batch.
func (j *ReminderJob) Run() {
	tomorrow := time.Now().AddDate(0, 0, 1).Format("2006-01-02")

	appointments, err := j.repository.GetAppointmentsForReminder(tomorrow)
	if err != nil {
		j.logger.WithError(err).Error("Failed to load appointments for reminders")
		return
	}

	sent := 0
	for _, apt := range appointments {
		if err := j.service.SendAppointmentReminder(apt.ID); err != nil {
			j.logger.WithError(err).WithField("appointment_id", apt.ID).Warn("Failed to send appointment reminder")
			continue
		}
		sent++
	}

	j.logger.WithFields(map[string]interface{}{
		"date": tomorrow,
		"sent": sent,
		"of":   len(appointments),
	}).Info("Appointment reminders processed")
}
