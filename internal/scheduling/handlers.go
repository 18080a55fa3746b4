package scheduling

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/Silviu2326/Dentaflow-sub002/pkg/interfaces"
	"github.com/Silviu2326/Dentaflow-sub002/pkg/logger"
	"github.com/Silviu2326/Dentaflow-sub002/pkg/types"
)

// Handler exposes the scheduling service over HTTP
type Handler struct {
	service interfaces.SchedulingService
	logger  *logger.Logger
}

// NewHandler creates a new scheduling HTTP handler
func NewHandler(service interfaces.SchedulingService, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  log,
	}
}

// RegisterRoutes configures the scheduling routes on the given router
func (h *Handler) RegisterRoutes(api *mux.Router) {
	api.HandleFunc("/appointments", h.createAppointmentHandler).Methods("POST")
	api.HandleFunc("/appointments", h.getAppointmentsHandler).Methods("GET")
	api.HandleFunc("/appointments/day", h.listDayAppointmentsHandler).Methods("GET")
	api.HandleFunc("/appointments/{id}", h.getAppointmentHandler).Methods("GET")
	api.HandleFunc("/appointments/{id}", h.updateAppointmentHandler).Methods("PUT")
	api.HandleFunc("/appointments/{id}", h.cancelAppointmentHandler).Methods("DELETE")
	api.HandleFunc("/appointments/{id}/checkin", h.checkInHandler).Methods("POST")
	api.HandleFunc("/appointments/{id}/reschedule", h.rescheduleHandler).Methods("POST")
	api.HandleFunc("/appointments/{id}/no-show", h.markNoShowHandler).Methods("POST")
	api.HandleFunc("/appointments/{id}/history", h.getHistoryHandler).Methods("GET")
	api.HandleFunc("/appointments/{id}/reminder", h.sendReminderHandler).Methods("POST")
	api.HandleFunc("/appointments/{id}/confirmation", h.sendConfirmationHandler).Methods("POST")

	api.HandleFunc("/availability", h.checkAvailabilityHandler).Methods("GET")
	api.HandleFunc("/available-slots", h.getAvailableSlotsHandler).Methods("GET")

	h.logger.Info("Scheduling routes configured")
}

// createAppointmentHandler handles appointment creation
func (h *Handler) createAppointmentHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromRequest(r)
	if !ok {
		h.writeError(w, types.NewAuthenticationError(types.ErrCodeUnauthorized, "missing credentials"))
		return
	}

	var apt types.Appointment
	if err := json.NewDecoder(r.Body).Decode(&apt); err != nil {
		h.writeError(w, types.NewValidationError(types.ErrCodeInvalidInput, "invalid request body", nil))
		return
	}

	created, err := h.service.CreateAppointment(&apt, claims)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, created)
}

// getAppointmentHandler handles single appointment retrieval
func (h *Handler) getAppointmentHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromRequest(r)
	if !ok {
		h.writeError(w, types.NewAuthenticationError(types.ErrCodeUnauthorized, "missing credentials"))
		return
	}

	apt, err := h.service.GetAppointment(mux.Vars(r)["id"], claims)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, apt)
}

// updateAppointmentHandler handles partial appointment updates
func (h *Handler) updateAppointmentHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromRequest(r)
	if !ok {
		h.writeError(w, types.NewAuthenticationError(types.ErrCodeUnauthorized, "missing credentials"))
		return
	}

	var updates types.AppointmentUpdates
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		h.writeError(w, types.NewValidationError(types.ErrCodeInvalidInput, "invalid request body", nil))
		return
	}

	if err := h.service.UpdateAppointment(mux.Vars(r)["id"], &updates, claims); err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"message": "appointment updated"})
}

// cancelAppointmentHandler handles appointment cancellation
func (h *Handler) cancelAppointmentHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromRequest(r)
	if !ok {
		h.writeError(w, types.NewAuthenticationError(types.ErrCodeUnauthorized, "missing credentials"))
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	// Body is optional on cancellation.
	_ = json.NewDecoder(r.Body).Decode(&body)

	if err := h.service.CancelAppointment(mux.Vars(r)["id"], body.Reason, claims); err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"message": "appointment cancelled"})
}

// checkInHandler handles patient arrival
func (h *Handler) checkInHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromRequest(r)
	if !ok {
		h.writeError(w, types.NewAuthenticationError(types.ErrCodeUnauthorized, "missing credentials"))
		return
	}

	var body struct {
		ArrivalTime string `json:"arrival_time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, types.NewValidationError(types.ErrCodeInvalidInput, "invalid request body", nil))
		return
	}

	apt, err := h.service.CheckIn(mux.Vars(r)["id"], body.ArrivalTime, claims)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, apt)
}

// rescheduleHandler books a successor appointment and links the original
func (h *Handler) rescheduleHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromRequest(r)
	if !ok {
		h.writeError(w, types.NewAuthenticationError(types.ErrCodeUnauthorized, "missing credentials"))
		return
	}

	var body struct {
		Date      string `json:"date"`
		StartTime string `json:"start_time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, types.NewValidationError(types.ErrCodeInvalidInput, "invalid request body", nil))
		return
	}

	successor, err := h.service.Reschedule(mux.Vars(r)["id"], body.Date, body.StartTime, claims)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, successor)
}

// markNoShowHandler flags an appointment as no-show
func (h *Handler) markNoShowHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromRequest(r)
	if !ok {
		h.writeError(w, types.NewAuthenticationError(types.ErrCodeUnauthorized, "missing credentials"))
		return
	}

	if err := h.service.MarkNoShow(mux.Vars(r)["id"], claims); err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"message": "appointment marked as no-show"})
}

// getHistoryHandler returns the status transition trail
func (h *Handler) getHistoryHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromRequest(r)
	if !ok {
		h.writeError(w, types.NewAuthenticationError(types.ErrCodeUnauthorized, "missing credentials"))
		return
	}

	history, err := h.service.GetHistory(mux.Vars(r)["id"], claims)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, history)
}

// getAppointmentsHandler handles filtered appointment listing
func (h *Handler) getAppointmentsHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromRequest(r)
	if !ok {
		h.writeError(w, types.NewAuthenticationError(types.ErrCodeUnauthorized, "missing credentials"))
		return
	}

	appointments, err := h.service.GetAppointments(parseAppointmentFilters(r), claims)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, appointments)
}

// listDayAppointmentsHandler returns a professional's agenda for one day
func (h *Handler) listDayAppointmentsHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromRequest(r)
	if !ok {
		h.writeError(w, types.NewAuthenticationError(types.ErrCodeUnauthorized, "missing credentials"))
		return
	}

	query := r.URL.Query()
	appointments, err := h.service.ListDayAppointments(
		query.Get("date"),
		types.ClinicSite(query.Get("site_id")),
		query.Get("professional_id"),
		claims,
	)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, appointments)
}

// checkAvailabilityHandler reports whether a slot is free
func (h *Handler) checkAvailabilityHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromRequest(r)
	query := r.URL.Query()

	start := query.Get("start")
	end := query.Get("end")
	if end == "" && query.Get("duration") != "" {
		startMin, err := ParseClock(start)
		if err != nil {
			h.writeError(w, types.NewValidationError(types.ErrCodeInvalidInput, "invalid start time, expected HH:MM", nil))
			return
		}
		duration, err := strconv.Atoi(query.Get("duration"))
		if err != nil || duration <= 0 {
			h.writeError(w, types.NewValidationError(types.ErrCodeInvalidInput, "invalid duration", nil))
			return
		}
		end = FormatClock(startMin + duration)
	}

	available, err := h.service.CheckAvailability(
		query.Get("date"),
		start,
		end,
		query.Get("professional_id"),
		types.ClinicSite(query.Get("site_id")),
		query.Get("exclude_id"),
		claims,
	)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]bool{"available": available})
}

// getAvailableSlotsHandler generates free slots for a professional's day
func (h *Handler) getAvailableSlotsHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromRequest(r)
	query := r.URL.Query()

	duration := 30
	if d := query.Get("duration"); d != "" {
		parsed, err := strconv.Atoi(d)
		if err != nil {
			h.writeError(w, types.NewValidationError(types.ErrCodeInvalidInput, "invalid duration", nil))
			return
		}
		duration = parsed
	}

	slots, err := h.service.GetAvailableSlots(
		query.Get("date"),
		query.Get("professional_id"),
		types.ClinicSite(query.Get("site_id")),
		duration,
		claims,
	)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if slots == nil {
		slots = []*types.TimeSlot{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"date":  query.Get("date"),
		"slots": slots,
	})
}

// sendReminderHandler triggers a reminder notification
func (h *Handler) sendReminderHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.service.SendAppointmentReminder(mux.Vars(r)["id"]); err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"message": "reminder sent"})
}

// sendConfirmationHandler triggers a confirmation notification
func (h *Handler) sendConfirmationHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.service.SendAppointmentConfirmation(mux.Vars(r)["id"]); err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"message": "confirmation sent"})
}

// claimsFromRequest extracts the authenticated user claims placed in the
// request context by the gateway auth middleware.
func claimsFromRequest(r *http.Request) (*types.UserClaims, bool) {
	claims, ok := r.Context().Value(types.ClaimsContextKey).(*types.UserClaims)
	return claims, ok
}

// parseAppointmentFilters extracts query-string filters
func parseAppointmentFilters(r *http.Request) *types.AppointmentFilters {
	query := r.URL.Query()
	filters := &types.AppointmentFilters{
		PatientID:      query.Get("patient_id"),
		ProfessionalID: query.Get("professional_id"),
		SiteID:         types.ClinicSite(query.Get("site_id")),
		Status:         types.AppointmentStatus(query.Get("status")),
		FromDate:       query.Get("from_date"),
		ToDate:         query.Get("to_date"),
	}

	if limit := query.Get("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil {
			filters.Limit = l
		}
	}
	if offset := query.Get("offset"); offset != "" {
		if o, err := strconv.Atoi(offset); err == nil {
			filters.Offset = o
		}
	}

	return filters
}

func (h *Handler) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.WithError(err).Error("Failed to encode response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	response := map[string]interface{}{
		"error": err.Error(),
	}

	var clinicErr *types.ClinicError
	if errors.As(err, &clinicErr) {
		statusCode = clinicErr.HTTPStatus()
		response = map[string]interface{}{
			"error":   clinicErr.Message,
			"code":    clinicErr.Code,
			"type":    clinicErr.Type,
			"details": clinicErr.Details,
		}
	} else {
		h.logger.WithError(err).Error("Unhandled error in scheduling handler")
		response["error"] = "internal server error"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if encErr := json.NewEncoder(w).Encode(response); encErr != nil {
		h.logger.WithError(encErr).Error("Failed to encode error response")
	}
}
