// Package handler translates HTTP requests into workflow service calls.
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/regidesk/be-deed-forms/internal/errors"
	"github.com/regidesk/be-deed-forms/internal/logger"
	"github.com/regidesk/be-deed-forms/internal/model"
	"github.com/regidesk/be-deed-forms/internal/service"
)

// HTTPHandler handles HTTP requests for forms, review and delivery.
type HTTPHandler struct {
	forms    *service.FormService
	review   *service.ReviewService
	delivery *service.DeliveryService
	log      *logger.Logger
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(
	forms *service.FormService,
	review *service.ReviewService,
	delivery *service.DeliveryService,
	log *logger.Logger,
) *HTTPHandler {
	return &HTTPHandler{forms: forms, review: review, delivery: delivery, log: log}
}

// Routes mounts all form workflow routes.
func (h *HTTPHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Route("/forms", func(r chi.Router) {
		r.Post("/", h.CreateForm)
		r.Get("/", h.ListForms)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetForm)
			r.Get("/status", h.GetFormStatus)
			r.Get("/history", h.GetHistory)
			r.Get("/audit", h.GetAuditTrail)
			r.Post("/submit", h.SubmitForm)
			r.Post("/verify", h.Verify)
			r.Post("/correction", h.RequestCorrection)
			r.Post("/cross-verify", h.CrossVerify)
			r.Post("/final-approval", h.FinalApprove)
			r.Post("/cancel", h.CancelForm)
			r.Route("/delivery", func(r chi.Router) {
				r.Get("/", h.GetDelivery)
				r.Post("/preference", h.SetUserPreference)
				r.Post("/decision", h.SetStaffDecision)
				r.Post("/dispatch", h.MarkDispatched)
				r.Post("/delivered", h.MarkDelivered)
				r.Post("/cancel", h.CancelDelivery)
			})
		})
	})
	return r
}

// ── form lifecycle ────────────────────────────────────────────────────────────

// CreateForm handles new form submissions.
func (h *HTTPHandler) CreateForm(w http.ResponseWriter, r *http.Request) {
	var req service.CreateFormRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.InvalidInput("body", "invalid request body"))
		return
	}

	form, err := h.forms.CreateForm(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, form)
}

// GetForm returns one form document.
func (h *HTTPHandler) GetForm(w http.ResponseWriter, r *http.Request) {
	form, err := h.forms.GetForm(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

// ListForms returns a filtered page of forms.
func (h *HTTPHandler) ListForms(w http.ResponseWriter, r *http.Request) {
	serviceType := optionalQuery(r, "service_type")
	status := optionalQuery(r, "status")
	applicantID := optionalQuery(r, "applicant_id")

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

	forms, total, err := h.forms.ListForms(r.Context(), serviceType, status, applicantID, page, pageSize)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"forms": forms,
		"total": total,
	})
}

// GetFormStatus returns the derived pipeline position of a form.
func (h *HTTPHandler) GetFormStatus(w http.ResponseWriter, r *http.Request) {
	view, err := h.forms.FormStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// SubmitForm moves a draft into review.
func (h *HTTPHandler) SubmitForm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ActorID string `json:"actor_id"`
	}
	decodeOptional(r, &req)

	form, err := h.forms.SubmitForm(r.Context(), chi.URLParam(r, "id"), actor(req.ActorID))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    form.Status,
		"approvals": form.Approvals,
	})
}

// CancelForm handles administrative cancellation.
func (h *HTTPHandler) CancelForm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ActorID string `json:"actor_id"`
		Reason  string `json:"reason"`
	}
	decodeOptional(r, &req)

	form, err := h.forms.CancelForm(r.Context(), chi.URLParam(r, "id"), actor(req.ActorID), req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": form.Status})
}

// ── review operations ─────────────────────────────────────────────────────────

// Verify records a staff1..staff3 sign-off.
func (h *HTTPHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Stage   string `json:"stage"`
		Notes   string `json:"notes,omitempty"`
		ActorID string `json:"actor_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.InvalidInput("body", "invalid request body"))
		return
	}

	form, err := h.review.Verify(r.Context(), chi.URLParam(r, "id"), req.Stage, req.Notes, actor(req.ActorID))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    form.Status,
		"approvals": form.Approvals,
	})
}

// RequestCorrection flags a stage's data for rework.
func (h *HTTPHandler) RequestCorrection(w http.ResponseWriter, r *http.Request) {
	var req service.RequestCorrectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.InvalidInput("body", "invalid request body"))
		return
	}
	req.FormID = chi.URLParam(r, "id")
	req.ActorID = actor(req.ActorID)

	form, entry, err := h.review.RequestCorrection(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           form.Status,
		"approvals":        form.Approvals,
		"history_entry_id": entry.ID,
	})
}

// CrossVerify records staff4's whole-ledger review outcome.
func (h *HTTPHandler) CrossVerify(w http.ResponseWriter, r *http.Request) {
	var req service.CrossVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.InvalidInput("body", "invalid request body"))
		return
	}
	req.FormID = chi.URLParam(r, "id")
	req.ActorID = actor(req.ActorID)

	form, corrections, err := h.review.CrossVerify(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}
	if corrections == nil {
		corrections = []model.FieldCorrection{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      form.Status,
		"approvals":   form.Approvals,
		"corrections": corrections,
	})
}

// FinalApprove records staff5's terminal decision.
func (h *HTTPHandler) FinalApprove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Decision string `json:"decision"`
		Remarks  string `json:"remarks,omitempty"`
		ActorID  string `json:"actor_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.InvalidInput("body", "invalid request body"))
		return
	}

	form, err := h.review.FinalApprove(r.Context(), chi.URLParam(r, "id"), req.Decision, req.Remarks, actor(req.ActorID))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": form.Status,
		"locked": form.Locked(),
	})
}

// GetHistory returns the verification history of a form.
func (h *HTTPHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.review.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if history == nil {
		history = []model.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

// GetAuditTrail returns the audit log of a form.
func (h *HTTPHandler) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	entries, err := h.review.AuditTrail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []*model.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"audit": entries})
}

// ── delivery negotiation ──────────────────────────────────────────────────────

// GetDelivery returns the delivery state of a form.
func (h *HTTPHandler) GetDelivery(w http.ResponseWriter, r *http.Request) {
	state, err := h.delivery.GetDelivery(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// SetUserPreference records the owner's delivery choice.
func (h *HTTPHandler) SetUserPreference(w http.ResponseWriter, r *http.Request) {
	var req service.SetUserPreferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.InvalidInput("body", "invalid request body"))
		return
	}
	req.FormID = chi.URLParam(r, "id")
	req.ActorID = actor(req.ActorID)

	form, err := h.delivery.SetUserPreference(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, form.Delivery)
}

// SetStaffDecision records the delivery authority's override.
func (h *HTTPHandler) SetStaffDecision(w http.ResponseWriter, r *http.Request) {
	var req service.SetStaffDecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.InvalidInput("body", "invalid request body"))
		return
	}
	req.FormID = chi.URLParam(r, "id")
	req.ActorID = actor(req.ActorID)

	form, err := h.delivery.SetStaffDecision(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, form.Delivery)
}

// MarkDispatched moves the delivery to dispatched.
func (h *HTTPHandler) MarkDispatched(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TrackingNumber string `json:"tracking_number,omitempty"`
		Notes          string `json:"notes,omitempty"`
		ActorID        string `json:"actor_id"`
	}
	decodeOptional(r, &req)

	form, err := h.delivery.MarkDispatched(r.Context(), chi.URLParam(r, "id"), req.TrackingNumber, req.Notes, actor(req.ActorID))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, form.Delivery)
}

// MarkDelivered closes the delivery flow.
func (h *HTTPHandler) MarkDelivered(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Notes   string `json:"notes,omitempty"`
		ActorID string `json:"actor_id"`
	}
	decodeOptional(r, &req)

	form, err := h.delivery.MarkDelivered(r.Context(), chi.URLParam(r, "id"), req.Notes, actor(req.ActorID))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, form.Delivery)
}

// CancelDelivery aborts the delivery flow.
func (h *HTTPHandler) CancelDelivery(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Notes   string `json:"notes,omitempty"`
		ActorID string `json:"actor_id"`
	}
	decodeOptional(r, &req)

	form, err := h.delivery.CancelDelivery(r.Context(), chi.URLParam(r, "id"), req.Notes, actor(req.ActorID))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, form.Delivery)
}

// ── helpers ───────────────────────────────────────────────────────────────────

// errorResponse is the structured error payload surfaced to clients.
type errorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, err error) {
	code := errors.Code(err)
	writeJSON(w, errors.HTTPStatus(code), errorResponse{
		Kind:    code,
		Message: errors.Message(err),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// decodeOptional decodes a body that is allowed to be absent.
func decodeOptional(r *http.Request, dest any) {
	if r.Body == nil {
		return
	}
	_ = json.NewDecoder(r.Body).Decode(dest)
}

func optionalQuery(r *http.Request, key string) *string {
	if v := r.URL.Query().Get(key); v != "" {
		return &v
	}
	return nil
}

// actor resolves the acting user id for audit purposes.
// TODO: derive the actor from the identity service token once the auth
// middleware is wired in.
func actor(id string) string {
	if id == "" {
		return "system"
	}
	return id
}
