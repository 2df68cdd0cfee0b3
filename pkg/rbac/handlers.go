package rbac

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/helpdesk-rbac/pkg/audit"
	"github.com/platinummonkey/helpdesk-rbac/pkg/httputil"
	"github.com/platinummonkey/helpdesk-rbac/pkg/observability"
)

// MaxBatchTickets caps a visibility batch
const MaxBatchTickets = 500

// Handlers serves the decision API
type Handlers struct {
	service    *AccessService
	middleware *PermissionMiddleware
	audit      audit.Logger
	log        *logrus.Logger
}

// NewHandlers creates the decision API handlers. auditLog may be nil.
func NewHandlers(service *AccessService, middleware *PermissionMiddleware, auditLog audit.Logger, log *logrus.Logger) *Handlers {
	if log == nil {
		log = logrus.New()
	}
	return &Handlers{service: service, middleware: middleware, audit: audit.OrNoop(auditLog), log: log}
}

// RegisterRoutes registers the decision routes on a router whose requests
// already carry a permission snapshot
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/me/permissions", h.GetMyPermissions).Methods(http.MethodGet)
	router.HandleFunc("/me/permissions", h.ForgetMyPermissions).Methods(http.MethodDelete)

	router.HandleFunc("/decisions", h.Decide).Methods(http.MethodPost)
	router.HandleFunc("/decisions/visible", h.FilterVisible).Methods(http.MethodPost)
	router.HandleFunc("/decisions/merge", h.CanMerge).Methods(http.MethodPost)

	admin := router.PathPrefix("/admin").Subrouter()
	admin.Use(h.middleware.RequireAdmin)
	admin.HandleFunc("/config", h.GetConfig).Methods(http.MethodGet)
	admin.HandleFunc("/config/invalidate", h.InvalidateConfig).Methods(http.MethodPost)
}

// DecisionRequest asks for every predicate on one ticket
type DecisionRequest struct {
	Ticket *Ticket `json:"ticket"`
}

// VisibleRequest asks which tickets of a batch are visible
type VisibleRequest struct {
	Tickets []Ticket `json:"tickets"`
}

// VisibleResponse lists the visible tickets of a batch
type VisibleResponse struct {
	Tickets []Ticket `json:"tickets"`
	Total   int      `json:"total"`
	Visible int      `json:"visible"`
}

// MergeRequest asks whether source may be merged into target
type MergeRequest struct {
	Source *Ticket `json:"source"`
	Target *Ticket `json:"target"`
}

// MergeResponse answers a MergeRequest
type MergeResponse struct {
	Allowed bool `json:"allowed"`
}

// GetMyPermissions returns the caller's permission snapshot
func (h *Handlers) GetMyPermissions(w http.ResponseWriter, r *http.Request) {
	_ = httputil.WriteSuccess(w, GetPermissions(r.Context()))
}

// ForgetMyPermissions drops the caller's memoized snapshot, as on sign-out
func (h *Handlers) ForgetMyPermissions(w http.ResponseWriter, r *http.Request) {
	perms := GetPermissions(r.Context())
	h.service.Forget(perms.Email)

	event := audit.NewEvent(r.Context(), r, audit.EventTypeSessionForget, audit.EventStatusSuccess)
	event.ResourceType = audit.ResourceTypeSession
	event.ResourceID = perms.Email
	h.record(r, event)

	httputil.WriteNoContent(w)
}

// Decide evaluates every predicate for one ticket
func (h *Handlers) Decide(w http.ResponseWriter, r *http.Request) {
	var req DecisionRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Ticket == nil {
		httputil.WriteBadRequest(w, "ticket is required")
		return
	}

	decision := h.service.Decide(r.Context(), GetPermissions(r.Context()), req.Ticket)
	_ = httputil.WriteSuccess(w, decision)
}

// FilterVisible returns the subset of a batch the caller may view
func (h *Handlers) FilterVisible(w http.ResponseWriter, r *http.Request) {
	var req VisibleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if len(req.Tickets) > MaxBatchTickets {
		httputil.WriteBadRequest(w, "too many tickets in one batch")
		return
	}

	visible := h.service.VisibleTickets(r.Context(), GetPermissions(r.Context()), req.Tickets)
	_ = httputil.WriteSuccess(w, VisibleResponse{
		Tickets: visible,
		Total:   len(req.Tickets),
		Visible: len(visible),
	})
}

// CanMerge answers whether the caller may merge two tickets
func (h *Handlers) CanMerge(w http.ResponseWriter, r *http.Request) {
	var req MergeRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Source == nil || req.Target == nil {
		httputil.WriteBadRequest(w, "source and target are required")
		return
	}

	allowed := h.service.Policy().CanMerge(GetPermissions(r.Context()), req.Source, req.Target)
	_ = httputil.WriteSuccess(w, MergeResponse{Allowed: allowed})
}

// GetConfig summarizes the configuration in effect
func (h *Handlers) GetConfig(w http.ResponseWriter, r *http.Request) {
	_ = httputil.WriteSuccess(w, h.service.Config(r.Context()).Summary())
}

// InvalidateConfig forces a reload of the group-role configuration
func (h *Handlers) InvalidateConfig(w http.ResponseWriter, r *http.Request) {
	cfg := h.service.ReloadConfig(r.Context())

	observability.FromContext(r.Context(), h.log).
		WithField("source", cfg.Source).
		Info("Group-role configuration reloaded on request")

	event := audit.NewEvent(r.Context(), r, audit.EventTypeConfigInvalidate, audit.EventStatusSuccess)
	event.ResourceType = audit.ResourceTypeConfig
	event.Message = "Group-role configuration reloaded"
	event.Metadata = map[string]interface{}{"source": string(cfg.Source), "allowed_groups": len(cfg.AllowedGroupIDs)}
	h.record(r, event)

	_ = httputil.WriteSuccess(w, cfg.Summary())
}

// record writes an audit event; a failing audit sink never fails the request
func (h *Handlers) record(r *http.Request, event *audit.Event) {
	if err := h.audit.Log(r.Context(), event); err != nil {
		observability.FromContext(r.Context(), h.log).WithError(err).Warn("Failed to write audit event")
	}
}
