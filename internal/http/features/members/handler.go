package members

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tendant/simple-genealogy/internal/http/features/common"
	"github.com/tendant/simple-genealogy/internal/http/middleware"
	"github.com/tendant/simple-genealogy/internal/httputil"
	"github.com/tendant/simple-genealogy/pkg/domain"
	"github.com/tendant/simple-genealogy/pkg/genealogy"
	"go.uber.org/zap"
)

// Handler manages tree memberships.
type Handler struct {
	logger *zap.Logger
	gate   *genealogy.AccessGate
}

// NewHandler creates a new members handler.
func NewHandler(logger *zap.Logger, gate *genealogy.AccessGate) *Handler {
	return &Handler{logger: logger, gate: gate}
}

// RegisterRoutes registers routes scoped to /v1/trees/{treeID}.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/members", h.List)
	r.Post("/members", h.Grant)
	r.Patch("/members/{userID}", h.ChangeRole)
	r.Delete("/members/{userID}", h.Revoke)
}

// GrantRequest adds a user to the tree.
type GrantRequest struct {
	UserID uuid.UUID `json:"user_id"`
	Role   string    `json:"role"`
}

// RoleRequest changes a member's role.
type RoleRequest struct {
	Role string `json:"role"`
}

// List returns the tree's memberships.
// GET /v1/trees/{treeID}/members
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	treeID, ok := httputil.UUIDParam(w, r, "treeID")
	if !ok {
		return
	}

	memberships, err := h.gate.ListMembers(r.Context(), treeID, actorID)
	if err != nil {
		httputil.Fail(w, r, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, common.NewMembershipResponses(memberships))
}

// Grant adds a member.
// POST /v1/trees/{treeID}/members
func (h *Handler) Grant(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	treeID, ok := httputil.UUIDParam(w, r, "treeID")
	if !ok {
		return
	}

	var req GrantRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		httputil.Fail(w, r, h.logger, err)
		return
	}

	m, err := h.gate.Grant(r.Context(), treeID, actorID, req.UserID, role)
	if err != nil {
		httputil.Fail(w, r, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusCreated, common.NewMembershipResponse(m))
}

// ChangeRole updates a member's role.
// PATCH /v1/trees/{treeID}/members/{userID}
func (h *Handler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	treeID, ok := httputil.UUIDParam(w, r, "treeID")
	if !ok {
		return
	}
	userID, ok := httputil.UUIDParam(w, r, "userID")
	if !ok {
		return
	}

	var req RoleRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		httputil.Fail(w, r, h.logger, err)
		return
	}

	m, err := h.gate.ChangeRole(r.Context(), treeID, actorID, userID, role)
	if err != nil {
		httputil.Fail(w, r, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, common.NewMembershipResponse(m))
}

// Revoke removes a member.
// DELETE /v1/trees/{treeID}/members/{userID}
func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	treeID, ok := httputil.UUIDParam(w, r, "treeID")
	if !ok {
		return
	}
	userID, ok := httputil.UUIDParam(w, r, "userID")
	if !ok {
		return
	}

	if err := h.gate.Revoke(r.Context(), treeID, actorID, userID); err != nil {
		httputil.Fail(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
