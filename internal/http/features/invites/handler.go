package invites

import (
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tendant/simple-genealogy/internal/http/features/common"
	"github.com/tendant/simple-genealogy/internal/http/middleware"
	"github.com/tendant/simple-genealogy/internal/httputil"
	"github.com/tendant/simple-genealogy/pkg/genealogy"
	"go.uber.org/zap"
)

// maxExpiresInHours is the largest hour count that converts to a time.Duration without
// overflowing. The service clamps anything longer to its configured maximum.
const maxExpiresInHours = int(math.MaxInt64 / int64(time.Hour))

// Handler handles invite issuing, lookup and redemption.
type Handler struct {
	logger  *zap.Logger
	invites *genealogy.InviteService
}

// NewHandler creates a new invites handler.
func NewHandler(logger *zap.Logger, invites *genealogy.InviteService) *Handler {
	return &Handler{logger: logger, invites: invites}
}

// RegisterRoutes registers owner routes scoped to /v1/trees/{treeID}. Lookup and Redeem
// are mounted separately because they are addressed by token.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/invites", h.List)
	r.Post("/invites", h.Issue)
	r.Delete("/invites/{inviteID}", h.Cancel)
}

// IssueRequest represents an invite request for a tree person.
type IssueRequest struct {
	PersonID       uuid.UUID `json:"person_id"`
	Email          *string   `json:"email,omitempty"`
	Message        *string   `json:"message,omitempty"`
	ExpiresInHours int       `json:"expires_in_hours,omitempty"`
}

// IssueResponse carries the raw token. It is shown once.
type IssueResponse struct {
	Invite common.InviteResponse `json:"invite"`
	Token  string                `json:"token"`
	URL    string                `json:"url"`
}

// LookupResponse is what an invitee sees before accepting.
type LookupResponse struct {
	TreeID      string  `json:"tree_id"`
	PersonName  string  `json:"person_name"`
	InviterName string  `json:"inviter_name"`
	Message     *string `json:"message,omitempty"`
	ExpiresAt   string  `json:"expires_at"`
}

// RedeemResponse is the result of accepting an invite.
type RedeemResponse struct {
	TreeID     string                    `json:"tree_id"`
	PersonID   string                    `json:"person_id"`
	Membership common.MembershipResponse `json:"membership"`
}

// List returns every invite of the tree.
// GET /v1/trees/{treeID}/invites
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	treeID, ok := httputil.UUIDParam(w, r, "treeID")
	if !ok {
		return
	}

	invites, err := h.invites.ListForTree(r.Context(), userID, treeID)
	if err != nil {
		httputil.Fail(w, r, h.logger, err)
		return
	}
	resp := make([]common.InviteResponse, len(invites))
	for i, inv := range invites {
		resp[i] = common.NewInviteResponse(inv)
	}
	httputil.JSON(w, http.StatusOK, resp)
}

// Issue creates an invite for an unlinked living person.
// POST /v1/trees/{treeID}/invites
func (h *Handler) Issue(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	treeID, ok := httputil.UUIDParam(w, r, "treeID")
	if !ok {
		return
	}

	var req IssueRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if req.PersonID == uuid.Nil {
		httputil.Error(w, http.StatusBadRequest, "person_id is required")
		return
	}
	if req.ExpiresInHours < 0 {
		httputil.Error(w, http.StatusBadRequest, "invalid expires_in_hours")
		return
	}
	if req.ExpiresInHours > maxExpiresInHours {
		req.ExpiresInHours = maxExpiresInHours
	}

	issued, err := h.invites.Issue(r.Context(), userID, treeID, req.PersonID, genealogy.IssueInviteInput{
		Email:   req.Email,
		Message: req.Message,
		TTL:     time.Duration(req.ExpiresInHours) * time.Hour,
	})
	if err != nil {
		httputil.Fail(w, r, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusCreated, IssueResponse{
		Invite: common.NewInviteResponse(issued.Invite),
		Token:  issued.Token,
		URL:    issued.URL,
	})
}

// Cancel expires a pending invite.
// DELETE /v1/trees/{treeID}/invites/{inviteID}
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	treeID, ok := httputil.UUIDParam(w, r, "treeID")
	if !ok {
		return
	}
	inviteID, ok := httputil.UUIDParam(w, r, "inviteID")
	if !ok {
		return
	}

	if err := h.invites.Cancel(r.Context(), userID, treeID, inviteID); err != nil {
		httputil.Fail(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Lookup shows a pending invite to anyone holding the token.
// GET /v1/invites/{token}
func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	details, err := h.invites.Lookup(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		httputil.Fail(w, r, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, LookupResponse{
		TreeID:      details.Invite.TreeID.String(),
		PersonName:  details.PersonName,
		InviterName: details.InviterName,
		Message:     details.Invite.Message,
		ExpiresAt:   details.Invite.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Redeem links the caller to the invited person and grants tree membership.
// POST /v1/invites/{token}/redeem
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	result, err := h.invites.Redeem(r.Context(), chi.URLParam(r, "token"), userID)
	if err != nil {
		httputil.Fail(w, r, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, RedeemResponse{
		TreeID:     result.TreeID.String(),
		PersonID:   result.PersonID.String(),
		Membership: common.NewMembershipResponse(result.Membership),
	})
}
