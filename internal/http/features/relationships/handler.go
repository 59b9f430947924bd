package relationships

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

// Handler handles relationship endpoints.
type Handler struct {
	logger        *zap.Logger
	relationships *genealogy.RelationshipService
}

// NewHandler creates a new relationships handler.
func NewHandler(logger *zap.Logger, relationships *genealogy.RelationshipService) *Handler {
	return &Handler{logger: logger, relationships: relationships}
}

// RegisterRoutes registers routes scoped to /v1/trees/{treeID}.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/relationships", h.List)
	r.Post("/relationships", h.Create)
	r.Delete("/relationships/{relID}", h.Delete)
	r.Get("/persons/{personID}/relationships", h.ListForPerson)
}

// CreateRequest represents a relationship creation request. A parent edge makes
// person1 a parent of person2.
type CreateRequest struct {
	Person1ID        uuid.UUID `json:"person1_id"`
	Person2ID        uuid.UUID `json:"person2_id"`
	RelationshipType string    `json:"relationship_type"`
	Notes            *string   `json:"notes,omitempty"`
}

// List returns a page of the tree's relationships.
// GET /v1/trees/{treeID}/relationships?limit=N&offset=M
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
	page, ok := httputil.PageQuery(w, r)
	if !ok {
		return
	}

	rels, err := h.relationships.List(r.Context(), userID, treeID, page)
	if err != nil {
		httputil.Fail(w, r, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, common.NewRelationshipResponses(rels))
}

// ListForPerson returns every edge touching a person.
// GET /v1/trees/{treeID}/persons/{personID}/relationships
func (h *Handler) ListForPerson(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	treeID, ok := httputil.UUIDParam(w, r, "treeID")
	if !ok {
		return
	}
	personID, ok := httputil.UUIDParam(w, r, "personID")
	if !ok {
		return
	}

	rels, err := h.relationships.ListForPerson(r.Context(), userID, treeID, personID)
	if err != nil {
		httputil.Fail(w, r, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, common.NewRelationshipResponses(rels))
}

// Create adds an edge between two persons of the tree.
// POST /v1/trees/{treeID}/relationships
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	treeID, ok := httputil.UUIDParam(w, r, "treeID")
	if !ok {
		return
	}

	var req CreateRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	rel, err := h.relationships.Create(r.Context(), userID, treeID, genealogy.RelationshipInput{
		Person1ID: req.Person1ID,
		Person2ID: req.Person2ID,
		Type:      domain.RelationshipType(req.RelationshipType),
		Notes:     req.Notes,
	})
	if err != nil {
		httputil.Fail(w, r, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusCreated, common.NewRelationshipResponse(rel))
}

// Delete removes an edge.
// DELETE /v1/trees/{treeID}/relationships/{relID}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	treeID, ok := httputil.UUIDParam(w, r, "treeID")
	if !ok {
		return
	}
	relID, ok := httputil.UUIDParam(w, r, "relID")
	if !ok {
		return
	}

	if err := h.relationships.Delete(r.Context(), userID, treeID, relID); err != nil {
		httputil.Fail(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
