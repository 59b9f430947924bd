package persons

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

// Handler handles person endpoints.
type Handler struct {
	logger  *zap.Logger
	persons *genealogy.PersonService
}

// NewHandler creates a new persons handler.
func NewHandler(logger *zap.Logger, persons *genealogy.PersonService) *Handler {
	return &Handler{logger: logger, persons: persons}
}

// RegisterRoutes registers routes scoped to /v1/trees/{treeID}.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/persons", h.List)
	r.Post("/persons", h.Create)
	r.Get("/persons/{personID}", h.Get)
	r.Patch("/persons/{personID}", h.Update)
	r.Delete("/persons/{personID}", h.Delete)
}

// InlineRelationshipRequest relates the new person to an existing one.
type InlineRelationshipRequest struct {
	RelatedPersonID  uuid.UUID `json:"related_person_id"`
	RelationshipType string    `json:"relationship_type"`
	Notes            *string   `json:"notes,omitempty"`
}

// CreateRequest represents a person creation request. Dates use YYYY-MM-DD.
type CreateRequest struct {
	FirstName     string                      `json:"first_name"`
	LastName      string                      `json:"last_name"`
	MaidenName    *string                     `json:"maiden_name,omitempty"`
	Gender        string                      `json:"gender,omitempty"`
	BirthDate     *string                     `json:"birth_date,omitempty"`
	BirthPlace    *string                     `json:"birth_place,omitempty"`
	DeathDate     *string                     `json:"death_date,omitempty"`
	DeathPlace    *string                     `json:"death_place,omitempty"`
	Biography     *string                     `json:"biography,omitempty"`
	Occupation    *string                     `json:"occupation,omitempty"`
	PhotoURL      *string                     `json:"photo_url,omitempty"`
	Notes         *string                     `json:"notes,omitempty"`
	Source        string                      `json:"source,omitempty"`
	IsAlive       *bool                       `json:"is_alive,omitempty"`
	LinkedUserID  *uuid.UUID                  `json:"linked_user_id,omitempty"`
	Relationships []InlineRelationshipRequest `json:"relationships,omitempty"`
}

// UpdateRequest represents a partial person update. Absent fields are unchanged.
type UpdateRequest struct {
	FirstName      *string    `json:"first_name,omitempty"`
	LastName       *string    `json:"last_name,omitempty"`
	MaidenName     *string    `json:"maiden_name,omitempty"`
	Gender         *string    `json:"gender,omitempty"`
	BirthDate      *string    `json:"birth_date,omitempty"`
	BirthPlace     *string    `json:"birth_place,omitempty"`
	DeathDate      *string    `json:"death_date,omitempty"`
	ClearDeathDate bool       `json:"clear_death_date,omitempty"`
	DeathPlace     *string    `json:"death_place,omitempty"`
	Biography      *string    `json:"biography,omitempty"`
	Occupation     *string    `json:"occupation,omitempty"`
	PhotoURL       *string    `json:"photo_url,omitempty"`
	Notes          *string    `json:"notes,omitempty"`
	IsAlive        *bool      `json:"is_alive,omitempty"`
	LinkedUserID   *uuid.UUID `json:"linked_user_id,omitempty"`
}

// CreateResponse is the created person and any edges created with it.
type CreateResponse struct {
	Person        common.PersonResponse          `json:"person"`
	Relationships []common.RelationshipResponse `json:"relationships"`
}

// ListResponse is one page of persons.
type ListResponse struct {
	Persons []common.PersonResponse `json:"persons"`
	Total   int                     `json:"total"`
	Limit   int                     `json:"limit"`
	Offset  int                     `json:"offset"`
}

func (req CreateRequest) input() (genealogy.PersonInput, string) {
	birth, err := common.ParseDate(req.BirthDate)
	if err != nil {
		return genealogy.PersonInput{}, "invalid birth_date"
	}
	death, err := common.ParseDate(req.DeathDate)
	if err != nil {
		return genealogy.PersonInput{}, "invalid death_date"
	}
	in := genealogy.PersonInput{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		MaidenName:   req.MaidenName,
		Gender:       req.Gender,
		BirthDate:    birth,
		BirthPlace:   req.BirthPlace,
		DeathDate:    death,
		DeathPlace:   req.DeathPlace,
		Biography:    req.Biography,
		Occupation:   req.Occupation,
		PhotoURL:     req.PhotoURL,
		Notes:        req.Notes,
		Source:       domain.PersonSource(req.Source),
		IsAlive:      req.IsAlive,
		LinkedUserID: req.LinkedUserID,
	}
	for _, rel := range req.Relationships {
		in.Relationships = append(in.Relationships, genealogy.InlineRelationship{
			RelatedPersonID: rel.RelatedPersonID,
			Type:            domain.RelationshipType(rel.RelationshipType),
			Notes:           rel.Notes,
		})
	}
	return in, ""
}

func (req UpdateRequest) patch() (genealogy.PersonPatch, string) {
	birth, err := common.ParseDate(req.BirthDate)
	if err != nil {
		return genealogy.PersonPatch{}, "invalid birth_date"
	}
	death, err := common.ParseDate(req.DeathDate)
	if err != nil {
		return genealogy.PersonPatch{}, "invalid death_date"
	}
	return genealogy.PersonPatch{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		MaidenName:     req.MaidenName,
		Gender:         req.Gender,
		BirthDate:      birth,
		BirthPlace:     req.BirthPlace,
		DeathDate:      death,
		ClearDeathDate: req.ClearDeathDate,
		DeathPlace:     req.DeathPlace,
		Biography:      req.Biography,
		Occupation:     req.Occupation,
		PhotoURL:       req.PhotoURL,
		Notes:          req.Notes,
		IsAlive:        req.IsAlive,
		LinkedUserID:   req.LinkedUserID,
	}, ""
}

// List returns a page of the tree's persons.
// GET /v1/trees/{treeID}/persons?limit=N&offset=M
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

	result, err := h.persons.List(r.Context(), userID, treeID, page)
	if err != nil {
		httputil.Fail(w, r, h.logger, err)
		return
	}

	resp := ListResponse{
		Persons: make([]common.PersonResponse, len(result.Persons)),
		Total:   result.Total,
		Limit:   result.Page.Limit,
		Offset:  result.Page.Offset,
	}
	for i, p := range result.Persons {
		resp.Persons[i] = common.NewPersonResponse(p)
	}
	httputil.JSON(w, http.StatusOK, resp)
}

// Create adds a person, optionally with relationships to existing persons.
// POST /v1/trees/{treeID}/persons
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
	in, msg := req.input()
	if msg != "" {
		httputil.Error(w, http.StatusBadRequest, msg)
		return
	}

	person, rels, err := h.persons.Create(r.Context(), userID, treeID, in)
	if err != nil {
		httputil.Fail(w, r, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusCreated, CreateResponse{
		Person:        common.NewPersonResponse(person),
		Relationships: common.NewRelationshipResponses(rels),
	})
}

// Get returns one person.
// GET /v1/trees/{treeID}/persons/{personID}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
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

	person, err := h.persons.Get(r.Context(), userID, treeID, personID)
	if err != nil {
		httputil.Fail(w, r, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, common.NewPersonResponse(person))
}

// Update applies a partial update to a person.
// PATCH /v1/trees/{treeID}/persons/{personID}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
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

	var req UpdateRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	patch, msg := req.patch()
	if msg != "" {
		httputil.Error(w, http.StatusBadRequest, msg)
		return
	}

	person, err := h.persons.Update(r.Context(), userID, treeID, personID, patch)
	if err != nil {
		httputil.Fail(w, r, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, common.NewPersonResponse(person))
}

// Delete removes a person together with its relationships and invites.
// DELETE /v1/trees/{treeID}/persons/{personID}
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
	personID, ok := httputil.UUIDParam(w, r, "personID")
	if !ok {
		return
	}

	if err := h.persons.Delete(r.Context(), userID, treeID, personID); err != nil {
		httputil.Fail(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
