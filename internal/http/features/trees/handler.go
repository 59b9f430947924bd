package trees

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/simple-genealogy/internal/http/features/common"
	"github.com/tendant/simple-genealogy/internal/http/middleware"
	"github.com/tendant/simple-genealogy/internal/httputil"
	"github.com/tendant/simple-genealogy/pkg/genealogy"
	"go.uber.org/zap"
)

// Handler serves tree-level reads: membership listing, assembly, stats and traversal.
type Handler struct {
	logger *zap.Logger
	gate   *genealogy.AccessGate
	trees  *genealogy.TreeService
}

// NewHandler creates a new trees handler.
func NewHandler(logger *zap.Logger, gate *genealogy.AccessGate, trees *genealogy.TreeService) *Handler {
	return &Handler{logger: logger, gate: gate, trees: trees}
}

// RegisterRoutes registers routes scoped to /v1/trees/{treeID}.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Get)
	r.Get("/stats", h.Stats)
	r.Get("/persons/{personID}/ancestors", h.Ancestors)
	r.Get("/persons/{personID}/descendants", h.Descendants)
}

// TreeResponse is an assembled tree.
type TreeResponse struct {
	TreeID  string                      `json:"tree_id"`
	Persons []common.PersonViewResponse `json:"persons"`
}

// TraversalResponse lists the relatives reached from a person.
type TraversalResponse struct {
	PersonID  string                    `json:"person_id"`
	Relatives []common.RelativeResponse `json:"relatives"`
}

// Mine lists the trees the caller belongs to, creating their personal tree on first use.
// GET /v1/trees/mine
func (h *Handler) Mine(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	memberships, err := h.gate.ListTreesForUser(r.Context(), userID)
	if err != nil {
		httputil.Fail(w, r, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, common.NewMembershipResponses(memberships))
}

// Get returns every person of the tree with neighbours resolved.
// GET /v1/trees/{treeID}
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

	views, err := h.trees.AssembleTree(r.Context(), userID, treeID)
	if err != nil {
		httputil.Fail(w, r, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, TreeResponse{
		TreeID:  treeID.String(),
		Persons: common.NewPersonViewResponses(views),
	})
}

// Stats returns person and relationship counts.
// GET /v1/trees/{treeID}/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	treeID, ok := httputil.UUIDParam(w, r, "treeID")
	if !ok {
		return
	}

	stats, err := h.trees.Stats(r.Context(), userID, treeID)
	if err != nil {
		httputil.Fail(w, r, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, stats)
}

// Ancestors walks parent edges up from a person.
// GET /v1/trees/{treeID}/persons/{personID}/ancestors?depth=N
func (h *Handler) Ancestors(w http.ResponseWriter, r *http.Request) {
	h.traverse(w, r, genealogy.DirectionAncestors)
}

// Descendants walks parent edges down from a person.
// GET /v1/trees/{treeID}/persons/{personID}/descendants?depth=N
func (h *Handler) Descendants(w http.ResponseWriter, r *http.Request) {
	h.traverse(w, r, genealogy.DirectionDescendants)
}

func (h *Handler) traverse(w http.ResponseWriter, r *http.Request, dir genealogy.Direction) {
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
	depth, ok := httputil.IntQuery(w, r, "depth", 0)
	if !ok {
		return
	}

	var (
		relatives []genealogy.Relative
		err       error
	)
	if dir == genealogy.DirectionAncestors {
		relatives, err = h.trees.Ancestors(r.Context(), userID, treeID, personID, depth)
	} else {
		relatives, err = h.trees.Descendants(r.Context(), userID, treeID, personID, depth)
	}
	if err != nil {
		httputil.Fail(w, r, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, TraversalResponse{
		PersonID:  personID.String(),
		Relatives: common.NewRelativeResponses(relatives),
	})
}
