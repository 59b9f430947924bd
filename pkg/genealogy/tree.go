package genealogy

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-genealogy/pkg/domain"
	"golang.org/x/sync/errgroup"
)

// PersonView is a person with its neighbours resolved in both directions.
type PersonView struct {
	Person   *domain.Person `json:"person"`
	Parents  []uuid.UUID    `json:"parents"`
	Children []uuid.UUID    `json:"children"`
	Spouses  []uuid.UUID    `json:"spouses"`
	Siblings []uuid.UUID    `json:"siblings"`
}

// Relative is a traversal result. Generation counts hops from the starting person.
type Relative struct {
	Person     *domain.Person `json:"person"`
	Generation int            `json:"generation"`
}

// TreeStats summarizes a tree.
type TreeStats struct {
	Persons       int `json:"persons"`
	Relationships int `json:"relationships"`
	Living        int `json:"living"`
	Linked        int `json:"linked"`
}

// TreeService assembles and walks trees.
type TreeService struct {
	*env
	gate *AccessGate
}

type treeData struct {
	persons []*domain.Person
	rels    []*domain.Relationship
}

// load fetches the persons and every relationship page of a tree concurrently.
func (s *TreeService) load(ctx context.Context, treeID uuid.UUID) (*treeData, error) {
	data := &treeData{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		persons, err := s.store.Persons().ListAllByTree(gctx, treeID)
		data.persons = persons
		return err
	})
	g.Go(func() error {
		size := min(s.cfg.RelationshipPageSize, domain.MaxPageSize)
		for offset := 0; ; offset += size {
			page, err := s.store.Relationships().ListByTree(gctx, treeID, domain.Page{Limit: size, Offset: offset})
			if err != nil {
				return err
			}
			data.rels = append(data.rels, page...)
			if len(page) < size {
				return nil
			}
		}
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return data, nil
}

// AssembleTree returns every person of the tree with parents, children, spouses and
// siblings resolved, ordered by name.
func (s *TreeService) AssembleTree(ctx context.Context, actorID, treeID uuid.UUID) ([]*PersonView, error) {
	if _, err := s.gate.EnsureAccess(ctx, treeID, actorID, ReadRoles...); err != nil {
		return nil, err
	}
	start := time.Now()
	data, err := s.load(ctx, treeID)
	if err != nil {
		return nil, err
	}
	views := Assemble(data.persons, data.rels)
	assemblyDuration.Observe(time.Since(start).Seconds())
	assemblySize.Observe(float64(len(views)))
	return views, nil
}

// Assemble builds person views in one pass over the edges. Edges whose endpoints are not
// among persons are ignored.
func Assemble(persons []*domain.Person, rels []*domain.Relationship) []*PersonView {
	byID := make(map[uuid.UUID]*PersonView, len(persons))
	for _, p := range persons {
		byID[p.ID] = &PersonView{
			Person:   p,
			Parents:  []uuid.UUID{},
			Children: []uuid.UUID{},
			Spouses:  []uuid.UUID{},
			Siblings: []uuid.UUID{},
		}
	}

	for _, rel := range rels {
		a, okA := byID[rel.Person1ID]
		b, okB := byID[rel.Person2ID]
		if !okA || !okB {
			continue
		}
		switch rel.Type {
		case domain.RelParent:
			b.Parents = appendUnique(b.Parents, a.Person.ID)
			a.Children = appendUnique(a.Children, b.Person.ID)
		case domain.RelChild:
			a.Parents = appendUnique(a.Parents, b.Person.ID)
			b.Children = appendUnique(b.Children, a.Person.ID)
		case domain.RelSpouse:
			a.Spouses = appendUnique(a.Spouses, b.Person.ID)
			b.Spouses = appendUnique(b.Spouses, a.Person.ID)
		case domain.RelSibling:
			a.Siblings = appendUnique(a.Siblings, b.Person.ID)
			b.Siblings = appendUnique(b.Siblings, a.Person.ID)
		}
	}

	views := make([]*PersonView, 0, len(byID))
	for _, v := range byID {
		views = append(views, v)
	}
	sort.Slice(views, func(i, j int) bool { return personLess(views[i].Person, views[j].Person) })
	return views
}

func appendUnique(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

func personLess(a, b *domain.Person) bool {
	if a.LastName != b.LastName {
		return a.LastName < b.LastName
	}
	if a.FirstName != b.FirstName {
		return a.FirstName < b.FirstName
	}
	return a.ID.String() < b.ID.String()
}

// Direction selects which parent/child edges a traversal follows.
type Direction string

const (
	DirectionAncestors   Direction = "ancestors"
	DirectionDescendants Direction = "descendants"
)

// Descendants walks child edges breadth-first from personID.
func (s *TreeService) Descendants(ctx context.Context, actorID, treeID, personID uuid.UUID, maxDepth int) ([]Relative, error) {
	return s.traverse(ctx, actorID, treeID, personID, maxDepth, DirectionDescendants)
}

// Ancestors walks parent edges breadth-first from personID.
func (s *TreeService) Ancestors(ctx context.Context, actorID, treeID, personID uuid.UUID, maxDepth int) ([]Relative, error) {
	return s.traverse(ctx, actorID, treeID, personID, maxDepth, DirectionAncestors)
}

func (s *TreeService) clampDepth(depth int) int {
	if depth <= 0 {
		return s.cfg.DefaultTraversalDepth
	}
	if depth > s.cfg.MaxTraversalDepth {
		return s.cfg.MaxTraversalDepth
	}
	return depth
}

func (s *TreeService) traverse(ctx context.Context, actorID, treeID, personID uuid.UUID, maxDepth int, dir Direction) ([]Relative, error) {
	if _, err := s.gate.EnsureAccess(ctx, treeID, actorID, ReadRoles...); err != nil {
		return nil, err
	}
	if _, err := personInTree(ctx, s.store, treeID, personID); err != nil {
		return nil, err
	}
	data, err := s.load(ctx, treeID)
	if err != nil {
		return nil, err
	}
	out := Traverse(data.persons, data.rels, personID, s.clampDepth(maxDepth), dir)
	traversalSize.WithLabelValues(string(dir)).Observe(float64(len(out)))
	return out, nil
}

// Traverse runs a breadth-first walk over parent/child edges, stopping after maxDepth
// hops. Each person is reported once, at the generation it is first reached, so cyclic
// data terminates. The start person is not included.
func Traverse(persons []*domain.Person, rels []*domain.Relationship, start uuid.UUID, maxDepth int, dir Direction) []Relative {
	byID := make(map[uuid.UUID]*domain.Person, len(persons))
	for _, p := range persons {
		byID[p.ID] = p
	}

	next := make(map[uuid.UUID][]uuid.UUID)
	for _, rel := range rels {
		parent, child, ok := rel.ParentChild()
		if !ok {
			continue
		}
		if dir == DirectionDescendants {
			next[parent] = appendUnique(next[parent], child)
		} else {
			next[child] = appendUnique(next[child], parent)
		}
	}

	visited := map[uuid.UUID]bool{start: true}
	frontier := []uuid.UUID{start}
	out := []Relative{}
	for gen := 1; gen <= maxDepth && len(frontier) > 0; gen++ {
		var level []Relative
		var upcoming []uuid.UUID
		for _, id := range frontier {
			for _, n := range next[id] {
				if visited[n] {
					continue
				}
				visited[n] = true
				p, ok := byID[n]
				if !ok {
					continue
				}
				level = append(level, Relative{Person: p, Generation: gen})
				upcoming = append(upcoming, n)
			}
		}
		sort.Slice(level, func(i, j int) bool { return personLess(level[i].Person, level[j].Person) })
		out = append(out, level...)
		frontier = upcoming
	}
	return out
}

// Stats counts the persons and edges of a tree.
func (s *TreeService) Stats(ctx context.Context, actorID, treeID uuid.UUID) (*TreeStats, error) {
	if _, err := s.gate.EnsureAccess(ctx, treeID, actorID, ReadRoles...); err != nil {
		return nil, err
	}

	var (
		persons []*domain.Person
		relN    int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		persons, err = s.store.Persons().ListAllByTree(gctx, treeID)
		return err
	})
	g.Go(func() error {
		var err error
		relN, err = s.store.Relationships().CountByTree(gctx, treeID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats := &TreeStats{Persons: len(persons), Relationships: relN}
	for _, p := range persons {
		if p.IsAlive {
			stats.Living++
		}
		if p.IsLinked() {
			stats.Linked++
		}
	}
	return stats, nil
}
