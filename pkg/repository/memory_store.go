package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-genealogy/pkg/domain"
)

type membershipKey struct {
	treeID uuid.UUID
	userID uuid.UUID
}

// memState is the full data set of a MemoryStore. Records are stored by value so a
// shallow map copy is an independent snapshot.
type memState struct {
	persons       map[uuid.UUID]domain.Person
	relationships map[uuid.UUID]domain.Relationship
	memberships   map[membershipKey]domain.Membership
	invites       map[uuid.UUID]domain.InviteLink
}

func newMemState() *memState {
	return &memState{
		persons:       map[uuid.UUID]domain.Person{},
		relationships: map[uuid.UUID]domain.Relationship{},
		memberships:   map[membershipKey]domain.Membership{},
		invites:       map[uuid.UUID]domain.InviteLink{},
	}
}

func (s *memState) clone() *memState {
	c := &memState{
		persons:       make(map[uuid.UUID]domain.Person, len(s.persons)),
		relationships: make(map[uuid.UUID]domain.Relationship, len(s.relationships)),
		memberships:   make(map[membershipKey]domain.Membership, len(s.memberships)),
		invites:       make(map[uuid.UUID]domain.InviteLink, len(s.invites)),
	}
	for k, v := range s.persons {
		c.persons[k] = v
	}
	for k, v := range s.relationships {
		c.relationships[k] = v
	}
	for k, v := range s.memberships {
		c.memberships[k] = v
	}
	for k, v := range s.invites {
		c.invites[k] = v
	}
	return c
}

// memAccess runs reads and writes against a memState under whatever locking the owner needs.
type memAccess interface {
	read(fn func(*memState) error) error
	write(fn func(*memState) error) error
}

// MemoryStore is an in-process Store with the same invariants as the Postgres schema.
// It backs tests and local development without a database.
type MemoryStore struct {
	mu    sync.RWMutex
	state *memState
}

// NewMemoryStore creates an empty memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemState()}
}

func (s *MemoryStore) read(fn func(*memState) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.state)
}

func (s *MemoryStore) write(fn func(*memState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.state)
}

func (s *MemoryStore) Persons() PersonStore             { return &memPersons{s} }
func (s *MemoryStore) Relationships() RelationshipStore { return &memRelationships{s} }
func (s *MemoryStore) Memberships() MembershipStore     { return &memMemberships{s} }
func (s *MemoryStore) Invites() InviteStore             { return &memInvites{s} }

// InTx runs fn against a private copy of the state and publishes it only if fn succeeds.
// Writers are serialized for the duration of fn.
func (s *MemoryStore) InTx(_ context.Context, fn func(Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &memTx{state: s.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

// memTx is the Store handed to InTx callbacks. The store mutex is already held.
type memTx struct {
	state *memState
}

func (t *memTx) read(fn func(*memState) error) error  { return fn(t.state) }
func (t *memTx) write(fn func(*memState) error) error { return fn(t.state) }

func (t *memTx) Persons() PersonStore             { return &memPersons{t} }
func (t *memTx) Relationships() RelationshipStore { return &memRelationships{t} }
func (t *memTx) Memberships() MembershipStore     { return &memMemberships{t} }
func (t *memTx) Invites() InviteStore             { return &memInvites{t} }

func (t *memTx) InTx(_ context.Context, fn func(Store) error) error {
	return fn(t)
}

func pageOf[T any](all []T, page domain.Page) []T {
	page = page.Normalize()
	if page.Offset >= len(all) {
		return nil
	}
	end := page.Offset + page.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[page.Offset:end]
}

// Persons

type memPersons struct{ m memAccess }

func linkedElsewhere(st *memState, userID *uuid.UUID, personID uuid.UUID) bool {
	if userID == nil {
		return false
	}
	for _, p := range st.persons {
		if p.ID != personID && p.LinkedUserID != nil && *p.LinkedUserID == *userID {
			return true
		}
	}
	return false
}

func (r *memPersons) Create(_ context.Context, person *domain.Person) error {
	return r.m.write(func(st *memState) error {
		if _, ok := st.persons[person.ID]; ok {
			return domain.Errorf(domain.KindConflict, "person %s already exists", person.ID)
		}
		if linkedElsewhere(st, person.LinkedUserID, person.ID) {
			return domain.ErrUserAlreadyLinked
		}
		st.persons[person.ID] = *person
		return nil
	})
}

func (r *memPersons) GetByID(_ context.Context, id uuid.UUID) (*domain.Person, error) {
	var out *domain.Person
	err := r.m.read(func(st *memState) error {
		p, ok := st.persons[id]
		if !ok {
			return domain.ErrPersonNotFound
		}
		out = &p
		return nil
	})
	return out, err
}

// GetByIDForUpdate needs no row lock: InTx already serializes writers.
func (r *memPersons) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Person, error) {
	return r.GetByID(ctx, id)
}

func (r *memPersons) GetByLinkedUser(_ context.Context, userID uuid.UUID) (*domain.Person, error) {
	var out *domain.Person
	err := r.m.read(func(st *memState) error {
		for _, p := range st.persons {
			if p.LinkedUserID != nil && *p.LinkedUserID == userID {
				out = &p
				return nil
			}
		}
		return domain.ErrPersonNotFound
	})
	return out, err
}

func (r *memPersons) byTree(st *memState, treeID uuid.UUID) []*domain.Person {
	var all []*domain.Person
	for _, p := range st.persons {
		if p.TreeID == treeID {
			all = append(all, &p)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if c := strings.Compare(a.LastName, b.LastName); c != 0 {
			return c < 0
		}
		if c := strings.Compare(a.FirstName, b.FirstName); c != 0 {
			return c < 0
		}
		return a.ID.String() < b.ID.String()
	})
	return all
}

func (r *memPersons) ListByTree(_ context.Context, treeID uuid.UUID, page domain.Page) ([]*domain.Person, error) {
	var out []*domain.Person
	err := r.m.read(func(st *memState) error {
		out = pageOf(r.byTree(st, treeID), page)
		return nil
	})
	return out, err
}

func (r *memPersons) ListAllByTree(_ context.Context, treeID uuid.UUID) ([]*domain.Person, error) {
	var out []*domain.Person
	err := r.m.read(func(st *memState) error {
		out = r.byTree(st, treeID)
		return nil
	})
	return out, err
}

func (r *memPersons) CountByTree(_ context.Context, treeID uuid.UUID) (int, error) {
	var n int
	err := r.m.read(func(st *memState) error {
		for _, p := range st.persons {
			if p.TreeID == treeID {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *memPersons) Update(_ context.Context, person *domain.Person) error {
	return r.m.write(func(st *memState) error {
		if _, ok := st.persons[person.ID]; !ok {
			return domain.ErrPersonNotFound
		}
		if linkedElsewhere(st, person.LinkedUserID, person.ID) {
			return domain.ErrUserAlreadyLinked
		}
		st.persons[person.ID] = *person
		return nil
	})
}

// Delete removes the person and, like the foreign key cascade, its relationships.
func (r *memPersons) Delete(_ context.Context, id uuid.UUID) error {
	return r.m.write(func(st *memState) error {
		if _, ok := st.persons[id]; !ok {
			return domain.ErrPersonNotFound
		}
		delete(st.persons, id)
		for relID, rel := range st.relationships {
			if rel.Involves(id) {
				delete(st.relationships, relID)
			}
		}
		return nil
	})
}

func (r *memPersons) LinkUser(_ context.Context, personID, userID uuid.UUID, at time.Time) error {
	return r.m.write(func(st *memState) error {
		p, ok := st.persons[personID]
		if !ok {
			return domain.ErrPersonNotFound
		}
		if p.LinkedUserID != nil {
			return domain.ErrPersonAlreadyLinked
		}
		if linkedElsewhere(st, &userID, personID) {
			return domain.ErrUserAlreadyLinked
		}
		p.LinkedUserID = &userID
		p.Source = domain.SourcePlatformUser
		p.IsAlive = true
		p.PendingInviteID = nil
		p.PendingInviteEmail = nil
		p.UpdatedAt = at
		st.persons[personID] = p
		return nil
	})
}

func (r *memPersons) SetPendingInvite(_ context.Context, personID, inviteID uuid.UUID, email *string) error {
	return r.m.write(func(st *memState) error {
		p, ok := st.persons[personID]
		if !ok {
			return domain.ErrPersonNotFound
		}
		p.PendingInviteID = &inviteID
		p.PendingInviteEmail = email
		p.UpdatedAt = time.Now().UTC()
		st.persons[personID] = p
		return nil
	})
}

func (r *memPersons) ClearPendingInvite(_ context.Context, personID uuid.UUID) error {
	return r.m.write(func(st *memState) error {
		p, ok := st.persons[personID]
		if !ok {
			return domain.ErrPersonNotFound
		}
		p.PendingInviteID = nil
		p.PendingInviteEmail = nil
		p.UpdatedAt = time.Now().UTC()
		st.persons[personID] = p
		return nil
	})
}

// Relationships

type memRelationships struct{ m memAccess }

func (r *memRelationships) Create(_ context.Context, rel *domain.Relationship) error {
	return r.m.write(func(st *memState) error {
		if rel.Person1ID == rel.Person2ID {
			return domain.ErrSelfRelationship
		}
		p1, ok1 := st.persons[rel.Person1ID]
		p2, ok2 := st.persons[rel.Person2ID]
		if !ok1 || !ok2 || p1.TreeID != rel.TreeID || p2.TreeID != rel.TreeID {
			return domain.ErrCrossTreeRelationship
		}
		for _, existing := range st.relationships {
			if existing.Person1ID == rel.Person1ID && existing.Person2ID == rel.Person2ID && existing.Type == rel.Type {
				return domain.ErrRelationshipExists
			}
		}
		st.relationships[rel.ID] = *rel
		return nil
	})
}

func (r *memRelationships) GetByID(_ context.Context, id uuid.UUID) (*domain.Relationship, error) {
	var out *domain.Relationship
	err := r.m.read(func(st *memState) error {
		rel, ok := st.relationships[id]
		if !ok {
			return domain.ErrRelationshipNotFound
		}
		out = &rel
		return nil
	})
	return out, err
}

func (r *memRelationships) collect(st *memState, keep func(domain.Relationship) bool) []*domain.Relationship {
	var all []*domain.Relationship
	for _, rel := range st.relationships {
		if keep(rel) {
			all = append(all, &rel)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].ID.String() < all[j].ID.String()
	})
	return all
}

func (r *memRelationships) ListByTree(_ context.Context, treeID uuid.UUID, page domain.Page) ([]*domain.Relationship, error) {
	var out []*domain.Relationship
	err := r.m.read(func(st *memState) error {
		out = pageOf(r.collect(st, func(rel domain.Relationship) bool { return rel.TreeID == treeID }), page)
		return nil
	})
	return out, err
}

func (r *memRelationships) ListByPerson(_ context.Context, personID uuid.UUID) ([]*domain.Relationship, error) {
	var out []*domain.Relationship
	err := r.m.read(func(st *memState) error {
		out = r.collect(st, func(rel domain.Relationship) bool { return rel.Involves(personID) })
		return nil
	})
	return out, err
}

func (r *memRelationships) ListBetween(_ context.Context, a, b uuid.UUID) ([]*domain.Relationship, error) {
	var out []*domain.Relationship
	err := r.m.read(func(st *memState) error {
		out = r.collect(st, func(rel domain.Relationship) bool {
			return (rel.Person1ID == a && rel.Person2ID == b) || (rel.Person1ID == b && rel.Person2ID == a)
		})
		return nil
	})
	return out, err
}

func (r *memRelationships) CountByTree(_ context.Context, treeID uuid.UUID) (int, error) {
	var n int
	err := r.m.read(func(st *memState) error {
		for _, rel := range st.relationships {
			if rel.TreeID == treeID {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *memRelationships) Delete(_ context.Context, id uuid.UUID) error {
	return r.m.write(func(st *memState) error {
		if _, ok := st.relationships[id]; !ok {
			return domain.ErrRelationshipNotFound
		}
		delete(st.relationships, id)
		return nil
	})
}

func (r *memRelationships) DeleteByPerson(_ context.Context, personID uuid.UUID) (int64, error) {
	var n int64
	err := r.m.write(func(st *memState) error {
		for id, rel := range st.relationships {
			if rel.Involves(personID) {
				delete(st.relationships, id)
				n++
			}
		}
		return nil
	})
	return n, err
}

// Memberships

type memMemberships struct{ m memAccess }

func (r *memMemberships) CreateIfAbsent(_ context.Context, m *domain.Membership) (*domain.Membership, bool, error) {
	var (
		out     domain.Membership
		created bool
	)
	err := r.m.write(func(st *memState) error {
		key := membershipKey{m.TreeID, m.UserID}
		if existing, ok := st.memberships[key]; ok {
			out = existing
			return nil
		}
		st.memberships[key] = *m
		out, created = *m, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &out, created, nil
}

func (r *memMemberships) Get(_ context.Context, treeID, userID uuid.UUID) (*domain.Membership, error) {
	var out *domain.Membership
	err := r.m.read(func(st *memState) error {
		m, ok := st.memberships[membershipKey{treeID, userID}]
		if !ok {
			return domain.ErrMembershipNotFound
		}
		out = &m
		return nil
	})
	return out, err
}

func (r *memMemberships) list(keep func(domain.Membership) bool) ([]*domain.Membership, error) {
	var out []*domain.Membership
	err := r.m.read(func(st *memState) error {
		for _, m := range st.memberships {
			if keep(m) {
				out = append(out, &m)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, err
}

func (r *memMemberships) ListByTree(_ context.Context, treeID uuid.UUID) ([]*domain.Membership, error) {
	return r.list(func(m domain.Membership) bool { return m.TreeID == treeID })
}

func (r *memMemberships) ListByUser(_ context.Context, userID uuid.UUID) ([]*domain.Membership, error) {
	return r.list(func(m domain.Membership) bool { return m.UserID == userID })
}

func (r *memMemberships) UpdateRole(_ context.Context, treeID, userID uuid.UUID, role domain.Role) error {
	return r.m.write(func(st *memState) error {
		key := membershipKey{treeID, userID}
		m, ok := st.memberships[key]
		if !ok {
			return domain.ErrMembershipNotFound
		}
		m.Role = role
		st.memberships[key] = m
		return nil
	})
}

func (r *memMemberships) Delete(_ context.Context, treeID, userID uuid.UUID) error {
	return r.m.write(func(st *memState) error {
		key := membershipKey{treeID, userID}
		if _, ok := st.memberships[key]; !ok {
			return domain.ErrMembershipNotFound
		}
		delete(st.memberships, key)
		return nil
	})
}

// Invites

type memInvites struct{ m memAccess }

func (r *memInvites) Create(_ context.Context, inv *domain.InviteLink) error {
	return r.m.write(func(st *memState) error {
		for _, existing := range st.invites {
			if existing.TokenHash == inv.TokenHash {
				return domain.Errorf(domain.KindConflict, "invite token collision")
			}
			if inv.Status == domain.InviteStatusPending && existing.PersonID == inv.PersonID &&
				existing.Status == domain.InviteStatusPending {
				return domain.ErrInvitePending
			}
		}
		st.invites[inv.ID] = *inv
		return nil
	})
}

func (r *memInvites) find(match func(domain.InviteLink) bool) (*domain.InviteLink, error) {
	var out *domain.InviteLink
	err := r.m.read(func(st *memState) error {
		for _, inv := range st.invites {
			if match(inv) {
				out = &inv
				return nil
			}
		}
		return domain.ErrInviteNotFound
	})
	return out, err
}

func (r *memInvites) GetByID(_ context.Context, id uuid.UUID) (*domain.InviteLink, error) {
	return r.find(func(inv domain.InviteLink) bool { return inv.ID == id })
}

func (r *memInvites) GetByTokenHash(_ context.Context, tokenHash string) (*domain.InviteLink, error) {
	return r.find(func(inv domain.InviteLink) bool { return inv.TokenHash == tokenHash })
}

func (r *memInvites) GetPendingForPerson(_ context.Context, personID uuid.UUID) (*domain.InviteLink, error) {
	return r.find(func(inv domain.InviteLink) bool {
		return inv.PersonID == personID && inv.Status == domain.InviteStatusPending
	})
}

func (r *memInvites) ListByTree(_ context.Context, treeID uuid.UUID) ([]*domain.InviteLink, error) {
	var out []*domain.InviteLink
	err := r.m.read(func(st *memState) error {
		for _, inv := range st.invites {
			if inv.TreeID == treeID {
				out = append(out, &inv)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, err
}

func (r *memInvites) MarkExpired(_ context.Context, id uuid.UUID) error {
	return r.m.write(func(st *memState) error {
		inv, ok := st.invites[id]
		if ok && inv.Status == domain.InviteStatusPending {
			inv.Status = domain.InviteStatusExpired
			st.invites[id] = inv
		}
		return nil
	})
}

func (r *memInvites) MarkAccepted(_ context.Context, id, userID uuid.UUID, at time.Time) error {
	return r.m.write(func(st *memState) error {
		inv, ok := st.invites[id]
		if !ok || inv.Status != domain.InviteStatusPending {
			return domain.ErrInviteNotPending
		}
		inv.Status = domain.InviteStatusAccepted
		inv.AcceptedBy = &userID
		inv.AcceptedAt = &at
		st.invites[id] = inv
		return nil
	})
}

func (r *memInvites) ExpireForPerson(_ context.Context, personID uuid.UUID) (int64, error) {
	var n int64
	err := r.m.write(func(st *memState) error {
		for id, inv := range st.invites {
			if inv.PersonID == personID && inv.Status == domain.InviteStatusPending {
				inv.Status = domain.InviteStatusExpired
				st.invites[id] = inv
				n++
			}
		}
		return nil
	})
	return n, err
}

// MemoryUsers is an in-process UserDirectory.
type MemoryUsers struct {
	mu    sync.RWMutex
	users map[uuid.UUID]domain.User
}

// NewMemoryUsers creates a directory seeded with users.
func NewMemoryUsers(users ...*domain.User) *MemoryUsers {
	d := &MemoryUsers{users: map[uuid.UUID]domain.User{}}
	for _, u := range users {
		d.Add(u)
	}
	return d
}

// Add registers or replaces a user.
func (d *MemoryUsers) Add(u *domain.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = *u
}

func (d *MemoryUsers) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[id]
	if !ok || !u.IsActive() {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (d *MemoryUsers) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, err := d.GetByID(ctx, id)
	if err != nil {
		return false, nil
	}
	return true, nil
}
