package genealogy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-genealogy/pkg/domain"
	"github.com/tendant/simple-genealogy/pkg/repository"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, ev Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return n.err
}

func (n *recordingNotifier) Events() []Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Event(nil), n.events...)
}

type recordingAuditor struct {
	mu     sync.Mutex
	events []AuditEvent
	err    error
}

func (a *recordingAuditor) Record(_ context.Context, ev AuditEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, ev)
	return a.err
}

func (a *recordingAuditor) Find(action AuditAction, resourceType string) []AuditEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []AuditEvent
	for _, ev := range a.events {
		if ev.Action == action && ev.ResourceType == resourceType {
			out = append(out, ev)
		}
	}
	return out
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []InviteEmail
	err  error
}

func (m *recordingMailer) SendInviteEmail(_ context.Context, msg InviteEmail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return m.err
}

type fixture struct {
	store    *repository.MemoryStore
	users    *repository.MemoryUsers
	notifier *recordingNotifier
	auditor  *recordingAuditor
	mailer   *recordingMailer
	clock    *fakeClock
	engine   *Engine
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithConfig(t, DefaultConfig())
}

func newFixtureWithConfig(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{
		store:    repository.NewMemoryStore(),
		users:    repository.NewMemoryUsers(),
		notifier: &recordingNotifier{},
		auditor:  &recordingAuditor{},
		mailer:   &recordingMailer{},
		clock:    &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)},
	}
	f.engine = New(cfg, Deps{
		Store:    f.store,
		Users:    f.users,
		Notifier: f.notifier,
		Auditor:  f.auditor,
		Mailer:   f.mailer,
		Now:      f.clock.Now,
	})
	return f
}

// newUser registers a platform account and returns its id.
func (f *fixture) newUser(name string) uuid.UUID {
	id := uuid.New()
	f.users.Add(&domain.User{ID: id, Email: name + "@example.com", Name: &name, CreatedAt: f.clock.Now()})
	return id
}

func (f *fixture) addPerson(t *testing.T, actor, tree uuid.UUID, first, last string) *domain.Person {
	t.Helper()
	p, _, err := f.engine.Persons.Create(context.Background(), actor, tree, PersonInput{FirstName: first, LastName: last})
	require.NoError(t, err)
	return p
}

func (f *fixture) relate(t *testing.T, actor, tree uuid.UUID, p1, p2 *domain.Person, typ domain.RelationshipType) *domain.Relationship {
	t.Helper()
	rel, err := f.engine.Relationships.Create(context.Background(), actor, tree, RelationshipInput{
		Person1ID: p1.ID, Person2ID: p2.ID, Type: typ,
	})
	require.NoError(t, err)
	return rel
}

func (f *fixture) grant(t *testing.T, tree, owner, user uuid.UUID, role domain.Role) {
	t.Helper()
	_, err := f.engine.Access.Grant(context.Background(), tree, owner, user, role)
	require.NoError(t, err)
}

func requireKind(t *testing.T, err error, kind domain.Kind) {
	t.Helper()
	require.Error(t, err)
	var de *domain.Error
	require.True(t, errors.As(err, &de), "expected a domain error, got %v", err)
	require.Equal(t, kind, de.Kind, "unexpected kind for %v", err)
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}
