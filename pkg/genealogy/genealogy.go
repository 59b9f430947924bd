// Package genealogy implements the family tree engine: access control over trees,
// persons and relationships, tree assembly and traversal, and the invitation workflow
// that links tree persons to platform accounts.
package genealogy

import (
	"context"
	"time"

	"github.com/tendant/simple-genealogy/pkg/repository"
	"go.uber.org/zap"
)

// Config tunes the engine. Zero values fall back to DefaultConfig.
type Config struct {
	InviteTTL             time.Duration
	MaxInviteTTL          time.Duration
	DefaultTraversalDepth int
	MaxTraversalDepth     int
	RelationshipPageSize  int
	AppBaseURL            string
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		InviteTTL:             7 * 24 * time.Hour,
		MaxInviteTTL:          30 * 24 * time.Hour,
		DefaultTraversalDepth: 5,
		MaxTraversalDepth:     25,
		RelationshipPageSize:  500,
		AppBaseURL:            "http://localhost:3000",
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.InviteTTL <= 0 {
		c.InviteTTL = d.InviteTTL
	}
	if c.MaxInviteTTL <= 0 {
		c.MaxInviteTTL = d.MaxInviteTTL
	}
	if c.InviteTTL > c.MaxInviteTTL {
		c.InviteTTL = c.MaxInviteTTL
	}
	if c.DefaultTraversalDepth <= 0 {
		c.DefaultTraversalDepth = d.DefaultTraversalDepth
	}
	if c.MaxTraversalDepth <= 0 {
		c.MaxTraversalDepth = d.MaxTraversalDepth
	}
	if c.DefaultTraversalDepth > c.MaxTraversalDepth {
		c.DefaultTraversalDepth = c.MaxTraversalDepth
	}
	if c.RelationshipPageSize <= 0 {
		c.RelationshipPageSize = d.RelationshipPageSize
	}
	if c.AppBaseURL == "" {
		c.AppBaseURL = d.AppBaseURL
	}
	return c
}

// Deps are the collaborators the engine runs against. Store and Users are required.
type Deps struct {
	Store    repository.Store
	Users    repository.UserDirectory
	Notifier Notifier
	Auditor  Auditor
	Mailer   InviteMailer
	Logger   *zap.Logger
	Now      func() time.Time
}

// Engine bundles the services that make up the genealogy core.
type Engine struct {
	Access        *AccessGate
	Persons       *PersonService
	Relationships *RelationshipService
	Trees         *TreeService
	Invites       *InviteService
}

// New wires the services over a shared set of dependencies.
func New(cfg Config, deps Deps) *Engine {
	e := newEnv(cfg.withDefaults(), deps)
	gate := &AccessGate{env: e}
	rels := &RelationshipService{env: e, gate: gate}
	return &Engine{
		Access:        gate,
		Persons:       &PersonService{env: e, gate: gate},
		Relationships: rels,
		Trees:         &TreeService{env: e, gate: gate},
		Invites:       &InviteService{env: e, gate: gate},
	}
}

// env is the state every service shares.
type env struct {
	cfg      Config
	store    repository.Store
	users    repository.UserDirectory
	notifier Notifier
	auditor  Auditor
	mailer   InviteMailer
	log      *zap.Logger
	now      func() time.Time
}

func newEnv(cfg Config, deps Deps) *env {
	e := &env{
		cfg:      cfg,
		store:    deps.Store,
		users:    deps.Users,
		notifier: deps.Notifier,
		auditor:  deps.Auditor,
		mailer:   deps.Mailer,
		log:      deps.Logger,
		now:      deps.Now,
	}
	if e.notifier == nil {
		e.notifier = NopNotifier{}
	}
	if e.auditor == nil {
		e.auditor = NopAuditor{}
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	if e.now == nil {
		e.now = func() time.Time { return time.Now().UTC() }
	}
	return e
}

// notify delivers an event after the fact. Failures are logged and counted, never returned.
func (e *env) notify(ctx context.Context, ev Event) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = e.now()
	}
	if err := e.notifier.Notify(ctx, ev); err != nil {
		collaboratorFailures.WithLabelValues("notifier").Inc()
		e.log.Warn("notification failed",
			zap.String("type", string(ev.Type)),
			zap.String("tree_id", ev.TreeID.String()),
			zap.Error(err),
		)
	}
}

// audit records an audit event. Failures are logged and counted, never returned.
func (e *env) audit(ctx context.Context, ev AuditEvent) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = e.now()
	}
	if err := e.auditor.Record(ctx, ev); err != nil {
		collaboratorFailures.WithLabelValues("auditor").Inc()
		e.log.Warn("audit record failed",
			zap.String("action", string(ev.Action)),
			zap.String("resource_type", ev.ResourceType),
			zap.String("resource_id", ev.ResourceID),
			zap.Error(err),
		)
	}
}
