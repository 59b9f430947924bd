package genealogy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-genealogy/pkg/domain"
	"github.com/tendant/simple-genealogy/pkg/repository"
	"go.uber.org/zap"
)

// IssueInviteInput is the payload for issuing an invite. A zero TTL uses the configured default.
type IssueInviteInput struct {
	Email   *string       `json:"email,omitempty" validate:"omitempty,email,max=254"`
	Message *string       `json:"message,omitempty" validate:"omitempty,max=1000"`
	TTL     time.Duration `json:"-"`
}

// IssuedInvite carries the raw token. It is returned once and never stored.
type IssuedInvite struct {
	Invite *domain.InviteLink
	Token  string
	URL    string
}

// InviteDetails is what an invitee sees before redeeming.
type InviteDetails struct {
	Invite      *domain.InviteLink
	PersonName  string
	InviterName string
}

// Redemption is the result of a successful redemption.
type Redemption struct {
	PersonID   uuid.UUID
	TreeID     uuid.UUID
	Membership *domain.Membership
}

// InviteService issues and redeems invite links.
type InviteService struct {
	*env
	gate *AccessGate
}

func (s *InviteService) clampTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return s.cfg.InviteTTL
	}
	if ttl > s.cfg.MaxInviteTTL {
		return s.cfg.MaxInviteTTL
	}
	return ttl
}

func (s *InviteService) inviteURL(token string) string {
	return strings.TrimRight(s.cfg.AppBaseURL, "/") + "/invites/" + token
}

// Issue creates a single-use invite for an unlinked living person. Owners only. A pending
// invite that has lapsed is expired on the way; a live one is a conflict.
func (s *InviteService) Issue(ctx context.Context, actorID, treeID, personID uuid.UUID, in IssueInviteInput) (*IssuedInvite, error) {
	if _, err := s.gate.EnsureAccess(ctx, treeID, actorID, OwnerRoles...); err != nil {
		return nil, err
	}
	in.normalize()
	if err := validateInput(in); err != nil {
		return nil, err
	}

	token, err := GenerateToken(inviteTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to generate invite token: %w", err)
	}
	now := s.now()
	inv := &domain.InviteLink{
		ID:        uuid.New(),
		TreeID:    treeID,
		PersonID:  personID,
		TokenHash: HashToken(token),
		Email:     in.Email,
		Message:   in.Message,
		Status:    domain.InviteStatusPending,
		InvitedBy: actorID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.clampTTL(in.TTL)),
	}

	var person *domain.Person
	err = s.store.InTx(ctx, func(tx repository.Store) error {
		p, err := lockPersonInTree(ctx, tx, treeID, personID)
		if err != nil {
			return err
		}
		if !p.IsAlive {
			return domain.ErrPersonDeceased
		}
		if p.IsLinked() {
			return domain.ErrPersonAlreadyLinked
		}
		person = p

		existing, err := tx.Invites().GetPendingForPerson(ctx, personID)
		switch {
		case errors.Is(err, domain.ErrInviteNotFound):
		case err != nil:
			return err
		case existing.NeedsExpiry(now):
			if err := tx.Invites().MarkExpired(ctx, existing.ID); err != nil {
				return err
			}
			inviteOutcomes.WithLabelValues("expired").Inc()
		default:
			return domain.ErrInvitePending
		}

		if err := tx.Invites().Create(ctx, inv); err != nil {
			return err
		}
		return tx.Persons().SetPendingInvite(ctx, personID, inv.ID, in.Email)
	})
	if err != nil {
		return nil, err
	}
	inviteOutcomes.WithLabelValues("issued").Inc()

	issued := &IssuedInvite{Invite: inv, Token: token, URL: s.inviteURL(token)}
	s.audit(ctx, AuditEvent{
		Action:       AuditCreate,
		ActorID:      actorID,
		TreeID:       treeID,
		ResourceType: ResourceInvite,
		ResourceID:   inv.ID.String(),
		Changes: map[string]FieldChange{
			"person_id":  {New: personID},
			"email":      {New: strVal(in.Email)},
			"expires_at": {New: inv.ExpiresAt},
		},
	})
	if in.Email != nil && s.mailer != nil {
		s.sendInviteEmail(ctx, issued, person)
	}
	return issued, nil
}

func (s *InviteService) sendInviteEmail(ctx context.Context, issued *IssuedInvite, person *domain.Person) {
	msg := InviteEmail{
		To:          *issued.Invite.Email,
		InviterName: s.userName(ctx, issued.Invite.InvitedBy),
		PersonName:  person.DisplayName(),
		URL:         issued.URL,
		ExpiresAt:   issued.Invite.ExpiresAt,
	}
	if issued.Invite.Message != nil {
		msg.Message = *issued.Invite.Message
	}
	if err := s.mailer.SendInviteEmail(ctx, msg); err != nil {
		collaboratorFailures.WithLabelValues("mailer").Inc()
		s.log.Warn("failed to send invite email",
			zap.String("invite_id", issued.Invite.ID.String()),
			zap.Error(err),
		)
	}
}

func (s *InviteService) userName(ctx context.Context, userID uuid.UUID) string {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return ""
	}
	return u.DisplayName()
}

// resolve finds an invite by raw token and applies the lazy expiry transition. It returns
// the invite only while it is pending and unexpired.
func (s *InviteService) resolve(ctx context.Context, token string) (*domain.InviteLink, error) {
	if token == "" {
		return nil, domain.ErrInviteNotFound
	}
	inv, err := s.store.Invites().GetByTokenHash(ctx, HashToken(token))
	if err != nil {
		return nil, err
	}

	if inv.NeedsExpiry(s.now()) {
		err := s.store.InTx(ctx, func(tx repository.Store) error {
			if err := tx.Invites().MarkExpired(ctx, inv.ID); err != nil {
				return err
			}
			if err := tx.Persons().ClearPendingInvite(ctx, inv.PersonID); err != nil && !errors.Is(err, domain.ErrPersonNotFound) {
				return err
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		inviteOutcomes.WithLabelValues("expired").Inc()
		return nil, domain.ErrInviteExpired
	}

	switch inv.Status {
	case domain.InviteStatusPending:
		return inv, nil
	case domain.InviteStatusExpired:
		return nil, domain.ErrInviteExpired
	default:
		return nil, domain.InviteNotPending(inv.Status)
	}
}

// Lookup returns a pending invite with the names an invitee needs to decide.
func (s *InviteService) Lookup(ctx context.Context, token string) (*InviteDetails, error) {
	inv, err := s.resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	details := &InviteDetails{Invite: inv, InviterName: s.userName(ctx, inv.InvitedBy)}
	if p, err := s.store.Persons().GetByID(ctx, inv.PersonID); err == nil {
		details.PersonName = p.DisplayName()
	}
	return details, nil
}

// Redeem links the invite's person to userID, accepts the invite and grants membership,
// all in one transaction. A concurrent second redemption fails with a conflict.
func (s *InviteService) Redeem(ctx context.Context, token string, userID uuid.UUID) (*Redemption, error) {
	if err := requireIDs(userID); err != nil {
		return nil, err
	}
	inv, err := s.resolve(ctx, token)
	if err != nil {
		inviteOutcomes.WithLabelValues(outcomeOf(err)).Inc()
		return nil, err
	}

	now := s.now()
	var result *Redemption
	err = s.store.InTx(ctx, func(tx repository.Store) error {
		person, err := tx.Persons().GetByIDForUpdate(ctx, inv.PersonID)
		if err != nil {
			return err
		}
		if person.IsLinked() {
			return domain.ErrPersonAlreadyLinked
		}
		other, err := tx.Persons().GetByLinkedUser(ctx, userID)
		switch {
		case errors.Is(err, domain.ErrPersonNotFound):
		case err != nil:
			return err
		default:
			if other.ID != person.ID {
				return domain.ErrUserAlreadyLinked
			}
		}

		if err := tx.Persons().LinkUser(ctx, person.ID, userID, now); err != nil {
			return err
		}
		if err := tx.Invites().MarkAccepted(ctx, inv.ID, userID, now); err != nil {
			return err
		}
		inviter := inv.InvitedBy
		m, _, err := tx.Memberships().CreateIfAbsent(ctx, &domain.Membership{
			TreeID:    inv.TreeID,
			UserID:    userID,
			Role:      domain.RoleMember,
			GrantedBy: &inviter,
			JoinedAt:  now,
		})
		if err != nil {
			return err
		}
		result = &Redemption{PersonID: person.ID, TreeID: inv.TreeID, Membership: m}
		return nil
	})
	if err != nil {
		inviteOutcomes.WithLabelValues(outcomeOf(err)).Inc()
		return nil, err
	}
	inviteOutcomes.WithLabelValues("accepted").Inc()

	owner := inv.InvitedBy
	personID := result.PersonID
	s.notify(ctx, Event{
		Type:        EventInviteAccepted,
		TreeID:      inv.TreeID,
		TreeOwnerID: &owner,
		PersonID:    &personID,
		UserID:      &userID,
	})
	s.audit(ctx, AuditEvent{
		Action:       AuditRedeem,
		ActorID:      userID,
		TreeID:       inv.TreeID,
		ResourceType: ResourceInvite,
		ResourceID:   inv.ID.String(),
		Changes: map[string]FieldChange{
			"status":         {Old: domain.InviteStatusPending, New: domain.InviteStatusAccepted},
			"linked_user_id": {Old: nil, New: userID.String()},
		},
	})
	return result, nil
}

func outcomeOf(err error) string {
	switch domain.KindOf(err) {
	case domain.KindNotFound:
		return "not_found"
	case domain.KindGone:
		return "gone"
	case domain.KindConflict:
		return "conflict"
	}
	return "error"
}

// ListForTree lists every invite of a tree, newest first. Owners only.
func (s *InviteService) ListForTree(ctx context.Context, actorID, treeID uuid.UUID) ([]*domain.InviteLink, error) {
	if _, err := s.gate.EnsureAccess(ctx, treeID, actorID, OwnerRoles...); err != nil {
		return nil, err
	}
	return s.store.Invites().ListByTree(ctx, treeID)
}

// Cancel expires a pending invite ahead of time and clears the person's marker. Owners only.
func (s *InviteService) Cancel(ctx context.Context, actorID, treeID, inviteID uuid.UUID) error {
	if _, err := s.gate.EnsureAccess(ctx, treeID, actorID, OwnerRoles...); err != nil {
		return err
	}
	if err := requireIDs(inviteID); err != nil {
		return err
	}
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		inv, err := tx.Invites().GetByID(ctx, inviteID)
		if err != nil {
			return err
		}
		if inv.TreeID != treeID {
			return domain.ErrInviteNotFound
		}
		if inv.Status != domain.InviteStatusPending {
			return domain.InviteNotPending(inv.Status)
		}
		if err := tx.Invites().MarkExpired(ctx, inv.ID); err != nil {
			return err
		}
		if err := tx.Persons().ClearPendingInvite(ctx, inv.PersonID); err != nil && !errors.Is(err, domain.ErrPersonNotFound) {
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	inviteOutcomes.WithLabelValues("cancelled").Inc()
	s.audit(ctx, AuditEvent{
		Action:       AuditUpdate,
		ActorID:      actorID,
		TreeID:       treeID,
		ResourceType: ResourceInvite,
		ResourceID:   inviteID.String(),
		Changes: map[string]FieldChange{
			"status": {Old: domain.InviteStatusPending, New: domain.InviteStatusExpired},
		},
	})
	return nil
}
