package abac

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"aegis-backend/internal/apperror"
)

// VersionStore is the narrow persistence port for policy sets and versions.
// SwapPublished must be atomic: an external reader sees either the old or the
// new published state, never both-published or neither-published.
type VersionStore interface {
	GetSet(ctx context.Context, tenantID string) (*PolicySet, error)
	CreateSet(ctx context.Context, set *PolicySet) error
	ListVersions(ctx context.Context, setID string) ([]Version, error)
	GetVersion(ctx context.Context, versionID string) (*Version, error)
	CreateVersion(ctx context.Context, v *Version) error
	UpdateVersion(ctx context.Context, v *Version) error
	MaxVersionNo(ctx context.Context, setID string) (int, error)

	// SwapPublished archives the currently published version of the set (if
	// any, and if different), marks newVersionID published, and updates the
	// set's pointer and mode, all in one transaction.
	SwapPublished(ctx context.Context, setID, newVersionID string, mode Mode) error
}

// Service manages the draft/published/archived lifecycle and simulation.
// It holds no state of its own; every operation is request-scoped.
type Service struct {
	store VersionStore
	now   func() time.Time
}

func NewService(store VersionStore) *Service {
	return &Service{store: store, now: time.Now}
}

// List returns the tenant's policy set and all its versions. A tenant with
// no policies yet yields a nil set and an empty list.
func (s *Service) List(ctx context.Context, tenantID string) (*PolicySet, []Version, error) {
	set, err := s.store.GetSet(ctx, tenantID)
	if errors.Is(err, ErrNotFound) {
		return nil, []Version{}, nil
	}
	if err != nil {
		return nil, nil, s.internal("list policies", err)
	}
	versions, err := s.store.ListVersions(ctx, set.ID)
	if err != nil {
		return nil, nil, s.internal("list versions", err)
	}
	return set, versions, nil
}

// Create adds a new draft version to the tenant's policy set, creating the
// set on first use. The version number is max(existing)+1.
func (s *Service) Create(ctx context.Context, tenantID string, doc Document, note, author string) (*Version, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	set, err := s.store.GetSet(ctx, tenantID)
	if errors.Is(err, ErrNotFound) {
		set = &PolicySet{
			ID:       uuid.New().String(),
			TenantID: tenantID,
			Mode:     ModeDisabled,
		}
		if err := s.store.CreateSet(ctx, set); err != nil {
			return nil, s.internal("create policy set", err)
		}
	} else if err != nil {
		return nil, s.internal("load policy set", err)
	}

	maxNo, err := s.store.MaxVersionNo(ctx, set.ID)
	if err != nil {
		return nil, s.internal("next version number", err)
	}

	version := &Version{
		ID:          uuid.New().String(),
		PolicySetID: set.ID,
		VersionNo:   maxNo + 1,
		Status:      StatusDraft,
		Rules:       assignRuleIDs(doc.Rules),
		ChangeNote:  note,
		CreatedBy:   author,
		CreatedAt:   s.now(),
	}
	if err := s.store.CreateVersion(ctx, version); err != nil {
		return nil, s.internal("create version", err)
	}
	return version, nil
}

// Update replaces a draft version's rules and note. Published and archived
// versions are immutable.
func (s *Service) Update(ctx context.Context, tenantID, versionID string, doc Document, note string) (*Version, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	version, err := s.versionForTenant(ctx, tenantID, versionID)
	if err != nil {
		return nil, err
	}
	if version.Status != StatusDraft {
		return nil, apperror.Conflict(fmt.Sprintf("version %d is %s and cannot be updated", version.VersionNo, version.Status))
	}

	version.Rules = assignRuleIDs(doc.Rules)
	version.ChangeNote = note
	if err := s.store.UpdateVersion(ctx, version); err != nil {
		return nil, s.internal("update version", err)
	}
	return version, nil
}

// Publish transitions the target version to published, archiving whichever
// version was previously published for the same set. An archived version
// cannot be published again; that path is rollback's.
func (s *Service) Publish(ctx context.Context, tenantID, versionID string, mode Mode) (*Version, error) {
	version, err := s.versionForTenant(ctx, tenantID, versionID)
	if err != nil {
		return nil, err
	}
	if version.Status == StatusArchived {
		return nil, apperror.Conflict(fmt.Sprintf("version %d is archived; use rollback to re-publish it", version.VersionNo))
	}

	if err := s.store.SwapPublished(ctx, version.PolicySetID, version.ID, mode); err != nil {
		return nil, s.internal("publish version", err)
	}
	return s.reload(ctx, version.ID)
}

// Rollback re-publishes a prior version in place: no new version is created,
// the target is re-marked published and the current published version is
// archived. Drafts cannot be rolled back to; they publish instead.
func (s *Service) Rollback(ctx context.Context, tenantID, versionID string, mode Mode) (*Version, error) {
	version, err := s.versionForTenant(ctx, tenantID, versionID)
	if err != nil {
		return nil, err
	}
	if version.Status != StatusPublished && version.Status != StatusArchived {
		return nil, apperror.Conflict(fmt.Sprintf("version %d is %s and cannot be rolled back to", version.VersionNo, version.Status))
	}

	if err := s.store.SwapPublished(ctx, version.PolicySetID, version.ID, mode); err != nil {
		return nil, s.internal("rollback version", err)
	}
	return s.reload(ctx, version.ID)
}

// SimulationInput is a dry-run request: an optional draft document to
// evaluate instead of the published version, plus the request context.
type SimulationInput struct {
	Document *Document `json:"document,omitempty"`
	Context  Context   `json:"context"`
}

// Simulate evaluates the input against the supplied draft document, or the
// tenant's published version when no document is given. It never mutates
// state and its result is never authoritative.
func (s *Service) Simulate(ctx context.Context, tenantID string, in SimulationInput) (*Result, error) {
	var rules []Rule
	if in.Document != nil {
		if err := in.Document.Validate(); err != nil {
			return nil, err
		}
		rules = in.Document.Rules
	} else {
		_, published, err := s.publishedVersion(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		if published == nil {
			return nil, apperror.Conflict("tenant has no published policy version to simulate against")
		}
		rules = published.Rules
	}

	result := Evaluate(rules, &in.Context)
	return &result, nil
}

// PublishedRules returns the tenant's mode and the published rule set. A
// tenant with no set, or no published version, is reported as disabled.
func (s *Service) PublishedRules(ctx context.Context, tenantID string) (Mode, []Rule, error) {
	set, published, err := s.publishedVersion(ctx, tenantID)
	if err != nil {
		return ModeDisabled, nil, err
	}
	if set == nil || published == nil {
		return ModeDisabled, nil, nil
	}
	return set.Mode, published.Rules, nil
}

func (s *Service) publishedVersion(ctx context.Context, tenantID string) (*PolicySet, *Version, error) {
	set, err := s.store.GetSet(ctx, tenantID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, s.internal("load policy set", err)
	}
	if set.PublishedVersionID == "" {
		return set, nil, nil
	}
	version, err := s.store.GetVersion(ctx, set.PublishedVersionID)
	if err != nil {
		return nil, nil, s.internal("load published version", err)
	}
	return set, version, nil
}

// versionForTenant loads a version and checks it belongs to the tenant's
// policy set, so one tenant cannot address another tenant's versions by id.
func (s *Service) versionForTenant(ctx context.Context, tenantID, versionID string) (*Version, error) {
	set, err := s.store.GetSet(ctx, tenantID)
	if errors.Is(err, ErrNotFound) {
		return nil, apperror.NotFound("policy version", versionID)
	}
	if err != nil {
		return nil, s.internal("load policy set", err)
	}

	version, err := s.store.GetVersion(ctx, versionID)
	if errors.Is(err, ErrNotFound) {
		return nil, apperror.NotFound("policy version", versionID)
	}
	if err != nil {
		return nil, s.internal("load version", err)
	}
	if version.PolicySetID != set.ID {
		return nil, apperror.NotFound("policy version", versionID)
	}
	return version, nil
}

func (s *Service) reload(ctx context.Context, versionID string) (*Version, error) {
	version, err := s.store.GetVersion(ctx, versionID)
	if err != nil {
		return nil, s.internal("reload version", err)
	}
	return version, nil
}

func (s *Service) internal(op string, err error) *apperror.AppError {
	log.Printf("ERROR: abac: %s: %v", op, err)
	return apperror.Internal("Policy store failure")
}

// assignRuleIDs fills in ids for rules submitted without one.
func assignRuleIDs(rules []Rule) []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	for i := range out {
		if out[i].ID == "" {
			out[i].ID = uuid.New().String()
		}
	}
	return out
}
