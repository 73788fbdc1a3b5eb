package abac

import (
	"context"
	"errors"
	"testing"

	"aegis-backend/internal/apperror"
)

func testService() (*Service, *MemoryStore) {
	store := NewMemoryStore()
	return NewService(store), store
}

func allowAllDoc() Document {
	return Document{Rules: []Rule{{Effect: EffectAllow}}}
}

func denyAllDoc() Document {
	return Document{Rules: []Rule{{Effect: EffectDeny}}}
}

func assertConflict(t *testing.T, err error) {
	t.Helper()
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || appErr.Code != "CONFLICT" {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
}

func TestCreate_AssignsMonotonicVersionNumbers(t *testing.T) {
	svc, _ := testService()
	ctx := context.Background()

	v1, err := svc.Create(ctx, "t1", allowAllDoc(), "first", "alice")
	if err != nil {
		t.Fatalf("create v1: %v", err)
	}
	v2, err := svc.Create(ctx, "t1", denyAllDoc(), "second", "alice")
	if err != nil {
		t.Fatalf("create v2: %v", err)
	}

	if v1.VersionNo != 1 || v2.VersionNo != 2 {
		t.Fatalf("expected version numbers 1,2, got %d,%d", v1.VersionNo, v2.VersionNo)
	}
	if v1.Status != StatusDraft || v2.Status != StatusDraft {
		t.Fatalf("expected drafts, got %s,%s", v1.Status, v2.Status)
	}
	if v1.PolicySetID != v2.PolicySetID {
		t.Fatal("expected both versions in the same set")
	}
	if v1.Rules[0].ID == "" {
		t.Fatal("expected rule id to be assigned")
	}
}

func TestCreate_RejectsEmptyRuleList(t *testing.T) {
	svc, _ := testService()
	_, err := svc.Create(context.Background(), "t1", Document{}, "", "alice")
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || appErr.Code != "VALIDATION_FAILED" {
		t.Fatalf("expected VALIDATION_FAILED, got %v", err)
	}
}

func TestCreate_RejectsDuplicateRuleIDs(t *testing.T) {
	svc, _ := testService()
	doc := Document{Rules: []Rule{
		{ID: "r1", Effect: EffectAllow},
		{ID: "r1", Effect: EffectDeny},
	}}
	_, err := svc.Create(context.Background(), "t1", doc, "", "alice")
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || appErr.Code != "VALIDATION_FAILED" {
		t.Fatalf("expected VALIDATION_FAILED, got %v", err)
	}
}

func TestUpdate_DraftOnly(t *testing.T) {
	svc, _ := testService()
	ctx := context.Background()

	v1, err := svc.Create(ctx, "t1", allowAllDoc(), "", "alice")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Draft update succeeds.
	updated, err := svc.Update(ctx, "t1", v1.ID, denyAllDoc(), "tightened")
	if err != nil {
		t.Fatalf("update draft: %v", err)
	}
	if updated.ChangeNote != "tightened" {
		t.Fatalf("expected change note, got %q", updated.ChangeNote)
	}

	// Published version is immutable.
	if _, err := svc.Publish(ctx, "t1", v1.ID, ModeEnforce); err != nil {
		t.Fatalf("publish: %v", err)
	}
	_, err = svc.Update(ctx, "t1", v1.ID, allowAllDoc(), "")
	assertConflict(t, err)
}

func TestPublish_AtomicSwap(t *testing.T) {
	svc, _ := testService()
	ctx := context.Background()

	v1, _ := svc.Create(ctx, "t1", allowAllDoc(), "", "alice")
	v2, _ := svc.Create(ctx, "t1", denyAllDoc(), "", "alice")

	if _, err := svc.Publish(ctx, "t1", v1.ID, ModeEnforce); err != nil {
		t.Fatalf("publish v1: %v", err)
	}
	if _, err := svc.Publish(ctx, "t1", v2.ID, ModeEnforce); err != nil {
		t.Fatalf("publish v2: %v", err)
	}

	set, versions, err := svc.List(ctx, "t1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if set.PublishedVersionID != v2.ID {
		t.Fatalf("expected published pointer at v2, got %s", set.PublishedVersionID)
	}

	published := 0
	for _, v := range versions {
		switch v.ID {
		case v1.ID:
			if v.Status != StatusArchived {
				t.Fatalf("expected v1 archived, got %s", v.Status)
			}
		case v2.ID:
			if v.Status != StatusPublished {
				t.Fatalf("expected v2 published, got %s", v.Status)
			}
		}
		if v.Status == StatusPublished {
			published++
		}
	}
	if published != 1 {
		t.Fatalf("expected exactly one published version, got %d", published)
	}
}

func TestPublish_ArchivedVersionRejected(t *testing.T) {
	svc, _ := testService()
	ctx := context.Background()

	v1, _ := svc.Create(ctx, "t1", allowAllDoc(), "", "alice")
	v2, _ := svc.Create(ctx, "t1", denyAllDoc(), "", "alice")
	svc.Publish(ctx, "t1", v1.ID, ModeEnforce)
	svc.Publish(ctx, "t1", v2.ID, ModeEnforce)

	// v1 is now archived; publishing it again must go through rollback.
	_, err := svc.Publish(ctx, "t1", v1.ID, ModeEnforce)
	assertConflict(t, err)
}

func TestRollback(t *testing.T) {
	svc, _ := testService()
	ctx := context.Background()

	v1, _ := svc.Create(ctx, "t1", allowAllDoc(), "", "alice")
	v2, _ := svc.Create(ctx, "t1", denyAllDoc(), "", "alice")
	svc.Publish(ctx, "t1", v1.ID, ModeEnforce)
	svc.Publish(ctx, "t1", v2.ID, ModeEnforce)

	rolled, err := svc.Rollback(ctx, "t1", v1.ID, ModeEnforce)
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if rolled.Status != StatusPublished {
		t.Fatalf("expected v1 published after rollback, got %s", rolled.Status)
	}

	set, versions, _ := svc.List(ctx, "t1")
	if set.PublishedVersionID != v1.ID {
		t.Fatalf("expected published pointer back at v1, got %s", set.PublishedVersionID)
	}
	for _, v := range versions {
		if v.ID == v2.ID && v.Status != StatusArchived {
			t.Fatalf("expected v2 archived after rollback, got %s", v.Status)
		}
	}

	// No new version was created by the rollback.
	if len(versions) != 2 {
		t.Fatalf("expected 2 versions after rollback, got %d", len(versions))
	}
}

func TestRollback_DraftRejected(t *testing.T) {
	svc, _ := testService()
	ctx := context.Background()

	v1, _ := svc.Create(ctx, "t1", allowAllDoc(), "", "alice")
	_, err := svc.Rollback(ctx, "t1", v1.ID, ModeEnforce)
	assertConflict(t, err)
}

func TestVersionLookupScopedToTenant(t *testing.T) {
	svc, _ := testService()
	ctx := context.Background()

	v1, _ := svc.Create(ctx, "t1", allowAllDoc(), "", "alice")
	svc.Create(ctx, "t2", allowAllDoc(), "", "bob")

	// Tenant t2 cannot address t1's version by id.
	_, err := svc.Publish(ctx, "t2", v1.ID, ModeEnforce)
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || appErr.Code != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND for cross-tenant version access, got %v", err)
	}
}

func TestSimulate_WithDraftDocument(t *testing.T) {
	svc, _ := testService()
	doc := denyAllDoc()
	result, err := svc.Simulate(context.Background(), "t1", SimulationInput{
		Document: &doc,
		Context:  Context{Action: "read", ResourceType: "document"},
	})
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if result.Decision != DecisionDeny {
		t.Fatalf("expected deny, got %s", result.Decision)
	}
}

func TestSimulate_AgainstPublishedVersion(t *testing.T) {
	svc, _ := testService()
	ctx := context.Background()

	v1, _ := svc.Create(ctx, "t1", allowAllDoc(), "", "alice")
	svc.Publish(ctx, "t1", v1.ID, ModeEnforce)

	result, err := svc.Simulate(ctx, "t1", SimulationInput{
		Context: Context{Action: "read", ResourceType: "document"},
	})
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if result.Decision != DecisionAllow {
		t.Fatalf("expected allow, got %s", result.Decision)
	}
}

func TestSimulate_NoPublishedVersion(t *testing.T) {
	svc, _ := testService()
	_, err := svc.Simulate(context.Background(), "t1", SimulationInput{
		Context: Context{Action: "read"},
	})
	assertConflict(t, err)
}

func TestSimulate_NeverMutates(t *testing.T) {
	svc, _ := testService()
	ctx := context.Background()

	v1, _ := svc.Create(ctx, "t1", allowAllDoc(), "", "alice")
	svc.Publish(ctx, "t1", v1.ID, ModeShadow)

	setBefore, versionsBefore, _ := svc.List(ctx, "t1")

	for i := 0; i < 5; i++ {
		if _, err := svc.Simulate(ctx, "t1", SimulationInput{
			Context: Context{Action: "read", ResourceType: "document"},
		}); err != nil {
			t.Fatalf("simulate %d: %v", i, err)
		}
	}

	setAfter, versionsAfter, _ := svc.List(ctx, "t1")
	if *setBefore != *setAfter {
		t.Fatalf("simulate mutated the policy set: %+v vs %+v", setBefore, setAfter)
	}
	if len(versionsBefore) != len(versionsAfter) {
		t.Fatalf("simulate changed version count: %d vs %d", len(versionsBefore), len(versionsAfter))
	}
	for i := range versionsBefore {
		if versionsBefore[i].Status != versionsAfter[i].Status ||
			versionsBefore[i].VersionNo != versionsAfter[i].VersionNo {
			t.Fatalf("simulate mutated version %d", versionsBefore[i].VersionNo)
		}
	}
}
