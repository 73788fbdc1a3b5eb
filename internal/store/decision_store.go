package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"aegis-backend/internal/authz"
)

// DecisionStore persists authorization decision records in batches. Its
// Flush method has the shape the buffered decision sink expects.
type DecisionStore struct {
	db *Store
}

func NewDecisionStore(db *Store) *DecisionStore {
	return &DecisionStore{db: db}
}

// InsertDecisions writes a batch of decision records in one transaction.
func (d *DecisionStore) InsertDecisions(ctx context.Context, batch []authz.DecisionRecord) error {
	if len(batch) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin decision tx: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range batch {
		allowIDs, err := json.Marshal(emptyNotNil(rec.AllowRuleIDs))
		if err != nil {
			return fmt.Errorf("encode allow rule ids: %w", err)
		}
		denyIDs, err := json.Marshal(emptyNotNil(rec.DenyRuleIDs))
		if err != nil {
			return fmt.Errorf("encode deny rule ids: %w", err)
		}

		pb := d.db.Dialect.NewParamBuilder()
		query := fmt.Sprintf(
			`INSERT INTO _abac_decisions (tenant_id, subject, action, resource_type, mode, decision, reason, allow_rule_ids, deny_rule_ids, decided_at)
			 VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s)`,
			pb.Add(rec.TenantID), pb.Add(rec.Subject), pb.Add(rec.Action), pb.Add(rec.ResourceType),
			pb.Add(string(rec.Mode)), pb.Add(rec.Decision), pb.Add(rec.Reason),
			pb.Add(string(allowIDs)), pb.Add(string(denyIDs)), pb.Add(rec.At))

		if _, err := Exec(ctx, tx, query, pb.Params()...); err != nil {
			return fmt.Errorf("insert decision: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit decision tx: %w", err)
	}
	return nil
}

// Flush adapts InsertDecisions to the sink's flush signature. Failures are
// logged and dropped; the decision log never fails a request.
func (d *DecisionStore) Flush(batch []authz.DecisionRecord) {
	if err := d.InsertDecisions(context.Background(), batch); err != nil {
		log.Printf("ERROR: decision log flush failed, dropping %d records: %v", len(batch), err)
	}
}

func emptyNotNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
