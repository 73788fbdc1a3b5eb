package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"aegis-backend/internal/abac"
)

// PolicyStore is the SQL-backed abac.VersionStore. Rules are stored as a
// JSON document inside the version row; a version is always read and
// written whole.
type PolicyStore struct {
	db *Store
}

func NewPolicyStore(db *Store) *PolicyStore {
	return &PolicyStore{db: db}
}

func (p *PolicyStore) GetSet(ctx context.Context, tenantID string) (*abac.PolicySet, error) {
	pb := p.db.Dialect.NewParamBuilder()
	query := fmt.Sprintf(
		"SELECT id, tenant_id, mode, published_version_id FROM _abac_policy_sets WHERE tenant_id = %s",
		pb.Add(tenantID))

	row, err := QueryRow(ctx, p.db.DB, query, pb.Params()...)
	if errors.Is(err, ErrNotFound) {
		return nil, abac.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get policy set: %w", err)
	}
	return scanPolicySet(row), nil
}

func (p *PolicyStore) CreateSet(ctx context.Context, set *abac.PolicySet) error {
	pb := p.db.Dialect.NewParamBuilder()
	query := fmt.Sprintf(
		"INSERT INTO _abac_policy_sets (id, tenant_id, mode) VALUES (%s, %s, %s)",
		pb.Add(set.ID), pb.Add(set.TenantID), pb.Add(string(set.Mode)))

	if _, err := Exec(ctx, p.db.DB, query, pb.Params()...); err != nil {
		return fmt.Errorf("create policy set: %w", p.db.Dialect.MapError(err))
	}
	return nil
}

func (p *PolicyStore) ListVersions(ctx context.Context, setID string) ([]abac.Version, error) {
	pb := p.db.Dialect.NewParamBuilder()
	query := fmt.Sprintf(
		`SELECT id, policy_set_id, version_no, status, rules, change_note, created_by, created_at, published_at
		 FROM _abac_policy_versions WHERE policy_set_id = %s ORDER BY version_no DESC`,
		pb.Add(setID))

	rows, err := QueryRows(ctx, p.db.DB, query, pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}

	versions := make([]abac.Version, 0, len(rows))
	for _, row := range rows {
		v, err := scanVersion(row)
		if err != nil {
			return nil, err
		}
		versions = append(versions, *v)
	}
	return versions, nil
}

func (p *PolicyStore) GetVersion(ctx context.Context, versionID string) (*abac.Version, error) {
	pb := p.db.Dialect.NewParamBuilder()
	query := fmt.Sprintf(
		`SELECT id, policy_set_id, version_no, status, rules, change_note, created_by, created_at, published_at
		 FROM _abac_policy_versions WHERE id = %s`,
		pb.Add(versionID))

	row, err := QueryRow(ctx, p.db.DB, query, pb.Params()...)
	if errors.Is(err, ErrNotFound) {
		return nil, abac.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get version: %w", err)
	}
	return scanVersion(row)
}

func (p *PolicyStore) CreateVersion(ctx context.Context, v *abac.Version) error {
	rules, err := json.Marshal(v.Rules)
	if err != nil {
		return fmt.Errorf("encode rules: %w", err)
	}

	pb := p.db.Dialect.NewParamBuilder()
	query := fmt.Sprintf(
		`INSERT INTO _abac_policy_versions (id, policy_set_id, version_no, status, rules, change_note, created_by, created_at)
		 VALUES (%s, %s, %s, %s, %s, %s, %s, %s)`,
		pb.Add(v.ID), pb.Add(v.PolicySetID), pb.Add(v.VersionNo), pb.Add(string(v.Status)),
		pb.Add(string(rules)), pb.Add(v.ChangeNote), pb.Add(v.CreatedBy), pb.Add(v.CreatedAt))

	if _, err := Exec(ctx, p.db.DB, query, pb.Params()...); err != nil {
		return fmt.Errorf("create version: %w", p.db.Dialect.MapError(err))
	}
	return nil
}

func (p *PolicyStore) UpdateVersion(ctx context.Context, v *abac.Version) error {
	rules, err := json.Marshal(v.Rules)
	if err != nil {
		return fmt.Errorf("encode rules: %w", err)
	}

	pb := p.db.Dialect.NewParamBuilder()
	query := fmt.Sprintf(
		"UPDATE _abac_policy_versions SET rules = %s, change_note = %s WHERE id = %s",
		pb.Add(string(rules)), pb.Add(v.ChangeNote), pb.Add(v.ID))

	n, err := Exec(ctx, p.db.DB, query, pb.Params()...)
	if err != nil {
		return fmt.Errorf("update version: %w", err)
	}
	if n == 0 {
		return abac.ErrNotFound
	}
	return nil
}

func (p *PolicyStore) MaxVersionNo(ctx context.Context, setID string) (int, error) {
	pb := p.db.Dialect.NewParamBuilder()
	query := fmt.Sprintf(
		"SELECT COALESCE(MAX(version_no), 0) AS max_no FROM _abac_policy_versions WHERE policy_set_id = %s",
		pb.Add(setID))

	row, err := QueryRow(ctx, p.db.DB, query, pb.Params()...)
	if err != nil {
		return 0, fmt.Errorf("max version no: %w", err)
	}
	return asInt(row["max_no"]), nil
}

// SwapPublished runs the publish swap in one transaction: the previously
// published version (if any, and if different) is archived, the target is
// marked published, and the set's pointer and mode are updated together.
func (p *PolicyStore) SwapPublished(ctx context.Context, setID, newVersionID string, mode abac.Mode) error {
	tx, err := p.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin publish tx: %w", err)
	}
	defer tx.Rollback()

	now := p.db.Dialect.NowExpr()

	pb := p.db.Dialect.NewParamBuilder()
	archive := fmt.Sprintf(
		"UPDATE _abac_policy_versions SET status = 'archived' WHERE policy_set_id = %s AND status = 'published' AND id <> %s",
		pb.Add(setID), pb.Add(newVersionID))
	if _, err := Exec(ctx, tx, archive, pb.Params()...); err != nil {
		return fmt.Errorf("archive published version: %w", err)
	}

	pb = p.db.Dialect.NewParamBuilder()
	publish := fmt.Sprintf(
		"UPDATE _abac_policy_versions SET status = 'published', published_at = %s WHERE id = %s AND policy_set_id = %s",
		now, pb.Add(newVersionID), pb.Add(setID))
	n, err := Exec(ctx, tx, publish, pb.Params()...)
	if err != nil {
		return fmt.Errorf("publish version: %w", err)
	}
	if n == 0 {
		return abac.ErrNotFound
	}

	pb = p.db.Dialect.NewParamBuilder()
	point := fmt.Sprintf(
		"UPDATE _abac_policy_sets SET published_version_id = %s, mode = %s, updated_at = %s WHERE id = %s",
		pb.Add(newVersionID), pb.Add(string(mode)), now, pb.Add(setID))
	if _, err := Exec(ctx, tx, point, pb.Params()...); err != nil {
		return fmt.Errorf("update policy set pointer: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit publish tx: %w", err)
	}
	return nil
}

func scanPolicySet(row map[string]any) *abac.PolicySet {
	return &abac.PolicySet{
		ID:                 asString(row["id"]),
		TenantID:           asString(row["tenant_id"]),
		Mode:               abac.Mode(asString(row["mode"])),
		PublishedVersionID: asString(row["published_version_id"]),
	}
}

func scanVersion(row map[string]any) (*abac.Version, error) {
	var rules []abac.Rule
	if raw := asString(row["rules"]); raw != "" {
		if err := json.Unmarshal([]byte(raw), &rules); err != nil {
			return nil, fmt.Errorf("decode rules for version %s: %w", asString(row["id"]), err)
		}
	}

	v := &abac.Version{
		ID:          asString(row["id"]),
		PolicySetID: asString(row["policy_set_id"]),
		VersionNo:   asInt(row["version_no"]),
		Status:      abac.VersionStatus(asString(row["status"])),
		Rules:       rules,
		ChangeNote:  asString(row["change_note"]),
		CreatedBy:   asString(row["created_by"]),
		CreatedAt:   asTime(row["created_at"]),
	}
	if t, ok := row["published_at"].(time.Time); ok {
		v.PublishedAt = &t
	}
	return v, nil
}
