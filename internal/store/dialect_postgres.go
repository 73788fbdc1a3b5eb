package store

import (
	"fmt"
	"strings"
)

// PostgresDialect implements Dialect for PostgreSQL via pgx/stdlib.
type PostgresDialect struct{}

func (d *PostgresDialect) Name() string { return "postgres" }
func (d *PostgresDialect) DriverName() string { return "pgx" }

func (d *PostgresDialect) NewParamBuilder() ParamBuilder {
	return &pgParamBuilder{}
}

func (d *PostgresDialect) NowExpr() string { return "NOW()" }

func (d *PostgresDialect) SystemTablesSQL() string {
	return pgSystemTablesSQL
}

func (d *PostgresDialect) MapError(err error) error {
	if err == nil {
		return nil
	}
	// With pgx/stdlib, the underlying error message includes the PG code
	errStr := err.Error()
	if strings.Contains(errStr, "23505") || strings.Contains(errStr, "unique constraint") || strings.Contains(errStr, "duplicate key") {
		return fmt.Errorf("%w: %w", ErrUniqueViolation, err)
	}
	return err
}

// --- PostgreSQL DDL ---

const pgSystemTablesSQL = `
CREATE TABLE IF NOT EXISTS _roles (
    id             TEXT PRIMARY KEY,
    service_id     TEXT NOT NULL,
    name           TEXT NOT NULL,
    parent_role_id TEXT REFERENCES _roles(id),
    created_at     TIMESTAMPTZ DEFAULT NOW(),
    UNIQUE (service_id, name)
);

CREATE TABLE IF NOT EXISTS _permissions (
    id         TEXT PRIMARY KEY,
    service_id TEXT NOT NULL,
    code       TEXT NOT NULL,
    created_at TIMESTAMPTZ DEFAULT NOW(),
    UNIQUE (service_id, code)
);

CREATE TABLE IF NOT EXISTS _role_permissions (
    role_id       TEXT NOT NULL REFERENCES _roles(id) ON DELETE CASCADE,
    permission_id TEXT NOT NULL REFERENCES _permissions(id) ON DELETE CASCADE,
    PRIMARY KEY (role_id, permission_id)
);

CREATE TABLE IF NOT EXISTS _memberships (
    user_id    TEXT NOT NULL,
    tenant_id  TEXT NOT NULL,
    role_id    TEXT NOT NULL REFERENCES _roles(id) ON DELETE CASCADE,
    created_at TIMESTAMPTZ DEFAULT NOW(),
    PRIMARY KEY (user_id, tenant_id, role_id)
);

CREATE TABLE IF NOT EXISTS _service_clients (
    id          TEXT PRIMARY KEY,
    tenant_id   TEXT NOT NULL,
    name        TEXT NOT NULL,
    secret_hash TEXT NOT NULL,
    active      BOOLEAN NOT NULL DEFAULT true,
    created_at  TIMESTAMPTZ DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS _abac_policy_sets (
    id                   TEXT PRIMARY KEY,
    tenant_id            TEXT NOT NULL UNIQUE,
    mode                 TEXT NOT NULL DEFAULT 'disabled',
    published_version_id TEXT,
    created_at           TIMESTAMPTZ DEFAULT NOW(),
    updated_at           TIMESTAMPTZ DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS _abac_policy_versions (
    id            TEXT PRIMARY KEY,
    policy_set_id TEXT NOT NULL REFERENCES _abac_policy_sets(id) ON DELETE CASCADE,
    version_no    INT NOT NULL,
    status        TEXT NOT NULL DEFAULT 'draft',
    rules         JSONB NOT NULL DEFAULT '[]',
    change_note   TEXT,
    created_by    TEXT NOT NULL,
    created_at    TIMESTAMPTZ DEFAULT NOW(),
    published_at  TIMESTAMPTZ,
    UNIQUE (policy_set_id, version_no)
);

CREATE TABLE IF NOT EXISTS _abac_decisions (
    id            BIGSERIAL PRIMARY KEY,
    tenant_id     TEXT NOT NULL,
    subject       TEXT NOT NULL,
    action        TEXT NOT NULL,
    resource_type TEXT,
    mode          TEXT NOT NULL,
    decision      TEXT NOT NULL,
    reason        TEXT NOT NULL,
    allow_rule_ids JSONB NOT NULL DEFAULT '[]',
    deny_rule_ids  JSONB NOT NULL DEFAULT '[]',
    decided_at    TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_memberships_user_tenant ON _memberships(user_id, tenant_id);
CREATE INDEX IF NOT EXISTS idx_abac_versions_set ON _abac_policy_versions(policy_set_id);
CREATE INDEX IF NOT EXISTS idx_abac_decisions_tenant ON _abac_decisions(tenant_id, decided_at);
`
