package store

import (
	"fmt"
	"strings"
)

// SQLiteDialect implements Dialect for SQLite via modernc.org/sqlite.
type SQLiteDialect struct{}

func (d *SQLiteDialect) Name() string { return "sqlite" }
func (d *SQLiteDialect) DriverName() string { return "sqlite" }

func (d *SQLiteDialect) NewParamBuilder() ParamBuilder {
	return &sqliteParamBuilder{}
}

func (d *SQLiteDialect) NowExpr() string { return "datetime('now')" }

func (d *SQLiteDialect) SystemTablesSQL() string {
	return sqliteSystemTablesSQL
}

func (d *SQLiteDialect) MapError(err error) error {
	if err == nil {
		return nil
	}
	errStr := err.Error()
	if strings.Contains(errStr, "UNIQUE constraint failed") || strings.Contains(errStr, "constraint failed: UNIQUE") {
		return fmt.Errorf("%w: %w", ErrUniqueViolation, err)
	}
	return err
}

// --- SQLite DDL ---

const sqliteSystemTablesSQL = `
CREATE TABLE IF NOT EXISTS _roles (
    id             TEXT PRIMARY KEY,
    service_id     TEXT NOT NULL,
    name           TEXT NOT NULL,
    parent_role_id TEXT REFERENCES _roles(id),
    created_at     TEXT DEFAULT (datetime('now')),
    UNIQUE (service_id, name)
);

CREATE TABLE IF NOT EXISTS _permissions (
    id         TEXT PRIMARY KEY,
    service_id TEXT NOT NULL,
    code       TEXT NOT NULL,
    created_at TEXT DEFAULT (datetime('now')),
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
    created_at TEXT DEFAULT (datetime('now')),
    PRIMARY KEY (user_id, tenant_id, role_id)
);

CREATE TABLE IF NOT EXISTS _service_clients (
    id          TEXT PRIMARY KEY,
    tenant_id   TEXT NOT NULL,
    name        TEXT NOT NULL,
    secret_hash TEXT NOT NULL,
    active      INTEGER NOT NULL DEFAULT 1,
    created_at  TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS _abac_policy_sets (
    id                   TEXT PRIMARY KEY,
    tenant_id            TEXT NOT NULL UNIQUE,
    mode                 TEXT NOT NULL DEFAULT 'disabled',
    published_version_id TEXT,
    created_at           TEXT DEFAULT (datetime('now')),
    updated_at           TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS _abac_policy_versions (
    id            TEXT PRIMARY KEY,
    policy_set_id TEXT NOT NULL REFERENCES _abac_policy_sets(id) ON DELETE CASCADE,
    version_no    INTEGER NOT NULL,
    status        TEXT NOT NULL DEFAULT 'draft',
    rules         TEXT NOT NULL DEFAULT '[]',
    change_note   TEXT,
    created_by    TEXT NOT NULL,
    created_at    TEXT DEFAULT (datetime('now')),
    published_at  TEXT,
    UNIQUE (policy_set_id, version_no)
);

CREATE TABLE IF NOT EXISTS _abac_decisions (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    tenant_id     TEXT NOT NULL,
    subject       TEXT NOT NULL,
    action        TEXT NOT NULL,
    resource_type TEXT,
    mode          TEXT NOT NULL,
    decision      TEXT NOT NULL,
    reason        TEXT NOT NULL,
    allow_rule_ids TEXT NOT NULL DEFAULT '[]',
    deny_rule_ids  TEXT NOT NULL DEFAULT '[]',
    decided_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_memberships_user_tenant ON _memberships(user_id, tenant_id);
CREATE INDEX IF NOT EXISTS idx_abac_versions_set ON _abac_policy_versions(policy_set_id);
CREATE INDEX IF NOT EXISTS idx_abac_decisions_tenant ON _abac_decisions(tenant_id, decided_at);
`
