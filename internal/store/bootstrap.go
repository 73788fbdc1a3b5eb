package store

import (
	"context"
	"fmt"
	"strings"
)

// Bootstrap creates the system tables if they do not exist. SQLite cannot
// run the whole script in one Exec, so statements are executed one at a
// time.
func (s *Store) Bootstrap(ctx context.Context) error {
	script := s.Dialect.SystemTablesSQL()
	for _, stmt := range strings.Split(script, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap: %w", err)
		}
	}
	return nil
}
