// Package databasetest provides migrated in-memory databases for tests.
package databasetest

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/bananalabs-oss/hatcher/internal/database"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// New returns a migrated, private in-memory SQLite database that is closed
// when the test finishes.
func New(t testing.TB) *bun.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	url := fmt.Sprintf("sqlite://file:%s?mode=memory&cache=shared", name)

	log := zap.NewNop().Sugar()
	db, err := database.Connect(url, log)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.Migrate(context.Background(), db, log); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}
