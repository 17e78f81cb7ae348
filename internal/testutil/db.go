// Package testutil holds helpers shared by package tests.
package testutil

import (
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/balakodigital/crm-notifier/internal/repository"
)

// NewTestDB returns a migrated in-memory database that is closed when the
// test ends.
func NewTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := repository.InitDB(":memory:")
	if err != nil {
		t.Fatalf("creating test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
