// Package store persists per-user gamification snapshots behind a
// key-value abstraction, so the engine and controller never touch the
// storage backend directly.
package store

import (
	"errors"
	"fmt"

	"github.com/pingbadge/pingbadge-web/internal/models"
)

// ErrNotFound is returned by Load when no snapshot is persisted for the
// user. Corrupt or schema-mismatched stored values are reported the same
// way: the caller reinitializes a fresh snapshot rather than failing.
var ErrNotFound = errors.New("gamification snapshot not found")

// Store loads and saves one snapshot per user. Implementations own
// serialization and must round-trip every snapshot field losslessly.
type Store interface {
	Load(userID string) (*models.Snapshot, error)
	Save(userID string, snapshot *models.Snapshot) error
}

// storageKey namespaces the per-user record.
func storageKey(userID string) string {
	return fmt.Sprintf("gamification_%s", userID)
}
