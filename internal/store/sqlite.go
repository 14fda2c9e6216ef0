package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pingbadge/pingbadge-web/internal/database"
	"github.com/pingbadge/pingbadge-web/internal/logger"
	"github.com/pingbadge/pingbadge-web/internal/models"
)

// SQLiteStore keeps snapshots in the gamification_snapshots key-value
// table, one JSON document per user.
type SQLiteStore struct {
	db *database.DB
}

func NewSQLiteStore(db *database.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Load(userID string) (*models.Snapshot, error) {
	var data string
	query := `SELECT data FROM gamification_snapshots WHERE key = ?`

	err := s.db.Get(&data, query, storageKey(userID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	var snapshot models.Snapshot
	if err := json.Unmarshal([]byte(data), &snapshot); err != nil {
		// Fail safe: a corrupt record is treated as absent so the
		// controller reinitializes instead of surfacing a parse error.
		logger.Sugar.Warnw("discarding corrupt gamification snapshot",
			"user_id", userID, "error", err)
		return nil, ErrNotFound
	}
	if err := snapshot.Validate(); err != nil {
		logger.Sugar.Warnw("discarding invalid gamification snapshot",
			"user_id", userID, "error", err)
		return nil, ErrNotFound
	}

	return &snapshot, nil
}

func (s *SQLiteStore) Save(userID string, snapshot *models.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to serialize snapshot: %w", err)
	}

	query := `
		INSERT INTO gamification_snapshots (key, data, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`
	if _, err := s.db.Exec(query, storageKey(userID), string(data), time.Now()); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

var _ Store = (*SQLiteStore)(nil)
