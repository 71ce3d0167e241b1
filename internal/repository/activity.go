package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ActivityRecord represents a channel activity event in database
type ActivityRecord struct {
	ID         string    `json:"id"`
	Channel    string    `json:"channel"`
	AccountID  string    `json:"account_id"`
	Direction  string    `json:"direction"`
	RecordedAt time.Time `json:"recorded_at"`
}

// ActivityRepository handles database operations for channel activity
type ActivityRepository struct {
	db *sql.DB
}

// NewActivityRepository creates a new activity repository
func NewActivityRepository(dbPath string) (*ActivityRepository, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Create table if not exists
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS channel_activity (
			id TEXT PRIMARY KEY,
			channel TEXT NOT NULL,
			account_id TEXT NOT NULL,
			direction TEXT NOT NULL,
			recorded_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_activity_account ON channel_activity(account_id);
		CREATE INDEX IF NOT EXISTS idx_activity_recorded_at ON channel_activity(recorded_at);
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &ActivityRepository{db: db}, nil
}

// Close closes database connection
func (r *ActivityRepository) Close() error {
	return r.db.Close()
}

// Record saves a channel activity event
func (r *ActivityRepository) Record(channel, accountID, direction string) error {
	_, err := r.db.Exec(`
		INSERT INTO channel_activity (id, channel, account_id, direction, recorded_at)
		VALUES (?, ?, ?, ?, ?)
	`, uuid.NewString(), channel, accountID, direction, time.Now())
	return err
}

// CountSince returns the number of activity events recorded after the cutoff
func (r *ActivityRepository) CountSince(cutoff time.Time) (int64, error) {
	var count int64
	err := r.db.QueryRow(`
		SELECT COUNT(*) FROM channel_activity WHERE recorded_at > ?
	`, cutoff).Scan(&count)
	return count, err
}

// CleanupBefore removes activity events older than the cutoff
func (r *ActivityRepository) CleanupBefore(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec(`
		DELETE FROM channel_activity WHERE recorded_at <= ?
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Recent returns the most recent activity events, newest first
func (r *ActivityRepository) Recent(limit int) ([]*ActivityRecord, error) {
	rows, err := r.db.Query(`
		SELECT id, channel, account_id, direction, recorded_at
		FROM channel_activity
		ORDER BY recorded_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]*ActivityRecord, 0, limit)
	for rows.Next() {
		var record ActivityRecord
		if err := rows.Scan(
			&record.ID,
			&record.Channel,
			&record.AccountID,
			&record.Direction,
			&record.RecordedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, &record)
	}
	return records, rows.Err()
}
