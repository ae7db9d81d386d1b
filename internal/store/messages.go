package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// MessageRecord is the persisted form of a MessageView entry (spec.md §3),
// written once per message-bearing segment during commit.
type MessageRecord struct {
	ID        string         `json:"id"`
	Seq       int64          `json:"seq"`
	Timestamp int64          `json:"ts"`
	Type      string         `json:"type"`
	Peer      string         `json:"peer"`
	Direction string         `json:"direction"`
	Tag       string         `json:"tag"`
	Text      string         `json:"text"`
	Author    string         `json:"author"`
	Decision  *string        `json:"decision,omitempty"`
	Outcome   *string        `json:"outcome,omitempty"`
	Scores    map[string]any `json:"scores,omitempty"`
}

// InsertMessage persists a message projection record inside the commit
// transaction (spec.md §4.5).
func (s *Store) InsertMessage(ctx context.Context, tx *sql.Tx, hid string, rec MessageRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("store: marshal message: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (hid, id, seq, ts, type, peer, direction, tag, text, author, body)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		hid, rec.ID, rec.Seq, rec.Timestamp, rec.Type, rec.Peer, rec.Direction, rec.Tag, rec.Text, rec.Author, body)
	if err != nil {
		return fmt.Errorf("store: insert message: %w", err)
	}
	return nil
}

// ListMessagesByPeer returns the message view for one chat/peer in seq
// order (spec.md §3 MessageView).
func (s *Store) ListMessagesByPeer(ctx context.Context, hid, peer string) ([]MessageRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT body FROM messages WHERE hid = ? AND peer = ? ORDER BY seq ASC`, hid, peer)
	if err != nil {
		return nil, fmt.Errorf("store: list messages: %w", err)
	}
	defer rows.Close()

	var out []MessageRecord
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("store: scan message: %w", err)
		}
		var rec MessageRecord
		if err := json.Unmarshal(body, &rec); err != nil {
			return nil, fmt.Errorf("store: decode message: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
