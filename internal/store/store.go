// Package store provides durable, transactional persistence for the eight
// record collections BalanceChain needs (spec.md §4.2): meta, state_chain,
// sync_log, messages, identity, caps, capsules, tvm_balance, plus the
// anchors and subscriptions tables. It is a MySQL
// rendition of the spec's key/value-with-indices model, grounded on
// pkg/db.TxRunner for multi-collection atomic commits.
package store

import (
	"context"
	"database/sql"
	"fmt"

	dbpkg "github.com/balancechain/core/pkg/db"
)

// Store bundles the connection pool and transaction runner shared by every
// collection gateway in this package.
type Store struct {
	db  *sql.DB
	txr *dbpkg.TxRunner
}

// New constructs a Store over an already-opened *sql.DB.
func New(database *sql.DB) *Store {
	return &Store{db: database, txr: dbpkg.NewTxRunner(database)}
}

// Tx returns the shared TxRunner so callers that commit across multiple
// collections (the chain's atomic append pipeline) can open one
// transaction and pass it to each collection gateway.
func (s *Store) Tx() *dbpkg.TxRunner {
	return s.txr
}

// DB exposes the underlying pool for read-only queries that do not need
// transactional isolation beyond MySQL's default read-committed snapshot.
func (s *Store) DB() *sql.DB {
	return s.db
}

// schema is the full set of collections from spec.md §4.2, expressed as
// MySQL tables. Every table carries an `hid` column since, unlike the
// embedded single-identity store the spec was distilled from, this Store
// is multi-tenant: one service instance holds every identity's chain.
// Migrate creates whatever is missing without touching existing data
// (spec.md §4.2 "upgrade ... without data loss").
var schema = []string{
	`CREATE TABLE IF NOT EXISTS meta (
		hid VARCHAR(64) NOT NULL PRIMARY KEY,
		chain_head VARCHAR(64) NOT NULL DEFAULT 'GENESIS',
		chain_len BIGINT NOT NULL DEFAULT 0,
		read_only_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		read_only_reason VARCHAR(255) NOT NULL DEFAULT '',
		read_only_timestamp BIGINT NOT NULL DEFAULT 0,
		updated_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3) ON UPDATE CURRENT_TIMESTAMP(3)
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS state_chain (
		hid VARCHAR(64) NOT NULL,
		seq BIGINT NOT NULL,
		nonce CHAR(32) NOT NULL,
		type VARCHAR(32) NOT NULL,
		timestamp BIGINT NOT NULL,
		body MEDIUMTEXT NOT NULL,
		PRIMARY KEY (hid, seq),
		UNIQUE KEY uq_state_chain_nonce (hid, nonce),
		KEY idx_state_chain_type (hid, type),
		KEY idx_state_chain_timestamp (hid, timestamp)
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS sync_log (
		hid VARCHAR(64) NOT NULL,
		nonce CHAR(32) NOT NULL,
		state VARCHAR(16) NOT NULL,
		ts BIGINT NOT NULL,
		PRIMARY KEY (hid, nonce),
		KEY idx_sync_log_ts (hid, ts)
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS messages (
		hid VARCHAR(64) NOT NULL,
		id VARCHAR(64) NOT NULL,
		seq BIGINT NOT NULL,
		ts BIGINT NOT NULL,
		type VARCHAR(32) NOT NULL,
		peer VARCHAR(128) NOT NULL,
		direction VARCHAR(8) NOT NULL,
		tag VARCHAR(64) NOT NULL DEFAULT '',
		text MEDIUMTEXT NOT NULL,
		author VARCHAR(64) NOT NULL,
		body MEDIUMTEXT NOT NULL,
		PRIMARY KEY (hid, id),
		KEY idx_messages_seq (hid, seq),
		KEY idx_messages_peer (hid, peer),
		KEY idx_messages_ts (hid, ts),
		KEY idx_messages_tag (hid, tag)
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS identity (
		hid VARCHAR(64) NOT NULL PRIMARY KEY,
		algorithm VARCHAR(32) NOT NULL,
		public_key VARCHAR(256) NOT NULL,
		created_via VARCHAR(16) NOT NULL DEFAULT 'generated',
		created_at BIGINT NOT NULL
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS caps (
		hid VARCHAR(64) NOT NULL PRIMARY KEY,
		daily_count BIGINT NOT NULL DEFAULT 0,
		monthly_count BIGINT NOT NULL DEFAULT 0,
		yearly_count BIGINT NOT NULL DEFAULT 0,
		total_count BIGINT NOT NULL DEFAULT 0,
		daily_reset BIGINT NOT NULL,
		monthly_reset BIGINT NOT NULL,
		yearly_reset BIGINT NOT NULL
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS capsules (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		hid VARCHAR(64) NOT NULL,
		session_id VARCHAR(64) NOT NULL,
		rich_score DOUBLE NOT NULL,
		business_score DOUBLE NOT NULL,
		ecf_score DOUBLE NOT NULL,
		motivator VARCHAR(64) NOT NULL,
		category VARCHAR(32) NOT NULL,
		content_hash CHAR(64) NOT NULL,
		status VARCHAR(16) NOT NULL,
		reason VARCHAR(255) NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL,
		mint_seq BIGINT NULL,
		KEY idx_capsules_session (session_id),
		KEY idx_capsules_status (hid, status),
		KEY idx_capsules_created (hid, created_at)
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS tvm_balance (
		hid VARCHAR(64) NOT NULL PRIMARY KEY,
		balance DOUBLE NOT NULL DEFAULT 0
	) ENGINE=InnoDB`,

	// anchors tracks, per identity, the last chain_head the anchor
	// worker committed to the EVM side — an external, eventually
	// consistent audit trail that never gates a commit (SPEC_FULL.md
	// §domain stack, go-ethereum entry).
	`CREATE TABLE IF NOT EXISTS anchors (
		hid VARCHAR(64) NOT NULL PRIMARY KEY,
		last_anchored_seq BIGINT NOT NULL DEFAULT 0,
		last_anchored_head VARCHAR(64) NOT NULL DEFAULT 'GENESIS',
		last_tx_hash VARCHAR(66) NOT NULL DEFAULT '',
		last_anchored_at BIGINT NOT NULL DEFAULT 0
	) ENGINE=InnoDB`,

	// subscriptions is the MySQL home for spec.md §6's meta
	// "subscription:{hid}" key — the payment provider is opaque to the
	// core, but the subscription state it produces is a first-class row
	// here rather than a serialized blob under a synthetic key.
	`CREATE TABLE IF NOT EXISTS subscriptions (
		hid VARCHAR(64) NOT NULL PRIMARY KEY,
		plan_id VARCHAR(64) NOT NULL,
		provider VARCHAR(64) NOT NULL,
		transaction_id VARCHAR(128) NOT NULL,
		expires_at BIGINT NOT NULL,
		activated_at BIGINT NOT NULL,
		auto_renew BOOLEAN NOT NULL DEFAULT FALSE
	) ENGINE=InnoDB`,
}

// Migrate creates every collection's table and index if not already
// present (spec.md §4.2's schema-upgrade requirement).
func Migrate(ctx context.Context, database *sql.DB) error {
	for _, stmt := range schema {
		if _, err := database.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
	}
	return nil
}
