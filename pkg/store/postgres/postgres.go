// Package postgres stores beat listings in PostgreSQL through sqlx and the
// pgx driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/jmoiron/sqlx"

	"github.com/sigweihq/beatmarket/pkg/store"
	"github.com/sigweihq/beatmarket/pkg/types"
)

// Config holds PostgreSQL connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

const schema = `
CREATE TABLE IF NOT EXISTS beats (
	id               TEXT PRIMARY KEY,
	title            TEXT NOT NULL,
	description      TEXT NOT NULL DEFAULT '',
	genre            TEXT NOT NULL DEFAULT '',
	bpm              INTEGER NOT NULL DEFAULT 0,
	musical_key      TEXT NOT NULL DEFAULT '',
	audio_file       TEXT NOT NULL,
	image_file       TEXT NOT NULL DEFAULT '',
	price            TEXT NOT NULL,
	creator_address  TEXT NOT NULL,
	owner_address    TEXT,
	token_id         TEXT,
	contract_address TEXT,
	is_listed        BOOLEAN NOT NULL DEFAULT TRUE,
	purchase_tx_hash TEXT,
	version          BIGINT NOT NULL DEFAULT 1,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS beats_listed_idx ON beats (created_at DESC) WHERE is_listed;
`

const columns = `id, title, description, genre, bpm, musical_key, audio_file, image_file, price,
	creator_address, owner_address, token_id, contract_address, is_listed, purchase_tx_hash,
	version, created_at, updated_at`

// Store is a store.Store over a beats table
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	db, err := sqlx.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	} else {
		db.SetMaxOpenConns(10)
	}
	if cfg.MinConns > 0 {
		db.SetMaxIdleConns(cfg.MinConns)
	} else {
		db.SetMaxIdleConns(2)
	}
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return New(db), nil
}

// New wraps an open database handle
func New(db *sqlx.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Migrate creates the beats table if it does not exist
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

func (s *Store) CreateBeat(ctx context.Context, beat *types.BeatListing) error {
	now := s.now().UTC()
	if beat.CreatedAt.IsZero() {
		beat.CreatedAt = now
	}
	beat.UpdatedAt = now
	if beat.Version == 0 {
		beat.Version = 1
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO beats (`+columns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (id) DO NOTHING`,
		beat.ID, beat.Title, beat.Description, beat.Genre, beat.BPM, beat.Key, beat.AudioFile, beat.ImageFile, beat.Price,
		beat.CreatorAddress, beat.OwnerAddress, beat.TokenID, beat.ContractAddress, beat.IsListed, beat.PurchaseTxHash,
		beat.Version, beat.CreatedAt, beat.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert beat %s: %w", beat.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to insert beat %s: %w", beat.ID, err)
	}
	if n == 0 {
		return types.NewError(types.KindConflict, fmt.Sprintf("beat %s already exists", beat.ID), nil)
	}
	return nil
}

func (s *Store) FindBeat(ctx context.Context, id string) (*types.BeatListing, error) {
	var beat types.BeatListing
	err := s.db.GetContext(ctx, &beat, `SELECT `+columns+` FROM beats WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.NewError(types.KindNotFound, fmt.Sprintf("beat %s", id), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load beat %s: %w", id, err)
	}
	return &beat, nil
}

func (s *Store) SaveBeat(ctx context.Context, beat *types.BeatListing) error {
	var row struct {
		Version   int64     `db:"version"`
		UpdatedAt time.Time `db:"updated_at"`
	}
	err := s.db.GetContext(ctx, &row, `
		UPDATE beats SET
			title = $2, description = $3, genre = $4, bpm = $5, musical_key = $6,
			audio_file = $7, image_file = $8, price = $9, owner_address = $10,
			token_id = $11, contract_address = $12, is_listed = $13, purchase_tx_hash = $14,
			version = version + 1, updated_at = $15
		WHERE id = $1 AND version = $16
		RETURNING version, updated_at`,
		beat.ID, beat.Title, beat.Description, beat.Genre, beat.BPM, beat.Key,
		beat.AudioFile, beat.ImageFile, beat.Price, beat.OwnerAddress,
		beat.TokenID, beat.ContractAddress, beat.IsListed, beat.PurchaseTxHash,
		s.now().UTC(), beat.Version,
	)
	if errors.Is(err, sql.ErrNoRows) {
		if _, findErr := s.FindBeat(ctx, beat.ID); findErr != nil {
			return findErr
		}
		return types.NewError(types.KindConflict, fmt.Sprintf("beat %s changed since version %d", beat.ID, beat.Version), nil)
	}
	if err != nil {
		return fmt.Errorf("failed to save beat %s: %w", beat.ID, err)
	}

	beat.Version = row.Version
	beat.UpdatedAt = row.UpdatedAt
	return nil
}

func (s *Store) ListListed(ctx context.Context) ([]*types.BeatListing, error) {
	var beats []*types.BeatListing
	err := s.db.SelectContext(ctx, &beats, `SELECT `+columns+` FROM beats WHERE is_listed ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list beats: %w", err)
	}
	return beats, nil
}

// MarkPurchased is a single conditional UPDATE, so concurrent callers race
// on the row lock and only one of them matches.
func (s *Store) MarkPurchased(ctx context.Context, id, owner, txHash string) (*types.BeatListing, error) {
	var beat types.BeatListing
	err := s.db.GetContext(ctx, &beat, `
		UPDATE beats SET
			owner_address = $2, is_listed = FALSE, purchase_tx_hash = $3,
			version = version + 1, updated_at = $4
		WHERE id = $1 AND is_listed AND purchase_tx_hash IS NULL
		RETURNING `+columns,
		id, owner, txHash, s.now().UTC(),
	)
	if errors.Is(err, sql.ErrNoRows) {
		if _, findErr := s.FindBeat(ctx, id); findErr != nil {
			return nil, findErr
		}
		return nil, types.NewError(types.KindConflict, fmt.Sprintf("beat %s is no longer for sale", id), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to mark beat %s purchased: %w", id, err)
	}
	return &beat, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
