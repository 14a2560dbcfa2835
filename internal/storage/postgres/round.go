package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/impostor/internal/game/room"
)

// SchemaVersion is the migration version that created the rounds table.
const SchemaVersion uint = 1

var (
	// ErrInvalidRound is returned when a round record fails validation.
	ErrInvalidRound = errors.New("invalid round record")
	// ErrSchemaOutdated is returned when the database predates the rounds table.
	ErrSchemaOutdated = errors.New("round archive schema outdated")
)

// CheckSchema reports whether a migration state can hold the round archive.
//
// Postcondition: Returns nil when version >= SchemaVersion and the state is
// clean, otherwise an error wrapping ErrSchemaOutdated.
func CheckSchema(version uint, dirty bool) error {
	if dirty {
		return fmt.Errorf("%w: version %d is dirty", ErrSchemaOutdated, version)
	}
	if version < SchemaVersion {
		return fmt.Errorf("%w: version %d, need %d", ErrSchemaOutdated, version, SchemaVersion)
	}
	return nil
}

// RoundRecord is one archived round. The secret word itself is not stored.
type RoundRecord struct {
	ID        int64
	Code      string
	Round     int
	Category  string
	WordIndex int
	Players   int
	StartedAt time.Time
}

// RecordFromResult converts a started round into its archive row.
func RecordFromResult(res room.RoundResult) RoundRecord {
	return RoundRecord{
		Code:      res.Code,
		Round:     res.Round,
		Category:  res.Category,
		WordIndex: res.WordIndex,
		Players:   res.Players,
		StartedAt: res.StartedAt,
	}
}

// Validate checks a record before it is written.
//
// Postcondition: Returns nil or an error wrapping ErrInvalidRound.
func (r RoundRecord) Validate() error {
	switch {
	case r.Code == "":
		return fmt.Errorf("%w: empty room code", ErrInvalidRound)
	case r.Round < 1:
		return fmt.Errorf("%w: round %d", ErrInvalidRound, r.Round)
	case r.Category == "":
		return fmt.Errorf("%w: empty category", ErrInvalidRound)
	case r.WordIndex < 0:
		return fmt.Errorf("%w: word index %d", ErrInvalidRound, r.WordIndex)
	case r.Players < 1:
		return fmt.Errorf("%w: %d players", ErrInvalidRound, r.Players)
	case r.StartedAt.IsZero():
		return fmt.Errorf("%w: missing start time", ErrInvalidRound)
	}
	return nil
}

// RoundRepository writes the round archive. Rows are never read back into
// live room state.
type RoundRepository struct {
	db *pgxpool.Pool
}

// NewRoundRepository creates a RoundRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewRoundRepository(db *pgxpool.Pool) *RoundRepository {
	return &RoundRepository{db: db}
}

// RecordRound archives a started round.
//
// Postcondition: Returns nil after the row is inserted.
func (r *RoundRepository) RecordRound(ctx context.Context, res room.RoundResult) error {
	_, err := r.Insert(ctx, RecordFromResult(res))
	return err
}

// Insert writes rec and returns it with its ID set.
//
// Precondition: rec must pass Validate.
// Postcondition: Returns the stored record or a non-nil error.
func (r *RoundRepository) Insert(ctx context.Context, rec RoundRecord) (RoundRecord, error) {
	if err := rec.Validate(); err != nil {
		return RoundRecord{}, err
	}
	err := r.db.QueryRow(ctx,
		`INSERT INTO rounds (room_code, round, category, word_index, players, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		rec.Code, rec.Round, rec.Category, rec.WordIndex, rec.Players, rec.StartedAt,
	).Scan(&rec.ID)
	if err != nil {
		return RoundRecord{}, fmt.Errorf("inserting round %s/%d: %w", rec.Code, rec.Round, err)
	}
	return rec, nil
}

// CountRounds returns how many rounds were archived for a room code.
func (r *RoundRepository) CountRounds(ctx context.Context, code string) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM rounds WHERE room_code = $1`, code,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting rounds for %s: %w", code, err)
	}
	return n, nil
}

// ListRounds returns the archived rounds for a room code, oldest first.
func (r *RoundRepository) ListRounds(ctx context.Context, code string) ([]RoundRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, room_code, round, category, word_index, players, started_at
		 FROM rounds WHERE room_code = $1 ORDER BY started_at, id`, code,
	)
	if err != nil {
		return nil, fmt.Errorf("listing rounds for %s: %w", code, err)
	}
	defer rows.Close()

	var out []RoundRecord
	for rows.Next() {
		var rec RoundRecord
		if err := rows.Scan(&rec.ID, &rec.Code, &rec.Round, &rec.Category, &rec.WordIndex, &rec.Players, &rec.StartedAt); err != nil {
			return nil, fmt.Errorf("scanning round: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
