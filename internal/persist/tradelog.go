package persist

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// TradeLogEntry records one direction of a completed trade: the items
// FromUser handed to ToUser. Audit history only — it is never read back at
// boot and carries no live state.
type TradeLogEntry struct {
	TradeID   uuid.UUID
	FromUser  string
	ToUser    string
	Inventory []string
}

type TradeLogRepo struct {
	db *DB
}

func NewTradeLogRepo(db *DB) *TradeLogRepo {
	return &TradeLogRepo{db: db}
}

// Record writes a batch of trade log entries in a single transaction.
func (r *TradeLogRepo) Record(ctx context.Context, entries []TradeLogEntry) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("trade log begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, e := range entries {
		if _, err := tx.Exec(ctx,
			`INSERT INTO trade_log (trade_id, from_user, to_user, inventory)
			 VALUES ($1, $2, $3, $4)`,
			e.TradeID, e.FromUser, e.ToUser, e.Inventory,
		); err != nil {
			return fmt.Errorf("trade log insert: %w", err)
		}
	}

	return tx.Commit(ctx)
}
