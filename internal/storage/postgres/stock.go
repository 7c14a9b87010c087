package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vendhub/marketplace/internal/domain/inventory"
	"github.com/vendhub/marketplace/internal/domain/product"
)

const (
	reserveProductStockSQL = `UPDATE products SET stock = stock - $1
		WHERE id = $2 AND stock >= $1 RETURNING stock`
	reserveVariantStockSQL = `UPDATE product_variants SET stock = stock - $1
		WHERE id = $2 AND product_id = $3 AND stock >= $1 RETURNING stock`

	releaseProductStockSQL = `UPDATE products SET stock = stock + $1
		WHERE id = $2 RETURNING stock`
	releaseVariantStockSQL = `UPDATE product_variants SET stock = stock + $1
		WHERE id = $2 AND product_id = $3 RETURNING stock`

	setProductStockSQL = `UPDATE products SET stock = $1
		WHERE id = $2 RETURNING (SELECT stock FROM products WHERE id = $2)`
	setVariantStockSQL = `UPDATE product_variants SET stock = $1
		WHERE id = $2 AND product_id = $3
		RETURNING (SELECT stock FROM product_variants WHERE id = $2 AND product_id = $3)`

	currentProductStockSQL = `SELECT stock FROM products WHERE id = $1`
	currentVariantStockSQL = `SELECT stock FROM product_variants WHERE id = $1 AND product_id = $2`

	insertLedgerEntrySQL = `INSERT INTO inventory_history
		(product_id, variant_id, change_type, previous_stock, new_stock, reason, actor)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
)

// reserveStockTx decrements the item's stock by qty with a conditional UPDATE
// so the row can never go negative, even under concurrent reservations. On
// failure it reports the stock actually available, or product.ErrNotFound when
// the row does not exist.
func reserveStockTx(ctx context.Context, tx pgx.Tx, ref inventory.ItemRef, qty int) (prev, next int, err error) {
	var row pgx.Row
	if ref.VariantID == "" {
		row = tx.QueryRow(ctx, reserveProductStockSQL, qty, ref.ProductID)
	} else {
		row = tx.QueryRow(ctx, reserveVariantStockSQL, qty, ref.VariantID, ref.ProductID)
	}

	if err := row.Scan(&next); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, errors.Wrapf(err, "reserving stock for %s", ref)
		}
		// The conditional update matched nothing: either the row is
		// missing or it holds less than qty.
		avail, err := currentStockTx(ctx, tx, ref)
		if err != nil {
			return 0, 0, err
		}
		return 0, 0, &inventory.InsufficientStockError{Ref: ref, Requested: qty, Available: avail}
	}
	return next + qty, next, nil
}

// releaseStockTx increments the item's stock by qty.
func releaseStockTx(ctx context.Context, tx pgx.Tx, ref inventory.ItemRef, qty int) (prev, next int, err error) {
	var row pgx.Row
	if ref.VariantID == "" {
		row = tx.QueryRow(ctx, releaseProductStockSQL, qty, ref.ProductID)
	} else {
		row = tx.QueryRow(ctx, releaseVariantStockSQL, qty, ref.VariantID, ref.ProductID)
	}

	if err := row.Scan(&next); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, product.ErrNotFound
		}
		return 0, 0, errors.Wrapf(err, "releasing stock for %s", ref)
	}
	return next - qty, next, nil
}

func currentStockTx(ctx context.Context, tx pgx.Tx, ref inventory.ItemRef) (int, error) {
	var row pgx.Row
	if ref.VariantID == "" {
		row = tx.QueryRow(ctx, currentProductStockSQL, ref.ProductID)
	} else {
		row = tx.QueryRow(ctx, currentVariantStockSQL, ref.VariantID, ref.ProductID)
	}

	var stock int
	if err := row.Scan(&stock); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, product.ErrNotFound
		}
		return 0, errors.Wrapf(err, "reading stock for %s", ref)
	}
	return stock, nil
}

// insertLedgerTx appends a ledger row for a stock change that already happened
// in this transaction.
func insertLedgerTx(ctx context.Context, tx pgx.Tx, ref inventory.ItemRef, prev, next int, reason, actor string) error {
	_, err := tx.Exec(ctx, insertLedgerEntrySQL,
		ref.ProductID, ref.VariantID, inventory.Classify(prev, next), prev, next, reason, actor,
	)
	return errors.Wrapf(err, "recording ledger entry for %s", ref)
}

const listLedgerSQL = `SELECT id, product_id, variant_id, change_type,
	previous_stock, new_stock, reason, actor, created_at
	FROM inventory_history
	WHERE ($1 = '' OR product_id = $1)
	ORDER BY created_at DESC, id DESC
	LIMIT $2 OFFSET $3`

var (
	_ inventory.Reservations = (*InventoryRepository)(nil)
	_ inventory.Ledger       = (*InventoryRepository)(nil)
)

// InventoryRepository is the standalone entry point for direct stock
// operations (admin restock, adjustment) and ledger reads. Cart and order
// flows use the same tx helpers inside their own transactions.
type InventoryRepository struct {
	pool *pgxpool.Pool
}

// NewInventoryRepository returns an InventoryRepository that uses the given pool.
func NewInventoryRepository(pool *pgxpool.Pool) *InventoryRepository {
	return &InventoryRepository{pool: pool}
}

// Reserve decrements stock by qty and records the change, all in one
// transaction.
func (r *InventoryRepository) Reserve(ctx context.Context, ref inventory.ItemRef, qty int, reason, actor string) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		prev, next, err := reserveStockTx(ctx, tx, ref, qty)
		if err != nil {
			return err
		}
		return insertLedgerTx(ctx, tx, ref, prev, next, reason, actor)
	})
}

// Release increments stock by qty and records the change.
func (r *InventoryRepository) Release(ctx context.Context, ref inventory.ItemRef, qty int, reason, actor string) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		prev, next, err := releaseStockTx(ctx, tx, ref, qty)
		if err != nil {
			return err
		}
		return insertLedgerTx(ctx, tx, ref, prev, next, reason, actor)
	})
}

// Adjust sets stock to an absolute level and returns the recorded entry. A
// zero delta is still recorded, as an adjustment.
func (r *InventoryRepository) Adjust(ctx context.Context, ref inventory.ItemRef, newStock int, reason, actor string) (*inventory.Entry, error) {
	var entry inventory.Entry
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		var row pgx.Row
		if ref.VariantID == "" {
			row = tx.QueryRow(ctx, setProductStockSQL, newStock, ref.ProductID)
		} else {
			row = tx.QueryRow(ctx, setVariantStockSQL, newStock, ref.VariantID, ref.ProductID)
		}

		var prev int
		if err := row.Scan(&prev); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return product.ErrNotFound
			}
			return errors.Wrapf(err, "adjusting stock for %s", ref)
		}

		entry = inventory.Entry{
			Ref:           ref,
			Type:          inventory.Classify(prev, newStock),
			PreviousStock: prev,
			NewStock:      newStock,
			Reason:        reason,
			Actor:         actor,
			CreatedAt:     time.Now(),
		}
		return insertLedgerTx(ctx, tx, ref, prev, newStock, reason, actor)
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// History lists ledger entries, newest first.
func (r *InventoryRepository) History(ctx context.Context, f inventory.HistoryFilter) ([]inventory.Entry, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, listLedgerSQL, f.ProductID, limit, f.Offset)
	if err != nil {
		return nil, errors.Wrap(err, "listing inventory history")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (inventory.Entry, error) {
		var e inventory.Entry
		err := row.Scan(
			&e.ID, &e.Ref.ProductID, &e.Ref.VariantID, &e.Type,
			&e.PreviousStock, &e.NewStock, &e.Reason, &e.Actor, &e.CreatedAt,
		)
		return e, err
	})
}
