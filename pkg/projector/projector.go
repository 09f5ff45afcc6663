package projector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/cuemby/gridfabric/pkg/metrics"
)

// allTables lists every projected table, in the order fork retirement
// sweeps them. Kept in one place so a new family decoder only needs to
// add its table name here and to a migration.
var allTables = []string{
	tableAgents, tableOrganizations,
	tableGridSchemas, tableGridPropertyDefinitions,
	tableRecords, tableAssociatedAgents,
	tableProperties, tableReporters, tableReportedValues,
	tableProposals,
	tableProducts, tableProductPropertyValues,
}

// Projector consumes CommitEvents and maintains the relational projection
// of ledger state, grounded on a pgx+squirrel repository pattern (its
// Select/From/Where/PlaceholderFormat(Dollar) idiom, adapted here to
// per-table upsert/retire statements instead of one repository's CRUD).
type Projector struct {
	pool *pgxpool.Pool
	sb   sq.StatementBuilderType
	log  zerolog.Logger
}

// New wraps an already-connected pool. Callers run Migrate separately so
// schema setup and steady-state operation stay independent concerns.
func New(pool *pgxpool.Pool, logger zerolog.Logger) *Projector {
	return &Projector{
		pool: pool,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		log:  logger,
	}
}

// Process applies one commit event's state changes within a single
// database transaction, resolving forks before projecting any state
// change, then dispatching each change to its family decoder and
// upserting interval-versioned rows.
func (p *Projector) Process(ctx context.Context, event *CommitEvent) error {
	blockNum, err := event.BlockNum()
	if err != nil {
		return err
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("projector: begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	existingID, found, err := p.blockAt(ctx, tx, blockNum)
	if err != nil {
		return err
	}

	switch resolveFork(existingID, found, event.BlockID) {
	case blockIsDuplicate:
		p.log.Debug().Str("block_id", event.BlockID).Uint64("block_num", blockNum).Msg("duplicate commit event, skipping")
		return tx.Rollback(ctx)
	case blockIsFork:
		if err := p.retireAllOpenAt(ctx, tx, blockNum); err != nil {
			return err
		}
		metrics.ForkResolutionsTotal.Inc()
		p.log.Info().Str("block_id", event.BlockID).Str("replaced", existingID).Uint64("block_num", blockNum).Msg("fork resolved")
		query, args, err := p.sb.Delete("blocks").Where(sq.Eq{"block_num": blockNum}).ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("projector: remove replaced block %s: %w", existingID, err)
		}
		if err := p.insertBlock(ctx, tx, event.BlockID, blockNum, event.Source); err != nil {
			return err
		}
	case blockIsNew:
		if err := p.insertBlock(ctx, tx, event.BlockID, blockNum, event.Source); err != nil {
			return err
		}
	}

	for _, change := range event.StateChanges {
		if err := p.applyChange(ctx, tx, change, blockNum); err != nil {
			return fmt.Errorf("projector: apply state change %q: %w", change.Key, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("projector: commit transaction: %w", err)
	}
	metrics.CommitEventsProcessedTotal.Inc()
	metrics.ProjectionLagBlocks.Set(float64(blockNum))
	return nil
}

func (p *Projector) applyChange(ctx context.Context, tx pgx.Tx, change StateChange, blockNum uint64) error {
	switch change.Kind {
	case Set:
		rows, err := DecodeSet(change.Key, change.Value)
		if err != nil {
			return err
		}
		for _, row := range rows {
			if err := p.upsertRow(ctx, tx, row, blockNum); err != nil {
				return err
			}
		}
		return nil
	case Delete:
		refs, err := DecodeDelete(change.Key)
		if err != nil {
			return err
		}
		for _, ref := range refs {
			if err := p.retireOpenRow(ctx, tx, ref.Table, ref.NaturalKey, blockNum); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown state change kind %d", change.Kind)
	}
}

func (p *Projector) blockAt(ctx context.Context, tx pgx.Tx, blockNum uint64) (blockID string, found bool, err error) {
	query, args, err := p.sb.Select("block_id").From("blocks").Where(sq.Eq{"block_num": blockNum}).ToSql()
	if err != nil {
		return "", false, err
	}
	row := tx.QueryRow(ctx, query, args...)
	if err := row.Scan(&blockID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("projector: query block at %d: %w", blockNum, err)
	}
	return blockID, true, nil
}

func (p *Projector) insertBlock(ctx context.Context, tx pgx.Tx, blockID string, blockNum uint64, source string) error {
	query, args, err := p.sb.Insert("blocks").
		Columns("block_id", "block_num", "source").
		Values(blockID, blockNum, source).
		Suffix("ON CONFLICT (block_id) DO NOTHING").
		ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("projector: insert block %s: %w", blockID, err)
	}
	return nil
}

// retireAllOpenAt closes every currently-open row across every projected
// table whose validity interval contains blockNum, as fork resolution
// before any new row is considered.
func (p *Projector) retireAllOpenAt(ctx context.Context, tx pgx.Tx, blockNum uint64) error {
	for _, table := range allTables {
		query, args, err := p.sb.Update(table).
			Set("end_block_num", blockNum).
			Where(sq.LtOrEq{"start_block_num": blockNum}).
			Where(sq.Gt{"end_block_num": blockNum}).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("projector: retire open rows in %s: %w", table, err)
		}
	}
	return nil
}

// upsertRow closes the prior open row for row's natural key in row.Table
// (if any) and inserts the new one, open-ended.
func (p *Projector) upsertRow(ctx context.Context, tx pgx.Tx, row Row, blockNum uint64) error {
	if err := p.retireOpenRow(ctx, tx, row.Table, row.NaturalKey, blockNum); err != nil {
		return err
	}
	data, err := json.Marshal(row.Columns)
	if err != nil {
		return fmt.Errorf("projector: marshal row %s/%s: %w", row.Table, row.NaturalKey, err)
	}
	query, args, err := p.sb.Insert(row.Table).
		Columns("natural_key", "start_block_num", "end_block_num", "data").
		Values(row.NaturalKey, blockNum, MaxBlockNum, data).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("projector: insert row %s/%s: %w", row.Table, row.NaturalKey, err)
	}
	return nil
}

func (p *Projector) retireOpenRow(ctx context.Context, tx pgx.Tx, table, naturalKey string, blockNum uint64) error {
	query, args, err := p.sb.Update(table).
		Set("end_block_num", blockNum).
		Where(sq.Eq{"natural_key": naturalKey, "end_block_num": MaxBlockNum}).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("projector: retire row %s/%s: %w", table, naturalKey, err)
	}
	return nil
}
