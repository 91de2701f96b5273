package postgres

import (
	"context"
	"database/sql"
	"time"

	"hearth/internal/listing/service"
	dErrors "hearth/pkg/domain-errors"
	"hearth/pkg/platform/tx"
)

const defaultTxTimeout = 5 * time.Second

// RunInTx runs fn inside one READ COMMITTED transaction. Lost updates are
// prevented by the revision check in Update, not by the isolation level.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, stores service.Stores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTxTimeout)
		defer cancel()
	}

	sqlTx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if err := fn(tx.WithTx(ctx, sqlTx), service.Stores{Listings: s, Versions: s}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return mapWriteError("commit listing transaction", err)
	}
	return nil
}
