package tx

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
)

func TestWithTx_NilLeavesContextUntouched(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, WithTx(ctx, nil))

	_, ok := From(ctx)
	assert.False(t, ok)
}

func TestFrom_RoundTrip(t *testing.T) {
	sqlTx := &sqlx.Tx{}
	ctx := WithTx(context.Background(), sqlTx)

	got, ok := From(ctx)
	assert.True(t, ok)
	assert.Same(t, sqlTx, got)
}

func TestPick_PrefersContextTransaction(t *testing.T) {
	db := &sqlx.DB{}
	sqlTx := &sqlx.Tx{}

	assert.Same(t, db, Pick(context.Background(), db))
	assert.Same(t, sqlTx, Pick(WithTx(context.Background(), sqlTx), db))
}
