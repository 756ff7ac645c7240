package allocation_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/allocation"
)

// scriptedTx records calls and returns the configured errors.
type scriptedTx struct {
	commitErr   error
	rollbackErr error
	commits     int
	rollbacks   int
}

func (tx *scriptedTx) CreateTransferHeader(context.Context, allocation.TransferHeader) (int64, error) {
	return 1, nil
}

func (tx *scriptedTx) CreateTransferLine(context.Context, allocation.TransferLine) (int64, error) {
	return 1, nil
}

func (tx *scriptedTx) Commit() error {
	tx.commits++
	return tx.commitErr
}

func (tx *scriptedTx) Rollback() error {
	tx.rollbacks++
	return tx.rollbackErr
}

// scriptedStore only supports Begin.
type scriptedStore struct {
	allocation.Reader
	tx *scriptedTx
}

func (s *scriptedStore) Begin(context.Context) (allocation.Tx, error) {
	return s.tx, nil
}

func TestWithTx_CommitSkipsRollback(t *testing.T) {
	tx := &scriptedTx{}

	err := allocation.WithTx(context.Background(), &scriptedStore{tx: tx}, func(allocation.Writer) error { return nil })

	require.NoError(t, err)
	assert.Equal(t, 1, tx.commits)
	assert.Equal(t, 0, tx.rollbacks)
}

func TestWithTx_RollbackErrorJoinsCause(t *testing.T) {
	// GIVEN: A transaction whose rollback also fails
	cause := errors.New("insert failed")
	rbErr := errors.New("connection reset")
	tx := &scriptedTx{rollbackErr: rbErr}

	// WHEN
	err := allocation.WithTx(context.Background(), &scriptedStore{tx: tx}, func(allocation.Writer) error { return cause })

	// THEN: Both errors survive and nothing was committed
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, rbErr)
	assert.Contains(t, err.Error(), "rollback")
	assert.Equal(t, 0, tx.commits)
	assert.Equal(t, 1, tx.rollbacks)
}

func TestWithTx_CommitErrorRollsBack(t *testing.T) {
	commitErr := errors.New("serialization failure")
	tx := &scriptedTx{commitErr: commitErr}

	err := allocation.WithTx(context.Background(), &scriptedStore{tx: tx}, func(allocation.Writer) error { return nil })

	assert.ErrorIs(t, err, commitErr)
	assert.Equal(t, 1, tx.rollbacks)
}
