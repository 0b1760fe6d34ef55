package sqlutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// txLog is a database/sql driver that only understands transactions and
// records how each one ended.
type txLog struct {
	mu           sync.Mutex
	ended        []string
	failCommit   error
	failRollback error
}

func (l *txLog) record(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ended = append(l.ended, s)
}

func (l *txLog) Open(string) (driver.Conn, error) { return &txConn{log: l}, nil }
func (l *txLog) Connect(context.Context) (driver.Conn, error) { return &txConn{log: l}, nil }
func (l *txLog) Driver() driver.Driver { return l }

type txConn struct{ log *txLog }

func (c *txConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not supported") }
func (c *txConn) Close() error { return nil }
func (c *txConn) Begin() (driver.Tx, error) { return &txTx{log: c.log}, nil }

type txTx struct{ log *txLog }

func (t *txTx) Commit() error {
	t.log.record("commit")
	return t.log.failCommit
}

func (t *txTx) Rollback() error {
	t.log.record("rollback")
	return t.log.failRollback
}

type queries struct{ tx *sql.Tx }

func newQueries(tx *sql.Tx) *queries { return &queries{tx: tx} }

func open(t *testing.T, l *txLog) *sql.DB {
	t.Helper()
	db := sql.OpenDB(l)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRunCommits(t *testing.T) {
	l := &txLog{}
	err := Run(context.Background(), open(t, l), newQueries, func(q *queries) error {
		assert.NotNil(t, q.tx)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"commit"}, l.ended)
}

func TestRunRollsBackOnError(t *testing.T) {
	boom := errors.New("boom")
	l := &txLog{}
	err := Run(context.Background(), open(t, l), newQueries, func(*queries) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"rollback"}, l.ended)
}

func TestRunJoinsRollbackFailure(t *testing.T) {
	boom := errors.New("boom")
	gone := errors.New("connection gone")
	l := &txLog{failRollback: gone}
	err := Run(context.Background(), open(t, l), newQueries, func(*queries) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, gone)
}

func TestRunWrapsCommitFailure(t *testing.T) {
	refused := errors.New("serialization failure")
	l := &txLog{failCommit: refused}
	err := Run(context.Background(), open(t, l), newQueries, func(*queries) error { return nil })
	assert.ErrorIs(t, err, refused)
	assert.Contains(t, err.Error(), "commit transaction")
}

func TestRunRollsBackOnPanic(t *testing.T) {
	l := &txLog{}
	assert.Panics(t, func() {
		_ = Run(context.Background(), open(t, l), newQueries, func(*queries) error { panic("bad row") })
	})
	assert.Equal(t, []string{"rollback"}, l.ended)
}
