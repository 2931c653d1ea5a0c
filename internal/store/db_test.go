package store

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

// flakyDriver simulates a database that refuses connections until
// flipped up, recording every executed statement.
type flakyDriver struct {
	mu    sync.Mutex
	up    bool
	execs []string
}

func (d *flakyDriver) setUp(up bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.up = up
}

func (d *flakyDriver) statements() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.execs...)
}

func (d *flakyDriver) Open(name string) (driver.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.up {
		return nil, errors.New("connection refused")
	}
	return &flakyConn{d: d}, nil
}

type flakyConn struct {
	d *flakyDriver
}

func (c *flakyConn) Prepare(query string) (driver.Stmt, error) {
	return &flakyStmt{d: c.d, query: query}, nil
}

func (c *flakyConn) Close() error { return nil }

func (c *flakyConn) Begin() (driver.Tx, error) {
	return nil, errors.New("transactions not supported")
}

type flakyStmt struct {
	d     *flakyDriver
	query string
}

func (s *flakyStmt) Close() error  { return nil }
func (s *flakyStmt) NumInput() int { return -1 }

func (s *flakyStmt) Exec(args []driver.Value) (driver.Result, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	s.d.execs = append(s.d.execs, s.query)
	return driver.RowsAffected(0), nil
}

func (s *flakyStmt) Query(args []driver.Value) (driver.Rows, error) {
	return nil, errors.New("queries not supported")
}

func TestEnsureReadyBootstrapsSchemaWhenDatabaseComesUp(t *testing.T) {
	drv := &flakyDriver{}
	sql.Register("flaky", drv)
	client, err := sql.Open("flaky", "")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	d := &DB{Client: client}
	ctx := context.Background()

	require.Error(t, d.EnsureReady(ctx), "probe fails while the database is down")
	assert.Empty(t, drv.statements(), "no schema attempt against a dead database")

	drv.setUp(true)
	require.NoError(t, d.EnsureReady(ctx))
	require.Len(t, drv.statements(), 1, "schema bootstrap runs on the first reachable probe")

	require.NoError(t, d.EnsureReady(ctx))
	assert.Len(t, drv.statements(), 1, "bootstrap does not repeat once done")
}
