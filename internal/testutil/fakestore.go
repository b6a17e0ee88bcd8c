// Package testutil provides deterministic test doubles shared across
// the pipeline packages: an in-memory store client and canned
// metadata models.
package testutil

import (
	"context"
	"sync"

	"github.com/roach88/entq/internal/store"
)

// ExecutedQuery records one query handed to a FakeClient.
type ExecutedQuery struct {
	Container string
	SQL       string
	Args      []any
}

// FakeClient is an in-memory store.Client. Every ExecuteQuery call
// returns a fresh cursor over Records, so the same client can serve
// repeated executions of the same query.
//
// Thread-safety: safe for concurrent use via internal mutex.
type FakeClient struct {
	// Records are yielded in order by each cursor.
	Records []store.Record

	// OpenErr, when set, is returned from ExecuteQuery instead of a
	// cursor.
	OpenErr error

	// FailAfter injects FailErr from cursor.Next after that many
	// successful advances. Zero disables injection.
	FailAfter int
	FailErr   error

	mu       sync.Mutex
	executed []ExecutedQuery
	cursors  []*FakeCursor
}

var _ store.Client = (*FakeClient)(nil)

// ExecuteQuery implements store.Client.
func (c *FakeClient) ExecuteQuery(container, query string, args []any) (store.Cursor, error) {
	return c.ExecuteQueryContext(context.Background(), container, query, args)
}

// ExecuteQueryContext implements store.Client.
func (c *FakeClient) ExecuteQueryContext(ctx context.Context, container, query string, args []any) (store.Cursor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.executed = append(c.executed, ExecutedQuery{Container: container, SQL: query, Args: args})
	if c.OpenErr != nil {
		return nil, c.OpenErr
	}
	cur := &FakeCursor{
		records:   c.Records,
		failAfter: c.FailAfter,
		failErr:   c.FailErr,
	}
	c.cursors = append(c.cursors, cur)
	return cur, nil
}

// Executed returns a copy of the queries executed so far.
func (c *FakeClient) Executed() []ExecutedQuery {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ExecutedQuery, len(c.executed))
	copy(out, c.executed)
	return out
}

// Cursors returns every cursor the client has handed out, in order.
// Tests use this to assert disposal.
func (c *FakeClient) Cursors() []*FakeCursor {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*FakeCursor, len(c.cursors))
	copy(out, c.cursors)
	return out
}

// FakeCursor is the cursor type handed out by FakeClient.
type FakeCursor struct {
	records   []store.Record
	pos       int
	failAfter int
	failErr   error
	closed    int
}

var _ store.Cursor = (*FakeCursor)(nil)

// Next implements store.Cursor.
func (c *FakeCursor) Next() (store.Record, bool, error) {
	if c.closed > 0 {
		return nil, false, nil
	}
	if c.failAfter > 0 && c.pos == c.failAfter {
		return nil, false, c.failErr
	}
	if c.pos >= len(c.records) {
		return nil, false, nil
	}
	rec := c.records[c.pos]
	c.pos++
	return rec, true, nil
}

// Close implements store.Cursor. Safe to call more than once.
func (c *FakeCursor) Close() error {
	c.closed++
	return nil
}

// CloseCount returns how many times Close was called.
func (c *FakeCursor) CloseCount() int { return c.closed }

// Closed reports whether Close was called at least once.
func (c *FakeCursor) Closed() bool { return c.closed > 0 }

// Docs builds a record slice from document literals.
func Docs(docs ...store.Document) []store.Record {
	out := make([]store.Record, len(docs))
	for i, d := range docs {
		out[i] = d
	}
	return out
}
