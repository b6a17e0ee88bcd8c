// Package execute owns deferred query execution: parameter
// substitution, IN-list expansion, SQL generation, and the lazy,
// single-pass result cursors.
//
// Two cursor flavors share one core state machine (not-yet-started →
// open → exhausted): the blocking Enumerator and the cancellable
// ContextEnumerator. Re-enumerating a QueryingEnumerable re-runs the
// full expansion/generation/open sequence - nothing is cached across
// enumeration sessions.
package execute

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/roach88/entq/internal/shaping"
	"github.com/roach88/entq/internal/sqlexpr"
	"github.com/roach88/entq/internal/sqlgen"
	"github.com/roach88/entq/internal/store"
)

// QueryingEnumerable is a deferred result sequence over one compiled
// query. Each call to Enumerator or ContextEnumerator starts an
// independent single-pass enumeration session.
type QueryingEnumerable struct {
	client      store.Client
	factory     *sqlexpr.Factory
	query       *shaping.CompiledQuery
	params      map[string]any
	contextType string
	logger      *slog.Logger
}

// NewQueryingEnumerable wires a compiled query to a store client.
// contextType names the owning context for execution-error logs.
func NewQueryingEnumerable(
	client store.Client,
	factory *sqlexpr.Factory,
	query *shaping.CompiledQuery,
	params map[string]any,
	contextType string,
	logger *slog.Logger,
) *QueryingEnumerable {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryingEnumerable{
		client:      client,
		factory:     factory,
		query:       query,
		params:      params,
		contextType: contextType,
		logger:      logger,
	}
}

// Enumerator starts a blocking enumeration session.
func (q *QueryingEnumerable) Enumerator() *Enumerator {
	return &Enumerator{core: enumeratorCore{owner: q}}
}

// ContextEnumerator starts a cancellable enumeration session.
// Cancellation is cooperative: it is observed at each advance.
func (q *QueryingEnumerable) ContextEnumerator() *ContextEnumerator {
	return &ContextEnumerator{core: enumeratorCore{owner: q}}
}

type enumState int

const (
	stateNotStarted enumState = iota
	stateOpen
	stateExhausted
)

// enumeratorCore is the shared state machine. Only the suspension
// discipline of its two wrappers differs.
type enumeratorCore struct {
	owner   *QueryingEnumerable
	state   enumState
	cursor  store.Cursor
	current any
	err     error
	queryID string
}

// start runs the once-per-enumeration work: expand pending IN lists
// against runtime parameters, generate the final SQL, open the store
// cursor.
func (c *enumeratorCore) start(ctx context.Context) error {
	q := c.owner
	c.queryID = uuid.NewString()

	sel, err := ExpandInParameters(q.query.Select, q.factory, q.params)
	if err != nil {
		return err
	}
	sql, args, err := sqlgen.Generate(sel, q.params)
	if err != nil {
		return err
	}

	q.logger.Debug("executing query",
		"context", q.contextType,
		"query_id", c.queryID,
		"container", q.query.Container,
		"sql", sql)

	cursor, err := q.client.ExecuteQueryContext(ctx, q.query.Container, sql, args)
	if err != nil {
		return err
	}
	c.cursor = cursor
	c.state = stateOpen
	return nil
}

// advance pulls one record and shapes it. Store errors are logged with
// the owning context type and re-thrown unchanged; the cursor is
// released on every terminal path.
func (c *enumeratorCore) advance(ctx context.Context) bool {
	switch c.state {
	case stateExhausted:
		return false
	case stateNotStarted:
		if err := c.start(ctx); err != nil {
			c.fail(err)
			return false
		}
	}

	if err := ctx.Err(); err != nil {
		c.fail(err)
		return false
	}

	rec, ok, err := c.cursor.Next()
	if err != nil {
		c.fail(err)
		return false
	}
	if !ok {
		c.finish()
		return false
	}
	value, err := c.owner.query.Shaper(rec)
	if err != nil {
		c.fail(err)
		return false
	}
	c.current = value
	return true
}

func (c *enumeratorCore) fail(err error) {
	c.owner.logger.Error("query enumeration failed",
		"context", c.owner.contextType,
		"query_id", c.queryID,
		"container", c.owner.query.Container,
		"error", err)
	c.err = err
	c.finish()
}

func (c *enumeratorCore) finish() {
	c.state = stateExhausted
	c.current = nil
	if c.cursor != nil {
		c.cursor.Close()
		c.cursor = nil
	}
}

func (c *enumeratorCore) close() error {
	if c.cursor != nil {
		err := c.cursor.Close()
		c.cursor = nil
		c.state = stateExhausted
		return err
	}
	c.state = stateExhausted
	return nil
}

// Enumerator is the blocking cursor flavor. It has no cancellation
// path; use ContextEnumerator for cooperative cancellation.
type Enumerator struct {
	core enumeratorCore
}

// Next advances to the next shaped result. The first call opens the
// store cursor. Returns false on exhaustion or error; check Err.
func (e *Enumerator) Next() bool {
	return e.core.advance(context.Background())
}

// Current returns the value produced by the last successful Next.
func (e *Enumerator) Current() any { return e.core.current }

// Err returns the error that terminated enumeration, if any.
func (e *Enumerator) Err() error { return e.core.err }

// Close releases the underlying store cursor. Safe to call at any
// point, including mid-iteration and after exhaustion.
func (e *Enumerator) Close() error { return e.core.close() }

// ContextEnumerator is the cancellable cursor flavor. Suspension
// happens only at Next, awaiting the next store result.
type ContextEnumerator struct {
	core enumeratorCore
}

// Next advances to the next shaped result, observing ctx cancellation
// before pulling from the store.
func (e *ContextEnumerator) Next(ctx context.Context) bool {
	return e.core.advance(ctx)
}

// Current returns the value produced by the last successful Next.
func (e *ContextEnumerator) Current() any { return e.core.current }

// Err returns the error that terminated enumeration, if any.
func (e *ContextEnumerator) Err() error { return e.core.err }

// Close releases the underlying store cursor.
func (e *ContextEnumerator) Close() error { return e.core.close() }

// Drain runs a full blocking enumeration and returns every shaped
// result. Convenience for callers that do not need streaming.
func (q *QueryingEnumerable) Drain() ([]any, error) {
	e := q.Enumerator()
	defer e.Close()
	var out []any
	for e.Next() {
		out = append(out, e.Current())
	}
	if err := e.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
