package pending

import (
	"context"
	"sync/atomic"

	"github.com/ValentinKolb/dStream/rpc/common"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger(common.LoggerTransport)

// result is the outcome of a call
type result struct {
	resp *common.Response
	err  error
}

// Call is a registered outbound request waiting for its response
type Call struct {
	id    uint64
	done  chan result // buffered (1), written exactly once
	table *Table
}

// Table holds all outstanding calls of one connection
type Table struct {
	calls  *xsync.MapOf[uint64, *Call]
	nextID atomic.Uint64
}

// NewTable creates an empty table. The first id handed out is 1.
func NewTable() *Table {
	return &Table{
		calls: xsync.NewMapOf[uint64, *Call](),
	}
}

// Register allocates a new id and the call waiting for it
func (t *Table) Register() (uint64, *Call) {
	id := t.nextID.Add(1)
	c := &Call{
		id:    id,
		done:  make(chan result, 1),
		table: t,
	}
	t.calls.Store(id, c)
	common.AddPending(1)
	return id, c
}

// Resolve completes the call with the given id. It returns false if no such call
// is outstanding (stale or duplicate response).
func (t *Table) Resolve(id uint64, resp *common.Response) bool {
	c, ok := t.calls.LoadAndDelete(id)
	if !ok {
		Logger.Warningf("Received response for unknown request ID %d", id)
		return false
	}
	common.AddPending(-1)
	c.done <- result{resp: resp}
	return true
}

// Fail completes the call with the given id with err
func (t *Table) Fail(id uint64, err error) bool {
	c, ok := t.calls.LoadAndDelete(id)
	if !ok {
		return false
	}
	common.AddPending(-1)
	c.done <- result{err: err}
	return true
}

// FailAll completes every outstanding call with err and returns how many calls were failed
func (t *Table) FailAll(err error) int {
	failed := 0
	t.calls.Range(func(id uint64, _ *Call) bool {
		if t.Fail(id, err) {
			failed++
		}
		return true
	})
	if failed > 0 {
		Logger.Debugf("Failed %d pending calls: %v", failed, err)
	}
	return failed
}

// Len returns the number of outstanding calls
func (t *Table) Len() int {
	return t.calls.Size()
}

// ID returns the correlation id of the call
func (c *Call) ID() uint64 {
	return c.id
}

// Wait blocks until the call completes or ctx is done. In the latter case the
// call is removed from the table and ctx.Err() is returned.
func (c *Call) Wait(ctx context.Context) (*common.Response, error) {
	select {
	case r := <-c.done:
		return r.resp, r.err
	case <-ctx.Done():
	}

	// the call may have completed concurrently, its result wins
	if _, ok := c.table.calls.LoadAndDelete(c.id); !ok {
		r := <-c.done
		return r.resp, r.err
	}
	common.AddPending(-1)
	return nil, ctx.Err()
}
