/*
Package broker turns the fire-and-forget envelope bus into request/reply
semantics with a timeout.

A pending query is parked per request message id and resolved exactly once,
by whichever of {matching reply, timeout} happens first. The claim is the
removal of the map entry under the mutex: the loser finds the entry gone and
becomes a no-op. Late replies after a timeout are silently discarded.
*/
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"carshare/internal/app/protocol"
	"carshare/internal/app/store"
	"carshare/internal/pkg/logx"
)

// DefaultTimeout is the await window for an outstanding vehicle state query.
const DefaultTimeout = 10 * time.Second

// ErrTimedOut reports that no matching reply arrived within the window.
var ErrTimedOut = errors.New("query timed out")

// pendingQuery is a single-resolution waiter parked for one request id.
type pendingQuery struct {
	waiter    chan json.RawMessage
	createdAt time.Time
}

// Broker correlates request envelopes with their reply payloads.
type Broker struct {
	mu      sync.Mutex
	pending map[string]pendingQuery

	timeout time.Duration
	logger  zerolog.Logger
}

// New constructs a Broker with the given await timeout. A zero timeout
// selects DefaultTimeout.
func New(timeout time.Duration) *Broker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Broker{
		pending: make(map[string]pendingQuery),
		timeout: timeout,
		logger:  logx.Logger().With().Str("component", "Broker").Logger(),
	}
}

// SendAndAwait queues the request on the target connection and blocks the
// calling goroutine until a reply correlated to the request's message id is
// resolved, the timeout elapses (ErrTimedOut), or the context is canceled.
// Other connections keep processing while the caller waits.
func (b *Broker) SendAndAwait(ctx context.Context, target store.Conn, request protocol.Envelope) (json.RawMessage, error) {
	data, err := protocol.Encode(request)
	if err != nil {
		return nil, err
	}

	pq := pendingQuery{
		waiter:    make(chan json.RawMessage, 1),
		createdAt: time.Now(),
	}

	b.mu.Lock()
	b.pending[request.MessageID] = pq
	b.mu.Unlock()

	if err := target.Enqueue(data); err != nil {
		b.claim(request.MessageID)
		return nil, fmt.Errorf("send %s: %w", request.Type, err)
	}

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case payload := <-pq.waiter:
		return payload, nil

	case <-timer.C:
		if !b.claim(request.MessageID) {
			// A reply claimed the query between the timer firing and now;
			// the payload is already buffered in the waiter.
			select {
			case payload := <-pq.waiter:
				return payload, nil
			default:
			}
		}

		b.logger.Warn().
			Str("query_id", request.MessageID).
			Dur("timeout", b.timeout).
			Msg("Pending query timed out.")
		return nil, ErrTimedOut

	case <-ctx.Done():
		b.claim(request.MessageID)
		return nil, ctx.Err()
	}
}

// Resolve delivers a reply payload to the pending query with the given
// correlation id. Unknown or already-claimed ids are discarded; a late
// reply after a timeout is a normal condition, not an error.
func (b *Broker) Resolve(correlationID string, payload json.RawMessage) {
	b.mu.Lock()
	pq, ok := b.pending[correlationID]
	if ok {
		delete(b.pending, correlationID)
	}
	b.mu.Unlock()

	if !ok {
		b.logger.Debug().
			Str("correlation_id", correlationID).
			Msg("Discarding resolution for unknown or timed-out query.")
		return
	}

	// The waiter is buffered and claimed exactly once; this never blocks.
	pq.waiter <- payload

	b.logger.Debug().
		Str("correlation_id", correlationID).
		Dur("latency", time.Since(pq.createdAt)).
		Msg("Pending query resolved.")
}

// claim removes the pending entry if still parked, reporting whether this
// caller won the single resolution.
func (b *Broker) claim(queryID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.pending[queryID]; !ok {
		return false
	}
	delete(b.pending, queryID)
	return true
}

// PendingCount reports the number of parked queries. Used by tests and
// health reporting.
func (b *Broker) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
