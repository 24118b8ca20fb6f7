// Package transport frames JSON-RPC messages over a duplex byte stream.
//
// All outbound traffic goes through a single unbounded FIFO queue drained by
// one writer goroutine, so frames never interleave. Flush inserts a sentinel
// into the same queue and waits for the writer to dequeue it, which is what
// lets a request handler guarantee that every notification enqueued during a
// turn reaches the wire before the turn's response.
package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/soddy-dev/claude-code-acp/internal/jsonrpc"
	"github.com/soddy-dev/claude-code-acp/internal/logging"
)

var ErrClosed = errors.New("transport closed")

// Handler processes one inbound request or notification. The returned
// response is enqueued unless the request is a notification.
type Handler func(ctx context.Context, req jsonrpc.Request) jsonrpc.Response

type outboundItem struct {
	payload []byte
	// flush sentinel; closed by the writer when dequeued
	flushed chan struct{}
}

type clientResponse struct {
	Result json.RawMessage
	Err    *jsonrpc.Error
}

type Transport struct {
	logger *logging.Logger
	in     io.Reader
	out    io.Writer

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []outboundItem
	closed bool

	writerDone chan struct{}

	pendingMu sync.Mutex
	pending   map[string]chan clientResponse
	callSeq   atomic.Uint64
}

func New(in io.Reader, out io.Writer, logger *logging.Logger) *Transport {
	t := &Transport{
		logger:     logger,
		in:         in,
		out:        out,
		writerDone: make(chan struct{}),
		pending:    map[string]chan clientResponse{},
	}
	t.cond = sync.NewCond(&t.mu)
	go t.writeLoop()
	return t
}

// Serve reads line-delimited JSON-RPC messages until EOF, dispatching each
// request on its own goroutine. It returns after all in-flight handlers have
// finished.
func (t *Transport) Serve(ctx context.Context, handler Handler) error {
	scanner := bufio.NewScanner(t.in)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 16*1024*1024)
	var inflight sync.WaitGroup

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			inflight.Wait()
			return ctx.Err()
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var envelope map[string]json.RawMessage
		if err := json.Unmarshal([]byte(line), &envelope); err != nil {
			t.EnqueueResponse(jsonrpc.Failure(nil, jsonrpc.ParseError, "Parse error", map[string]any{"error": err.Error()}))
			continue
		}

		if _, ok := envelope["method"]; ok {
			var req jsonrpc.Request
			if err := json.Unmarshal([]byte(line), &req); err != nil {
				t.EnqueueResponse(jsonrpc.Failure(nil, jsonrpc.InvalidRequest, "Invalid request", map[string]any{"error": err.Error()}))
				continue
			}
			inflight.Add(1)
			go func(request jsonrpc.Request) {
				defer inflight.Done()
				resp := handler(ctx, request)
				if request.IsNotification() {
					return
				}
				t.EnqueueResponse(resp)
			}(req)
			continue
		}

		if _, ok := envelope["id"]; ok {
			t.routeClientResponse([]byte(line))
			continue
		}

		t.logger.Warn("ignoring JSON-RPC message without method or id", map[string]any{"line": line})
	}

	inflight.Wait()
	return scanner.Err()
}

// SendNotification enqueues a bridge-to-client notification.
func (t *Transport) SendNotification(method string, params any) {
	t.enqueueObject(map[string]any{
		"jsonrpc": jsonrpc.Version,
		"method":  method,
		"params":  params,
	})
}

// EnqueueResponse enqueues a response to a client request.
func (t *Transport) EnqueueResponse(resp jsonrpc.Response) {
	t.enqueueObject(resp)
}

// Flush returns once every message enqueued before the call has been handed
// to the underlying writer. Notifications and the sentinel share one queue,
// so dequeueing the sentinel proves everything ahead of it was written.
func (t *Transport) Flush(ctx context.Context) error {
	done := make(chan struct{})

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	t.queue = append(t.queue, outboundItem{flushed: done})
	t.cond.Signal()
	t.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-t.writerDone:
		return ErrClosed
	}
}

// Call sends a bridge-to-client request and waits for the matching response.
func (t *Transport) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	requestID := fmt.Sprintf("bridge_%d", t.callSeq.Add(1))
	waiter := make(chan clientResponse, 1)

	t.pendingMu.Lock()
	t.pending[requestID] = waiter
	t.pendingMu.Unlock()

	t.enqueueObject(map[string]any{
		"jsonrpc": jsonrpc.Version,
		"id":      requestID,
		"method":  method,
		"params":  params,
	})

	select {
	case resp := <-waiter:
		if resp.Err != nil {
			return nil, fmt.Errorf("client %s failed: %w", method, resp.Err)
		}
		if len(resp.Result) == 0 {
			return json.RawMessage(`null`), nil
		}
		return resp.Result, nil
	case <-ctx.Done():
		t.pendingMu.Lock()
		delete(t.pending, requestID)
		t.pendingMu.Unlock()
		return nil, ctx.Err()
	}
}

// Close stops the writer after draining whatever is already queued.
func (t *Transport) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.cond.Signal()
	t.mu.Unlock()

	select {
	case <-t.writerDone:
	case <-time.After(2 * time.Second):
		t.logger.Warn("transport writer did not drain before close deadline", nil)
	}
}

func (t *Transport) enqueueObject(v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		t.logger.Error("failed to serialize outbound message", map[string]any{"error": err.Error()})
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		t.logger.Warn("dropping message enqueued after close", nil)
		return
	}
	t.queue = append(t.queue, outboundItem{payload: payload})
	t.cond.Signal()
}

func (t *Transport) writeLoop() {
	defer close(t.writerDone)
	writer := bufio.NewWriter(t.out)

	for {
		t.mu.Lock()
		for len(t.queue) == 0 && !t.closed {
			t.cond.Wait()
		}
		if len(t.queue) == 0 && t.closed {
			t.mu.Unlock()
			return
		}
		item := t.queue[0]
		t.queue = t.queue[1:]
		t.mu.Unlock()

		if item.flushed != nil {
			// The sentinel resolves only after prior frames hit the writer.
			if err := writer.Flush(); err != nil {
				t.logger.Error("stdout flush failed", map[string]any{"error": err.Error()})
			}
			close(item.flushed)
			continue
		}

		if _, err := writer.Write(append(item.payload, '\n')); err != nil {
			t.logger.Error("stdout write failed", map[string]any{"error": err.Error()})
			continue
		}
		if err := writer.Flush(); err != nil {
			t.logger.Error("stdout flush failed", map[string]any{"error": err.Error()})
		}
	}
}

func (t *Transport) routeClientResponse(line []byte) {
	var resp struct {
		ID     any             `json:"id"`
		Result json.RawMessage `json:"result,omitempty"`
		Error  *jsonrpc.Error  `json:"error,omitempty"`
	}
	if err := json.Unmarshal(line, &resp); err != nil {
		t.logger.Warn("failed to decode client response", map[string]any{"error": err.Error()})
		return
	}

	responseID := fmt.Sprint(resp.ID)
	t.pendingMu.Lock()
	waiter, ok := t.pending[responseID]
	if ok {
		delete(t.pending, responseID)
	}
	t.pendingMu.Unlock()
	if !ok {
		// Late replies for dropped requests are discarded.
		t.logger.Debug("no pending bridge request for response", map[string]any{"id": responseID})
		return
	}

	select {
	case waiter <- clientResponse{Result: resp.Result, Err: resp.Error}:
	default:
	}
}
