// ABOUTME: Tests for frame routing and per-connection ordered serving
// ABOUTME: Uses an in-memory sender instead of real sockets

package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punchai/punch-gateway/internal/envelope"
	"github.com/punchai/punch-gateway/internal/packs"
)

type recordingSender struct {
	mu        sync.Mutex
	sent      map[string][]*envelope.Envelope
	clientIDs map[string]string
	closed    map[string]bool
}

func newRecordingSender() *recordingSender {
	return &recordingSender{
		sent:      make(map[string][]*envelope.Envelope),
		clientIDs: make(map[string]string),
		closed:    make(map[string]bool),
	}
}

func (s *recordingSender) Send(ctx context.Context, connectionID string, env *envelope.Envelope) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed[connectionID] {
		return false
	}
	s.sent[connectionID] = append(s.sent[connectionID], env)
	return true
}

func (s *recordingSender) NoteClientID(connectionID, clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clientIDs[connectionID] = clientID
}

func (s *recordingSender) envelopes(connectionID string) []*envelope.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*envelope.Envelope(nil), s.sent[connectionID]...)
}

type echoInput struct {
	Text string `json:"text"`
}

var invocations atomic.Int64

func newTestDispatcher(t *testing.T, extra ...*packs.BuiltinTool) *Dispatcher {
	t.Helper()
	tools := []*packs.BuiltinTool{
		packs.TypedTool("echo", "Echo", func(ctx context.Context, callerID string, in echoInput) (any, error) {
			invocations.Add(1)
			return map[string]string{"text": in.Text}, nil
		}),
		packs.TypedTool("fail", "Always fails", func(ctx context.Context, callerID string, in struct{}) (any, error) {
			invocations.Add(1)
			return nil, errors.New("task 4 not found")
		}),
	}
	tools = append(tools, extra...)

	registry := packs.NewRegistry(nil)
	require.NoError(t, registry.RegisterBuiltinPack(&packs.BuiltinPack{ID: "test", Tools: tools}))
	return New(packs.NewRouter(registry, nil), nil)
}

func TestRoute_Success(t *testing.T) {
	d := newTestDispatcher(t)

	resp := d.Route(context.Background(), "c1", []byte(`{"type":"tool_call","client_id":"x","tool":"echo","params":{"text":"hi"}}`))

	assert.Equal(t, envelope.TypeToolResponse, resp.Type)
	assert.Equal(t, "echo", resp.Tool)
	assert.Empty(t, resp.Error)
	assert.JSONEq(t, `{"text":"hi"}`, string(resp.Result))
}

func TestRoute_MalformedFrame(t *testing.T) {
	d := newTestDispatcher(t)

	for _, frame := range []string{`not json`, `{"type":`, `[]`, `{"type":"tool_call"}`} {
		resp := d.Route(context.Background(), "c1", []byte(frame))
		assert.Equal(t, envelope.TypeError, resp.Type, "frame %q", frame)
		assert.Equal(t, InvalidFrameMessage, resp.Error)
	}
}

func TestRoute_UnsupportedType(t *testing.T) {
	d := newTestDispatcher(t)

	resp := d.Route(context.Background(), "c1", []byte(`{"type":"tool_response","tool":"echo"}`))
	assert.Equal(t, envelope.TypeError, resp.Type)
	assert.Equal(t, "unsupported message type: tool_response", resp.Error)
}

func TestRoute_UnknownToolNeverInvokesHandler(t *testing.T) {
	d := newTestDispatcher(t)
	before := invocations.Load()

	resp := d.Route(context.Background(), "c1", []byte(`{"type":"tool_call","tool":"drop_tables","params":{"text":"x"}}`))

	assert.Equal(t, envelope.TypeToolResponse, resp.Type)
	assert.Equal(t, "drop_tables", resp.Tool)
	assert.Equal(t, "unknown tool: drop_tables", resp.Error)
	assert.Equal(t, before, invocations.Load())
}

func TestRoute_SchemaViolation(t *testing.T) {
	d := newTestDispatcher(t)
	before := invocations.Load()

	resp := d.Route(context.Background(), "c1", []byte(`{"type":"tool_call","tool":"echo","params":{"text":5}}`))

	assert.Equal(t, envelope.TypeToolResponse, resp.Type)
	assert.Contains(t, resp.Error, "text")
	assert.Equal(t, before, invocations.Load())
}

func TestRoute_HandlerError(t *testing.T) {
	d := newTestDispatcher(t)

	resp := d.Route(context.Background(), "c1", []byte(`{"type":"tool_call","tool":"fail"}`))

	assert.Equal(t, envelope.TypeToolResponse, resp.Type)
	assert.Equal(t, "fail", resp.Tool)
	assert.Equal(t, "task 4 not found", resp.Error)
	assert.Nil(t, resp.Result)
}

func TestRoute_HandlerOutlivesCancelledContext(t *testing.T) {
	var sawCancel atomic.Bool
	slow := packs.TypedTool("slow", "Slow", func(ctx context.Context, callerID string, in struct{}) (any, error) {
		time.Sleep(20 * time.Millisecond)
		sawCancel.Store(ctx.Err() != nil)
		return "done", nil
	})
	d := newTestDispatcher(t, slow)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	resp := d.Route(ctx, "c1", []byte(`{"type":"tool_call","tool":"slow"}`))
	assert.Empty(t, resp.Error)
	assert.JSONEq(t, `"done"`, string(resp.Result))
	assert.False(t, sawCancel.Load())
}

func TestServe_PreservesOrderAndRecovers(t *testing.T) {
	d := newTestDispatcher(t)
	sender := newRecordingSender()

	inbox := make(chan []byte, 8)
	inbox <- []byte(`{"type":"tool_call","client_id":"me","tool":"echo","params":{"text":"one"}}`)
	inbox <- []byte(`garbage`)
	inbox <- []byte(`{"type":"tool_call","tool":"echo","params":{"text":"two"}}`)
	inbox <- []byte(`{"type":"tool_call","tool":"echo","params":{"text":"three"}}`)
	close(inbox)

	d.Serve(context.Background(), "c1", inbox, sender)

	got := sender.envelopes("c1")
	require.Len(t, got, 4)
	assert.JSONEq(t, `{"text":"one"}`, string(got[0].Result))
	assert.Equal(t, envelope.TypeError, got[1].Type)
	assert.JSONEq(t, `{"text":"two"}`, string(got[2].Result))
	assert.JSONEq(t, `{"text":"three"}`, string(got[3].Result))

	assert.Equal(t, "me", sender.clientIDs["c1"])
}

func TestServe_ResponsesOnlyToOrigin(t *testing.T) {
	d := newTestDispatcher(t)
	sender := newRecordingSender()

	a := make(chan []byte, 1)
	b := make(chan []byte, 1)
	a <- []byte(`{"type":"tool_call","tool":"echo","params":{"text":"from-a"}}`)
	b <- []byte(`{"type":"tool_call","tool":"echo","params":{"text":"from-b"}}`)
	close(a)
	close(b)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); d.Serve(context.Background(), "a", a, sender) }()
	go func() { defer wg.Done(); d.Serve(context.Background(), "b", b, sender) }()
	wg.Wait()

	gotA := sender.envelopes("a")
	gotB := sender.envelopes("b")
	require.Len(t, gotA, 1)
	require.Len(t, gotB, 1)

	var ra, rb map[string]string
	require.NoError(t, json.Unmarshal(gotA[0].Result, &ra))
	require.NoError(t, json.Unmarshal(gotB[0].Result, &rb))
	assert.Equal(t, "from-a", ra["text"])
	assert.Equal(t, "from-b", rb["text"])
}

func TestServe_StopsOnContextDone(t *testing.T) {
	d := newTestDispatcher(t)
	sender := newRecordingSender()

	ctx, cancel := context.WithCancel(context.Background())
	inbox := make(chan []byte)

	done := make(chan struct{})
	go func() {
		d.Serve(ctx, "c1", inbox, sender)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestServe_DropsForClosedConnection(t *testing.T) {
	d := newTestDispatcher(t)
	sender := newRecordingSender()
	sender.closed["gone"] = true

	inbox := make(chan []byte, 1)
	inbox <- []byte(`{"type":"tool_call","tool":"echo","params":{"text":"x"}}`)
	close(inbox)

	d.Serve(context.Background(), "gone", inbox, sender)
	assert.Empty(t, sender.envelopes("gone"))
}

func TestServe_SendsWhatRouteReturns(t *testing.T) {
	d := newTestDispatcher(t)
	frames := []string{
		`{"type":"tool_call","tool":"echo","params":{"text":"hi"}}`,
		`not json`,
		`{"type":"tool_response","tool":"echo"}`,
		`{"type":"tool_call","tool":"drop_tables"}`,
		`{"type":"tool_call","tool":"echo","params":{"text":5}}`,
		`{"type":"tool_call","tool":"fail","params":{}}`,
	}

	sender := newRecordingSender()
	inbox := make(chan []byte, len(frames))
	for _, f := range frames {
		inbox <- []byte(f)
	}
	close(inbox)
	d.Serve(context.Background(), "c1", inbox, sender)

	got := sender.envelopes("c1")
	require.Len(t, got, len(frames))
	for i, f := range frames {
		assert.Equal(t, d.Route(context.Background(), "c1", []byte(f)), got[i], "frame %s", f)
	}
}

func TestServe_IgnoresClientIDOfMalformedFrame(t *testing.T) {
	d := newTestDispatcher(t)
	sender := newRecordingSender()

	inbox := make(chan []byte, 1)
	inbox <- []byte(`{"client_id":"spoof","tool":"echo"}`)
	close(inbox)
	d.Serve(context.Background(), "c1", inbox, sender)

	assert.Empty(t, sender.clientIDs)
	require.Len(t, sender.envelopes("c1"), 1)
	assert.Equal(t, InvalidFrameMessage, sender.envelopes("c1")[0].Error)
}
