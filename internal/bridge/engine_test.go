package bridge

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credativa/procflow/pkg/schema"
)

func TestHTTPEngineSubmit(t *testing.T) {
	var gotKey atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/executions", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		gotKey.Store(r.Header.Get("Idempotency-Key"))
		w.Write([]byte(`{"ref":"exec-42"}`))
	}))
	defer srv.Close()

	eng := NewHTTPEngine(srv.URL, srv.Client(), nil)

	ref, err := eng.Submit(context.Background(), []byte(`{"id":"g1"}`))
	require.NoError(t, err)
	assert.Equal(t, "exec-42", ref)

	key, _ := gotKey.Load().(string)
	assert.Len(t, key, 26, "idempotency key must be a ULID")
}

func TestHTTPEngineSubmitEmptyRef(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	eng := NewHTTPEngine(srv.URL, srv.Client(), nil)

	_, err := eng.Submit(context.Background(), []byte(`{}`))
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeEngine, schema.CodeOf(err))
}

func TestHTTPEngineInspect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/executions/exec-42", r.URL.Path)
		w.Write([]byte(`{"status":"running","current_step_id":"s2"}`))
	}))
	defer srv.Close()

	eng := NewHTTPEngine(srv.URL, srv.Client(), nil)

	state, err := eng.Inspect(context.Background(), "exec-42")
	require.NoError(t, err)
	assert.Equal(t, schema.ExecutionRunning, state.Status)
	assert.Equal(t, "s2", state.CurrentStepID)
}

func TestHTTPEngineInspectNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	eng := NewHTTPEngine(srv.URL, srv.Client(), nil)

	_, err := eng.Inspect(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeNotFound, schema.CodeOf(err))
}

func TestHTTPEngineSubmitTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server watches the connection and cancels
		// the request context when the client gives up.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	eng := NewHTTPEngine(srv.URL, srv.Client(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := eng.Submit(ctx, []byte(`{}`))
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeTimeout, schema.CodeOf(err))
}

func TestHTTPEngineCircuitOpensAfterConsecutiveFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	eng := NewHTTPEngine(srv.URL, srv.Client(), nil)
	ctx := context.Background()

	for i := 0; i < int(defaultMaxFailures); i++ {
		_, err := eng.Inspect(ctx, "exec-1")
		require.Error(t, err)
	}

	// The breaker is now open; the next call fails without hitting the server.
	_, err := eng.Inspect(ctx, "exec-1")
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeEngine, schema.CodeOf(err))
	assert.Contains(t, err.Error(), "circuit open")
}
