package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sony/gobreaker/v2"

	"github.com/credativa/procflow/pkg/schema"
)

// Engine is the external execution engine the editor submits graphs to.
// The editor never advances executions itself; Submit hands a storage record
// over and Inspect polls for the engine-owned state.
type Engine interface {
	Submit(ctx context.Context, record []byte) (string, error)
	Inspect(ctx context.Context, ref string) (*schema.ExecutionState, error)
}

// Default circuit breaker settings for the engine client.
const (
	defaultMaxFailures uint32        = 5
	defaultCBTimeout   time.Duration = 30 * time.Second
	defaultCBInterval  time.Duration = 60 * time.Second
)

// HTTPEngine talks to the execution engine over HTTP. Calls run through a
// circuit breaker so a struggling engine fails fast instead of stacking
// retries. Each submission carries a ULID idempotency key; the engine
// deduplicates replays of the same submission after network errors.
type HTTPEngine struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	logger  *slog.Logger
}

// NewHTTPEngine creates an HTTPEngine for the engine at baseURL.
// A nil client defaults to one with a 30s timeout.
func NewHTTPEngine(baseURL string, client *http.Client, logger *slog.Logger) *HTTPEngine {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}

	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "engine:" + baseURL,
		MaxRequests: 1, // allow 1 probe in half-open state
		Interval:    defaultCBInterval,
		Timeout:     defaultCBTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= defaultMaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return &HTTPEngine{
		baseURL: baseURL,
		client:  client,
		breaker: cb,
		logger:  logger,
	}
}

// Submit posts a serialized storage record to the engine and returns the
// execution reference it assigns.
func (e *HTTPEngine) Submit(ctx context.Context, record []byte) (string, error) {
	idempotencyKey := newIdempotencyKey()

	body, err := e.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/executions", bytes.NewReader(record))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", idempotencyKey)
		return e.do(req)
	})
	if err != nil {
		return "", engineError(ctx, err, "submit")
	}

	var resp struct {
		Ref string `json:"ref"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", schema.NewError(schema.ErrCodeEngine, "malformed submit response").WithCause(err)
	}
	if resp.Ref == "" {
		return "", schema.NewError(schema.ErrCodeEngine, "engine returned no execution reference")
	}
	return resp.Ref, nil
}

// Inspect polls the engine for the current state of an execution.
func (e *HTTPEngine) Inspect(ctx context.Context, ref string) (*schema.ExecutionState, error) {
	body, err := e.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/executions/"+ref, nil)
		if err != nil {
			return nil, err
		}
		return e.do(req)
	})
	if err != nil {
		return nil, engineError(ctx, err, "inspect")
	}

	var state schema.ExecutionState
	if err := json.Unmarshal(body, &state); err != nil {
		return nil, schema.NewError(schema.ErrCodeEngine, "malformed inspect response").WithCause(err)
	}
	return &state, nil
}

// do executes the request and reads the full body, mapping non-2xx statuses
// to errors.
func (e *HTTPEngine) do(req *http.Request) ([]byte, error) {
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "execution not found: %s", req.URL.Path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("engine returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	return body, nil
}

// engineError classifies a transport failure: context expiry becomes a
// timeout error, an open breaker and everything else an engine error.
// NOT_FOUND passes through untouched.
func engineError(ctx context.Context, err error, op string) error {
	if schema.CodeOf(err) == schema.ErrCodeNotFound {
		return err
	}
	if ctx.Err() != nil {
		return schema.NewErrorf(schema.ErrCodeTimeout, "engine %s timed out", op).WithCause(err)
	}
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return schema.NewErrorf(schema.ErrCodeEngine, "engine %s rejected: circuit open", op).WithCause(err)
	}
	return schema.NewErrorf(schema.ErrCodeEngine, "engine %s failed", op).WithCause(err)
}

// newIdempotencyKey returns a lexicographically sortable unique key.
func newIdempotencyKey() string {
	t := time.Now().UTC()
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ Engine = (*HTTPEngine)(nil)
