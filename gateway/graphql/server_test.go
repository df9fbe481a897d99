package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/songlinshu/vector/engine"
	"github.com/songlinshu/vector/metric"
	"github.com/songlinshu/vector/schema"
)

// tickSource emits {"seq": 1..count} then completes.
type tickSource struct {
	count int
	seq   int
}

func (s *tickSource) Next(ctx context.Context) (any, error) {
	if s.seq >= s.count {
		return nil, io.EOF
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	s.seq++
	return map[string]any{"seq": s.seq}, nil
}

func (s *tickSource) Close() error { return nil }

// stallSource never emits; it blocks until the subscription is cancelled.
type stallSource struct{}

func (s *stallSource) Next(ctx context.Context) (any, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *stallSource) Close() error { return nil }

func gatewayRegistry(t *testing.T) *schema.Registry {
	t.Helper()

	one := 1.0
	hundred := 100.0
	reg, err := schema.New(schema.Config{
		Query:        "Query",
		Subscription: "Subscription",
		Types: []*schema.Type{
			{
				Name: "Tick",
				Kind: schema.KindObject,
				Fields: []*schema.Field{
					{Name: "seq", Type: schema.NonNull(schema.Named("Int"))},
				},
			},
			{
				Name: "Query",
				Kind: schema.KindObject,
				Fields: []*schema.Field{
					{
						Name: "ping",
						Type: schema.NonNull(schema.Named("String")),
						Resolve: func(ctx context.Context, src any, args map[string]any) (any, error) {
							return "pong", nil
						},
					},
					{
						Name: "fail",
						Type: schema.Named("String"),
						Resolve: func(ctx context.Context, src any, args map[string]any) (any, error) {
							return nil, fmt.Errorf("resolver exploded")
						},
					},
					{
						Name: "echo",
						Type: schema.NonNull(schema.Named("String")),
						Args: []*schema.Argument{
							{Name: "text", Type: schema.NonNull(schema.Named("String"))},
						},
						Resolve: func(ctx context.Context, src any, args map[string]any) (any, error) {
							return args["text"], nil
						},
					},
				},
			},
			{
				Name: "Subscription",
				Kind: schema.KindObject,
				Fields: []*schema.Field{
					{
						Name: "ticks",
						Type: schema.NonNull(schema.Named("Tick")),
						Args: []*schema.Argument{
							{
								Name: "count", Type: schema.Named("Int"),
								Default: int64(3), HasDefault: true,
								Min: &one, Max: &hundred,
							},
						},
						Subscribe: func(ctx context.Context, args map[string]any) (schema.EventSource, error) {
							return &tickSource{count: int(args["count"].(int64))}, nil
						},
					},
					{
						Name: "stall",
						Type: schema.NonNull(schema.Named("Tick")),
						Subscribe: func(ctx context.Context, args map[string]any) (schema.EventSource, error) {
							return &stallSource{}, nil
						},
					},
				},
			},
		},
	})
	require.NoError(t, err)
	return reg
}

// newGateway builds a configured server over the fixture schema and an
// httptest listener in front of its handler.
func newGateway(t *testing.T, cfg Config) (*Server, *httptest.Server) {
	t.Helper()

	exec := engine.NewExecutor(gatewayRegistry(t), nil)
	srv, err := NewServer(cfg, exec, metric.NewMetricsRegistry(), nil)
	require.NoError(t, err)
	require.NoError(t, srv.Setup())

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func postOperation(t *testing.T, url, query string) (*http.Response, *engine.Envelope) {
	t.Helper()

	body, err := json.Marshal(operationRequest{Query: query})
	require.NoError(t, err)

	resp, err := http.Post(url+"/graphql", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var env engine.Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp, &env
}

func TestPostQuery(t *testing.T) {
	_, ts := newGateway(t, DefaultConfig())

	resp, env := postOperation(t, ts.URL, `{ ping }`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.NotNil(t, env.Data)
	assert.Equal(t, map[string]any{"ping": "pong"}, env.Data)
	assert.False(t, env.HasErrors())
}

func TestPostQueryWithArguments(t *testing.T) {
	_, ts := newGateway(t, DefaultConfig())

	resp, env := postOperation(t, ts.URL, `{ echo(text: "hello") }`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]any{"echo": "hello"}, env.Data)
}

func TestPostPartialFailure(t *testing.T) {
	_, ts := newGateway(t, DefaultConfig())

	resp, env := postOperation(t, ts.URL, `{ ping fail }`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]any{"ping": "pong", "fail": nil}, env.Data)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, "fail", env.Errors[0].Path.String())
}

func TestPostSyntaxErrorRejected(t *testing.T) {
	_, ts := newGateway(t, DefaultConfig())

	resp, env := postOperation(t, ts.URL, `{ ping`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Nil(t, env.Data)
	require.NotEmpty(t, env.Errors)
}

func TestPostSubscriptionRejected(t *testing.T) {
	_, ts := newGateway(t, DefaultConfig())

	resp, env := postOperation(t, ts.URL, `subscription { ticks { seq } }`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.NotEmpty(t, env.Errors)
	assert.Contains(t, env.Errors[0].Message, "WebSocket")
}

func TestMethodNotAllowed(t *testing.T) {
	_, ts := newGateway(t, DefaultConfig())

	resp, err := http.Get(ts.URL + "/graphql")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, "POST, OPTIONS", resp.Header.Get("Allow"))
}

func TestHealthBeforeStart(t *testing.T) {
	_, ts := newGateway(t, DefaultConfig())

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts := newGateway(t, DefaultConfig())

	postOperation(t, ts.URL, `{ ping }`)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "vector_engine_operations_total")
}

func TestCORSPreflight(t *testing.T) {
	_, ts := newGateway(t, DefaultConfig())

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/graphql", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://example.com")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://example.com", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "POST")
}

func TestCORSRestrictedOrigin(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CORSOrigins = []string{"http://trusted.example"}
	_, ts := newGateway(t, cfg)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/graphql", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://evil.example")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestPlaygroundServed(t *testing.T) {
	_, ts := newGateway(t, DefaultConfig())

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(strings.ToLower(string(body)), "graphql"))
}

func TestStartRequiresSetup(t *testing.T) {
	exec := engine.NewExecutor(gatewayRegistry(t), nil)
	srv, err := NewServer(DefaultConfig(), exec, nil, nil)
	require.NoError(t, err)

	err = srv.Start(context.Background(), nil)
	require.Error(t, err)
}

func TestStartStopLifecycle(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BindAddress = "127.0.0.1:0"

	exec := engine.NewExecutor(gatewayRegistry(t), nil)
	srv, err := NewServer(cfg, exec, nil, nil)
	require.NoError(t, err)
	require.NoError(t, srv.Setup())

	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- srv.Start(context.Background(), ready) }()

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("server never became ready")
	}

	require.NoError(t, srv.Stop(5*time.Second))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
}
