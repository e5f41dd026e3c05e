package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/avatar-redirect/internal/apperror"
	"github.com/sakif/avatar-redirect/internal/config"
	"github.com/sakif/avatar-redirect/internal/discord"
	"github.com/sakif/avatar-redirect/internal/middleware"
	"github.com/sakif/avatar-redirect/internal/model"
	"github.com/sakif/avatar-redirect/internal/repository"
	"github.com/sakif/avatar-redirect/internal/telemetry"
)

const userID = "80351110224678912"

// fakeUsers answers every lookup with a user carrying avatar. When block
// is set it waits for the request context instead.
type fakeUsers struct {
	avatar string
	block  bool
}

func (f *fakeUsers) GetUser(ctx context.Context, id snowflake.ID) (*model.User, error) {
	if f.block {
		<-ctx.Done()
		return nil, apperror.UpstreamFetch(ctx.Err())
	}
	return &model.User{ID: id, Avatar: f.avatar}, nil
}

func testConfig() Config {
	return Config{
		RequestTimeout:     2 * time.Second,
		RateLimitPerSecond: 2,
		RateLimitBurst:     5,
	}
}

func newTestServer(t *testing.T, cfg Config, users repository.UserRepository) *Server {
	t.Helper()

	tel, err := telemetry.New(context.Background(), telemetry.Config{ServiceName: "avatar-redirect-test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := New(cfg, logger, users, tel)
	require.NoError(t, err)
	return s
}

func do(s *Server, method, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, vv := range header {
		req.Header[k] = vv
	}
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func TestRoutes(t *testing.T) {
	s := newTestServer(t, Config{
		RequestTimeout:     2 * time.Second,
		RateLimitPerSecond: 100,
		RateLimitBurst:     100,
	}, &fakeUsers{avatar: "deadbeef"})

	tests := []struct {
		name       string
		method     string
		target     string
		wantStatus int
		wantBody   string
	}{
		{"health", http.MethodGet, "/health", http.StatusOK, "Hello, World!"},
		{"root get", http.MethodGet, "/", http.StatusOK, "Hello, World!"},
		{"root post", http.MethodPost, "/", http.StatusOK, "Hello, World!"},
		{"root delete", http.MethodDelete, "/", http.StatusOK, "Hello, World!"},
		{"avatar", http.MethodGet, "/" + userID, http.StatusFound, ""},
		{"bad path", http.MethodGet, "/not-an-id", http.StatusBadRequest, "Invalid path"},
		{"bad size", http.MethodGet, "/" + userID + "?size=100", http.StatusBadRequest, "Invalid size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(s, tt.method, tt.target, nil)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantBody, rr.Body.String())
			assert.NotEmpty(t, rr.Header().Get(middleware.RequestIDHeader))
		})
	}
}

func TestAvatarRedirectHeaders(t *testing.T) {
	s := newTestServer(t, testConfig(), &fakeUsers{avatar: "a_abc"})

	rr := do(s, http.MethodGet, "/"+userID+".webp?size=1024", nil)

	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "https://cdn.discordapp.com/avatars/"+userID+"/a_abc.webp?size=1024", rr.Header().Get("Location"))
	assert.Equal(t, "max-age=21600", rr.Header().Get("Cache-Control"))
}

func TestRequestIDsIncrease(t *testing.T) {
	s := newTestServer(t, Config{
		RequestTimeout:     2 * time.Second,
		RateLimitPerSecond: 100,
		RateLimitBurst:     100,
	}, &fakeUsers{})

	prev := int64(-1)
	for i := 0; i < 10; i++ {
		rr := do(s, http.MethodGet, "/health", nil)

		id, err := strconv.ParseInt(rr.Header().Get(middleware.RequestIDHeader), 10, 64)
		require.NoError(t, err)
		assert.Greater(t, id, prev)
		prev = id
	}
	assert.Equal(t, int64(9), prev)
}

func TestRequestIDEchoed(t *testing.T) {
	s := newTestServer(t, testConfig(), &fakeUsers{})

	rr := do(s, http.MethodGet, "/health", http.Header{middleware.RequestIDHeader: {"abc-123"}})

	assert.Equal(t, "abc-123", rr.Header().Get(middleware.RequestIDHeader))
}

func TestRateLimitPerIP(t *testing.T) {
	s := newTestServer(t, testConfig(), &fakeUsers{})

	for i := 0; i < 5; i++ {
		rr := do(s, http.MethodGet, "/health", nil)
		require.Equal(t, http.StatusOK, rr.Code, "request %d", i)
	}

	rr := do(s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
	assert.Equal(t, rr.Header().Get("Retry-After"), rr.Header().Get("X-RateLimit-After"))
	assert.Contains(t, rr.Body.String(), "Too Many Requests! Wait for ")

	// Another client has its own bucket.
	rr = do(s, http.MethodGet, "/health", http.Header{"X-Forwarded-For": {"198.51.100.7"}})
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestUpstreamPastDeadline(t *testing.T) {
	cfg := testConfig()
	cfg.RequestTimeout = 50 * time.Millisecond
	s := newTestServer(t, cfg, &fakeUsers{block: true})

	start := time.Now()
	rr := do(s, http.MethodGet, "/"+userID, nil)

	assert.Equal(t, http.StatusRequestTimeout, rr.Code)
	assert.Equal(t, middleware.TimeoutMessage, rr.Body.String())
	assert.Less(t, time.Since(start), time.Second)
}

// TestHungDiscordGives408 runs the real Discord client with the configured
// defaults against an upstream that never answers. The request deadline,
// not a client-side timeout, must end the lookup.
func TestHungDiscordGives408(t *testing.T) {
	release := make(chan struct{})
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(upstream.Close)
	t.Cleanup(func() { close(release) })

	t.Setenv("DISCORD_TOKEN", "test-token")
	t.Setenv("DISCORD_API_BASE", upstream.URL)
	// Shortened so the test is quick; UPSTREAM_TIMEOUT keeps its default.
	t.Setenv("REQUEST_TIMEOUT", "300ms")

	cfg, err := config.Load()
	require.NoError(t, err)

	users := discord.New(discord.Config{
		Token:   cfg.DiscordToken,
		BaseURL: cfg.DiscordAPIBase,
		Timeout: cfg.UpstreamTimeout,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	s := newTestServer(t, Config{
		RequestTimeout:     cfg.RequestTimeout,
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		RateLimitBurst:     cfg.RateLimitBurst,
	}, users)

	start := time.Now()
	rr := do(s, http.MethodGet, "/"+userID, nil)

	assert.Equal(t, http.StatusRequestTimeout, rr.Code)
	assert.Equal(t, middleware.TimeoutMessage, rr.Body.String())
	assert.GreaterOrEqual(t, time.Since(start), cfg.RequestTimeout)
}

func TestMetricsUseRouteTemplate(t *testing.T) {
	s := newTestServer(t, Config{
		RequestTimeout:     2 * time.Second,
		RateLimitPerSecond: 100,
		RateLimitBurst:     100,
	}, &fakeUsers{avatar: "deadbeef"})

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusFound, do(s, http.MethodGet, "/"+userID, nil).Code)
	}

	rr := do(s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	body := rr.Body.String()
	assert.Contains(t, body, "http_requests_total")
	assert.Contains(t, body, `path="/*"`)
	assert.Contains(t, body, `status="302"`)
	assert.NotContains(t, body, userID)
}

func TestCompression(t *testing.T) {
	s := newTestServer(t, testConfig(), &fakeUsers{})

	rr := do(s, http.MethodGet, "/health", http.Header{"Accept-Encoding": {"gzip"}})

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "gzip", rr.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(rr.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, "Hello, World!", string(body))
}

func TestServeShutsDownOnCancel(t *testing.T) {
	s := newTestServer(t, testConfig(), &fakeUsers{})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ctx, ln) }()

	resp, err := http.Get(fmt.Sprintf("http://%s/health", ln.Addr()))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
