package internal

import (
	"context"
	"encoding/json"
	"io"
	"net"
	nethttp "net/http"
	"net/http/httptest"
	"reflect"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	cartridgetestsupport "github.com/karloscodes/cartridge/testsupport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracker/internal/config"
	"tracker/internal/testsupport"
)

const testAPIKey = "test-key"

func setupApp(t *testing.T, mutate ...func(*config.Config)) *Application {
	t.Helper()

	t.Setenv("TRACKER_ENV", config.Test)
	t.Setenv("TRACKER_API_KEY", testAPIKey)
	t.Setenv("TRACKER_CACHE_DRIVER", config.CacheDriverMemory)

	cfg, err := config.Load()
	require.NoError(t, err)
	for _, m := range mutate {
		m(cfg)
	}

	db := testsupport.SetupTestDB(t)
	app, err := NewAppWithDB(context.Background(), cfg, cartridgetestsupport.NewTestDBManager(db), testsupport.GetLogger())
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })
	return app
}

func doRequest(t *testing.T, app *Application, method, target, body string, authorized bool) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authorized {
		req.Header.Set("Authorization", "Bearer "+testAPIKey)
	}

	resp, err := app.Server.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), "body: %s", raw)
	}
	return resp.StatusCode, out
}

func TestHealth(t *testing.T) {
	app := setupApp(t)

	status, body := doRequest(t, app, fiber.MethodGet, "/health", "", false)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ok", body["db_status"])
}

func TestServerMiddleware(t *testing.T) {
	app := setupApp(t)

	resp, err := app.Server.App().Test(httptest.NewRequest(fiber.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXContentTypeOptions))
}

func TestViewsPreflight(t *testing.T) {
	app := setupApp(t)

	req := httptest.NewRequest(fiber.MethodOptions, "/api/v1/views", nil)
	req.Header.Set(fiber.HeaderOrigin, "https://example.com")
	req.Header.Set(fiber.HeaderAccessControlRequestMethod, fiber.MethodPost)

	resp, err := app.Server.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
}

func TestCrossSiteViewWithoutFetchMetadata(t *testing.T) {
	app := setupApp(t)

	req := httptest.NewRequest(fiber.MethodPost, "/api/v1/views", strings.NewReader(`{"url": "https://example.com/"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(fiber.HeaderOrigin, "https://blog.example.org")

	resp, err := app.Server.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
}

func TestRunServesUntilCancelled(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	_, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	require.NoError(t, ln.Close())

	app := setupApp(t, func(cfg *config.Config) { cfg.AppPort = port })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	assert.Eventually(t, func() bool {
		resp, err := nethttp.Get("http://127.0.0.1:" + port + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == fiber.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.False(t, app.Scheduler.IsRunning())
}

func TestMetricsEndpoint(t *testing.T) {
	app := setupApp(t)

	resp, err := app.Server.App().Test(httptest.NewRequest(fiber.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "tracker_views_recorded_total")
}

func TestRecordAndCountViews(t *testing.T) {
	app := setupApp(t)

	status, body := doRequest(t, app, fiber.MethodPost, "/api/v1/views",
		`{"url": "https://example.com/posts/42", "locale": "en", "trackables": [{"type": "post", "id": 42}]}`, false)
	require.Equal(t, fiber.StatusCreated, status, body)
	assert.Equal(t, true, body["recorded"])
	viewID := body["id"].(float64)
	assert.NotZero(t, viewID)

	status, _ = doRequest(t, app, fiber.MethodPost, "/api/v1/views", `{"url": "https://example.com/"}`, false)
	require.Equal(t, fiber.StatusCreated, status)

	t.Run("summary", func(t *testing.T) {
		status, body := doRequest(t, app, fiber.MethodGet, "/api/v1/stats/summary", "", true)
		require.Equal(t, fiber.StatusOK, status, body)
		assert.Equal(t, float64(2), body["total"])
		assert.Equal(t, float64(2), body["today"])
		assert.NotNil(t, body["last_visited"])
	})

	t.Run("locale filter", func(t *testing.T) {
		status, body := doRequest(t, app, fiber.MethodGet, "/api/v1/stats/summary?locale=en", "", true)
		require.Equal(t, fiber.StatusOK, status, body)
		assert.Equal(t, float64(1), body["total"])
	})

	t.Run("trackable scope", func(t *testing.T) {
		status, body := doRequest(t, app, fiber.MethodGet,
			"/api/v1/stats/relative/day?trackable_type=post&trackable_id=42", "", true)
		require.Equal(t, fiber.StatusOK, status, body)
		assert.Equal(t, float64(1), body["count"])
		assert.Equal(t, "day", body["unit"])
	})

	t.Run("between", func(t *testing.T) {
		from := time.Now().UTC().AddDate(0, 0, -1).Format(time.RFC3339)
		status, body := doRequest(t, app, fiber.MethodGet, "/api/v1/stats/between?from="+from, "", true)
		require.Equal(t, fiber.StatusOK, status, body)
		assert.Equal(t, float64(2), body["count"])
	})

	t.Run("day", func(t *testing.T) {
		status, body := doRequest(t, app, fiber.MethodGet, "/api/v1/stats/day", "", true)
		require.Equal(t, fiber.StatusOK, status, body)
		assert.Equal(t, float64(2), body["count"])
	})

	t.Run("series", func(t *testing.T) {
		from := time.Now().UTC().AddDate(0, 0, -7).Format("2006-01-02")
		status, body := doRequest(t, app, fiber.MethodGet, "/api/v1/stats/series/day?from="+from, "", true)
		require.Equal(t, fiber.StatusOK, status, body)

		counts := body["counts"].([]any)
		labels := body["labels"].([]any)
		assert.Len(t, counts, 7)
		assert.Len(t, labels, 7)
		assert.Equal(t, float64(2), counts[len(counts)-1])
		assert.Equal(t, float64(2), body["total"])
	})

	t.Run("attach", func(t *testing.T) {
		status, body := doRequest(t, app, fiber.MethodPost, "/api/v1/trackables/post/7/views/1", "", true)
		require.Equal(t, fiber.StatusOK, status, body)

		status, _ = doRequest(t, app, fiber.MethodPost, "/api/v1/trackables/post/7/views/999", "", true)
		assert.Equal(t, fiber.StatusNotFound, status)
	})

	t.Run("cache purge", func(t *testing.T) {
		status, body := doRequest(t, app, fiber.MethodDelete, "/api/v1/cache", "", true)
		require.Equal(t, fiber.StatusOK, status, body)
		assert.Greater(t, body["purged"].(float64), float64(0))
	})
}

func TestRecordViewValidation(t *testing.T) {
	app := setupApp(t)

	testCases := []struct {
		name string
		body string
	}{
		{"malformed json", `{"url":`},
		{"missing url", `{"locale": "en"}`},
		{"invalid locale", `{"url": "https://example.com/", "locale": "not a locale!"}`},
		{"trackable without id", `{"url": "https://example.com/", "trackables": [{"type": "post"}]}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := doRequest(t, app, fiber.MethodPost, "/api/v1/views", tc.body, false)
			assert.Equal(t, fiber.StatusBadRequest, status)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestRecordViewWhenTrackingDisabled(t *testing.T) {
	app := setupApp(t, func(cfg *config.Config) { cfg.TrackingEnabled = false })

	status, body := doRequest(t, app, fiber.MethodPost, "/api/v1/views", `{"url": "https://example.com/"}`, false)
	assert.Equal(t, fiber.StatusAccepted, status)
	assert.Equal(t, false, body["recorded"])
}

func TestStatsErrors(t *testing.T) {
	app := setupApp(t)

	testCases := []struct {
		name       string
		target     string
		authorized bool
		status     int
	}{
		{"unauthorized", "/api/v1/stats/summary", false, fiber.StatusUnauthorized},
		{"unknown unit", "/api/v1/stats/relative/fortnight", true, fiber.StatusBadRequest},
		{"between without from", "/api/v1/stats/between", true, fiber.StatusBadRequest},
		{"inverted range", "/api/v1/stats/between?from=2024-03-10&until=2024-03-01", true, fiber.StatusBadRequest},
		{"bad date", "/api/v1/stats/day?day=yesterday", true, fiber.StatusBadRequest},
		{"half a trackable", "/api/v1/stats/summary?trackable_type=post", true, fiber.StatusBadRequest},
		{"series without from", "/api/v1/stats/series/week", true, fiber.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := doRequest(t, app, fiber.MethodGet, tc.target, "", tc.authorized)
			assert.Equal(t, tc.status, status)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestStorageFailureIsServiceUnavailable(t *testing.T) {
	app := setupApp(t)

	sqlDB, err := app.DB.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	status, body := doRequest(t, app, fiber.MethodGet, "/api/v1/stats/summary", "", true)
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	assert.NotEmpty(t, body["error"])
}

func TestPublicViewsRouteRateLimited(t *testing.T) {
	app := setupApp(t)
	routes := app.Server.App().GetRoutes(true)

	var viewsRoute *fiber.Route
	for idx := range routes {
		if routes[idx].Method == fiber.MethodPost && routes[idx].Path == "/api/v1/views" {
			viewsRoute = &routes[idx]
			break
		}
	}
	require.NotNil(t, viewsRoute, "expected views route to be registered")

	// The limiter is registered in every environment and skips itself outside production.
	var handlerNames []string
	hasRateLimiter := false
	for _, handler := range viewsRoute.Handlers {
		name := runtime.FuncForPC(reflect.ValueOf(handler).Pointer()).Name()
		handlerNames = append(handlerNames, name)
		if strings.Contains(name, "middleware/limiter") {
			hasRateLimiter = true
		}
	}

	require.Truef(t, hasRateLimiter, "expected rate limiter middleware for public views route, handlers: %v", handlerNames)
}

func TestNewCacheStore(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	logger := testsupport.GetLogger()

	for driver, want := range map[string]string{
		config.CacheDriverDatabase: "*cache.DatabaseStore",
		config.CacheDriverMemory:   "*cache.MemoryStore",
		config.CacheDriverNone:     "cache.None",
	} {
		t.Run(driver, func(t *testing.T) {
			cfg := &config.Config{CacheEnabled: true, CacheDriver: driver}
			store, err := NewCacheStore(context.Background(), cfg, db, logger)
			require.NoError(t, err)
			assert.Equal(t, want, reflect.TypeOf(store).String())
		})
	}

	store, err := NewCacheStore(context.Background(), &config.Config{CacheDriver: config.CacheDriverMemory}, db, logger)
	require.NoError(t, err)
	assert.Equal(t, "cache.None", reflect.TypeOf(store).String(), "a disabled cache stores nothing")
}
