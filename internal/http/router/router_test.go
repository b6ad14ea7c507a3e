package router_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmnook-dispatch/internal/http/handlers"
	"farmnook-dispatch/internal/http/middleware"
	"farmnook-dispatch/internal/http/middleware/ratelimit"
	"farmnook-dispatch/internal/http/router"
	"farmnook-dispatch/internal/lock"
	"farmnook-dispatch/internal/logx"
	"farmnook-dispatch/internal/push"
	"farmnook-dispatch/internal/service/assignment"
	"farmnook-dispatch/internal/service/fleet"
	"farmnook-dispatch/internal/service/listing"
	"farmnook-dispatch/internal/service/notify"
	"farmnook-dispatch/internal/service/tracking"
	"farmnook-dispatch/internal/store/memstore"
)

var secret = []byte("router-secret")

func newAPI(t *testing.T, limiter ratelimit.Limiter) http.Handler {
	t.Helper()

	log := logx.Nop()
	st := memstore.New()
	reg := prometheus.NewRegistry()
	metrics := middleware.NewHTTPMetrics()
	for _, c := range metrics.Collectors() {
		require.NoError(t, reg.Register(c))
	}

	pushFailures := prometheus.NewCounter(prometheus.CounterOpts{Name: "push_failures_total", Help: "x"})
	dispatcher := notify.NewDispatcher(st, push.Nop(), notify.Options{}, pushFailures, log)
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "assignments_total", Help: "x"}, []string{"outcome"})
	workflow := assignment.NewWorkflow(st, lock.Nop(), dispatcher, outcomes, time.Second, log)
	updates := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "tracking_updates_total", Help: "x"}, []string{"outcome"})
	tracker := tracking.NewTracker(st, tracking.NewMemoryStatusStore(), updates, time.Second, log)
	lst := listing.NewService(st, time.Second, log)
	fl := fleet.NewService(st, fleet.BcryptHasher{}, time.Second)

	return router.New(router.Deps{
		Logger:        log,
		Gatherer:      reg,
		Metrics:       metrics,
		RateLimit:     ratelimit.New(log, nil, limiter),
		Secret:        secret,
		Base:          handlers.New(log),
		Requests:      handlers.NewRequestHandler(log, workflow, lst),
		Deliveries:    handlers.NewDeliveryHandler(log, lst, tracker),
		Fleet:         handlers.NewFleetHandler(log, fl),
		Notifications: handlers.NewNotificationHandler(log, dispatcher),
	})
}

func token(t *testing.T) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.StandardClaims{
		Subject:   "admin-1",
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	}).SignedString(secret)
	require.NoError(t, err)
	return s
}

func TestRouter_PublicRoutes(t *testing.T) {
	t.Parallel()

	api := newAPI(t, nil)

	rr := httptest.NewRecorder()
	api.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	api.ServeHTTP(rr, httptest.NewRequest(http.MethodHead, "/healthcheck", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = httptest.NewRecorder()
	api.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "http_requests_total")
}

func TestRouter_AdminRoutesRequireToken(t *testing.T) {
	t.Parallel()

	api := newAPI(t, nil)
	for _, path := range []string{"/requests/pending", "/deliveries/active", "/deliveries/history"} {
		rr := httptest.NewRecorder()
		api.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code, path)
	}
}

func TestRouter_AuthenticatedFlow(t *testing.T) {
	t.Parallel()

	api := newAPI(t, nil)
	auth := "Bearer " + token(t)

	do := func(method, path, body string) *httptest.ResponseRecorder {
		var req *http.Request
		if body == "" {
			req = httptest.NewRequest(method, path, nil)
		} else {
			req = httptest.NewRequest(method, path, strings.NewReader(body))
		}
		req.Header.Set("Authorization", auth)
		rr := httptest.NewRecorder()
		api.ServeHTTP(rr, req)
		return rr
	}

	rr := do(http.MethodGet, "/requests/pending", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"requests":[]}`, rr.Body.String())

	rr = do(http.MethodPost, "/requests/missing/accept", `{"hauler_id":"H1"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(http.MethodPost, "/requests/R1/decline", `{"reason":""}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(http.MethodGet, "/deliveries/D1/tracking", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(http.MethodPost, "/notifications", `{"recipient_id":"F1","title":"Hi","message":"Hello"}`)
	assert.Equal(t, http.StatusCreated, rr.Code)

	rr = do(http.MethodDelete, "/vehicles", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	rr = do(http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

type denyAll struct{}

func (denyAll) Allow(string) bool { return false }

func TestRouter_RateLimitAppliesAfterAuth(t *testing.T) {
	t.Parallel()

	api := newAPI(t, denyAll{})

	req := httptest.NewRequest(http.MethodGet, "/requests/pending", nil)
	req.Header.Set("Authorization", "Bearer "+token(t))
	rr := httptest.NewRecorder()
	api.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)

	rr = httptest.NewRecorder()
	api.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}
