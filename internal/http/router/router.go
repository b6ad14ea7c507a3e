package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/dig"

	"farmnook-dispatch/internal/http/handlers"
	"farmnook-dispatch/internal/http/middleware"
	"farmnook-dispatch/internal/http/middleware/ratelimit"
	"farmnook-dispatch/internal/logx"
)

// Deps is everything the router mounts.
type Deps struct {
	dig.In

	Logger        logx.Logger
	Gatherer      prometheus.Gatherer
	Metrics       *middleware.HTTPMetrics
	RateLimit     *ratelimit.Middleware
	Secret        []byte `name:"jwt_secret"`
	Base          *handlers.Handlers
	Requests      *handlers.RequestHandler
	Deliveries    *handlers.DeliveryHandler
	Fleet         *handlers.FleetHandler
	Notifications *handlers.NotificationHandler
}

// New constructs the API handler. Probes and /metrics are public; every
// other route needs an admin bearer token and is rate limited per caller.
func New(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Observability(d.Metrics, d.Logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(10 * time.Second))

	r.Get("/ping", d.Base.Ping)
	r.Method(http.MethodHead, "/healthcheck", http.HandlerFunc(d.Base.HealthcheckHead))
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(d.Secret, d.Logger))
		r.Use(d.RateLimit.Handler())

		r.Route("/requests", func(r chi.Router) {
			r.Get("/pending", d.Requests.Pending)
			r.Post("/{id}/accept", d.Requests.Accept)
			r.Post("/{id}/decline", d.Requests.Decline)
		})
		r.Route("/deliveries", func(r chi.Router) {
			r.Get("/active", d.Deliveries.Active)
			r.Get("/history", d.Deliveries.History)
			r.Get("/{id}/tracking", d.Deliveries.Tracking)
		})
		r.Post("/vehicles", d.Fleet.CreateVehicle)
		r.Post("/haulers", d.Fleet.CreateHauler)
		r.Post("/notifications", d.Notifications.Create)
	})

	r.NotFound(d.Base.NotFound)
	r.MethodNotAllowed(d.Base.MethodNotAllowed)
	return r
}
