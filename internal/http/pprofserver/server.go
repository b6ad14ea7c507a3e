// Package pprofserver exposes runtime profiles on a separate listener.
package pprofserver

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const realm = "pprof"

// Config stores pprof server settings. Without credentials only loopback callers get through.
type Config struct {
	Addr string
	User string
	Pass string
}

// Handler mounts chi's profiler under /debug behind loopback-or-basic-auth.
func Handler(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(guard(cfg))
	r.Mount("/debug", middleware.Profiler())
	return r
}

// New returns an *http.Server for cfg.Addr serving Handler(cfg).
func New(cfg Config) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           Handler(cfg),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func guard(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		var authed http.Handler = http.HandlerFunc(deny)
		if cfg.User != "" && cfg.Pass != "" {
			authed = middleware.BasicAuth(realm, map[string]string{cfg.User: cfg.Pass})(next)
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isLoopback(r.RemoteAddr) {
				next.ServeHTTP(w, r)
				return
			}
			authed.ServeHTTP(w, r)
		})
	}
}

func deny(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("WWW-Authenticate", `Basic realm="`+realm+`"`)
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

func isLoopback(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	ip := net.ParseIP(strings.TrimSpace(host))
	return ip != nil && ip.IsLoopback()
}
