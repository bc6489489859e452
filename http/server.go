package http

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/gracechurch/tidings"
)

const (
	shutdownTimeout = 1 * time.Second
)

// Server represents HTTP server
type Server struct {
	ln      net.Listener
	server  *http.Server
	router  *mux.Router
	metrics *metrics

	Addr   string
	Domain string
	Config *tidings.Config

	SubscriptionService tidings.SubscriptionService
	MailService         tidings.MailService
	BroadcastService    tidings.BroadcastService
}

// NewServer create new HTTP server
func NewServer(config *tidings.Config) (*Server, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	s := &Server{
		server:  &http.Server{},
		router:  mux.NewRouter().StrictSlash(true),
		metrics: newMetrics(),
		Config:  config,
	}

	zlog := zerolog.New(os.Stdout).With().
		Timestamp().
		Logger()
	s.router.Use(hlog.NewHandler(zlog))
	s.router.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		route := routeTemplate(r)
		s.metrics.observeRequest(r.Method, route, status, duration)
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Str("route", route).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("")
	}))
	s.router.Use(hlog.UserAgentHandler("user_agent"))
	s.router.Use(hlog.RefererHandler("referer"))
	s.router.Use(hlog.RequestIDHandler("req_id", "Request-Id"))

	sentryHandler := sentryhttp.New(sentryhttp.Options{Repanic: true})
	s.router.Use(sentryHandler.Handle)

	s.server.Handler = http.HandlerFunc(s.serveHTTP)

	s.router.HandleFunc("/health", s.healthCheckHandler).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/subscribe", s.Error(s.subscribeHandler)).Methods(http.MethodPost)
	api.HandleFunc("/unsubscribe", s.Error(s.unsubscribeHandler)).Methods(http.MethodGet)
	api.HandleFunc("/unsubscribe/form", s.Error(s.unsubscribeFormHandler)).Methods(http.MethodGet)
	api.HandleFunc("/broadcast/send", s.Error(s.requireAdmin(s.sendBroadcastHandler))).Methods(http.MethodPost)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/list-all", s.Error(s.requireAdmin(s.listAllHandler))).Methods(http.MethodGet)
	admin.HandleFunc("/remove-membership", s.Error(s.requireAdmin(s.removeMembershipHandler))).Methods(http.MethodDelete)

	return s, nil
}

func routeTemplate(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return "unmatched"
	}
	tpl, err := route.GetPathTemplate()
	if err != nil {
		return "unmatched"
	}
	return tpl
}

func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// Scheme returns scheme
func (s *Server) Scheme() string {
	if s.UseTLS() {
		return "https"
	}
	return "http"
}

// UseTLS checks if server use TLS or not
func (s *Server) UseTLS() bool {
	return s.Domain != ""
}

// Port returns server port
func (s *Server) Port() int {
	if s.ln == nil {
		return 0
	}
	return s.ln.Addr().(*net.TCPAddr).Port
}

// URL returns server URL
func (s *Server) URL() string {
	scheme, port := s.Scheme(), s.Port()

	domain := "localhost"
	if s.Domain != "" {
		domain = s.Domain
	}

	if port == 80 || port == 443 || flag.Lookup("test.v") != nil {
		return fmt.Sprintf("%s://%s", scheme, domain)
	}
	return fmt.Sprintf("%s://%s:%d", scheme, domain, s.Port())
}

// PublicURL returns the base URL put in links of outgoing mail.
// It falls back to URL when http.url is not configured.
func (s *Server) PublicURL() string {
	if s.Config.HTTP.URL != "" {
		return strings.TrimRight(s.Config.HTTP.URL, "/")
	}
	return s.URL()
}

// RecordDelivery counts recipients handed to the mail transport.
func (s *Server) RecordDelivery(topic string, recipients int) {
	s.metrics.recipients.WithLabelValues(topic).Add(float64(recipients))
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Open opens a connection to HTTP server
func (s *Server) Open() (err error) {
	s.ln, err = net.Listen("tcp", s.Addr)
	if err != nil {
		return errors.Errorf("failed to listen to port %s: %v", s.Addr, err)
	}

	go func() {
		_ = s.server.Serve(s.ln)
	}()

	return nil
}

// Close shutdowns HTTP server
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.server.Shutdown(ctx)
}
