package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/khanhnv2901/sparrow-cli/internal/api/middleware"
	"github.com/khanhnv2901/sparrow-cli/internal/intercept"
	"github.com/khanhnv2901/sparrow-cli/internal/monitor"
	sharedErrors "github.com/khanhnv2901/sparrow-cli/internal/shared/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const maxBodyBytes = 1 << 20

type HealthService interface {
	Check(ctx context.Context) error
}

type JobService interface {
	StartJob(ctx context.Context, req JobRequest) (*Job, error)
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, limit int) ([]Job, error)
	Subscribe() (chan Job, func())
}

type ConnectionFeed interface {
	Subscribe() (chan monitor.ConnectionEvent, func())
}

type InterceptService interface {
	Decide(requestURL string) intercept.Decision
}

type DNSCacheService interface {
	Entries() map[string][]string
	Clear()
	Invalidate(domain string) bool
	Provider() string
	SetProvider(provider string) error
}

type Config struct {
	Health      HealthService
	Jobs        JobService
	Connections ConnectionFeed
	Interceptor InterceptService
	DNSCache    DNSCacheService
	// Gatherer backs GET /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer

	AuthToken   string
	Logger      *zap.Logger
	CORSOrigins []string // Allowed CORS origins (empty = allow all)
	RateLimit   int      // Requests per second per IP (0 = disabled)
	RateBurst   int      // Burst size for rate limiter
}

// InterceptRequest is the body of POST /api/v1/intercept.
type InterceptRequest struct {
	URL string `json:"url"`
}

// ProviderRequest is the body of PUT /api/v1/dns/provider.
type ProviderRequest struct {
	Provider string `json:"provider"`
}

// DNSCacheResponse lists cached resolutions.
type DNSCacheResponse struct {
	Provider string              `json:"provider"`
	Entries  map[string][]string `json:"entries"`
}

type Server struct {
	cfg      Config
	router   *mux.Router
	handler  http.Handler
	limiters *rateLimiterMap
}

func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	srv := &Server{
		cfg:      cfg,
		router:   mux.NewRouter(),
		limiters: newRateLimiterMap(),
	}
	srv.routes()
	// RequestID -> Logging -> RateLimit -> CORS -> Router (auth per route)
	srv.handler = middleware.RequestID(srv.withLogging(srv.withRateLimit(srv.withCORS(srv.router))))
	return srv
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Close releases background resources held by the server.
func (s *Server) Close() {
	s.limiters.stop()
}

func (s *Server) routes() {
	s.router.NotFoundHandler = http.HandlerFunc(s.notFound)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(s.methodNotAllowed)

	// Subrouters do not inherit the root's fallback handlers.
	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	v1.NotFoundHandler = http.HandlerFunc(s.notFound)
	v1.MethodNotAllowedHandler = http.HandlerFunc(s.methodNotAllowed)
	v1.Use(s.withAuth)
	v1.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	v1.HandleFunc("/jobs", s.handleListJobs).Methods(http.MethodGet)
	v1.HandleFunc("/jobs", s.handleCreateJob).Methods(http.MethodPost)
	v1.HandleFunc("/jobs/{id}", s.handleJobByID).Methods(http.MethodGet)
	v1.HandleFunc("/jobs-stream", s.handleJobStream).Methods(http.MethodGet)
	v1.HandleFunc("/connections-stream", s.handleConnectionStream).Methods(http.MethodGet)
	v1.HandleFunc("/intercept", s.handleIntercept).Methods(http.MethodPost)
	v1.HandleFunc("/dns/cache", s.handleDNSCache).Methods(http.MethodGet)
	v1.HandleFunc("/dns/cache", s.handleDNSCacheClear).Methods(http.MethodDelete)
	v1.HandleFunc("/dns/cache/{domain}", s.handleDNSCacheInvalidate).Methods(http.MethodDelete)
	v1.HandleFunc("/dns/provider", s.handleDNSProvider).Methods(http.MethodGet, http.MethodPut)

	if s.cfg.Gatherer != nil {
		s.router.Handle("/metrics", s.withAuth(promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{}))).
			Methods(http.MethodGet)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Health != nil {
		if err := s.cfg.Health.Check(r.Context()); err != nil {
			s.writeError(w, r, http.StatusServiceUnavailable, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Jobs == nil {
		s.writeError(w, r, http.StatusNotFound, errors.New("job service not available"))
		return
	}
	limit := 25
	if q := r.URL.Query().Get("limit"); q != "" {
		if parsed, err := strconv.Atoi(q); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	jobs, err := s.cfg.Jobs.ListJobs(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Jobs == nil {
		s.writeError(w, r, http.StatusNotFound, errors.New("job service not available"))
		return
	}
	var req JobRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	job, err := s.cfg.Jobs.StartJob(r.Context(), req)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ErrQueueFull) {
			status = http.StatusServiceUnavailable
		}
		s.writeError(w, r, status, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleJobByID(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Jobs == nil {
		s.writeError(w, r, http.StatusNotFound, errors.New("job service not available"))
		return
	}
	job, err := s.cfg.Jobs.GetJob(r.Context(), mux.Vars(r)["id"])
	if err != nil || job == nil {
		s.writeError(w, r, http.StatusNotFound, errors.New("job not found"))
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleJobStream(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Jobs == nil {
		s.writeError(w, r, http.StatusNotFound, errors.New("job service not available"))
		return
	}
	updates, unsubscribe := s.cfg.Jobs.Subscribe()
	defer unsubscribe()
	streamEvents[Job](s, w, r, "job", updates)
}

func (s *Server) handleConnectionStream(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Connections == nil {
		s.writeError(w, r, http.StatusNotFound, errors.New("connection monitor not available"))
		return
	}
	events, unsubscribe := s.cfg.Connections.Subscribe()
	defer unsubscribe()
	streamEvents[monitor.ConnectionEvent](s, w, r, "connection", events)
}

func (s *Server) handleIntercept(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Interceptor == nil {
		s.writeError(w, r, http.StatusNotFound, errors.New("interceptor not available"))
		return
	}
	var req InterceptRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		s.writeError(w, r, http.StatusBadRequest, errors.New("url required"))
		return
	}
	writeJSON(w, http.StatusOK, s.cfg.Interceptor.Decide(req.URL))
}

func (s *Server) handleDNSCache(w http.ResponseWriter, r *http.Request) {
	if !s.requireDNSCache(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, DNSCacheResponse{
		Provider: s.cfg.DNSCache.Provider(),
		Entries:  s.cfg.DNSCache.Entries(),
	})
}

func (s *Server) handleDNSCacheClear(w http.ResponseWriter, r *http.Request) {
	if !s.requireDNSCache(w, r) {
		return
	}
	s.cfg.DNSCache.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDNSCacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if !s.requireDNSCache(w, r) {
		return
	}
	domain := mux.Vars(r)["domain"]
	if !s.cfg.DNSCache.Invalidate(domain) {
		s.writeError(w, r, http.StatusNotFound, errors.New("domain not cached"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDNSProvider(w http.ResponseWriter, r *http.Request) {
	if !s.requireDNSCache(w, r) {
		return
	}
	if r.Method == http.MethodPut {
		var req ProviderRequest
		if !s.decodeBody(w, r, &req) {
			return
		}
		if err := s.cfg.DNSCache.SetProvider(req.Provider); err != nil {
			s.writeError(w, r, http.StatusBadRequest, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, ProviderRequest{Provider: s.cfg.DNSCache.Provider()})
}

func (s *Server) requireDNSCache(w http.ResponseWriter, r *http.Request) bool {
	if s.cfg.DNSCache == nil {
		s.writeError(w, r, http.StatusNotFound, errors.New("dns cache not available"))
		return false
	}
	return true
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, r, http.StatusBadRequest, errors.Join(sharedErrors.ErrInvalidInput, err))
		return false
	}
	return true
}

// streamEvents writes every value received on updates as a named SSE event
// until the client disconnects or the channel is closed.
func streamEvents[T any](s *Server, w http.ResponseWriter, r *http.Request, name string, updates <-chan T) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, r, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case item, ok := <-updates:
			if !ok {
				return
			}
			payload, err := json.Marshal(item)
			if err != nil {
				s.requestLogger(r).Error("failed to marshal stream event", zap.String("event", name), zap.Error(err))
				continue
			}
			if !s.writeStreamChunk(w, []byte("event: "+name+"\ndata: ")) {
				return
			}
			if !s.writeStreamChunk(w, payload) {
				return
			}
			if !s.writeStreamChunk(w, []byte("\n\n")) {
				return
			}
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.RateLimit <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		clientIP := clientAddress(r)
		limiter := s.limiters.getLimiter(clientIP, s.cfg.RateLimit, s.cfg.RateBurst)
		if !limiter.Allow() {
			s.requestLogger(r).Warn("rate_limit_exceeded", zap.String("client_ip", clientIP))
			s.writeError(w, r, http.StatusTooManyRequests, errors.New("rate limit exceeded"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientAddress prefers the first X-Forwarded-For hop and strips the port.
func clientAddress(r *http.Request) string {
	clientIP := r.RemoteAddr
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if idx := strings.Index(forwarded, ","); idx > 0 {
			clientIP = strings.TrimSpace(forwarded[:idx])
		} else {
			clientIP = strings.TrimSpace(forwarded)
		}
	}
	if idx := strings.LastIndex(clientIP, ":"); idx > 0 && !strings.HasSuffix(clientIP, "]") {
		clientIP = clientIP[:idx]
	}
	return strings.Trim(clientIP, "[]")
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		allowOrigin := "*"
		if len(s.cfg.CORSOrigins) > 0 {
			allowOrigin = ""
			for _, allowed := range s.cfg.CORSOrigins {
				if allowed == origin {
					allowOrigin = origin
					break
				}
			}
		}

		if allowOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Auth-Token, X-Request-ID")
			w.Header().Set("Access-Control-Max-Age", "3600")
			if allowOrigin != "*" {
				w.Header().Add("Vary", "Origin")
			}
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(lrw, r)

		s.cfg.Logger.Info("http_request",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote_addr", r.RemoteAddr),
			zap.Int("status", lrw.statusCode),
			zap.Duration("duration", time.Since(start)),
			zap.Int64("bytes", lrw.bytesWritten),
		)
	})
}

func (s *Server) withAuth(next http.Handler) http.Handler {
	if s.cfg.AuthToken == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-Auth-Token")
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AuthToken)) != 1 {
			s.writeError(w, r, http.StatusUnauthorized, errors.New("unauthorized"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// loggingResponseWriter wraps http.ResponseWriter to capture status code and bytes written
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	n, err := lrw.ResponseWriter.Write(b)
	lrw.bytesWritten += int64(n)
	return n, err
}

// Flush lets SSE handlers stream through the logging wrapper.
func (lrw *loggingResponseWriter) Flush() {
	if f, ok := lrw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	msg := err.Error()

	// 5xx details stay in the server log.
	if status >= 500 {
		s.requestLogger(r).Error("internal_server_error",
			zap.Error(err),
			zap.Int("status", status),
		)
		msg = "internal server error"
	}

	writeJSON(w, status, map[string]string{"error": msg})
}

// requestLogger creates a logger with request context (request ID, method, path)
func (s *Server) requestLogger(r *http.Request) *zap.Logger {
	if s.cfg.Logger == nil {
		return zap.NewNop()
	}
	return s.cfg.Logger.With(
		zap.String("request_id", middleware.GetRequestID(r.Context())),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	)
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, r, http.StatusNotFound, errors.New("not found"))
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, r, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func (s *Server) writeStreamChunk(w http.ResponseWriter, data []byte) bool {
	if _, err := w.Write(data); err != nil {
		if s.cfg.Logger != nil {
			s.cfg.Logger.Error("failed to write stream chunk", zap.Error(err))
		}
		return false
	}
	return true
}

// rateLimiterMap manages per-IP rate limiters with automatic cleanup
type rateLimiterMap struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter
	quit     chan struct{}
	once     sync.Once
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newRateLimiterMap() *rateLimiterMap {
	m := &rateLimiterMap{
		limiters: make(map[string]*ipLimiter),
		quit:     make(chan struct{}),
	}
	go m.cleanupLoop()
	return m
}

func (m *rateLimiterMap) getLimiter(ip string, rps, burst int) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	if burst <= 0 {
		burst = rps
	}
	limiter, exists := m.limiters[ip]
	if !exists {
		limiter = &ipLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
		m.limiters[ip] = limiter
	}
	limiter.lastSeen = time.Now()
	return limiter.limiter
}

// cleanupLoop removes limiters that haven't been used in 5 minutes
func (m *rateLimiterMap) cleanupLoop() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.quit:
			return
		case <-ticker.C:
			m.mu.Lock()
			for ip, limiter := range m.limiters {
				if time.Since(limiter.lastSeen) > 5*time.Minute {
					delete(m.limiters, ip)
				}
			}
			m.mu.Unlock()
		}
	}
}

func (m *rateLimiterMap) stop() {
	m.once.Do(func() { close(m.quit) })
}
