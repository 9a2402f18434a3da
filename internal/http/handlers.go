package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"graytone/internal/cache"
	"graytone/internal/config"
	"graytone/internal/fetch"
	"graytone/internal/renderer"
	"graytone/internal/transform"
)

type Handlers struct {
	config   *config.Config
	logger   *zap.Logger
	renderer *renderer.Renderer
	validate *validator.Validate
}

func New(config *config.Config, logger *zap.Logger, renderer *renderer.Renderer) *Handlers {
	return &Handlers{
		config:   config,
		logger:   logger,
		renderer: renderer,
		validate: validator.New(),
	}
}

// Routes returns the full handler chain served by the process
func (h *Handlers) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/process", h.HandleProcess)
	mux.HandleFunc("/healthz", h.HandleHealthz)
	mux.Handle("/metrics", promhttp.Handler())

	return h.CORSMiddleware(h.RequestLoggingMiddleware(mux))
}

func (h *Handlers) RequestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()
		start := time.Now()

		ip := h.extractIP(r)

		w.Header().Set("X-Request-Id", requestID)
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		bytes := wrapped.bytesWritten

		h.logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("ip", ip),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", wrapped.statusCode),
			zap.Int64("bytes", bytes),
			zap.Int64("duration_ms", duration.Milliseconds()),
			zap.String("user_agent", r.UserAgent()),
		)
	})
}

func (h *Handlers) CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigin := ""

		if h.config.AllowedOrigin != "" {
			allowedOrigin = h.config.AllowedOrigin
		} else {
			host := r.Host
			if origin != "" && (strings.HasPrefix(origin, "http://"+host) || strings.HasPrefix(origin, "https://"+host)) {
				allowedOrigin = origin
			} else if origin == "" {
				allowedOrigin = "*"
			}
		}

		if allowedOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "If-None-Match")
			w.Header().Set("Access-Control-Expose-Headers", "ETag, Last-Modified")
		}

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// HandleProcess serves GET /process?url=&levels=&width=&height=
func (h *Handlers) HandleProcess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, err := ParseTransformRequest(h.validate, r.URL.Query(), Defaults{
		Levels: h.config.DefaultLevels,
		Width:  h.config.DefaultWidth,
		Height: h.config.DefaultHeight,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	params := req.Params()
	key := params.Key()
	etag := key.ETag()

	// Client already has the current bytes
	if inm := strings.TrimSpace(r.Header.Get("If-None-Match")); inm == etag && h.renderer.Lookup(key) {
		w.Header().Set("ETag", etag)
		w.Header().Set("Cache-Control", h.config.CacheControl())
		w.WriteHeader(http.StatusNotModified)
		cache.NotModified.Inc()
		return
	}

	entry, err := h.renderer.Render(r.Context(), params)
	if err != nil {
		status, message := errorResponse(err)
		h.logger.Warn("Failed to render image",
			zap.String("url", params.URL),
			zap.String("key", key.String()),
			zap.Int("status", status),
			zap.Error(err),
		)
		http.Error(w, message, status)
		return
	}
	defer entry.Body.Close()

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.FormatInt(entry.Size, 10))
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", h.config.CacheControl())
	w.Header().Set("Last-Modified", entry.ModTime.UTC().Format(http.TimeFormat))

	// HEAD request doesn't send body
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}

	if _, err := io.Copy(w, entry.Body); err != nil {
		h.logger.Debug("Failed to stream cached image", zap.String("key", key.String()), zap.Error(err))
	}
}

// errorResponse maps a render failure to a status code and a short
// client-facing message.
func errorResponse(err error) (int, string) {
	var fetchErr *fetch.Error
	var pipelineErr *transform.Error
	var storageErr *cache.StorageError

	switch {
	case errors.As(err, &fetchErr):
		if fetchErr.Kind == fetch.KindTooLarge {
			return http.StatusRequestEntityTooLarge, "source image too large"
		}
		return http.StatusBadGateway, "error fetching source: " + fetchErr.Error()
	case errors.As(err, &pipelineErr):
		return http.StatusInternalServerError, "error processing image: " + pipelineErr.Error()
	case errors.As(err, &storageErr):
		return http.StatusInternalServerError, "error storing image"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// Not for real production use due to potential spoofing
func (h *Handlers) extractIP(r *http.Request) string {
	ip := r.Header.Get("X-Real-Ip")
	if ip != "" {
		return strings.Split(ip, ":")[0]
	}

	addr := r.RemoteAddr
	if addr != "" {
		return strings.Split(addr, ":")[0]
	}

	return "unknown"
}

type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}
