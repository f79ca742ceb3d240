package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"videostream/internal/domain"
)

// AdminMedia is the slice of the media service the admin listener reads.
type AdminMedia interface {
	ListMedia(ctx context.Context) ([]domain.MediaRecord, error)
	GetMedia(ctx context.Context, id domain.MediaID) (domain.MediaRecord, error)
	MediaSize(ctx context.Context, id domain.MediaID) int64
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error errorPayload `json:"error"`
}

type healthResponse struct {
	Status string `json:"status"`
	Media  int    `json:"media"`
}

// mediaDetail is a record plus the current size of its file; size is 0
// when the file is gone.
type mediaDetail struct {
	domain.MediaRecord
	Size int64 `json:"size"`
}

// NewAdminHandler serves /metrics, /healthz, /media/{id} and the /ws scan
// event feed. A nil gatherer falls back to the default Prometheus registry.
func NewAdminHandler(media AdminMedia, hub *WSHub, gatherer prometheus.Gatherer, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		records, err := media.ListMedia(r.Context())
		if err != nil {
			logger.Warn("health check failed", slog.String("error", err.Error()))
			writeError(w, http.StatusServiceUnavailable, "index_unavailable", "media index unavailable")
			return
		}
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Media: len(records)})
	})
	mux.HandleFunc("GET /media/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := domain.MediaID(r.PathValue("id"))
		record, err := media.GetMedia(r.Context(), id)
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "media_not_found", "media not found")
			return
		}
		if err != nil {
			logger.Warn("media lookup failed", slog.String("mediaId", string(id)), slog.String("error", err.Error()))
			writeError(w, http.StatusServiceUnavailable, "index_unavailable", "media index unavailable")
			return
		}
		writeJSON(w, http.StatusOK, mediaDetail{MediaRecord: record, Size: media.MediaSize(r.Context(), id)})
	})
	if hub != nil {
		mux.Handle("GET /ws", hub)
	}

	var handler http.Handler = mux
	handler = metricsMiddleware(handler)
	handler = loggingMiddleware(logger, handler)
	handler = recoveryMiddleware(logger, handler)
	return otelhttp.NewHandler(handler, "videostream.admin",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/metrics" && r.URL.Path != "/healthz"
		}),
	)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{Error: errorPayload{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
