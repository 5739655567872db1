package httpadapter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/manual-assistant/internal/config"
	"github.com/kirillkom/manual-assistant/internal/core/domain"
	"github.com/kirillkom/manual-assistant/internal/core/ports"
	"github.com/kirillkom/manual-assistant/internal/observability/metrics"
)

const maxUploadBytes = 64 << 20

type Router struct {
	ingest  ports.ManualIngestor
	chat    ports.ChatService
	manuals ports.ManualReader

	metrics   *metrics.HTTPServerMetrics
	logger    *slog.Logger
	validator *requestValidator

	rateLimitRPS   float64
	rateLimitBurst int
	maxInFlight    int
	overloadWait   time.Duration
	corsOrigins    []string
}

type Option func(*Router)

func WithMetrics(m *metrics.HTTPServerMetrics) Option {
	return func(rt *Router) { rt.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(rt *Router) {
		if logger != nil {
			rt.logger = logger
		}
	}
}

func NewRouter(
	cfg config.Config,
	ingest ports.ManualIngestor,
	chat ports.ChatService,
	manuals ports.ManualReader,
	opts ...Option,
) (*Router, error) {
	validator, err := newRequestValidator()
	if err != nil {
		return nil, err
	}

	rt := &Router{
		ingest:         ingest,
		chat:           chat,
		manuals:        manuals,
		logger:         slog.Default(),
		validator:      validator,
		rateLimitRPS:   cfg.APIRateLimitRPS,
		rateLimitBurst: cfg.APIRateLimitBurst,
		maxInFlight:    cfg.APIMaxInFlight,
		overloadWait:   cfg.APIOverloadWait,
		corsOrigins:    cfg.CORSOrigins,
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt, nil
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /api/v1/health", rt.health)
	mux.HandleFunc("GET /api/v1/health/{$}", rt.health)
	mux.HandleFunc("POST /api/v1/chat", rt.chatAsk)
	mux.HandleFunc("POST /api/v1/chat/{$}", rt.chatAsk)
	mux.HandleFunc("POST /api/v1/manuals", rt.uploadManual)
	mux.HandleFunc("GET /api/v1/manuals/{manual_id}", rt.getManualByID)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = rt.validator.middleware(handler)
	handler = backpressureMiddleware(handler, rt.maxInFlight, rt.overloadWait)
	handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst)
	handler = corsMiddleware(handler, rt.corsOrigins)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(handler)
	}
	handler = rt.accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"model_loaded": rt.chat.Ready(),
	})
}

func (rt *Router) chatAsk(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question  string `json:"question"`
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	reply, err := rt.chat.Ask(r.Context(), req.SessionID, req.Question)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (rt *Router) uploadManual(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	pages, err := pageRangeFromForm(r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}

	manual, err := rt.ingest.Upload(r.Context(), ports.ManualUpload{
		Filename: fileHeader.Filename,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Model:    strings.TrimSpace(r.FormValue("model")),
		Pages:    pages,
		Body:     file,
	})
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, manual)
}

func (rt *Router) getManualByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("manual_id"))
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "manual id is required"})
		return
	}

	manual, err := rt.manuals.GetByID(r.Context(), id)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, manual)
}

func pageRangeFromForm(r *http.Request) (domain.PageRange, error) {
	start, err := optionalFormInt(r, "start_page")
	if err != nil {
		return domain.PageRange{}, err
	}
	end, err := optionalFormInt(r, "end_page")
	if err != nil {
		return domain.PageRange{}, err
	}
	return domain.PageRange{Start: start, End: end}, nil
}

func optionalFormInt(r *http.Request, field string) (int, error) {
	raw := strings.TrimSpace(r.FormValue(field))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.WrapError(domain.ErrInvalidInput, "parse "+field, fmt.Errorf("%q is not an integer: %w", raw, err))
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
