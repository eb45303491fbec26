// Package server exposes the screening service over HTTP as JSON.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/shariah-screen/internal/dataset"
	"github.com/sells-group/shariah-screen/internal/model"
	"github.com/sells-group/shariah-screen/internal/portfolio"
	"github.com/sells-group/shariah-screen/internal/screening"
)

// maxBodyBytes caps portfolio request bodies.
const maxBodyBytes = 1 << 20

// Options configures cross-cutting HTTP behaviour.
type Options struct {
	AllowedOrigins []string
	// RateLimitRPS of zero disables rate limiting.
	RateLimitRPS   float64
	RateLimitBurst int
}

// Server holds the HTTP handlers.
type Server struct {
	svc  *screening.Service
	opts Options
}

// New creates a Server.
func New(svc *screening.Service, opts Options) *Server {
	return &Server{svc: svc, opts: opts}
}

// Routes returns the router with all middleware mounted.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)

	r.Route("/v1", func(r chi.Router) {
		r.Use(rateLimit(s.opts.RateLimitRPS, s.opts.RateLimitBurst))

		r.Get("/securities", s.listSecurities)
		r.Get("/securities/{ticker}", s.getSecurity)
		r.Get("/records/{key}", s.getRecord)
		r.Get("/values/{field}", s.listValues)
		r.Post("/portfolio", s.screenPortfolio)
		r.Get("/dataset/stats", s.datasetStats)
		r.Post("/dataset/reload", s.reloadDataset)
	})
	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"dataset_loaded": s.svc.Repository().Loaded(),
	})
}

func (s *Server) listSecurities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := dataset.Filter{
		Search:           q.Get("search"),
		Classification:   q.Get("classification"),
		Sector:           q.Get("sector"),
		RiskLevel:        q.Get("risk_level"),
		ZakatStatus:      q.Get("zakat_status"),
		ZakatMethodology: q.Get("zakat_methodology"),
	}
	if raw := q.Get("auto_banned"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "auto_banned must be true or false")
			return
		}
		filter.AutoBanned = &v
	}
	page, ok := intParam(w, r, "page")
	if !ok {
		return
	}
	size, ok := intParam(w, r, "page_size")
	if !ok {
		return
	}

	ds, ok := s.dataset(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ds.ListRecords(filter, page, size))
}

func (s *Server) getSecurity(w http.ResponseWriter, r *http.Request) {
	b, err := s.svc.ScreenTicker(r.Context(), chi.URLParam(r, "ticker"))
	if err != nil {
		s.datasetError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) getRecord(w http.ResponseWriter, r *http.Request) {
	b, err := s.svc.ScreenRecord(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		s.datasetError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) listValues(w http.ResponseWriter, r *http.Request) {
	field := chi.URLParam(r, "field")
	ds, ok := s.dataset(w, r)
	if !ok {
		return
	}
	values, err := ds.ListDistinctValues(field)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "unknown field: "+field)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"field": field, "values": values})
}

type portfolioRequest struct {
	Holdings []model.PortfolioHolding `json:"holdings"`
}

func (s *Server) screenPortfolio(w http.ResponseWriter, r *http.Request) {
	var req portfolioRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := s.svc.ScreenPortfolio(r.Context(), req.Holdings)
	switch {
	case errors.Is(err, portfolio.ErrNoHoldings), errors.Is(err, portfolio.ErrInvalidHolding):
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.datasetError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) datasetStats(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.dataset(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ds.Stats())
}

func (s *Server) reloadDataset(w http.ResponseWriter, r *http.Request) {
	ds, err := s.svc.Repository().Reload(r.Context())
	if err != nil {
		s.datasetError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ds.Stats())
}

func (s *Server) dataset(w http.ResponseWriter, r *http.Request) (*dataset.Dataset, bool) {
	ds, err := s.svc.Repository().Get(r.Context())
	if err != nil {
		s.datasetError(w, r, err)
		return nil, false
	}
	return ds, true
}

func (s *Server) datasetError(w http.ResponseWriter, r *http.Request, err error) {
	zap.L().Error("server: dataset unavailable",
		zap.String("request_id", RequestID(r.Context())),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeError(w, r, http.StatusInternalServerError, "screening data unavailable")
}

// intParam parses an optional integer query parameter; absent is zero.
func intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, name+" must be an integer")
		return 0, false
	}
	return v, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("server: write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, map[string]string{
		"error":      msg,
		"request_id": RequestID(r.Context()),
	})
}
