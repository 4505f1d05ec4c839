// Package api provides the HTTP read surface over the market data
// facade: catalog, per-product summaries and series, and basket views.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fruver-market/internal/logger"
	"fruver-market/internal/marketdata"
	"fruver-market/internal/model"
)

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// Server holds the handler dependencies.
type Server struct {
	data          *marketdata.Service
	basket        []string
	referenceCity string
	log           *slog.Logger
}

func NewServer(data *marketdata.Service, basket []string, referenceCity string, log *slog.Logger) *Server {
	return &Server{
		data:          data,
		basket:        basket,
		referenceCity: referenceCity,
		log:           log.With("component", "api"),
	}
}

// NewRouter sets up HTTP routes for the API server.
func (s *Server) NewRouter() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	mux.HandleFunc("/api/v1/catalog", s.tagged("catalog", s.handleCatalog))
	mux.HandleFunc("/api/v1/products", s.tagged("products", s.handleProducts))
	mux.HandleFunc("/api/v1/products/", s.tagged("product", s.handleProductSubroutes))
	mux.HandleFunc("/api/v1/basket", s.tagged("basket", s.handleBasket))
	mux.HandleFunc("/api/v1/basket/series", s.tagged("basket-series", s.handleBasketSeries))
	mux.HandleFunc("/api/v1/basket/bars", s.tagged("basket-bars", s.handleBasketBars))

	return mux
}

// tagged stamps each request's context with a request ID so log lines
// across the facade can be correlated to one call.
func (s *Server) tagged(tag string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := logger.WithRequestID(r.Context(), logger.GenerateRequestID(tag, time.Now()))
		h(w, r.WithContext(ctx))
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	SetCORS(w)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("encode response", "err", err)
	}
}

func (s *Server) writeError(r *http.Request, w http.ResponseWriter, status int, err error) {
	SetCORS(w)
	attrs := append([]any{"status", status, "err", err}, logger.LogWithRequest(r.Context())...)
	s.log.Error("request failed", attrs...)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	items, err := s.data.Catalog(r.Context())
	if err != nil {
		s.writeError(r, w, http.StatusBadGateway, err)
		return
	}
	s.writeJSON(w, items)
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	names, err := s.data.Products(r.Context())
	if err != nil {
		s.writeError(r, w, http.StatusBadGateway, err)
		return
	}
	s.writeJSON(w, names)
}

// handleProductSubroutes dispatches /api/v1/products/{name}/{view}.
func (s *Server) handleProductSubroutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/products/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	product := parts[0]

	switch parts[1] {
	case "summary":
		s.handleSummary(w, r, product)
	case "series":
		s.handleSeries(w, r, product)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request, product string) {
	rng := model.HistoryRange(r.URL.Query().Get("range"))
	switch rng {
	case model.Range1M, model.Range6M, model.Range1Y, model.RangeMax:
	case "":
		rng = model.Range1Y
	default:
		http.Error(w, `{"error":"range must be one of 1m, 6m, 1y, max"}`, http.StatusBadRequest)
		return
	}

	points, err := s.data.HistoricalSeries(r.Context(), product, rng)
	if err != nil {
		s.writeError(r, w, http.StatusBadGateway, err)
		return
	}
	s.writeJSON(w, points)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request, product string) {
	summary, err := s.buildSummary(r.Context(), product)
	if err != nil {
		s.writeError(r, w, http.StatusBadGateway, err)
		return
	}
	s.writeJSON(w, summary)
}

func (s *Server) handleBasket(w http.ResponseWriter, r *http.Request) {
	value, err := s.data.BasketTotal(r.Context(), s.basket)
	if err != nil {
		s.writeError(r, w, http.StatusBadGateway, err)
		return
	}
	s.writeJSON(w, value)
}

func (s *Server) handleBasketSeries(w http.ResponseWriter, r *http.Request) {
	weeks := 13
	if q := r.URL.Query().Get("weeks"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 || n > 104 {
			http.Error(w, `{"error":"weeks must be 1..104"}`, http.StatusBadRequest)
			return
		}
		weeks = n
	}

	points, err := s.data.BasketSeries(r.Context(), s.basket, weeks)
	if err != nil {
		s.writeError(r, w, http.StatusBadGateway, err)
		return
	}
	s.writeJSON(w, points)
}

func (s *Server) handleBasketBars(w http.ResponseWriter, r *http.Request) {
	bars, err := s.data.BasketThreeMonthBars(r.Context(), s.basket)
	if err != nil {
		s.writeError(r, w, http.StatusBadGateway, err)
		return
	}
	s.writeJSON(w, bars)
}
