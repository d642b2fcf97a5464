// Package server exposes the analyzer over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dgnsrekt/gexdex/internal/analyzer"
	"github.com/dgnsrekt/gexdex/internal/config"
	"github.com/dgnsrekt/gexdex/internal/gex"
	"github.com/dgnsrekt/gexdex/internal/provider"
	"github.com/dgnsrekt/gexdex/internal/report"
)

type Server struct {
	service *analyzer.Service
	logger  *zap.Logger
}

func NewServer(service *analyzer.Service, logger *zap.Logger) *Server {
	return &Server{service: service, logger: logger}
}

type healthResponse struct {
	Status     string `json:"status"`
	Provider   string `json:"provider"`
	ReplayDate string `json:"replay_date,omitempty"`
}

func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	p := s.service.Provider()
	resp := healthResponse{Status: "ok", Provider: p.Name()}
	if dated, ok := p.(interface{ Date() string }); ok {
		resp.ReplayDate = dated.Date()
	}
	writeJSON(w, http.StatusOK, resp)
}

type symbolsResponse struct {
	Symbols []config.Symbol `json:"symbols"`
	Count   int             `json:"count"`
}

func (s *Server) GetSymbols(w http.ResponseWriter, r *http.Request) {
	list := s.service.Symbols().List()
	writeJSON(w, http.StatusOK, symbolsResponse{Symbols: list, Count: len(list)})
}

type expiriesResponse struct {
	Symbol   string   `json:"symbol"`
	Expiries []string `json:"expiries"`
}

func (s *Server) GetExpiries(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	expiries, err := s.service.Expiries(r.Context(), symbol)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sym, _ := s.service.Symbols().Lookup(symbol)
	writeJSON(w, http.StatusOK, expiriesResponse{Symbol: sym.Name, Expiries: expiries})
}

func (s *Server) GetGex(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.analyze(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) GetGexCSV(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.analyze(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", report.CSVFileName(rep.Symbol, rep.GeneratedAt)))
	if err := report.WriteCSV(w, rep); err != nil {
		s.logger.Warn("writing csv response", zap.String("symbol", rep.Symbol), zap.Error(err))
	}
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) (*analyzer.Report, bool) {
	q, err := parseQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	rep, err := s.service.Analyze(r.Context(), q)
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	return rep, true
}

func parseQuery(r *http.Request) (analyzer.Query, error) {
	q := analyzer.Query{Symbol: chi.URLParam(r, "symbol")}
	values := r.URL.Query()

	var err error
	if v := values.Get("expiry_index"); v != "" {
		if q.ExpiryIndex, err = strconv.Atoi(v); err != nil || q.ExpiryIndex < 0 {
			return q, fmt.Errorf("expiry_index must be a non-negative integer, got %q", v)
		}
	}
	if v := values.Get("strikes_range"); v != "" {
		if q.StrikesRange, err = strconv.Atoi(v); err != nil || q.StrikesRange < 1 {
			return q, fmt.Errorf("strikes_range must be a positive integer, got %q", v)
		}
	}
	if v := values.Get("fresh"); v != "" {
		if q.Fresh, err = strconv.ParseBool(v); err != nil {
			return q, fmt.Errorf("fresh must be a boolean, got %q", v)
		}
	}
	return q, nil
}

func (s *Server) Reload(w http.ResponseWriter, r *http.Request) {
	reloader, ok := s.service.Provider().(provider.Reloader)
	if !ok {
		writeError(w, http.StatusConflict, "provider "+s.service.Provider().Name()+" does not support reload")
		return
	}
	res, err := reloader.Reload(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		s.logger.Warn("reload failed", zap.Error(err))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type rewindResponse struct {
	Symbol    string `json:"symbol,omitempty"`
	Positions int    `json:"positions"`
}

func (s *Server) Rewind(w http.ResponseWriter, r *http.Request) {
	rewinder, ok := s.service.Provider().(provider.Rewinder)
	if !ok {
		writeError(w, http.StatusConflict, "provider "+s.service.Provider().Name()+" has no playback positions")
		return
	}
	symbol := r.URL.Query().Get("symbol")
	if symbol != "" {
		sym, err := s.service.Symbols().Lookup(symbol)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		symbol = sym.Name
	}
	writeJSON(w, http.StatusOK, rewindResponse{Symbol: symbol, Positions: rewinder.Rewind(symbol)})
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn("request failed",
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, gex.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, config.ErrUnknownSymbol):
		return http.StatusNotFound
	case errors.Is(err, provider.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled):
		return 499
	}
	return http.StatusInternalServerError
}
