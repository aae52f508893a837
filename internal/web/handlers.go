package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vitos/predictbet/internal/domain"
	"go.uber.org/zap"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrAlreadySettled):
		s.writeJSON(w, http.StatusConflict, map[string]string{"error": "position already settled"})
	case errors.Is(err, domain.ErrConcurrencyConflict):
		s.writeJSON(w, http.StatusConflict, map[string]string{"error": "concurrent modification, retry"})
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	default:
		s.logger.Error("request failed", zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := s.positions.ListActivePositions(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if positions == nil {
		positions = []*domain.Position{}
	}
	s.writeJSON(w, http.StatusOK, positions)
}

func (s *Server) handleClosePosition(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	res, err := s.settler.CloseManual(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"position_id":    res.PositionID,
		"result":         res.Result,
		"payout":         res.Payout,
		"exit_price":     res.ExitPrice,
		"exit_reason":    res.ExitReason,
		"profit_percent": res.ProfitPercent,
		"new_balance":    res.NewBalance,
		"commentary":     res.Commentary,
	})
}

type placeBetRequest struct {
	MatchID string `json:"match_id"`
	Outcome string `json:"outcome"`
	Amount  int64  `json:"amount"`
}

func (s *Server) handlePlaceBet(w http.ResponseWriter, r *http.Request) {
	var req placeBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	if req.MatchID == "" || req.Outcome == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "match_id and outcome are required"})
		return
	}
	if req.Amount <= 0 {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount must be positive"})
		return
	}
	if err := s.odds.PlaceBet(r.Context(), req.MatchID, req.Outcome, req.Amount); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

func (s *Server) handleGetOdds(w http.ResponseWriter, r *http.Request) {
	odds, err := s.odds.Odds(r.Context(), r.PathValue("match_id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, odds)
}

type matchEventRequest struct {
	LeadingOutcome string `json:"leading_outcome"`
}

func (s *Server) handleMatchEvent(w http.ResponseWriter, r *http.Request) {
	var req matchEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.LeadingOutcome == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "leading_outcome is required"})
		return
	}
	odds, err := s.odds.OnMatchEvent(r.Context(), r.PathValue("match_id"), req.LeadingOutcome)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, odds)
}
