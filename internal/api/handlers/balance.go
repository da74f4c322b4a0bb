package handlers

import (
	"context"
	"net/http"

	"github.com/dvloznov/expense-tracker/internal/api/middleware"
	"github.com/dvloznov/expense-tracker/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// BalanceService is the part of the pipeline the balance endpoints use.
type BalanceService interface {
	Balance(ctx context.Context, userID string) (*domain.BalanceSnapshot, error)
	Statistics(ctx context.Context, userID string) (*domain.MonthlyStatistics, error)
}

// BalanceHandler handles balance endpoints.
type BalanceHandler struct {
	svc BalanceService
	log zerolog.Logger
}

// NewBalanceHandler creates a new balance handler.
func NewBalanceHandler(svc BalanceService, log zerolog.Logger) *BalanceHandler {
	return &BalanceHandler{
		svc: svc,
		log: log,
	}
}

// CurrentBalance handles GET /api/balance/current
func (h *BalanceHandler) CurrentBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	snap, err := h.svc.Balance(ctx, middleware.UserID(ctx))
	if err != nil {
		writeServiceError(w, r, h.log, "get balance", err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"balance": newBalanceView(snap),
	})
}

type sourceStats struct {
	Amount decimal.Decimal `json:"amount"`
	Count  int             `json:"count"`
}

// Statistics handles GET /api/balance/statistics
func (h *BalanceHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := h.svc.Statistics(ctx, middleware.UserID(ctx))
	if err != nil {
		writeServiceError(w, r, h.log, "get statistics", err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"statistics": map[string]interface{}{
			"year":           stats.Year,
			"month":          stats.Month,
			"auto_detected":  sourceStats{Amount: stats.AutoExpenseAmount, Count: stats.AutoExpenseCount},
			"manual":         sourceStats{Amount: stats.ManualExpenseAmount, Count: stats.ManualExpenseCount},
			"total_expenses": stats.TotalExpenses,
			"total_income":   stats.TotalIncome,
			"savings":        stats.Savings,
		},
	})
}
