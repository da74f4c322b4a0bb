package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/expense-tracker/internal/api/middleware"
	"github.com/dvloznov/expense-tracker/internal/domain"
	"github.com/dvloznov/expense-tracker/internal/jobs"
	"github.com/dvloznov/expense-tracker/internal/pipeline"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const maxBodyBytes = 64 << 10

// TransactionService is the part of the pipeline the transaction endpoints use.
type TransactionService interface {
	ValidateMessage(message string) error
	ProcessMessage(ctx context.Context, userID, message string) (*pipeline.IngestResult, error)
	EditEntry(ctx context.Context, userID, entryID string, upd domain.EntryUpdate) (*pipeline.MutationResult, error)
	DeleteEntry(ctx context.Context, userID, entryID string) (*pipeline.MutationResult, error)
	ListAutoEntries(ctx context.Context, filter domain.EntryFilter) (*domain.EntryPage, error)
	ListRecords(ctx context.Context, userID string, limit, offset int) ([]*domain.TransactionRecord, error)
}

// TransactionsHandler handles message ingestion and auto-detected entries.
type TransactionsHandler struct {
	svc       TransactionService
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler. A nil publisher
// disables asynchronous ingestion.
func NewTransactionsHandler(svc TransactionService, publisher jobs.Publisher, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{
		svc:       svc,
		publisher: publisher,
		log:       log,
	}
}

// UploadMessage handles POST /api/transactions/upload-message
func (h *TransactionsHandler) UploadMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserID(ctx)

	var req struct {
		Message *string `json:"message"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Message == nil {
		middleware.WriteError(w, http.StatusBadRequest, "Message text is required")
		return
	}

	if r.URL.Query().Get("async") == "true" {
		h.enqueueMessage(w, r, userID, *req.Message)
		return
	}

	res, err := h.svc.ProcessMessage(ctx, userID, *req.Message)
	if err != nil {
		writeServiceError(w, r, h.log, "process message", err)
		return
	}

	switch res.Outcome {
	case pipeline.OutcomeProcessed:
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": res.Message,
			"data": map[string]interface{}{
				"record_id":   res.Record.ID,
				"parsed":      res.Parsed,
				"transaction": res.Entry,
			},
			"balance": newBalanceView(res.Balance),
		})

	case pipeline.OutcomeDuplicate:
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"success": false,
			"message": res.Message,
			"data":    map[string]interface{}{"duplicate": true},
		})

	default:
		status := http.StatusBadRequest
		kind := domain.ParseMalformed
		if res.Failure != nil {
			kind = res.Failure.Kind
			if res.Failure.Retryable() {
				status = http.StatusServiceUnavailable
			}
		}
		data := map[string]interface{}{"error_kind": kind}
		if res.Record != nil {
			data["record_id"] = res.Record.ID
		}
		middleware.WriteJSON(w, status, map[string]interface{}{
			"success": false,
			"message": res.Message,
			"data":    data,
		})
	}
}

func (h *TransactionsHandler) enqueueMessage(w http.ResponseWriter, r *http.Request, userID, message string) {
	if h.publisher == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Asynchronous processing is not enabled")
		return
	}
	if err := h.svc.ValidateMessage(message); err != nil {
		writeServiceError(w, r, h.log, "validate message", err)
		return
	}

	job := &jobs.Job{
		Type:    jobs.JobTypeIngestMessage,
		UserID:  userID,
		Message: message,
	}
	if err := h.publisher.Publish(r.Context(), job); err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to enqueue ingest job")
		middleware.WriteError(w, http.StatusServiceUnavailable, "Failed to queue message")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("user_id", userID).Msg("Ingest job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"success": true,
		"message": "Message queued for processing.",
		"job_id":  job.JobID,
		"status":  job.Status,
	})
}

// ListAutoTransactions handles GET /api/transactions/auto
func (h *TransactionsHandler) ListAutoTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	filter := domain.EntryFilter{UserID: middleware.UserID(ctx)}
	var ok bool
	if filter.Month, ok = intParam(w, query.Get("month"), "month"); !ok {
		return
	}
	if filter.Year, ok = intParam(w, query.Get("year"), "year"); !ok {
		return
	}
	if filter.Limit, ok = intParam(w, query.Get("limit"), "limit"); !ok {
		return
	}
	if filter.Offset, ok = intParam(w, query.Get("offset"), "offset"); !ok {
		return
	}

	page, err := h.svc.ListAutoEntries(ctx, filter)
	if err != nil {
		writeServiceError(w, r, h.log, "list auto transactions", err)
		return
	}

	entries := page.Entries
	if entries == nil {
		entries = []*domain.LedgerEntry{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"transactions": entries,
		"total":        page.Total,
		"limit":        page.Limit,
		"offset":       page.Offset,
	})
}

// ListRecords handles GET /api/transactions/records
func (h *TransactionsHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	limit, ok := intParam(w, query.Get("limit"), "limit")
	if !ok {
		return
	}
	offset, ok := intParam(w, query.Get("offset"), "offset")
	if !ok {
		return
	}

	records, err := h.svc.ListRecords(ctx, middleware.UserID(ctx), limit, offset)
	if err != nil {
		writeServiceError(w, r, h.log, "list records", err)
		return
	}
	if records == nil {
		records = []*domain.TransactionRecord{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"records": records,
		"count":   len(records),
	})
}

// editRequest accepts any subset of the editable fields. Amount may be a
// JSON number or a numeric string.
type editRequest struct {
	Amount           json.RawMessage `json:"amount"`
	Category         *string         `json:"category"`
	Description      *string         `json:"description"`
	MerchantOrSource *string         `json:"merchant_or_source"`
}

func (req editRequest) toUpdate() (domain.EntryUpdate, error) {
	var upd domain.EntryUpdate

	if len(req.Amount) > 0 && string(req.Amount) != "null" {
		s := strings.TrimSpace(string(req.Amount))
		s = strings.ReplaceAll(strings.Trim(s, `"`), ",", "")
		amount, err := decimal.NewFromString(s)
		if err != nil {
			return upd, domain.NewValidationError("amount", "amount must be a valid number")
		}
		upd.Amount = &amount
	}
	if req.Category != nil {
		c := domain.Category(*req.Category)
		upd.Category = &c
	}
	upd.Description = req.Description
	upd.MerchantOrSource = req.MerchantOrSource
	return upd, nil
}

// EditTransaction handles PUT /api/transactions/{id}
func (h *TransactionsHandler) EditTransaction(w http.ResponseWriter, r *http.Request, entryID string) {
	ctx := r.Context()

	var req editRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	upd, err := req.toUpdate()
	if err != nil {
		writeServiceError(w, r, h.log, "edit transaction", err)
		return
	}

	res, err := h.svc.EditEntry(ctx, middleware.UserID(ctx), entryID, upd)
	if err != nil {
		writeServiceError(w, r, h.log, "edit transaction", err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, mutationBody(res))
}

// DeleteTransaction handles DELETE /api/transactions/{id}
func (h *TransactionsHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request, entryID string) {
	ctx := r.Context()

	res, err := h.svc.DeleteEntry(ctx, middleware.UserID(ctx), entryID)
	if err != nil {
		writeServiceError(w, r, h.log, "delete transaction", err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, mutationBody(res))
}

func mutationBody(res *pipeline.MutationResult) map[string]interface{} {
	body := map[string]interface{}{
		"success":     true,
		"message":     res.Message,
		"transaction": res.Entry,
	}
	if res.Balance != nil {
		body["balance"] = newBalanceView(res.Balance)
	}
	if res.Warning != "" {
		body["warning"] = res.Warning
	}
	return body
}

// intParam parses an optional integer query parameter, writing a 400 on error.
func intParam(w http.ResponseWriter, raw, name string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid "+name+" parameter")
		return 0, false
	}
	return v, true
}

// balanceView is the wire form of a snapshot. last_updated is null until the
// first transaction.
type balanceView struct {
	CurrentBalance decimal.Decimal `json:"current_balance"`
	TotalCredits   decimal.Decimal `json:"total_credits"`
	TotalDebits    decimal.Decimal `json:"total_debits"`
	LastUpdated    *time.Time      `json:"last_updated"`
}

func newBalanceView(b *domain.BalanceSnapshot) *balanceView {
	if b == nil {
		return nil
	}
	v := &balanceView{
		CurrentBalance: b.CurrentBalance,
		TotalCredits:   b.TotalCredits,
		TotalDebits:    b.TotalDebits,
	}
	if !b.LastUpdated.IsZero() {
		t := b.LastUpdated
		v.LastUpdated = &t
	}
	return v
}
