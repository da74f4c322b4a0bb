package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dvloznov/expense-tracker/internal/api/handlers"
	"github.com/dvloznov/expense-tracker/internal/api/middleware"
	"github.com/rs/zerolog"
)

// Handlers groups the endpoint handlers served by the API.
type Handlers struct {
	Transactions *handlers.TransactionsHandler
	Balance      *handlers.BalanceHandler
	Jobs         *handlers.JobsHandler

	// Ping reports storage health for /health. Optional.
	Ping func(ctx context.Context) error
}

// NewRouter builds the mux and wraps it in the middleware chain.
func NewRouter(h Handlers, log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	// Transactions endpoints
	mux.HandleFunc("/api/transactions/upload-message", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			h.Transactions.UploadMessage(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/transactions/auto", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			h.Transactions.ListAutoTransactions(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/transactions/records", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			h.Transactions.ListRecords(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/transactions/", func(w http.ResponseWriter, r *http.Request) {
		// Extract entry ID from path
		entryID := strings.TrimPrefix(r.URL.Path, "/api/transactions/")
		if entryID == "" || strings.Contains(entryID, "/") {
			middleware.WriteError(w, http.StatusNotFound, "Not found")
			return
		}

		switch r.Method {
		case http.MethodPut:
			h.Transactions.EditTransaction(w, r, entryID)
		case http.MethodDelete:
			h.Transactions.DeleteTransaction(w, r, entryID)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Balance endpoints
	mux.HandleFunc("/api/balance/current", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			h.Balance.CurrentBalance(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/balance/statistics", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			h.Balance.Statistics(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Jobs endpoints
	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			h.Jobs.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			// Extract job ID from path
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			h.Jobs.GetJob(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status, code := "healthy", http.StatusOK
		if h.Ping != nil {
			if err := h.Ping(r.Context()); err != nil {
				log.Error().Err(err).Msg("Health check failed")
				status, code = "unhealthy", http.StatusServiceUnavailable
			}
		}
		middleware.WriteJSON(w, code, map[string]string{
			"status": status,
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(
					middleware.Auth(mux),
				),
			),
		),
	)
}
