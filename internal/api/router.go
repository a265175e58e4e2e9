package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/clearline-ai/warden/internal/auth"
	"github.com/clearline-ai/warden/internal/chread"
	"github.com/clearline-ai/warden/internal/storage"
	"github.com/clearline-ai/warden/internal/store"
	"github.com/clearline-ai/warden/internal/validator"
)

// Dependencies carries everything the HTTP handlers need. Store and
// Reader are optional; routes that need them return 503 when absent.
type Dependencies struct {
	Validator *validator.SafetyValidator
	Auth      auth.Authenticator
	Store     *store.Store
	Writer    storage.EventWriter
	Reader    *chread.Reader
	Logger    *zap.Logger
}

// NewRouter builds the full HTTP handler tree.
func NewRouter(deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	protected := http.NewServeMux()
	protected.HandleFunc("POST /v1/validate", deps.handleValidate)
	protected.HandleFunc("POST /v1/validate/batch", deps.handleValidateBatch)
	protected.HandleFunc("GET /api/warden/users/{user_id}/stats", deps.handleUserStats)
	protected.HandleFunc("GET /api/warden/events", deps.handleListEvents)
	protected.HandleFunc("GET /api/warden/analytics", deps.handleAnalytics)
	protected.HandleFunc("POST /api/warden/tenants", deps.handleCreateTenant)
	protected.HandleFunc("GET /api/warden/tenants", deps.handleListTenants)
	protected.HandleFunc("GET /api/warden/tenants/{id}", deps.handleGetTenant)
	protected.HandleFunc("DELETE /api/warden/tenants/{id}", deps.handleDeleteTenant)
	protected.HandleFunc("POST /api/warden/tenants/{id}/rotate-key", deps.handleRotateKey)

	mux.Handle("/", authMiddleware(protected, deps.Auth, deps.Logger))

	return corsMiddleware(requestLogging(mux, deps.Logger))
}
