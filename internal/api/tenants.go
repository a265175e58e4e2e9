package api

import (
	"database/sql"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/clearline-ai/warden/internal/store"
)

func (d Dependencies) handleCreateTenant(w http.ResponseWriter, r *http.Request) {
	if d.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "tenant storage is not configured")
		return
	}
	var req CreateTenantReq
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "%s", err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	t, fullKey, err := d.Store.CreateTenant(r.Context(), req.Name)
	if err != nil {
		d.Logger.Error("tenant create failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "tenant create failed")
		return
	}
	writeJSON(w, http.StatusCreated, CreateTenantResp{
		ID:           t.ID,
		Name:         t.Name,
		APIKey:       fullKey,
		APIKeyPrefix: t.APIKeyPrefix,
		CreatedAt:    t.CreatedAt,
	})
}

func (d Dependencies) handleListTenants(w http.ResponseWriter, r *http.Request) {
	if d.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "tenant storage is not configured")
		return
	}
	tenants, err := d.Store.ListTenants(r.Context())
	if err != nil {
		d.Logger.Error("tenant list failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "tenant list failed")
		return
	}
	out := make([]TenantResp, 0, len(tenants))
	for _, t := range tenants {
		out = append(out, toTenantResp(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (d Dependencies) handleGetTenant(w http.ResponseWriter, r *http.Request) {
	if d.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "tenant storage is not configured")
		return
	}
	t, err := d.Store.GetTenant(r.Context(), r.PathValue("id"))
	if err != nil {
		d.Logger.Error("tenant lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "tenant lookup failed")
		return
	}
	if t == nil {
		writeError(w, http.StatusNotFound, "tenant not found")
		return
	}
	writeJSON(w, http.StatusOK, toTenantResp(t))
}

func (d Dependencies) handleDeleteTenant(w http.ResponseWriter, r *http.Request) {
	if d.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "tenant storage is not configured")
		return
	}
	err := d.Store.DeleteTenant(r.Context(), r.PathValue("id"))
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "tenant not found")
		return
	}
	if err != nil {
		d.Logger.Error("tenant delete failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "tenant delete failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (d Dependencies) handleRotateKey(w http.ResponseWriter, r *http.Request) {
	if d.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "tenant storage is not configured")
		return
	}
	_, fullKey, err := d.Store.RotateAPIKey(r.Context(), r.PathValue("id"))
	if err != nil {
		d.Logger.Error("key rotation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "key rotation failed")
		return
	}
	writeJSON(w, http.StatusOK, RotateKeyResp{
		APIKey:       fullKey,
		APIKeyPrefix: fullKey[:8],
	})
}

func toTenantResp(t *store.Tenant) TenantResp {
	return TenantResp{
		ID:           t.ID,
		Name:         t.Name,
		APIKeyPrefix: t.APIKeyPrefix,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}
