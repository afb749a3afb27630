package http

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/nordcup/ridevault/internal/loader"
)

// DashboardHandler serves the decrypted statistics of the published file.
type DashboardHandler struct {
	// Sessions holds per-browser session state.
	Sessions SessionRegistry
	// DataURL locates the published file.
	DataURL string
	// Client fetches DataURL.
	Client *http.Client
	Log    *zap.Logger
}

// Dashboard handles GET /api/dashboard.
//
//	401 not authenticated, or the session lost its key
//	401 the key did not open the file; the session is cleared
//	502 the file could not be fetched or is not usable
func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := h.Log
	if log == nil {
		log = zap.NewNop()
	}

	store := storeFor(ctx, h.Sessions, log)
	if !store.IsAuthenticated(ctx) {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	payload, err := loader.New(h.Client, store, loader.WithLogger(log)).Load(ctx, h.DataURL)
	var netErr *loader.NetworkError
	switch {
	case err == nil:
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(payload)
	case errors.Is(err, loader.ErrMissingKey):
		writeError(w, http.StatusUnauthorized, "session expired")
	case errors.Is(err, loader.ErrDecryptionFailed):
		if err := store.Clear(ctx); err != nil {
			log.Warn("failed to clear session", zap.Error(err))
		}
		writeError(w, http.StatusUnauthorized, "session expired")
	case errors.As(err, &netErr), errors.Is(err, loader.ErrMalformedResponse):
		log.Error("dashboard data unavailable", zap.Error(err))
		writeError(w, http.StatusBadGateway, "data unavailable")
	default:
		log.Error("dashboard failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
