package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/toko-order-engine.git/internal/policy"
)

// PolicyStore = operasi admin policy timeout; diimplementasikan policy.Store.
type PolicyStore interface {
	CurrentTimeoutHours(ctx context.Context) (float64, error)
	SetGlobalTimeout(ctx context.Context, hours float64) error
}

// AdminHandler: gate role owner ada di depan (reverse proxy / auth layer),
// engine tinggal mengeksekusi.
type AdminHandler struct {
	Policy PolicyStore
}

func (h *AdminHandler) Register(r *chi.Mux) {
	r.Get("/admin/cancellation-timeout", h.getTimeout)
	r.Put("/admin/cancellation-timeout", h.setTimeout)
}

type TimeoutResp struct {
	TimeoutHours float64 `json:"timeout_hours"`
}

func (h *AdminHandler) getTimeout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	hours, err := h.Policy.CurrentTimeoutHours(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, TimeoutResp{TimeoutHours: hours})
}

func (h *AdminHandler) setTimeout(w http.ResponseWriter, r *http.Request) {
	var req TimeoutResp
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Policy.SetGlobalTimeout(ctx, req.TimeoutHours); err != nil {
		if errors.Is(err, policy.ErrInvalidTimeout) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, TimeoutResp{TimeoutHours: policy.RoundHours(req.TimeoutHours)})
}
