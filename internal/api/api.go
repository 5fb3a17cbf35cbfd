package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/lvleste/vtr-estoque/internal/domain/inventory"
	"github.com/lvleste/vtr-estoque/internal/syncengine"
)

// Handler is the JSON surface the field UI talks to. Mutations that only
// the warehouse admin may perform sit behind a static shared token.
type Handler struct {
	log        *slog.Logger
	engine     *syncengine.Engine
	adminToken string
}

func New(log *slog.Logger, engine *syncengine.Engine, adminToken string) *Handler {
	return &Handler{log: log, engine: engine, adminToken: adminToken}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/materials", h.listMaterials)
	mux.HandleFunc("POST /api/materials/{id}/stock", h.admin(h.adjustStock))
	mux.HandleFunc("GET /api/requests", h.listRequests)
	mux.HandleFunc("POST /api/requests", h.createRequest)
	mux.HandleFunc("POST /api/requests/{id}/status", h.admin(h.setRequestStatus))
	mux.HandleFunc("GET /api/movements", h.listMovements)
	mux.HandleFunc("POST /api/sync/refresh", h.refresh)
	mux.HandleFunc("GET /api/export", h.admin(h.export))
}

func (h *Handler) admin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.adminToken == "" || r.Header.Get("X-Admin-Token") != h.adminToken {
			writeError(w, http.StatusUnauthorized, "token de administrador inválido")
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// mapError turns engine validation errors into HTTP statuses. Transport
// errors never reach here; the engine swallows them.
func mapError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, syncengine.ErrUnknownMaterial),
		errors.Is(err, syncengine.ErrUnknownRequest):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, syncengine.ErrInsufficientStock):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, syncengine.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

func (h *Handler) listMaterials(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Materials())
}

func (h *Handler) listRequests(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Requests())
}

func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Movements())
}

type adjustStockBody struct {
	Stock int `json:"stock"`
}

func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request) {
	var body adjustStockBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "corpo inválido")
		return
	}
	if err := h.engine.AdjustStock(r.Context(), r.PathValue("id"), body.Stock); err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createRequestBody struct {
	VTR   string                    `json:"vtr"`
	Items []inventory.RequestedItem `json:"items"`
}

func (h *Handler) createRequest(w http.ResponseWriter, r *http.Request) {
	var body createRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "corpo inválido")
		return
	}
	id, err := h.engine.CreateRequest(r.Context(), body.VTR, body.Items)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

type setStatusBody struct {
	Status inventory.Status `json:"status"`
}

func (h *Handler) setRequestStatus(w http.ResponseWriter, r *http.Request) {
	var body setStatusBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "corpo inválido")
		return
	}
	if err := h.engine.SetRequestStatus(r.Context(), r.PathValue("id"), body.Status); err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	last, err := h.engine.Refresh(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"lastSync": last.Format(time.RFC3339),
	})
}
