package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/lvleste/vtr-estoque/internal/domain/inventory"
	"github.com/lvleste/vtr-estoque/internal/infra/db"
	"github.com/lvleste/vtr-estoque/internal/store"
	"github.com/lvleste/vtr-estoque/internal/syncengine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminToken = "segredo"

type nopRemote struct{}

func (nopRemote) Pull(ctx context.Context) (*syncengine.Snapshot, error) {
	return nil, syncengine.ErrNotConfigured
}

func (nopRemote) Push(ctx context.Context, snap syncengine.Snapshot) error {
	return syncengine.ErrNotConfigured
}

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()
	sqlDB, err := db.Connect(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.Migrate(sqlDB))

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.New(sqlDB, log)
	st.SaveMaterials(context.Background(), []inventory.Material{
		{ID: "m-A1", Code: "A1", Name: "Conector cunha", Stock: 10},
	})

	engine := syncengine.New(context.Background(), st, nopRemote{}, syncengine.RealClock(), log, syncengine.Options{
		Cooldown:     time.Second,
		PullInterval: time.Minute,
	})

	mux := http.NewServeMux()
	New(log, engine, adminToken).Register(mux)
	return mux
}

func do(t *testing.T, mux *http.ServeMux, method, path string, body any, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if admin {
		req.Header.Set("X-Admin-Token", adminToken)
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestListMaterials(t *testing.T) {
	mux := newTestMux(t)

	w := do(t, mux, http.MethodGet, "/api/materials", nil, false)
	require.Equal(t, http.StatusOK, w.Code)

	var mats []syncengine.MaterialStock
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &mats))
	require.Len(t, mats, 1)
	assert.Equal(t, "A1", mats[0].Code)
	assert.Equal(t, 10, mats[0].Available)
}

func TestRequestLifecycleOverHTTP(t *testing.T) {
	mux := newTestMux(t)

	w := do(t, mux, http.MethodPost, "/api/requests", map[string]any{
		"vtr":   "VTR-07",
		"items": []map[string]any{{"materialId": "m-A1", "quantity": 3}},
	}, false)
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	// Availability reflects the pending reservation.
	w = do(t, mux, http.MethodGet, "/api/materials", nil, false)
	var mats []syncengine.MaterialStock
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &mats))
	assert.Equal(t, 7, mats[0].Available)
	assert.Equal(t, 10, mats[0].Stock)

	// Status change is admin-only.
	w = do(t, mux, http.MethodPost, "/api/requests/"+created.ID+"/status",
		map[string]string{"status": "Cancelado"}, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, mux, http.MethodPost, "/api/requests/"+created.ID+"/status",
		map[string]string{"status": "Cancelado"}, true)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, mux, http.MethodGet, "/api/materials", nil, false)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &mats))
	assert.Equal(t, 10, mats[0].Available, "cancellation releases the reservation")
}

func TestCreateRequestErrorsMapToStatuses(t *testing.T) {
	mux := newTestMux(t)

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{"empty vtr", map[string]any{
			"vtr":   "",
			"items": []map[string]any{{"materialId": "m-A1", "quantity": 1}},
		}, http.StatusBadRequest},
		{"no items", map[string]any{"vtr": "VTR-07"}, http.StatusBadRequest},
		{"unknown material", map[string]any{
			"vtr":   "VTR-07",
			"items": []map[string]any{{"materialId": "m-ZZ", "quantity": 1}},
		}, http.StatusNotFound},
		{"insufficient stock", map[string]any{
			"vtr":   "VTR-07",
			"items": []map[string]any{{"materialId": "m-A1", "quantity": 999}},
		}, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, mux, http.MethodPost, "/api/requests", tt.body, false)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestAdjustStock(t *testing.T) {
	mux := newTestMux(t)

	w := do(t, mux, http.MethodPost, "/api/materials/m-A1/stock",
		map[string]int{"stock": 4}, true)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, mux, http.MethodGet, "/api/movements", nil, false)
	require.Equal(t, http.StatusOK, w.Code)

	var movs []inventory.StockMovement
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &movs))
	require.Len(t, movs, 1)
	assert.Equal(t, inventory.MovementOut, movs[0].Type)
	assert.Equal(t, 6, movs[0].Quantity)

	w = do(t, mux, http.MethodPost, "/api/materials/m-A1/stock",
		map[string]int{"stock": 4}, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRefreshWithoutRemote(t *testing.T) {
	mux := newTestMux(t)
	w := do(t, mux, http.MethodPost, "/api/sync/refresh", nil, false)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestExport(t *testing.T) {
	mux := newTestMux(t)

	w := do(t, mux, http.MethodGet, "/api/export", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "spreadsheetml")
	assert.NotZero(t, w.Body.Len())

	w = do(t, mux, http.MethodGet, "/api/export", nil, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
