package syncengine

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lvleste/vtr-estoque/internal/domain/inventory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func serveJSON(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.URL.Query().Get("t"), "pull carries a cache-buster")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPullNotConfigured(t *testing.T) {
	g := NewGateway("", time.Second, testLogger())
	_, err := g.Pull(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)

	err = g.Push(context.Background(), Snapshot{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestPullMaterialsDeduplicatedByCode(t *testing.T) {
	srv := serveJSON(t, `{"materials":[
		{"code":"B2","name":"primeiro","stock":12},
		{"code":"B2","name":"duplicado","stock":99},
		{"code":"A1","name":"outro","stock":-3},
		{"code":"","name":"sem código","stock":1}
	]}`)

	g := NewGateway(srv.URL, time.Second, testLogger())
	snap, err := g.Pull(context.Background())
	require.NoError(t, err)

	require.Len(t, snap.Materials, 2)
	assert.Equal(t, "m-B2", snap.Materials[0].ID)
	assert.Equal(t, "primeiro", snap.Materials[0].Name, "first in payload wins")
	assert.Equal(t, 12, snap.Materials[0].Stock)
	assert.Equal(t, 0, snap.Materials[1].Stock, "negative remote stock clamps to zero")

	assert.Nil(t, snap.Requests, "absent section stays nil")
	assert.Nil(t, snap.Movements)
}

func TestPullRequestDetailsVariants(t *testing.T) {
	tests := []struct {
		name      string
		details   string
		wantItems []inventory.RequestedItem
		dropped   bool
	}{
		{
			name:      "json array",
			details:   `[{"materialId":"m-A1","quantity":3}]`,
			wantItems: []inventory.RequestedItem{{MaterialID: "m-A1", Quantity: 3}},
		},
		{
			name:      "json-encoded string",
			details:   `"[{\"materialId\":\"m-A1\",\"quantity\":3}]"`,
			wantItems: []inventory.RequestedItem{{MaterialID: "m-A1", Quantity: 3}},
		},
		{
			name:    "not json",
			details: `"not json"`,
			dropped: true,
		},
		{
			name:    "empty array",
			details: `[]`,
			dropped: true,
		},
		{
			name:    "items with junk quantities",
			details: `[{"materialId":"m-A1","quantity":0},{"materialId":"","quantity":5}]`,
			dropped: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serveJSON(t, `{"requests":[
				{"id":"PED-AAAA","vtr":"VTR-07","timestamp":"2026-08-30T12:00:00Z","status":"Pendente","details":`+tt.details+`}
			]}`)

			g := NewGateway(srv.URL, time.Second, testLogger())
			snap, err := g.Pull(context.Background())
			require.NoError(t, err, "a corrupt row never fails the whole pull")
			require.NotNil(t, snap.Requests)

			if tt.dropped {
				assert.Empty(t, snap.Requests)
				return
			}
			require.Len(t, snap.Requests, 1)
			assert.Equal(t, "PED-AAAA", snap.Requests[0].ID)
			assert.Equal(t, inventory.StatusPending, snap.Requests[0].Status)
			assert.Equal(t, tt.wantItems, snap.Requests[0].Items)
		})
	}
}

func TestPullErrors(t *testing.T) {
	t.Run("non-success status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		t.Cleanup(srv.Close)

		g := NewGateway(srv.URL, time.Second, testLogger())
		snap, err := g.Pull(context.Background())
		assert.Error(t, err)
		assert.Nil(t, snap)
	})

	t.Run("timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(300 * time.Millisecond)
		}))
		t.Cleanup(srv.Close)

		g := NewGateway(srv.URL, 30*time.Millisecond, testLogger())
		snap, err := g.Pull(context.Background())
		assert.Error(t, err)
		assert.Nil(t, snap)
	})

	t.Run("malformed body", func(t *testing.T) {
		srv := serveJSON(t, `{"materials": [`)
		g := NewGateway(srv.URL, time.Second, testLogger())
		_, err := g.Pull(context.Background())
		assert.Error(t, err)
	})
}

func TestPushPayloadShape(t *testing.T) {
	var (
		gotContentType string
		gotBody        []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
	}))
	t.Cleanup(srv.Close)

	g := NewGateway(srv.URL, time.Second, testLogger())
	err := g.Push(context.Background(), Snapshot{
		Materials: []inventory.Material{{ID: "m-A1", Code: "A1", Name: "Conector", Stock: 7}},
		Requests: []inventory.MaterialRequest{{
			ID:        "PED-AAAA",
			VTR:       "VTR-07",
			Timestamp: "2026-08-30T12:00:00Z",
			Items:     []inventory.RequestedItem{{MaterialID: "m-A1", Quantity: 3}},
			Status:    inventory.StatusPending,
		}},
		Movements: []inventory.StockMovement{{
			ID: "mov-00000001", MaterialID: "m-A1", Type: inventory.MovementOut,
			Quantity: 3, Timestamp: "2026-08-30T12:00:00Z", Reason: inventory.ReasonReservation,
		}},
	})
	require.NoError(t, err)

	// A "simple" request shape: no custom headers, plain-text body.
	assert.Contains(t, gotContentType, "text/plain")

	var payload struct {
		Action    string `json:"action"`
		Materials []struct {
			Code  string `json:"code"`
			Stock int    `json:"stock"`
		} `json:"materials"`
		Requests []struct {
			ID      string `json:"id"`
			Details string `json:"details"`
		} `json:"requests"`
		Movements []struct {
			Type string `json:"type"`
		} `json:"movements"`
	}
	require.NoError(t, json.Unmarshal(gotBody, &payload))

	assert.Equal(t, "sync", payload.Action)
	require.Len(t, payload.Materials, 1)
	assert.Equal(t, "A1", payload.Materials[0].Code)

	// The item list travels as an embedded JSON string.
	require.Len(t, payload.Requests, 1)
	var items []inventory.RequestedItem
	require.NoError(t, json.Unmarshal([]byte(payload.Requests[0].Details), &items))
	assert.Equal(t, []inventory.RequestedItem{{MaterialID: "m-A1", Quantity: 3}}, items)

	require.Len(t, payload.Movements, 1)
	assert.Equal(t, "Saída", payload.Movements[0].Type)
}

func TestPushIgnoresRemoteAnswerContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("<html>script error</html>"))
	}))
	t.Cleanup(srv.Close)

	g := NewGateway(srv.URL, time.Second, testLogger())
	// Dispatch succeeded at the network level, so this is not an error:
	// the gateway cannot distinguish written from accepted-but-dropped.
	assert.NoError(t, g.Push(context.Background(), Snapshot{}))
}
