package syncengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lvleste/vtr-estoque/internal/domain/inventory"
)

// Snapshot carries whatever sections the remote returned. A nil slice
// means the section was absent from the payload and must not overwrite
// local state; an empty non-nil slice is a real (empty) section.
type Snapshot struct {
	Materials []inventory.Material
	Requests  []inventory.MaterialRequest
	Movements []inventory.StockMovement
}

// Remote is the sync transport seen by the engine.
type Remote interface {
	Pull(ctx context.Context) (*Snapshot, error)
	Push(ctx context.Context, snap Snapshot) error
}

// Gateway talks to the spreadsheet web endpoint. The endpoint is slow,
// eventually consistent and cannot answer CORS preflights, so the
// request shapes here are deliberately plain: GET with a cache-buster,
// POST with a text/plain JSON body.
type Gateway struct {
	url    string
	client *http.Client
	log    *slog.Logger
}

func NewGateway(url string, timeout time.Duration, log *slog.Logger) *Gateway {
	return &Gateway{
		url:    strings.TrimRight(url, "/"),
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

type wireMaterial struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Stock int    `json:"stock"`
}

type wireRequest struct {
	ID        string          `json:"id"`
	VTR       string          `json:"vtr"`
	Timestamp string          `json:"timestamp"`
	Status    string          `json:"status"`
	Details   json.RawMessage `json:"details"`
}

type wireMovement struct {
	ID         string `json:"id"`
	MaterialID string `json:"materialId"`
	Type       string `json:"type"`
	Quantity   int    `json:"quantity"`
	Timestamp  string `json:"timestamp"`
	Reason     string `json:"reason"`
}

type wirePayload struct {
	Action    string         `json:"action,omitempty"`
	Materials []wireMaterial `json:"materials,omitempty"`
	Requests  []wireRequest  `json:"requests,omitempty"`
	Movements []wireMovement `json:"movements,omitempty"`
}

// decodeItems accepts the item list either as a JSON array or as a
// JSON-encoded string needing a second parse (the sheet stores it as a
// cell of text). Anything unparseable degrades to no items.
func decodeItems(raw json.RawMessage) []inventory.RequestedItem {
	if len(raw) == 0 {
		return nil
	}
	var items []inventory.RequestedItem
	if err := json.Unmarshal(raw, &items); err == nil {
		return sanitizeItems(items)
	}
	var embedded string
	if err := json.Unmarshal(raw, &embedded); err != nil {
		return nil
	}
	if err := json.Unmarshal([]byte(embedded), &items); err != nil {
		return nil
	}
	return sanitizeItems(items)
}

func sanitizeItems(items []inventory.RequestedItem) []inventory.RequestedItem {
	out := items[:0]
	for _, it := range items {
		if it.MaterialID == "" || it.Quantity <= 0 {
			continue
		}
		out = append(out, it)
	}
	return out
}

// Pull reads the remote sheet. Timeouts and non-success statuses come
// back as errors; the caller treats them as a skipped refresh, never as
// something fatal.
func (g *Gateway) Pull(ctx context.Context) (*Snapshot, error) {
	if g.url == "" {
		return nil, ErrNotConfigured
	}

	// Cache-buster query param instead of headers: the Apps Script
	// endpoint rejects anything that needs a preflight.
	url := g.url + "?t=" + strconv.FormatInt(time.Now().UnixNano(), 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("remote answered %s", resp.Status)
	}

	var payload wirePayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode remote payload: %w", err)
	}

	snap := &Snapshot{}

	if payload.Materials != nil {
		ms := make([]inventory.Material, 0, len(payload.Materials))
		for _, wm := range payload.Materials {
			code := strings.TrimSpace(wm.Code)
			if code == "" {
				continue
			}
			ms = append(ms, inventory.Material{
				ID:    inventory.MaterialID(code),
				Code:  code,
				Name:  strings.TrimSpace(wm.Name),
				Stock: max(0, wm.Stock),
			})
		}
		snap.Materials = inventory.DedupeMaterials(ms)
	}

	if payload.Requests != nil {
		rs := make([]inventory.MaterialRequest, 0, len(payload.Requests))
		for _, wr := range payload.Requests {
			if wr.ID == "" {
				continue
			}
			items := decodeItems(wr.Details)
			// A request whose items did not survive parsing is a
			// corrupt row, not an order.
			if len(items) == 0 {
				g.log.Warn("dropping remote request without items", "id", wr.ID)
				continue
			}
			rs = append(rs, inventory.MaterialRequest{
				ID:        wr.ID,
				VTR:       wr.VTR,
				Timestamp: wr.Timestamp,
				Items:     items,
				Status:    inventory.Status(wr.Status),
			})
		}
		snap.Requests = inventory.DedupeRequests(rs)
	}

	if payload.Movements != nil {
		ms := make([]inventory.StockMovement, 0, len(payload.Movements))
		for _, wm := range payload.Movements {
			if wm.ID == "" {
				continue
			}
			ms = append(ms, inventory.StockMovement{
				ID:         wm.ID,
				MaterialID: wm.MaterialID,
				Type:       inventory.MovementType(wm.Type),
				Quantity:   wm.Quantity,
				Timestamp:  wm.Timestamp,
				Reason:     wm.Reason,
			})
		}
		snap.Movements = inventory.DedupeMovements(ms)
	}

	return snap, nil
}

// Push sends the full snapshot as one write. The endpoint's answer is
// not parsed: dispatching without a network-level error is all the
// success this transport can promise, the sheet may still drop the row.
func (g *Gateway) Push(ctx context.Context, snap Snapshot) error {
	if g.url == "" {
		return ErrNotConfigured
	}

	payload := wirePayload{Action: "sync"}

	payload.Materials = make([]wireMaterial, 0, len(snap.Materials))
	for _, m := range snap.Materials {
		payload.Materials = append(payload.Materials, wireMaterial{
			Code:  m.Code,
			Name:  m.Name,
			Stock: m.Stock,
		})
	}

	payload.Requests = make([]wireRequest, 0, len(snap.Requests))
	for _, r := range snap.Requests {
		details, err := json.Marshal(r.Items)
		if err != nil {
			g.log.Error("marshal request items", "id", r.ID, "err", err)
			continue
		}
		// Items travel as an embedded JSON string: one sheet cell.
		detailsCell, _ := json.Marshal(string(details))
		payload.Requests = append(payload.Requests, wireRequest{
			ID:        r.ID,
			VTR:       r.VTR,
			Timestamp: r.Timestamp,
			Status:    string(r.Status),
			Details:   detailsCell,
		})
	}

	payload.Movements = make([]wireMovement, 0, len(snap.Movements))
	for _, m := range snap.Movements {
		payload.Movements = append(payload.Movements, wireMovement{
			ID:         m.ID,
			MaterialID: m.MaterialID,
			Type:       string(m.Type),
			Quantity:   m.Quantity,
			Timestamp:  m.Timestamp,
			Reason:     m.Reason,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	// text/plain keeps the request "simple" so the script endpoint
	// never sees a preflight it cannot answer.
	req.Header.Set("Content-Type", "text/plain;charset=utf-8")

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
