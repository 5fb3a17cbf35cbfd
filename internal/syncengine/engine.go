// Package syncengine reconciles the device-local stock state with the
// shared spreadsheet. Semantics are local-first: a local mutation is
// applied and persisted synchronously, pushed to the remote in the
// background, and stays authoritative until a later remote read
// explicitly supersedes it.
package syncengine

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lvleste/vtr-estoque/internal/domain/inventory"
	"github.com/lvleste/vtr-estoque/internal/infra/metrics"
	"github.com/lvleste/vtr-estoque/internal/store"
)

// State is the engine's position in the mutation lifecycle. Mutating and
// Persisted are only ever observed under the lock; Pushing and
// CoolingDown gate the background pull loop.
type State int

const (
	StateIdle State = iota
	StateMutating
	StatePersisted
	StatePushing
	StateCoolingDown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateMutating:
		return "mutating"
	case StatePersisted:
		return "persisted"
	case StatePushing:
		return "pushing"
	case StateCoolingDown:
		return "cooling-down"
	}
	return "unknown"
}

// MaterialStock is a Material joined with its effective availability.
type MaterialStock struct {
	inventory.Material
	Available int `json:"available"`
}

type Options struct {
	// Cooldown is how long background pulls stay suppressed after a
	// push. The sheet's read path lags its write path, so reading back
	// too early would resurrect the pre-push state.
	Cooldown time.Duration
	// PullInterval drives the periodic background refresh in Run.
	PullInterval time.Duration
	// AllowedVTRs restricts request creation to the fleet roster.
	// Empty means any vehicle code is accepted.
	AllowedVTRs []string
}

type Engine struct {
	mu        sync.Mutex
	materials []inventory.Material
	requests  []inventory.MaterialRequest
	movements []inventory.StockMovement

	st     *store.Store
	remote Remote
	clock  Clock
	log    *slog.Logger

	cooldown     time.Duration
	pullInterval time.Duration
	allowedVTRs  map[string]struct{}

	state        State
	lastSync     time.Time
	stopCooldown func()
	pushSeq      uint64
}

// New builds the engine and loads the three collections from the local
// store (seeding the catalog on first run).
func New(ctx context.Context, st *store.Store, remote Remote, clock Clock, log *slog.Logger, opts Options) *Engine {
	e := &Engine{
		st:           st,
		remote:       remote,
		clock:        clock,
		log:          log,
		cooldown:     opts.Cooldown,
		pullInterval: opts.PullInterval,
		state:        StateIdle,
	}
	if len(opts.AllowedVTRs) > 0 {
		e.allowedVTRs = make(map[string]struct{}, len(opts.AllowedVTRs))
		for _, v := range opts.AllowedVTRs {
			e.allowedVTRs[strings.ToUpper(strings.TrimSpace(v))] = struct{}{}
		}
	}
	e.materials = st.LoadMaterials(ctx)
	e.requests = st.LoadRequests(ctx)
	e.movements = st.LoadMovements(ctx)
	return e
}

// Materials returns the catalog with availability derived on the fly.
// Availability is always recomputed; it is never cached across
// mutations.
func (e *Engine) Materials() []MaterialStock {
	e.mu.Lock()
	defer e.mu.Unlock()

	reserved := inventory.Reserved(e.requests)
	out := make([]MaterialStock, 0, len(e.materials))
	for _, m := range e.materials {
		out = append(out, MaterialStock{
			Material:  m,
			Available: inventory.Available(m, reserved),
		})
	}
	return out
}

// Requests returns a copy, newest first.
func (e *Engine) Requests() []inventory.MaterialRequest {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]inventory.MaterialRequest, len(e.requests))
	copy(out, e.requests)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp > out[j].Timestamp
	})
	return out
}

// Movements returns a copy of the ledger, newest first.
func (e *Engine) Movements() []inventory.StockMovement {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]inventory.StockMovement, len(e.movements))
	copy(out, e.movements)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp > out[j].Timestamp
	})
	return out
}

// LastSync reports when a pull last merged remote data.
func (e *Engine) LastSync() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSync
}

func (e *Engine) now() string {
	return e.clock.Now().Format(time.RFC3339)
}

func (e *Engine) appendMovement(materialID string, typ inventory.MovementType, qty int, reason string) {
	e.movements = append(e.movements, inventory.StockMovement{
		ID:         inventory.NewMovementID(),
		MaterialID: materialID,
		Type:       typ,
		Quantity:   qty,
		Timestamp:  e.now(),
		Reason:     reason,
	})
}

// AdjustStock sets a material's raw stock (clamped at zero) and ledgers
// the signed delta.
func (e *Engine) AdjustStock(ctx context.Context, materialID string, newStock int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Validate before touching the lifecycle state: a rejected
	// mutation must leave everything as it was, including an open
	// cooldown window.
	idx := -1
	for i := range e.materials {
		if e.materials[i].ID == materialID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrUnknownMaterial
	}

	e.state = StateMutating
	if newStock < 0 {
		newStock = 0
	}
	delta := newStock - e.materials[idx].Stock
	e.materials[idx].Stock = newStock
	if delta > 0 {
		e.appendMovement(materialID, inventory.MovementIn, delta, inventory.ReasonManualAdjust)
	} else if delta < 0 {
		e.appendMovement(materialID, inventory.MovementOut, -delta, inventory.ReasonManualAdjust)
	}

	e.st.SaveMaterials(ctx, e.materials)
	e.st.SaveMovements(ctx, e.movements)
	e.state = StatePersisted

	e.pushLocked()
	return nil
}

// CreateRequest validates and registers a new pending request under the
// reserve-only policy: raw stock is untouched, the reservation lives in
// the pending request itself and shows up only through availability.
// Returns the generated request id.
func (e *Engine) CreateRequest(ctx context.Context, vtr string, items []inventory.RequestedItem) (string, error) {
	vtr = strings.ToUpper(strings.TrimSpace(vtr))
	if vtr == "" {
		return "", ErrEmptyVTR
	}
	if e.allowedVTRs != nil {
		if _, ok := e.allowedVTRs[vtr]; !ok {
			return "", ErrVTRNotAllowed
		}
	}
	if len(items) == 0 {
		return "", ErrNoItems
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	byID := make(map[string]inventory.Material, len(e.materials))
	for _, m := range e.materials {
		byID[m.ID] = m
	}

	// Walk the items against a working copy of availability so a
	// request listing the same material twice cannot oversubscribe it.
	avail := make(map[string]int, len(items))
	reserved := inventory.Reserved(e.requests)
	for _, it := range items {
		if it.Quantity <= 0 {
			return "", ErrInvalidQuantity
		}
		m, ok := byID[it.MaterialID]
		if !ok {
			return "", ErrUnknownMaterial
		}
		if _, seen := avail[it.MaterialID]; !seen {
			avail[it.MaterialID] = inventory.Available(m, reserved)
		}
		if it.Quantity > avail[it.MaterialID] {
			return "", ErrInsufficientStock
		}
		avail[it.MaterialID] -= it.Quantity
	}

	e.state = StateMutating
	req := inventory.MaterialRequest{
		ID:        inventory.NewRequestID(),
		VTR:       vtr,
		Timestamp: e.now(),
		Items:     items,
		Status:    inventory.StatusPending,
	}
	e.requests = append(e.requests, req)
	for _, it := range items {
		e.appendMovement(it.MaterialID, inventory.MovementOut, it.Quantity, inventory.ReasonReservation)
	}

	e.st.SaveRequests(ctx, e.requests)
	e.st.SaveMovements(ctx, e.movements)
	e.state = StatePersisted

	e.pushLocked()
	return req.ID, nil
}

// SetRequestStatus moves a request along its lifecycle. Cancelado is
// terminal: further transitions are a silent no-op. Atendido -> Cancelado
// is allowed as an explicit reversal.
func (e *Engine) SetRequestStatus(ctx context.Context, requestID string, newStatus inventory.Status) error {
	if newStatus != inventory.StatusFulfilled && newStatus != inventory.StatusCancelled {
		return ErrInvalidStatus
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	idx := -1
	for i := range e.requests {
		if e.requests[i].ID == requestID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrUnknownRequest
	}

	current := e.requests[idx].Status
	if current == inventory.StatusCancelled || current == newStatus {
		return nil
	}

	e.state = StateMutating
	switch newStatus {
	case inventory.StatusFulfilled:
		// Reserve-only policy: stock was never decremented, so
		// fulfilment is a confirmation marker in the ledger only.
		e.appendMovement("", inventory.MovementOut, 0, inventory.ReasonFulfilConfirm)
	case inventory.StatusCancelled:
		// Release the reservation. Raw stock was never decremented
		// under this policy, so the reversal is ledger-only and
		// availability returns to its pre-request value by itself.
		for _, it := range e.requests[idx].Items {
			e.appendMovement(it.MaterialID, inventory.MovementIn, it.Quantity, inventory.ReasonCancelReversal)
		}
	}
	e.requests[idx].Status = newStatus

	e.st.SaveRequests(ctx, e.requests)
	e.st.SaveMovements(ctx, e.movements)
	e.state = StatePersisted

	e.pushLocked()
	return nil
}

// pushLocked dispatches the full snapshot in the background. Callers
// must hold the lock. Suppression covers the whole in-flight window:
// Pushing while the POST runs, then CoolingDown while the sheet's read
// path catches up with its write path. The cooldown timer starts when
// the push completes (success or transport failure alike) — a push
// slower than the cooldown must not reopen the window while the POST
// is still in flight. Completion always arrives: the gateway's HTTP
// client carries a hard timeout.
func (e *Engine) pushLocked() {
	snap := Snapshot{
		Materials: append([]inventory.Material(nil), e.materials...),
		Requests:  append([]inventory.MaterialRequest(nil), e.requests...),
		Movements: append([]inventory.StockMovement(nil), e.movements...),
	}

	e.state = StatePushing
	e.pushSeq++
	seq := e.pushSeq
	if e.stopCooldown != nil {
		e.stopCooldown()
		e.stopCooldown = nil
	}

	go func() {
		metrics.PushesTotal.Inc()
		err := e.remote.Push(context.Background(), snap)

		e.mu.Lock()
		defer e.mu.Unlock()

		switch {
		case err == nil:
		case errors.Is(err, ErrNotConfigured):
			// Nothing was dispatched anywhere, so there is no remote
			// lag to wait out.
			e.log.Debug("push skipped: remote not configured")
			if seq == e.pushSeq && e.state == StatePushing {
				e.state = StateIdle
			}
			return
		default:
			metrics.PushFailuresTotal.Inc()
			e.log.Error("push failed, local state stays authoritative", "err", err)
		}

		if seq != e.pushSeq || e.state != StatePushing {
			// A newer mutation re-entered Pushing; its completion owns
			// the cooldown.
			return
		}
		e.state = StateCoolingDown
		e.stopCooldown = e.clock.AfterFunc(e.cooldown, func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			if e.state == StateCoolingDown {
				e.state = StateIdle
			}
		})
	}()
}

// Run drives the periodic background refresh until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	ticks, stop := e.clock.NewTicker(e.pullInterval)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			e.mu.Lock()
			if e.stopCooldown != nil {
				e.stopCooldown()
			}
			e.mu.Unlock()
			return
		case <-ticks:
			e.PullIfIdle(ctx)
		}
	}
}

// PullIfIdle runs one background refresh unless a push is in flight or
// cooling down. Suppressed pulls are dropped, not queued; the next tick
// simply tries again.
func (e *Engine) PullIfIdle(ctx context.Context) {
	e.mu.Lock()
	if e.state != StateIdle {
		e.mu.Unlock()
		metrics.PullsSuppressedTotal.Inc()
		e.log.Debug("background pull suppressed", "state", e.state.String())
		return
	}
	e.mu.Unlock()

	_ = e.pull(ctx)
}

// Refresh is the user-initiated pull. It always executes, regardless of
// any in-flight sync, trading a small clobber risk for responsiveness.
func (e *Engine) Refresh(ctx context.Context) (time.Time, error) {
	if err := e.pull(ctx); err != nil {
		return e.LastSync(), err
	}
	return e.LastSync(), nil
}

func (e *Engine) pull(ctx context.Context) error {
	snap, err := e.remote.Pull(ctx)
	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			metrics.PullsTotal.WithLabelValues("not_configured").Inc()
			return err
		}
		metrics.PullsTotal.WithLabelValues("error").Inc()
		e.log.Warn("pull skipped", "err", err)
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Field-by-field merge: only sections the remote actually returned
	// supersede local state, and they supersede key-wise. Remote rows
	// win on their key; local-only rows survive, a material is never
	// deleted once created. A materials-only answer never touches the
	// local request or movement collections.
	if snap.Materials != nil {
		e.materials = inventory.DedupeMaterials(
			append(append([]inventory.Material(nil), snap.Materials...), e.materials...))
		e.st.SaveMaterials(ctx, e.materials)
	}
	if snap.Requests != nil {
		e.requests = inventory.DedupeRequests(
			append(append([]inventory.MaterialRequest(nil), snap.Requests...), e.requests...))
		e.st.SaveRequests(ctx, e.requests)
	}
	if snap.Movements != nil {
		e.movements = inventory.DedupeMovements(
			append(append([]inventory.StockMovement(nil), snap.Movements...), e.movements...))
		e.st.SaveMovements(ctx, e.movements)
	}
	e.lastSync = e.clock.Now()
	metrics.PullsTotal.WithLabelValues("ok").Inc()
	e.log.Info("remote snapshot merged",
		"materials", len(snap.Materials),
		"requests", len(snap.Requests),
		"movements", len(snap.Movements),
	)
	return nil
}
