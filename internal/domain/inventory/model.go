package inventory

import (
	"math/rand/v2"
	"strings"
)

// Status values match what the shared spreadsheet already contains,
// so pushed and pulled rows stay readable on both sides.
type Status string

const (
	StatusPending   Status = "Pendente"
	StatusFulfilled Status = "Atendido"
	StatusCancelled Status = "Cancelado"
)

type MovementType string

const (
	MovementIn  MovementType = "Entrada"
	MovementOut MovementType = "Saída"
)

// Ledger reasons, also spreadsheet-facing.
const (
	ReasonManualAdjust   = "ajuste manual"
	ReasonReservation    = "reserva de pedido"
	ReasonCancelReversal = "estorno de cancelamento"
	ReasonFulfilConfirm  = "confirmação de atendimento"
)

// Material is a consumable catalog entry. Stock is the raw on-hand
// quantity, not reduced by pending reservations.
type Material struct {
	ID    string `json:"id"`
	Code  string `json:"code"`
	Name  string `json:"name"`
	Stock int    `json:"stock"`
}

type RequestedItem struct {
	MaterialID string `json:"materialId"`
	Quantity   int    `json:"quantity"`
}

// MaterialRequest is an order placed by a vehicle crew. The item list is
// immutable after creation; only Status changes.
type MaterialRequest struct {
	ID        string          `json:"id"`
	VTR       string          `json:"vtr"`
	Timestamp string          `json:"timestamp"`
	Items     []RequestedItem `json:"items"`
	Status    Status          `json:"status"`
}

// StockMovement is one append-only ledger row per stock-affecting event.
type StockMovement struct {
	ID         string       `json:"id"`
	MaterialID string       `json:"materialId"`
	Type       MovementType `json:"type"`
	Quantity   int          `json:"quantity"`
	Timestamp  string       `json:"timestamp"`
	Reason     string       `json:"reason"`
}

// MaterialID derives the stable identity from the catalog code. Two rows
// with the same code are the same material everywhere in the system.
func MaterialID(code string) string {
	return "m-" + strings.TrimSpace(code)
}

const idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomTag(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = idAlphabet[rand.IntN(len(idAlphabet))]
	}
	return string(b)
}

// NewRequestID keeps the PED-XXXX shape the crews already know from the
// spreadsheet.
func NewRequestID() string {
	return "PED-" + randomTag(4)
}

func NewMovementID() string {
	return "mov-" + randomTag(8)
}
