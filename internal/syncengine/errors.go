package syncengine

import "errors"

// Validation errors are returned synchronously to the caller before any
// state is touched. Transport problems are never surfaced this way;
// they are logged and the local state stays authoritative.
var (
	ErrEmptyVTR          = errors.New("vtr é obrigatória")
	ErrVTRNotAllowed     = errors.New("vtr fora da frota cadastrada")
	ErrNoItems           = errors.New("pedido sem itens")
	ErrInvalidQuantity   = errors.New("quantidade deve ser positiva")
	ErrUnknownMaterial   = errors.New("material desconhecido")
	ErrInsufficientStock = errors.New("saldo disponível insuficiente")
	ErrUnknownRequest    = errors.New("pedido desconhecido")
	ErrInvalidStatus     = errors.New("transição de status inválida")

	// ErrNotConfigured means no remote URL is set; the system keeps
	// working against the local store alone.
	ErrNotConfigured = errors.New("planilha remota não configurada")
)
