package domain

import (
	"errors"
	"fmt"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound            = errors.New("recurso no encontrado")
	ErrInvalidInput        = errors.New("entrada inválida")
	ErrInvalidState        = errors.New("estado de factura inválido para la operación")
	ErrInvalidTransition   = errors.New("transición de estado no permitida")
	ErrSequenceUnavailable = errors.New("no se pudo obtener el consecutivo de factura")
	ErrSourceNotPaid       = errors.New("la factura origen no está pagada")
	ErrUnauthorized        = errors.New("no autorizado")
	ErrForbidden           = errors.New("acceso denegado")
	ErrConflict            = errors.New("conflicto con el estado actual")
)

// InvalidTransitionError describe una transición de ciclo de vida rechazada.
// errors.Is(err, ErrInvalidTransition) es true para cualquier instancia.
type InvalidTransitionError struct {
	InvoiceID string
	From      string
	To        string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s: factura %s de %s a %s", ErrInvalidTransition.Error(), e.InvoiceID, e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// NewInvalidStateError construye el error de precondición con estado actual y esperado.
func NewInvalidStateError(invoiceID, actual, expected string) error {
	return fmt.Errorf("%w: factura %s está en %s, se esperaba %s", ErrInvalidState, invoiceID, actual, expected)
}
