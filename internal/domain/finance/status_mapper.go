// Package finance traduce el estado externo del ERP / pasarela de pagos a FinanceStatus.
package finance

import (
	"strings"

	"github.com/jhoicas/invoicing-core/internal/domain/entity"
)

// Estados externos reconocidos.
const (
	ExternalPending = "PENDING"
	ExternalNone    = "NONE"
	ExternalSuccess = "SUCCESS"
	ExternalPaid    = "PAID"
	ExternalError   = "ERROR"
	ExternalFailure = "FAILURE"
)

// MapExternalStatus traduce (estado externo, referencia de comprobante) a FinanceStatus.
// known es false cuando el estado no es reconocido; en ese caso se devuelve NONE.
func MapExternalStatus(external *string, voucherRef *string) (status entity.FinanceStatus, known bool) {
	if external == nil {
		return entity.FinanceStatusNone, true
	}
	switch strings.ToUpper(strings.TrimSpace(*external)) {
	case ExternalPending, ExternalNone:
		return entity.FinanceStatusNone, true
	case ExternalSuccess:
		if voucherRef != nil && strings.TrimSpace(*voucherRef) != "" {
			return entity.FinanceStatusBooked, true
		}
		return entity.FinanceStatusUploaded, true
	case ExternalPaid:
		return entity.FinanceStatusPaid, true
	case ExternalError, ExternalFailure:
		return entity.FinanceStatusError, true
	default:
		return entity.FinanceStatusNone, false
	}
}
