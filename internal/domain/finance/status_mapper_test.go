package finance_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/invoicing-core/internal/domain/entity"
	"github.com/jhoicas/invoicing-core/internal/domain/finance"
)

func ptr(s string) *string { return &s }

func TestMapExternalStatus(t *testing.T) {
	tests := []struct {
		name      string
		external  *string
		voucher   *string
		want      entity.FinanceStatus
		wantKnown bool
	}{
		{"nulo", nil, nil, entity.FinanceStatusNone, true},
		{"pending", ptr("PENDING"), nil, entity.FinanceStatusNone, true},
		{"none", ptr("NONE"), nil, entity.FinanceStatusNone, true},
		{"success sin comprobante", ptr("SUCCESS"), nil, entity.FinanceStatusUploaded, true},
		{"success con comprobante en blanco", ptr("SUCCESS"), ptr("   "), entity.FinanceStatusUploaded, true},
		{"success con comprobante", ptr("SUCCESS"), ptr("V-42"), entity.FinanceStatusBooked, true},
		{"paid", ptr("PAID"), nil, entity.FinanceStatusPaid, true},
		{"paid con comprobante", ptr("PAID"), ptr("V-42"), entity.FinanceStatusPaid, true},
		{"error", ptr("ERROR"), nil, entity.FinanceStatusError, true},
		{"failure", ptr("FAILURE"), nil, entity.FinanceStatusError, true},
		{"desconocido", ptr("REFUNDED"), nil, entity.FinanceStatusNone, false},
		{"vacío", ptr(""), nil, entity.FinanceStatusNone, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, known := finance.MapExternalStatus(tc.external, tc.voucher)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.wantKnown, known)
		})
	}
}
