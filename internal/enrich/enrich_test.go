package enrich

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cesuma/contratos-api/internal/catalog"
	"github.com/cesuma/contratos-api/internal/contract"
)

func fixedClock() time.Time {
	return time.Date(2026, time.March, 7, 15, 4, 5, 0, time.UTC)
}

func newEnricher(t *testing.T) *Enricher {
	t.Helper()
	cat, err := catalog.LoadDefault()
	require.NoError(t, err)
	return New(cat, WithClock(fixedClock))
}

func TestEnrich_ComputedDates(t *testing.T) {
	e := newEnricher(t)

	out := e.Enrich(map[string]string{
		"nombre_apellidos": "Ana Ruiz",
		"fecha_contrato":   "01/01/1999",
		"fecha_inicio":     "01/01/1999",
	}, contract.TypeDoctorado)

	assert.Equal(t, "07/03/2026", out[catalog.KeyContractDate])
	assert.Equal(t, "06/10/2025", out[catalog.KeyProgramStart])
	assert.Equal(t, "Ana Ruiz", out["nombre_apellidos"])
}

func TestEnrich_PricingTierAlwaysWins(t *testing.T) {
	e := newEnricher(t)

	out := e.Enrich(map[string]string{
		catalog.KeyTotal:             "1.00",
		catalog.KeyDownPayment:       "0.00",
		catalog.KeyInstallments:      "1",
		catalog.KeyInstallmentAmount: "1.00",
		catalog.KeyPaymentModality:   "gratis",
	}, contract.TypeDoctorado)

	assert.Equal(t, "6000.00", out[catalog.KeyTotal])
	assert.Equal(t, "600.00", out[catalog.KeyDownPayment])
	assert.Equal(t, "24", out[catalog.KeyInstallments])
	assert.Equal(t, "225.00", out[catalog.KeyInstallmentAmount])
	assert.Equal(t, "Mensual domiciliado", out[catalog.KeyPaymentModality])
}

func TestEnrich_NoPricingTierLeavesCallerValues(t *testing.T) {
	e := newEnricher(t)

	out := e.Enrich(map[string]string{catalog.KeyTotal: "999"}, contract.TypeLicenciatura)
	assert.Equal(t, "999", out[catalog.KeyTotal])
	_, hasInstallments := out[catalog.KeyInstallments]
	assert.False(t, hasInstallments, "types without a tier get no financial fields")
}

func TestEnrich_Policies(t *testing.T) {
	e := newEnricher(t)

	tests := []struct {
		name         string
		in           map[string]string
		wantPais     string
		wantLandline string
	}{
		{
			name:         "fixed country overrides caller",
			in:           map[string]string{"pais": "España"},
			wantPais:     "México",
			wantLandline: "",
		},
		{
			name:         "mobile mirrored into absent landline",
			in:           map[string]string{"telefono_movil": "5512345678"},
			wantPais:     "México",
			wantLandline: "5512345678",
		},
		{
			name:         "mobile mirrored into blank landline",
			in:           map[string]string{"telefono_movil": "5512345678", "telefono_fijo": "  "},
			wantPais:     "México",
			wantLandline: "5512345678",
		},
		{
			name:         "landline kept when provided",
			in:           map[string]string{"telefono_movil": "5512345678", "telefono_fijo": "5587654321"},
			wantPais:     "México",
			wantLandline: "5587654321",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := e.Enrich(tt.in, contract.TypeMaestria)
			assert.Equal(t, tt.wantPais, out["pais"])
			assert.Equal(t, tt.wantLandline, out["telefono_fijo"])
		})
	}
}

func TestEnrich_BackfillsRequiredKeys(t *testing.T) {
	e := newEnricher(t)
	cat, _ := catalog.LoadDefault()

	out := e.Enrich(map[string]string{}, contract.TypeDoctorado)
	for _, k := range cat.RequiredKeys(contract.TypeDoctorado) {
		_, ok := out[k]
		assert.True(t, ok, "missing key %s", k)
	}
	assert.Equal(t, "", out["email"])
}

func TestEnrich_DoesNotMutateInput(t *testing.T) {
	e := newEnricher(t)
	in := map[string]string{"pais": "España"}

	_ = e.Enrich(in, contract.TypeDoctorado)
	assert.Equal(t, map[string]string{"pais": "España"}, in)
}
