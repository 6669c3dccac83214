package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"fieldops-backend/internal/model"
)

func TestForm(t *testing.T) {
	testCases := []struct {
		name      string
		typ       model.OperationType
		data      map[string]any
		expectErr bool
	}{
		{
			name: "valid rma",
			typ:  model.TypeRMA,
			data: map[string]any{"serial": "FHTT1234", "modelo": "HG6143D"},
		},
		{
			name: "rma with long hex serial",
			typ:  model.TypeRMA,
			data: map[string]any{"serial": "FHTT10C2A5B0", "modelo": "HG6145F"},
		},
		{
			name: "lowercase serial is accepted after normalization",
			typ:  model.TypeRMA,
			data: map[string]any{"serial": "fhtt1234", "modelo": "HG6143D"},
		},
		{
			name:      "rma missing modelo",
			typ:       model.TypeRMA,
			data:      map[string]any{"serial": "FHTT1234"},
			expectErr: true,
		},
		{
			name:      "rma malformed serial",
			typ:       model.TypeRMA,
			data:      map[string]any{"serial": "12345678", "modelo": "HG6143D"},
			expectErr: true,
		},
		{
			name: "valid installation",
			typ:  model.TypeInstallation,
			data: map[string]any{"cliente": "Maria Silva", "endereco": "Rua A, 123", "plano": "500mb"},
		},
		{
			name:      "installation with blank field",
			typ:       model.TypeInstallation,
			data:      map[string]any{"cliente": "  ", "endereco": "Rua A, 123", "plano": "500mb"},
			expectErr: true,
		},
		{
			name:      "installation with non-string field",
			typ:       model.TypeInstallation,
			data:      map[string]any{"cliente": 42, "endereco": "Rua A, 123", "plano": "500mb"},
			expectErr: true,
		},
		{
			name: "valid cto",
			typ:  model.TypeCTO,
			data: map[string]any{"cto": "CTO-12", "porta": "4"},
		},
		{
			name:      "cto missing porta",
			typ:       model.TypeCTO,
			data:      map[string]any{"cto": "CTO-12"},
			expectErr: true,
		},
		{
			name:      "unknown type",
			typ:       model.OperationType("survey"),
			data:      map[string]any{},
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := Form(tc.typ, tc.data)
			if tc.expectErr {
				assert.ErrorIs(t, err, ErrInvalidForm)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// Extra fields beyond the required set pass through untouched; the form
// schema is open by design.
func TestFormAllowsExtraFields(t *testing.T) {
	err := Form(model.TypeRMA, map[string]any{
		"serial":     "FHTT1234",
		"modelo":     "HG6143D",
		"observacao": "cliente relatou LOS",
	})
	assert.NoError(t, err)
}
