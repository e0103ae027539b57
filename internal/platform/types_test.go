package platform

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDOf(t *testing.T) {
	tests := []struct {
		name   string
		row    Row
		want   string
		wantOK bool
	}{
		{"string", Row{"id": "42"}, "42", true},
		{"json number", Row{"id": json.Number("1001")}, "1001", true},
		{"int", Row{"id": 7}, "7", true},
		{"int64", Row{"id": int64(9007199254740993)}, "9007199254740993", true},
		{"integral float", Row{"id": float64(12)}, "12", true},
		{"fractional float", Row{"id": 1.5}, "1.5", true},
		{"whitespace trimmed", Row{"id": "  5 "}, "5", true},
		{"missing column", Row{"name": "x"}, "", false},
		{"nil value", Row{"id": nil}, "", false},
		{"blank string", Row{"id": "   "}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := IDOf(tt.row)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeID_NFC(t *testing.T) {
	// "e" + combining acute accent composes to U+00E9
	assert.Equal(t, "caf\u00e9", NormalizeID("cafe\u0301"))
}

func TestNormalizeType(t *testing.T) {
	assert.Equal(t, DefaultRecordType, NormalizeType("  CustomRecord_SW2022_Contract_TranLines "))
}

func TestRefString(t *testing.T) {
	ref := Ref{ID: "3", Type: DefaultRecordType}
	assert.Equal(t, "customrecord_sw2022_contract_tranlines/3", ref.String())
}

func TestDefaultQuery(t *testing.T) {
	assert.Equal(t, "SELECT id from customrecord_sw2022_contract_tranlines", DefaultQuery)
}
