package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Annany2002/cadastro-backend/internal/domain"
)

func date(y int, m time.Month, d int) domain.Value {
	return domain.Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

func TestCoerce(t *testing.T) {
	testCases := []struct {
		name    string
		typ     domain.LogicalType
		raw     any
		want    domain.Value
		wantErr bool
	}{
		{"text keeps spaces", domain.TypeText, " Ana ", domain.Text(" Ana "), false},
		{"text empty is null", domain.TypeText, "", domain.Null(), false},
		{"text nil is null", domain.TypeText, nil, domain.Null(), false},
		{"text from number", domain.TypeText, 42, domain.Text("42"), false},

		{"int plain", domain.TypeInt, "30", domain.Int(30), false},
		{"int integral float string", domain.TypeInt, "30.0", domain.Int(30), false},
		{"int json number", domain.TypeInt, float64(7), domain.Int(7), false},
		{"int blank is null", domain.TypeInt, "  ", domain.Null(), false},
		{"int fractional", domain.TypeInt, "30.5", domain.Null(), true},
		{"int garbage", domain.TypeInt, "abc", domain.Null(), true},
		{"int bool", domain.TypeInt, true, domain.Null(), true},
		{"int beyond 32 bits", domain.TypeInt, "3000000000", domain.Int(3000000000), false},
		{"int beyond 64 bits", domain.TypeInt, "9223372036854775808", domain.Null(), true},
		{"int huge float", domain.TypeInt, float64(1e19), domain.Null(), true},
		{"int exponent", domain.TypeInt, "1e19", domain.Null(), true},

		{"float dot", domain.TypeFloat, "12.5", domain.Float(12.5), false},
		{"float comma", domain.TypeFloat, "12,5", domain.Float(12.5), false},
		{"float int", domain.TypeFloat, 3, domain.Float(3), false},
		{"float garbage", domain.TypeFloat, "1.2.3", domain.Null(), true},

		{"bool true", domain.TypeBool, "TRUE", domain.Bool(true), false},
		{"bool sim", domain.TypeBool, "Sim", domain.Bool(true), false},
		{"bool one", domain.TypeBool, "1", domain.Bool(true), false},
		{"bool yes", domain.TypeBool, "yes", domain.Bool(true), false},
		{"bool anything else", domain.TypeBool, "nao", domain.Bool(false), false},
		{"bool json", domain.TypeBool, false, domain.Bool(false), false},
		{"bool json number one", domain.TypeBool, float64(1), domain.Bool(true), false},
		{"bool empty is null", domain.TypeBool, "", domain.Null(), false},

		{"date iso", domain.TypeDate, "2024-03-01", date(2024, time.March, 1), false},
		{"date slashes", domain.TypeDate, "01/03/2024", date(2024, time.March, 1), false},
		{"date dashes", domain.TypeDate, "1-3-2024", date(2024, time.March, 1), false},
		{"date fallback", domain.TypeDate, "March 1, 2024", date(2024, time.March, 1), false},
		{"date impossible", domain.TypeDate, "31/02/2024", domain.Null(), true},
		{"date garbage", domain.TypeDate, "soon", domain.Null(), true},
		{"date empty is null", domain.TypeDate, "", domain.Null(), false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Coerce(tc.typ, tc.raw)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want.Kind(), got.Kind())
			assert.True(t, tc.want.Equal(got), "got %v want %v", got, tc.want)
		})
	}
}

func TestCoerceUnknownType(t *testing.T) {
	_, err := Coerce(domain.LogicalType("blob"), "x")
	assert.Error(t, err)
}

func clientes() domain.DynamicTable {
	return domain.DynamicTable{
		InternalName: "clientes",
		Fields: []domain.Field{
			{Name: "nome", Type: domain.TypeText},
			{Name: "idade", Type: domain.TypeInt},
		},
		Status: domain.StatusActive,
	}
}

func TestCoerceRecord(t *testing.T) {
	t.Run("insert fills missing with null", func(t *testing.T) {
		rec, err := CoerceRecord(clientes(), map[string]any{"Nome": "Ana"}, false)
		require.NoError(t, err)
		assert.Equal(t, "Ana", rec["nome"].AsText())
		assert.True(t, rec["idade"].IsNull())
	})

	t.Run("update keeps only supplied columns", func(t *testing.T) {
		rec, err := CoerceRecord(clientes(), map[string]any{"idade": "31"}, true)
		require.NoError(t, err)
		assert.Len(t, rec, 1)
		assert.Equal(t, int64(31), rec["idade"].AsInt())
	})

	t.Run("empty update", func(t *testing.T) {
		_, err := CoerceRecord(clientes(), map[string]any{}, true)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("unknown column and bad value aggregated", func(t *testing.T) {
		_, err := CoerceRecord(clientes(), map[string]any{"nome": "Ana", "idade": "x", "email": "a@b"}, false)
		require.ErrorIs(t, err, domain.ErrValidation)
		de, _ := domain.AsError(err)
		assert.Len(t, de.Details, 2)
	})

	t.Run("id cannot be set", func(t *testing.T) {
		_, err := CoerceRecord(clientes(), map[string]any{"id": 5}, true)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}
