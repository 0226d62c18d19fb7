package ingest

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Annany2002/cadastro-backend/internal/domain"
)

func clientesTable() domain.DynamicTable {
	return domain.DynamicTable{
		InternalName: "clientes",
		DisplayName:  "Clientes",
		Fields: []domain.Field{
			{Name: "nome", Type: domain.TypeText, Label: "Nome"},
			{Name: "idade", Type: domain.TypeInt, Label: "Idade"},
			{Name: "nascimento", Type: domain.TypeDate, Label: "Nascimento"},
			{Name: "ativo", Type: domain.TypeBool, Label: "Ativo"},
		},
		Status: domain.StatusActive,
	}
}

func TestFromCSV(t *testing.T) {
	t.Run("comma with bom", func(t *testing.T) {
		in := "\xEF\xBB\xBFNome,Idade\nAna,30\n\nBeto,\n"
		batch, err := FromCSV(strings.NewReader(in))
		require.NoError(t, err)
		assert.Equal(t, []string{"Nome", "Idade"}, batch.Columns)
		require.Equal(t, 2, batch.Len())
		assert.Equal(t, []any{"Ana", "30"}, batch.Rows[0])
		assert.Equal(t, []any{"Beto", ""}, batch.Rows[1])
	})

	t.Run("semicolon detected", func(t *testing.T) {
		in := "Nome;Valor\nAna;12,5\n"
		batch, err := FromCSV(strings.NewReader(in))
		require.NoError(t, err)
		assert.Equal(t, []string{"Nome", "Valor"}, batch.Columns)
		assert.Equal(t, []any{"Ana", "12,5"}, batch.Rows[0])
	})

	t.Run("empty file", func(t *testing.T) {
		_, err := FromCSV(strings.NewReader(""))
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("malformed quotes", func(t *testing.T) {
		_, err := FromCSV(strings.NewReader("a,b\n\"x,1\n"))
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestFromMaps(t *testing.T) {
	batch := FromMaps([]map[string]any{
		{"nome": "Ana", "idade": float64(30)},
		{"nome": "Beto", "email": "b@x"},
	})
	assert.Equal(t, []string{"idade", "nome", "email"}, batch.Columns)
	assert.Equal(t, []any{float64(30), "Ana", nil}, batch.Rows[0])
	assert.Equal(t, []any{nil, "Beto", "b@x"}, batch.Rows[1])
}

func TestValidate(t *testing.T) {
	t.Run("clean batch coerces every cell", func(t *testing.T) {
		batch := Batch{
			Columns: []string{"Nome", "Idade", "Nascimento", "Ativo", "Observacao"},
			Rows: [][]any{
				{"Ana", "30", "01/03/1994", "sim", "x"},
				{"Beto", "", "1990-12-31", "no", ""},
			},
		}
		res := Validate(batch, clientesTable())
		require.True(t, res.OK, "errors: %v", res.Errors)
		require.Len(t, res.Records, 2)
		assert.Len(t, res.Warnings, 1)

		first := res.Records[0]
		assert.Equal(t, "Ana", first["nome"].AsText())
		assert.Equal(t, int64(30), first["idade"].AsInt())
		assert.Equal(t, time.Date(1994, time.March, 1, 0, 0, 0, 0, time.UTC), first["nascimento"].AsDate())
		assert.True(t, first["ativo"].AsBool())

		second := res.Records[1]
		assert.True(t, second["idade"].IsNull())
		assert.False(t, second["ativo"].AsBool())
		assert.NoError(t, res.Err("clientes"))
	})

	t.Run("one bad int rejects the batch", func(t *testing.T) {
		batch := Batch{
			Columns: []string{"nome", "idade", "nascimento", "ativo"},
			Rows: [][]any{
				{"Ana", "30", "", ""},
				{"Beto", "abc", "", ""},
				{"Caio", "25", "", ""},
			},
		}
		res := Validate(batch, clientesTable())
		assert.False(t, res.OK)
		assert.Empty(t, res.Records)
		require.Len(t, res.Errors, 1)
		assert.Contains(t, res.Errors[0], "row 2")
		assert.Contains(t, res.Errors[0], "idade")
		assert.ErrorIs(t, res.Err("clientes"), domain.ErrValidation)
	})

	t.Run("missing column", func(t *testing.T) {
		batch := Batch{Columns: []string{"nome", "idade"}, Rows: [][]any{{"Ana", "1"}}}
		res := Validate(batch, clientesTable())
		assert.False(t, res.OK)
		assert.Len(t, res.Errors, 2)
	})

	t.Run("duplicate header", func(t *testing.T) {
		batch := Batch{Columns: []string{"nome", "Nome", "idade", "nascimento", "ativo"}, Rows: [][]any{{"a", "b", "", "", ""}}}
		res := Validate(batch, clientesTable())
		assert.False(t, res.OK)
	})

	t.Run("short rows read as null", func(t *testing.T) {
		batch := Batch{Columns: []string{"nome", "idade", "nascimento", "ativo"}, Rows: [][]any{{"Ana"}}}
		res := Validate(batch, clientesTable())
		require.True(t, res.OK)
		assert.True(t, res.Records[0]["ativo"].IsNull())
	})

	t.Run("no rows", func(t *testing.T) {
		res := Validate(Batch{Columns: []string{"nome", "idade", "nascimento", "ativo"}}, clientesTable())
		assert.False(t, res.OK)
	})
}
