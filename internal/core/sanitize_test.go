package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	testCases := []struct {
		input string
		want  string
	}{
		{"Nome Cliente", "nome_cliente"},
		{"  Clientes  ", "clientes"},
		{"2024Report", "_2024report"},
		{"nome-cliente", "nome_cliente"},
		{"Endereço", "endereço"},
		{"valor (R$)", "valor__r__"},
		{"a.b/c", "a_b_c"},
		{"already_clean", "already_clean"},
		{"", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.want, Sanitize(tc.input))
		})
	}
}

func TestSanitizeIdempotent(t *testing.T) {
	inputs := []string{"Nome Cliente", "2024Report", "ÁGUA fria!", "__x__", "  9 ", "Data de Nascimento", "a\tb\nc"}
	for _, in := range inputs {
		once := Sanitize(in)
		assert.Equal(t, once, Sanitize(once), "Sanitize(Sanitize(%q))", in)
	}
}
