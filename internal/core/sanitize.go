package core

import (
	"strings"
	"unicode"
)

// Sanitize converts human text into a SQL identifier: trimmed, lowercased,
// spaces and every other non-alphanumeric rune replaced by '_', and prefixed
// with '_' when it would start with a digit.
//
// Sanitize is total and idempotent but not collision-free: "Nome Cliente" and
// "nome-cliente" both become "nome_cliente". Callers creating objects must
// check for an existing identifier first.
func Sanitize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))

	var b strings.Builder
	b.Grow(len(name) + 1)
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}

	out := b.String()
	if out != "" {
		first := []rune(out)[0]
		if unicode.IsNumber(first) {
			out = "_" + out
		}
	}
	return out
}
