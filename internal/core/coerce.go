package core

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/Annany2002/cadastro-backend/internal/domain"
)

// Truthy strings for bool coercion (compared case-insensitively).
var truthy = map[string]bool{"true": true, "1": true, "sim": true, "yes": true}

var (
	isoDate      = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	dayFirstDate = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{4})$`)
)

// Coerce converts a raw input (CSV cell, form value or decoded JSON) into the
// typed Value for a logical type. It is the single coercion path shared by
// batch ingestion, single-record insert and update.
func Coerce(t domain.LogicalType, raw any) (domain.Value, error) {
	switch t {
	case domain.TypeText:
		return CoerceText(raw)
	case domain.TypeInt:
		return CoerceInt(raw)
	case domain.TypeFloat:
		return CoerceFloat(raw)
	case domain.TypeDate:
		return CoerceDate(raw)
	case domain.TypeBool:
		return CoerceBool(raw)
	}
	return domain.Null(), fmt.Errorf("unknown logical type %q", t)
}

// blank reports whether raw is missing: nil or a whitespace-only string.
func blank(raw any) bool {
	if raw == nil {
		return true
	}
	if s, ok := raw.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

func rawString(raw any) string {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case time.Time:
		return v.Format(domain.DateLayout)
	}
	return fmt.Sprint(raw)
}

// CoerceText accepts any value; missing or empty becomes null.
func CoerceText(raw any) (domain.Value, error) {
	if raw == nil {
		return domain.Null(), nil
	}
	if s, ok := raw.(string); ok {
		if s == "" {
			return domain.Null(), nil
		}
		return domain.Text(s), nil
	}
	return domain.Text(rawString(raw)), nil
}

// CoerceInt parses whole numbers; "30.0" is accepted as 30.
func CoerceInt(raw any) (domain.Value, error) {
	if blank(raw) {
		return domain.Null(), nil
	}
	switch v := raw.(type) {
	case int:
		return domain.Int(int64(v)), nil
	case int32:
		return domain.Int(int64(v)), nil
	case int64:
		return domain.Int(v), nil
	case bool:
		return domain.Null(), fmt.Errorf("expected an integer, got a boolean")
	}

	s := rawString(raw)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return domain.Int(i), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return domain.Null(), fmt.Errorf("expected an integer, got %q", s)
	}
	// float64(math.MaxInt64) rounds up to 2^63, which is already out of range.
	if f != math.Trunc(f) || f >= math.MaxInt64 || f < math.MinInt64 {
		return domain.Null(), fmt.Errorf("expected an integer, got %q", s)
	}
	return domain.Int(int64(f)), nil
}

// CoerceFloat parses decimal numbers. A single decimal comma ("12,5") is
// accepted when there is no dot.
func CoerceFloat(raw any) (domain.Value, error) {
	if blank(raw) {
		return domain.Null(), nil
	}
	switch v := raw.(type) {
	case int:
		return domain.Float(float64(v)), nil
	case int64:
		return domain.Float(float64(v)), nil
	case float64:
		return domain.Float(v), nil
	case bool:
		return domain.Null(), fmt.Errorf("expected a number, got a boolean")
	}

	s := rawString(raw)
	if !strings.Contains(s, ".") && strings.Count(s, ",") == 1 {
		s = strings.Replace(s, ",", ".", 1)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return domain.Null(), fmt.Errorf("expected a number, got %q", rawString(raw))
	}
	return domain.Float(f), nil
}

// CoerceBool maps true/1/sim/yes (any case) to true and anything else to false.
func CoerceBool(raw any) (domain.Value, error) {
	if blank(raw) {
		return domain.Null(), nil
	}
	if b, ok := raw.(bool); ok {
		return domain.Bool(b), nil
	}
	return domain.Bool(truthy[strings.ToLower(rawString(raw))]), nil
}

// CoerceDate accepts YYYY-MM-DD, DD/MM/YYYY and DD-MM-YYYY, then falls back
// to a generic parse.
func CoerceDate(raw any) (domain.Value, error) {
	if blank(raw) {
		return domain.Null(), nil
	}
	if t, ok := raw.(time.Time); ok {
		return domain.Date(t), nil
	}

	s := rawString(raw)
	if isoDate.MatchString(s) {
		t, err := time.Parse(domain.DateLayout, s)
		if err != nil {
			return domain.Null(), fmt.Errorf("invalid date %q", s)
		}
		return domain.Date(t), nil
	}
	if m := dayFirstDate.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		t, err := time.Parse(domain.DateLayout, fmt.Sprintf("%s-%02d-%02d", m[3], month, day))
		if err != nil {
			return domain.Null(), fmt.Errorf("invalid date %q", s)
		}
		return domain.Date(t), nil
	}
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return domain.Null(), fmt.Errorf("unrecognized date %q", s)
	}
	return domain.Date(t), nil
}

// CoerceRecord converts a column->raw map against a table's fields. Unknown
// columns and the server-generated id are rejected. With partial set, only
// the supplied columns are coerced (update path); otherwise every field is
// present in the result, missing ones as null (insert path).
func CoerceRecord(table domain.DynamicTable, raw map[string]any, partial bool) (domain.Record, error) {
	rec := make(domain.Record, len(table.Fields))
	var problems []string

	for key := range raw {
		col := Sanitize(key)
		if col == "id" {
			problems = append(problems, "'id' is generated by the server and cannot be set")
			continue
		}
		if _, ok := table.FieldByName(col); !ok {
			problems = append(problems, fmt.Sprintf("column '%s' does not exist", key))
		}
	}

	for _, f := range table.Fields {
		val, present := lookupRaw(raw, f)
		if !present && partial {
			continue
		}
		v, err := Coerce(f.Type, val)
		if err != nil {
			problems = append(problems, fmt.Sprintf("field '%s': %v", f.Name, err))
			continue
		}
		rec[f.Name] = v
	}

	if len(problems) > 0 {
		return nil, domain.ValidationFailed(table.InternalName, problems)
	}
	if partial && len(rec) == 0 {
		return nil, domain.InvalidInput(table.InternalName, "no fields to update")
	}
	return rec, nil
}

// lookupRaw finds a field's value by column name, then by sanitized key.
func lookupRaw(raw map[string]any, f domain.Field) (any, bool) {
	if v, ok := raw[f.Name]; ok {
		return v, true
	}
	for k, v := range raw {
		if Sanitize(k) == f.Name {
			return v, true
		}
	}
	return nil, false
}
