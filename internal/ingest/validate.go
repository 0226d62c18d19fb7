package ingest

import (
	"fmt"

	"github.com/Annany2002/cadastro-backend/internal/core"
	"github.com/Annany2002/cadastro-backend/internal/domain"
)

// Result is the outcome of the validation phase. Records is only populated
// when OK is true; a single row-level error rejects the whole batch.
type Result struct {
	OK       bool
	Errors   []string
	Warnings []string
	Records  []domain.Record
}

// Validate checks a batch against the table's catalog fields and coerces
// every cell. Every field must appear in the header; extra columns are
// dropped with a warning. Row numbers are 1-based and exclude the header.
func Validate(batch Batch, table domain.DynamicTable) Result {
	var res Result

	if len(table.Fields) == 0 {
		res.Errors = append(res.Errors, fmt.Sprintf("table '%s' has no fields", table.InternalName))
		return res
	}

	// Header column -> field position.
	positions := make(map[string]int, len(batch.Columns))
	for i, col := range batch.Columns {
		name := core.Sanitize(col)
		if _, ok := table.FieldByName(name); !ok {
			res.Warnings = append(res.Warnings, fmt.Sprintf("column '%s' is not a field of '%s' and was ignored", col, table.InternalName))
			continue
		}
		if _, dup := positions[name]; dup {
			res.Errors = append(res.Errors, fmt.Sprintf("column '%s' appears more than once", col))
			continue
		}
		positions[name] = i
	}
	for _, f := range table.Fields {
		if _, ok := positions[f.Name]; !ok {
			res.Errors = append(res.Errors, fmt.Sprintf("missing column '%s'", f.DisplayLabel()))
		}
	}
	if len(res.Errors) > 0 {
		return res
	}

	if batch.Len() == 0 {
		res.Errors = append(res.Errors, "no data rows")
		return res
	}

	records := make([]domain.Record, 0, batch.Len())
	for r, row := range batch.Rows {
		rec := make(domain.Record, len(table.Fields))
		for _, f := range table.Fields {
			var raw any
			if pos := positions[f.Name]; pos < len(row) {
				raw = row[pos]
			}
			v, err := core.Coerce(f.Type, raw)
			if err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("row %d, field '%s': %v", r+1, f.Name, err))
				continue
			}
			rec[f.Name] = v
		}
		records = append(records, rec)
	}
	if len(res.Errors) > 0 {
		return res
	}

	res.OK = true
	res.Records = records
	return res
}

// Err converts a failed result into a ValidationError.
func (r Result) Err(table string) error {
	if r.OK {
		return nil
	}
	return domain.ValidationFailed(table, r.Errors)
}
