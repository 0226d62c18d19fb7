package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/Annany2002/cadastro-backend/internal/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Batch is a tabular upload before validation: a header row and the raw
// cells of every data row. Cells are strings for CSV and decoded JSON values
// for API imports.
type Batch struct {
	Columns []string
	Rows    [][]any
}

// Len is the number of data rows.
func (b Batch) Len() int { return len(b.Rows) }

// FromCSV decodes a CSV upload. The first line is the header. A UTF-8 BOM is
// stripped and ';' is used as the delimiter when the header has no ','.
func FromCSV(r io.Reader) (Batch, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	firstLine, err := br.Peek(peekSize(br))
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return Batch{}, fmt.Errorf("reading csv header: %w", err)
	}

	reader := csv.NewReader(br)
	reader.Comma = detectDelimiter(firstLine)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return Batch{}, domain.InvalidInput("csv", "file is empty")
	}
	if err != nil {
		return Batch{}, domain.InvalidInput("csv", "malformed header: %v", err)
	}

	batch := Batch{Columns: make([]string, len(header))}
	for i, h := range header {
		batch.Columns[i] = strings.TrimSpace(h)
	}

	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Batch{}, domain.InvalidInput("csv", "malformed csv: %v", err)
		}
		if isBlankRecord(rec) {
			continue
		}
		row := make([]any, len(rec))
		for i, cell := range rec {
			row[i] = cell
		}
		batch.Rows = append(batch.Rows, row)
	}
	return batch, nil
}

// FromMaps builds a batch from JSON objects. Columns are ordered by first
// appearance, keys within a row alphabetically.
func FromMaps(rows []map[string]any) Batch {
	var batch Batch
	index := map[string]int{}
	for _, row := range rows {
		keys := make([]string, 0, len(row))
		for k := range row {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if _, ok := index[k]; !ok {
				index[k] = len(batch.Columns)
				batch.Columns = append(batch.Columns, k)
			}
		}
	}
	for _, row := range rows {
		cells := make([]any, len(batch.Columns))
		for k, v := range row {
			cells[index[k]] = v
		}
		batch.Rows = append(batch.Rows, cells)
	}
	return batch
}

func peekSize(br *bufio.Reader) int {
	if n := br.Buffered(); n > 0 {
		return n
	}
	// Fill the buffer once.
	_, _ = br.Peek(1)
	return br.Buffered()
}

func detectDelimiter(sample []byte) rune {
	line := sample
	if i := bytes.IndexByte(sample, '\n'); i >= 0 {
		line = sample[:i]
	}
	if !bytes.ContainsRune(line, ',') && bytes.ContainsRune(line, ';') {
		return ';'
	}
	return ','
}

func isBlankRecord(rec []string) bool {
	for _, cell := range rec {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
