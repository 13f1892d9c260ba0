package dataset

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/YuminosukeSato/ppgrid/pkg/errors"
)

// Cell is one attribute-table entry. A nil Cell is null. Non-null cells hold
// zero or more readings; each reading is a string, a number (float64 or int)
// or nil for a missing reading.
type Cell []any

// Table is a column-oriented attribute table.
type Table struct {
	rows    int
	order   []string
	columns map[string][]Cell
}

// NewTable creates an empty table with the given number of rows.
func NewTable(rows int) *Table {
	return &Table{rows: rows, columns: make(map[string][]Cell)}
}

// AddColumn adds or replaces a column. cells must have one entry per row.
func (t *Table) AddColumn(name string, cells []Cell) error {
	if len(cells) != t.rows {
		return errors.NewDimensionError(fmt.Sprintf("Table.AddColumn(%s)", name), t.rows, len(cells), 0)
	}
	if _, ok := t.columns[name]; !ok {
		t.order = append(t.order, name)
	}
	t.columns[name] = cells
	return nil
}

// Column returns the cells of a column.
func (t *Table) Column(name string) ([]Cell, bool) {
	cells, ok := t.columns[name]
	return cells, ok
}

// Columns returns the column names in insertion order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return t.rows
}

// ReadJSONLines reads one JSON object per line. Keys become columns; a null
// or absent value becomes a null cell, an array becomes a multi-reading cell
// and a scalar becomes a one-reading cell.
func ReadJSONLines(r io.Reader) (*Table, error) {
	var rows []map[string]any
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var row map[string]any
		if err := json.Unmarshal(raw, &row); err != nil {
			return nil, errors.Wrapf(err, "attribute table line %d", line)
		}
		for k := range row {
			seen[k] = true
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading attribute table")
	}

	names := make([]string, 0, len(seen))
	for k := range seen {
		names = append(names, k)
	}
	sort.Strings(names)

	t := NewTable(len(rows))
	for _, name := range names {
		cells := make([]Cell, len(rows))
		for i, row := range rows {
			cells[i] = toCell(row[name])
		}
		if err := t.AddColumn(name, cells); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func toCell(v any) Cell {
	switch x := v.(type) {
	case nil:
		return nil
	case []any:
		return Cell(x)
	default:
		return Cell{x}
	}
}
