package plate

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
)

// WellColumn names the well column of tabular plate files.
const WellColumn = "well"

// WriteGrid writes the plate as a grid: one line per plate row and, for each
// property, one column per plate column. Two header lines carry the property
// name and the column number. Column-major plates say so in the first
// header's corner cell; row-major plates leave it empty.
func (p *Plate) WriteGrid(w io.Writer) error {
	cw := csv.NewWriter(w)
	props := p.Properties()
	names := make([]string, 0, 1+len(props)*p.cols)
	numbers := make([]string, 0, cap(names))
	corner := ""
	if p.order == OrderColumnMajor {
		corner = p.order.String()
	}
	names = append(names, corner)
	numbers = append(numbers, "")
	for _, prop := range props {
		for col := 0; col < p.cols; col++ {
			names = append(names, prop)
			numbers = append(numbers, strconv.Itoa(col+1))
		}
	}
	if err := cw.Write(names); err != nil {
		return err
	}
	if err := cw.Write(numbers); err != nil {
		return err
	}
	for row := 0; row < p.rows; row++ {
		line := make([]string, 0, len(names))
		line = append(line, string(rune('A'+row)))
		for _, prop := range props {
			for col := 0; col < p.cols; col++ {
				line = append(line, p.wells[p.Index(row, col)][prop])
			}
		}
		if err := cw.Write(line); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Read parses either layout: a table when the header has a well column,
// otherwise a grid.
func Read(r io.Reader, id string) (*Plate, error) {
	records, err := readAll(r)
	if err != nil {
		return nil, fmt.Errorf("plate %s: %w", id, err)
	}
	if slices.Contains(records[0], WellColumn) {
		return fromTable(records, id)
	}
	return fromGrid(records, id)
}

// ReadTable parses a table with a well column and one column per property.
// More than 96 entries selects a 384-well plate.
func ReadTable(r io.Reader, id string) (*Plate, error) {
	records, err := readAll(r)
	if err != nil {
		return nil, fmt.Errorf("plate %s: %w", id, err)
	}
	return fromTable(records, id)
}

// ReadGrid parses the layout written by WriteGrid. A single header line of
// column numbers is accepted too, in which case cells hold ids. The corner
// cell selects the ordering; anything ParseOrder rejects reads as row-major.
func ReadGrid(r io.Reader, id string) (*Plate, error) {
	records, err := readAll(r)
	if err != nil {
		return nil, fmt.Errorf("plate %s: %w", id, err)
	}
	return fromGrid(records, id)
}

func readAll(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.New("empty plate file")
	}
	return records, nil
}

func fromTable(records [][]string, id string) (*Plate, error) {
	header := records[0]
	wellCol := slices.Index(header, WellColumn)
	if wellCol < 0 {
		return nil, fmt.Errorf("plate %s: missing %q column", id, WellColumn)
	}
	if !slices.Contains(header, IDProperty) {
		return nil, fmt.Errorf("plate %s: missing %q column", id, IDProperty)
	}
	var props []string
	for i, h := range header {
		if i != wellCol {
			props = append(props, h)
		}
	}
	body := records[1:]
	rows, cols := Rows96, Cols96
	if len(body) > Rows96*Cols96 {
		rows, cols = Rows384, Cols384
	}
	p, err := New(id, rows, cols, OrderRowMajor, props...)
	if err != nil {
		return nil, err
	}
	for line, rec := range body {
		if len(rec) <= wellCol {
			return nil, fmt.Errorf("plate %s: line %d: missing well", id, line+2)
		}
		entry := Record{}
		for i, h := range header {
			if i == wellCol || i >= len(rec) || rec[i] == "" {
				continue
			}
			entry[h] = rec[i]
		}
		if _, err := p.Place(entry, rec[wellCol]); err != nil {
			return nil, fmt.Errorf("plate %s: line %d: %w", id, line+2, err)
		}
	}
	return p, nil
}

func fromGrid(records [][]string, id string) (*Plate, error) {
	type column struct {
		prop string
		col  int
	}
	var columns []column
	body := records[1:]
	twoHeaders := len(records) > 1 && len(records[1]) > 1 && isNumber(records[1][1]) && !isNumber(records[0][1])
	if twoHeaders {
		body = records[2:]
		for i := 1; i < len(records[0]) && i < len(records[1]); i++ {
			n, err := strconv.Atoi(records[1][i])
			if err != nil {
				return nil, fmt.Errorf("plate %s: bad column number %q", id, records[1][i])
			}
			columns = append(columns, column{prop: records[0][i], col: n - 1})
		}
	} else {
		for i := 1; i < len(records[0]); i++ {
			n, err := strconv.Atoi(strings.TrimSpace(records[0][i]))
			if err != nil {
				return nil, fmt.Errorf("plate %s: bad column number %q", id, records[0][i])
			}
			columns = append(columns, column{prop: IDProperty, col: n - 1})
		}
	}
	cols := 0
	var props []string
	for _, c := range columns {
		if c.col < 0 {
			return nil, fmt.Errorf("plate %s: bad column number %d", id, c.col+1)
		}
		cols = max(cols, c.col+1)
		if !slices.Contains(props, c.prop) {
			props = append(props, c.prop)
		}
	}
	if cols == 0 || len(body) == 0 {
		return nil, fmt.Errorf("plate %s: empty grid", id)
	}
	order, err := ParseOrder(records[0][0])
	if err != nil {
		order = OrderRowMajor
	}
	p, err := New(id, len(body), cols, order, props...)
	if err != nil {
		return nil, err
	}
	for r, rec := range body {
		cells := map[int]Record{}
		for i, c := range columns {
			if i+1 >= len(rec) || rec[i+1] == "" {
				continue
			}
			if cells[c.col] == nil {
				cells[c.col] = Record{}
			}
			cells[c.col][c.prop] = rec[i+1]
		}
		for col := 0; col < cols; col++ {
			if entry, ok := cells[col]; ok {
				if _, err := p.Place(entry, WellName(r, col)); err != nil {
					return nil, fmt.Errorf("plate %s: %w", id, err)
				}
			}
		}
	}
	return p, nil
}

func isNumber(s string) bool {
	_, err := strconv.Atoi(strings.TrimSpace(s))
	return err == nil
}
