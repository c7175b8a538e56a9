package raster

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// CSV column headers for color tables.
const (
	GreenColumn   = "Green Channel Value"
	CountryColumn = "Country Name"
)

// ErrInvalidTable is returned for malformed color tables.
var ErrInvalidTable = errors.New("invalid color table")

// ColorTable maps a green-channel value to a country name. It is read-only
// after construction.
type ColorTable struct {
	names map[uint8]string
}

// TableEntry is one row of a color table.
type TableEntry struct {
	Green   uint8
	Country string
}

// NewColorTable builds a table from entries. Green values must be unique.
func NewColorTable(entries []TableEntry) (*ColorTable, error) {
	names := make(map[uint8]string, len(entries))
	for _, e := range entries {
		if prev, dup := names[e.Green]; dup {
			return nil, fmt.Errorf("%w: green value %d assigned to both %q and %q", ErrInvalidTable, e.Green, prev, e.Country)
		}
		names[e.Green] = e.Country
	}
	return &ColorTable{names: names}, nil
}

// ParseColorTable reads a CSV with "Green Channel Value" and "Country Name"
// columns in any order. Extra columns are ignored.
func ParseColorTable(r io.Reader) (*ColorTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return NewColorTable(nil)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrInvalidTable, err)
	}
	greenIdx, countryIdx := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) {
		case GreenColumn:
			greenIdx = i
		case CountryColumn:
			countryIdx = i
		}
	}
	if greenIdx < 0 || countryIdx < 0 {
		return nil, fmt.Errorf("%w: header must contain %q and %q", ErrInvalidTable, GreenColumn, CountryColumn)
	}

	var entries []TableEntry
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidTable, line, err)
		}
		if greenIdx >= len(rec) || countryIdx >= len(rec) {
			return nil, fmt.Errorf("%w: line %d: missing columns", ErrInvalidTable, line)
		}
		g, err := strconv.Atoi(strings.TrimSpace(rec[greenIdx]))
		if err != nil || g < 0 || g > 255 {
			return nil, fmt.Errorf("%w: line %d: green value %q not in 0-255", ErrInvalidTable, line, rec[greenIdx])
		}
		entries = append(entries, TableEntry{Green: uint8(g), Country: rec[countryIdx]})
	}
	return NewColorTable(entries)
}

// Lookup returns the country for a green value.
func (t *ColorTable) Lookup(green uint8) (string, bool) {
	if t == nil {
		return "", false
	}
	name, ok := t.names[green]
	return name, ok
}

// Len reports the number of entries.
func (t *ColorTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.names)
}

// Entries returns the rows sorted by green value.
func (t *ColorTable) Entries() []TableEntry {
	if t == nil {
		return nil
	}
	out := make([]TableEntry, 0, len(t.names))
	for g, name := range t.names {
		out = append(out, TableEntry{Green: g, Country: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Green < out[j].Green })
	return out
}

// WriteCSV writes the table in the format ParseColorTable reads.
func (t *ColorTable) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{CountryColumn, GreenColumn}); err != nil {
		return err
	}
	for _, e := range t.Entries() {
		if err := cw.Write([]string{e.Country, strconv.Itoa(int(e.Green))}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
