package domain

import (
	"encoding/json"
	"fmt"
)

// Row names a board row. Rows run from A (the A-side back rank) to IA
// (the IA-side back rank).
type Row string

// Column names a board column.
type Column string

// Board rows, in board order.
const (
	RowA  Row = "A"
	RowE  Row = "E"
	RowI  Row = "I"
	RowU  Row = "U"
	RowO  Row = "O"
	RowY  Row = "Y"
	RowAI Row = "AI"
	RowAU Row = "AU"
	RowIA Row = "IA"
)

// Board columns, in board order.
const (
	ColumnK Column = "K"
	ColumnL Column = "L"
	ColumnN Column = "N"
	ColumnT Column = "T"
	ColumnZ Column = "Z"
	ColumnX Column = "X"
	ColumnC Column = "C"
	ColumnM Column = "M"
	ColumnP Column = "P"
)

// Rows lists all board rows in board order.
var Rows = []Row{RowA, RowE, RowI, RowU, RowO, RowY, RowAI, RowAU, RowIA}

// Columns lists all board columns in board order.
var Columns = []Column{ColumnK, ColumnL, ColumnN, ColumnT, ColumnZ, ColumnX, ColumnC, ColumnM, ColumnP}

var rowIndex = func() map[Row]int {
	m := make(map[Row]int, len(Rows))
	for i, r := range Rows {
		m[r] = i
	}
	return m
}()

var columnIndex = func() map[Column]int {
	m := make(map[Column]int, len(Columns))
	for i, c := range Columns {
		m[c] = i
	}
	return m
}()

// Coord addresses one square of the 9×9 board.
type Coord struct {
	Row    Row
	Column Column
}

// Valid reports whether both the row and the column name a real square.
func (c Coord) Valid() bool {
	_, rowOK := rowIndex[c.Row]
	_, colOK := columnIndex[c.Column]
	return rowOK && colOK
}

// String returns the square in row-column notation, e.g. "AU C".
func (c Coord) String() string {
	return string(c.Row) + " " + string(c.Column)
}

// Distance returns the board distance between two squares: the number of
// king moves needed to travel from one to the other.
func Distance(a, b Coord) int {
	dr := rowIndex[a.Row] - rowIndex[b.Row]
	if dr < 0 {
		dr = -dr
	}
	dc := columnIndex[a.Column] - columnIndex[b.Column]
	if dc < 0 {
		dc = -dc
	}
	if dr > dc {
		return dr
	}
	return dc
}

// MarshalJSON encodes the square as a two-element array, row first:
// ["AU","C"]. This is the wire shape clients expect.
func (c Coord) MarshalJSON() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("marshal coord: invalid square %q %q", c.Row, c.Column)
	}
	return json.Marshal([2]string{string(c.Row), string(c.Column)})
}

// UnmarshalJSON decodes a two-element array naming a square. The row and
// column may appear in either order; the names are disjoint, so each element
// classifies unambiguously.
func (c *Coord) UnmarshalJSON(data []byte) error {
	var parts [2]string
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("unmarshal coord: %w", err)
	}

	var out Coord
	for _, part := range parts {
		switch {
		case isRow(part):
			out.Row = Row(part)
		case isColumn(part):
			out.Column = Column(part)
		default:
			return fmt.Errorf("unmarshal coord: %q is neither a row nor a column", part)
		}
	}
	if out.Row == "" {
		return fmt.Errorf("unmarshal coord: missing row")
	}
	if out.Column == "" {
		return fmt.Errorf("unmarshal coord: missing column")
	}
	*c = out
	return nil
}

func isRow(s string) bool {
	_, ok := rowIndex[Row(s)]
	return ok
}

func isColumn(s string) bool {
	_, ok := columnIndex[Column(s)]
	return ok
}
