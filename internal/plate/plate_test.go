package plate

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worklistcore/pkg/domain"
)

func mustPlate(t *testing.T, rows, cols int, order Order) *Plate {
	t.Helper()
	p, err := New("p", rows, cols, order)
	require.NoError(t, err)
	return p
}

func TestIndexRoundTrip(t *testing.T) {
	for _, order := range []Order{OrderRowMajor, OrderColumnMajor} {
		for _, shape := range [][2]int{{8, 12}, {16, 24}, {2, 2}, {3, 5}} {
			p := mustPlate(t, shape[0], shape[1], order)
			seen := map[int]bool{}
			for row := 0; row < p.Rows(); row++ {
				for col := 0; col < p.Cols(); col++ {
					idx := p.Index(row, col)
					require.GreaterOrEqual(t, idx, 0)
					require.Less(t, idx, p.Size())
					require.False(t, seen[idx], "index %d reused", idx)
					seen[idx] = true
					r, c := p.RowCol(idx)
					assert.Equal(t, [2]int{row, col}, [2]int{r, c}, "order %s", order)
				}
			}
		}
	}
}

func TestIndexFormulas(t *testing.T) {
	rm := mustPlate(t, 8, 12, OrderRowMajor)
	assert.Equal(t, 8, rm.Index(0, 1))
	assert.Equal(t, "B1", rm.WellName(1))

	cm := mustPlate(t, 8, 12, OrderColumnMajor)
	assert.Equal(t, 1, cm.Index(0, 1))
	assert.Equal(t, "A2", cm.WellName(1))
}

func TestWellNames(t *testing.T) {
	row, col, err := ParseWell("P24")
	require.NoError(t, err)
	assert.Equal(t, 15, row)
	assert.Equal(t, 23, col)
	assert.Equal(t, "P24", WellName(row, col))

	row, col, err = ParseWell("c07")
	require.NoError(t, err)
	assert.Equal(t, [2]int{2, 6}, [2]int{row, col})

	for _, bad := range []string{"", "A", "1A", "A0", "Ax"} {
		_, _, err := ParseWell(bad)
		assert.ErrorIs(t, err, domain.ErrInvalidWell, bad)
	}
}

func TestPlaceAdvancesCursorAndOverflows(t *testing.T) {
	p := mustPlate(t, 2, 2, OrderRowMajor)
	var wells []string
	for _, id := range []string{"a", "b", "c", "d"} {
		w, err := p.Place(Record{"id": id}, "")
		require.NoError(t, err)
		wells = append(wells, w)
	}
	assert.Equal(t, []string{"A1", "B1", "A2", "B2"}, wells)
	assert.Equal(t, 4, p.Next())

	_, err := p.Place(Record{"id": "e"}, "")
	var overflow *domain.PlateOverflowError
	require.True(t, errors.As(err, &overflow))
	assert.Equal(t, "p", overflow.Plate)
	assert.ErrorIs(t, err, domain.ErrPlateOverflow)
}

func TestPlaceExplicitWell(t *testing.T) {
	p := mustPlate(t, 8, 12, OrderRowMajor)
	w, err := p.Place(Record{"id": "x"}, "A1")
	require.NoError(t, err)
	assert.Equal(t, "A1", w)

	w, err = p.Place(Record{"id": "y"}, "")
	require.NoError(t, err)
	assert.Equal(t, "B1", w)

	_, err = p.Place(Record{"id": "z"}, "A1")
	assert.ErrorIs(t, err, domain.ErrWellOccupied)

	w, err = p.Place(Record{"id": "x"}, "A1")
	require.NoError(t, err)
	assert.Equal(t, "A1", w)

	_, err = p.Place(Record{"id": "q"}, "M1")
	assert.ErrorIs(t, err, domain.ErrInvalidWell)
}

func TestCursorSkipsExplicitlyFilledWells(t *testing.T) {
	p := mustPlate(t, 2, 2, OrderRowMajor)
	_, err := p.Place(Record{"id": "fixed"}, "B2")
	require.NoError(t, err)
	assert.Equal(t, 0, p.Next())

	var wells []string
	for _, id := range []string{"a", "b", "c"} {
		w, err := p.Place(Record{"id": id}, "")
		require.NoError(t, err)
		wells = append(wells, w)
	}
	assert.Equal(t, []string{"A1", "B1", "A2"}, wells)
	_, err = p.Place(Record{"id": "more"}, "")
	require.ErrorIs(t, err, domain.ErrPlateOverflow)

	q := mustPlate(t, 2, 2, OrderRowMajor)
	_, err = q.Place(Record{"id": "fixed"}, "A1")
	require.NoError(t, err)
	w, err := q.Place(Record{"id": "next"}, "")
	require.NoError(t, err)
	assert.Equal(t, "B1", w)
}

func TestPinnedLastWellLeavesPlateOpen(t *testing.T) {
	p := mustPlate(t, 8, 12, OrderRowMajor)
	_, err := p.Place(Record{"id": "prod"}, "H12")
	require.NoError(t, err)

	w, err := p.Place(Record{"id": "prod2"}, "")
	require.NoError(t, err)
	assert.Equal(t, "A1", w)

	wells, err := p.PlaceLine(Record{"id": "water"})
	require.NoError(t, err)
	assert.Equal(t, "A2", wells[0])
	assert.Equal(t, 16, p.Next())

	// the pinned well's column is never chosen for a line
	r := mustPlate(t, 8, 2, OrderRowMajor)
	_, err = r.Place(Record{"id": "buffer"}, "H1")
	require.NoError(t, err)
	wells, err = r.PlaceLine(Record{"id": "water"})
	require.NoError(t, err)
	assert.Equal(t, "A2", wells[0])
}

func TestPlaceLine(t *testing.T) {
	p := mustPlate(t, 8, 12, OrderRowMajor)
	_, err := p.Place(Record{"id": "a"}, "")
	require.NoError(t, err)

	wells, err := p.PlaceLine(Record{"id": "water"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A2", "B2", "C2", "D2", "E2", "F2", "G2", "H2"}, wells)
	assert.Equal(t, wells, p.Find(Record{"id": "water"}))
	assert.Equal(t, 16, p.Next())

	cm := mustPlate(t, 2, 3, OrderColumnMajor)
	wells, err = cm.PlaceLine(Record{"id": "mm"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "A2", "A3"}, wells)
	wells, err = cm.PlaceLine(Record{"id": "buffer"})
	require.NoError(t, err)
	assert.Equal(t, []string{"B1", "B2", "B3"}, wells)
	_, err = cm.PlaceLine(Record{"id": "ladder"})
	assert.ErrorIs(t, err, domain.ErrPlateOverflow)
}

func TestFindConjunctionInIndexOrder(t *testing.T) {
	p, err := New("p", 8, 12, OrderRowMajor, "type")
	require.NoError(t, err)
	_, err = p.Place(Record{"id": "x", "type": "oligo"}, "B1")
	require.NoError(t, err)
	_, err = p.Place(Record{"id": "x", "type": "oligo"}, "A2")
	require.NoError(t, err)
	_, err = p.Place(Record{"id": "x", "type": "primer"}, "A1")
	require.NoError(t, err)

	assert.Equal(t, []string{"A1", "B1", "A2"}, p.Find(Record{"id": "x"}))
	assert.Equal(t, []string{"B1", "A2"}, p.Find(Record{"id": "x", "type": "oligo"}))
	assert.Empty(t, p.Find(Record{"id": "y"}))
}

func TestCloneAndSibling(t *testing.T) {
	p, err := New("base", 2, 2, OrderColumnMajor, "type")
	require.NoError(t, err)
	_, err = p.Place(Record{"id": "a"}, "")
	require.NoError(t, err)

	dup := p.Clone()
	_, err = dup.Place(Record{"id": "b"}, "")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Len())
	assert.Equal(t, 2, dup.Len())

	sib := p.Sibling("base~2")
	assert.Equal(t, "base~2", sib.ID())
	assert.Equal(t, 0, sib.Len())
	assert.Equal(t, OrderColumnMajor, sib.Order())
	assert.Equal(t, []string{"id", "type"}, sib.Properties())
}

func TestGridRoundTrip(t *testing.T) {
	p, err := New("plate1", 2, 3, OrderRowMajor, "type")
	require.NoError(t, err)
	_, err = p.Place(Record{"id": "a", "type": "oligo"}, "A1")
	require.NoError(t, err)
	_, err = p.Place(Record{"id": "b"}, "B3")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, p.WriteGrid(&buf))
	assert.True(t, strings.HasPrefix(buf.String(), ",id,id,id,type,type,type\n,1,2,3,1,2,3\nA,a,,,oligo,,\n"))

	back, err := Read(&buf, "plate1")
	require.NoError(t, err)
	assert.Equal(t, 2, back.Rows())
	assert.Equal(t, 3, back.Cols())
	rec, ok := back.Get("A1")
	require.True(t, ok)
	assert.Equal(t, Record{"id": "a", "type": "oligo"}, rec)
	rec, ok = back.Get("B3")
	require.True(t, ok)
	assert.Equal(t, Record{"id": "b"}, rec)
}

func TestGridKeepsColumnMajorOrder(t *testing.T) {
	p, err := New("cm", 2, 3, OrderColumnMajor)
	require.NoError(t, err)
	for _, id := range []string{"a", "b", "c", "d"} {
		_, err := p.Place(Record{"id": id}, "")
		require.NoError(t, err)
	}

	var buf bytes.Buffer
	require.NoError(t, p.WriteGrid(&buf))
	assert.True(t, strings.HasPrefix(buf.String(), "column_major,id,id,id\n"))

	back, err := Read(&buf, "cm")
	require.NoError(t, err)
	assert.Equal(t, OrderColumnMajor, back.Order())
	assert.Equal(t, p.Wells(), back.Wells())

	rm, err := ReadGrid(strings.NewReader("notes,1\nA,x\n"), "rm")
	require.NoError(t, err)
	assert.Equal(t, OrderRowMajor, rm.Order())
}

func TestReadSingleHeaderGrid(t *testing.T) {
	in := ",1,2\nA,x1,x2\nB,,x3\n"
	p, err := ReadGrid(strings.NewReader(in), "wt")
	require.NoError(t, err)
	assert.Equal(t, []string{"B2"}, p.Find(Record{"id": "x3"}))
	assert.Equal(t, 3, p.Len())
}

func TestReadTable(t *testing.T) {
	in := "well,id,parent\nA1,o1,\nB1,o2,o1\n"
	p, err := Read(strings.NewReader(in), "mutants")
	require.NoError(t, err)
	assert.Equal(t, 96, p.Size())
	assert.Equal(t, []string{"id", "parent"}, p.Properties())
	rec, ok := p.Get("B1")
	require.True(t, ok)
	assert.Equal(t, Record{"id": "o2", "parent": "o1"}, rec)

	_, err = ReadTable(strings.NewReader("well,parent\nA1,x\n"), "bad")
	assert.Error(t, err)
}

func TestReadTableLargeSelects384(t *testing.T) {
	var b strings.Builder
	b.WriteString("well,id\n")
	count := 0
	for row := 0; row < 16 && count < 100; row++ {
		for col := 0; col < 24 && count < 100; col++ {
			b.WriteString(WellName(row, col) + ",o" + string(rune('a'+count%26)) + "\n")
			count++
		}
	}
	p, err := ReadTable(strings.NewReader(b.String()), "big")
	require.NoError(t, err)
	assert.Equal(t, 384, p.Size())
}

func TestParseOrder(t *testing.T) {
	o, err := ParseOrder("Column-Major")
	require.NoError(t, err)
	assert.Equal(t, OrderColumnMajor, o)
	_, err = ParseOrder("diagonal")
	assert.Error(t, err)
}
