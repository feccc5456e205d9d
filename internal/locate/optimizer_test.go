package locate

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worklistcore/internal/placement"
	"worklistcore/internal/plate"
	"worklistcore/pkg/domain"
)

type fakeSource map[string][]placement.Candidate

func (f fakeSource) Candidates(name string) ([]placement.Candidate, error) {
	c, ok := f[name]
	if !ok {
		return nil, &domain.PlacementLookupError{Component: name}
	}
	return c, nil
}

func newPlate(t *testing.T, id string, rows, cols int) *plate.Plate {
	t.Helper()
	p, err := plate.New(id, rows, cols, plate.OrderRowMajor)
	require.NoError(t, err)
	return p
}

func TestPicksClosestPair(t *testing.T) {
	p1 := newPlate(t, "P1", 8, 12)
	p2 := newPlate(t, "P2", 8, 12)
	src := fakeSource{
		"x": {{Plate: p1, Wells: []string{"B1", "A1"}}},
		"y": {{Plate: p2, Wells: []string{"A1"}}},
	}
	s, d, err := New(src).Locate("x", "y")
	require.NoError(t, err)
	assert.Equal(t, domain.Location{Plate: "P1", Well: "A1", PlateSize: 96}, s)
	assert.Equal(t, domain.Location{Plate: "P2", Well: "A1", PlateSize: 96}, d)
}

func TestTiesGoToFirstScannedPair(t *testing.T) {
	p1 := newPlate(t, "P1", 8, 12)
	p2 := newPlate(t, "P2", 8, 12)
	p3 := newPlate(t, "P3", 8, 12)
	src := fakeSource{
		"x": {{Plate: p1, Wells: []string{"A1", "C1"}}},
		"y": {
			{Plate: p2, Wells: []string{"B1"}},
			{Plate: p3, Wells: []string{"B1"}},
		},
	}
	s, d, err := New(src).Locate("x", "y")
	require.NoError(t, err)
	assert.Equal(t, "A1", s.Well)
	assert.Equal(t, "P2", d.Plate)
	assert.Equal(t, "B1", d.Well)
	assert.Equal(t, 1, d.Index)
	assert.Equal(t, 1, d.Row)
}

func TestPipetteIndexOn384(t *testing.T) {
	big := newPlate(t, "big", 16, 24)
	small := newPlate(t, "small", 8, 12)
	src := fakeSource{
		"x": {{Plate: big, Wells: []string{"B1"}}},
		"y": {{Plate: small, Wells: []string{"B1"}}},
	}
	s, d, err := New(src).Locate("x", "y")
	require.NoError(t, err)
	assert.Equal(t, 384, s.PlateSize)
	assert.Equal(t, 1, s.PipetteIndex)
	assert.Equal(t, 0, d.PipetteIndex)

	assert.Equal(t, 0, PipetteIndex(384, 4))
	assert.Equal(t, 0, PipetteIndex(96, 5))
}

func TestMetricsDiffer(t *testing.T) {
	assert.Equal(t, 7.0, Cityblock(0, 0, 3, 4))
	assert.Equal(t, 4.0, Chebyshev(0, 0, 3, 4))
	assert.Equal(t, 5.0, Euclidean(0, 0, 3, 4))

	m, err := ParseMetric("")
	require.NoError(t, err)
	assert.Equal(t, 2.0, m(0, 0, 1, 1))
	_, err = ParseMetric("hamming")
	assert.Error(t, err)
}

func TestChebyshevChangesChoice(t *testing.T) {
	p := newPlate(t, "p", 8, 12)
	q := newPlate(t, "q", 8, 12)
	src := fakeSource{
		"x": {{Plate: p, Wells: []string{"A4", "C3"}}},
		"y": {{Plate: q, Wells: []string{"A1"}}},
	}
	s, _, err := New(src).Locate("x", "y")
	require.NoError(t, err)
	assert.Equal(t, "A4", s.Well)

	s, _, err = New(src, WithMetric(Chebyshev)).Locate("x", "y")
	require.NoError(t, err)
	assert.Equal(t, "C3", s.Well)
}

func TestResolveRows(t *testing.T) {
	p := newPlate(t, "p", 8, 12)
	src := fakeSource{}
	var rows []domain.Row
	for i := 0; i < 40; i++ {
		name := fmt.Sprintf("c%d", i)
		src[name] = []placement.Candidate{{Plate: p, Wells: []string{p.WellName(i)}}}
		rows = append(rows, domain.Row{SrcName: name, DestName: "c0", Volume: float64(i + 1)})
	}

	seq, err := New(src).Resolve(context.Background(), rows)
	require.NoError(t, err)
	par, err := New(src, WithWorkers(8)).Resolve(context.Background(), rows)
	require.NoError(t, err)
	assert.Equal(t, seq, par)
	assert.Equal(t, p.WellName(17), par[17].Src.Well)
	assert.Equal(t, 17, par[17].Src.Index)
	assert.Empty(t, rows[17].Src.Plate, "input rows must not be modified")
}

func TestResolveMissingComponent(t *testing.T) {
	p := newPlate(t, "p", 8, 12)
	src := fakeSource{"a": {{Plate: p, Wells: []string{"A1"}}}}
	rows := []domain.Row{
		{SrcName: "a", DestName: "a"},
		{SrcName: "ghost", DestName: "a"},
	}
	_, err := New(src, WithWorkers(4)).Resolve(context.Background(), rows)
	var lookup *domain.PlacementLookupError
	require.True(t, errors.As(err, &lookup))
	assert.Equal(t, "ghost", lookup.Component)
}

func TestResolveEmptyCandidates(t *testing.T) {
	p := newPlate(t, "p", 8, 12)
	src := fakeSource{
		"a": {{Plate: p, Wells: []string{"A1"}}},
		"b": {{Plate: p, Wells: nil}},
		"c": {{Plate: p, Wells: nil}},
	}
	rows := []domain.Row{
		{SrcName: "a", DestName: "a"},
		{SrcName: "b", DestName: "a"},
		{SrcName: "c", DestName: "a"},
	}
	for _, workers := range []int{1, 4} {
		_, err := New(src, WithWorkers(workers)).Resolve(context.Background(), rows)
		require.ErrorIs(t, err, domain.ErrPlacementLookup)
		assert.Contains(t, err.Error(), "locate b -> a")
	}
}

func TestResolveHonoursCancellation(t *testing.T) {
	p := newPlate(t, "p", 8, 12)
	src := fakeSource{"a": {{Plate: p, Wells: []string{"A1"}}}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(src).Resolve(ctx, []domain.Row{{SrcName: "a", DestName: "a"}})
	assert.ErrorIs(t, err, context.Canceled)
}
