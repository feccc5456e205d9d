package locate

import (
	"fmt"
	"math"
	"strings"
)

// Metric is a distance between two grid coordinates.
type Metric func(r1, c1, r2, c2 int) float64

// Cityblock is the taxicab distance.
func Cityblock(r1, c1, r2, c2 int) float64 {
	return math.Abs(float64(r1-r2)) + math.Abs(float64(c1-c2))
}

// Chebyshev is the larger of the row and column offsets.
func Chebyshev(r1, c1, r2, c2 int) float64 {
	return math.Max(math.Abs(float64(r1-r2)), math.Abs(float64(c1-c2)))
}

// Euclidean is the straight-line distance.
func Euclidean(r1, c1, r2, c2 int) float64 {
	return math.Hypot(float64(r1-r2), float64(c1-c2))
}

// ParseMetric resolves a metric by name; empty selects cityblock.
func ParseMetric(name string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "cityblock", "manhattan", "taxicab":
		return Cityblock, nil
	case "chebyshev":
		return Chebyshev, nil
	case "euclidean":
		return Euclidean, nil
	}
	return nil, fmt.Errorf("unknown distance metric %q", name)
}
