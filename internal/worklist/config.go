package worklist

import (
	"errors"
	"fmt"
	"slices"

	"worklistcore/internal/locate"
	"worklistcore/internal/placement"
	"worklistcore/internal/plate"
	"worklistcore/internal/schedule"
	"worklistcore/pkg/domain"
)

// Config holds the engine settings for one compilation.
type Config struct {
	Rows  int         `json:"rows"`
	Cols  int         `json:"cols"`
	Order plate.Order `json:"order"`
	// ReagentPriority orders reagent dispatch; unlisted reagents go last.
	ReagentPriority []string          `json:"reagent_priority"`
	Metric          string            `json:"metric"`
	Names           domain.PlateNames `json:"names"`
	MaxFamily       int               `json:"max_family"`
	CycleKey        schedule.CycleKey `json:"cycle_key"`
	// Workers > 1 resolves well locations concurrently.
	Workers int `json:"workers"`
}

// DefaultConfig is a row-major 96-well setup with cityblock distances.
func DefaultConfig() Config {
	return Config{
		Rows:            plate.Rows96,
		Cols:            plate.Cols96,
		Order:           plate.OrderRowMajor,
		ReagentPriority: slices.Clone(schedule.DefaultReagentPriority),
		Metric:          "cityblock",
		Names:           domain.DefaultPlateNames(),
		MaxFamily:       placement.DefaultMaxFamily,
		CycleKey:        schedule.CycleDest,
		Workers:         1,
	}
}

// Validate reports every problem with the configuration at once.
func (c Config) Validate() error {
	var errs []error
	if c.Rows <= 0 || c.Cols <= 0 {
		errs = append(errs, fmt.Errorf("plate shape %dx%d must be positive", c.Rows, c.Cols))
	}
	if c.Rows > 26 {
		errs = append(errs, fmt.Errorf("plate rows %d exceed 26", c.Rows))
	}
	if c.Order != plate.OrderRowMajor && c.Order != plate.OrderColumnMajor {
		errs = append(errs, fmt.Errorf("unknown plate order %d", c.Order))
	}
	if _, err := locate.ParseMetric(c.Metric); err != nil {
		errs = append(errs, err)
	}
	if c.MaxFamily < 0 {
		errs = append(errs, fmt.Errorf("max family %d must not be negative", c.MaxFamily))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers %d must not be negative", c.Workers))
	}
	if c.CycleKey != schedule.CycleDest && c.CycleKey != schedule.CycleSrc {
		errs = append(errs, fmt.Errorf("unknown cycle key %d", c.CycleKey))
	}
	seen := map[string]bool{}
	for _, r := range c.ReagentPriority {
		if seen[r] {
			errs = append(errs, fmt.Errorf("reagent %q listed twice in priority", r))
		}
		seen[r] = true
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c Config) layout() placement.Layout {
	return placement.Layout{Rows: c.Rows, Cols: c.Cols, Order: c.Order, MaxFamily: c.MaxFamily}
}
