// Package domain holds the value types shared by the worklist compiler stages:
// transfer rows, well locations, plate naming and the error taxonomy.
package domain

import (
	"strconv"
)

// Location pins one side of a transfer to a physical well.
type Location struct {
	Plate        string `json:"plate"`
	Well         string `json:"well"`
	Index        int    `json:"idx"`
	Row          int    `json:"row"`
	Col          int    `json:"col"`
	PlateSize    int    `json:"plate_size"`
	PipetteIndex int    `json:"pipette_idx"`
}

// Row is a single liquid transfer. Structural fields are filled during graph
// traversal; Src and Dest are attached once every component has been placed.
type Row struct {
	SrcName       string            `json:"src_name"`
	DestName      string            `json:"dest_name"`
	Src           Location          `json:"src"`
	Dest          Location          `json:"dest"`
	Volume        float64           `json:"volume"`
	Level         int               `json:"level"`
	SrcIsInput    bool              `json:"src_is_input"`
	SrcIsReagent  bool              `json:"src_is_reagent"`
	SrcFixedWell  string            `json:"src_well_fixed,omitempty"`
	DestFixedWell string            `json:"dest_well_fixed,omitempty"`
	Attributes    map[string]string `json:"attributes,omitempty"`
}

// Columns is the header written for every worklist table.
var Columns = []string{
	"src_name", "src_plate", "src_well", "src_idx", "src_row", "src_col", "src_plate_size", "src_pipette_idx",
	"dest_name", "dest_plate", "dest_well", "dest_idx", "dest_row", "dest_col", "dest_plate_size", "dest_pipette_idx",
	"volume", "level", "src_is_input", "src_is_reagent",
}

// Record flattens the row in Columns order.
func (r Row) Record() []string {
	out := make([]string, 0, len(Columns))
	out = append(out, r.SrcName)
	out = append(out, r.Src.fields()...)
	out = append(out, r.DestName)
	out = append(out, r.Dest.fields()...)
	return append(out,
		FormatVolume(r.Volume),
		strconv.Itoa(r.Level),
		strconv.FormatBool(r.SrcIsInput),
		strconv.FormatBool(r.SrcIsReagent),
	)
}

func (l Location) fields() []string {
	return []string{
		l.Plate,
		l.Well,
		strconv.Itoa(l.Index),
		strconv.Itoa(l.Row),
		strconv.Itoa(l.Col),
		strconv.Itoa(l.PlateSize),
		strconv.Itoa(l.PipetteIndex),
	}
}

// Clone returns a copy that does not share the attribute map.
func (r Row) Clone() Row {
	dup := r
	if r.Attributes != nil {
		dup.Attributes = make(map[string]string, len(r.Attributes))
		for k, v := range r.Attributes {
			dup.Attributes[k] = v
		}
	}
	return dup
}

// FormatVolume renders a volume without trailing zeros.
func FormatVolume(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// PlateNames configures the plate ids the compiler allocates into.
type PlateNames struct {
	Reagents string `json:"reagents"`
	Output   string `json:"output"`
	Input    string `json:"input"`
	// IntermediatePrefix is prepended to the level number naming
	// intermediate plates ("" gives "1", "2", ...).
	IntermediatePrefix string `json:"intermediate_prefix,omitempty"`
}

// DefaultPlateNames returns the stock plate naming.
func DefaultPlateNames() PlateNames {
	return PlateNames{Reagents: "reagents", Output: "output", Input: "input"}
}

// Intermediate returns the plate id for intermediates produced at level.
func (n PlateNames) Intermediate(level int) string {
	return n.IntermediatePrefix + strconv.Itoa(level)
}

// WithDefaults fills unset names from DefaultPlateNames.
func (n PlateNames) WithDefaults() PlateNames {
	def := DefaultPlateNames()
	if n.Reagents == "" {
		n.Reagents = def.Reagents
	}
	if n.Output == "" {
		n.Output = def.Output
	}
	if n.Input == "" {
		n.Input = def.Input
	}
	return n
}
