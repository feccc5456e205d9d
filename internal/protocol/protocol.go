// Package protocol loads declarative protocol files written in HCL:
//
//	output = "exp-dil"
//
//	engine {
//	  rows             = 8
//	  cols             = 12
//	  order            = "row_major"
//	  metric           = "cityblock"
//	  reagent_priority = ["water", "buffer"]
//	}
//
//	component "water" { reagent = true }
//	component "oligoA" {
//	  well       = "A1"
//	  attributes = { supplier = "idt" }
//	}
//	component "oligoA_dil" {}
//
//	transfer {
//	  from   = "water"
//	  to     = "oligoA_dil"
//	  volume = 180
//	}
package protocol

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"

	"worklistcore/internal/builder"
	"worklistcore/internal/graph"
	"worklistcore/internal/locate"
	"worklistcore/internal/plate"
	"worklistcore/internal/schedule"
	"worklistcore/internal/worklist"
)

type hclFile struct {
	Output     string          `hcl:"output"`
	Engine     *hclEngine      `hcl:"engine,block"`
	Components []*hclComponent `hcl:"component,block"`
	Transfers  []*hclTransfer  `hcl:"transfer,block"`
}

type hclEngine struct {
	Rows               *int     `hcl:"rows,optional"`
	Cols               *int     `hcl:"cols,optional"`
	Order              *string  `hcl:"order,optional"`
	Metric             *string  `hcl:"metric,optional"`
	CycleKey           *string  `hcl:"cycle_key,optional"`
	ReagentPriority    []string `hcl:"reagent_priority,optional"`
	MaxFamily          *int     `hcl:"max_family,optional"`
	Workers            *int     `hcl:"workers,optional"`
	ReagentsPlate      *string  `hcl:"reagents_plate,optional"`
	InputPlate         *string  `hcl:"input_plate,optional"`
	IntermediatePrefix *string  `hcl:"intermediate_prefix,optional"`
}

type hclComponent struct {
	Name       string         `hcl:"name,label"`
	Reagent    bool           `hcl:"reagent,optional"`
	Well       string         `hcl:"well,optional"`
	Attributes hcl.Expression `hcl:"attributes,optional"`
}

type hclTransfer struct {
	From       string         `hcl:"from"`
	To         string         `hcl:"to"`
	Volume     float64        `hcl:"volume"`
	Attributes hcl.Expression `hcl:"attributes,optional"`
}

type transfer struct {
	from, to string
	volume   float64
	attrs    map[string]string
}

// Protocol is a parsed protocol file. It implements builder.Builder.
type Protocol struct {
	output     string
	config     worklist.Config
	components []graph.Component
	transfers  []transfer
}

var _ builder.Builder = (*Protocol)(nil)

// Load reads and parses a protocol file. Settings in its engine block
// override base.
func Load(path string, base worklist.Config) (*Protocol, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read protocol: %w", err)
	}
	return Parse(src, path, base)
}

// Parse parses protocol source; filename is used in diagnostics only.
func Parse(src []byte, filename string, base worklist.Config) (*Protocol, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse protocol %s: %w", filename, diags)
	}
	var parsed hclFile
	if diags := gohcl.DecodeBody(file.Body, nil, &parsed); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode protocol %s: %w", filename, diags)
	}
	if parsed.Output == "" {
		return nil, fmt.Errorf("protocol %s: output must not be empty", filename)
	}

	cfg, err := applyEngine(base, parsed.Engine)
	if err != nil {
		return nil, fmt.Errorf("protocol %s: %w", filename, err)
	}
	cfg.Names.Output = parsed.Output

	p := &Protocol{output: parsed.Output, config: cfg}
	seen := map[string]bool{}
	for _, c := range parsed.Components {
		if seen[c.Name] {
			return nil, fmt.Errorf("protocol %s: component %q declared twice", filename, c.Name)
		}
		seen[c.Name] = true
		attrs, err := stringMap(c.Attributes)
		if err != nil {
			return nil, fmt.Errorf("protocol %s: component %q: %w", filename, c.Name, err)
		}
		if c.Well != "" {
			if _, _, err := plate.ParseWell(c.Well); err != nil {
				return nil, fmt.Errorf("protocol %s: component %q: %w", filename, c.Name, err)
			}
		}
		p.components = append(p.components, graph.Component{Name: c.Name, IsReagent: c.Reagent, Well: c.Well, Attributes: attrs})
	}
	for i, t := range parsed.Transfers {
		attrs, err := stringMap(t.Attributes)
		if err != nil {
			return nil, fmt.Errorf("protocol %s: transfer %d: %w", filename, i+1, err)
		}
		p.transfers = append(p.transfers, transfer{from: t.From, to: t.To, volume: t.Volume, attrs: attrs})
	}
	return p, nil
}

// Kind implements builder.Builder.
func (p *Protocol) Kind() builder.Kind { return builder.KindDeclarative }

// OutputName implements builder.Builder.
func (p *Protocol) OutputName() string { return p.output }

// Config is the engine configuration after applying the file's engine block.
func (p *Protocol) Config() worklist.Config { return p.config }

// Build implements builder.Builder. Each call returns a fresh graph.
func (p *Protocol) Build() (*graph.Graph, error) {
	g := graph.New()
	for _, c := range p.components {
		g.AddComponent(c)
	}
	for _, t := range p.transfers {
		if err := g.AddTransfer(t.from, t.to, t.volume, t.attrs); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func applyEngine(cfg worklist.Config, e *hclEngine) (worklist.Config, error) {
	if e == nil {
		return cfg, nil
	}
	if e.Rows != nil {
		cfg.Rows = *e.Rows
	}
	if e.Cols != nil {
		cfg.Cols = *e.Cols
	}
	if e.Order != nil {
		o, err := plate.ParseOrder(*e.Order)
		if err != nil {
			return cfg, err
		}
		cfg.Order = o
	}
	if e.Metric != nil {
		if _, err := locate.ParseMetric(*e.Metric); err != nil {
			return cfg, err
		}
		cfg.Metric = *e.Metric
	}
	if e.CycleKey != nil {
		k, err := schedule.ParseCycleKey(*e.CycleKey)
		if err != nil {
			return cfg, err
		}
		cfg.CycleKey = k
	}
	if e.ReagentPriority != nil {
		cfg.ReagentPriority = e.ReagentPriority
	}
	if e.MaxFamily != nil {
		cfg.MaxFamily = *e.MaxFamily
	}
	if e.Workers != nil {
		cfg.Workers = *e.Workers
	}
	if e.ReagentsPlate != nil {
		cfg.Names.Reagents = *e.ReagentsPlate
	}
	if e.InputPlate != nil {
		cfg.Names.Input = *e.InputPlate
	}
	if e.IntermediatePrefix != nil {
		cfg.Names.IntermediatePrefix = *e.IntermediatePrefix
	}
	return cfg, cfg.Validate()
}

// stringMap evaluates an attributes expression into a string map. Numbers
// and bools are converted to their string form.
func stringMap(expr hcl.Expression) (map[string]string, error) {
	if expr == nil {
		return nil, nil
	}
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, diags
	}
	if val.IsNull() {
		return nil, nil
	}
	if !val.IsWhollyKnown() {
		return nil, fmt.Errorf("attributes must be known values")
	}
	converted, err := convert.Convert(val, cty.Map(cty.String))
	if err != nil {
		return nil, fmt.Errorf("attributes must be a map of strings: %w", err)
	}
	var out map[string]string
	if err := gocty.FromCtyValue(converted, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}
