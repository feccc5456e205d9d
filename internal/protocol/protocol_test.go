package protocol

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worklistcore/internal/builder"
	"worklistcore/internal/plate"
	"worklistcore/internal/schedule"
	"worklistcore/internal/worklist"
	"worklistcore/pkg/domain"
)

const dilutionHCL = `
output = "exp-dil"

engine {
  rows             = 16
  cols             = 24
  order            = "column_major"
  metric           = "chebyshev"
  cycle_key        = "src"
  reagent_priority = ["water", "buffer"]
  max_family       = 4
}

component "water" { reagent = true }
component "oligoA" {
  well       = "B2"
  attributes = { supplier = "idt", scale = 25 }
}
component "oligoA_dil" {}
component "final" {}

transfer {
  from   = "water"
  to     = "oligoA_dil"
  volume = 180
}
transfer {
  from   = "oligoA"
  to     = "oligoA_dil"
  volume = 20
  attributes = { step = "dilute" }
}
transfer {
  from   = "oligoA_dil"
  to     = "final"
  volume = 10
}
`

func TestParseProtocol(t *testing.T) {
	p, err := Parse([]byte(dilutionHCL), "dil.hcl", worklist.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, builder.KindDeclarative, p.Kind())
	assert.Equal(t, "exp-dil", p.OutputName())

	cfg := p.Config()
	assert.Equal(t, 16, cfg.Rows)
	assert.Equal(t, 24, cfg.Cols)
	assert.Equal(t, plate.OrderColumnMajor, cfg.Order)
	assert.Equal(t, "chebyshev", cfg.Metric)
	assert.Equal(t, schedule.CycleSrc, cfg.CycleKey)
	assert.Equal(t, []string{"water", "buffer"}, cfg.ReagentPriority)
	assert.Equal(t, 4, cfg.MaxFamily)
	assert.Equal(t, "exp-dil", cfg.Names.Output)
	assert.Equal(t, "reagents", cfg.Names.Reagents)

	g, err := p.Build()
	require.NoError(t, err)
	oligo, ok := g.Component("oligoA")
	require.True(t, ok)
	assert.Equal(t, "B2", oligo.Well)
	assert.Equal(t, map[string]string{"supplier": "idt", "scale": "25"}, oligo.Attributes)
	preds := g.Predecessors("oligoA_dil")
	require.Len(t, preds, 2)
	assert.Equal(t, map[string]string{"step": "dilute"}, preds[1].Transfer.Attributes)
	assert.Nil(t, preds[0].Transfer.Attributes)
}

func TestProtocolCompiles(t *testing.T) {
	p, err := Parse([]byte(dilutionHCL), "dil.hcl", worklist.DefaultConfig())
	require.NoError(t, err)
	c, err := worklist.NewCompiler(p.Config())
	require.NoError(t, err)
	g, err := p.Build()
	require.NoError(t, err)
	res, err := c.Compile(context.Background(), g, nil)
	require.NoError(t, err)
	require.Len(t, res.Rows, 3)
	final, ok := res.Plate("exp-dil")
	require.True(t, ok)
	assert.Equal(t, 384, final.Size())
	input, ok := res.Plate("input")
	require.True(t, ok)
	assert.Equal(t, []string{"B2"}, input.Find(plate.Record{"id": "oligoA"}))
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`output = "o"
component "a" {}
component "b" {}
transfer {
  from   = "a"
  to     = "b"
  volume = 1.5
}
`), 0o600))
	p, err := Load(path, worklist.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, worklist.DefaultConfig().Rows, p.Config().Rows)
	g, err := p.Build()
	require.NoError(t, err)
	assert.Equal(t, 1.5, g.Transfers()[0].Volume)

	_, err = Load(filepath.Join(t.TempDir(), "missing.hcl"), worklist.DefaultConfig())
	assert.Error(t, err)
}

func TestUndeclaredComponentIsIntegrityError(t *testing.T) {
	p, err := Parse([]byte(`output = "o"
component "a" {}
transfer {
  from   = "a"
  to     = "ghost"
  volume = 1
}
`), "bad.hcl", worklist.DefaultConfig())
	require.NoError(t, err)
	_, err = p.Build()
	assert.ErrorIs(t, err, domain.ErrGraphIntegrity)
}

func TestParseErrors(t *testing.T) {
	cases := map[string]string{
		"syntax":         `output = `,
		"missing output": `component "a" {}`,
		"duplicate":      "output = \"o\"\ncomponent \"a\" {}\ncomponent \"a\" {}\n",
		"bad order":      "output = \"o\"\nengine {\n  order = \"spiral\"\n}\n",
		"bad metric":     "output = \"o\"\nengine {\n  metric = \"hamming\"\n}\n",
		"bad well":       "output = \"o\"\ncomponent \"a\" {\n  well = \"11\"\n}\n",
		"bad attributes": "output = \"o\"\ncomponent \"a\" {\n  attributes = [\"x\"]\n}\n",
		"unknown block":  "output = \"o\"\nstep \"x\" {}\n",
		"invalid rows":   "output = \"o\"\nengine {\n  rows = 0\n}\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(src), name+".hcl", worklist.DefaultConfig())
			assert.Error(t, err)
		})
	}
}
