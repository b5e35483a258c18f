package generator

import "github.com/dutradda/chunli/internal/chunli"

func init() {
	DefaultRegistry.MustRegister(NameCycle, func() Generator { return NewCycleGenerator(nil) })
}

// NameCycle is the registered name of the built-in cycling generator.
const NameCycle = "cycle"

// CycleGenerator replays a fixed list of CallGroups in order, wrapping back
// to the start. An empty generator always reports ErrExhausted instead.
type CycleGenerator struct {
	groups []chunli.CallGroup
	next   int
}

// NewCycleGenerator builds a CycleGenerator over groups. An empty slice is
// allowed; NextGroup then always returns ErrExhausted.
func NewCycleGenerator(groups []chunli.CallGroup) *CycleGenerator {
	return &CycleGenerator{groups: groups}
}

// Name implements Generator.
func (g *CycleGenerator) Name() string { return NameCycle }

// NextGroup implements Generator.
func (g *CycleGenerator) NextGroup() (chunli.CallGroup, error) {
	if len(g.groups) == 0 {
		return nil, ErrExhausted
	}
	group := g.groups[g.next]
	g.next = (g.next + 1) % len(g.groups)
	return group, nil
}
