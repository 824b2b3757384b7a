// Package optimize runs the fixed-point pass pipeline over an ssa.Graph.
// Each pass is a pure function Graph -> Graph; Run applies them in order,
// repeating the whole pipeline until no pass reports a change or a safety
// cap is hit.
package optimize

import "github.com/wake-build/wake/internal/ssa"

// Pass is one named rewrite over a Graph. It returns the (possibly
// unchanged) graph and whether it changed anything, so Run can detect a
// fixed point.
type Pass struct {
	Name string
	Run  func(*ssa.Graph) (*ssa.Graph, bool)
}

// MaxRounds bounds the fixed-point loop: a generous backstop against an
// accidental non-terminating rewrite, far above what any real program's
// pipeline needs to converge.
const MaxRounds = 64

// DefaultPipeline is scope, cases, usage, purity, inline, decon, cse,
// sweep, ordered so each pass runs after the analyses it consumes.
func DefaultPipeline() []Pass {
	return []Pass{
		{"scope", PassScope},
		{"cases", PassCases},
		{"usage", PassUsage},
		{"purity", PassPurity},
		{"inline", PassInline},
		{"decon", PassDecon},
		{"cse", PassCSE},
		{"sweep", PassSweep},
	}
}

// Run applies pipeline to g repeatedly until a round changes nothing.
func Run(g *ssa.Graph, pipeline []Pass) *ssa.Graph {
	for round := 0; round < MaxRounds; round++ {
		changed := false
		for _, p := range pipeline {
			var c bool
			g, c = p.Run(g)
			changed = changed || c
		}
		if !changed {
			break
		}
	}
	return g
}
