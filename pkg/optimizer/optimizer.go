// Package optimizer implements the driver (§4.10 of the design): it
// threads a program through the renamer, the fixpoint DCE loop, the
// register allocator, redundant-MOV removal, and a second fixpoint DCE
// loop, matching the order the source driver runs its passes in.
package optimizer

import (
	"github.com/vectorwave/isavopt/pkg/config"
	"github.com/vectorwave/isavopt/pkg/diag"
	"github.com/vectorwave/isavopt/pkg/isa"
	"github.com/vectorwave/isavopt/pkg/passes/attrload"
	"github.com/vectorwave/isavopt/pkg/passes/dce"
	"github.com/vectorwave/isavopt/pkg/passes/movelim"
	"github.com/vectorwave/isavopt/pkg/passes/regalloc"
	"github.com/vectorwave/isavopt/pkg/passes/rename"
	"github.com/vectorwave/isavopt/pkg/passes/scalarize"
	"github.com/vectorwave/isavopt/pkg/passes/waitpoint"
)

// Stats reports what each stage of a full Pipeline run did, for verbose
// reporting by the CLI.
type Stats struct {
	NamesUsed        uint32
	MaxLiveRegisters int
	DCERounds        int
}

// Optimize implements the core entry point: rename (unless noRename),
// DCE to a fixpoint, register allocation, redundant-MOV removal, and a
// second DCE fixpoint. It does not run attribute_to_lda, simd4_to_scalar,
// or assign_wait_points — those are independent stages callers compose
// around it (see Pipeline).
func Optimize(p isa.Program, arch config.Architecture, noRename, scalarMode, verbose bool, sink diag.Sink) (isa.Program, Stats, error) {
	var stats Stats
	report := func(format string, args ...any) {
		if verbose && sink != nil {
			sink.Warn(format, args...)
		}
	}

	cur := p
	if !noRename {
		res, err := rename.Run(cur, arch, scalarMode, sink)
		if err != nil {
			return isa.Program{}, stats, err
		}
		cur = res.Program
		stats.NamesUsed = res.NamesUsed
		report("optimize: renamed %d instructions into %d names", len(cur.Instructions), stats.NamesUsed)
	}

	cur, rounds, err := dceFixpoint(cur, report)
	if err != nil {
		return isa.Program{}, stats, err
	}
	stats.DCERounds += rounds

	allocResult, err := regalloc.Run(cur, arch)
	if err != nil {
		return isa.Program{}, stats, err
	}
	cur = allocResult.Program
	stats.MaxLiveRegisters = allocResult.MaxLiveRegisters
	report("optimize: register allocation used %d live registers at peak", stats.MaxLiveRegisters)

	cur, changed := movelim.Run(cur)
	if changed {
		report("optimize: redundant-MOV removal dropped at least one instruction")
	}

	cur, rounds, err = dceFixpoint(cur, report)
	if err != nil {
		return isa.Program{}, stats, err
	}
	stats.DCERounds += rounds

	if len(cur.Instructions) == 0 && sink != nil {
		sink.Warn("optimize: program entirely eliminated by dead-code elimination")
	}

	return cur, stats, nil
}

func dceFixpoint(p isa.Program, report func(string, ...any)) (isa.Program, int, error) {
	cur := p
	rounds := 0
	for {
		next, changed := dce.Run(cur)
		rounds++
		report("optimize: dead-code elimination round %d, changed=%v", rounds, changed)
		cur = next
		if !changed {
			return cur, rounds, nil
		}
	}
}

// Pipeline runs the full, caller-facing sequence: attribute loads are
// materialized, vector instructions are optionally lowered to scalar
// form, the core driver runs, and wait points are assigned over the
// final instruction order.
func Pipeline(p isa.Program, arch config.Architecture, scalarMode, verbose bool, sink diag.Sink) (isa.Program, Stats, error) {
	cur, err := attrload.Run(p, arch, freeTemps(p, arch))
	if err != nil {
		return isa.Program{}, Stats{}, err
	}

	if scalarMode {
		cur, err = scalarize.Run(cur, arch, freeTemps(cur, arch), sink)
		if err != nil {
			return isa.Program{}, Stats{}, err
		}
	}

	cur, stats, err := Optimize(cur, arch, false, scalarMode, verbose, sink)
	if err != nil {
		return isa.Program{}, stats, err
	}

	cur = waitpoint.Run(cur)
	return cur, stats, nil
}

// freeTemps lists the temp register ids in [0, arch.MaxTemporalRegisters)
// that p does not already use, lowest id first — recomputed after each
// stage that may have introduced new temp uses of its own.
func freeTemps(p isa.Program, arch config.Architecture) []isa.RegID {
	used := usedTemps(p)
	var free []isa.RegID
	for r := 0; r < arch.MaxTemporalRegisters; r++ {
		if !used[isa.RegID(r)] {
			free = append(free, isa.RegID(r))
		}
	}
	return free
}

func usedTemps(p isa.Program) map[isa.RegID]bool {
	used := map[isa.RegID]bool{}
	for _, in := range p.Instructions {
		if in.Dst.Bank == isa.BankTemp {
			used[in.Dst.Reg] = true
		}
		for k := 0; k < in.NumOperands(); k++ {
			if in.Src[k].Bank == isa.BankTemp {
				used[in.Src[k].Reg] = true
			}
		}
	}
	return used
}
