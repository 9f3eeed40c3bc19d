// Package waitpoint implements the wait-point pass: it marks the
// instruction immediately before any read, or same-destination rewrite, of
// a still-pending texture or attribute load, so the driver knows exactly
// where execution must stall for that load to retire.
package waitpoint

import (
	"github.com/vectorwave/isavopt/pkg/isa"
	"github.com/vectorwave/isavopt/pkg/swizzle"
)

var loadOps = map[isa.OpCode]bool{
	isa.LDA: true, isa.LDAI: true,
	isa.TEX: true, isa.TXB: true, isa.TXL: true, isa.TXP: true,
}

// Run returns a copy of p with WaitPoint set on every instruction that
// must be followed by a stall for a pending load.
func Run(p isa.Program) isa.Program {
	out := make([]isa.Instruction, len(p.Instructions))
	copy(out, p.Instructions)

	pending := map[isa.RegID]isa.Mask{}

	retireAll := func(beforeIdx int) {
		if beforeIdx < 0 {
			return
		}
		out[beforeIdx].WaitPoint = true
		pending = map[isa.RegID]isa.Mask{}
	}

	for i, in := range p.Instructions {
		read1, read2, read3 := swizzle.ReadComponentsByOpcode(in, in.Dst.Mask)
		reads := [3]isa.Mask{read1, read2, read3}

		needsWait := false
		for k := 0; k < in.NumOperands(); k++ {
			src := in.Src[k]
			if src.Bank != isa.BankTemp {
				continue
			}
			if pm, ok := pending[src.Reg]; ok && pm&reads[k] != 0 {
				needsWait = true
			}
		}
		if in.Dst.Bank == isa.BankTemp {
			if pm, ok := pending[in.Dst.Reg]; ok && pm&in.Dst.Mask != 0 {
				needsWait = true
			}
		}
		if needsWait {
			retireAll(i - 1)
		}

		if loadOps[in.Op] && in.Dst.Bank == isa.BankTemp && in.Dst.Mask != isa.EmptyMask {
			pending[in.Dst.Reg] = pending[in.Dst.Reg] | in.Dst.Mask
		}
	}

	return isa.Program{Instructions: out}
}
