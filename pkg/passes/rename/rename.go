// Package rename implements the SSA-like renaming pass: every value
// produced by a temp-writing instruction gets a fresh, monotonically
// increasing name, so later passes never have to reason about which
// physical write last touched a register.
package rename

import (
	"github.com/vectorwave/isavopt/pkg/config"
	"github.com/vectorwave/isavopt/pkg/diag"
	"github.com/vectorwave/isavopt/pkg/isa"
	"github.com/vectorwave/isavopt/pkg/swizzle"
)

// Result is the renamer's output: the renamed program plus the number of
// names assigned (names 1..NamesUsed; 0 means "undefined/pass-through").
type Result struct {
	Program   isa.Program
	NamesUsed uint32
}

// currentName tracks, per physical temp register and lane, the most
// recently assigned name — cleared to 0 ("undefined") at entry.
type nameTable [][isa.NumLanes]isa.RegID

func newNameTable(arch config.Architecture) nameTable {
	return make(nameTable, arch.MaxTemporalRegisters)
}

// Run renames every temp write in p. In scalarMode, copy-injection for a
// partial write emits one single-lane MOV per unwritten lane instead of
// one combined-mask MOV — the shape a scalar-pipeline target needs
// downstream.
func Run(p isa.Program, arch config.Architecture, scalarMode bool, sink diag.Sink) (Result, error) {
	names := newNameTable(arch)
	var next isa.RegID = 1

	var out []isa.Instruction

	isSelfCompareIdiom := func(in isa.Instruction) bool {
		if in.Op != isa.SLT && in.Op != isa.SGE {
			return false
		}
		a, b := in.Src[0], in.Src[1]
		return a.Bank == b.Bank && a.Reg == b.Reg && a.Swizzle == b.Swizzle &&
			a.Negate == b.Negate && a.Absolute == b.Absolute
	}

	for idx, in := range p.Instructions {
		renamed := in
		selfCompare := isSelfCompareIdiom(in)

		for k := 0; k < in.NumOperands(); k++ {
			src := in.Src[k]
			if src.Bank != isa.BankTemp {
				continue
			}
			read1, read2, read3 := swizzle.ReadComponentsByOpcode(in, writtenMaskOf(in))
			var readMask isa.Mask
			switch k {
			case 0:
				readMask = read1
			case 1:
				readMask = read2
			case 2:
				readMask = read3
			}
			max := isa.RegID(0)
			for _, l := range readMask.Lanes() {
				if n := names[src.Reg][l]; n > max {
					max = n
				}
			}
			if max == 0 && !selfCompare {
				if sink != nil {
					sink.Warn("rename_registers: operand %d of instruction %d reads t%d before any write", k, idx, src.Reg)
				}
			}
			renamed = renamed.CloneWithPatchedOperandRegister(k, isa.BankTemp, max)
		}

		if in.Dst.Bank == isa.BankTemp {
			name := next
			next++

			if in.Dst.Mask != isa.FullMask && !in.Pred.Enabled {
				prevMax := isa.RegID(0)
				for l := isa.Lane(0); l < isa.NumLanes; l++ {
					if in.Dst.Mask.Has(l) {
						continue
					}
					if n := names[in.Dst.Reg][l]; n > prevMax {
						prevMax = n
					}
				}
				unwritten := isa.FullMask.Without(in.Dst.Mask)
				if scalarMode {
					for _, l := range unwritten.Lanes() {
						out = append(out, isa.Instruction{
							Op:  isa.MOV,
							Dst: isa.Result{Bank: isa.BankTemp, Reg: name, Mask: isa.LaneMask(l)},
							Src: [3]isa.Operand{{Bank: isa.BankTemp, Reg: prevForLane(names, in.Dst.Reg, l), Swizzle: isa.Broadcast(l)}},
						})
					}
				} else if unwritten != isa.EmptyMask {
					out = append(out, isa.Instruction{
						Op:  isa.MOV,
						Dst: isa.Result{Bank: isa.BankTemp, Reg: name, Mask: unwritten},
						Src: [3]isa.Operand{{Bank: isa.BankTemp, Reg: prevMax, Swizzle: isa.IdentitySwizzle}},
					})
				}
			}

			renamed = renamed.CloneWithRenamedTemps(name)
			if in.Pred.Enabled {
				// A predicated write may not execute at runtime, so the
				// untouched lanes' liveness must not shift to the new name —
				// only the lanes actually named here move forward under N.
				for _, l := range in.Dst.Mask.Lanes() {
					names[in.Dst.Reg][l] = name
				}
			} else {
				// The injected copy (if any) made every lane live under the
				// new name, so the whole register advances uniformly.
				for l := isa.Lane(0); l < isa.NumLanes; l++ {
					names[in.Dst.Reg][l] = name
				}
			}
		}

		out = append(out, renamed)
	}

	return Result{Program: isa.Program{Instructions: isa.TransferEndFlag(out)}, NamesUsed: uint32(next - 1)}, nil
}

// prevForLane returns the most recent name of register reg at lane l, used
// to source per-lane copy MOVs in scalar mode.
func prevForLane(names nameTable, reg isa.RegID, l isa.Lane) isa.RegID {
	return names[reg][l]
}

func writtenMaskOf(in isa.Instruction) isa.Mask {
	return in.Dst.Mask
}
