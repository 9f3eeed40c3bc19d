// Package movelim implements redundant-MOV removal: the identity copies
// left over once the allocator has assigned a name's components to the
// same physical register and lanes it already occupied.
package movelim

import "github.com/vectorwave/isavopt/pkg/isa"

func isRedundant(in isa.Instruction) bool {
	if in.Op != isa.MOV || in.Dst.Saturate {
		return false
	}
	src := in.Src[0]
	if src.Bank != in.Dst.Bank || src.Reg != in.Dst.Reg {
		return false
	}
	if src.Negate || src.Absolute {
		return false
	}
	for _, l := range in.Dst.Mask.Lanes() {
		if src.Swizzle.Lane(l) != l {
			return false
		}
	}
	return true
}

// Run drops every MOV whose source and destination are identical register,
// bank, and lanes, reporting whether it removed anything.
func Run(p isa.Program) (isa.Program, bool) {
	var out []isa.Instruction
	changed := false
	for _, in := range p.Instructions {
		if isRedundant(in) {
			changed = true
			continue
		}
		out = append(out, in)
	}
	return isa.Program{Instructions: isa.TransferEndFlag(out)}, changed
}
