// Package dce implements the dead-code-elimination pass: a forward walk
// over a renamed program marks result lanes that are overwritten before
// ever being read, then an emission pass drops or shrinks the instructions
// that produced them.
package dce

import (
	"github.com/vectorwave/isavopt/pkg/isa"
	"github.com/vectorwave/isavopt/pkg/swizzle"
)

// neverRemovable opcodes keep their full result even when every component
// they write goes unread: NOP/END/JMP carry no meaningful result to begin
// with, CHS and the kill/export family are kept whole by design, and
// CMPKIL's kill is a side effect independent of its dead comparison result.
var neverRemovable = map[isa.OpCode]bool{
	isa.NOP: true, isa.END: true, isa.CHS: true, isa.JMP: true,
	isa.KIL: true, isa.KLS: true, isa.ZXP: true, isa.ZXS: true,
	isa.CMPKIL: true,
}

type laneState struct {
	wasWritten  bool
	wasRead     bool
	writerIndex int
}

// Run performs one elimination pass over p. p may be renamed (SSA-like) or
// not: a lane rewritten before any read marks the earlier write dead. It
// reports whether anything changed, so the driver can iterate to a
// fixpoint rather than assume one pass removes everything dead.
func Run(p isa.Program) (isa.Program, bool) {
	state := map[isa.RegID]*[isa.NumLanes]laneState{}
	lanesOf := func(reg isa.RegID) *[isa.NumLanes]laneState {
		st, ok := state[reg]
		if !ok {
			st = &[isa.NumLanes]laneState{}
			state[reg] = st
		}
		return st
	}

	removed := make([]isa.Mask, len(p.Instructions))
	markDead := func(ls laneState, lane isa.Lane) {
		writer := p.Instructions[ls.writerIndex]
		if writer.Pred.Enabled || neverRemovable[writer.Op] {
			return
		}
		removed[ls.writerIndex] |= isa.LaneMask(lane)
	}

	for i, in := range p.Instructions {
		read1, read2, read3 := swizzle.ReadComponentsByOpcode(in, in.Dst.Mask)
		var reads [3]isa.Mask
		reads[0], reads[1], reads[2] = read1, read2, read3
		for k := 0; k < in.NumOperands(); k++ {
			src := in.Src[k]
			if src.Bank != isa.BankTemp {
				continue
			}
			st := lanesOf(src.Reg)
			for _, l := range reads[k].Lanes() {
				st[l].wasRead = true
			}
		}

		if in.Dst.Bank != isa.BankTemp {
			continue
		}
		st := lanesOf(in.Dst.Reg)
		for _, l := range in.Dst.Mask.Lanes() {
			ls := st[l]
			if ls.wasWritten && !ls.wasRead {
				markDead(ls, l)
			}
			if in.Pred.Enabled {
				// A predicated redefinition may not execute at runtime, so
				// a lane already read stays read across it.
				st[l] = laneState{wasWritten: true, wasRead: ls.wasRead, writerIndex: i}
			} else {
				st[l] = laneState{wasWritten: true, wasRead: false, writerIndex: i}
			}
		}
	}

	for _, st := range state {
		for l := isa.Lane(0); l < isa.NumLanes; l++ {
			ls := st[l]
			if ls.wasWritten && !ls.wasRead {
				markDead(ls, l)
			}
		}
	}

	changed := false
	var out []isa.Instruction
	for i, in := range p.Instructions {
		if in.Dst.Bank != isa.BankTemp || neverRemovable[in.Op] || removed[i] == isa.EmptyMask {
			out = append(out, in)
			continue
		}
		changed = true
		newMask := in.Dst.Mask.Without(removed[i])
		if newMask == isa.EmptyMask {
			continue
		}
		out = append(out, in.CloneWithPatchedWriteMask(newMask))
	}

	return isa.Program{Instructions: isa.TransferEndFlag(out)}, changed
}
