package dce

import (
	"testing"

	"github.com/vectorwave/isavopt/pkg/isa"
)

func mov(dstMask isa.Mask, dstReg, srcReg isa.RegID) isa.Instruction {
	return isa.Instruction{
		Op:  isa.MOV,
		Dst: isa.Result{Bank: isa.BankTemp, Reg: dstReg, Mask: dstMask},
		Src: [3]isa.Operand{{Bank: isa.BankTemp, Reg: srcReg, Swizzle: isa.IdentitySwizzle}},
	}
}

func movToOutput(dstReg, srcReg isa.RegID) isa.Instruction {
	return isa.Instruction{
		Op:  isa.MOV,
		Dst: isa.Result{Bank: isa.BankOutput, Reg: dstReg, Mask: isa.FullMask},
		Src: [3]isa.Operand{{Bank: isa.BankTemp, Reg: srcReg, Swizzle: isa.IdentitySwizzle}},
	}
}

func TestRunRemovesOverwrittenUnreadWrite(t *testing.T) {
	p := isa.NewProgram([]isa.Instruction{
		mov(isa.FullMask, 1, 0), // dead: t1 fully overwritten below before any read
		mov(isa.FullMask, 1, 2),
		movToOutput(0, 1), // reads t1, keeps instruction 1 alive
	})

	out, changed := Run(p)
	if !changed {
		t.Fatalf("expected a change")
	}
	if len(out.Instructions) != 2 {
		t.Fatalf("expected 2 surviving instructions, got %d: %+v", len(out.Instructions), out.Instructions)
	}
	if out.Instructions[0].Src[0].Reg != 2 {
		t.Fatalf("expected surviving write to read t2, got t%d", out.Instructions[0].Src[0].Reg)
	}
	if !out.Instructions[len(out.Instructions)-1].EndOfProgram {
		t.Fatalf("expected end-of-program flag on last surviving instruction")
	}
}

func TestRunKeepsPartiallyOverwrittenWrite(t *testing.T) {
	p := isa.NewProgram([]isa.Instruction{
		mov(isa.FullMask, 1, 0),
		mov(isa.LaneMask(isa.LaneX)|isa.LaneMask(isa.LaneY), 1, 2), // only overwrites xy
		movToOutput(0, 1),                                         // reads all four lanes of t1
	})

	out, changed := Run(p)
	if !changed {
		t.Fatalf("expected a change (zw of the first write survives, xy is removed)")
	}
	if len(out.Instructions) != 3 {
		t.Fatalf("expected all 3 instructions to survive in shrunk form, got %d", len(out.Instructions))
	}
	want := isa.LaneMask(isa.LaneZ) | isa.LaneMask(isa.LaneW)
	if out.Instructions[0].Dst.Mask != want {
		t.Fatalf("expected first write's mask shrunk to zw, got %04b", out.Instructions[0].Dst.Mask)
	}
}

func TestRunDropsValueDeadAtEndOfProgram(t *testing.T) {
	p := isa.NewProgram([]isa.Instruction{
		mov(isa.FullMask, 1, 0), // never read by anything
		movToOutput(0, 3),
	})

	out, changed := Run(p)
	if !changed {
		t.Fatalf("expected a change")
	}
	if len(out.Instructions) != 1 {
		t.Fatalf("expected 1 surviving instruction, got %d", len(out.Instructions))
	}
	if out.Instructions[0].Dst.Bank != isa.BankOutput {
		t.Fatalf("expected surviving write to be the output write")
	}
}

func TestRunNeverDropsKillFamily(t *testing.T) {
	kil := isa.Instruction{
		Op:  isa.KIL,
		Src: [3]isa.Operand{{Bank: isa.BankTemp, Reg: 1, Swizzle: isa.IdentitySwizzle}},
	}
	p := isa.NewProgram([]isa.Instruction{mov(isa.FullMask, 1, 0), kil})

	out, changed := Run(p)
	if changed {
		t.Fatalf("expected no change: t1 is read by KIL, KIL itself has no result to shrink")
	}
	if len(out.Instructions) != 2 {
		t.Fatalf("expected both instructions preserved, got %d", len(out.Instructions))
	}
}

func TestRunKeepsPredicatedWriteEvenWhenUnread(t *testing.T) {
	predicated := mov(isa.FullMask, 1, 0)
	predicated.Pred = isa.Predicate{Enabled: true, Reg: 0}
	p := isa.NewProgram([]isa.Instruction{predicated})

	out, changed := Run(p)
	if changed {
		t.Fatalf("expected no change: a predicated write may not have executed, so it must not be pruned as dead")
	}
	if len(out.Instructions) != 1 {
		t.Fatalf("expected the predicated write preserved, got %d instructions", len(out.Instructions))
	}
}
