package optimizer

import (
	"testing"

	"github.com/vectorwave/isavopt/pkg/config"
	"github.com/vectorwave/isavopt/pkg/diag"
	"github.com/vectorwave/isavopt/pkg/isa"
)

func TestPipelineLowersLoadsScalarizesAndAllocates(t *testing.T) {
	p := isa.NewProgram([]isa.Instruction{
		{
			Op:  isa.ADD,
			Dst: isa.Result{Bank: isa.BankTemp, Reg: 0, Mask: isa.FullMask},
			Src: [3]isa.Operand{
				{Bank: isa.BankInput, Reg: 0, Swizzle: isa.IdentitySwizzle},
				{Bank: isa.BankInput, Reg: 1, Swizzle: isa.IdentitySwizzle},
			},
		},
		{
			Op:  isa.MOV,
			Dst: isa.Result{Bank: isa.BankOutput, Reg: 0, Mask: isa.FullMask},
			Src: [3]isa.Operand{{Bank: isa.BankTemp, Reg: 0, Swizzle: isa.IdentitySwizzle}},
		},
	})

	out, stats, err := Pipeline(p, config.Default, true, false, diag.Discard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Instructions) == 0 {
		t.Fatalf("expected a surviving program")
	}
	if stats.NamesUsed == 0 {
		t.Fatalf("expected the renamer to have assigned names")
	}
	for _, in := range out.Instructions {
		for k := 0; k < in.NumOperands(); k++ {
			if in.Op != isa.LDA && in.Src[k].Bank == isa.BankInput {
				t.Fatalf("expected attribute_to_lda to leave LDA as the only direct attribute reader, found %s", isa.Mnemonic(in.Op))
			}
		}
		// SIMD4-result instructions (the LDAs here) pass through scalar_mode whole.
		if in.Dst.Bank == isa.BankTemp && !isa.HasSIMD4Result(in.Op) && in.Dst.Mask.Count() > 1 {
			t.Fatalf("expected scalar_mode to leave no multi-lane temp writes, got mask %04b", in.Dst.Mask)
		}
	}
}

func TestOptimizeReturnsEmptyProgramAfterTotalDCE(t *testing.T) {
	p := isa.NewProgram([]isa.Instruction{
		{
			Op:  isa.ADD,
			Dst: isa.Result{Bank: isa.BankTemp, Reg: 0, Mask: isa.FullMask},
			Src: [3]isa.Operand{
				{Bank: isa.BankTemp, Reg: 1, Swizzle: isa.IdentitySwizzle},
				{Bank: isa.BankTemp, Reg: 1, Swizzle: isa.IdentitySwizzle},
			},
		},
	})

	out, _, err := Optimize(p, config.Default, false, false, false, diag.Discard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Instructions) != 0 {
		t.Fatalf("expected the unread write to be eliminated entirely, got %d instructions", len(out.Instructions))
	}
}

func TestOptimizeNoRenameSkipsRenamer(t *testing.T) {
	p := isa.NewProgram([]isa.Instruction{
		{
			Op:  isa.MOV,
			Dst: isa.Result{Bank: isa.BankOutput, Reg: 0, Mask: isa.FullMask},
			Src: [3]isa.Operand{{Bank: isa.BankTemp, Reg: 0, Swizzle: isa.IdentitySwizzle}},
		},
	})

	_, stats, err := Optimize(p, config.Default, true, false, false, diag.Discard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.NamesUsed != 0 {
		t.Fatalf("expected no names assigned when no_rename is set, got %d", stats.NamesUsed)
	}
}
