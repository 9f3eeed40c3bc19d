package attrload

import (
	"testing"

	"github.com/vectorwave/isavopt/pkg/config"
	"github.com/vectorwave/isavopt/pkg/isa"
)

func TestRunCollapsesPlainMovIntoLDA(t *testing.T) {
	p := isa.NewProgram([]isa.Instruction{
		{
			Op:  isa.MOV,
			Dst: isa.Result{Bank: isa.BankTemp, Reg: 0, Mask: isa.FullMask},
			Src: [3]isa.Operand{{Bank: isa.BankInput, Reg: 5, Swizzle: isa.IdentitySwizzle}},
		},
	})
	out, err := Run(p, config.Default, []isa.RegID{0, 1, 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Instructions) != 1 {
		t.Fatalf("expected the plain MOV collapsed into a single LDA, got %d instructions", len(out.Instructions))
	}
	if out.Instructions[0].Op != isa.LDA {
		t.Fatalf("expected LDA, got %v", out.Instructions[0].Op)
	}
}

func TestRunKeepsModifiedMovButLoadsFirst(t *testing.T) {
	p := isa.NewProgram([]isa.Instruction{
		{
			Op:  isa.MOV,
			Dst: isa.Result{Bank: isa.BankTemp, Reg: 0, Mask: isa.FullMask},
			Src: [3]isa.Operand{{Bank: isa.BankInput, Reg: 5, Negate: true, Swizzle: isa.IdentitySwizzle}},
		},
	})
	out, err := Run(p, config.Default, []isa.RegID{0, 1, 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Instructions) != 2 {
		t.Fatalf("expected an LDA followed by the original MOV, got %d instructions", len(out.Instructions))
	}
	if out.Instructions[0].Op != isa.LDA {
		t.Fatalf("expected the first instruction to be the inserted LDA")
	}
	if out.Instructions[1].Src[0].Bank != isa.BankTemp {
		t.Fatalf("expected the MOV's operand patched to the temp bank")
	}
}

func TestRunInsertsLDABeforeNonMovAttributeRead(t *testing.T) {
	p := isa.NewProgram([]isa.Instruction{
		{
			Op:  isa.ADD,
			Dst: isa.Result{Bank: isa.BankTemp, Reg: 0, Mask: isa.FullMask},
			Src: [3]isa.Operand{
				{Bank: isa.BankInput, Reg: 2, Swizzle: isa.IdentitySwizzle},
				{Bank: isa.BankInput, Reg: 2, Swizzle: isa.IdentitySwizzle},
			},
		},
	})
	out, err := Run(p, config.Default, []isa.RegID{1, 2, 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Instructions) != 2 {
		t.Fatalf("expected one inserted LDA plus the patched ADD, got %d instructions", len(out.Instructions))
	}
	if out.Instructions[0].Op != isa.LDA {
		t.Fatalf("expected the first instruction to be the inserted LDA, got %v", out.Instructions[0].Op)
	}
	add := out.Instructions[1]
	if add.Src[0].Bank != isa.BankTemp || add.Src[1].Bank != isa.BankTemp {
		t.Fatalf("expected both ADD operands patched to the temp bank")
	}
	if add.Src[0].Reg != add.Src[1].Reg {
		t.Fatalf("expected both reads of the same attribute to share one binding")
	}
}

func TestRunFailsWhenNoFreeTemp(t *testing.T) {
	// A modified MOV (here, negated) cannot collapse into a single LDA, so
	// it must go through the general bind path and actually consume a free
	// temp — unlike a plain MOV into the temp bank, whose own destination
	// serves as the binding.
	p := isa.NewProgram([]isa.Instruction{
		{
			Op:  isa.MOV,
			Dst: isa.Result{Bank: isa.BankTemp, Reg: 0, Mask: isa.FullMask},
			Src: [3]isa.Operand{{Bank: isa.BankInput, Reg: 5, Negate: true, Swizzle: isa.IdentitySwizzle}},
		},
	})
	if _, err := Run(p, config.Default, nil); err == nil {
		t.Fatalf("expected a no-free-temp error")
	}
}

func TestRunCollapsedPlainMovDoesNotConsumeAFreeTemp(t *testing.T) {
	p := isa.NewProgram([]isa.Instruction{
		{
			Op:  isa.MOV,
			Dst: isa.Result{Bank: isa.BankTemp, Reg: 0, Mask: isa.FullMask},
			Src: [3]isa.Operand{{Bank: isa.BankInput, Reg: 5, Swizzle: isa.IdentitySwizzle}},
		},
	})
	// No free temps at all; the plain collapse must still succeed because
	// it binds the attribute directly to its own destination register
	// instead of drawing from freeTemps.
	out, err := Run(p, config.Default, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Instructions) != 1 || out.Instructions[0].Op != isa.LDA {
		t.Fatalf("expected a single collapsed LDA, got %+v", out.Instructions)
	}
	if out.Instructions[0].Dst.Reg != 0 {
		t.Fatalf("expected the LDA to write the MOV's own destination register, got t%d", out.Instructions[0].Dst.Reg)
	}
}
