package movelim

import (
	"testing"

	"github.com/vectorwave/isavopt/pkg/isa"
)

func TestRunRemovesIdentityMov(t *testing.T) {
	p := isa.NewProgram([]isa.Instruction{
		{Op: isa.ADD, Dst: isa.Result{Bank: isa.BankTemp, Reg: 1, Mask: isa.FullMask}, Src: [3]isa.Operand{{Bank: isa.BankTemp, Reg: 0, Swizzle: isa.IdentitySwizzle}, {Bank: isa.BankTemp, Reg: 0, Swizzle: isa.IdentitySwizzle}}},
		{Op: isa.MOV, Dst: isa.Result{Bank: isa.BankTemp, Reg: 1, Mask: isa.FullMask}, Src: [3]isa.Operand{{Bank: isa.BankTemp, Reg: 1, Swizzle: isa.IdentitySwizzle}}},
	})

	out, changed := Run(p)
	if !changed {
		t.Fatalf("expected a change")
	}
	if len(out.Instructions) != 1 {
		t.Fatalf("expected 1 surviving instruction, got %d", len(out.Instructions))
	}
	if !out.Instructions[0].EndOfProgram {
		t.Fatalf("expected end-of-program flag promoted to the surviving instruction")
	}
}

func TestRunKeepsCrossRegisterMov(t *testing.T) {
	in := isa.Instruction{Op: isa.MOV, Dst: isa.Result{Bank: isa.BankTemp, Reg: 1, Mask: isa.FullMask}, Src: [3]isa.Operand{{Bank: isa.BankTemp, Reg: 2, Swizzle: isa.IdentitySwizzle}}}
	p := isa.NewProgram([]isa.Instruction{in})

	out, changed := Run(p)
	if changed {
		t.Fatalf("expected no change")
	}
	if len(out.Instructions) != 1 {
		t.Fatalf("expected the MOV preserved")
	}
}

func TestRunKeepsSwizzlingMov(t *testing.T) {
	in := isa.Instruction{
		Op:  isa.MOV,
		Dst: isa.Result{Bank: isa.BankTemp, Reg: 1, Mask: isa.FullMask},
		Src: [3]isa.Operand{{Bank: isa.BankTemp, Reg: 1, Swizzle: isa.Broadcast(isa.LaneX)}},
	}
	p := isa.NewProgram([]isa.Instruction{in})

	out, changed := Run(p)
	if changed {
		t.Fatalf("expected no change: this MOV rearranges lanes, it is not an identity copy")
	}
	if len(out.Instructions) != 1 {
		t.Fatalf("expected the MOV preserved")
	}
}
