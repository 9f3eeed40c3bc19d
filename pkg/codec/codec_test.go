package codec

import (
	"testing"

	"github.com/vectorwave/isavopt/pkg/isa"
)

func TestRoundTripInstruction(t *testing.T) {
	in := isa.Instruction{
		Op: isa.MAD,
		Src: [3]isa.Operand{
			{Bank: isa.BankTemp, Reg: 3, Swizzle: isa.Broadcast(isa.LaneY), Negate: true},
			{Bank: isa.BankConst, Reg: 7, Swizzle: isa.IdentitySwizzle, Absolute: true},
			{Bank: isa.BankTemp, Reg: 1, Swizzle: isa.IdentitySwizzle},
		},
		Dst:     isa.Result{Bank: isa.BankTemp, Reg: 2, Mask: isa.LaneMask(isa.LaneX) | isa.LaneMask(isa.LaneZ), Saturate: true},
		Pred:    isa.Predicate{Enabled: true, Negated: true, Reg: 5},
		RelAddr: isa.RelativeAddress{Enabled: true, AddrReg: 4, Lane: isa.LaneW, Offset: -7},
		WaitPoint:    true,
		EndOfProgram: true,
	}

	wire := EncodeInstruction(in)
	out := DecodeInstruction(wire)
	if out != in {
		t.Fatalf("round trip mismatch:\n  in:  %+v\n  out: %+v", in, out)
	}
}

func TestRoundTripProgram(t *testing.T) {
	p := isa.NewProgram([]isa.Instruction{
		{Op: isa.MOV, Dst: isa.Result{Bank: isa.BankTemp, Reg: 0, Mask: isa.FullMask}, Src: [3]isa.Operand{{Bank: isa.BankInput, Reg: 1, Swizzle: isa.IdentitySwizzle}}},
		{Op: isa.NOP},
	})

	data := EncodeProgram(p)
	if len(data) != 2*InstructionSize {
		t.Fatalf("expected %d bytes, got %d", 2*InstructionSize, len(data))
	}
	out, err := DecodeProgram(data)
	if err != nil {
		t.Fatalf("DecodeProgram: %v", err)
	}
	if len(out.Instructions) != len(p.Instructions) {
		t.Fatalf("expected %d instructions, got %d", len(p.Instructions), len(out.Instructions))
	}
	for i := range p.Instructions {
		if out.Instructions[i] != p.Instructions[i] {
			t.Fatalf("instruction %d mismatch: %+v vs %+v", i, out.Instructions[i], p.Instructions[i])
		}
	}
}

func TestDecodeProgramRejectsPartialInstruction(t *testing.T) {
	if _, err := DecodeProgram(make([]byte, InstructionSize+1)); err == nil {
		t.Fatalf("expected an error for a length that isn't a multiple of %d", InstructionSize)
	}
}
