// Package scalarize implements the SIMD4-to-scalar lowering pass: vector
// instructions are split into independent single-lane instructions for
// targets whose execution pipeline is scalar.
package scalarize

import (
	"github.com/vectorwave/isavopt/pkg/config"
	"github.com/vectorwave/isavopt/pkg/diag"
	"github.com/vectorwave/isavopt/pkg/isa"
)

var passThrough = map[isa.OpCode]bool{
	isa.NOP: true, isa.END: true,
	isa.TEX: true, isa.TXB: true, isa.TXL: true, isa.TXP: true,
	isa.LDA: true, isa.LDAI: true,
	isa.KIL: true, isa.KLS: true, isa.ZXP: true, isa.ZXS: true,
	isa.CHS: true,
	isa.SETPEQ: true, isa.SETPGT: true, isa.SETPLT: true, isa.ANDP: true,
	isa.JMP:    true,
	isa.STPEQI: true, isa.STPGTI: true, isa.STPLTI: true,
	isa.DST: true, isa.EXP: true, isa.LIT: true, isa.LOG: true,
	isa.CMPKIL: true,
}

var elementwise = map[isa.OpCode]bool{
	isa.ADD: true, isa.ARL: true, isa.CMP: true, isa.MAD: true,
	isa.FXMAD: true, isa.FXMAD2: true, isa.MAX: true, isa.MIN: true,
	isa.MOV: true, isa.MUL: true, isa.FXMUL: true, isa.SGE: true,
	isa.SLT: true, isa.DDX: true, isa.DDY: true, isa.ADDI: true, isa.MULI: true,
}

var scalarCompute = map[isa.OpCode]bool{
	isa.EX2: true, isa.FRC: true, isa.LG2: true, isa.RCP: true, isa.RSQ: true,
	isa.SIN: true, isa.COS: true,
}

// Run lowers every vector instruction of p per §4.4's rules. freeTemps
// names registers not otherwise live in p; Run draws a single register
// from it as the dot-product accumulator for any DP3/DP4/DPH writing a
// non-temp destination, which §4.4 requires be a genuinely allocated
// temp, not a placeholder id. Run fails only if such an instruction is
// actually present and no free register remains. sink receives a warning
// for any opcode this pass does not recognize; such instructions are
// copied through unchanged rather than silently miscompiled.
func Run(p isa.Program, arch config.Architecture, freeTemps []isa.RegID, sink diag.Sink) (isa.Program, error) {
	scratch, err := scratchAccumulator(p, arch, freeTemps)
	if err != nil {
		return isa.Program{}, err
	}

	var out []isa.Instruction
	for _, in := range p.Instructions {
		out = append(out, lower(in, scratch, sink)...)
	}
	return isa.Program{Instructions: isa.TransferEndFlag(out)}, nil
}

// scratchAccumulator picks the lowest-numbered free temp register to use
// as the dot-product accumulator for any DP3/DP4/DPH instruction whose
// destination is not the temp bank.
func scratchAccumulator(p isa.Program, arch config.Architecture, freeTemps []isa.RegID) (isa.RegID, error) {
	needed := false
	for _, in := range p.Instructions {
		if isDotProduct(in.Op) && in.Dst.Bank != isa.BankTemp {
			needed = true
			break
		}
	}
	if !needed {
		return 0, nil
	}
	if len(freeTemps) == 0 {
		return 0, diag.Fatalf("no-free-temp", "simd4_to_scalar: no free temp register remains for a dot-product accumulator (max %d)", arch.MaxTemporalRegisters)
	}
	scratch := freeTemps[0]
	for _, t := range freeTemps[1:] {
		if t < scratch {
			scratch = t
		}
	}
	return scratch, nil
}

func isDotProduct(op isa.OpCode) bool {
	return op == isa.DP3 || op == isa.DP4 || op == isa.DPH
}

func lower(in isa.Instruction, scratch isa.RegID, sink diag.Sink) []isa.Instruction {
	switch {
	case passThrough[in.Op]:
		return []isa.Instruction{in}
	case in.Op == isa.DP3:
		return lowerDP3(in, scratch)
	case in.Op == isa.DP4:
		return lowerDP4(in, scratch)
	case in.Op == isa.DPH:
		return lowerDPH(in, scratch)
	case elementwise[in.Op]:
		return lowerElementwise(in)
	case scalarCompute[in.Op]:
		return lowerScalarCompute(in)
	default:
		if sink != nil {
			sink.Warn("simd4_to_scalar: unrecognized opcode %s, passing through unchanged", isa.Mnemonic(in.Op))
		}
		return []isa.Instruction{in}
	}
}

func accumulator(in isa.Instruction, scratch isa.RegID) (isa.Bank, isa.RegID) {
	if in.Dst.Bank == isa.BankTemp {
		return isa.BankTemp, in.Dst.Reg
	}
	// Outputs are write-only: accumulate into the caller-allocated scratch
	// temp and broadcast to the real destination at the end of the chain.
	return isa.BankTemp, scratch
}

func broadcastOperand(base isa.Operand, lane isa.Lane) isa.Operand {
	out := base
	out.Swizzle = isa.Broadcast(lane)
	return out
}

func lowerDP3(in isa.Instruction, scratch isa.RegID) []isa.Instruction {
	return lowerDotChain(in, scratch, []isa.Lane{isa.LaneX, isa.LaneY, isa.LaneZ}, []isa.Lane{isa.LaneX, isa.LaneY, isa.LaneZ}, false)
}

func lowerDP4(in isa.Instruction, scratch isa.RegID) []isa.Instruction {
	lanes := []isa.Lane{isa.LaneX, isa.LaneY, isa.LaneZ, isa.LaneW}
	return lowerDotChain(in, scratch, lanes, lanes, false)
}

func lowerDPH(in isa.Instruction, scratch isa.RegID) []isa.Instruction {
	// Homogeneous dot product: op1.xyz . op2.xyz, plus op2.w (op1's
	// implicit 4th lane is the constant 1.0). The data model has no
	// immediate-constant operand, so the "+1.0*op2.w" term is folded in
	// as a plain ADD of op2.w rather than a fourth MAD.
	return lowerDotChain(in, scratch, []isa.Lane{isa.LaneX, isa.LaneY, isa.LaneZ}, []isa.Lane{isa.LaneX, isa.LaneY, isa.LaneZ}, true)
}

func lowerDotChain(in isa.Instruction, scratch isa.RegID, lanes1, lanes2 []isa.Lane, dphTail bool) []isa.Instruction {
	written := in.Dst.Mask.Lanes()
	if len(written) == 0 {
		written = []isa.Lane{isa.LaneX}
	}
	accumBank, accumReg := accumulator(in, scratch)
	accumLane := written[0]
	accumMask := isa.LaneMask(accumLane)

	var chain []isa.Instruction
	mul := isa.Instruction{
		Op:   isa.MUL,
		Dst:  isa.Result{Bank: accumBank, Reg: accumReg, Mask: accumMask},
		Pred: in.Pred,
		Src:  [3]isa.Operand{broadcastOperand(in.Src[0], lanes1[0]), broadcastOperand(in.Src[1], lanes2[0])},
	}
	chain = append(chain, mul)

	accumRead := isa.Operand{Bank: accumBank, Reg: accumReg, Swizzle: isa.Broadcast(accumLane)}
	for i := 1; i < len(lanes1); i++ {
		mad := isa.Instruction{
			Op:   isa.MAD,
			Dst:  isa.Result{Bank: accumBank, Reg: accumReg, Mask: accumMask},
			Pred: in.Pred,
			Src:  [3]isa.Operand{broadcastOperand(in.Src[0], lanes1[i]), broadcastOperand(in.Src[1], lanes2[i]), accumRead},
		}
		chain = append(chain, mad)
	}

	if dphTail {
		add := isa.Instruction{
			Op:   isa.ADD,
			Dst:  isa.Result{Bank: accumBank, Reg: accumReg, Mask: accumMask},
			Pred: in.Pred,
			Src:  [3]isa.Operand{broadcastOperand(in.Src[1], isa.LaneW), accumRead},
		}
		chain = append(chain, add)
	}

	chain[len(chain)-1].Dst.Saturate = in.Dst.Saturate

	for _, l := range written[1:] {
		chain = append(chain, isa.Instruction{
			Op:   isa.MOV,
			Dst:  isa.Result{Bank: in.Dst.Bank, Reg: in.Dst.Reg, Mask: isa.LaneMask(l)},
			Pred: in.Pred,
			Src:  [3]isa.Operand{accumRead},
		})
	}
	if in.Dst.Bank != isa.BankTemp {
		chain = append(chain, isa.Instruction{
			Op:   isa.MOV,
			Dst:  isa.Result{Bank: in.Dst.Bank, Reg: in.Dst.Reg, Mask: accumMask},
			Pred: in.Pred,
			Src:  [3]isa.Operand{accumRead},
		})
	}

	chain[len(chain)-1].EndOfProgram = in.EndOfProgram
	return chain
}

func lowerElementwise(in isa.Instruction) []isa.Instruction {
	written := in.Dst.Mask.Lanes()
	arity := in.NumOperands()
	var out []isa.Instruction
	for _, l := range written {
		var srcLanes [3]isa.Lane
		for k := 0; k < arity; k++ {
			srcLanes[k] = in.Src[k].Swizzle.Lane(l)
		}
		out = append(out, in.CloneWithScalarOperandSwizzles(srcLanes, l))
	}
	if len(out) == 0 {
		return []isa.Instruction{in}
	}
	for i := range out {
		out[i].EndOfProgram = false
	}
	out[len(out)-1].EndOfProgram = in.EndOfProgram
	return out
}

func lowerScalarCompute(in isa.Instruction) []isa.Instruction {
	written := in.Dst.Mask.Lanes()
	if len(written) == 0 {
		return []isa.Instruction{in}
	}
	first := written[0]
	srcLane := in.Src[0].Swizzle.Lane(first)

	compute := in.CloneWithScalarOperandSwizzles([3]isa.Lane{srcLane}, first)
	compute.EndOfProgram = false
	out := []isa.Instruction{compute}

	for _, l := range written[1:] {
		out = append(out, isa.Instruction{
			Op:   isa.MOV,
			Dst:  isa.Result{Bank: in.Dst.Bank, Reg: in.Dst.Reg, Mask: isa.LaneMask(l), Saturate: in.Dst.Saturate},
			Pred: in.Pred,
			Src:  [3]isa.Operand{{Bank: in.Dst.Bank, Reg: in.Dst.Reg, Swizzle: isa.Broadcast(first)}},
		})
	}
	out[len(out)-1].EndOfProgram = in.EndOfProgram
	return out
}
