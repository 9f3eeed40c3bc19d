// Package codec implements the fixed 16-byte binary instruction format:
// decode_program / encode_program from the external interface. The core
// optimizer never depends on this package — callers decode a program,
// hand it to pkg/optimizer, and encode the result back.
package codec

import (
	"fmt"

	"github.com/vectorwave/isavopt/pkg/isa"
)

// InstructionSize is the fixed on-the-wire size of one instruction.
const InstructionSize = 16

// flag bits within byte 1.
const (
	flagEnd byte = 1 << iota
	flagWait
	flagSaturate
	flagPredEnabled
	flagPredNegated
	flagRelAddrEnabled
	flagRelAddrLane0
	flagRelAddrLane1
)

// EncodeInstruction renders in into the fixed 16-byte wire format. Register
// ids are architectural indices at this boundary (bounded by
// config.Architecture, always small), so they narrow to a single byte;
// the wider in-memory isa.RegID only matters after renaming, which never
// crosses this boundary.
func EncodeInstruction(in isa.Instruction) [InstructionSize]byte {
	var b [InstructionSize]byte
	b[0] = byte(in.Op)

	var flags byte
	if in.EndOfProgram {
		flags |= flagEnd
	}
	if in.WaitPoint {
		flags |= flagWait
	}
	if in.Dst.Saturate {
		flags |= flagSaturate
	}
	if in.Pred.Enabled {
		flags |= flagPredEnabled
	}
	if in.Pred.Negated {
		flags |= flagPredNegated
	}
	if in.RelAddr.Enabled {
		flags |= flagRelAddrEnabled
		flags |= byte(in.RelAddr.Lane&0b01) << 6
		flags |= byte((in.RelAddr.Lane>>1)&0b01) << 7
	}
	b[1] = flags

	b[2] = byte(in.Dst.Bank)<<4 | byte(in.Dst.Mask)
	b[3] = byte(in.Dst.Reg)
	b[4] = byte(in.Pred.Reg)
	b[5] = byte(in.RelAddr.AddrReg)
	b[6] = byte(int8(in.RelAddr.Offset))

	for k := 0; k < 3; k++ {
		base := 7 + k*3
		src := in.Src[k]
		meta := byte(src.Bank) << 4
		if src.Negate {
			meta |= 0b1000
		}
		if src.Absolute {
			meta |= 0b0100
		}
		b[base] = meta
		b[base+1] = byte(src.Swizzle)
		b[base+2] = byte(src.Reg)
	}

	return b
}

// DecodeInstruction reconstructs an instruction from its 16-byte wire form.
func DecodeInstruction(b [InstructionSize]byte) isa.Instruction {
	var in isa.Instruction
	in.Op = isa.OpCode(b[0])

	flags := b[1]
	in.EndOfProgram = flags&flagEnd != 0
	in.WaitPoint = flags&flagWait != 0
	in.Dst.Saturate = flags&flagSaturate != 0
	in.Pred.Enabled = flags&flagPredEnabled != 0
	in.Pred.Negated = flags&flagPredNegated != 0
	in.RelAddr.Enabled = flags&flagRelAddrEnabled != 0
	in.RelAddr.Lane = isa.Lane(((flags>>6)&1) | (((flags>>7)&1)<<1))

	in.Dst.Bank = isa.Bank(b[2] >> 4)
	in.Dst.Mask = isa.Mask(b[2] & 0b1111)
	in.Dst.Reg = isa.RegID(b[3])
	in.Pred.Reg = isa.RegID(b[4])
	in.RelAddr.AddrReg = isa.RegID(b[5])
	in.RelAddr.Offset = int16(int8(b[6]))

	for k := 0; k < 3; k++ {
		base := 7 + k*3
		meta := b[base]
		in.Src[k].Bank = isa.Bank(meta >> 4)
		in.Src[k].Negate = meta&0b1000 != 0
		in.Src[k].Absolute = meta&0b0100 != 0
		in.Src[k].Swizzle = isa.Swizzle(b[base+1])
		in.Src[k].Reg = isa.RegID(b[base+2])
	}

	return in
}

// EncodeProgram renders every instruction of p back to back.
func EncodeProgram(p isa.Program) []byte {
	out := make([]byte, 0, len(p.Instructions)*InstructionSize)
	for _, in := range p.Instructions {
		wire := EncodeInstruction(in)
		out = append(out, wire[:]...)
	}
	return out
}

// DecodeProgram parses a byte stream produced by EncodeProgram. It returns
// an error if the length isn't a whole number of instructions.
func DecodeProgram(data []byte) (isa.Program, error) {
	if len(data)%InstructionSize != 0 {
		return isa.Program{}, fmt.Errorf("codec: %d bytes is not a multiple of the %d-byte instruction size", len(data), InstructionSize)
	}
	count := len(data) / InstructionSize
	instrs := make([]isa.Instruction, count)
	for i := 0; i < count; i++ {
		var wire [InstructionSize]byte
		copy(wire[:], data[i*InstructionSize:(i+1)*InstructionSize])
		instrs[i] = DecodeInstruction(wire)
	}
	return isa.Program{Instructions: instrs}, nil
}
