package isa

// Program is an ordered sequence of instructions. Exactly one instruction
// carries EndOfProgram = true: the last reachable one. Jumps are opaque
// barriers — passes never reason across them.
type Program struct {
	Instructions []Instruction
}

// NewProgram wraps instrs into a Program, promoting the end-of-program flag
// to the last instruction if the caller didn't set one.
func NewProgram(instrs []Instruction) Program {
	p := Program{Instructions: instrs}
	if len(instrs) == 0 {
		return p
	}
	for _, in := range instrs {
		if in.EndOfProgram {
			return p
		}
	}
	p.Instructions[len(p.Instructions)-1].EndOfProgram = true
	return p
}

// Len returns the instruction count.
func (p Program) Len() int { return len(p.Instructions) }

// EndIndex returns the index of the first instruction carrying
// EndOfProgram, or -1 if no instruction carries it.
func (p Program) EndIndex() int {
	for i, in := range p.Instructions {
		if in.EndOfProgram {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy; since Instruction is a value type, copying the
// backing slice is sufficient.
func (p Program) Clone() Program {
	out := make([]Instruction, len(p.Instructions))
	copy(out, p.Instructions)
	return Program{Instructions: out}
}

// TransferEndFlag moves EndOfProgram from wherever it currently is to the
// last instruction of the sequence. Used after a pass drops the final
// instruction of the input program.
func TransferEndFlag(instrs []Instruction) []Instruction {
	if len(instrs) == 0 {
		return instrs
	}
	for i := range instrs {
		instrs[i].EndOfProgram = false
	}
	instrs[len(instrs)-1].EndOfProgram = true
	return instrs
}
