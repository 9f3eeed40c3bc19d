package isa

// Info is the static metadata attached to one opcode: everything that does
// not depend on a particular instance of the instruction.
type Info struct {
	Mnemonic string
	Arity    int
}

// Catalog maps every OpCode to its Info. Populated once in init() the same
// way the instruction tables below are grouped: one literal slice per
// opcode family, folded into the array.
var Catalog [OpCodeCount]Info

func init() {
	type entry struct {
		op       OpCode
		mnemonic string
	}

	families := [][]entry{
		{
			{NOP, "NOP"},
			{END, "END"},
		},
		{
			{ADD, "ADD"}, {ADDI, "ADDI"}, {MAD, "MAD"},
			{FXMAD, "FXMAD"}, {FXMAD2, "FXMAD2"},
			{MAX, "MAX"}, {MIN, "MIN"}, {MOV, "MOV"},
			{MUL, "MUL"}, {MULI, "MULI"}, {FXMUL, "FXMUL"},
			{CHS, "CHS"}, {CMP, "CMP"}, {ARL, "ARL"},
			{DDX, "DDX"}, {DDY, "DDY"},
		},
		{
			{DP3, "DP3"}, {DP4, "DP4"}, {DPH, "DPH"},
		},
		{
			{EX2, "EX2"}, {LG2, "LG2"}, {RCP, "RCP"}, {RSQ, "RSQ"},
			{FRC, "FRC"}, {EXP, "EXP"}, {LOG, "LOG"},
			{SIN, "SIN"}, {COS, "COS"},
		},
		{
			{DST, "DST"}, {LIT, "LIT"},
		},
		{
			{LDA, "LDA"}, {LDAI, "LDAI"},
			{TEX, "TEX"}, {TXB, "TXB"}, {TXL, "TXL"}, {TXP, "TXP"},
		},
		{
			{SETPEQ, "SETPEQ"}, {SETPGT, "SETPGT"}, {SETPLT, "SETPLT"},
			{STPEQI, "STPEQI"}, {STPGTI, "STPGTI"}, {STPLTI, "STPLTI"},
			{ANDP, "ANDP"}, {SGE, "SGE"}, {SLT, "SLT"},
		},
		{
			{JMP, "JMP"}, {KIL, "KIL"}, {KLS, "KLS"},
			{ZXP, "ZXP"}, {ZXS, "ZXS"}, {CMPKIL, "CMPKIL"},
		},
	}

	for _, family := range families {
		for _, e := range family {
			Catalog[e.op] = Info{Mnemonic: e.mnemonic, Arity: OperandArity(e.op)}
		}
	}

	for op := OpCode(0); op < OpCodeCount; op++ {
		if Catalog[op].Mnemonic == "" {
			panic("isa: opcode missing catalog entry")
		}
	}
}

// Mnemonic returns the textual mnemonic for op, or "???" for an
// unrecognized value — callers that must not silently miscompile should
// check IsValid first.
func Mnemonic(op OpCode) string {
	if !IsValid(op) {
		return "???"
	}
	return Catalog[op].Mnemonic
}

// AllOps returns every defined opcode in enumeration order.
func AllOps() []OpCode {
	ops := make([]OpCode, 0, OpCodeCount)
	for op := OpCode(0); op < OpCodeCount; op++ {
		ops = append(ops, op)
	}
	return ops
}

// LookupMnemonic returns the opcode for a mnemonic string, for assembling
// human-authored test fixtures and CLI input.
func LookupMnemonic(text string) (OpCode, bool) {
	for op := OpCode(0); op < OpCodeCount; op++ {
		if Catalog[op].Mnemonic == text {
			return op, true
		}
	}
	return 0, false
}
