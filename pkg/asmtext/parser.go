package asmtext

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"

	"github.com/vectorwave/isavopt/pkg/isa"
)

var textParser = participle.MustBuild[astProgram](
	participle.Lexer(Lexer),
	participle.Elide("Whitespace", "Comment"),
	participle.UseLookahead(2),
)

var bankPrefixes = map[string]isa.Bank{
	"t":       isa.BankTemp,
	"in":      isa.BankInput,
	"out":     isa.BankOutput,
	"c":       isa.BankConst,
	"a":       isa.BankAddr,
	"p":       isa.BankPredicate,
	"sampler": isa.BankSampler,
	"tex":     isa.BankTexture,
}

var bankNames = map[isa.Bank]string{
	isa.BankTemp:      "t",
	isa.BankInput:     "in",
	isa.BankOutput:    "out",
	isa.BankConst:     "c",
	isa.BankAddr:      "a",
	isa.BankPredicate: "p",
	isa.BankSampler:   "sampler",
	isa.BankTexture:   "tex",
}

var laneLetters = [isa.NumLanes]byte{'x', 'y', 'z', 'w'}

func laneFromLetter(c byte) (isa.Lane, error) {
	switch c {
	case 'x', 'X':
		return isa.LaneX, nil
	case 'y', 'Y':
		return isa.LaneY, nil
	case 'z', 'Z':
		return isa.LaneZ, nil
	case 'w', 'W':
		return isa.LaneW, nil
	}
	return 0, fmt.Errorf("asmtext: unrecognized lane letter %q", c)
}

// splitReg splits a token like "t0" or "sampler12" into its bank prefix
// and numeric id.
func splitReg(tok string) (isa.Bank, isa.RegID, error) {
	i := 0
	for i < len(tok) && (tok[i] < '0' || tok[i] > '9') {
		i++
	}
	prefix, digits := tok[:i], tok[i:]
	bank, ok := bankPrefixes[prefix]
	if !ok {
		return 0, 0, fmt.Errorf("asmtext: unrecognized register bank %q in %q", prefix, tok)
	}
	if digits == "" {
		return bank, 0, nil
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, 0, fmt.Errorf("asmtext: bad register id in %q: %w", tok, err)
	}
	return bank, isa.RegID(n), nil
}

// resultMask converts a dot-suffix like ".xyz" into a write-mask. A missing
// suffix defaults to the full mask.
func resultMask(suffix string) (isa.Mask, error) {
	if suffix == "" {
		return isa.FullMask, nil
	}
	mask := isa.EmptyMask
	for i := 1; i < len(suffix); i++ {
		lane, err := laneFromLetter(suffix[i])
		if err != nil {
			return 0, err
		}
		mask |= isa.LaneMask(lane)
	}
	return mask, nil
}

// operandSwizzle converts a dot-suffix into a swizzle. A single-letter
// suffix broadcasts that lane; a missing suffix is the identity swizzle.
func operandSwizzle(suffix string) (isa.Swizzle, error) {
	if suffix == "" {
		return isa.IdentitySwizzle, nil
	}
	letters := suffix[1:]
	lanes := make([]isa.Lane, 0, len(letters))
	for i := 0; i < len(letters); i++ {
		lane, err := laneFromLetter(letters[i])
		if err != nil {
			return 0, err
		}
		lanes = append(lanes, lane)
	}
	var sw isa.Swizzle
	for out := isa.Lane(0); out < isa.NumLanes; out++ {
		src := lanes[len(lanes)-1]
		if int(out) < len(lanes) {
			src = lanes[out]
		}
		sw = sw.WithLane(out, src)
	}
	return sw, nil
}

func buildOperand(a *astOperand) (isa.Operand, error) {
	bank, reg, err := splitReg(a.Reg)
	if err != nil {
		return isa.Operand{}, err
	}
	sw, err := operandSwizzle(a.Swizzle)
	if err != nil {
		return isa.Operand{}, err
	}
	return isa.Operand{
		Bank:     bank,
		Reg:      reg,
		Swizzle:  sw,
		Negate:   a.Negate,
		Absolute: a.AbsOpen || a.AbsClose,
	}, nil
}

func buildInstruction(line *astLine) (isa.Instruction, error) {
	op, ok := isa.LookupMnemonic(strings.ToUpper(line.Op))
	if !ok {
		return isa.Instruction{}, fmt.Errorf("asmtext: unrecognized mnemonic %q", line.Op)
	}
	in := isa.Instruction{Op: op}

	if line.Dst != nil {
		bank, reg, err := splitReg(line.Dst.Reg)
		if err != nil {
			return isa.Instruction{}, err
		}
		mask, err := resultMask(line.Dst.Swizzle)
		if err != nil {
			return isa.Instruction{}, err
		}
		in.Dst = isa.Result{Bank: bank, Reg: reg, Mask: mask}
	}

	if len(line.Src) > 3 {
		return isa.Instruction{}, fmt.Errorf("asmtext: too many operands on %q", line.Op)
	}
	for k, src := range line.Src {
		operand, err := buildOperand(src)
		if err != nil {
			return isa.Instruction{}, err
		}
		in.Src[k] = operand
	}

	if line.Pred != nil {
		_, reg, err := splitReg(line.Pred.Reg)
		if err != nil {
			return isa.Instruction{}, err
		}
		in.Pred = isa.Predicate{Enabled: true, Negated: line.Pred.Negated, Reg: reg}
	}

	for _, flag := range line.Flags {
		switch flag {
		case "end":
			in.EndOfProgram = true
		case "wait":
			in.WaitPoint = true
		case "sat":
			in.Dst.Saturate = true
		default:
			return isa.Instruction{}, fmt.Errorf("asmtext: unrecognized flag %q", flag)
		}
	}

	return in, nil
}

// Parse reads a textual ISA-V program, one instruction per line.
func Parse(source string) (isa.Program, error) {
	ast, err := textParser.ParseString("", source)
	if err != nil {
		return isa.Program{}, fmt.Errorf("asmtext: %w", err)
	}
	instrs := make([]isa.Instruction, 0, len(ast.Lines))
	for _, line := range ast.Lines {
		in, err := buildInstruction(line)
		if err != nil {
			return isa.Program{}, err
		}
		instrs = append(instrs, in)
	}
	return isa.NewProgram(instrs), nil
}
