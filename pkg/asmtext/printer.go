package asmtext

import (
	"fmt"
	"strings"

	"github.com/vectorwave/isavopt/pkg/isa"
)

func laneLetter(l isa.Lane) byte {
	return laneLetters[l]
}

func formatMask(m isa.Mask) string {
	if m == isa.EmptyMask {
		return ""
	}
	var b strings.Builder
	b.WriteByte('.')
	for _, l := range m.Lanes() {
		b.WriteByte(laneLetter(l))
	}
	return b.String()
}

func formatSwizzle(sw isa.Swizzle) string {
	if sw.IsIdentity() {
		return ""
	}
	if lane, ok := sw.IsBroadcast(); ok {
		return "." + string(laneLetter(lane))
	}
	var b strings.Builder
	b.WriteByte('.')
	for out := isa.Lane(0); out < isa.NumLanes; out++ {
		b.WriteByte(laneLetter(sw.Lane(out)))
	}
	return b.String()
}

func formatReg(bank isa.Bank, reg isa.RegID) string {
	prefix, ok := bankNames[bank]
	if !ok {
		prefix = "?"
	}
	return fmt.Sprintf("%s%d", prefix, reg)
}

func formatOperand(o isa.Operand) string {
	var b strings.Builder
	if o.Negate {
		b.WriteByte('-')
	}
	if o.Absolute {
		b.WriteByte('|')
	}
	b.WriteString(formatReg(o.Bank, o.Reg))
	b.WriteString(formatSwizzle(o.Swizzle))
	if o.Absolute {
		b.WriteByte('|')
	}
	return b.String()
}

// Format renders one instruction in the textual dialect Parse accepts.
func Format(in isa.Instruction) string {
	var b strings.Builder
	if in.Pred.Enabled {
		b.WriteByte('(')
		if in.Pred.Negated {
			b.WriteByte('!')
		}
		b.WriteString(formatReg(isa.BankPredicate, in.Pred.Reg))
		b.WriteString(") ")
	}
	b.WriteString(isa.Mnemonic(in.Op))
	b.WriteByte(' ')
	b.WriteString(formatReg(in.Dst.Bank, in.Dst.Reg))
	b.WriteString(formatMask(in.Dst.Mask))

	n := in.NumOperands()
	if n > 0 {
		b.WriteString(" <- ")
		for k := 0; k < n; k++ {
			if k > 0 {
				b.WriteString(", ")
			}
			b.WriteString(formatOperand(in.Src[k]))
		}
	}

	var flags []string
	if in.Dst.Saturate {
		flags = append(flags, "sat")
	}
	if in.WaitPoint {
		flags = append(flags, "wait")
	}
	if in.EndOfProgram {
		flags = append(flags, "end")
	}
	for _, f := range flags {
		b.WriteString(" ; ")
		b.WriteString(f)
	}
	return b.String()
}

// FormatProgram renders every instruction of p, one per line.
func FormatProgram(p isa.Program) string {
	lines := make([]string, len(p.Instructions))
	for i, in := range p.Instructions {
		lines[i] = Format(in)
	}
	return strings.Join(lines, "\n")
}
