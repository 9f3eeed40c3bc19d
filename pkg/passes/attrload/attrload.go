// Package attrload implements the attribute-to-load pass: the ISA forbids
// most instructions from reading the attribute bank directly, so every
// attribute read is rewritten into an explicit LDA into a temp.
package attrload

import (
	"github.com/vectorwave/isavopt/pkg/config"
	"github.com/vectorwave/isavopt/pkg/diag"
	"github.com/vectorwave/isavopt/pkg/isa"
)

// Run rewrites every attribute-bank operand read in p into a load from a
// freshly allocated temp, coalescing repeated reads of the same attribute
// id. freeTemps lists the temp register ids not already in use by p;
// Run fails fatally if it needs more temps than are free.
func Run(p isa.Program, arch config.Architecture, freeTemps []isa.RegID) (isa.Program, error) {
	bindings := map[isa.RegID]isa.RegID{} // attribute id -> temp id

	// Fresh temps are handed out lowest-index-first, matching the design's
	// pinned register-allocation tie-break.
	orderedFree := append([]isa.RegID(nil), freeTemps...)
	sortRegID(orderedFree)

	nextFreeIdx := 0
	allocTemp := func() (isa.RegID, error) {
		if nextFreeIdx < len(orderedFree) {
			t := orderedFree[nextFreeIdx]
			nextFreeIdx++
			return t, nil
		}
		return 0, diag.Fatalf("no-free-temp", "attribute_to_lda: no free temp register remains (max %d)", arch.MaxTemporalRegisters)
	}

	// bindAttribute returns the temp bound to attrID, allocating and
	// reporting a fresh one (isNew) the first time attrID is seen.
	bindAttribute := func(attrID isa.RegID) (t isa.RegID, isNew bool, err error) {
		if t, ok := bindings[attrID]; ok {
			return t, false, nil
		}
		t, err = allocTemp()
		if err != nil {
			return 0, false, err
		}
		bindings[attrID] = t
		return t, true, nil
	}

	var out []isa.Instruction
	emitLDA := func(dstTemp, attrID isa.RegID, end bool) isa.Instruction {
		return isa.Instruction{
			Op:  isa.LDA,
			Src: [3]isa.Operand{{Bank: isa.BankInput, Reg: attrID, Swizzle: isa.IdentitySwizzle}},
			Dst: isa.Result{Bank: isa.BankTemp, Reg: dstTemp, Mask: isa.FullMask},
			EndOfProgram: end,
		}
	}

	for _, in := range p.Instructions {
		readsAttr := false
		for k := 0; k < in.NumOperands(); k++ {
			if in.Src[k].Bank == isa.BankInput {
				readsAttr = true
				break
			}
		}
		if !readsAttr {
			out = append(out, in)
			continue
		}

		if in.Op == isa.MOV && in.Src[0].Bank == isa.BankInput {
			plain := !in.Src[0].Negate && !in.Src[0].Absolute && in.Src[0].Swizzle.IsIdentity()
			attrID := in.Src[0].Reg

			// A plain MOV into the temp bank collapses into a single LDA
			// that writes the attribute straight into the MOV's own
			// destination — that destination register IS the binding, so
			// no separate temp is allocated for it.
			if plain && in.Dst.Bank == isa.BankTemp {
				if _, bound := bindings[attrID]; !bound {
					bindings[attrID] = in.Dst.Reg
				}
				lda := emitLDA(bindings[attrID], attrID, in.EndOfProgram)
				lda.Dst.Reg = in.Dst.Reg
				lda.Dst.Bank = in.Dst.Bank
				lda.Dst.Mask = in.Dst.Mask
				lda.Dst.Saturate = in.Dst.Saturate
				out = append(out, lda)
				continue
			}

			t, isNew, err := bindAttribute(attrID)
			if err != nil {
				return isa.Program{}, err
			}
			if isNew {
				out = append(out, emitLDA(t, attrID, false))
			}
			patched := in.CloneWithPatchedOperandRegister(0, isa.BankTemp, t)
			out = append(out, patched)
			continue
		}

		patched := in
		for k := 0; k < in.NumOperands(); k++ {
			if in.Src[k].Bank == isa.BankInput {
				t, isNew, err := bindAttribute(in.Src[k].Reg)
				if err != nil {
					return isa.Program{}, err
				}
				if isNew {
					out = append(out, emitLDA(t, in.Src[k].Reg, false))
				}
				patched = patched.CloneWithPatchedOperandRegister(k, isa.BankTemp, t)
			}
		}
		out = append(out, patched)
	}

	return isa.Program{Instructions: isa.TransferEndFlag(out)}, nil
}

func sortRegID(s []isa.RegID) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
