// Package regalloc implements the live-range reducer: it assigns every SSA
// name produced by the renamer to a physical temp register and one of the
// architecture's fixed lane permutations, merging copy-linked names into a
// single physical identity wherever their lifetimes allow it.
package regalloc

import (
	"sort"

	"github.com/vectorwave/isavopt/pkg/config"
	"github.com/vectorwave/isavopt/pkg/diag"
	"github.com/vectorwave/isavopt/pkg/isa"
	"github.com/vectorwave/isavopt/pkg/swizzle"
)

// Result is the allocator's output.
type Result struct {
	Program          isa.Program
	MaxLiveRegisters int
}

// name tracks everything the allocator needs to know about one SSA name (or,
// after cluster aggregation, one merged group of names sharing a physical
// identity): per-lane creation and last-use instruction indices (1-based; 0
// means "never"), the widest simultaneous read any single operand ever makes
// of it, whether it must sit at identity lane order, and — before
// aggregation — which other name's same lane it is a pure copy of.
type name struct {
	created      [isa.NumLanes]int
	lastUsed     [isa.NumLanes]int
	maxPackedUse int
	forceIdentity bool
	copyFrom     [isa.NumLanes]isa.RegID

	packed    bool
	allocReg  [isa.NumLanes]isa.RegID
	allocComp [isa.NumLanes]isa.Lane
}

func (n *name) effectiveEnd(l isa.Lane) int {
	if n.lastUsed[l] != 0 {
		return n.lastUsed[l]
	}
	return n.created[l]
}

func (n *name) firstCreatedLane() isa.Lane {
	for l := isa.Lane(0); l < isa.NumLanes; l++ {
		if n.created[l] != 0 {
			return l
		}
	}
	return 0
}

// Run assigns physical registers to every name in the already-renamed,
// dead-code-eliminated program p.
func Run(p isa.Program, arch config.Architecture) (Result, error) {
	names := map[isa.RegID]*name{}
	get := func(id isa.RegID) *name {
		n, ok := names[id]
		if !ok {
			n = &name{}
			names[id] = n
		}
		return n
	}

	analyze(p, get)

	master := aggregate(names)
	resolve := func(id isa.RegID) isa.RegID {
		for {
			m, ok := master[id]
			if !ok {
				return id
			}
			id = m
		}
	}

	clusters := clusterOrder(names, master)

	slots := make([][isa.NumLanes]int, arch.MaxTemporalRegisters)
	var occupancy [][2]int

	for _, id := range clusters {
		n := names[id]
		n.packed = n.maxPackedUse > 1 || n.forceIdentity
		if n.packed {
			if err := allocatePacked(n, arch, slots, &occupancy); err != nil {
				return Result{}, err
			}
		} else {
			if err := allocateUnpacked(n, arch, slots, &occupancy); err != nil {
				return Result{}, err
			}
		}
	}

	out := rewrite(p, names, resolve)

	return Result{
		Program:          isa.Program{Instructions: out},
		MaxLiveRegisters: maxOverlap(occupancy, len(p.Instructions)),
	}, nil
}

// analyze performs the name-usage pass: per-lane creation/last-use times,
// the widest simultaneous read (promoted to NumLanes for SIMD4-result
// destinations), and identity-copy provenance for cluster aggregation.
func analyze(p isa.Program, get func(isa.RegID) *name) {
	for i, in := range p.Instructions {
		read1, read2, read3 := swizzle.ReadComponentsByOpcode(in, in.Dst.Mask)
		reads := [3]isa.Mask{read1, read2, read3}

		for k := 0; k < in.NumOperands(); k++ {
			src := in.Src[k]
			if src.Bank != isa.BankTemp {
				continue
			}
			n := get(src.Reg)
			if c := reads[k].Count(); c > n.maxPackedUse {
				n.maxPackedUse = c
			}
			for _, l := range reads[k].Lanes() {
				n.lastUsed[l] = i + 1
			}
		}

		if in.Dst.Bank != isa.BankTemp {
			continue
		}
		n := get(in.Dst.Reg)
		if isa.HasSIMD4Result(in.Op) {
			n.forceIdentity = true
			if n.maxPackedUse < isa.NumLanes {
				n.maxPackedUse = isa.NumLanes
			}
		}

		isCopy := in.Op == isa.MOV && in.Src[0].Bank == isa.BankTemp &&
			!in.Src[0].Negate && !in.Src[0].Absolute && !in.Dst.Saturate
		for _, l := range in.Dst.Mask.Lanes() {
			n.created[l] = i + 1
			if isCopy && in.Src[0].Swizzle.Lane(l) == l {
				n.copyFrom[l] = in.Src[0].Reg
			}
		}
	}
}

// aggregate merges copy-linked names into clusters, returning a map from
// merged-away name to the master it now resolves to. Names are processed in
// ascending order, matching the order they are first produced in a renamed
// program.
func aggregate(names map[isa.RegID]*name) map[isa.RegID]isa.RegID {
	master := map[isa.RegID]isa.RegID{}
	resolve := func(id isa.RegID) isa.RegID {
		for {
			m, ok := master[id]
			if !ok {
				return id
			}
			id = m
		}
	}

	var ids []isa.RegID
	for id := range names {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	copiesOf := map[isa.RegID][]isa.RegID{}
	for _, c := range ids {
		seen := map[isa.RegID]bool{}
		for _, src := range names[c].copyFrom {
			if src != 0 && !seen[src] {
				seen[src] = true
				copiesOf[src] = append(copiesOf[src], c)
			}
		}
	}

	for _, n := range ids {
		m := resolve(n)
		for _, c := range copiesOf[n] {
			if resolve(c) == m {
				continue
			}
			dc, dm := names[c], names[m]

			ok := true
			for l := isa.Lane(0); l < isa.NumLanes; l++ {
				if dc.created[l] == 0 {
					continue
				}
				if src := dc.copyFrom[l]; src != 0 && resolve(src) == m {
					continue
				}
				if dm.lastUsed[l] != 0 && dm.lastUsed[l] < dc.created[l] {
					continue
				}
				ok = false
				break
			}
			if !ok {
				continue
			}

			for l := isa.Lane(0); l < isa.NumLanes; l++ {
				if dc.created[l] == 0 {
					continue
				}
				if src := dc.copyFrom[l]; src != 0 && resolve(src) == m {
					// C's lane l is simply M's own value read back; only the
					// extent of M's lifetime grows.
					if dc.lastUsed[l] > dm.lastUsed[l] {
						dm.lastUsed[l] = dc.lastUsed[l]
					}
					continue
				}
				dm.created[l] = dc.created[l]
				dm.lastUsed[l] = dc.lastUsed[l]
			}
			if dc.maxPackedUse > dm.maxPackedUse {
				dm.maxPackedUse = dc.maxPackedUse
			}
			if dc.forceIdentity {
				dm.forceIdentity = true
			}
			master[c] = m
		}
	}

	return master
}

// clusterOrder returns the surviving cluster masters, ordered by the
// instruction index at which the cluster first needs a register — the
// ordering a per-instruction allocation walk would produce.
func clusterOrder(names map[isa.RegID]*name, master map[isa.RegID]isa.RegID) []isa.RegID {
	var masters []isa.RegID
	for id := range names {
		if _, merged := master[id]; !merged {
			masters = append(masters, id)
		}
	}
	firstUse := func(id isa.RegID) int {
		n := names[id]
		best := 0
		for _, c := range n.created {
			if c != 0 && (best == 0 || c < best) {
				best = c
			}
		}
		return best
	}
	sort.Slice(masters, func(i, j int) bool {
		fi, fj := firstUse(masters[i]), firstUse(masters[j])
		if fi != fj {
			return fi < fj
		}
		return masters[i] < masters[j]
	})
	return masters
}

// allocatePacked picks a single register and lane permutation serving every
// live lane of n at once, searching config.LanePermutations in order (the
// identity permutation only, for SIMD4-result clusters).
func allocatePacked(n *name, arch config.Architecture, slots [][isa.NumLanes]int, occupancy *[][2]int) error {
	perms := config.LanePermutations[:]
	if n.forceIdentity {
		perms = config.LanePermutations[:1]
	}

	for reg := 0; reg < arch.MaxTemporalRegisters; reg++ {
		for _, perm := range perms {
			fits := true
			for l := isa.Lane(0); l < isa.NumLanes; l++ {
				if n.created[l] == 0 {
					continue
				}
				if slots[reg][perm[l]] > n.created[l] {
					fits = false
					break
				}
			}
			if !fits {
				continue
			}

			start, end := 0, 0
			for l := isa.Lane(0); l < isa.NumLanes; l++ {
				n.allocComp[l] = perm[l]
				n.allocReg[l] = isa.RegID(reg)
				if n.created[l] == 0 {
					continue
				}
				slots[reg][perm[l]] = n.effectiveEnd(l)
				if start == 0 || n.created[l] < start {
					start = n.created[l]
				}
				if n.effectiveEnd(l) > end {
					end = n.effectiveEnd(l)
				}
			}
			*occupancy = append(*occupancy, [2]int{start, end})
			return nil
		}
	}
	return diag.Fatalf("no-register", "packed allocation exhausted %d temp registers", arch.MaxTemporalRegisters)
}

// allocateUnpacked allocates each group of lanes n creates in the same
// instruction to one shared register (at identity lane order, since an
// unpacked name never needs its lanes reordered within the register), and
// independently-created groups may land on different registers.
func allocateUnpacked(n *name, arch config.Architecture, slots [][isa.NumLanes]int, occupancy *[][2]int) error {
	groups := map[int][]isa.Lane{}
	for l, c := range n.created {
		if c != 0 {
			groups[c] = append(groups[c], isa.Lane(l))
		}
	}
	var keys []int
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	for _, instrKey := range keys {
		lanes := groups[instrKey]
		allocated := false
		for reg := 0; reg < arch.MaxTemporalRegisters; reg++ {
			fits := true
			for _, l := range lanes {
				if slots[reg][l] > n.created[l] {
					fits = false
					break
				}
			}
			if !fits {
				continue
			}
			end := 0
			for _, l := range lanes {
				n.allocComp[l] = l
				n.allocReg[l] = isa.RegID(reg)
				slots[reg][l] = n.effectiveEnd(l)
				if n.effectiveEnd(l) > end {
					end = n.effectiveEnd(l)
				}
			}
			*occupancy = append(*occupancy, [2]int{instrKey, end})
			allocated = true
			break
		}
		if !allocated {
			return diag.Fatalf("no-register", "unpacked allocation exhausted %d temp registers", arch.MaxTemporalRegisters)
		}
	}
	return nil
}

// rewrite walks p in program order, replacing every temp operand and result
// with its allocated physical register, lane permutation, and — where the
// destination's permutation reordered lanes — rotated operand swizzles.
func rewrite(p isa.Program, names map[isa.RegID]*name, resolve func(isa.RegID) isa.RegID) []isa.Instruction {
	out := make([]isa.Instruction, len(p.Instructions))

	for i, in := range p.Instructions {
		read1, read2, read3 := swizzle.ReadComponentsByOpcode(in, in.Dst.Mask)
		reads := [3]isa.Mask{read1, read2, read3}

		var dst *name
		var writtenLanes []isa.Lane
		if in.Dst.Bank == isa.BankTemp {
			dst = names[resolve(in.Dst.Reg)]
			writtenLanes = in.Dst.Mask.Lanes()
		}

		var srcRegs [3]isa.RegID
		var srcSwizzles [3]isa.Swizzle
		for k := 0; k < 3; k++ {
			srcRegs[k] = in.Src[k].Reg
			srcSwizzles[k] = in.Src[k].Swizzle
			src := in.Src[k]
			if k >= in.NumOperands() || src.Bank != isa.BankTemp {
				continue
			}
			od := names[resolve(src.Reg)]
			consumed := reads[k].Lanes()

			if len(writtenLanes) == 1 {
				l := writtenLanes[0]
				srcLane := src.Swizzle.Lane(l)
				srcSwizzles[k] = isa.Broadcast(od.allocComp[srcLane])
			} else {
				var sw isa.Swizzle
				for l := isa.Lane(0); l < isa.NumLanes; l++ {
					srcLane := src.Swizzle.Lane(l)
					physOut := l
					if dst != nil {
						physOut = dst.allocComp[l]
					}
					sw = sw.WithLane(physOut, od.allocComp[srcLane])
				}
				srcSwizzles[k] = sw
			}

			if len(consumed) > 0 {
				srcRegs[k] = od.allocReg[consumed[0]]
			} else {
				srcRegs[k] = od.allocReg[od.firstCreatedLane()]
			}
		}

		dstReg := in.Dst.Reg
		dstMask := in.Dst.Mask
		if dst != nil {
			var newMask isa.Mask
			for _, l := range writtenLanes {
				newMask |= isa.LaneMask(dst.allocComp[l])
			}
			dstMask = newMask
			if len(writtenLanes) > 0 {
				dstReg = dst.allocReg[writtenLanes[0]]
			}
		}

		out[i] = in.CloneWithSubstitutedLanesAndMask(dstReg, dstMask, srcSwizzles, srcRegs)
	}

	return out
}

// maxOverlap returns the maximum number of occupancy intervals simultaneously
// active at any instruction index. Two intervals sharing the same physical
// register never overlap (the allocator's free-time check guarantees it), so
// the count of simultaneously active intervals equals the count of
// simultaneously live physical registers.
func maxOverlap(occupancy [][2]int, n int) int {
	if len(occupancy) == 0 {
		return 0
	}
	delta := make([]int, n+2)
	for _, iv := range occupancy {
		start, end := iv[0], iv[1]
		if start < 1 {
			start = 1
		}
		if end+1 >= len(delta) {
			end = len(delta) - 2
		}
		delta[start]++
		delta[end+1]--
	}
	max, cur := 0, 0
	for _, d := range delta {
		cur += d
		if cur > max {
			max = cur
		}
	}
	return max
}
