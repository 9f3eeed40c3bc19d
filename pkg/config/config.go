// Package config holds the architectural parameters the optimizer passes
// consume read-only: register file sizes and the fixed lane-permutation
// table the allocator searches. It replaces the single global parameter
// object the source keeps as a process-wide singleton with an explicit,
// immutable value threaded through every pass.
package config

import "github.com/vectorwave/isavopt/pkg/isa"

// Architecture bundles the architectural constants a compilation run is
// parameterized over. The zero value is not meaningful; use Default.
type Architecture struct {
	MaxTemporalRegisters int
	MaxInputAttributes   int
}

// Default mirrors the architectural constants named in the source design:
// 32 temporal registers, 48 input attribute slots.
var Default = Architecture{
	MaxTemporalRegisters: 32,
	MaxInputAttributes:   48,
}

// LanePermutations is the fixed table of all 24 permutations of the four
// lanes, in lexicographic order with the identity permutation first. The
// allocator's packed-allocation search walks this table in order and
// commits to the first permutation whose constraints are satisfiable, so
// the order itself is architecturally significant, not an implementation
// detail.
var LanePermutations = [24][isa.NumLanes]isa.Lane{
	{0, 1, 2, 3}, {0, 1, 3, 2}, {0, 2, 1, 3}, {0, 2, 3, 1}, {0, 3, 1, 2}, {0, 3, 2, 1},
	{1, 0, 2, 3}, {1, 0, 3, 2}, {1, 2, 0, 3}, {1, 2, 3, 0}, {1, 3, 0, 2}, {1, 3, 2, 0},
	{2, 0, 1, 3}, {2, 0, 3, 1}, {2, 1, 0, 3}, {2, 1, 3, 0}, {2, 3, 0, 1}, {2, 3, 1, 0},
	{3, 0, 1, 2}, {3, 0, 2, 1}, {3, 1, 0, 2}, {3, 1, 2, 0}, {3, 2, 0, 1}, {3, 2, 1, 0},
}

// IdentityPermutationIndex is LanePermutations' index of the identity
// mapping, used by callers that must force identity (SIMD4-result
// destinations).
const IdentityPermutationIndex = 0
