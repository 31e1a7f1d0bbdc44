// Package align pairs up entities of two models by exact name so the
// diff engine can walk matched pairs field by field. Entities present on
// only one side land in the added/removed sets; joints whose names match
// but whose endpoints disagree are structural mismatches and are kept out
// of the field comparison.
package align

import (
	"sort"

	"github.com/robometric/robotdiff/internal/model"
)

// MatchSet partitions one entity kind into matched names and the
// one-sided leftovers. All slices are sorted.
type MatchSet struct {
	Matched      []string
	AddedInB     []string
	RemovedFromA []string
}

// Correspondence is the full alignment of two models.
type Correspondence struct {
	Links  MatchSet
	Joints MatchSet

	// StructureMismatches holds joints whose names match but whose
	// parent or child link differs between the two sides.
	StructureMismatches []string
}

// Models aligns a and b by entity name.
func Models(a, b *model.Model) Correspondence {
	c := Correspondence{
		Links:  matchNames(a.LinkNames(), b.LinkNames()),
		Joints: matchNames(a.JointNames(), b.JointNames()),
	}

	matched := c.Joints.Matched[:0]
	for _, name := range c.Joints.Matched {
		ja, jb := a.Joints[name], b.Joints[name]
		if ja.Parent != jb.Parent || ja.Child != jb.Child {
			c.StructureMismatches = append(c.StructureMismatches, name)
			continue
		}
		matched = append(matched, name)
	}
	c.Joints.Matched = matched
	return c
}

// matchNames partitions two sorted name lists into intersection and
// one-sided remainders.
func matchNames(a, b []string) MatchSet {
	inA := make(map[string]bool, len(a))
	for _, n := range a {
		inA[n] = true
	}
	inB := make(map[string]bool, len(b))
	for _, n := range b {
		inB[n] = true
	}

	var s MatchSet
	for _, n := range a {
		if inB[n] {
			s.Matched = append(s.Matched, n)
		} else {
			s.RemovedFromA = append(s.RemovedFromA, n)
		}
	}
	for _, n := range b {
		if !inA[n] {
			s.AddedInB = append(s.AddedInB, n)
		}
	}
	sort.Strings(s.Matched)
	sort.Strings(s.AddedInB)
	sort.Strings(s.RemovedFromA)
	return s
}
