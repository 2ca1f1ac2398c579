// Package solve implements FeasibleSubsetSolver: the maximum-feasible-
// subset search that tolerates a few outlier constraint disks, plus the
// two-stage physical/empirical refinement built on top of it.
package solve

import (
	"sort"

	"github.com/location-microservice/internal/domain/disk"
	"github.com/location-microservice/internal/domain/region"
)

// Solution is the output of Solve: the refined region and which input
// disks (by original index, before the internal area sort) were included
// in the final empirical intersection.
type Solution struct {
	Region   region.Region
	Included []int
}

// Solve runs the two-stage algorithm of §4.7: a physical-disk max-subset
// intersection establishes the coarse feasible region, then empirical
// disks are filtered against it and intersected again.
func Solve(physical, empirical []disk.Disk, baseRegion region.Region) (Solution, error) {
	phyRegion, _, err := maxSubsetIntersection(physical, baseRegion)
	if err != nil {
		return Solution{}, err
	}

	filtered := make([]disk.Disk, 0, len(empirical))
	filteredOrigIdx := make([]int, 0, len(empirical))
	for i := range empirical {
		if i >= len(physical) {
			break
		}
		if !empirical[i].Region.Intersects(phyRegion) {
			continue
		}
		if empirical[i].Region.AlmostEqual(physical[i].Region) {
			continue
		}
		filtered = append(filtered, empirical[i])
		filteredOrigIdx = append(filteredOrigIdx, i)
	}

	finalRegion, includedLocal, err := maxSubsetIntersection(filtered, phyRegion)
	if err != nil {
		return Solution{}, err
	}

	included := make([]int, len(includedLocal))
	for i, li := range includedLocal {
		included[i] = filteredOrigIdx[li]
	}
	sort.Ints(included)

	return Solution{Region: finalRegion, Included: included}, nil
}

// indexedDisk pairs a disk with its position in the caller's original
// (pre-sort) ordering, so results can be reported back in terms it knows.
type indexedDisk struct {
	disk.Disk
	origIdx int
}

// maxSubsetIntersection implements max_subset_intersection: the largest
// subset of disks whose intersection with base is non-empty, ties broken
// by smallest area. Returns the resulting region and the original
// indices of the disks included.
func maxSubsetIntersection(disks []disk.Disk, base region.Region) (region.Region, []int, error) {
	if len(disks) == 0 {
		return base, nil, nil
	}

	indexed := make([]indexedDisk, len(disks))
	for i, d := range disks {
		indexed[i] = indexedDisk{Disk: d, origIdx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		return indexed[i].Region.Area() < indexed[j].Region.Area()
	})

	s := &searcher{disks: indexed, n: len(indexed)}
	s.best = best{region: base, count: 0, area: base.Area(), included: nil}

	if err := s.search(0, base, nil, nil); err != nil {
		return region.Empty, nil, err
	}

	return s.best.region, s.best.included, nil
}

type best struct {
	region   region.Region
	count    int
	area     float64
	included []int
}

type searcher struct {
	disks []indexedDisk
	n     int
	best  best
}

// search explores the suffix tree of subsets rooted after index `last`
// (exclusive), with parentRegion the intersection of base and every disk
// already chosen (the path from the root to this node), chosenIdx the
// original indices picked so far, and chosenDisks the same disks (for the
// cheap s2-cap pre-filter).
func (s *searcher) search(last int, parentRegion region.Region, chosenIdx []int, chosenDisks []disk.Disk) error {
	for i := last; i < s.n; i++ {
		upperBound := len(chosenIdx) + 1 + (s.n - 1 - i)
		if upperBound < s.best.count {
			// n-1-i only shrinks as i grows, so no later sibling in this
			// loop can do better either.
			break
		}

		if !mayOverlapAll(s.disks[i].Disk, chosenDisks) {
			continue
		}

		candidateRegion, err := parentRegion.Intersection(s.disks[i].Region)
		if err != nil {
			return err
		}
		if candidateRegion.IsEmpty() {
			continue
		}

		candidateIdx := append(append([]int(nil), chosenIdx...), s.disks[i].origIdx)
		candidateDisks := append(append([]disk.Disk(nil), chosenDisks...), s.disks[i].Disk)
		s.considerBest(candidateIdx, candidateRegion)

		if err := s.search(i+1, candidateRegion, candidateIdx, candidateDisks); err != nil {
			return err
		}
	}
	return nil
}

// mayOverlapAll reports whether candidate can possibly overlap every disk
// already chosen, via the cheap spherical-cap pre-filter; a single "no" is
// conclusive proof the exact polygon intersection would be empty.
func mayOverlapAll(candidate disk.Disk, chosen []disk.Disk) bool {
	for _, c := range chosen {
		if !disk.MayOverlap(candidate, c) {
			return false
		}
	}
	return true
}

func (s *searcher) considerBest(chosen []int, reg region.Region) {
	count := len(chosen)
	area := reg.Area()
	if count > s.best.count || (count == s.best.count && area < s.best.area) {
		s.best = best{region: reg, count: count, area: area, included: append([]int(nil), chosen...)}
	}
}
