package ranking

import (
	"sort"

	"github.com/gdtech/hackathon/internal/contracts"
)

// metric extracts the primary sort key
type metric func(p *contracts.Project) int64

func byVisitors(p *contracts.Project) int64   { return p.UV }
func byInvestment(p *contracts.Project) int64 { return p.Investment }

// tieBreak orders by ascending team number (missing sorts as "999"),
// then ascending id so equal rows are deterministic
func tieBreak(a, b *contracts.Project) bool {
	ta, tb := a.SortTeamNumber(), b.SortTeamNumber()
	if ta != tb {
		return ta < tb
	}
	return a.ID < b.ID
}

// sortBy sorts ps in place by descending m, then the common tie-break
func sortBy(ps []*contracts.Project, m metric) {
	sort.SliceStable(ps, func(i, j int) bool {
		mi, mj := m(ps[i]), m(ps[j])
		if mi != mj {
			return mi > mj
		}
		return tieBreak(ps[i], ps[j])
	})
}

// SelectionOrder returns the projects in selection-stage order without
// touching their derived fields
// ⭐ SSOT: the ordering that decides qualification
func SelectionOrder(projects []*contracts.Project) []*contracts.Project {
	ordered := append([]*contracts.Project(nil), projects...)
	sortBy(ordered, byVisitors)
	return ordered
}

// TopQualified returns the ids of the first quota projects in selection order
func TopQualified(projects []*contracts.Project, quota int) []int64 {
	ordered := SelectionOrder(projects)
	n := min(quota, len(ordered))
	ids := make([]int64, 0, n)
	for _, p := range ordered[:n] {
		ids = append(ids, p.ID)
	}
	return ids
}

// rankScores assigns (N+1-r)/N to each project of population, ranked by m.
// A zero metric always scores 0.
func rankScores(population []*contracts.Project, m metric) map[int64]float64 {
	ordered := append([]*contracts.Project(nil), population...)
	sortBy(ordered, m)

	n := float64(len(ordered))
	scores := make(map[int64]float64, len(ordered))
	for i, p := range ordered {
		if m(p) == 0 {
			scores[p.ID] = 0
			continue
		}
		scores[p.ID] = (n - float64(i)) / n
	}
	return scores
}

func assignRanks(ps []*contracts.Project) {
	for i, p := range ps {
		p.Rank = i + 1
	}
}

func resetDerived(ps []*contracts.Project) {
	for _, p := range ps {
		p.Rank = 0
		p.Qualified = false
		p.WeightedScore = nil
	}
}

// partition splits ps into members of ids and the rest, preserving order
func partition(ps []*contracts.Project, ids []int64) (in, out []*contracts.Project) {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	for _, p := range ps {
		if _, ok := set[p.ID]; ok {
			in = append(in, p)
		} else {
			out = append(out, p)
		}
	}
	return in, out
}
