package aggregation

import (
	"github.com/gdtech/hackathon/internal/contracts"
)

// Join decodes enabled projects and attaches their investment totals and
// display rows. Work is linear in the number of rows.
func Join(snap *Snapshot) []*contracts.Project {
	investors := IndexInvestors(snap.Investors)

	byProject := make(map[int64][]contracts.InvestmentRecord)
	for _, r := range snap.Investments {
		rec := contracts.InvestmentRecordFromRecord(r)
		byProject[rec.ProjectID] = append(byProject[rec.ProjectID], rec)
	}

	projects := make([]*contracts.Project, 0, len(snap.Projects))
	for _, r := range snap.Projects {
		p := contracts.ProjectFromRecord(r)
		if !p.Enabled {
			continue
		}

		rows := byProject[p.ID]
		p.InvestmentRecords = make([]contracts.InvestmentDisplay, 0, len(rows))
		for _, rec := range rows {
			p.Investment += rec.Amount

			display := contracts.InvestmentDisplay{
				Name:   rec.InvestorName,
				Amount: rec.Amount,
			}
			if inv, ok := investors[rec.InvestorUsername]; ok {
				display.Title = inv.Title
				display.Avatar = inv.Avatar
				display.InitialAmount = inv.InitialBudget
				if display.Name == "" {
					display.Name = inv.Name
				}
			}
			p.InvestmentRecords = append(p.InvestmentRecords, display)
		}

		projects = append(projects, p)
	}
	return projects
}

// IndexInvestors maps username to investor; the first row for a username wins
func IndexInvestors(rows []contracts.Record) map[string]*contracts.Investor {
	index := make(map[string]*contracts.Investor, len(rows))
	for _, r := range rows {
		inv := contracts.InvestorFromRecord(r)
		if inv.Username == "" {
			continue
		}
		if _, exists := index[inv.Username]; !exists {
			index[inv.Username] = inv
		}
	}
	return index
}
