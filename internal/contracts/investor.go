package contracts

import "time"

// Investor holds a virtual budget to allocate across qualified projects
type Investor struct {
	ID              int64               `json:"id"`
	Username        string              `json:"username"`
	Password        string              `json:"-"`
	Name            string              `json:"name"`
	Title           string              `json:"title"`
	Avatar          string              `json:"avatar"`
	InitialBudget   int64               `json:"initialAmount"`
	RemainingBudget *int64              `json:"remainingAmount"`
	InvestedAmount  int64               `json:"investedAmount"`
	History         []InvestmentHistory `json:"investmentHistory"`
	Enabled         bool                `json:"-"`
	RecordID        string              `json:"-"`
}

// InvestmentHistory is one row of an investor's history
type InvestmentHistory struct {
	Time        time.Time `json:"time"`
	ProjectID   int64     `json:"projectId"`
	ProjectName string    `json:"projectName"`
	TeamName    string    `json:"teamName"`
	TeamNumber  string    `json:"teamNumber"`
	Amount      int64     `json:"amount"`
}

// InvestorFromRecord decodes an investors-collection row.
// RemainingBudget stays nil when the store has no value.
func InvestorFromRecord(r Record) *Investor {
	f := r.Fields
	inv := &Investor{
		ID:            FieldInt64(f, FieldInvestorID),
		Username:      FieldString(f, FieldInvestorUsername),
		Password:      FieldString(f, FieldInvestorPassword),
		Name:          FieldString(f, FieldInvestorName),
		Title:         FieldString(f, FieldInvestorTitle),
		Avatar:        FieldString(f, FieldInvestorAvatar),
		InitialBudget: FieldInt64(f, FieldInitialBudget),
		Enabled:       FieldBool(f, FieldEnabled, true),
		RecordID:      r.ID,
	}
	if v, ok := FieldInt64OK(f, FieldRemainingBudget); ok {
		inv.RemainingBudget = &v
	}
	return inv
}

// Remaining returns the stored remaining budget, or initial minus invested
func (i *Investor) Remaining() int64 {
	if i.RemainingBudget != nil {
		return *i.RemainingBudget
	}
	return i.InitialBudget - i.InvestedAmount
}
