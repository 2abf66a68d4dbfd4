package contracts

// DefaultTeamNumber sorts projects without a team number last
const DefaultTeamNumber = "999"

// Project is a competition entry with its derived ranking fields
type Project struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	URL              string `json:"url"`
	Image            string `json:"image"`
	TeamName         string `json:"teamName"`
	TeamNumber       string `json:"teamNumber"`
	TeamURL          string `json:"teamUrl"`
	AnalyticsAccount string `json:"-"`
	AnalyticsSiteID  string `json:"baiduSiteId"`
	UV               int64  `json:"uv"`
	Enabled          bool   `json:"enabled"`

	// Computed from the ledger
	Investment        int64               `json:"investment"`
	InvestmentRecords []InvestmentDisplay `json:"investmentRecords"`

	// Derived by the ranking calculator
	Rank          int      `json:"rank"`
	Qualified     bool     `json:"qualified"`
	WeightedScore *float64 `json:"weightedScore"`

	// RecordID is the store handle, used by the UV sync write-back
	RecordID string `json:"-"`
}

// SortTeamNumber returns the team number used for tie-breaks
func (p *Project) SortTeamNumber() string {
	if p.TeamNumber == "" {
		return DefaultTeamNumber
	}
	return p.TeamNumber
}

// HasAnalytics reports whether UV can be synced for p
func (p *Project) HasAnalytics() bool {
	return p.AnalyticsAccount != "" && p.AnalyticsSiteID != ""
}

// Clone returns a deep copy so cached lists are never mutated by callers
func (p *Project) Clone() *Project {
	c := *p
	if p.InvestmentRecords != nil {
		c.InvestmentRecords = append([]InvestmentDisplay(nil), p.InvestmentRecords...)
	}
	if p.WeightedScore != nil {
		v := *p.WeightedScore
		c.WeightedScore = &v
	}
	return &c
}

// InvestmentDisplay is one investment shown on a project card
type InvestmentDisplay struct {
	Name          string `json:"name"`
	Title         string `json:"title"`
	Avatar        string `json:"avatar"`
	Amount        int64  `json:"amount"`
	InitialAmount int64  `json:"initialAmount"`
}

// ProjectFromRecord decodes a projects-collection row
func ProjectFromRecord(r Record) *Project {
	f := r.Fields
	return &Project{
		ID:               FieldInt64(f, FieldProjectID),
		Name:             FieldString(f, FieldProjectName),
		Description:      FieldString(f, FieldProjectDescription),
		URL:              FieldString(f, FieldProjectURL),
		Image:            FieldString(f, FieldProjectImage),
		TeamName:         FieldString(f, FieldTeamName),
		TeamNumber:       FieldString(f, FieldTeamNumber),
		TeamURL:          FieldString(f, FieldTeamURL),
		AnalyticsAccount: FieldString(f, FieldAnalyticsAccount),
		AnalyticsSiteID:  FieldString(f, FieldAnalyticsSiteID),
		UV:               max(FieldInt64(f, FieldUV), 0),
		Enabled:          FieldBool(f, FieldEnabled, true),
		RecordID:         r.ID,
	}
}

// CloneProjects deep-copies a ranked list
func CloneProjects(in []*Project) []*Project {
	out := make([]*Project, len(in))
	for i, p := range in {
		out[i] = p.Clone()
	}
	return out
}
