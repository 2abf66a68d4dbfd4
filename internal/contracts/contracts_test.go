package contracts

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStage(t *testing.T) {
	tests := []struct {
		code string
		want Stage
	}{
		{"selection", StageSelection},
		{"lock", StageLock},
		{"investment", StageInvestment},
		{"ended", StageEnded},
		{"", StageSelection},
		{"INVESTMENT", StageSelection},
		{"paused", StageSelection},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseStage(tt.code))
		})
	}
}

func TestStageGate(t *testing.T) {
	for _, s := range AllStages() {
		assert.Equal(t, s == StageInvestment, s.CanInvest(), s.String())
		assert.NotEmpty(t, s.Name())
		assert.True(t, s.Valid())
	}
	assert.False(t, StageSelection.UsesQualifiedSet())
	assert.True(t, StageEnded.UsesQualifiedSet())

	info := StageInvestment.Info()
	assert.Equal(t, "investment", info.Code)
	assert.Equal(t, "投资期", info.Name)
	assert.True(t, info.CanInvest)
}

func TestFieldDecoding(t *testing.T) {
	fields := map[string]any{
		"float":    float64(42),
		"number":   json.Number("17"),
		"str":      " 9 ",
		"decimal":  "3.7",
		"bad":      "n/a",
		"rich":     []any{map[string]any{"text": "Team ", "type": "text"}, map[string]any{"text": "A", "type": "text"}},
		"link":     map[string]any{"link": "https://example.com", "text": ""},
		"boolTrue": "1",
		"boolNo":   false,
		"boolOdd":  "maybe",
		"int64":    int64(5),
	}

	assert.Equal(t, int64(42), FieldInt64(fields, "float"))
	assert.Equal(t, int64(17), FieldInt64(fields, "number"))
	assert.Equal(t, int64(9), FieldInt64(fields, "str"))
	assert.Equal(t, int64(3), FieldInt64(fields, "decimal"))
	assert.Equal(t, int64(5), FieldInt64(fields, "int64"))

	_, ok := FieldInt64OK(fields, "bad")
	assert.False(t, ok)
	_, ok = FieldInt64OK(fields, "missing")
	assert.False(t, ok)

	assert.Equal(t, "42", FieldString(fields, "float"))
	assert.Equal(t, "Team A", FieldString(fields, "rich"))
	assert.Equal(t, "https://example.com", FieldString(fields, "link"))
	assert.Equal(t, "", FieldString(fields, "missing"))

	assert.True(t, FieldBool(fields, "boolTrue", false))
	assert.False(t, FieldBool(fields, "boolNo", true))
	assert.True(t, FieldBool(fields, "boolOdd", true))
	assert.True(t, FieldBool(fields, "missing", true))
}

func TestProjectFromRecord(t *testing.T) {
	r := Record{ID: "rec1", Fields: map[string]any{
		FieldProjectID:        float64(3),
		FieldProjectName:      "Alpha",
		FieldTeamNumber:       "07",
		FieldAnalyticsAccount: "main",
		FieldAnalyticsSiteID:  "123",
		FieldUV:               "1500",
	}}

	p := ProjectFromRecord(r)
	assert.Equal(t, int64(3), p.ID)
	assert.Equal(t, "Alpha", p.Name)
	assert.Equal(t, int64(1500), p.UV)
	assert.True(t, p.Enabled)
	assert.True(t, p.HasAnalytics())
	assert.Equal(t, "07", p.SortTeamNumber())
	assert.Equal(t, "rec1", p.RecordID)

	p.TeamNumber = ""
	assert.Equal(t, DefaultTeamNumber, p.SortTeamNumber())
}

func TestProjectCloneIsDeep(t *testing.T) {
	score := 0.5
	p := &Project{ID: 1, WeightedScore: &score, InvestmentRecords: []InvestmentDisplay{{Name: "a", Amount: 10}}}
	c := p.Clone()

	*c.WeightedScore = 0.9
	c.InvestmentRecords[0].Amount = 99

	assert.Equal(t, 0.5, *p.WeightedScore)
	assert.Equal(t, int64(10), p.InvestmentRecords[0].Amount)
}

func TestInvestorFromRecord(t *testing.T) {
	withRemaining := InvestorFromRecord(Record{ID: "r1", Fields: map[string]any{
		FieldInvestorUsername: "1001",
		FieldInvestorPassword: "abc123",
		FieldInitialBudget:    float64(100),
		FieldRemainingBudget:  float64(40),
		FieldEnabled:          true,
	}})
	require.NotNil(t, withRemaining.RemainingBudget)
	assert.Equal(t, int64(40), withRemaining.Remaining())
	assert.Equal(t, "r1", withRemaining.RecordID)

	withoutRemaining := InvestorFromRecord(Record{ID: "r2", Fields: map[string]any{
		FieldInvestorUsername: "1002",
		FieldInitialBudget:    float64(100),
	}})
	assert.Nil(t, withoutRemaining.RemainingBudget)
	withoutRemaining.InvestedAmount = 30
	assert.Equal(t, int64(70), withoutRemaining.Remaining())
}

func TestInvestorJSONHidesSecrets(t *testing.T) {
	data, err := json.Marshal(&Investor{Username: "1001", Password: "secret", RecordID: "recHandle42"})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")
	assert.NotContains(t, string(data), "recHandle42")
}

func TestInvestmentRecordRoundTripThroughFields(t *testing.T) {
	in := InvestmentRecord{InvestorUsername: "1001", ProjectID: 7, Amount: 60, Timestamp: 1731542400000, InvestorName: "Ann", ProjectName: "Alpha"}
	out := InvestmentRecordFromRecord(Record{Fields: in.Fields()})
	assert.Equal(t, in, out)
}

func TestQualifiedIDs(t *testing.T) {
	assert.Equal(t, []int64{3, 1, 2}, ParseQualifiedIDs(" 3, 1,,x,2 "))
	assert.Empty(t, ParseQualifiedIDs(""))
	assert.Equal(t, "3,1,2", FormatQualifiedIDs([]int64{3, 1, 2}))

	rows := []Record{
		{ID: "c1", Fields: map[string]any{FieldConfigKey: ConfigKeyCurrentStage, FieldConfigValue: "lock"}},
		{ID: "c2", Fields: map[string]any{FieldConfigKey: ConfigKeyQualifiedProjects, FieldConfigValue: "5,6"}},
	}
	set := QualifiedSetFromConfig(rows)
	assert.Equal(t, "c2", set.RecordID)
	assert.True(t, set.Contains(6))
	assert.False(t, set.Contains(7))
	assert.True(t, QualifiedSetFromConfig(nil).Empty())
}

func TestIsBusinessError(t *testing.T) {
	assert.True(t, IsBusinessError(fmt.Errorf("invest: %w", ErrInsufficientBudget)))
	assert.True(t, IsBusinessError(ErrStageNotInvestable))
	assert.False(t, IsBusinessError(fmt.Errorf("invest: %w", ErrLedgerWrite)))
	assert.False(t, IsBusinessError(nil))
}
