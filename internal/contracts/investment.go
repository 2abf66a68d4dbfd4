package contracts

import (
	"strconv"
	"strings"
	"time"
)

// ConfigKeyCurrentStage and ConfigKeyQualifiedProjects are 配置项 values
const (
	ConfigKeyCurrentStage      = "current_stage"
	ConfigKeyQualifiedProjects = "qualified_project_ids"
)

// InvestmentRecord is one append-only ledger row
// ⭐ SSOT: ledger rows are created only by the ledger and never updated
type InvestmentRecord struct {
	InvestorUsername string
	ProjectID        int64
	Amount           int64
	Timestamp        int64 // epoch millis
	InvestorName     string
	ProjectName      string
}

// Fields encodes the row for the record store
func (r InvestmentRecord) Fields() map[string]any {
	return map[string]any{
		FieldLedgerInvestor:     r.InvestorUsername,
		FieldLedgerProjectID:    r.ProjectID,
		FieldLedgerAmount:       r.Amount,
		FieldLedgerTime:         r.Timestamp,
		FieldLedgerInvestorName: r.InvestorName,
		FieldLedgerProjectName:  r.ProjectName,
	}
}

// Time returns the row timestamp
func (r InvestmentRecord) Time() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// InvestmentRecordFromRecord decodes an investments-collection row
func InvestmentRecordFromRecord(r Record) InvestmentRecord {
	f := r.Fields
	return InvestmentRecord{
		InvestorUsername: FieldString(f, FieldLedgerInvestor),
		ProjectID:        FieldInt64(f, FieldLedgerProjectID),
		Amount:           FieldInt64(f, FieldLedgerAmount),
		Timestamp:        FieldInt64(f, FieldLedgerTime),
		InvestorName:     FieldString(f, FieldLedgerInvestorName),
		ProjectName:      FieldString(f, FieldLedgerProjectName),
	}
}

// QualifiedSet is the locked list of qualifying project ids
type QualifiedSet struct {
	IDs      []int64
	RecordID string // config row handle, empty when the row does not exist
}

// Empty reports whether no set has been locked
func (q QualifiedSet) Empty() bool {
	return len(q.IDs) == 0
}

// Contains reports whether id is qualified
func (q QualifiedSet) Contains(id int64) bool {
	for _, v := range q.IDs {
		if v == id {
			return true
		}
	}
	return false
}

// ParseQualifiedIDs parses "1,2,3". Blank and malformed entries are skipped.
func ParseQualifiedIDs(s string) []int64 {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// FormatQualifiedIDs is the inverse of ParseQualifiedIDs
func FormatQualifiedIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

// FindConfig returns the config row whose 配置项 equals key
func FindConfig(rows []Record, key string) (Record, bool) {
	for _, r := range rows {
		if FieldString(r.Fields, FieldConfigKey) == key {
			return r, true
		}
	}
	return Record{}, false
}

// QualifiedSetFromConfig extracts the stored qualified set from config rows
func QualifiedSetFromConfig(rows []Record) QualifiedSet {
	row, ok := FindConfig(rows, ConfigKeyQualifiedProjects)
	if !ok {
		return QualifiedSet{}
	}
	return QualifiedSet{
		IDs:      ParseQualifiedIDs(FieldString(row.Fields, FieldConfigValue)),
		RecordID: row.ID,
	}
}
