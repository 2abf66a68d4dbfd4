package contracts

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Collection names one logical table of the record store
type Collection string

const (
	CollectionProjects    Collection = "projects"
	CollectionInvestors   Collection = "investors"
	CollectionInvestments Collection = "investments"
	CollectionConfig      Collection = "config"
)

// Collections lists every collection
var Collections = []Collection{CollectionProjects, CollectionInvestors, CollectionInvestments, CollectionConfig}

// Record is one row of the record store
type Record struct {
	ID     string         `json:"record_id"`
	Fields map[string]any `json:"fields"`
}

// RecordStore is the external system of record
// ⭐ SSOT: every read and write of competition data goes through this interface
type RecordStore interface {
	ListRecords(ctx context.Context, collection Collection) ([]Record, error)
	CreateRecord(ctx context.Context, collection Collection, fields map[string]any) (string, error)
	UpdateRecord(ctx context.Context, collection Collection, recordID string, fields map[string]any) error
}

// AnalyticsProvider reports cumulative unique visitors for a site
type AnalyticsProvider interface {
	CumulativeVisitorCount(ctx context.Context, account, siteID string, from, to time.Time) (int64, error)
}

// FieldString decodes a text cell. Rich-text segment lists and link
// objects are flattened to their text.
func FieldString(fields map[string]any, key string) string {
	v, ok := fields[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(stringify(v))
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case map[string]any:
		if s, ok := t["text"].(string); ok && s != "" {
			return s
		}
		if s, ok := t["link"].(string); ok {
			return s
		}
	case []any:
		var b strings.Builder
		for _, seg := range t {
			b.WriteString(stringify(seg))
		}
		return b.String()
	}
	return fmt.Sprint(v)
}

// FieldInt64 decodes a numeric cell; missing or malformed values are 0
func FieldInt64(fields map[string]any, key string) int64 {
	v, _ := FieldInt64OK(fields, key)
	return v
}

// FieldInt64OK decodes a numeric cell and reports whether a value was present
func FieldInt64OK(fields map[string]any, key string) (int64, bool) {
	v, ok := fields[key]
	if !ok || v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case float64:
		return int64(t), true
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, true
		}
		if f, err := t.Float64(); err == nil {
			return int64(f), true
		}
		return 0, false
	}
	s := FieldString(fields, key)
	if s == "" {
		return 0, false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f), true
	}
	return 0, false
}

// FieldBool decodes a checkbox cell, falling back to def when absent or unreadable
func FieldBool(fields map[string]any, key string, def bool) bool {
	v, ok := fields[key]
	if !ok || v == nil {
		return def
	}
	if b, ok := v.(bool); ok {
		return b
	}
	switch strings.ToLower(FieldString(fields, key)) {
	case "true", "1":
		return true
	case "false", "0":
		return false
	}
	return def
}
