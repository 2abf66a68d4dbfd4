package stage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gdtech/hackathon/internal/contracts"
	"github.com/gdtech/hackathon/pkg/config"
	"github.com/gdtech/hackathon/pkg/logger"
)

// WindowLayout is the wall-clock format operators write stage windows in
const WindowLayout = "2006-01-02 15:04:05"

// Window is an inclusive [Start, End] interval
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t is inside the window, both ends included
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Resolver determines the current competition stage
// ⭐ SSOT: the only place the current stage is decided
type Resolver struct {
	store   contracts.RecordStore
	windows map[contracts.Stage]Window
	now     func() time.Time
	logger  *logger.Logger
}

// NewResolver builds a resolver. Windows that fail to parse are dropped with a warning.
func NewResolver(store contracts.RecordStore, stages map[string]config.StageWindow, loc *time.Location, log *logger.Logger) *Resolver {
	r := &Resolver{
		store:   store,
		windows: make(map[contracts.Stage]Window),
		now:     time.Now,
		logger:  log.Component("stage"),
	}

	for _, s := range []contracts.Stage{contracts.StageSelection, contracts.StageLock, contracts.StageInvestment} {
		raw, ok := stages[s.Code()]
		if !ok {
			continue
		}
		start, errStart := ParseWindowTime(raw.Start, loc)
		end, errEnd := ParseWindowTime(raw.End, loc)
		if errStart != nil || errEnd != nil {
			r.logger.WithFields(map[string]interface{}{
				"stage": s.Code(),
				"start": raw.Start,
				"end":   raw.End,
			}).Warn("Unparseable stage window ignored")
			continue
		}
		r.windows[s] = Window{Start: start, End: end}
	}

	return r
}

// WithClock replaces the clock, for tests
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// Resolve reads the config collection and determines the stage. It never
// fails: a read error falls through to clock resolution.
func (r *Resolver) Resolve(ctx context.Context) contracts.Stage {
	rows, err := r.store.ListRecords(ctx, contracts.CollectionConfig)
	if err != nil {
		r.logger.WithError(err).Warn("Config read failed, resolving stage by clock")
		return r.ByClock()
	}
	return r.ResolveFromRows(rows)
}

// ResolveFromRows determines the stage from pre-fetched config rows
func (r *Resolver) ResolveFromRows(rows []contracts.Record) contracts.Stage {
	row, ok := contracts.FindConfig(rows, contracts.ConfigKeyCurrentStage)
	if !ok {
		r.logger.Debug("No current_stage row, resolving stage by clock")
		return r.ByClock()
	}

	code := contracts.FieldString(row.Fields, contracts.FieldConfigValue)
	if code == "" {
		return r.ByClock()
	}

	s := contracts.ParseStage(code)
	if s.Code() != code {
		r.logger.WithField("value", code).Warn("Unknown current_stage override, using selection")
	}
	return s
}

// ByClock resolves the stage from the configured windows. Outside every
// window, and after the investment window, the stage is selection; the
// clock never yields ended.
func (r *Resolver) ByClock() contracts.Stage {
	now := r.now()

	selection, hasSelection := r.windows[contracts.StageSelection]
	if hasSelection && now.Before(selection.Start) {
		return contracts.StageSelection
	}

	for _, s := range []contracts.Stage{contracts.StageSelection, contracts.StageLock, contracts.StageInvestment} {
		if w, ok := r.windows[s]; ok && w.Contains(now) {
			return s
		}
	}

	if investment, ok := r.windows[contracts.StageInvestment]; ok && now.After(investment.End) {
		return contracts.StageSelection
	}

	r.logger.Warn("No stage window matched the current time, using selection")
	return contracts.StageSelection
}

// ParseWindowTime parses "yyyy-MM-dd HH:mm:ss" in loc. "24:00:00" means
// midnight at the start of the next day.
func ParseWindowTime(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty stage time")
	}

	if t, err := time.ParseInLocation(WindowLayout, value, loc); err == nil {
		return t, nil
	}

	datePart, clockPart, ok := strings.Cut(value, " ")
	if !ok || strings.TrimSpace(clockPart) != "24:00:00" {
		return time.Time{}, fmt.Errorf("invalid stage time %q", value)
	}
	day, err := time.ParseInLocation("2006-01-02", datePart, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stage date %q: %w", value, err)
	}
	return day.AddDate(0, 0, 1), nil
}

// Describe renders the configured windows, for the operator CLI
func (r *Resolver) Describe() []string {
	var out []string
	for _, s := range []contracts.Stage{contracts.StageSelection, contracts.StageLock, contracts.StageInvestment} {
		w, ok := r.windows[s]
		if !ok {
			out = append(out, s.Code()+": (not configured)")
			continue
		}
		out = append(out, s.Code()+": "+w.Start.Format(WindowLayout)+" → "+w.End.Format(WindowLayout)+" "+strconv.Quote(w.Start.Location().String()))
	}
	return out
}
