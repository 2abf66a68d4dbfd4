package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/gdtech/hackathon/internal/aggregation"
	"github.com/gdtech/hackathon/internal/contracts"
)

// Drift is one investor whose stored remaining budget disagreed with the ledger
type Drift struct {
	Username string `json:"username"`
	Stored   *int64 `json:"stored"`
	Expected int64  `json:"expected"`
	Repaired bool   `json:"repaired"`
	Error    string `json:"error,omitempty"`
}

// ReconcileReport summarizes a Reconcile run
type ReconcileReport struct {
	Checked  int           `json:"checked"`
	Repaired int           `json:"repaired"`
	Failed   int           `json:"failed"`
	Drifts   []Drift       `json:"drifts"`
	Duration time.Duration `json:"duration"`
}

// Reconcile rewrites every stored remaining budget that differs from
// initial minus the investor's ledger total, and clears repair marks.
func (l *Ledger) Reconcile(ctx context.Context) (ReconcileReport, error) {
	start := time.Now()
	report := ReconcileReport{}

	investors, ledgerRows, err := l.readBudgets(ctx)
	if err != nil {
		return report, err
	}

	for _, r := range investors {
		inv := contracts.InvestorFromRecord(r)
		if inv.Username == "" {
			continue
		}
		report.Checked++

		expected := inv.InitialBudget - Invested(ledgerRows, inv.Username)
		if inv.RemainingBudget != nil && *inv.RemainingBudget == expected {
			l.clearSuspect(inv.Username)
			continue
		}

		drift, err := l.repair(ctx, inv.Username)
		if err != nil {
			report.Failed++
			report.Drifts = append(report.Drifts, Drift{
				Username: inv.Username,
				Stored:   inv.RemainingBudget,
				Expected: expected,
				Error:    err.Error(),
			})
			l.logger.WithError(err).WithField("investor", inv.Username).Error("Budget repair failed")
			continue
		}
		if drift != nil {
			report.Drifts = append(report.Drifts, *drift)
			if drift.Repaired {
				report.Repaired++
				l.projects.InvalidateInvestor(ctx, inv.Username)
			}
		}
	}

	report.Duration = time.Since(start)

	l.logger.WithFields(map[string]interface{}{
		"checked":  report.Checked,
		"repaired": report.Repaired,
		"failed":   report.Failed,
		"duration": report.Duration,
	}).Info("Budget reconcile completed")

	return report, nil
}

// repair recomputes one investor under its lock from a fresh read, since
// an investment may have landed after the batch read
func (l *Ledger) repair(ctx context.Context, username string) (*Drift, error) {
	unlock, err := l.lock(ctx, username)
	if err != nil {
		return nil, err
	}
	defer unlock()

	investors, ledgerRows, err := l.readBudgets(ctx)
	if err != nil {
		return nil, err
	}

	for _, r := range investors {
		inv := contracts.InvestorFromRecord(r)
		if inv.Username != username {
			continue
		}

		expected := inv.InitialBudget - Invested(ledgerRows, username)
		if inv.RemainingBudget != nil && *inv.RemainingBudget == expected {
			l.clearSuspect(username)
			return nil, nil
		}

		err := l.store.UpdateRecord(ctx, contracts.CollectionInvestors, inv.RecordID, map[string]any{
			contracts.FieldRemainingBudget: expected,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", contracts.ErrBudgetSync, err)
		}
		l.clearSuspect(username)

		l.logger.WithFields(map[string]interface{}{
			"investor": username,
			"expected": expected,
		}).Warn("Remaining budget repaired")

		return &Drift{Username: username, Stored: inv.RemainingBudget, Expected: expected, Repaired: true}, nil
	}
	return nil, nil
}

func (l *Ledger) readBudgets(ctx context.Context) ([]contracts.Record, []contracts.Record, error) {
	rows, err := aggregation.Fetch(ctx, l.store, contracts.CollectionInvestors, contracts.CollectionInvestments)
	if err != nil {
		return nil, nil, err
	}
	return rows[contracts.CollectionInvestors], rows[contracts.CollectionInvestments], nil
}
