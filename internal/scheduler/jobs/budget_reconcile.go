package jobs

import (
	"context"
	"fmt"

	"github.com/gdtech/hackathon/internal/ledger"
	"github.com/gdtech/hackathon/pkg/logger"
)

// Reconciler repairs drift between stored budgets and the ledger
type Reconciler interface {
	Reconcile(ctx context.Context) (ledger.ReconcileReport, error)
}

// BudgetReconcileJob compares every stored remaining budget with the ledger
type BudgetReconcileJob struct {
	reconciler Reconciler
	logger     *logger.Logger
}

// NewBudgetReconcileJob creates a new budget reconcile job
func NewBudgetReconcileJob(r Reconciler, log *logger.Logger) *BudgetReconcileJob {
	return &BudgetReconcileJob{
		reconciler: r,
		logger:     log,
	}
}

// Name returns the job name
func (j *BudgetReconcileJob) Name() string {
	return "budget_reconcile"
}

// Schedule returns the cron schedule (every 15 minutes)
func (j *BudgetReconcileJob) Schedule() string {
	return "0 */15 * * * *"
}

// Run executes the reconcile. Rows that could not be repaired fail the run
// so the scheduler retries them.
func (j *BudgetReconcileJob) Run(ctx context.Context) error {
	report, err := j.reconciler.Reconcile(ctx)
	if err != nil {
		return fmt.Errorf("reconcile budgets: %w", err)
	}

	if report.Repaired > 0 {
		j.logger.WithField("repaired", report.Repaired).Info("Budget drift repaired")
	}
	if report.Failed > 0 {
		return fmt.Errorf("reconcile budgets: %d investors not repaired", report.Failed)
	}

	return nil
}
