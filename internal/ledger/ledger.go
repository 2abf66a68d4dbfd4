// Package ledger records investments and keeps investor budgets consistent
// with the append-only investments collection.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gdtech/hackathon/internal/contracts"
	"github.com/gdtech/hackathon/internal/realtime"
	"github.com/gdtech/hackathon/pkg/logger"
	"github.com/gdtech/hackathon/pkg/redis"
)

// Projects is the read side the ledger consults and invalidates
type Projects interface {
	Stage(ctx context.Context) contracts.Stage
	GetProjectByID(ctx context.Context, id int64) (*contracts.Project, error)
	QualifiedIDs(ctx context.Context) ([]int64, error)
	InvalidateProjects(ctx context.Context)
	InvalidateProject(ctx context.Context, id int64)
	InvalidateInvestor(ctx context.Context, username string)
}

// Locker serializes work across processes
type Locker interface {
	Acquire(ctx context.Context, name string) (func(), error)
}

// InvestRequest is one investment attempt
type InvestRequest struct {
	InvestorUsername string `json:"investorUsername"`
	ProjectID        int64  `json:"projectId"`
	Amount           int64  `json:"amount"`
}

// Receipt describes an accepted investment
type Receipt struct {
	RecordID         string    `json:"recordId"`
	InvestorUsername string    `json:"investorUsername"`
	ProjectID        int64     `json:"projectId"`
	ProjectName      string    `json:"projectName"`
	Amount           int64     `json:"amount"`
	RemainingBudget  int64     `json:"remainingAmount"`
	BudgetSynced     bool      `json:"budgetSynced"`
	Time             time.Time `json:"time"`
}

// Ledger validates and records investments
// ⭐ SSOT: investment rows are appended and budgets decremented only here
type Ledger struct {
	store     contracts.RecordStore
	projects  Projects
	locker    Locker
	publisher realtime.Publisher
	logger    *logger.Logger
	now       func() time.Time

	locks *keyedMutex

	// suspect holds investors whose stored remaining budget missed a decrement
	suspectMu sync.Mutex
	suspect   map[string]struct{}
}

// New creates a ledger
func New(store contracts.RecordStore, projects Projects, log *logger.Logger) *Ledger {
	return &Ledger{
		store:     store,
		projects:  projects,
		publisher: realtime.NopPublisher{},
		logger:    log.Component("ledger"),
		now:       time.Now,
		locks:     newKeyedMutex(),
		suspect:   make(map[string]struct{}),
	}
}

// WithLocker adds a cross-process lock around each investor's critical section
func (l *Ledger) WithLocker(locker Locker) *Ledger {
	l.locker = locker
	return l
}

// WithPublisher sets where ranking updates are announced
func (l *Ledger) WithPublisher(p realtime.Publisher) *Ledger {
	l.publisher = p
	return l
}

// WithClock replaces the clock, for tests
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// Invest validates req and records it. Checks run in order: amount, stage,
// investor, project qualification, budget.
func (l *Ledger) Invest(ctx context.Context, req InvestRequest) (*Receipt, error) {
	if req.Amount < 1 {
		return nil, contracts.ErrInvalidAmount
	}

	if current := l.projects.Stage(ctx); !current.CanInvest() {
		return nil, fmt.Errorf("%w (stage %s)", contracts.ErrStageNotInvestable, current.Code())
	}

	unlock, err := l.lock(ctx, req.InvestorUsername)
	if err != nil {
		return nil, err
	}
	defer unlock()

	investor, err := l.findInvestor(ctx, req.InvestorUsername)
	if err != nil {
		return nil, err
	}

	project, err := l.qualifiedProject(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}

	remaining, err := l.remaining(ctx, investor)
	if err != nil {
		return nil, err
	}
	if req.Amount > remaining {
		return nil, fmt.Errorf("%w: requested %d, remaining %d", contracts.ErrInsufficientBudget, req.Amount, remaining)
	}

	at := l.now()
	row := contracts.InvestmentRecord{
		InvestorUsername: investor.Username,
		ProjectID:        project.ID,
		Amount:           req.Amount,
		Timestamp:        at.UnixMilli(),
		InvestorName:     investor.Name,
		ProjectName:      project.Name,
	}
	recordID, err := l.store.CreateRecord(ctx, contracts.CollectionInvestments, row.Fields())
	if err != nil {
		l.logger.WithError(err).WithField("investor", investor.Username).Error("Failed to append investment")
		return nil, fmt.Errorf("%w: %v", contracts.ErrLedgerWrite, err)
	}

	receipt := &Receipt{
		RecordID:         recordID,
		InvestorUsername: investor.Username,
		ProjectID:        project.ID,
		ProjectName:      project.Name,
		Amount:           req.Amount,
		RemainingBudget:  remaining - req.Amount,
		BudgetSynced:     true,
		Time:             at,
	}

	err = l.store.UpdateRecord(ctx, contracts.CollectionInvestors, investor.RecordID, map[string]any{
		contracts.FieldRemainingBudget: receipt.RemainingBudget,
	})
	if err != nil {
		receipt.BudgetSynced = false
		l.markSuspect(investor.Username)
		l.logger.WithError(fmt.Errorf("%w: %v", contracts.ErrBudgetSync, err)).WithFields(map[string]interface{}{
			"investor":  investor.Username,
			"remaining": receipt.RemainingBudget,
		}).Error("Investment recorded but remaining budget not written")
	} else {
		l.clearSuspect(investor.Username)
	}

	l.projects.InvalidateInvestor(ctx, investor.Username)
	l.projects.InvalidateProject(ctx, project.ID)
	l.projects.InvalidateProjects(ctx)

	l.publisher.Publish(realtime.Event{
		Type: realtime.EventRankingUpdated,
		Data: realtime.RankingChange{
			ProjectID:        project.ID,
			InvestorUsername: investor.Username,
			Amount:           req.Amount,
		},
		Timestamp: at,
	})

	l.logger.WithFields(map[string]interface{}{
		"investor":  investor.Username,
		"project":   project.ID,
		"amount":    req.Amount,
		"remaining": receipt.RemainingBudget,
		"record_id": recordID,
	}).Info("Investment recorded")

	return receipt, nil
}

// lock takes the in-process investor lock, then the shared one when configured.
// Without the shared lock another replica could spend the same budget, so
// any shared lock failure rejects the investment.
func (l *Ledger) lock(ctx context.Context, username string) (func(), error) {
	unlockLocal := l.locks.Lock(username)
	if l.locker == nil {
		return unlockLocal, nil
	}

	release, err := l.locker.Acquire(ctx, "investor:"+username)
	if err != nil {
		unlockLocal()
		if !errors.Is(err, redis.ErrLockNotAcquired) && ctx.Err() == nil {
			l.logger.WithError(err).WithField("investor", username).Error("Shared investor lock backend failed")
		}
		return nil, fmt.Errorf("%w: %w", contracts.ErrLockBusy, err)
	}

	return func() {
		release()
		unlockLocal()
	}, nil
}

// findInvestor reads the investors collection fresh, bypassing any cache
func (l *Ledger) findInvestor(ctx context.Context, username string) (*contracts.Investor, error) {
	rows, err := l.store.ListRecords(ctx, contracts.CollectionInvestors)
	if err != nil {
		return nil, fmt.Errorf("%w: investors: %v", contracts.ErrExternalRead, err)
	}

	for _, r := range rows {
		inv := contracts.InvestorFromRecord(r)
		if inv.Username != username {
			continue
		}
		if !inv.Enabled {
			break
		}
		return inv, nil
	}
	return nil, fmt.Errorf("%w: %s", contracts.ErrInvestorNotFound, username)
}

// qualifiedProject returns the project when it is in the qualified set as
// ranking applies it: locked on first use and cut to the quota
func (l *Ledger) qualifiedProject(ctx context.Context, id int64) (*contracts.Project, error) {
	ids, err := l.projects.QualifiedIDs(ctx)
	if err != nil {
		return nil, err
	}
	if !(contracts.QualifiedSet{IDs: ids}).Contains(id) {
		return nil, fmt.Errorf("%w: project %d", contracts.ErrProjectNotQualified, id)
	}

	project, err := l.projects.GetProjectByID(ctx, id)
	if errors.Is(err, contracts.ErrProjectNotFound) {
		return nil, fmt.Errorf("%w: project %d not found", contracts.ErrProjectNotQualified, id)
	}
	if err != nil {
		return nil, err
	}
	return project, nil
}

// remaining returns the spendable budget: the stored value, or the ledger
// total when the stored value is missing or suspect
func (l *Ledger) remaining(ctx context.Context, inv *contracts.Investor) (int64, error) {
	if inv.RemainingBudget != nil && !l.isSuspect(inv.Username) {
		return *inv.RemainingBudget, nil
	}

	rows, err := l.store.ListRecords(ctx, contracts.CollectionInvestments)
	if err != nil {
		return 0, fmt.Errorf("%w: investments: %v", contracts.ErrExternalRead, err)
	}
	return inv.InitialBudget - Invested(rows, inv.Username), nil
}

// Invested sums the ledger rows of username
func Invested(rows []contracts.Record, username string) int64 {
	var total int64
	for _, r := range rows {
		rec := contracts.InvestmentRecordFromRecord(r)
		if rec.InvestorUsername == username {
			total += rec.Amount
		}
	}
	return total
}

func (l *Ledger) markSuspect(username string) {
	l.suspectMu.Lock()
	l.suspect[username] = struct{}{}
	l.suspectMu.Unlock()
}

func (l *Ledger) clearSuspect(username string) {
	l.suspectMu.Lock()
	delete(l.suspect, username)
	l.suspectMu.Unlock()
}

func (l *Ledger) isSuspect(username string) bool {
	l.suspectMu.Lock()
	defer l.suspectMu.Unlock()
	_, ok := l.suspect[username]
	return ok
}

// Suspects returns the investors awaiting a budget repair
func (l *Ledger) Suspects() []string {
	l.suspectMu.Lock()
	defer l.suspectMu.Unlock()

	out := make([]string, 0, len(l.suspect))
	for u := range l.suspect {
		out = append(out, u)
	}
	return out
}
