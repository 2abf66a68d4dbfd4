// Package investors is the investor read model: login, profile and history.
package investors

import (
	"context"
	"fmt"
	"time"

	"github.com/gdtech/hackathon/internal/aggregation"
	"github.com/gdtech/hackathon/internal/cache"
	"github.com/gdtech/hackathon/internal/contracts"
	"github.com/gdtech/hackathon/pkg/logger"
	"github.com/gdtech/hackathon/pkg/redis"
)

// Service reads investor profiles
type Service struct {
	store  contracts.RecordStore
	cache  cache.Cache
	ttl    time.Duration
	loc    *time.Location
	logger *logger.Logger
}

// New creates a service. Profiles are cached for ttl; history times are
// reported in loc.
func New(store contracts.RecordStore, c cache.Cache, ttl time.Duration, loc *time.Location, log *logger.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		store:  store,
		cache:  c,
		ttl:    ttl,
		loc:    loc,
		logger: log.Component("investors"),
	}
}

// Login matches username and password against enabled investors. Every
// mismatch reports the same error.
func (s *Service) Login(ctx context.Context, username, password string) (*contracts.Investor, error) {
	inv, err := s.load(ctx, username)
	if err != nil {
		if contracts.IsBusinessError(err) {
			return nil, contracts.ErrInvalidCredentials
		}
		return nil, err
	}

	if !inv.Enabled || inv.Password == "" || inv.Password != password {
		s.logger.WithField("username", username).Info("Login rejected")
		return nil, contracts.ErrInvalidCredentials
	}

	s.logger.WithField("username", username).Info("Investor logged in")
	return inv, nil
}

// GetInvestor returns the investor profile with history, invested amount
// and remaining budget
func (s *Service) GetInvestor(ctx context.Context, username string) (*contracts.Investor, error) {
	key := redis.InvestorKey(username)

	var cached contracts.Investor
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.logger.WithError(err).Warn("Investor cache read failed")
	}
	if found && err == nil {
		return &cached, nil
	}

	inv, err := s.load(ctx, username)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, inv, s.ttl); err != nil {
		s.logger.WithError(err).Warn("Investor cache write failed")
	}
	return inv, nil
}

// Invalidate drops the cached profile of username
func (s *Service) Invalidate(ctx context.Context, username string) {
	if err := s.cache.Delete(ctx, redis.InvestorKey(username)); err != nil {
		s.logger.WithError(err).Warn("Investor cache eviction failed")
	}
}

func (s *Service) load(ctx context.Context, username string) (*contracts.Investor, error) {
	rows, err := aggregation.Fetch(ctx, s.store,
		contracts.CollectionInvestors,
		contracts.CollectionInvestments,
		contracts.CollectionProjects,
	)
	if err != nil {
		return nil, err
	}

	inv, ok := aggregation.IndexInvestors(rows[contracts.CollectionInvestors])[username]
	if !ok {
		return nil, fmt.Errorf("%w: %s", contracts.ErrInvestorNotFound, username)
	}

	s.attachHistory(inv, rows[contracts.CollectionInvestments], rows[contracts.CollectionProjects])
	return inv, nil
}

// attachHistory fills History, InvestedAmount and a missing RemainingBudget
func (s *Service) attachHistory(inv *contracts.Investor, ledgerRows, projectRows []contracts.Record) {
	projects := make(map[int64]*contracts.Project, len(projectRows))
	for _, r := range projectRows {
		p := contracts.ProjectFromRecord(r)
		if _, exists := projects[p.ID]; !exists {
			projects[p.ID] = p
		}
	}

	inv.History = make([]contracts.InvestmentHistory, 0)
	inv.InvestedAmount = 0
	for _, r := range ledgerRows {
		rec := contracts.InvestmentRecordFromRecord(r)
		if rec.InvestorUsername != inv.Username {
			continue
		}

		h := contracts.InvestmentHistory{
			ProjectID:   rec.ProjectID,
			ProjectName: rec.ProjectName,
			Amount:      rec.Amount,
		}
		if rec.Timestamp > 0 {
			h.Time = rec.Time().In(s.loc)
		}
		if p, ok := projects[rec.ProjectID]; ok {
			h.TeamName = p.TeamName
			h.TeamNumber = p.TeamNumber
			if h.ProjectName == "" {
				h.ProjectName = p.Name
			}
		}

		inv.History = append(inv.History, h)
		inv.InvestedAmount += rec.Amount
	}

	if inv.RemainingBudget == nil {
		remaining := inv.InitialBudget - inv.InvestedAmount
		inv.RemainingBudget = &remaining
	}
}
