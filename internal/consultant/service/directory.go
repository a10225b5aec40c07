package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	attributiondomain "github.com/railzwaylabs/atelier/internal/attribution/domain"
	"github.com/railzwaylabs/atelier/internal/clock"
	"github.com/railzwaylabs/atelier/internal/consultant/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Directory {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("consultant.directory"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

var hundred = decimal.NewFromInt(100)

func (s *Service) Resolve(ctx context.Context, code string) (*domain.Consultant, error) {
	canonical := attributiondomain.Canonicalize(code)
	if canonical == "" {
		return nil, nil
	}
	return s.repo.FindActiveByCode(ctx, s.db, canonical)
}

func (s *Service) FindByID(ctx context.Context, id snowflake.ID) (*domain.Consultant, error) {
	if id == 0 {
		return nil, nil
	}
	return s.repo.FindByID(ctx, s.db, id)
}

func (s *Service) ListReportable(ctx context.Context) ([]domain.Consultant, error) {
	return s.repo.ListReportable(ctx, s.db)
}

// Upsert creates the consultant or updates every mutable field of the existing record with the same code.
func (s *Service) Upsert(ctx context.Context, req domain.UpsertRequest) (*domain.Consultant, error) {
	code := attributiondomain.Canonicalize(req.Code)
	if code == "" {
		return nil, domain.ErrInvalidCode
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	status := req.Status
	if status == "" {
		status = domain.StatusActive
	}
	if !status.Valid() {
		return nil, domain.ErrInvalidStatus
	}
	pct := req.CommissionPercentage
	if pct.IsNegative() || pct.GreaterThan(hundred) {
		return nil, domain.ErrInvalidPercent
	}
	reports := true
	if req.ReportsEnabled != nil {
		reports = *req.ReportsEnabled
	}

	now := s.clock.Now(ctx)
	var out *domain.Consultant
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindByCode(ctx, tx, code)
		if err != nil {
			return err
		}
		if existing != nil {
			existing.Name = name
			existing.Email = strings.TrimSpace(req.Email)
			existing.Status = status
			existing.CommissionPercentage = pct
			existing.ReportsEnabled = reports
			existing.UpdatedAt = now
			out = existing
			return s.repo.Update(ctx, tx, existing)
		}

		out = &domain.Consultant{
			ID:                   s.genID.Generate(),
			Name:                 name,
			Email:                strings.TrimSpace(req.Email),
			Code:                 code,
			Status:               status,
			CommissionPercentage: pct,
			ReportsEnabled:       reports,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		return s.repo.Insert(ctx, tx, out)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("consultant upserted",
		zap.String("consultant_id", out.ID.String()),
		zap.String("code", out.Code),
		zap.String("status", string(out.Status)))
	return out, nil
}
