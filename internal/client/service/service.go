package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/atelier/internal/client/domain"
	"github.com/railzwaylabs/atelier/internal/clock"
	"github.com/railzwaylabs/atelier/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		log:   p.Log.Named("client.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Ensure(ctx context.Context, tx *gorm.DB, contact domain.Contact, consultantID *snowflake.ID) (*domain.Client, error) {
	email := strings.ToLower(strings.TrimSpace(contact.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, domain.ErrInvalidEmail
	}
	now := s.clock.Now(ctx)

	client, err := s.repo.FindByEmail(ctx, tx, email)
	if err != nil {
		return nil, err
	}

	if client == nil {
		client = &domain.Client{
			ID:        s.genID.Generate(),
			Name:      strings.TrimSpace(contact.Name),
			Email:     email,
			Phone:     strings.TrimSpace(contact.Phone),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if consultantID != nil && *consultantID != 0 {
			id := *consultantID
			client.ConsultantID = &id
			client.FirstAssociatedAt = &now
		}
		// Savepoint so a lost race on the email index leaves the outer transaction usable.
		err := tx.Transaction(func(inner *gorm.DB) error {
			return s.repo.Insert(ctx, inner, client)
		})
		if err == nil {
			return client, nil
		}
		if !db.IsUniqueViolation(err) {
			return nil, err
		}
		client, err = s.repo.FindByEmail(ctx, tx, email)
		if err != nil {
			return nil, err
		}
		if client == nil {
			return nil, domain.ErrInvalidEmail
		}
	}

	if client.ConsultantID == nil && consultantID != nil && *consultantID != 0 {
		linked, err := s.repo.AssociateConsultant(ctx, tx, client.ID, *consultantID, now)
		if err != nil {
			return nil, err
		}
		if linked {
			id := *consultantID
			client.ConsultantID = &id
			client.FirstAssociatedAt = &now
			s.log.Info("client associated with consultant",
				zap.String("client_id", client.ID.String()),
				zap.String("consultant_id", id.String()))
		}
	}
	return client, nil
}
