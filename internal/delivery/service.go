package delivery

import (
	"context"

	"github.com/google/uuid"

	"github.com/jodise/jodise-backend/pkg/db/models"
	"github.com/jodise/jodise-backend/pkg/enums"
	pkgerrors "github.com/jodise/jodise-backend/pkg/errors"
	"github.com/jodise/jodise-backend/pkg/logger"
)

// Service creates delivery tasks for paid orders.
type Service interface {
	// EnsureTask creates the order's delivery task if it does not exist
	// yet, assigning the first available courier when there is one.
	// Callers treat failures as non-fatal.
	EnsureTask(ctx context.Context, order *models.Order) error
}

type service struct {
	repo Repository
	logg *logger.Logger
}

// NewService wires delivery dependencies.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "delivery repository required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) EnsureTask(ctx context.Context, order *models.Order) error {
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}

	existing, err := s.repo.FindByOrder(ctx, order.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery task")
	}
	if existing != nil {
		return nil
	}

	task := &models.DeliveryTask{
		ID:           uuid.New(),
		OrderID:      order.ID,
		TrackingCode: order.TrackingCode,
		Address:      order.DeliveryAddress,
		Status:       enums.DeliveryTaskStatusUnassigned,
	}

	partner, err := s.repo.FirstAvailablePartner(ctx)
	if err != nil {
		s.logg.Warn(ctx, "courier lookup failed, creating unassigned task: "+err.Error())
	} else if partner != nil {
		task.PartnerID = &partner.ID
		task.Status = enums.DeliveryTaskStatusAssigned
	}

	if err := s.repo.Create(ctx, task); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create delivery task")
	}
	return nil
}
