package service

import (
	"context"
	"errors"
	"strings"

	"github.com/yourorg/crypto-alerts/internal/model"
	"github.com/yourorg/crypto-alerts/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrInvalidPriceRange means the requested alert bounds violate
// min price < max price
var ErrInvalidPriceRange = errors.New("min price must be below max price")

// ErrAlertTriggered means the alert already fired and can no longer be
// modified
var ErrAlertTriggered = errors.New("alert has already triggered")

// CreateAlertInput carries the fields for a new alert
type CreateAlertInput struct {
	Symbol   string
	MinPrice decimal.Decimal
	MaxPrice decimal.Decimal
}

// UpdateAlertInput carries the optional fields of an alert update
type UpdateAlertInput struct {
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	IsActive *bool
}

// AlertService handles alert management operations
type AlertService struct {
	alertRepo *repository.AlertRepository
	logger    *zap.Logger
}

// NewAlertService creates a new alert service
func NewAlertService(alertRepo *repository.AlertRepository, logger *zap.Logger) *AlertService {
	return &AlertService{
		alertRepo: alertRepo,
		logger:    logger,
	}
}

// CreateAlert creates a new active alert for a user
func (s *AlertService) CreateAlert(ctx context.Context, userID uuid.UUID, input CreateAlertInput) (*model.Alert, error) {
	if input.MinPrice.GreaterThanOrEqual(input.MaxPrice) {
		return nil, ErrInvalidPriceRange
	}

	alert := &model.Alert{
		UserID:   userID,
		Symbol:   strings.ToUpper(input.Symbol),
		MinPrice: input.MinPrice,
		MaxPrice: input.MaxPrice,
	}

	if err := s.alertRepo.CreateAlert(ctx, alert); err != nil {
		return nil, err
	}

	s.logger.Info("Alert created",
		zap.String("alert_id", alert.ID.String()),
		zap.String("symbol", alert.Symbol),
		zap.String("user_id", userID.String()))

	return alert, nil
}

// UpdateAlert modifies an untriggered alert, keeping the range invariant
func (s *AlertService) UpdateAlert(ctx context.Context, userID, alertID uuid.UUID, input UpdateAlertInput) (*model.Alert, error) {
	alert, err := s.alertRepo.GetAlert(ctx, userID, alertID)
	if err != nil {
		return nil, err
	}

	if alert.Triggered() {
		return nil, ErrAlertTriggered
	}

	if input.MinPrice != nil {
		alert.MinPrice = *input.MinPrice
	}
	if input.MaxPrice != nil {
		alert.MaxPrice = *input.MaxPrice
	}
	if input.IsActive != nil {
		alert.IsActive = *input.IsActive
	}

	if alert.MinPrice.GreaterThanOrEqual(alert.MaxPrice) {
		return nil, ErrInvalidPriceRange
	}

	if err := s.alertRepo.UpdateAlert(ctx, alert); err != nil {
		return nil, err
	}

	return alert, nil
}

// DeleteAlert removes a user's alert
func (s *AlertService) DeleteAlert(ctx context.Context, userID, alertID uuid.UUID) error {
	return s.alertRepo.DeleteAlert(ctx, userID, alertID)
}

// GetUserAlerts lists all of a user's alerts
func (s *AlertService) GetUserAlerts(ctx context.Context, userID uuid.UUID) ([]model.Alert, error) {
	return s.alertRepo.ListUserAlerts(ctx, userID)
}

// GetTriggeredAlerts lists a user's fired alerts
func (s *AlertService) GetTriggeredAlerts(ctx context.Context, userID uuid.UUID) ([]model.Alert, error) {
	return s.alertRepo.ListTriggeredAlerts(ctx, userID)
}
