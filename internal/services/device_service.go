package services

import (
	"context"

	"doulitsa/internal/apperr"
	"doulitsa/internal/models"
)

const (
	MsgDeviceRegistered   = "Η συσκευή καταχωρήθηκε"
	MsgDeviceUnregistered = "Η συσκευή αφαιρέθηκε"
)

type DeviceStore interface {
	Register(ctx context.Context, d models.DeviceToken) error
	Unregister(ctx context.Context, userID int64, token string) error
}

type DeviceService struct {
	DeviceRepo DeviceStore
}

func (s *DeviceService) Register(ctx context.Context, userID int64, req *models.DeviceRequest) error {
	if err := validateForm(req); err != nil {
		return err
	}
	if err := s.DeviceRepo.Register(ctx, models.DeviceToken{UserID: userID, Token: req.Token, Platform: req.Platform}); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

func (s *DeviceService) Unregister(ctx context.Context, userID int64, token string) error {
	if token == "" {
		return apperr.Validation(map[string]string{"token": "Το πεδίο είναι υποχρεωτικό"})
	}
	if err := s.DeviceRepo.Unregister(ctx, userID, token); err != nil {
		return apperr.Internal(err)
	}
	return nil
}
