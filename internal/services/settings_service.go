package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/auric-atelier/api/internal/repositories"
)

var (
	// ErrSettingsInvalidInput indicates the update command failed validation.
	ErrSettingsInvalidInput = errors.New("settings: invalid input")
)

// SettingsServiceDeps enumerates collaborators required to construct the service.
type SettingsServiceDeps struct {
	Settings repositories.SettingsRepository
	Clock    func() time.Time
}

type settingsService struct {
	settings repositories.SettingsRepository
	clock    func() time.Time
}

// NewSettingsService wires dependencies into a SettingsService implementation.
func NewSettingsService(deps SettingsServiceDeps) (SettingsService, error) {
	if deps.Settings == nil {
		return nil, errors.New("settings service: settings repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &settingsService{
		settings: deps.Settings,
		clock: func() time.Time {
			return clock().UTC()
		},
	}, nil
}

func (s *settingsService) Get(ctx context.Context) (StoreSettings, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return StoreSettings{}, err
	}
	return settings, nil
}

func (s *settingsService) Update(ctx context.Context, cmd UpdateSettingsCommand) (StoreSettings, error) {
	if err := validateSettingsCommand(cmd); err != nil {
		return StoreSettings{}, err
	}

	current, err := s.settings.Get(ctx)
	if err != nil {
		return StoreSettings{}, err
	}

	if cmd.StandardShippingFee != nil {
		current.StandardShippingFee = *cmd.StandardShippingFee
	}
	if cmd.FreeShippingThreshold != nil {
		current.FreeShippingThreshold = *cmd.FreeShippingThreshold
	}
	if cmd.CompanyName != nil {
		current.CompanyName = strings.TrimSpace(*cmd.CompanyName)
	}
	if cmd.SupportEmail != nil {
		current.SupportEmail = strings.TrimSpace(*cmd.SupportEmail)
	}
	if cmd.SupportPhone != nil {
		current.SupportPhone = strings.TrimSpace(*cmd.SupportPhone)
	}
	if cmd.LogoRef != nil {
		current.LogoRef = strings.TrimSpace(*cmd.LogoRef)
	}
	current.UpdatedAt = s.clock()

	updated, err := s.settings.Update(ctx, current)
	if err != nil {
		return StoreSettings{}, err
	}
	return updated, nil
}

func validateSettingsCommand(cmd UpdateSettingsCommand) error {
	if cmd.StandardShippingFee != nil && *cmd.StandardShippingFee < 0 {
		return fmt.Errorf("%w: standard shipping fee must not be negative", ErrSettingsInvalidInput)
	}
	if cmd.FreeShippingThreshold != nil && *cmd.FreeShippingThreshold < 0 {
		return fmt.Errorf("%w: free shipping threshold must not be negative", ErrSettingsInvalidInput)
	}
	if cmd.SupportEmail != nil {
		email := strings.TrimSpace(*cmd.SupportEmail)
		if email != "" {
			if _, err := mail.ParseAddress(email); err != nil {
				return fmt.Errorf("%w: support email is malformed", ErrSettingsInvalidInput)
			}
		}
	}
	return nil
}
