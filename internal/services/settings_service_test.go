package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/auric-atelier/api/internal/domain"
)

type stubSettingsRepo struct {
	getFn    func(context.Context) (domain.StoreSettings, error)
	updateFn func(context.Context, domain.StoreSettings) (domain.StoreSettings, error)
}

func (s *stubSettingsRepo) Get(ctx context.Context) (domain.StoreSettings, error) {
	if s.getFn != nil {
		return s.getFn(ctx)
	}
	return domain.StoreSettings{}, nil
}

func (s *stubSettingsRepo) Update(ctx context.Context, settings domain.StoreSettings) (domain.StoreSettings, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, settings)
	}
	return settings, nil
}

// stubRepoError satisfies repositories.RepositoryError for classification tests.
type stubRepoError struct {
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *stubRepoError) Error() string       { return "stub repository error" }
func (e *stubRepoError) IsNotFound() bool    { return e.notFound }
func (e *stubRepoError) IsConflict() bool    { return e.conflict }
func (e *stubRepoError) IsUnavailable() bool { return e.unavailable }

func TestSettingsServiceUpdateAppliesPartialFields(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	current := domain.StoreSettings{
		StandardShippingFee:   1000,
		FreeShippingThreshold: 10000,
		CompanyName:           "Auric Atelier",
		SupportEmail:          "support@auricatelier.test",
	}
	var persisted domain.StoreSettings

	svc, err := NewSettingsService(SettingsServiceDeps{
		Settings: &stubSettingsRepo{
			getFn: func(context.Context) (domain.StoreSettings, error) {
				return current, nil
			},
			updateFn: func(_ context.Context, settings domain.StoreSettings) (domain.StoreSettings, error) {
				persisted = settings
				return settings, nil
			},
		},
		Clock: func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewSettingsService: %v", err)
	}

	fee := int64(1500)
	name := "  Auric Atelier & Co.  "
	updated, err := svc.Update(ctx, UpdateSettingsCommand{
		StandardShippingFee: &fee,
		CompanyName:         &name,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.StandardShippingFee != 1500 {
		t.Fatalf("expected shipping fee 1500, got %d", updated.StandardShippingFee)
	}
	if updated.CompanyName != "Auric Atelier & Co." {
		t.Fatalf("expected trimmed company name, got %q", updated.CompanyName)
	}
	if updated.FreeShippingThreshold != 10000 {
		t.Fatalf("untouched threshold changed: %d", updated.FreeShippingThreshold)
	}
	if updated.SupportEmail != "support@auricatelier.test" {
		t.Fatalf("untouched support email changed: %q", updated.SupportEmail)
	}
	if !persisted.UpdatedAt.Equal(now) {
		t.Fatalf("expected updatedAt %v, got %v", now, persisted.UpdatedAt)
	}
}

func TestSettingsServiceUpdateRejectsInvalidInput(t *testing.T) {
	svc, err := NewSettingsService(SettingsServiceDeps{Settings: &stubSettingsRepo{}})
	if err != nil {
		t.Fatalf("NewSettingsService: %v", err)
	}

	negative := int64(-1)
	badEmail := "not-an-email"
	cases := []struct {
		name string
		cmd  UpdateSettingsCommand
	}{
		{name: "negative fee", cmd: UpdateSettingsCommand{StandardShippingFee: &negative}},
		{name: "negative threshold", cmd: UpdateSettingsCommand{FreeShippingThreshold: &negative}},
		{name: "malformed support email", cmd: UpdateSettingsCommand{SupportEmail: &badEmail}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Update(context.Background(), tc.cmd); !errors.Is(err, ErrSettingsInvalidInput) {
				t.Fatalf("expected ErrSettingsInvalidInput, got %v", err)
			}
		})
	}
}
