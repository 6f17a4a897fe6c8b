package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/auric-atelier/api/internal/domain"
	pfirestore "github.com/auric-atelier/api/internal/platform/firestore"
)

const (
	settingsCollection = "settings"
	settingsDocID      = "store"
)

// Fallbacks applied when the settings document is created on first read.
const (
	defaultStandardShippingFee   = 1000
	defaultFreeShippingThreshold = 10000
	defaultCompanyName           = "Auric Atelier"
)

// SettingsRepository owns the singleton store settings document.
type SettingsRepository struct {
	provider *pfirestore.Provider
	settings *pfirestore.BaseRepository[domain.StoreSettings]
	now      func() time.Time
}

// SettingsRepositoryOption customises repository behaviour.
type SettingsRepositoryOption func(*SettingsRepository)

// WithSettingsClock injects a custom clock (useful for tests).
func WithSettingsClock(clock func() time.Time) SettingsRepositoryOption {
	return func(r *SettingsRepository) {
		if clock != nil {
			r.now = clock
		}
	}
}

// NewSettingsRepository constructs a Firestore-backed settings repository.
func NewSettingsRepository(provider *pfirestore.Provider, opts ...SettingsRepositoryOption) (*SettingsRepository, error) {
	if provider == nil {
		return nil, errors.New("settings repository requires firestore provider")
	}
	repo := &SettingsRepository{
		provider: provider,
		settings: pfirestore.NewBaseRepository[domain.StoreSettings](provider, settingsCollection, nil, nil),
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}
	return repo, nil
}

// Get returns the settings document, creating it with defaults when absent.
// Creation happens inside a transaction so concurrent first reads converge on
// one document.
func (r *SettingsRepository) Get(ctx context.Context) (domain.StoreSettings, error) {
	if r == nil || r.provider == nil {
		return domain.StoreSettings{}, errors.New("settings repository not initialised")
	}

	var settings domain.StoreSettings
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.settings.DocumentRef(ctx, settingsDocID)
		if err != nil {
			return err
		}

		snap, err := tx.Get(ref)
		switch status.Code(err) {
		case codes.NotFound:
			now := r.now().UTC()
			settings = defaultStoreSettings(now)
			return tx.Create(ref, settings)
		case codes.OK:
			// proceed
		default:
			return err
		}

		if err := snap.DataTo(&settings); err != nil {
			return fmt.Errorf("firestore settings decode: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.StoreSettings{}, pfirestore.WrapError("settings.get", err)
	}
	return settings, nil
}

// Update overwrites the settings document.
func (r *SettingsRepository) Update(ctx context.Context, settings domain.StoreSettings) (domain.StoreSettings, error) {
	if r == nil || r.settings == nil {
		return domain.StoreSettings{}, errors.New("settings repository not initialised")
	}
	if settings.StandardShippingFee < 0 || settings.FreeShippingThreshold < 0 {
		return domain.StoreSettings{}, errors.New("settings update: fees must not be negative")
	}

	settings.CompanyName = strings.TrimSpace(settings.CompanyName)
	settings.SupportEmail = strings.TrimSpace(settings.SupportEmail)
	settings.SupportPhone = strings.TrimSpace(settings.SupportPhone)
	settings.UpdatedAt = r.now().UTC()
	if settings.CreatedAt.IsZero() {
		settings.CreatedAt = settings.UpdatedAt
	}

	if _, err := r.settings.Set(ctx, settingsDocID, settings); err != nil {
		return domain.StoreSettings{}, pfirestore.WrapError("settings.update", err)
	}
	return settings, nil
}

func defaultStoreSettings(now time.Time) domain.StoreSettings {
	return domain.StoreSettings{
		StandardShippingFee:   defaultStandardShippingFee,
		FreeShippingThreshold: defaultFreeShippingThreshold,
		CompanyName:           defaultCompanyName,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
}
