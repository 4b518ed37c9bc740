package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	stderrors "whatsapp-dispatch/internal/common/errors"
	"whatsapp-dispatch/internal/notification/dispatch"
)

// SettingsStore loads gateway credentials for both backends.
type SettingsStore struct {
	db *sql.DB
}

func NewSettingsStore(db *sql.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// Evolution loads one named Evolution API instance. A missing or incomplete
// row is a configuration error, not a dispatch failure.
func (s *SettingsStore) Evolution(ctx context.Context, name string) (*dispatch.EvolutionSettings, error) {
	var settings dispatch.EvolutionSettings
	err := s.db.QueryRowContext(ctx, `
		SELECT name, base_url, instance_name, api_key
		FROM evolution_instances WHERE name = $1`, name).
		Scan(&settings.Name, &settings.BaseURL, &settings.InstanceName, &settings.APIKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, stderrors.NewGatewayNotConfiguredError(
			fmt.Sprintf("evolution instance %q not found", name))
	}
	if err != nil {
		return nil, fmt.Errorf("load evolution instance %s: %w", name, err)
	}
	if !settings.Configured() {
		return nil, stderrors.NewGatewayNotConfiguredError(
			fmt.Sprintf("evolution instance %q is missing url, instance or api key", name))
	}
	return &settings, nil
}

// Meta loads the singleton Meta cloud API settings.
func (s *SettingsStore) Meta(ctx context.Context) (*dispatch.MetaSettings, error) {
	var settings dispatch.MetaSettings
	err := s.db.QueryRowContext(ctx, `
		SELECT url, version, phone_id, token
		FROM meta_settings LIMIT 1`).
		Scan(&settings.URL, &settings.Version, &settings.PhoneID, &settings.Token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, stderrors.NewGatewayNotConfiguredError("meta settings not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load meta settings: %w", err)
	}
	if !settings.Configured() {
		return nil, stderrors.NewGatewayNotConfiguredError("meta settings are incomplete")
	}
	return &settings, nil
}
