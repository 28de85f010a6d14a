package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"lca-companion/internal/shared/storage/kv"
	"lca-companion/internal/shared/telemetry"
)

// Storage keys, one per setting.
const (
	KeyBackendURL      = "lca_backend_url"
	KeyAPIKey          = "lca_api_key"
	KeyDefaultMock     = "lca_default_mock"
	KeyRequireSelenium = "lca_require_selenium"
	KeyTokenURL        = "lca_oauth_token_url"
	KeyClientID        = "lca_oauth_client_id"
	KeyClientSecret    = "lca_oauth_client_secret"
)

// ValidationError lists the fields that failed validation, keyed by JSON name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name, tag := range e.Fields {
		names = append(names, name+" ("+tag+")")
	}
	sort.Strings(names)
	return "invalid settings: " + strings.Join(names, ", ")
}

// Service owns the current Settings value and persists edits.
type Service struct {
	slot     kv.Slot
	seed     Settings
	validate *validator.Validate

	mu        sync.RWMutex
	current   Settings
	listeners []func(Settings)
}

// NewService builds a Service. seed supplies values for keys never saved.
func NewService(slot kv.Slot, seed Settings) *Service {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return &Service{slot: slot, seed: seed.normalize(), validate: v, current: seed.normalize()}
}

// OnChange registers fn to run after every successful Load or Save.
func (s *Service) OnChange(fn func(Settings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Current returns the last loaded value.
func (s *Service) Current() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Load reads every key from storage, falling back to the seed for keys never saved.
func (s *Service) Load(ctx context.Context) (Settings, error) {
	out := s.seed
	if err := s.loadKey(ctx, KeyBackendURL, &out.BaseURL); err != nil {
		return Settings{}, err
	}
	if err := s.loadKey(ctx, KeyAPIKey, &out.APIKey); err != nil {
		return Settings{}, err
	}
	if err := s.loadKey(ctx, KeyDefaultMock, &out.MockMode); err != nil {
		return Settings{}, err
	}
	if err := s.loadKey(ctx, KeyRequireSelenium, &out.RequireSelenium); err != nil {
		return Settings{}, err
	}
	if err := s.loadKey(ctx, KeyTokenURL, &out.TokenURL); err != nil {
		return Settings{}, err
	}
	if err := s.loadKey(ctx, KeyClientID, &out.ClientID); err != nil {
		return Settings{}, err
	}
	if err := s.loadKey(ctx, KeyClientSecret, &out.ClientSecret); err != nil {
		return Settings{}, err
	}
	out = out.normalize()
	s.publish(out)
	return out, nil
}

// Save validates and persists in, then reloads and notifies listeners.
// Secrets equal to their redacted form keep the stored value, so a UI may
// round-trip what GET returned without wiping credentials.
func (s *Service) Save(ctx context.Context, in Settings) (Settings, error) {
	cur := s.Current()
	if in.APIKey != "" && in.APIKey == mask(cur.APIKey) {
		in.APIKey = cur.APIKey
	}
	if in.ClientSecret != "" && in.ClientSecret == mask(cur.ClientSecret) {
		in.ClientSecret = cur.ClientSecret
	}
	in = in.normalize()

	if err := s.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
			return Settings{}, &ValidationError{Fields: fields}
		}
		return Settings{}, fmt.Errorf("validate settings: %w", err)
	}

	writes := []struct {
		key   string
		value any
	}{
		{KeyBackendURL, in.BaseURL},
		{KeyAPIKey, in.APIKey},
		{KeyDefaultMock, in.MockMode},
		{KeyRequireSelenium, in.RequireSelenium},
		{KeyTokenURL, in.TokenURL},
		{KeyClientID, in.ClientID},
		{KeyClientSecret, in.ClientSecret},
	}
	for _, w := range writes {
		raw, err := json.Marshal(w.value)
		if err != nil {
			return Settings{}, fmt.Errorf("encode %s: %w", w.key, err)
		}
		if err := s.slot.Save(ctx, w.key, raw); err != nil {
			return Settings{}, fmt.Errorf("save %s: %w", w.key, err)
		}
	}

	telemetry.Info("settings.saved", map[string]any{
		"base_url":           in.BaseURL,
		"configured":         in.Configured(),
		"client_credentials": in.UsesClientCredentials(),
		"mock_mode":          in.MockMode,
	})
	return s.Load(ctx)
}

func (s *Service) loadKey(ctx context.Context, key string, dst any) error {
	raw, err := s.slot.Load(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *Service) publish(next Settings) {
	s.mu.Lock()
	s.current = next
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(next)
	}
}
