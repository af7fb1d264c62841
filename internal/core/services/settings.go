package services

import (
	"fmt"
	"time"

	"github.com/custodia-labs/nexus-canvas/internal/core/domain"
	"github.com/custodia-labs/nexus-canvas/internal/core/ports/driven"
	"github.com/custodia-labs/nexus-canvas/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
const (
	keyZMax                = "canvas.z_max"
	keyMaxHistory          = "canvas.max_history"
	keyHistoryThrottle     = "canvas.history_throttle"
	keySaveDebounce        = "canvas.save_debounce"
	keyAutosaveSettle      = "canvas.autosave_settle"
	keySaveRetryLimit      = "canvas.save_retry_limit"
	keyVisibilityBump      = "canvas.visibility_bump"
	keyVisibilityRelease   = "canvas.visibility_release"
	keyCompactionRetention = "canvas.compaction_retention"
	keyDuplicateOffsetX    = "canvas.duplicate_offset_x"
	keyDuplicateOffsetY    = "canvas.duplicate_offset_y"
	keySizeAffecting       = "canvas.size_affecting_fields"
	keyStorageBackend      = "storage.backend"
	keyStorageDataDir      = "storage.data_dir"
	keyStorageWriteBehind  = "storage.write_behind"
	keyHistoryCodec        = "history.codec"
)

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	validator   driven.SettingsValidator
}

// NewSettingsService creates a new settings service.
// validator is optional; without it only enum values are checked.
func NewSettingsService(configStore driven.ConfigStore, validator driven.SettingsValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		validator:   validator,
	}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()
	dc := defaults.Canvas

	settings := &domain.AppSettings{
		Canvas: domain.CanvasSettings{
			ZMax:                s.getInt(keyZMax, dc.ZMax),
			MaxHistory:          s.getInt(keyMaxHistory, dc.MaxHistory),
			HistoryThrottle:     s.getDuration(keyHistoryThrottle, dc.HistoryThrottle),
			SaveDebounce:        s.getDuration(keySaveDebounce, dc.SaveDebounce),
			AutosaveSettle:      s.getDuration(keyAutosaveSettle, dc.AutosaveSettle),
			SaveRetryLimit:      s.getInt(keySaveRetryLimit, dc.SaveRetryLimit),
			VisibilityBump:      s.getDuration(keyVisibilityBump, dc.VisibilityBump),
			VisibilityRelease:   s.getDuration(keyVisibilityRelease, dc.VisibilityRelease),
			CompactionRetention: s.getInt(keyCompactionRetention, dc.CompactionRetention),
			DuplicateOffset: domain.Position{
				X: float64(s.getInt(keyDuplicateOffsetX, int(dc.DuplicateOffset.X))),
				Y: float64(s.getInt(keyDuplicateOffsetY, int(dc.DuplicateOffset.Y))),
			},
			SizeAffectingFields: s.getStringSlice(keySizeAffecting, dc.SizeAffectingFields),
		},
		Storage: domain.StorageSettings{
			Backend:     s.getBackend(defaults.Storage.Backend),
			DataDir:     s.configStore.GetString(keyStorageDataDir), // Empty means the default data dir
			WriteBehind: s.getBool(keyStorageWriteBehind, defaults.Storage.WriteBehind),
		},
		History: domain.HistorySettings{
			Codec: s.getCodec(defaults.History.Codec),
		},
	}

	return settings, nil
}

// Save persists application settings in one write.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	c := settings.Canvas
	values := map[string]any{
		keyZMax:                c.ZMax,
		keyMaxHistory:          c.MaxHistory,
		keyHistoryThrottle:     c.HistoryThrottle.String(),
		keySaveDebounce:        c.SaveDebounce.String(),
		keyAutosaveSettle:      c.AutosaveSettle.String(),
		keySaveRetryLimit:      c.SaveRetryLimit,
		keyVisibilityBump:      c.VisibilityBump.String(),
		keyVisibilityRelease:   c.VisibilityRelease.String(),
		keyCompactionRetention: c.CompactionRetention,
		keyDuplicateOffsetX:    int(c.DuplicateOffset.X),
		keyDuplicateOffsetY:    int(c.DuplicateOffset.Y),
		keySizeAffecting:       c.SizeAffectingFields,
		keyStorageBackend:      settings.Storage.Backend.String(),
		keyStorageDataDir:      settings.Storage.DataDir,
		keyStorageWriteBehind:  settings.Storage.WriteBehind,
		keyHistoryCodec:        settings.History.Codec.String(),
	}
	if err := s.configStore.SetMany(values); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// SetStorageBackend updates the storage backend.
func (s *SettingsService) SetStorageBackend(backend domain.StorageBackend) error {
	if !backend.IsValid() {
		return fmt.Errorf("invalid storage backend: %s", backend)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}
	settings.Storage.Backend = backend
	return s.Save(settings)
}

// SetCodec updates the history compaction codec.
func (s *SettingsService) SetCodec(codec domain.CodecName) error {
	if !codec.IsValid() {
		return fmt.Errorf("invalid compaction codec: %s", codec)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}
	settings.History.Codec = codec
	return s.Save(settings)
}

// Validate checks the current settings.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	if !settings.Storage.Backend.IsValid() {
		return fmt.Errorf("invalid storage backend: %s", settings.Storage.Backend)
	}
	if !settings.History.Codec.IsValid() {
		return fmt.Errorf("invalid compaction codec: %s", settings.History.Codec)
	}

	if s.validator == nil {
		return nil
	}
	return s.validator.ValidateCanvas(&settings.Canvas)
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

func (s *SettingsService) getStringSlice(key string, defaultVal []string) []string {
	if _, exists := s.configStore.Get(key); !exists {
		return append([]string(nil), defaultVal...)
	}
	return s.configStore.GetStringSlice(key)
}

func (s *SettingsService) getBackend(defaultVal domain.StorageBackend) domain.StorageBackend {
	val := s.configStore.GetString(keyStorageBackend)
	if val == "" {
		return defaultVal
	}
	backend := domain.StorageBackend(val)
	if !backend.IsValid() {
		return defaultVal
	}
	return backend
}

func (s *SettingsService) getCodec(defaultVal domain.CodecName) domain.CodecName {
	val := s.configStore.GetString(keyHistoryCodec)
	if val == "" {
		return defaultVal
	}
	codec := domain.CodecName(val)
	if !codec.IsValid() {
		return defaultVal
	}
	return codec
}
