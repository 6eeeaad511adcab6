package tenant

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

/* FileStore reads tenants from two documents on every lookup:
 *   apps file:     {"<id>": {...}}             existence
 *   webhooks file: {"<id>": {"secret": "..."}} webhook secret
 * Files ending in .yaml/.yml are decoded as YAML, anything else as JSON
 */
type FileStore struct {
	fs           afero.Fs
	appsPath     string
	webhooksPath string
	logger       zerolog.Logger
}

// webhookConfig is a single entry of the webhooks file
type webhookConfig struct {
	Secret string `json:"secret" yaml:"secret"`
}

type option func(*FileStore)

// WithLogger sets the logger used to report unreadable sources
func WithLogger(logger zerolog.Logger) option {
	return func(s *FileStore) {
		s.logger = logger
	}
}

// NewFileStore creates a store backed by the given apps and webhooks files
func NewFileStore(fs afero.Fs, appsPath, webhooksPath string, opts ...option) *FileStore {
	s := &FileStore{
		fs:           fs,
		appsPath:     appsPath,
		webhooksPath: webhooksPath,
		logger:       zerolog.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Exists checks if the tenant is listed in the apps file
func (s *FileStore) Exists(ctx context.Context, id string) bool {
	apps, err := s.readApps()
	if err != nil {
		s.logger.Warn().Err(err).Str("tenant", id).Msg("apps file unavailable, treating tenant as not found")
		return false
	}
	_, exists := apps[id]
	return exists
}

// Secret returns the webhook secret of the tenant, if one is configured
func (s *FileStore) Secret(ctx context.Context, id string) ([]byte, bool) {
	webhooks, err := s.readWebhooks()
	if err != nil {
		s.logger.Warn().Err(err).Str("tenant", id).Msg("webhooks file unavailable, treating secret as absent")
		return nil, false
	}
	cfg, exists := webhooks[id]
	if !exists || cfg.Secret == "" {
		return nil, false
	}
	return []byte(cfg.Secret), true
}

// List returns every tenant of the apps file, sorted by id
func (s *FileStore) List(ctx context.Context) ([]Tenant, error) {
	apps, err := s.readApps()
	if err != nil {
		return nil, err
	}
	// a missing webhooks file only means no tenant is webhook-enabled yet
	webhooks, err := s.readWebhooks()
	if err != nil {
		s.logger.Debug().Err(err).Msg("webhooks file unavailable while listing tenants")
		webhooks = map[string]webhookConfig{}
	}

	tenants := make([]Tenant, 0, len(apps))
	for id := range apps {
		t := Tenant{
			ID:        id,
			HasSecret: webhooks[id].Secret != "",
		}
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("validating tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	sort.Slice(tenants, func(i, j int) bool {
		return tenants[i].ID < tenants[j].ID
	})
	return tenants, nil
}

func (s *FileStore) readApps() (map[string]any, error) {
	apps := make(map[string]any)
	if err := s.decode(s.appsPath, &apps); err != nil {
		return nil, fmt.Errorf("reading apps file: %w", err)
	}
	return apps, nil
}

func (s *FileStore) readWebhooks() (map[string]webhookConfig, error) {
	webhooks := make(map[string]webhookConfig)
	if err := s.decode(s.webhooksPath, &webhooks); err != nil {
		return nil, fmt.Errorf("reading webhooks file: %w", err)
	}
	return webhooks, nil
}

func (s *FileStore) decode(path string, v any) error {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("parsing %s as YAML: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("parsing %s as JSON: %w", path, err)
		}
	}
	return nil
}
