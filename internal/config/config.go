package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models safeline.yml.
type Config struct {
	Company struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"company"`
	Plants   []Plant         `yaml:"plants"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
	Advisory AdvisoryConfig  `yaml:"advisory"`
}

type Plant struct {
	ID    string   `yaml:"id"`
	Name  string   `yaml:"name"`
	Areas []string `yaml:"areas"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events"`
	Secret         string   `yaml:"secret"`
	Enabled        *bool    `yaml:"enabled"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// AdvisoryConfig points at the optional external suggestion service. The
// workflow never depends on it; a missing or failing endpoint only disables
// suggestions.
type AdvisoryConfig struct {
	URL            string `yaml:"url"`
	Enabled        bool   `yaml:"enabled"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with sl config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Company.ID == "" {
		return fmt.Errorf("config.company.id is required")
	}
	seen := map[string]bool{}
	for i, p := range c.Plants {
		if p.ID == "" {
			return fmt.Errorf("config.plants[%d].id is required", i)
		}
		if seen[p.ID] {
			return fmt.Errorf("config.plants contains duplicate id %s", p.ID)
		}
		seen[p.ID] = true
	}
	for i, hook := range c.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("config.webhooks[%d].timeout_seconds must not be negative", i)
		}
	}
	if c.Advisory.Enabled && c.Advisory.URL == "" {
		return fmt.Errorf("config.advisory.url is required when advisory is enabled")
	}
	return nil
}

// Plant returns the configured plant with the given id, or nil.
func (c *Config) Plant(id string) *Plant {
	for i := range c.Plants {
		if c.Plants[i].ID == id {
			return &c.Plants[i]
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "safeline.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(companyID string) string {
	return fmt.Sprintf(defaultTemplate, companyID)
}

// Default returns the default Config struct for a company.
func Default(companyID string) *Config {
	var cfg Config
	cfg.Company.ID = companyID
	_ = yaml.NewDecoder(bytes.NewBufferString(fmt.Sprintf(defaultTemplate, companyID))).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `company:
  id: %s
  name: ""

plants:
  - id: plant-1
    name: "Main plant"
    areas: [assembly, warehouse, loading-bay]

webhooks: []

advisory:
  enabled: false
  url: ""
  timeout_seconds: 5
`
