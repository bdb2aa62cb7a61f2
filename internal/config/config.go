package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"trackline/internal/domain"
)

// Config models trackline.yml: the provisioning seed for an organization's
// status catalog and default workflow, plus the surrounding service knobs.
type Config struct {
	Organization struct {
		ID   string `yaml:"id" json:"id"`
		Name string `yaml:"name" json:"name"`
	} `yaml:"organization" json:"organization"`
	Statuses []StatusSeed    `yaml:"statuses" json:"statuses"`
	Workflow WorkflowSeed    `yaml:"workflow" json:"workflow"`
	Webhooks []WebhookConfig `yaml:"webhooks,omitempty" json:"webhooks,omitempty"`
}

type StatusSeed struct {
	ID       string `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`
	Category string `yaml:"category" json:"category"`
}

type WorkflowSeed struct {
	Name        string           `yaml:"name" json:"name"`
	Transitions []TransitionSeed `yaml:"transitions" json:"transitions"`
}

type TransitionSeed struct {
	ID         string          `yaml:"id,omitempty" json:"id,omitempty"`
	Name       string          `yaml:"name" json:"name"`
	From       string          `yaml:"from" json:"from"`
	To         string          `yaml:"to" json:"to"`
	Validators []ValidatorSeed `yaml:"validators,omitempty" json:"validators,omitempty"`
}

// ValidatorSeed serializes to the same shape the engine reads back from
// a transition's stored validator list.
type ValidatorSeed struct {
	Type   string         `yaml:"type" json:"type"`
	Config map[string]any `yaml:"config,omitempty" json:"config,omitempty"`
}

// WebhookConfig names a sink for committed audit entries.
type WebhookConfig struct {
	URL            string   `yaml:"url" json:"url"`
	Secret         string   `yaml:"secret,omitempty" json:"secret,omitempty"`
	Actions        []string `yaml:"actions,omitempty" json:"actions,omitempty"`
	Enabled        *bool    `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	TimeoutSeconds int      `yaml:"timeout_seconds,omitempty" json:"timeout_seconds,omitempty"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; import with tl org config import --file <path>", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Organization.ID == "" {
		return fmt.Errorf("config.organization.id is required")
	}
	if len(c.Statuses) == 0 {
		return fmt.Errorf("config.statuses must define at least one status")
	}
	seen := map[string]bool{}
	for _, s := range c.Statuses {
		if s.ID == "" {
			return fmt.Errorf("config.statuses contains empty status id")
		}
		if seen[s.ID] {
			return fmt.Errorf("status %s defined twice", s.ID)
		}
		seen[s.ID] = true
		if !domain.ValidCategory(domain.StatusCategory(s.Category)) {
			return fmt.Errorf("status %s has unknown category %q", s.ID, s.Category)
		}
	}
	if c.Workflow.Name == "" {
		return fmt.Errorf("config.workflow.name is required")
	}
	for _, t := range c.Workflow.Transitions {
		if t.Name == "" {
			return fmt.Errorf("workflow transition with empty name")
		}
		if !seen[t.From] {
			return fmt.Errorf("transition %s references unknown from status %s", t.Name, t.From)
		}
		if !seen[t.To] {
			return fmt.Errorf("transition %s references unknown to status %s", t.Name, t.To)
		}
		for _, v := range t.Validators {
			if v.Type == "" {
				return fmt.Errorf("transition %s has validator with empty type", t.Name)
			}
			if v.Type == "required_field" {
				field, _ := v.Config["field"].(string)
				if field == "" {
					return fmt.Errorf("transition %s required_field validator missing config.field", t.Name)
				}
			}
		}
	}
	for _, w := range c.Webhooks {
		if w.URL == "" {
			return fmt.Errorf("config.webhooks contains empty url")
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "trackline.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(orgID string) string {
	return fmt.Sprintf(defaultTemplate, orgID)
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

// Default returns the default Config struct for an organization.
func Default(orgID string) *Config {
	var cfg Config
	cfg.Organization.ID = orgID
	_ = yaml.NewDecoder(bytes.NewBufferString(fmt.Sprintf(defaultTemplate, orgID))).Decode(&cfg)
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

const defaultTemplate = `organization:
  id: %s
  name: Default Organization

statuses:
  - id: status-todo
    name: To Do
    category: TODO
  - id: status-ip
    name: In Progress
    category: IN_PROGRESS
  - id: status-review
    name: In Review
    category: IN_PROGRESS
  - id: status-done
    name: Done
    category: DONE

workflow:
  name: Default workflow
  transitions:
    - id: t-start
      name: Start Progress
      from: status-todo
      to: status-ip
    - id: t-review
      name: Send to Review
      from: status-ip
      to: status-review
    - id: t-back
      name: Back to Progress
      from: status-review
      to: status-ip
    - id: t-resolve
      name: Resolve
      from: status-review
      to: status-done
      validators:
        - type: required_field
          config:
            field: resolutionId
        - type: no_open_subtasks
    - id: t-reopen
      name: Reopen
      from: status-done
      to: status-todo
`
