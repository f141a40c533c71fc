package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hamed0406/sitepulse/internal/domain"
)

// EndpointsFile is the YAML seed list loaded at startup.
type EndpointsFile struct {
	Workspaces []WorkspaceSpec `yaml:"workspaces"`
	Endpoints  []EndpointSpec  `yaml:"endpoints"`
}

type WorkspaceSpec struct {
	ID               string `yaml:"id"`
	TimeoutMS        int    `yaml:"timeout_ms,omitempty"`
	MaxRetries       int    `yaml:"max_retries,omitempty"`
	RetryDelayMS     *int   `yaml:"retry_delay_ms,omitempty"`
	FailureThreshold int    `yaml:"failure_threshold,omitempty"`
	NotifyDelayMS    int    `yaml:"notify_delay_ms,omitempty"`
}

type EndpointSpec struct {
	Name      string `yaml:"name"`
	URL       string `yaml:"url"`
	Workspace string `yaml:"workspace,omitempty"`
	Paused    bool   `yaml:"paused,omitempty"`
}

func LoadEndpoints(path string) (*EndpointsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read endpoints file: %w", err)
	}
	var f EndpointsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse endpoints file: %w", err)
	}
	for i, e := range f.Endpoints {
		if e.URL == "" {
			return nil, fmt.Errorf("endpoint %d: url is required", i)
		}
	}
	return &f, nil
}

// CheckConfig overlays the workspace's values on base.
func (w WorkspaceSpec) CheckConfig(base domain.CheckConfig) domain.CheckConfig {
	c := base
	if w.TimeoutMS > 0 {
		c.Timeout = time.Duration(w.TimeoutMS) * time.Millisecond
	}
	if w.MaxRetries > 0 {
		c.MaxRetries = w.MaxRetries
	}
	if w.RetryDelayMS != nil && *w.RetryDelayMS >= 0 {
		c.RetryDelay = time.Duration(*w.RetryDelayMS) * time.Millisecond
	}
	if w.FailureThreshold > 0 {
		c.FailureThreshold = w.FailureThreshold
	}
	if w.NotifyDelayMS > 0 {
		c.NotifyDelay = time.Duration(w.NotifyDelayMS) * time.Millisecond
	}
	return c
}

func (e EndpointSpec) Endpoint() domain.Endpoint {
	return domain.Endpoint{
		WorkspaceID: domain.WorkspaceID(e.Workspace),
		Name:        e.Name,
		URL:         e.URL,
		Active:      !e.Paused,
	}
}
