// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/secret-portal/lib/envfile"
)

// Tunnel selects how the portal is exposed beyond the local machine.
type Tunnel string

const (
	TunnelNone        Tunnel = "none"
	TunnelCloudflared Tunnel = "cloudflared"
	TunnelNgrok       Tunnel = "ngrok"
)

const (
	// DefaultEnvPath is where secrets go when no path is configured.
	DefaultEnvPath = "~/.env"

	// DefaultTimeoutSeconds is the idle lifetime of a session.
	DefaultTimeoutSeconds = 300

	// DefaultLinkText labels the link button.
	DefaultLinkText = "Open console →"

	// MaxTimeoutSeconds caps a session at one day.
	MaxTimeoutSeconds = 24 * 60 * 60
)

// Config is the configuration record for one portal run.
type Config struct {
	// SingleKey, when set, restricts the form to one value for this
	// key.
	SingleKey string `yaml:"key" json:"key"`

	// EnvPath is the env file secrets are merged into.
	EnvPath string `yaml:"env_file" json:"env_file"`

	// Instructions is Markdown (inline HTML allowed) shown above the
	// form.
	Instructions string `yaml:"instructions" json:"instructions"`

	// LinkURL and LinkText describe an optional button pointing at the
	// page where the secret can be obtained.
	LinkURL  string `yaml:"link" json:"link"`
	LinkText string `yaml:"link_text" json:"link_text"`

	// TimeoutSeconds is how long the session waits for a submission.
	TimeoutSeconds int `yaml:"timeout" json:"timeout"`

	// Port is the TCP port to bind; 0 picks a free one.
	Port int `yaml:"port" json:"port"`

	// Host is the bind address. Empty means 127.0.0.1 when a tunnel is
	// used and 0.0.0.0 otherwise.
	Host string `yaml:"host" json:"host"`

	// Tunnel selects the tunnel provider.
	Tunnel Tunnel `yaml:"tunnel" json:"tunnel"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		EnvPath:        DefaultEnvPath,
		LinkText:       DefaultLinkText,
		TimeoutSeconds: DefaultTimeoutSeconds,
		Tunnel:         TunnelNone,
	}
}

// LoadFile reads a configuration file over Default(). The format is
// chosen by extension.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	config := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case ".json", ".jsonc":
		decoder := json.NewDecoder(strings.NewReader(string(jsonc.ToJSON(data))))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(config); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("config %s: unsupported extension (want .yaml, .yml, .json or .jsonc)", path)
	}
	return config, nil
}

// BindHost returns the address to listen on.
func (c *Config) BindHost() string {
	if c.Host != "" {
		return c.Host
	}
	if c.Tunnel != "" && c.Tunnel != TunnelNone {
		return "127.0.0.1"
	}
	return "0.0.0.0"
}

// Validate checks every field and expands EnvPath in place.
func (c *Config) Validate() error {
	var problems []error

	if c.SingleKey != "" && !envfile.ValidKey(c.SingleKey) {
		problems = append(problems, fmt.Errorf("key %q is not a valid environment variable name", c.SingleKey))
	}

	if strings.TrimSpace(c.EnvPath) == "" {
		problems = append(problems, errors.New("env file path is required"))
	} else {
		expanded, err := ExpandHome(c.EnvPath)
		if err != nil {
			problems = append(problems, err)
		} else {
			c.EnvPath = expanded
		}
	}

	if c.TimeoutSeconds < 1 || c.TimeoutSeconds > MaxTimeoutSeconds {
		problems = append(problems, fmt.Errorf("timeout must be between 1 and %d seconds, got %d", MaxTimeoutSeconds, c.TimeoutSeconds))
	}

	if c.Port < 0 || c.Port > 65535 {
		problems = append(problems, fmt.Errorf("port must be between 0 and 65535, got %d", c.Port))
	}

	switch c.Tunnel {
	case TunnelNone, TunnelCloudflared, TunnelNgrok:
	case "":
		c.Tunnel = TunnelNone
	default:
		problems = append(problems, fmt.Errorf("tunnel must be one of none, cloudflared, ngrok; got %q", c.Tunnel))
	}

	if c.LinkURL != "" {
		parsed, err := url.Parse(c.LinkURL)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			problems = append(problems, fmt.Errorf("link %q must be an absolute http(s) URL", c.LinkURL))
		}
	}
	if c.LinkText == "" {
		c.LinkText = DefaultLinkText
	}

	return errors.Join(problems...)
}

// ExpandHome replaces a leading "~" or "~/" with the home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expanding %s: %w", path, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
