package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/cuemby/isvactl/pkg/client"
	"github.com/cuemby/isvactl/pkg/isvaerr"
)

const (
	DefaultPort    = 443
	DefaultTimeout = 30
)

// Environment variables read when a provider field is not set in the file.
// Each key lists its fallbacks in order of preference.
var envKeys = map[string][]string{
	"server":         {"ISVA_LMI_HOST"},
	"port":           {"ISVA_LMI_PORT"},
	"user":           {"ISVA_USER", "ANSIBLE_NET_USERNAME"},
	"password":       {"ISVA_PASSWORD", "ANSIBLE_NET_PASSWORD"},
	"validate_certs": {"ISVA_VALIDATE_CERTS"},
	"timeout":        {"ISVA_TIMEOUT"},
}

// Provider holds the connection settings of one appliance
type Provider struct {
	Server        string `yaml:"server"`
	Port          int    `yaml:"port"`
	User          string `yaml:"user"`
	Password      string `yaml:"password"`
	ValidateCerts *bool  `yaml:"validate_certs"`
	CACert        string `yaml:"ca_cert"`
	// Timeout is in seconds
	Timeout int `yaml:"timeout"`
}

// LoadProvider reads the provider file at path, when given, and fills the
// fields it leaves unset from the environment and then from defaults.
func LoadProvider(path string, getenv func(string) string) (*Provider, error) {
	p := &Provider{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read provider file: %w", err)
		}
		if err := yaml.Unmarshal(data, p); err != nil {
			return nil, isvaerr.Validation("failed to parse provider file %s: %v", path, err)
		}
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	if err := p.applyEnv(getenv); err != nil {
		return nil, err
	}
	p.applyDefaults()
	return p, nil
}

func lookupEnv(getenv func(string) string, key string) string {
	for _, name := range envKeys[key] {
		if v := getenv(name); v != "" {
			return v
		}
	}
	return ""
}

func (p *Provider) applyEnv(getenv func(string) string) error {
	var result *multierror.Error

	if p.Server == "" {
		p.Server = lookupEnv(getenv, "server")
	}
	if p.User == "" {
		p.User = lookupEnv(getenv, "user")
	}
	if p.Password == "" {
		p.Password = lookupEnv(getenv, "password")
	}
	if v := lookupEnv(getenv, "port"); p.Port == 0 && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("ISVA_LMI_PORT: %q is not a number", v))
		}
		p.Port = port
	}
	if v := lookupEnv(getenv, "timeout"); p.Timeout == 0 && v != "" {
		timeout, err := strconv.Atoi(v)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("ISVA_TIMEOUT: %q is not a number", v))
		}
		p.Timeout = timeout
	}
	if v := lookupEnv(getenv, "validate_certs"); p.ValidateCerts == nil && v != "" {
		b, err := parseBool(v)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("ISVA_VALIDATE_CERTS: %w", err))
		} else {
			p.ValidateCerts = &b
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return isvaerr.ValidationErr(err)
	}
	return nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on", "y":
		return true, nil
	case "0", "false", "no", "off", "n":
		return false, nil
	}
	return false, fmt.Errorf("%q is not a boolean", s)
}

func (p *Provider) applyDefaults() {
	if p.Port == 0 {
		p.Port = DefaultPort
	}
	if p.Timeout == 0 {
		p.Timeout = DefaultTimeout
	}
	if p.ValidateCerts == nil {
		v := true
		p.ValidateCerts = &v
	}
}

// Validate reports every missing or invalid setting at once
func (p *Provider) Validate() error {
	var result *multierror.Error
	if p.Server == "" {
		result = multierror.Append(result, errors.New("server is required (or set ISVA_LMI_HOST)"))
	}
	if p.User == "" {
		result = multierror.Append(result, errors.New("user is required (or set ISVA_USER)"))
	}
	if p.Password == "" {
		result = multierror.Append(result, errors.New("password is required (or set ISVA_PASSWORD)"))
	}
	if p.Port < 1 || p.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("port %d is out of range", p.Port))
	}
	if p.Timeout < 1 {
		result = multierror.Append(result, fmt.Errorf("timeout must be positive, got %d", p.Timeout))
	}
	if err := result.ErrorOrNil(); err != nil {
		return isvaerr.ValidationErr(err)
	}
	return nil
}

// ClientConfig converts the provider into transport settings
func (p *Provider) ClientConfig() client.Config {
	validate := true
	if p.ValidateCerts != nil {
		validate = *p.ValidateCerts
	}
	return client.Config{
		Host:          p.Server,
		Port:          p.Port,
		User:          p.User,
		Password:      p.Password,
		ValidateCerts: validate,
		CACert:        p.CACert,
		Timeout:       time.Duration(p.Timeout) * time.Second,
	}
}
