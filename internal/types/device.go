package types

import (
	"time"

	"github.com/google/uuid"
)

// ConnectionConfig is what the host hands to an adapter before first use.
type ConnectionConfig struct {
	Host      string        `yaml:"host" json:"host"`
	Port      int           `yaml:"port" json:"port,omitempty"`
	Protocol  string        `yaml:"protocol" json:"protocol"`
	Login     string        `yaml:"login" json:"login"`
	Password  string        `yaml:"password" json:"-"`
	VerifyTLS bool          `yaml:"verify_tls" json:"verify_tls"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout,omitempty"`
}

// DeviceDefinition is one entry of the device inventory file.
type DeviceDefinition struct {
	Name         string           `yaml:"name"`
	Connection   ConnectionConfig `yaml:",inline"`
	PasswordEnv  string           `yaml:"password_env"`
	PollInterval time.Duration    `yaml:"poll_interval"`
	Enabled      *bool            `yaml:"enabled"`
}

// IsEnabled treats a missing flag as enabled.
func (d DeviceDefinition) IsEnabled() bool {
	return d.Enabled == nil || *d.Enabled
}

// Device Runtime Info
type DeviceInfo struct {
	ID           uuid.UUID     `json:"id"`
	Name         string        `json:"name"`
	Host         string        `json:"host"`
	Protocol     string        `json:"protocol"`
	PollInterval time.Duration `json:"poll_interval"`
	Polling      bool          `json:"polling"`
	LastPollAt   *time.Time    `json:"last_poll_at,omitempty"`
	LastError    string        `json:"last_error,omitempty"`
}
