// SPDX-License-Identifier: ice License 1.0

package config

import stdlibtime "time"

type (
	Config struct {
		CertPath           string              `yaml:"certPath"`
		KeyPath            string              `yaml:"keyPath"`
		Port               uint16              `yaml:"port"`
		WriteTimeout       stdlibtime.Duration `yaml:"writeTimeout"`
		ReadTimeout        stdlibtime.Duration `yaml:"readTimeout"`
		OutboundBufferSize int                 `yaml:"outboundBufferSize"`
		StrictRoutes       bool                `yaml:"strictRoutes"`
		// PushAPIKey guards the http push endpoint; it is disabled when empty.
		PushAPIKey string `yaml:"pushApiKey"`
	}
)

func (c *Config) TLS() bool {
	return c.CertPath != "" && c.KeyPath != ""
}
