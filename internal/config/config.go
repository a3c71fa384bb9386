// Package config loads the likelihood runtime configuration from
// environment variables, with defaults suitable for interactive use.
package config

import (
	"os"
	"strconv"

	"pslike/adapters/likelihood"
	"pslike/domain/spectrum"
	"pslike/internal/errors"
)

// Config represents the complete runtime configuration
type Config struct {
	Likelihood LikelihoodConfig
	Sweep      SweepConfig
	Report     ReportConfig
}

// LikelihoodConfig selects the likelihood form and numerical behavior
type LikelihoodConfig struct {
	Form        string
	StudentNu   float64
	Strict      bool
	ComplexMode string
	BinMethod   string
	QuadNodes   int
}

// SweepConfig bounds parallel sweep evaluation
type SweepConfig struct {
	Parallelism int64
}

// ReportConfig holds report output settings
type ReportConfig struct {
	OutputPath string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	cfg := &Config{
		Likelihood: LikelihoodConfig{
			Form:        getEnv("PSLIKE_FORM", likelihood.FormGaussian),
			StudentNu:   getEnvFloat("PSLIKE_STUDENT_NU", 5),
			Strict:      getEnvBool("PSLIKE_STRICT", false),
			ComplexMode: getEnv("PSLIKE_COMPLEX_MODE", string(spectrum.ComplexModeReal)),
			BinMethod:   getEnv("PSLIKE_BIN_METHOD", string(likelihood.BinCenter)),
			QuadNodes:   getEnvInt("PSLIKE_QUAD_NODES", 16),
		},
		Sweep: SweepConfig{
			Parallelism: int64(getEnvInt("PSLIKE_PARALLELISM", 0)),
		},
		Report: ReportConfig{
			OutputPath: getEnv("PSLIKE_REPORT_PATH", "sweep.xlsx"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Likelihood.Form {
	case likelihood.FormGaussian, likelihood.FormStudentT:
	default:
		return errors.ConfigInvalid("PSLIKE_FORM must be gaussian or student_t")
	}
	switch spectrum.ComplexMode(c.Likelihood.ComplexMode) {
	case spectrum.ComplexModeReal, spectrum.ComplexModeStacked:
	default:
		return errors.ConfigInvalid("PSLIKE_COMPLEX_MODE must be real or stacked")
	}
	switch likelihood.BinMethod(c.Likelihood.BinMethod) {
	case likelihood.BinCenter, likelihood.BinTwoPoint, likelihood.BinIntegrate:
	default:
		return errors.ConfigInvalid("PSLIKE_BIN_METHOD must be bin_center, two_point or integrate")
	}
	if c.Likelihood.Form == likelihood.FormStudentT && c.Likelihood.StudentNu <= 0 {
		return errors.ConfigInvalid("PSLIKE_STUDENT_NU must be positive")
	}
	if c.Likelihood.QuadNodes < 2 {
		return errors.ConfigInvalid("PSLIKE_QUAD_NODES must be at least 2")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
