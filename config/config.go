package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"vision-gateway/internal/appdirs"
	"vision-gateway/log"
)

type App struct {
	MaxInFlight       int `toml:"max_in_flight"`
	JobTimeoutSeconds int `toml:"job_timeout_seconds"`
	JobTtlMinutes     int `toml:"job_ttl_minutes"`
}

type Server struct {
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	MaxUploadMb int    `toml:"max_upload_mb"`
}

type ArtifactOss struct {
	Endpoint        string `toml:"endpoint"`
	Region          string `toml:"region"`
	Bucket          string `toml:"bucket"`
	AccessKeyId     string `toml:"access_key_id"`
	AccessKeySecret string `toml:"access_key_secret"`
	Prefix          string `toml:"prefix"`
}

type Artifact struct {
	Backend string      `toml:"backend"`
	Dir     string      `toml:"dir"`
	Oss     ArtifactOss `toml:"oss"`
}

type Sidecar struct {
	BaseUrl        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxConcurrent  int    `toml:"max_concurrent"`
}

type Vlm struct {
	BaseUrl       string `toml:"base_url"`
	ApiKey        string `toml:"api_key"`
	Model         string `toml:"model"`
	Proxy         string `toml:"proxy"`
	MaxConcurrent int    `toml:"max_concurrent"`
}

type Backends struct {
	Florence Sidecar `toml:"florence"`
	Rexomni  Sidecar `toml:"rexomni"`
	Vlm      Vlm     `toml:"vlm"`
}

type History struct {
	Enabled bool `toml:"enabled"`
	Limit   int  `toml:"limit"`
}

type Notify struct {
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDb       int    `toml:"redis_db"`
	ListKey       string `toml:"list_key"`
}

type Telemetry struct {
	StdoutMetrics   bool `toml:"stdout_metrics"`
	IntervalSeconds int  `toml:"interval_seconds"`
}

type Config struct {
	App       App       `toml:"app"`
	Server    Server    `toml:"server"`
	Artifact  Artifact  `toml:"artifact"`
	Backends  Backends  `toml:"backends"`
	History   History   `toml:"history"`
	Notify    Notify    `toml:"notify"`
	Telemetry Telemetry `toml:"telemetry"`
}

const (
	ArtifactBackendFile   = "file"
	ArtifactBackendMemory = "memory"
	ArtifactBackendOss    = "oss"
)

var Conf = defaultConfig()

var resolveConfigPath = ResolveConfigPath

func defaultConfig() Config {
	return Config{
		App: App{
			MaxInFlight:       0,
			JobTimeoutSeconds: 0,
			JobTtlMinutes:     0,
		},
		Server: Server{
			Host:        "127.0.0.1",
			Port:        8888,
			MaxUploadMb: 20,
		},
		Artifact: Artifact{
			Backend: ArtifactBackendFile,
		},
		Backends: Backends{
			Florence: Sidecar{BaseUrl: "http://127.0.0.1:9001", TimeoutSeconds: 120, MaxConcurrent: 1},
			Rexomni:  Sidecar{BaseUrl: "http://127.0.0.1:9002", TimeoutSeconds: 120, MaxConcurrent: 1},
			Vlm:      Vlm{Model: "gpt-4o-mini", MaxConcurrent: 4},
		},
		History: History{
			Enabled: true,
			Limit:   200,
		},
		Notify: Notify{
			ListKey: "visiongw:jobs:finished",
		},
		Telemetry: Telemetry{
			IntervalSeconds: 60,
		},
	}
}

func ResolveConfigPath() (string, error) {
	paths, err := appdirs.Resolve()
	if err != nil {
		return "", err
	}
	return paths.ConfigFile, nil
}

// LoadOrCreateConfig loads the config file into Conf, writing the defaults
// first when the file does not exist. Keys absent from the file keep their
// default values.
func LoadOrCreateConfig() (created bool, err error) {
	configPath, err := resolveConfigPath()
	if err != nil {
		return false, err
	}

	if _, err = os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
		log.GetLogger().Info("config file not found, writing defaults", zap.String("path", configPath))
		Conf = defaultConfig()
		if err = SaveConfig(); err != nil {
			return false, err
		}
		return true, nil
	} else if err != nil {
		return false, err
	}

	loaded := defaultConfig()
	if _, err = toml.DecodeFile(configPath, &loaded); err != nil {
		return false, fmt.Errorf("decode %s: %w", configPath, err)
	}
	Conf = loaded
	log.GetLogger().Info("config loaded", zap.String("path", configPath))
	return false, nil
}

// LoadConfig loads the config file, overlays .env and VISIONGW_* environment
// variables, then validates the result.
func LoadConfig() error {
	if _, err := LoadOrCreateConfig(); err != nil {
		return err
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.GetLogger().Warn("failed to load .env", zap.Error(err))
	}
	if err := applyEnvOverrides(&Conf, os.Getenv); err != nil {
		return err
	}
	return CheckConfig()
}

func SaveConfig() error {
	configPath, err := resolveConfigPath()
	if err != nil {
		return err
	}
	if err = os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return err
	}

	data, err := toml.Marshal(Conf)
	if err != nil {
		return err
	}
	return os.WriteFile(configPath, data, 0o644)
}

func applyEnvOverrides(c *Config, getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("VISIONGW_SERVER_HOST", &c.Server.Host)
	if err := num("VISIONGW_SERVER_PORT", &c.Server.Port); err != nil {
		return err
	}
	if err := num("VISIONGW_MAX_IN_FLIGHT", &c.App.MaxInFlight); err != nil {
		return err
	}
	str("VISIONGW_FLORENCE_URL", &c.Backends.Florence.BaseUrl)
	str("VISIONGW_REXOMNI_URL", &c.Backends.Rexomni.BaseUrl)
	str("VISIONGW_VLM_URL", &c.Backends.Vlm.BaseUrl)
	str("VISIONGW_VLM_API_KEY", &c.Backends.Vlm.ApiKey)
	str("VISIONGW_VLM_MODEL", &c.Backends.Vlm.Model)
	str("VISIONGW_ARTIFACT_BACKEND", &c.Artifact.Backend)
	str("VISIONGW_REDIS_ADDR", &c.Notify.RedisAddr)
	return nil
}

// CheckConfig validates Conf.
func CheckConfig() error {
	return check(&Conf)
}

func check(c *Config) error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.MaxUploadMb <= 0 {
		return fmt.Errorf("server.max_upload_mb must be positive")
	}
	if c.App.MaxInFlight < 0 {
		return fmt.Errorf("app.max_in_flight must not be negative")
	}
	if c.App.JobTimeoutSeconds < 0 || c.App.JobTtlMinutes < 0 {
		return fmt.Errorf("app.job_timeout_seconds and app.job_ttl_minutes must not be negative")
	}

	switch c.Artifact.Backend {
	case ArtifactBackendFile, ArtifactBackendMemory:
	case ArtifactBackendOss:
		if c.Artifact.Oss.Bucket == "" || c.Artifact.Oss.Region == "" {
			return fmt.Errorf("artifact.oss requires bucket and region")
		}
	default:
		return fmt.Errorf("artifact.backend %q must be one of file, memory, oss", c.Artifact.Backend)
	}

	for name, raw := range map[string]string{
		"backends.florence.base_url": c.Backends.Florence.BaseUrl,
		"backends.rexomni.base_url":  c.Backends.Rexomni.BaseUrl,
		"backends.vlm.base_url":      c.Backends.Vlm.BaseUrl,
		"backends.vlm.proxy":         c.Backends.Vlm.Proxy,
	} {
		if raw == "" {
			continue
		}
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s %q is not an absolute URL", name, raw)
		}
	}
	return nil
}
