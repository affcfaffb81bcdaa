package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/castforge/castforge/internal/voice"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type Config struct {
	RuntimeName string                   `yaml:"runtime_name"`
	Environment string                   `yaml:"environment"`
	HTTP        HTTPConfig               `yaml:"http"`
	Telemetry   TelemetryConfig          `yaml:"telemetry"`
	Bus         BusConfig                `yaml:"bus"`
	Synthesis   SynthesisConfig          `yaml:"synthesis"`
	Voices      map[string]voice.Profile `yaml:"voices"`
	Assembly    AssemblyConfig           `yaml:"assembly"`
	Pipeline    PipelineConfig           `yaml:"pipeline"`
	Library     LibraryConfig            `yaml:"library"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	StoreDir       string   `yaml:"store_dir"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type SynthesisConfig struct {
	Mode       string      `yaml:"mode"` // mock, exec, google
	Command    string      `yaml:"command"`
	Endpoint   string      `yaml:"endpoint"`
	APIKey     string      `yaml:"api_key"`
	Encoding   string      `yaml:"encoding"`
	SampleRate int         `yaml:"sample_rate"`
	Retry      RetryConfig `yaml:"retry"`
}

type RetryConfig struct {
	Enabled          bool `yaml:"enabled"`
	MaxAttempts      int  `yaml:"max_attempts"`
	InitialBackoffMS int  `yaml:"initial_backoff_ms"`
	MaxBackoffMS     int  `yaml:"max_backoff_ms"`
}

type AssemblyConfig struct {
	RemuxCommand string `yaml:"remux_command"`
	Format       string `yaml:"format"`
}

type PipelineConfig struct {
	Workers    int    `yaml:"workers"`
	OutputDir  string `yaml:"output_dir"`
	ScratchDir string `yaml:"scratch_dir"`
}

type LibraryConfig struct {
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
	MaxEpisodes   int    `yaml:"max_episodes"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

func Default() Config {
	return Config{
		RuntimeName: "castforge-runtime",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Enabled:        false,
			Embedded:       true,
			Port:           4222,
			StoreDir:       "./data/nats",
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Synthesis: SynthesisConfig{
			Mode:       "mock",
			Endpoint:   "",
			Encoding:   "MP3",
			SampleRate: 22050,
			Retry: RetryConfig{
				Enabled:          false,
				MaxAttempts:      3,
				InitialBackoffMS: 500,
				MaxBackoffMS:     10000,
			},
		},
		Voices: map[string]voice.Profile{
			"narrator": {LanguageCode: "en-US", VoiceName: "en-US-Neural2-J", SpeakingRate: 1.0, Pitch: 0.0},
			"Chloe":    {LanguageCode: "en-US", VoiceName: "en-US-Neural2-F", SpeakingRate: 1.05, Pitch: 2.0},
			"David":    {LanguageCode: "en-US", VoiceName: "en-US-Neural2-D", SpeakingRate: 0.95, Pitch: -2.0},
		},
		Assembly: AssemblyConfig{
			RemuxCommand: "ffmpeg",
			Format:       "mp3",
		},
		Pipeline: PipelineConfig{
			Workers:    1,
			OutputDir:  "./output/audio",
			ScratchDir: "",
		},
		Library: LibraryConfig{
			Path:          "./data/castforge-library.db",
			RetentionDays: 0,
			MaxEpisodes:   0,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "CASTFORGE_RUNTIME_NAME")
	overrideString(&cfg.Environment, "CASTFORGE_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "CASTFORGE_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "CASTFORGE_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "CASTFORGE_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "CASTFORGE_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "CASTFORGE_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "CASTFORGE_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Enabled, "CASTFORGE_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "CASTFORGE_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "CASTFORGE_BUS_PORT")
	overrideString(&cfg.Bus.StoreDir, "CASTFORGE_BUS_STORE_DIR")
	overrideStringSlice(&cfg.Bus.Servers, "CASTFORGE_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "CASTFORGE_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "CASTFORGE_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "CASTFORGE_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "CASTFORGE_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "CASTFORGE_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Synthesis.Mode, "CASTFORGE_SYNTHESIS_MODE")
	overrideString(&cfg.Synthesis.Command, "CASTFORGE_SYNTHESIS_COMMAND")
	overrideString(&cfg.Synthesis.Endpoint, "CASTFORGE_SYNTHESIS_ENDPOINT")
	overrideString(&cfg.Synthesis.APIKey, "CASTFORGE_SYNTHESIS_API_KEY")
	overrideString(&cfg.Synthesis.Encoding, "CASTFORGE_SYNTHESIS_ENCODING")
	overrideInt(&cfg.Synthesis.SampleRate, "CASTFORGE_SYNTHESIS_SAMPLE_RATE")
	overrideBool(&cfg.Synthesis.Retry.Enabled, "CASTFORGE_SYNTHESIS_RETRY_ENABLED")
	overrideInt(&cfg.Synthesis.Retry.MaxAttempts, "CASTFORGE_SYNTHESIS_RETRY_MAX_ATTEMPTS")
	overrideInt(&cfg.Synthesis.Retry.InitialBackoffMS, "CASTFORGE_SYNTHESIS_RETRY_INITIAL_BACKOFF_MS")
	overrideInt(&cfg.Synthesis.Retry.MaxBackoffMS, "CASTFORGE_SYNTHESIS_RETRY_MAX_BACKOFF_MS")
	overrideString(&cfg.Assembly.RemuxCommand, "CASTFORGE_ASSEMBLY_REMUX_COMMAND")
	overrideString(&cfg.Assembly.Format, "CASTFORGE_ASSEMBLY_FORMAT")
	overrideInt(&cfg.Pipeline.Workers, "CASTFORGE_PIPELINE_WORKERS")
	overrideString(&cfg.Pipeline.OutputDir, "CASTFORGE_PIPELINE_OUTPUT_DIR")
	overrideString(&cfg.Pipeline.ScratchDir, "CASTFORGE_PIPELINE_SCRATCH_DIR")
	overrideString(&cfg.Library.Path, "CASTFORGE_LIBRARY_PATH")
	overrideInt(&cfg.Library.RetentionDays, "CASTFORGE_LIBRARY_RETENTION_DAYS")
	overrideInt(&cfg.Library.MaxEpisodes, "CASTFORGE_LIBRARY_MAX_EPISODES")
	overrideBool(&cfg.Library.VacuumOnStart, "CASTFORGE_LIBRARY_VACUUM_ON_START")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	if cfg.Bus.Enabled {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else {
			if len(cfg.Bus.Servers) == 0 {
				return errors.New("bus.servers must not be empty when embedded mode is disabled")
			}
		}
	}
	switch cfg.Synthesis.Mode {
	case "mock", "exec", "google":
	default:
		return errors.New("synthesis.mode must be one of mock|exec|google")
	}
	if cfg.Synthesis.Mode == "exec" && cfg.Synthesis.Command == "" {
		return errors.New("synthesis.command must be set when mode=exec")
	}
	if cfg.Synthesis.Mode == "google" && cfg.Synthesis.APIKey == "" {
		return errors.New("synthesis.api_key must be set when mode=google")
	}
	if cfg.Synthesis.SampleRate <= 0 {
		return errors.New("synthesis.sample_rate must be positive")
	}
	if cfg.Synthesis.Retry.Enabled {
		if cfg.Synthesis.Retry.MaxAttempts <= 0 {
			return errors.New("synthesis.retry.max_attempts must be >= 1")
		}
		if cfg.Synthesis.Retry.InitialBackoffMS <= 0 {
			return errors.New("synthesis.retry.initial_backoff_ms must be positive")
		}
	}
	if len(cfg.Voices) == 0 {
		return errors.New("voices must not be empty")
	}
	if _, ok := cfg.Voices[voice.DefaultLabel]; !ok {
		return fmt.Errorf("voices must include a %q profile", voice.DefaultLabel)
	}
	switch cfg.Assembly.Format {
	case "mp3", "wav":
	default:
		return errors.New("assembly.format must be one of mp3|wav")
	}
	if cfg.Pipeline.Workers < 1 {
		return errors.New("pipeline.workers must be >= 1")
	}
	if cfg.Pipeline.OutputDir == "" {
		return errors.New("pipeline.output_dir must not be empty")
	}
	if cfg.Library.RetentionDays < 0 {
		return errors.New("library.retention_days must be >= 0")
	}
	if cfg.Library.MaxEpisodes < 0 {
		return errors.New("library.max_episodes must be >= 0")
	}
	return nil
}
