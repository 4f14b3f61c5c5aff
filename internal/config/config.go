// Package config loads service configuration from an optional YAML file and
// the environment. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"ai-voice-tutor/internal/language"
)

// Transports accepted for Live.Transport.
const (
	TransportMock      = "mock"
	TransportGemini    = "gemini"
	TransportWebsocket = "websocket"
)

// Config is the root configuration.
type Config struct {
	Service       ServiceConfig       `yaml:"service"`
	Live          LiveConfig          `yaml:"live"`
	Tutor         TutorConfig         `yaml:"tutor"`
	Audio         AudioConfig         `yaml:"audio"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type ServiceConfig struct {
	Principal   string `yaml:"principal"`
	HTTPPort    string `yaml:"httpPort"`
	GRPCPort    string `yaml:"grpcPort"`
	MetricsPort string `yaml:"metricsPort"`
}

// LiveConfig selects and configures the realtime model channel.
type LiveConfig struct {
	Transport      string        `yaml:"transport"` // mock, gemini, websocket
	Model          string        `yaml:"model"`
	Voice          string        `yaml:"voice"`
	APIKey         string        `yaml:"apiKey"`
	Endpoint       string        `yaml:"endpoint"` // websocket transport only
	QueueLen       int           `yaml:"queueLen"`
	ConnectTimeout time.Duration `yaml:"connectTimeout"`
}

type TutorConfig struct {
	NativeLanguage string `yaml:"nativeLanguage"`
	TargetLanguage string `yaml:"targetLanguage"`
	QueueSize      int    `yaml:"queueSize"` // frames buffered before the channel is up
}

// AudioConfig selects the capture and playback devices.
//
// Input is "mic" or the path of a 16 kHz mono WAV file.
// Output is "speaker", "none" or the path of a WAV file to record into.
type AudioConfig struct {
	Input       string `yaml:"input"`
	InputDevice string `yaml:"inputDevice"`
	Output      string `yaml:"output"`
}

type KafkaConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers"`
	TopicPartial string   `yaml:"topicPartial"`
	TopicFinal   string   `yaml:"topicFinal"`
	Principal    string   `yaml:"principal"`
}

type ObservabilityConfig struct {
	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"` // json, console
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Principal:   "svc-voice-tutor",
			HTTPPort:    "8080",
			GRPCPort:    "50051",
			MetricsPort: "9090",
		},
		Live: LiveConfig{
			Transport:      TransportMock,
			Model:          "gemini-2.5-flash-native-audio-preview-09-2025",
			Voice:          "Zephyr",
			Endpoint:       "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent",
			QueueLen:       64,
			ConnectTimeout: 15 * time.Second,
		},
		Tutor: TutorConfig{
			NativeLanguage: language.DefaultNative,
			TargetLanguage: language.DefaultTarget,
			QueueSize:      32,
		},
		Audio: AudioConfig{
			Input:  "mic",
			Output: "speaker",
		},
		Kafka: KafkaConfig{
			Enabled:      false,
			TopicPartial: "tutor.transcript.partial",
			TopicFinal:   "tutor.transcript.final",
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
	}
}

// LoadDotEnv reads a .env file into the environment without overriding
// variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

// Load reads CONFIG_FILE (if set) and the environment. A file that cannot
// be read is logged and ignored.
func Load() *Config {
	cfg, err := LoadFile(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Warn().Err(err).Msg("Ignoring config file")
		cfg = Default()
		applyEnv(cfg)
	}
	return cfg
}

// LoadFile reads the YAML file at path (skipped when empty) over the
// defaults and then applies environment overrides.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	s := &cfg.Service
	s.Principal = envOrDefault("SERVICE_PRINCIPAL", s.Principal)
	s.HTTPPort = envOrDefault("HTTP_PORT", s.HTTPPort)
	s.GRPCPort = envOrDefault("GRPC_PORT", s.GRPCPort)
	s.MetricsPort = envOrDefault("METRICS_PORT", s.MetricsPort)

	l := &cfg.Live
	l.Transport = strings.ToLower(envOrDefault("LIVE_TRANSPORT", l.Transport))
	l.Model = envOrDefault("LIVE_MODEL", l.Model)
	l.Voice = envOrDefault("LIVE_VOICE", l.Voice)
	l.APIKey = envOrDefault("GEMINI_API_KEY", envOrDefault("GOOGLE_API_KEY", l.APIKey))
	l.Endpoint = envOrDefault("LIVE_ENDPOINT", l.Endpoint)
	l.QueueLen = envOrDefaultInt("LIVE_QUEUE_LEN", l.QueueLen)
	l.ConnectTimeout = envOrDefaultDuration("LIVE_CONNECT_TIMEOUT", l.ConnectTimeout)

	t := &cfg.Tutor
	t.NativeLanguage = envOrDefault("TUTOR_NATIVE_LANGUAGE", t.NativeLanguage)
	t.TargetLanguage = envOrDefault("TUTOR_TARGET_LANGUAGE", t.TargetLanguage)
	t.QueueSize = envOrDefaultInt("TUTOR_QUEUE_SIZE", t.QueueSize)

	a := &cfg.Audio
	a.Input = envOrDefault("AUDIO_INPUT", a.Input)
	a.InputDevice = envOrDefault("AUDIO_INPUT_DEVICE", a.InputDevice)
	a.Output = envOrDefault("AUDIO_OUTPUT", a.Output)

	k := &cfg.Kafka
	k.Enabled = envOrDefaultBool("KAFKA_ENABLED", k.Enabled)
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		k.Brokers = splitList(brokers)
	}
	k.TopicPartial = envOrDefault("KAFKA_TOPIC_PARTIAL", k.TopicPartial)
	k.TopicFinal = envOrDefault("KAFKA_TOPIC_FINAL", k.TopicFinal)
	k.Principal = envOrDefault("KAFKA_PRINCIPAL", k.Principal)
	if k.Principal == "" {
		k.Principal = s.Principal
	}

	o := &cfg.Observability
	o.LogLevel = envOrDefault("LOG_LEVEL", o.LogLevel)
	o.LogFormat = envOrDefault("LOG_FORMAT", o.LogFormat)
}

// Validate reports every configuration error at once.
func (c *Config) Validate() error {
	var errs []error

	if _, _, err := language.Pair(c.Tutor.NativeLanguage, c.Tutor.TargetLanguage); err != nil {
		errs = append(errs, err)
	}

	switch c.Live.Transport {
	case TransportMock:
	case TransportGemini, TransportWebsocket:
		if c.Live.APIKey == "" {
			errs = append(errs, fmt.Errorf("live transport %q requires GEMINI_API_KEY", c.Live.Transport))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown live transport %q", c.Live.Transport))
	}
	if c.Live.Transport == TransportWebsocket && c.Live.Endpoint == "" {
		errs = append(errs, errors.New("websocket transport requires LIVE_ENDPOINT"))
	}

	if c.Audio.Input == "" {
		errs = append(errs, errors.New("audio input must be set"))
	}
	if c.Audio.Output == "" {
		errs = append(errs, errors.New("audio output must be set"))
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			errs = append(errs, errors.New("kafka enabled without KAFKA_BROKERS"))
		}
		if c.Kafka.TopicPartial == "" || c.Kafka.TopicFinal == "" {
			errs = append(errs, errors.New("kafka topics must be set"))
		}
	}

	return errors.Join(errs...)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
