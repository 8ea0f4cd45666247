package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Matching  MatchingConfig
	Ingest    IngestConfig
	Caption   CaptionConfig
	OpenAI    OpenAIConfig
	Gemini    GeminiConfig
	Ollama    OllamaConfig
	Extractor ExtractorConfig
	Database  DatabaseConfig
	MQTT      MQTTConfig
	Log       LogConfig
	Web       WebConfig
	Metadata  MetadataConfig
}

type MatchingConfig struct {
	FaceTolerance       float64 `yaml:"face_tolerance"`
	AppearanceThreshold float64 `yaml:"appearance_threshold"`
	MaxResolveAttempts  int     `yaml:"max_resolve_attempts"`
}

type IngestConfig struct {
	UploadDir     string `yaml:"-"`
	Width         int    `yaml:"width"`
	Height        int    `yaml:"height"`
	MaxTags       int    `yaml:"max_tags"`
	HistogramBins int    `yaml:"histogram_bins"`
	MaxUploadSize int64  `yaml:"max_upload_size"`
}

type CaptionConfig struct {
	Provider string // openai, gemini, ollama or none
}

type OpenAIConfig struct {
	Token string
}

type GeminiConfig struct {
	APIKey string
}

type OllamaConfig struct {
	URL   string `yaml:"url"`
	Model string `yaml:"model"`
}

type ExtractorConfig struct {
	Face          string `yaml:"-"`   // http or dlib
	EmbeddingURL  string `yaml:"url"` // face embedding server
	DlibModelsDir string `yaml:"-"`
	Histogram     string `yaml:"-"` // native or opencv
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type MQTTConfig struct {
	Broker   string // e.g. tcp://localhost:1883, empty disables publishing
	Topic    string
	ClientID string
	Username string
	Password string
}

// Enabled reports whether identification events should be published.
func (c *MQTTConfig) Enabled() bool {
	return c.Broker != ""
}

type LogConfig struct {
	Level  string
	File   string
	Format string // text or json
}

type WebConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string // besides localhost, which is always allowed
}

type MetadataConfig struct {
	IndexPath string
}

type defaults struct {
	Matching  MatchingConfig `yaml:"matching"`
	Ingest    IngestConfig   `yaml:"ingest"`
	Providers struct {
		Ollama    OllamaConfig    `yaml:"ollama"`
		Embedding ExtractorConfig `yaml:"embedding"`
	} `yaml:"providers"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultVal
}

// envList splits a comma-separated env var, dropping empty entries.
func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// envString returns the env var value or the default when unset or empty.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func loadDefaults() defaults {
	var d defaults
	if err := yaml.Unmarshal(defaultsYAML, &d); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return d
}

func Load() *Config {
	d := loadDefaults()

	return &Config{
		Matching: MatchingConfig{
			FaceTolerance:       envFloat("FACE_TOLERANCE", d.Matching.FaceTolerance),
			AppearanceThreshold: envFloat("APPEARANCE_THRESHOLD", d.Matching.AppearanceThreshold),
			MaxResolveAttempts:  envInt("RESOLVE_MAX_ATTEMPTS", d.Matching.MaxResolveAttempts),
		},
		Ingest: IngestConfig{
			UploadDir:     envString("UPLOAD_DIR", "uploads"),
			Width:         d.Ingest.Width,
			Height:        d.Ingest.Height,
			MaxTags:       envInt("MAX_TAGS", d.Ingest.MaxTags),
			HistogramBins: envInt("HISTOGRAM_BINS", d.Ingest.HistogramBins),
			MaxUploadSize: int64(envInt("MAX_UPLOAD_SIZE", int(d.Ingest.MaxUploadSize))),
		},
		Caption: CaptionConfig{
			Provider: strings.ToLower(envString("CAPTION_PROVIDER", "none")),
		},
		OpenAI: OpenAIConfig{
			Token: os.Getenv("OPENAI_TOKEN"),
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
		},
		Ollama: OllamaConfig{
			URL:   envString("OLLAMA_URL", d.Providers.Ollama.URL),
			Model: envString("OLLAMA_MODEL", d.Providers.Ollama.Model),
		},
		Extractor: ExtractorConfig{
			Face:          strings.ToLower(envString("FACE_EXTRACTOR", "http")),
			EmbeddingURL:  envString("EMBEDDING_URL", d.Providers.Embedding.EmbeddingURL),
			DlibModelsDir: envString("DLIB_MODELS_DIR", "models"),
			Histogram:     strings.ToLower(envString("HISTOGRAM_BACKEND", "native")),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		MQTT: MQTTConfig{
			Broker:   os.Getenv("MQTT_BROKER"),
			Topic:    envString("MQTT_TOPIC", "picscreenr/identified"),
			ClientID: envString("MQTT_CLIENT_ID", "picscreenr"),
			Username: os.Getenv("MQTT_USERNAME"),
			Password: os.Getenv("MQTT_PASSWORD"),
		},
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", "info"),
			File:   os.Getenv("LOG_FILE"),
			Format: envString("LOG_FORMAT", "text"),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", "0.0.0.0"),
			Port:           envInt("WEB_PORT", 8080),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
		Metadata: MetadataConfig{
			IndexPath: envString("METADATA_INDEX", "metadata.json"),
		},
	}
}
