package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	yaml "gopkg.in/yaml.v3"
)

// Load builds a Config from, in increasing precedence: built-in defaults, an
// optional YAML file at path (skipped entirely if path is empty or the file
// does not exist), and environment variables (with .env values loaded via
// godotenv.Overload so a repository-local .env deterministically wins over
// whatever the shell already exported).
func Load(path string) (Config, error) {
	_ = godotenv.Overload()

	cfg := defaultConfig()

	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			var fileCfg Config
			if err := yaml.Unmarshal(data, &fileCfg); err != nil {
				return Config{}, err
			}
			mergeConfig(&cfg, fileCfg)
		} else if !os.IsNotExist(err) {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func defaultConfig() Config {
	return Config{
		LogLevel: "info",
		Socket:   SocketConfig{Host: "0.0.0.0", Port: 8765},
		Relay:    RelayConfig{Host: "127.0.0.1", Port: 18792},
		Memory: MemoryConfig{
			DBPath:         "postgres://localhost:5432/openbotx?sslmode=disable",
			EmbeddingModel: "text-embedding-3-small",
			ChunkSize:      800,
			ChunkOverlap:   100,
			Embedding: EmbeddingConfig{
				Path:           "/v1/embeddings",
				APIHeader:      "Authorization",
				TimeoutSeconds: 30,
				Dimensions:     1536,
			},
		},
		Anthropic: AnthropicConfig{
			Model: "claude-sonnet-4-5",
		},
		Transcription: TranscriptionConfig{},
		Compactor: CompactionConfig{
			TokenBudget:       8000,
			MinMessagesToKeep: 4,
		},
		Gateways: GatewaySupervisionConfig{
			AutoRestart: true,
			MaxRestarts: 5,
		},
	}
}

// mergeConfig overlays non-zero fields of override onto base; zero-valued
// fields in the YAML document are treated as "not set" rather than explicit
// resets, matching the precedence rule that env vars and later layers only
// ever narrow what came before.
func mergeConfig(base *Config, override Config) {
	if override.LogLevel != "" {
		base.LogLevel = override.LogLevel
	}
	if override.LogPath != "" {
		base.LogPath = override.LogPath
	}
	base.LogPayloads = override.LogPayloads || base.LogPayloads
	if override.Socket.Host != "" {
		base.Socket.Host = override.Socket.Host
	}
	if override.Socket.Port != 0 {
		base.Socket.Port = override.Socket.Port
	}
	if override.Relay.Host != "" {
		base.Relay.Host = override.Relay.Host
	}
	if override.Relay.Port != 0 {
		base.Relay.Port = override.Relay.Port
	}
	if override.Memory.DBPath != "" {
		base.Memory.DBPath = override.Memory.DBPath
	}
	if len(override.Memory.Paths) > 0 {
		base.Memory.Paths = override.Memory.Paths
	}
	if override.Memory.EmbeddingModel != "" {
		base.Memory.EmbeddingModel = override.Memory.EmbeddingModel
	}
	if override.Memory.ChunkSize != 0 {
		base.Memory.ChunkSize = override.Memory.ChunkSize
	}
	if override.Memory.ChunkOverlap != 0 {
		base.Memory.ChunkOverlap = override.Memory.ChunkOverlap
	}
	if override.Memory.Embedding.BaseURL != "" {
		base.Memory.Embedding.BaseURL = override.Memory.Embedding.BaseURL
	}
	if override.Memory.Embedding.Path != "" {
		base.Memory.Embedding.Path = override.Memory.Embedding.Path
	}
	if override.Memory.Embedding.APIKey != "" {
		base.Memory.Embedding.APIKey = override.Memory.Embedding.APIKey
	}
	if override.Memory.Embedding.APIHeader != "" {
		base.Memory.Embedding.APIHeader = override.Memory.Embedding.APIHeader
	}
	if override.Memory.Embedding.TimeoutSeconds != 0 {
		base.Memory.Embedding.TimeoutSeconds = override.Memory.Embedding.TimeoutSeconds
	}
	if override.Memory.Embedding.Dimensions != 0 {
		base.Memory.Embedding.Dimensions = override.Memory.Embedding.Dimensions
	}
	if override.Transcription.WhisperModelPath != "" {
		base.Transcription.WhisperModelPath = override.Transcription.WhisperModelPath
	}
	if override.Anthropic.APIKey != "" {
		base.Anthropic.APIKey = override.Anthropic.APIKey
	}
	if override.Anthropic.Model != "" {
		base.Anthropic.Model = override.Anthropic.Model
	}
	if override.Anthropic.BaseURL != "" {
		base.Anthropic.BaseURL = override.Anthropic.BaseURL
	}
	if override.Compactor.TokenBudget != 0 {
		base.Compactor.TokenBudget = override.Compactor.TokenBudget
	}
	if override.Compactor.MinMessagesToKeep != 0 {
		base.Compactor.MinMessagesToKeep = override.Compactor.MinMessagesToKeep
	}
	base.Gateways.AutoRestart = override.Gateways.AutoRestart || base.Gateways.AutoRestart
	if override.Gateways.MaxRestarts != 0 {
		base.Gateways.MaxRestarts = override.Gateways.MaxRestarts
	}
}

// applyEnv overlays environment variables onto cfg, the final and
// highest-precedence layer.
func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("LOG_PATH")); v != "" {
		cfg.LogPath = v
	}
	if v := strings.TrimSpace(os.Getenv("LOG_PAYLOADS")); v != "" {
		cfg.LogPayloads = strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
	}

	if v := strings.TrimSpace(os.Getenv("SOCKET_HOST")); v != "" {
		cfg.Socket.Host = v
	}
	cfg.Socket.Port = intFromEnv("SOCKET_PORT", cfg.Socket.Port)

	if v := strings.TrimSpace(os.Getenv("RELAY_HOST")); v != "" {
		cfg.Relay.Host = v
	}
	cfg.Relay.Port = intFromEnv("RELAY_PORT", cfg.Relay.Port)

	if v := strings.TrimSpace(os.Getenv("MEMORY_DB_PATH")); v != "" {
		cfg.Memory.DBPath = v
	}
	if v := strings.TrimSpace(os.Getenv("MEMORY_PATHS")); v != "" {
		cfg.Memory.Paths = parseCommaSeparatedList(v)
	}
	if v := strings.TrimSpace(os.Getenv("EMBEDDING_MODEL")); v != "" {
		cfg.Memory.EmbeddingModel = v
	}
	cfg.Memory.ChunkSize = intFromEnv("CHUNK_SIZE", cfg.Memory.ChunkSize)
	cfg.Memory.ChunkOverlap = intFromEnv("CHUNK_OVERLAP", cfg.Memory.ChunkOverlap)

	if v := strings.TrimSpace(os.Getenv("EMBEDDING_BASE_URL")); v != "" {
		cfg.Memory.Embedding.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("EMBEDDING_PATH")); v != "" {
		cfg.Memory.Embedding.Path = v
	}
	if v := strings.TrimSpace(os.Getenv("EMBEDDING_API_KEY")); v != "" {
		cfg.Memory.Embedding.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("EMBEDDING_API_HEADER")); v != "" {
		cfg.Memory.Embedding.APIHeader = v
	}
	cfg.Memory.Embedding.TimeoutSeconds = intFromEnv("EMBEDDING_TIMEOUT_SECONDS", cfg.Memory.Embedding.TimeoutSeconds)
	cfg.Memory.Embedding.Dimensions = intFromEnv("EMBEDDING_DIMENSIONS", cfg.Memory.Embedding.Dimensions)

	if v := strings.TrimSpace(os.Getenv("WHISPER_MODEL_PATH")); v != "" {
		cfg.Transcription.WhisperModelPath = v
	}

	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); v != "" {
		cfg.Anthropic.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_MODEL")); v != "" {
		cfg.Anthropic.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_BASE_URL")); v != "" {
		cfg.Anthropic.BaseURL = v
	}

	cfg.Compactor.TokenBudget = intFromEnv("TOKEN_BUDGET", cfg.Compactor.TokenBudget)
	cfg.Compactor.MinMessagesToKeep = intFromEnv("MIN_MESSAGES_TO_KEEP", cfg.Compactor.MinMessagesToKeep)

	if v := strings.TrimSpace(os.Getenv("GATEWAY_AUTO_RESTART")); v != "" {
		cfg.Gateways.AutoRestart = strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
	}
	cfg.Gateways.MaxRestarts = intFromEnv("GATEWAY_MAX_RESTARTS", cfg.Gateways.MaxRestarts)
}

func parseCommaSeparatedList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func intFromEnv(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
