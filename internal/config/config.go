// Package config loads process configuration from an optional YAML file and
// environment variables (with .env support), in that precedence order with
// environment variables winning last.
package config

// SocketConfig configures the socket gateway's listener.
type SocketConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// RelayConfig configures the browser control relay's listener.
type RelayConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// MemoryConfig configures the memory index (§4.G). DBPath is named for the
// MEMORY_DB_PATH env var's historical meaning but is consumed as a Postgres
// connection string, since the index is built on pgx/pgvector rather than an
// embedded flat-file store.
type MemoryConfig struct {
	DBPath         string   `yaml:"db_path"`
	Paths          []string `yaml:"paths,omitempty"`
	EmbeddingModel string   `yaml:"embedding_model"`
	ChunkSize      int      `yaml:"chunk_size"`
	ChunkOverlap   int      `yaml:"chunk_overlap"`

	Embedding EmbeddingConfig `yaml:"embedding"`
}

// EmbeddingConfig configures the HTTP embeddings backend used to satisfy
// memoryindex.Embedder. Left unset, Embed calls fail closed rather than
// silently hitting some default provider.
type EmbeddingConfig struct {
	BaseURL        string `yaml:"base_url,omitempty"`
	Path           string `yaml:"path,omitempty"`
	APIKey         string `yaml:"api_key,omitempty"`
	APIHeader      string `yaml:"api_header,omitempty"`
	TimeoutSeconds int    `yaml:"timeout_seconds,omitempty"`
	Dimensions     int    `yaml:"dimensions,omitempty"`
}

// TranscriptionConfig configures the local whisper.cpp speech-to-text
// backend for audio attachments (§4.D). Left unset, the audio Converter is
// not registered and audio attachments pass through unconverted.
type TranscriptionConfig struct {
	WhisperModelPath string `yaml:"whisper_model_path,omitempty"`
}

// AnthropicConfig configures the Anthropic-backed agent brain (§4.K).
type AnthropicConfig struct {
	APIKey  string `yaml:"api_key,omitempty"`
	Model   string `yaml:"model,omitempty"`
	BaseURL string `yaml:"base_url,omitempty"`
}

// CompactionConfig configures the token-budget compactor (§4.F).
type CompactionConfig struct {
	TokenBudget       int `yaml:"token_budget"`
	MinMessagesToKeep int `yaml:"min_messages_to_keep"`
}

// GatewaySupervisionConfig configures the supervisor's restart policy (§4.P).
type GatewaySupervisionConfig struct {
	AutoRestart bool `yaml:"auto_restart"`
	MaxRestarts int  `yaml:"max_restarts"`
}

// Config is the process-wide configuration singleton, constructed once at
// startup by Load and passed by handle into every component that needs it.
type Config struct {
	LogLevel    string `yaml:"log_level"`
	LogPath     string `yaml:"log_path,omitempty"`
	LogPayloads bool   `yaml:"log_payloads,omitempty"`

	Socket        SocketConfig             `yaml:"socket"`
	Relay         RelayConfig              `yaml:"relay"`
	Memory        MemoryConfig             `yaml:"memory"`
	Transcription TranscriptionConfig      `yaml:"transcription"`
	Anthropic     AnthropicConfig          `yaml:"anthropic"`
	Compactor     CompactionConfig         `yaml:"compactor"`
	Gateways      GatewaySupervisionConfig `yaml:"gateways"`
}
