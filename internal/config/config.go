package config

type Config struct {
	Server  ServerConfig
	Ollama  OllamaConfig
	Gemini  GeminiConfig
	RAG     RAGConfig
	Storage StorageConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port     int
	MCPPort  int
	APIToken string
}

type OllamaConfig struct {
	BaseURL    string
	ChatModel  string
	EmbedModel string
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type RAGConfig struct {
	DataDir      string
	ChunkSize    int
	ChunkOverlap int
	EmbedDim     int
	MaxRetrieve  int
	IndexBackend string // "flat" (exact inner-product) or "scan" (cosine fallback)
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	dataDir := defaultDataDir()
	return Config{
		Server: ServerConfig{
			Port:    4600,
			MCPPort: 4601,
		},
		Ollama: OllamaConfig{
			BaseURL:    "http://localhost:11434",
			ChatModel:  "llama3.1",
			EmbedModel: "nomic-embed-text",
		},
		Gemini: GeminiConfig{
			Model: "gemini-2.0-flash",
		},
		RAG: RAGConfig{
			DataDir:      dataDir + "/rag",
			ChunkSize:    500,
			ChunkOverlap: 50,
			EmbedDim:     768,
			MaxRetrieve:  10,
			IndexBackend: "flat",
		},
		Storage: StorageConfig{
			DataDir: dataDir,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file backend at
// $XDG_CONFIG_HOME/studymate/config.json, then applies STUDYMATE_*
// environment variable overrides.
//
// The Gemini API key is optional: without it the server still runs, answering
// document queries from retrieved chunks only (degraded mode).
func Load() (Config, error) {
	return loadWith(newFileBackend())
}

func loadWith(b Backend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.RAG.IndexBackend != "flat" && cfg.RAG.IndexBackend != "scan" {
		cfg.RAG.IndexBackend = "flat"
	}

	return cfg, nil
}
