package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "STUDYMATE_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.mcp_port", typ: kInt, env: "STUDYMATE_SERVER_MCP_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.MCPPort = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.MCPPort },
	},
	{
		key: "server.api_token", typ: kString, env: "STUDYMATE_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIToken },
	},
	{
		key: "ollama.base_url", typ: kString, env: "STUDYMATE_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "ollama.chat_model", typ: kString, env: "STUDYMATE_OLLAMA_CHAT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.ChatModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.ChatModel },
	},
	{
		key: "ollama.embed_model", typ: kString, env: "STUDYMATE_OLLAMA_EMBED_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.EmbedModel },
	},
	{
		key: "gemini.api_key", typ: kString, env: "STUDYMATE_GEMINI_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Gemini.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.APIKey },
	},
	{
		key: "gemini.model", typ: kString, env: "STUDYMATE_GEMINI_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Gemini.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.Model },
	},
	{
		key: "rag.data_dir", typ: kString, env: "STUDYMATE_RAG_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.RAG.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.RAG.DataDir },
	},
	{
		key: "rag.chunk_size", typ: kInt, env: "STUDYMATE_RAG_CHUNK_SIZE",
		apply:   func(cfg *Config, v any) { cfg.RAG.ChunkSize = v.(int) },
		extract: func(cfg Config) any { return cfg.RAG.ChunkSize },
	},
	{
		key: "rag.chunk_overlap", typ: kInt, env: "STUDYMATE_RAG_CHUNK_OVERLAP",
		apply:   func(cfg *Config, v any) { cfg.RAG.ChunkOverlap = v.(int) },
		extract: func(cfg Config) any { return cfg.RAG.ChunkOverlap },
	},
	{
		key: "rag.embed_dim", typ: kInt, env: "STUDYMATE_RAG_EMBED_DIM",
		apply:   func(cfg *Config, v any) { cfg.RAG.EmbedDim = v.(int) },
		extract: func(cfg Config) any { return cfg.RAG.EmbedDim },
	},
	{
		key: "rag.max_retrieve", typ: kInt, env: "STUDYMATE_RAG_MAX_RETRIEVE",
		apply:   func(cfg *Config, v any) { cfg.RAG.MaxRetrieve = v.(int) },
		extract: func(cfg Config) any { return cfg.RAG.MaxRetrieve },
	},
	{
		key: "rag.index_backend", typ: kString, env: "STUDYMATE_RAG_INDEX_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.RAG.IndexBackend = v.(string) },
		extract: func(cfg Config) any { return cfg.RAG.IndexBackend },
	},
	{
		key: "storage.data_dir", typ: kString, env: "STUDYMATE_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "STUDYMATE_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b Backend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
