package config

import "time"

// DefaultConfig returns the baseline configuration; loaded files and
// environment variables overlay it.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			IP:   "0.0.0.0",
			Port: 8080,
		},
		Log: LogConfig{
			Level: "info",
			Dir:   "data/logs",
			File:  "server.log",
		},
		Storage: StorageConfig{
			DataDir:      "data",
			DatabaseFile: "storyteller.db",
			AudioDir:     "data/audio",
		},
		Auth: AuthConfig{
			SessionTTL: 24 * time.Hour,
			Cleanup:    10 * time.Minute,
			Store: StoreConfig{
				Type: "memory",
			},
		},
		Article: ArticleConfig{
			// Unlimited by default, matching the extraction behavior the
			// service was tuned for; set a bound in production configs.
			FetchTimeout:   0,
			SynthesisLimit: 1024,
			UserAgent:      "storyteller-server/1.0",
		},
		TTS: TTSConfig{
			Type:     "edge",
			Voice:    "en-US-AriaNeural",
			Language: "en-US",
		},
		LLM: LLMConfig{
			Model:          "gpt-4",
			EmbeddingModel: "text-embedding-ada-002",
			Temperature:    0.3,
			MaxTokens:      500,
		},
	}
}
