package config

import "time"

// Config is the root configuration for the storyteller server.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Storage StorageConfig `yaml:"storage"`
	Auth    AuthConfig    `yaml:"auth"`
	Article ArticleConfig `yaml:"article"`
	TTS     TTSConfig     `yaml:"tts"`
	LLM     LLMConfig     `yaml:"llm"`
}

type ServerConfig struct {
	IP   string `yaml:"ip"`
	Port int    `yaml:"port"`
}

type LogConfig struct {
	Level string `yaml:"log_level"`
	Dir   string `yaml:"log_dir"`
	File  string `yaml:"log_file"`
}

type StorageConfig struct {
	DataDir      string `yaml:"data_dir"`
	DatabaseFile string `yaml:"database_file"`
	// AudioDir holds synthesized artifacts, served under /static.
	AudioDir string `yaml:"audio_dir"`
}

type AuthConfig struct {
	Secret     string        `yaml:"secret"`
	SessionTTL time.Duration `yaml:"session_ttl"`
	Cleanup    time.Duration `yaml:"cleanup"`
	Store      StoreConfig   `yaml:"store"`
}

type StoreConfig struct {
	Type   string         `yaml:"type"`
	Redis  RedisStoreCfg  `yaml:"redis,omitempty"`
	SQLite SQLiteStoreCfg `yaml:"sqlite,omitempty"`
	Memory MemoryStoreCfg `yaml:"memory,omitempty"`
}

type RedisStoreCfg struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
}

type SQLiteStoreCfg struct {
	DSN string `yaml:"dsn,omitempty"`
}

type MemoryStoreCfg struct {
	Cleanup time.Duration `yaml:"cleanup"`
}

type ArticleConfig struct {
	// FetchTimeout bounds the page download; zero disables the timeout.
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	// SynthesisLimit is the number of leading characters of extracted text
	// passed to the synthesizer, bounding synthesis cost.
	SynthesisLimit int    `yaml:"synthesis_limit"`
	UserAgent      string `yaml:"user_agent"`
}

type TTSConfig struct {
	Type     string `yaml:"type"`
	Voice    string `yaml:"voice"`
	Language string `yaml:"language"`
}

type LLMConfig struct {
	APIKey         string  `yaml:"api_key"`
	BaseURL        string  `yaml:"url"`
	Model          string  `yaml:"model_name"`
	EmbeddingModel string  `yaml:"embedding_model"`
	Temperature    float32 `yaml:"temperature"`
	MaxTokens      int     `yaml:"max_tokens"`
}
