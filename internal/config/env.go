package config

import (
	"fmt"

	"github.com/jessevdk/go-flags"
)

// EnvConfig содержит токены и другие переменные окружения.
type EnvConfig struct {
	ConfigPath   string `long:"config" env:"CONFIG_PATH" default:"configs/pipeline.yaml" description:"Path to pipeline YAML config"`
	NewsAPIKey   string `long:"news-api-key" env:"NEWS_API_KEY" description:"NewsAPI key"`
	GeminiAPIKey string `long:"gemini-api-key" env:"GEMINI_API_KEY" description:"Gemini API key"`
	SkipGemini   bool   `long:"skip-gemini" env:"SKIP_GEMINI" description:"Use local fallback summaries instead of calling Gemini"`
	LogLevel     string `long:"log-level" env:"LOG_LEVEL" default:"info" choice:"debug" choice:"info" choice:"warn" choice:"error" description:"Log level"`
	LogFormat    string `long:"log-format" env:"LOG_FORMAT" default:"text" choice:"text" choice:"json" description:"Log output format"`
}

// LoadEnvConfig разбирает флаги и переменные окружения.
// Возвращает (nil, nil), если была запрошена справка.
func LoadEnvConfig(args []string) (*EnvConfig, error) {
	var cfg EnvConfig
	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return nil, nil
		}
		return nil, fmt.Errorf("parse env config: %w", err)
	}
	return &cfg, nil
}

// RequireDailyJobSecrets проверяет ключи, без которых ежедневный запуск невозможен.
func (c *EnvConfig) RequireDailyJobSecrets() error {
	if c.NewsAPIKey == "" {
		return fmt.Errorf("NEWS_API_KEY environment variable is required")
	}
	if !c.SkipGemini && c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable is required (or set SKIP_GEMINI=1)")
	}
	return nil
}
