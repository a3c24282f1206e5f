package simmatch

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv reads a .env file into the process environment when present.
// Variables already set in the environment win.
func LoadDotEnv(paths ...string) {
	_ = godotenv.Load(paths...)
}

// ApplyEnv overrides configuration values from SIMMATCH_* variables and
// OPENAI_API_KEY.
func ApplyEnv(cfg *Config) {
	cfg.Threshold = getEnvFloat32("SIMMATCH_THRESHOLD", cfg.Threshold)
	cfg.Left.TextColumn = getEnv("SIMMATCH_LEFT_COLUMN", cfg.Left.TextColumn)
	cfg.Right.TextColumn = getEnv("SIMMATCH_RIGHT_COLUMN", cfg.Right.TextColumn)

	cfg.Embedder.Backend = strings.ToLower(getEnv("SIMMATCH_BACKEND", cfg.Embedder.Backend))
	cfg.Embedder.OrtDLL = getEnv("SIMMATCH_ORT_DLL", cfg.Embedder.OrtDLL)
	cfg.Embedder.ModelPath = getEnv("SIMMATCH_MODEL_PATH", cfg.Embedder.ModelPath)
	cfg.Embedder.TokenizerPath = getEnv("SIMMATCH_TOKENIZER_PATH", cfg.Embedder.TokenizerPath)
	cfg.Embedder.MaxSeqLen = getEnvInt("SIMMATCH_MAX_SEQ_LEN", cfg.Embedder.MaxSeqLen)
	cfg.Embedder.CacheDir = getEnv("SIMMATCH_CACHE_DIR", cfg.Embedder.CacheDir)
	cfg.Embedder.OpenAI.BaseURL = getEnv("SIMMATCH_OPENAI_BASE_URL", cfg.Embedder.OpenAI.BaseURL)
	cfg.Embedder.OpenAI.Model = getEnv("SIMMATCH_OPENAI_MODEL", cfg.Embedder.OpenAI.Model)
	cfg.Embedder.OpenAI.APIKey = getEnv("OPENAI_API_KEY", cfg.Embedder.OpenAI.APIKey)
	cfg.Embedder.Redis.Address = getEnv("SIMMATCH_REDIS_ADDR", cfg.Embedder.Redis.Address)
	cfg.Embedder.Redis.Password = getEnv("SIMMATCH_REDIS_PASSWORD", cfg.Embedder.Redis.Password)
	cfg.Embedder.Redis.DB = getEnvInt("SIMMATCH_REDIS_DB", cfg.Embedder.Redis.DB)

	cfg.Output.Dir = getEnv("SIMMATCH_OUTPUT_DIR", cfg.Output.Dir)
	cfg.Server.Addr = getEnv("SIMMATCH_LISTEN_ADDR", cfg.Server.Addr)
	cfg.Server.MaxUploadMB = getEnvInt("SIMMATCH_MAX_UPLOAD_MB", cfg.Server.MaxUploadMB)
	cfg.Server.ResultTTLMinutes = getEnvInt("SIMMATCH_RESULT_TTL_MINUTES", cfg.Server.ResultTTLMinutes)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}
