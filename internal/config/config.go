package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by NOESIS_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("NOESIS_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

func OpenAIAPIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

// LLMProvider returns the configured chat provider.
// Defaults to "openai" if not set.
// Valid values: openai, mock
func LLMProvider() string {
	p := os.Getenv("LLM_PROVIDER")
	if p == "" {
		return "openai"
	}
	return p
}

// EmbeddingProvider returns the configured embedding provider.
// Defaults to "openai" if not set.
// Valid values: openai, mock
func EmbeddingProvider() string {
	p := os.Getenv("EMBEDDING_PROVIDER")
	if p == "" {
		return "openai"
	}
	return p
}

// EmbeddingModel returns the embedding model name.
// Defaults to "text-embedding-3-small" if not set.
func EmbeddingModel() string {
	m := os.Getenv("EMBEDDING_MODEL")
	if m == "" {
		return "text-embedding-3-small"
	}
	return m
}

// VectorProvider returns the similarity-store backend.
// Defaults to "pgvector" if not set.
// Valid values: pgvector, chromem
func VectorProvider() string {
	p := os.Getenv("VECTOR_PROVIDER")
	if p == "" {
		return "pgvector"
	}
	return p
}

// VectorPath returns the on-disk path for the embedded vector store.
// Only used when VECTOR_PROVIDER is chromem.
func VectorPath() string {
	p := os.Getenv("VECTOR_PATH")
	if p == "" {
		return "data/vectors"
	}
	return p
}

// QuestionerModel returns the chat model used for questioner turns.
func QuestionerModel() string {
	m := os.Getenv("QUESTIONER_MODEL")
	if m == "" {
		return "gpt-4o-mini"
	}
	return m
}

// ExplorerModel returns the chat model used for explorer turns.
func ExplorerModel() string {
	m := os.Getenv("EXPLORER_MODEL")
	if m == "" {
		return "gpt-4o-mini"
	}
	return m
}

// SynthesisModel returns the chat model used for memory synthesis and
// identity snapshots.
func SynthesisModel() string {
	m := os.Getenv("SYNTHESIS_MODEL")
	if m == "" {
		return "gpt-4o-mini"
	}
	return m
}

// StepInterval returns the pause between dialogue steps.
// Defaults to 30s if not set or unparseable.
func StepInterval() time.Duration {
	d, err := time.ParseDuration(os.Getenv("STEP_INTERVAL"))
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// StatusPort returns the port for the ops status endpoint.
// Defaults to 8080 if not set.
func StatusPort() int {
	port, err := strconv.Atoi(os.Getenv("STATUS_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func StatusAddr() string {
	return fmt.Sprintf(":%d", StatusPort())
}

// ChatRPS returns the requests-per-second limit applied to chat
// completions. Defaults to 2 if not set.
func ChatRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("CHAT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 2
	}
	return rps
}
