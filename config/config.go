// Package config assembles the runtime configuration from defaults, an
// optional YAML file, a .env file and the process environment, in that
// order of precedence (later wins).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"

	"llmmemory/llm"
	"llmmemory/llm/agent"
	"llmmemory/llm/conversation"
	"llmmemory/llm/embedding"
	"llmmemory/llm/loader"
	"llmmemory/llm/memory"
	"llmmemory/llm/providers"
	"llmmemory/llm/vector"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the YAML file when no path is given explicitly
const EnvConfigPath = "LLMMEMORY_CONFIG"

// Config is everything the CLI needs to wire a memory manager, a
// conversation window and the agent
type Config struct {
	Store     vector.StoreConfig        `yaml:"store"`
	Chunk     vector.ChunkConfig        `yaml:"chunk"`
	Embedding embedding.Config          `yaml:"embedding"`
	Chat      providers.ChatModelConfig `yaml:"chat"`
	Window    WindowConfig              `yaml:"window"`
	Loader    LoaderConfig              `yaml:"loader"`
	Agent     AgentConfig               `yaml:"agent"`
	Tracing   providers.TracingConfig   `yaml:"tracing"`
	LogLevel  string                    `yaml:"log_level"`
}

// WindowConfig configures the conversation window
type WindowConfig struct {
	Template     string  `yaml:"template"`
	TemplateFile string  `yaml:"template_file"`
	Temperature  float32 `yaml:"temperature"`
	MaxTokens    int     `yaml:"max_tokens"`
	// Encoding is the tiktoken encoding; "whitespace" counts words offline
	Encoding string `yaml:"encoding"`
}

// LoaderConfig configures directory loading
type LoaderConfig struct {
	Pattern       string `yaml:"pattern"`
	MaxFileSize   int64  `yaml:"max_file_size"`
	IncludeHidden bool   `yaml:"include_hidden"`
}

// AgentConfig configures the tool-using librarian agent
type AgentConfig struct {
	MaxMessages     int `yaml:"max_messages"`
	MaxToolResponse int `yaml:"max_tool_response"`
	MaxIterations   int `yaml:"max_iterations"`
	// TopK is how many chunks a RAG turn retrieves
	TopK int `yaml:"top_k"`
}

// Default returns built-in defaults without consulting the environment
func Default() Config {
	win := conversation.DefaultConfig()
	ld := loader.DefaultConfig()
	return Config{
		Store:     vector.DefaultStoreConfig(),
		Chunk:     vector.DefaultChunkConfig(),
		Embedding: embedding.Config{Provider: "openai"},
		Chat:      providers.ChatModelConfig{Kind: providers.KindOpenAI},
		Window: WindowConfig{
			Temperature: win.Temperature,
			MaxTokens:   win.MaxTokens,
			Encoding:    conversation.DefaultEncoding,
		},
		Loader: LoaderConfig{
			Pattern:     ld.Pattern,
			MaxFileSize: ld.MaxFileSize,
		},
		Agent: AgentConfig{
			MaxMessages:     20,
			MaxToolResponse: 2000,
			MaxIterations:   20,
			TopK:            memory.DefaultK,
		},
		LogLevel: "info",
	}
}

// Load builds the configuration. path may be empty, in which case
// $LLMMEMORY_CONFIG is used when set. A missing .env file is not an error.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("%w: failed to read .env: %w", llm.ErrConfig, err)
	}

	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("%w: failed to read config file: %w", llm.ErrConfig, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w: failed to parse %s: %w", llm.ErrConfig, path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overrides fields with the environment variables that are set
func (c *Config) applyEnv() {
	c.Store.Backend = getEnvString("VECTOR_STORE", c.Store.Backend)
	c.Store.IndexName = getEnvString("INDEX_NAME", c.Store.IndexName)
	c.Store.Metric = llm.Metric(getEnvString("DISTANCE_METRIC", string(c.Store.Metric)))
	c.Store.Redis.URL = getEnvString("REDIS_URL", c.Store.Redis.URL)
	c.Store.Redis.Addr = getEnvString("REDIS_ADDR", c.Store.Redis.Addr)
	c.Store.Redis.Password = getEnvString("REDIS_PASSWORD", c.Store.Redis.Password)
	c.Store.Redis.DB = getEnvInt("REDIS_DB", c.Store.Redis.DB)
	c.Store.Postgres.URL = getEnvString("POSTGRES_URL", c.Store.Postgres.URL)
	c.Store.Chromem.Path = getEnvString("CHROMEM_PATH", c.Store.Chromem.Path)

	c.Chunk.Size = getEnvInt("CHUNK_SIZE", c.Chunk.Size)
	c.Chunk.Overlap = getEnvInt("CHUNK_OVERLAP", c.Chunk.Overlap)
	c.Chunk.Strategy = vector.Strategy(getEnvString("CHUNK_STRATEGY", string(c.Chunk.Strategy)))

	c.Embedding.Provider = getEnvString("EMBEDDING_PROVIDER", c.Embedding.Provider)
	c.Embedding.APIKey = getEnvString("EMBEDDING_MODEL_API_KEY", c.Embedding.APIKey)
	c.Embedding.BaseURL = getEnvString("EMBEDDING_MODEL_BASE_URL", c.Embedding.BaseURL)
	c.Embedding.Model = getEnvString("EMBEDDING_MODEL", c.Embedding.Model)
	c.Embedding.Dimensions = getEnvInt("VECTOR_DIM", c.Embedding.Dimensions)

	c.Chat.Kind = providers.Kind(strings.ToLower(getEnvString("CHAT_PROVIDER", string(c.Chat.Kind))))
	c.Chat.APIKey = getEnvString("API_KEY", c.Chat.APIKey)
	c.Chat.BaseURL = getEnvString("BASE_URL", c.Chat.BaseURL)
	c.Chat.Model = getEnvString("MODEL", c.Chat.Model)

	c.Window.Temperature = getEnvFloat32("TEMPERATURE", c.Window.Temperature)
	c.Window.MaxTokens = getEnvInt("MAX_TOKENS", c.Window.MaxTokens)
	c.Window.Encoding = getEnvString("TIKTOKEN_ENCODING", c.Window.Encoding)

	c.Agent.MaxMessages = getEnvInt("AGENT_MAX_MESSAGES", c.Agent.MaxMessages)
	c.Agent.MaxToolResponse = getEnvInt("AGENT_MAX_TOOL_RESPONSE", c.Agent.MaxToolResponse)
	c.Agent.MaxIterations = getEnvInt("AGENT_MAX_ITERATIONS", c.Agent.MaxIterations)
	c.Agent.TopK = getEnvInt("TOP_K", c.Agent.TopK)

	c.Tracing.APIToken = getEnvString("COZE_LOOP_API_TOKEN", c.Tracing.APIToken)
	c.Tracing.WorkspaceID = getEnvString("COZELOOP_WORKSPACE_ID", c.Tracing.WorkspaceID)

	c.LogLevel = getEnvString("LOG_LEVEL", c.LogLevel)
}

// Validate checks values that do not need a live backend. Credentials are
// checked when a provider is actually built.
func (c Config) Validate() error {
	var problems []string

	if err := c.Chunk.Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	if _, ok := llm.ParseMetric(string(c.Store.Metric)); !ok {
		problems = append(problems, fmt.Sprintf("unknown distance metric %q", c.Store.Metric))
	}
	if !slices.Contains(vector.Backends(), c.Store.Backend) {
		problems = append(problems, fmt.Sprintf("unknown vector store %q (have %s)", c.Store.Backend, strings.Join(vector.Backends(), ", ")))
	}
	if strings.TrimSpace(c.Store.IndexName) == "" {
		problems = append(problems, "index name is empty")
	}
	if !slices.Contains(embedding.Providers(), strings.ToLower(c.Embedding.Provider)) {
		problems = append(problems, fmt.Sprintf("unknown embedding provider %q", c.Embedding.Provider))
	}
	if _, err := providers.ParseKind(string(c.Chat.Kind)); err != nil {
		problems = append(problems, fmt.Sprintf("unknown chat provider %q", c.Chat.Kind))
	}
	if c.Window.MaxTokens <= 0 {
		problems = append(problems, "window max_tokens must be positive")
	}
	if c.Window.Temperature < 0 || c.Window.Temperature > 2 {
		problems = append(problems, fmt.Sprintf("temperature %.2f out of range [0, 2]", c.Window.Temperature))
	}
	if c.Agent.TopK <= 0 {
		problems = append(problems, "top_k must be positive")
	}
	if _, err := c.Level(); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", llm.ErrConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Level parses LogLevel
func (c Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return lvl, nil
}

// MemoryConfig derives the memory manager configuration
func (c Config) MemoryConfig(logger *slog.Logger) memory.Config {
	metric, _ := llm.ParseMetric(string(c.Store.Metric))
	return memory.Config{Chunk: c.Chunk, Metric: metric, Logger: logger}
}

// StoreConfig returns the store configuration with the logger attached
func (c Config) StoreConfig(logger *slog.Logger) vector.StoreConfig {
	sc := c.Store
	sc.Logger = logger
	return sc
}

// ConversationConfig derives the window configuration, reading the
// template file when one is set
func (c Config) ConversationConfig(logger *slog.Logger) (conversation.Config, error) {
	wc := conversation.DefaultConfig()
	wc.Model = c.Chat.Model
	wc.Temperature = c.Window.Temperature
	wc.MaxTokens = c.Window.MaxTokens
	wc.Logger = logger
	switch {
	case c.Window.TemplateFile != "":
		data, err := os.ReadFile(c.Window.TemplateFile)
		if err != nil {
			return wc, fmt.Errorf("%w: failed to read template: %w", llm.ErrConfig, err)
		}
		wc.Template = string(data)
	case c.Window.Template != "":
		wc.Template = c.Window.Template
	}
	return wc, nil
}

// LoaderConfig derives the directory loader configuration
func (c Config) LoaderConfig(logger *slog.Logger) loader.Config {
	return loader.Config{
		Pattern:       c.Loader.Pattern,
		MaxFileSize:   c.Loader.MaxFileSize,
		IncludeHidden: c.Loader.IncludeHidden,
		Logger:        logger,
	}
}

// RuntimeConfig derives the agent runtime configuration
func (c Config) RuntimeConfig(logger *slog.Logger) agent.RuntimeConfig {
	return agent.RuntimeConfig{
		MaxMessages:     c.Agent.MaxMessages,
		MaxToolResponse: c.Agent.MaxToolResponse,
		MaxIterations:   c.Agent.MaxIterations,
		Logger:          logger,
	}
}

// Tokenizer builds the tokenizer named by Window.Encoding
func (c Config) Tokenizer() (conversation.Tokenizer, error) {
	if c.Window.Encoding == "whitespace" {
		return conversation.WhitespaceTokenizer{}, nil
	}
	return conversation.NewTiktokenTokenizer(c.Window.Encoding)
}

func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat32(key string, defaultVal float32) float32 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 32); err == nil {
			return float32(f)
		}
	}
	return defaultVal
}
