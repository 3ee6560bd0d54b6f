package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverMemory        = "memory"
	DriverSQLite        = "sqlite"
	DriverPostgres      = "postgres"
	DriverElasticsearch = "elasticsearch"
)

// Model providers.
const (
	ProviderNone   = "none"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Store         StoreConfig         `yaml:"store"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	Redis         RedisConfig         `yaml:"redis"`
	ClickHouse    ClickHouseConfig    `yaml:"clickhouse"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	Model         ModelConfig         `yaml:"model"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	Search        SearchConfig        `yaml:"search"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxConcurrent   int           `yaml:"max_concurrent"`
}

type StoreConfig struct {
	Driver       string        `yaml:"driver"`
	DSN          string        `yaml:"dsn"`
	Seed         bool          `yaml:"seed"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
}

type ElasticsearchConfig struct {
	Addresses         []string      `yaml:"addresses"`
	Username          string        `yaml:"username"`
	Password          string        `yaml:"password"`
	MaxRetries        int           `yaml:"max_retries"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	IndexPrefix       string        `yaml:"index_prefix"`
	NumShards         int           `yaml:"num_shards"`
	NumReplicas       int           `yaml:"num_replicas"`
	RefreshInterval   string        `yaml:"refresh_interval"`
	BulkSize          int           `yaml:"bulk_size"`
	BulkFlushInterval time.Duration `yaml:"bulk_flush_interval"`
}

type RedisConfig struct {
	Enabled      bool           `yaml:"enabled"`
	Addresses    []string       `yaml:"addresses"`
	Password     string         `yaml:"password"`
	DB           int            `yaml:"db"`
	PoolSize     int            `yaml:"pool_size"`
	MinIdleConns int            `yaml:"min_idle_conns"`
	DialTimeout  time.Duration  `yaml:"dial_timeout"`
	ReadTimeout  time.Duration  `yaml:"read_timeout"`
	WriteTimeout time.Duration  `yaml:"write_timeout"`
	TTL          CacheTTLConfig `yaml:"ttl"`
}

type CacheTTLConfig struct {
	Lookups       time.Duration `yaml:"lookups"`
	StaleFallback time.Duration `yaml:"stale_fallback"`
}

type ClickHouseConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addresses    []string      `yaml:"addresses"`
	Database     string        `yaml:"database"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	MaxIdleConns int           `yaml:"max_idle_conns"`
}

type KafkaConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Brokers        []string      `yaml:"brokers"`
	TopicQuestions string        `yaml:"topic_questions"`
	TopicReplies   string        `yaml:"topic_replies"`
	TopicDLQ       string        `yaml:"topic_dlq"`
	ConsumerGroup  string        `yaml:"consumer_group"`
	BatchSize      int           `yaml:"batch_size"`
	BatchTimeout   time.Duration `yaml:"batch_timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	// MaxQuestionAge drops questions that waited longer than this in the
	// topic; zero answers every question regardless of age.
	MaxQuestionAge time.Duration `yaml:"max_question_age"`
}

type ModelConfig struct {
	Provider       string               `yaml:"provider"`
	Model          string               `yaml:"model"`
	BaseURL        string               `yaml:"base_url"`
	APIKey         string               `yaml:"api_key"`
	Timeout        time.Duration        `yaml:"timeout"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

type PipelineConfig struct {
	Language                string  `yaml:"language"`
	PreserveChars           string  `yaml:"preserve_chars"`
	Stemming                bool    `yaml:"stemming"`
	StemmerLanguage         string  `yaml:"stemmer_language"`
	MinConfidence           float64 `yaml:"min_confidence"`
	LocalMinScore           float64 `yaml:"local_min_score"`
	TriggerConfidence       float64 `yaml:"trigger_confidence"`
	ModelFallbackConfidence float64 `yaml:"model_fallback_confidence"`
	FuzzyTopK               int     `yaml:"fuzzy_top_k"`
	FuzzySimilarity         float64 `yaml:"fuzzy_similarity"`
	MaxResults              int     `yaml:"max_results"`
}

type SearchConfig struct {
	QueryTimeout   time.Duration        `yaml:"query_timeout"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Retry          RetryConfig          `yaml:"retry"`
	SlowQuery      SlowQueryConfig      `yaml:"slow_query"`
}

type CircuitBreakerConfig struct {
	MaxRequests      uint32        `yaml:"max_requests"`
	Interval         time.Duration `yaml:"interval"`
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold uint32        `yaml:"failure_threshold"`
}

type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	InitialWait time.Duration `yaml:"initial_wait"`
	MaxWait     time.Duration `yaml:"max_wait"`
	Multiplier  float64       `yaml:"multiplier"`
}

type SlowQueryConfig struct {
	WarningThreshold  time.Duration `yaml:"warning_threshold"`
	CriticalThreshold time.Duration `yaml:"critical_threshold"`
}

type ObservabilityConfig struct {
	MetricsPort     int    `yaml:"metrics_port"`
	TracingEndpoint string `yaml:"tracing_endpoint"`
	LogLevel        string `yaml:"log_level"`
	ServiceName     string `yaml:"service_name"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	data = []byte(os.ExpandEnv(string(data)))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxConcurrent:   1000,
		},
		Store: StoreConfig{
			Driver:       DriverMemory,
			Seed:         true,
			MaxOpenConns: 10,
			QueryTimeout: 500 * time.Millisecond,
		},
		Elasticsearch: ElasticsearchConfig{
			Addresses:         []string{"http://localhost:9200"},
			MaxRetries:        3,
			RequestTimeout:    500 * time.Millisecond,
			IndexPrefix:       "directory",
			NumShards:         1,
			NumReplicas:       1,
			RefreshInterval:   "1s",
			BulkSize:          500,
			BulkFlushInterval: 5 * time.Second,
		},
		Redis: RedisConfig{
			Addresses:    []string{"localhost:6379"},
			PoolSize:     20,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  1 * time.Second,
			WriteTimeout: 1 * time.Second,
			TTL: CacheTTLConfig{
				Lookups:       2 * time.Minute,
				StaleFallback: 1 * time.Hour,
			},
		},
		ClickHouse: ClickHouseConfig{
			Addresses:    []string{"localhost:9000"},
			Database:     "assistant_analytics",
			DialTimeout:  5 * time.Second,
			QueryTimeout: 2 * time.Second,
			MaxOpenConns: 10,
			MaxIdleConns: 5,
		},
		Kafka: KafkaConfig{
			Brokers:        []string{"localhost:9092"},
			TopicQuestions: "assistant.questions",
			TopicReplies:   "assistant.replies",
			TopicDLQ:       "assistant.questions.dlq",
			ConsumerGroup:  "directory-assistant",
			BatchSize:      100,
			BatchTimeout:   1 * time.Second,
			MaxRetries:     3,
			MaxQuestionAge: 5 * time.Minute,
		},
		Model: ModelConfig{
			Provider: ProviderNone,
			Timeout:  2 * time.Second,
			CircuitBreaker: CircuitBreakerConfig{
				MaxRequests:      5,
				Interval:         30 * time.Second,
				Timeout:          30 * time.Second,
				FailureThreshold: 3,
			},
		},
		Pipeline: PipelineConfig{
			Language:                "ru",
			PreserveChars:           "-",
			StemmerLanguage:         "russian",
			MinConfidence:           0.3,
			LocalMinScore:           0.3,
			TriggerConfidence:       0.9,
			ModelFallbackConfidence: 0.5,
			FuzzyTopK:               5,
			FuzzySimilarity:         0.8,
			MaxResults:              5,
		},
		Search: SearchConfig{
			QueryTimeout: 500 * time.Millisecond,
			CircuitBreaker: CircuitBreakerConfig{
				MaxRequests:      100,
				Interval:         30 * time.Second,
				Timeout:          30 * time.Second,
				FailureThreshold: 5,
			},
			Retry: RetryConfig{
				MaxAttempts: 2,
				InitialWait: 50 * time.Millisecond,
				MaxWait:     500 * time.Millisecond,
				Multiplier:  2.0,
			},
			SlowQuery: SlowQueryConfig{
				WarningThreshold:  200 * time.Millisecond,
				CriticalThreshold: 1 * time.Second,
			},
		},
		Observability: ObservabilityConfig{
			MetricsPort: 9090,
			LogLevel:    "info",
			ServiceName: "directory-assistant",
		},
	}
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.MaxConcurrent < 1 {
		return fmt.Errorf("server max_concurrent must be >= 1, got %d", c.Server.MaxConcurrent)
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store driver %s requires a dsn", c.Store.Driver)
		}
	case DriverElasticsearch:
		if len(c.Elasticsearch.Addresses) == 0 {
			return fmt.Errorf("at least one elasticsearch address required")
		}
	default:
		return fmt.Errorf("unknown store driver: %q", c.Store.Driver)
	}
	if c.Redis.Enabled && len(c.Redis.Addresses) == 0 {
		return fmt.Errorf("at least one redis address required")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("at least one kafka broker required")
	}
	if c.Kafka.MaxQuestionAge < 0 {
		return fmt.Errorf("kafka max_question_age must not be negative, got %v", c.Kafka.MaxQuestionAge)
	}
	if c.ClickHouse.Enabled && len(c.ClickHouse.Addresses) == 0 {
		return fmt.Errorf("at least one clickhouse address required")
	}
	switch c.Model.Provider {
	case ProviderNone, ProviderOpenAI, ProviderOllama:
	default:
		return fmt.Errorf("unknown model provider: %q", c.Model.Provider)
	}
	p := c.Pipeline
	if p.MinConfidence < 0 || p.MinConfidence > 1 {
		return fmt.Errorf("min confidence must be between 0 and 1, got %v", p.MinConfidence)
	}
	if p.ModelFallbackConfidence < 0 || p.ModelFallbackConfidence > 1 {
		return fmt.Errorf("model fallback confidence must be between 0 and 1, got %v", p.ModelFallbackConfidence)
	}
	if p.FuzzyTopK < 1 {
		return fmt.Errorf("fuzzy top k must be at least 1")
	}
	if p.FuzzySimilarity <= 0 || p.FuzzySimilarity > 1 {
		return fmt.Errorf("fuzzy similarity must be in (0, 1], got %v", p.FuzzySimilarity)
	}
	if p.MaxResults < 1 {
		return fmt.Errorf("max results must be at least 1")
	}
	return nil
}
