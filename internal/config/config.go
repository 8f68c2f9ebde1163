// Package config 提供配置加载和管理功能
package config

import (
	"time"
)

// Config 应用配置根结构
type Config struct {
	App           AppConfig           `yaml:"app" mapstructure:"app"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Database      DatabaseConfig      `yaml:"database" mapstructure:"database"`
	Cache         CacheConfig         `yaml:"cache" mapstructure:"cache"`
	Vector        VectorConfig        `yaml:"vector" mapstructure:"vector"`
	LLM           LLMConfig           `yaml:"llm" mapstructure:"llm"`
	Embedding     EmbeddingConfig     `yaml:"embedding" mapstructure:"embedding"`
	Services      ServicesConfig      `yaml:"services" mapstructure:"services"`
	Admission     AdmissionConfig     `yaml:"admission" mapstructure:"admission"`
	Retrieval     RetrievalConfig     `yaml:"retrieval" mapstructure:"retrieval"`
	Answer        AnswerConfig        `yaml:"answer" mapstructure:"answer"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
	Security      SecurityConfig      `yaml:"security" mapstructure:"security"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Version string `yaml:"version" mapstructure:"version"`
	Env     string `yaml:"env" mapstructure:"env"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTP HTTPServerConfig `yaml:"http" mapstructure:"http"`
}

// HTTPServerConfig HTTP 服务器配置
type HTTPServerConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Postgres PostgresConfig `yaml:"postgres" mapstructure:"postgres"`
}

// PostgresConfig PostgreSQL 配置
type PostgresConfig struct {
	Host            string        `yaml:"host" mapstructure:"host"`
	Port            int           `yaml:"port" mapstructure:"port"`
	User            string        `yaml:"user" mapstructure:"user"`
	Password        string        `yaml:"password" mapstructure:"password"`
	Database        string        `yaml:"database" mapstructure:"database"`
	SSLMode         string        `yaml:"ssl_mode" mapstructure:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Redis RedisConfig `yaml:"redis" mapstructure:"redis"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	Password     string        `yaml:"password" mapstructure:"password"`
	DB           int           `yaml:"db" mapstructure:"db"`
	PoolSize     int           `yaml:"pool_size" mapstructure:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
}

// VectorConfig 向量数据库配置
type VectorConfig struct {
	Milvus MilvusConfig `yaml:"milvus" mapstructure:"milvus"`
}

// MilvusConfig Milvus 配置
type MilvusConfig struct {
	Host               string `yaml:"host" mapstructure:"host"`
	Port               int    `yaml:"port" mapstructure:"port"`
	User               string `yaml:"user" mapstructure:"user"`
	Password           string `yaml:"password" mapstructure:"password"`
	CollectionPrefix   string `yaml:"collection_prefix" mapstructure:"collection_prefix"`
	IndexType          string `yaml:"index_type" mapstructure:"index_type"`
	MetricType         string `yaml:"metric_type" mapstructure:"metric_type"`
	HNSWM              int    `yaml:"hnsw_m" mapstructure:"hnsw_m"`
	HNSWEfConstruction int    `yaml:"hnsw_ef_construction" mapstructure:"hnsw_ef_construction"`
}

// LLMConfig LLM 配置
type LLMConfig struct {
	DefaultProvider string                    `yaml:"default_provider" mapstructure:"default_provider"`
	Providers       map[string]ProviderConfig `yaml:"providers" mapstructure:"providers"`
}

// ProviderConfig LLM 提供商配置
type ProviderConfig struct {
	APIKey      string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	Model       string        `yaml:"model" mapstructure:"model"`
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64       `yaml:"temperature" mapstructure:"temperature"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// EmbeddingConfig Embedding 配置
type EmbeddingConfig struct {
	APIKey    string `yaml:"api_key" mapstructure:"api_key"`
	Model     string `yaml:"model" mapstructure:"model"`
	Dimension int    `yaml:"dimension" mapstructure:"dimension"`
	Endpoint  string `yaml:"endpoint" mapstructure:"endpoint"`
	// ValidateOnStart 启动时用探针文本校验配置维度是否与服务端一致
	ValidateOnStart bool `yaml:"validate_on_start" mapstructure:"validate_on_start"`
}

// ServicesConfig 外部 HTTP 服务客户端配置
type ServicesConfig struct {
	Graph     GraphServiceConfig     `yaml:"graph" mapstructure:"graph"`
	Translate TranslateServiceConfig `yaml:"translate" mapstructure:"translate"`
	Insight   InsightServiceConfig   `yaml:"insight" mapstructure:"insight"`
	Reranker  RerankerServiceConfig  `yaml:"reranker" mapstructure:"reranker"`
	Citation  CitationServiceConfig  `yaml:"citation" mapstructure:"citation"`
}

// GraphServiceConfig 知识图谱检索服务配置
type GraphServiceConfig struct {
	Endpoint             string        `yaml:"endpoint" mapstructure:"endpoint"`
	Timeout              time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Limit                int           `yaml:"limit" mapstructure:"limit"`
	IncludeCommunities   bool          `yaml:"include_communities" mapstructure:"include_communities"`
	IncludeRelationships bool          `yaml:"include_relationships" mapstructure:"include_relationships"`
}

// TranslateServiceConfig 翻译服务配置
type TranslateServiceConfig struct {
	Endpoint string        `yaml:"endpoint" mapstructure:"endpoint"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// InsightServiceConfig 辅助信号服务配置
type InsightServiceConfig struct {
	Endpoint      string        `yaml:"endpoint" mapstructure:"endpoint"`
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	TopK          int           `yaml:"top_k" mapstructure:"top_k"`
	MinConfidence float64       `yaml:"min_confidence" mapstructure:"min_confidence"`
	MinSimilarity float64       `yaml:"min_similarity" mapstructure:"min_similarity"`
}

// RerankerServiceConfig 交叉编码器重排服务配置
type RerankerServiceConfig struct {
	Endpoint string        `yaml:"endpoint" mapstructure:"endpoint"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// CitationServiceConfig 引用链接解析服务配置
type CitationServiceConfig struct {
	Endpoint string        `yaml:"endpoint" mapstructure:"endpoint"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
	LinkTTL  time.Duration `yaml:"link_ttl" mapstructure:"link_ttl"`
}

// AdmissionConfig 准入闸门配置：每个依赖类一个固定容量
type AdmissionConfig struct {
	AcquireTimeout time.Duration `yaml:"acquire_timeout" mapstructure:"acquire_timeout"`
	Chat           int64         `yaml:"chat" mapstructure:"chat"`
	Generation     int64         `yaml:"generation" mapstructure:"generation"`
	Vector         int64         `yaml:"vector" mapstructure:"vector"`
	Graph          int64         `yaml:"graph" mapstructure:"graph"`
	Translate      int64         `yaml:"translate" mapstructure:"translate"`
	Insight        int64         `yaml:"insight" mapstructure:"insight"`
}

// RetrievalConfig 多源检索配置
type RetrievalConfig struct {
	TopK            int           `yaml:"top_k" mapstructure:"top_k"`
	MinScore        float64       `yaml:"min_score" mapstructure:"min_score"`
	VectorTimeout   time.Duration `yaml:"vector_timeout" mapstructure:"vector_timeout"`
	GraphTimeout    time.Duration `yaml:"graph_timeout" mapstructure:"graph_timeout"`
	OverallDeadline time.Duration `yaml:"overall_deadline" mapstructure:"overall_deadline"`

	EmbeddingCache BoundedCacheConfig `yaml:"embedding_cache" mapstructure:"embedding_cache"`
	OutcomeCache   BoundedCacheConfig `yaml:"outcome_cache" mapstructure:"outcome_cache"`
}

// BoundedCacheConfig 进程内有界缓存配置
type BoundedCacheConfig struct {
	MaxEntries int           `yaml:"max_entries" mapstructure:"max_entries"`
	TTL        time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// AnswerConfig 回答生成与编排配置
type AnswerConfig struct {
	ProcessingLanguage string `yaml:"processing_language" mapstructure:"processing_language"`
	MaxCitations       int    `yaml:"max_citations" mapstructure:"max_citations"`
	MaxEvidence        int    `yaml:"max_evidence" mapstructure:"max_evidence"`
	HistoryLimit       int    `yaml:"history_limit" mapstructure:"history_limit"`
	// SummarizeEvery 自上次摘要起累计多少轮触发一次后台记忆摘要
	SummarizeEvery int `yaml:"summarize_every" mapstructure:"summarize_every"`
}

// ObservabilityConfig 可观测性配置
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
	Output string `yaml:"output" mapstructure:"output"`
}

// TracingConfig 追踪配置
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Exporter   string  `yaml:"exporter" mapstructure:"exporter"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors" mapstructure:"cors"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerSecond int  `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int  `yaml:"burst" mapstructure:"burst"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" mapstructure:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" mapstructure:"allowed_headers"`
}
