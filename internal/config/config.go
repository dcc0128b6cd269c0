// internal/config/config.go
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the orchestrator service.
// The mapstructure tags are used by Viper to unmarshal the data.
type Config struct {
	HttpListenAddr string `mapstructure:"http_listen_addr"`

	EtcdEndpoints []string      `mapstructure:"etcd_endpoints"`
	EtcdTimeout   time.Duration `mapstructure:"etcd_timeout"`

	LeaderElectionTTL time.Duration `mapstructure:"leader_election_ttl"`

	// Buckets in the external blob store.
	DocumentBucket string `mapstructure:"document_bucket"` // uploaded documents + form templates
	FilledBucket   string `mapstructure:"filled_bucket"`   // completed forms

	// Form types accepted by the submission gateway.
	RecognizedForms []string `mapstructure:"recognized_forms"`

	// Knowledge-base resource identifiers, opaque to the pipeline.
	KnowledgeBaseID string `mapstructure:"knowledge_base_id"`
	DataSourceID    string `mapstructure:"data_source_id"`

	// External collaborator endpoints.
	IngestionBaseURL string `mapstructure:"ingestion_base_url"`
	RetrievalURL     string `mapstructure:"retrieval_url"`
	GenerationURL    string `mapstructure:"generation_url"`
	ConversionURL    string `mapstructure:"conversion_url"`

	// ConvertEnabled toggles the optional format-conversion stage without
	// altering the state machine.
	ConvertEnabled bool `mapstructure:"convert_enabled"`

	IngestionPollInterval time.Duration `mapstructure:"ingestion_poll_interval"`
	CompletionMaxWorkers  int           `mapstructure:"completion_max_workers"`

	RetentionSchedule string        `mapstructure:"retention_schedule"`
	RetentionTTL      time.Duration `mapstructure:"retention_ttl"`
}

// Load loads configuration from file and environment variables.
func Load() (*Config, error) {
	// Set default values
	viper.SetDefault("http_listen_addr", ":8080")
	viper.SetDefault("etcd_endpoints", []string{"localhost:2379"})
	viper.SetDefault("etcd_timeout", "5s")
	viper.SetDefault("leader_election_ttl", "10s")
	viper.SetDefault("recognized_forms", []string{"canexport_application_fomr"})
	viper.SetDefault("convert_enabled", false)
	viper.SetDefault("ingestion_poll_interval", "10s")
	viper.SetDefault("completion_max_workers", 15)
	viper.SetDefault("retention_schedule", "0 * * * *")
	viper.SetDefault("retention_ttl", "168h")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; rely on defaults and env vars.
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
