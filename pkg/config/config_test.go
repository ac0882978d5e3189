package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, BackendPostgres, cfg.Index.Backend)
	assert.Equal(t, 5, cfg.Reindex.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Reindex.PollInterval)
	assert.Equal(t, 5*time.Minute, cfg.Reindex.LockTTL)
	assert.Equal(t, "document.ingested", cfg.Kafka.Topics.DocumentIngested)
	assert.Equal(t, "reindex.request", cfg.Kafka.Topics.ReindexRequest)
}

func TestLoadYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "worker.yaml")
	yamlDoc := `
index:
  backend: redis
reindex:
  batchSize: 20
  pollInterval: 250ms
  lockTTL: 1m
kafka:
  instanceId: worker-a
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o644))
	t.Setenv("SP_REINDEX_BATCH_SIZE", "50")
	t.Setenv("SP_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, BackendRedis, cfg.Index.Backend)
	assert.Equal(t, 50, cfg.Reindex.BatchSize, "env wins over file")
	assert.Equal(t, 250*time.Millisecond, cfg.Reindex.PollInterval)
	assert.Equal(t, time.Minute, cfg.Reindex.LockTTL)
	assert.Equal(t, "worker-a", cfg.Kafka.InstanceID)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown index backend", func(c *Config) { c.Index.Backend = "mongo" }},
		{"unknown cache backend", func(c *Config) { c.Search.CacheBackend = "memcached" }},
		{"zero batch size", func(c *Config) { c.Reindex.BatchSize = 0 }},
		{"ttl shorter than poll", func(c *Config) { c.Reindex.LockTTL = c.Reindex.PollInterval }},
		{"missing instance id", func(c *Config) { c.Kafka.InstanceID = "" }},
		{"unsafe table prefix", func(c *Config) { c.Index.ShardTablePrefix = "x; DROP" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Kafka.InstanceID = "test"
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := Default()
	cfg.Kafka.InstanceID = "test"
	assert.NoError(t, cfg.Validate())
}
