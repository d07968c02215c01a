package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/musubu/data/db/entities.db"
	}
	if cfg.Storage.SnapshotPath == "" {
		cfg.Storage.SnapshotPath = "/usr/local/var/musubu/data/entities.json"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 1000
	}
	if cfg.Embedding.Strategy == "" {
		cfg.Embedding.Strategy = "l2"
	}
	if cfg.Query.TopK == 0 {
		cfg.Query.TopK = 10
	}
	if cfg.Query.SimilarityThreshold == 0 {
		cfg.Query.SimilarityThreshold = 0.3
	}
	if cfg.Query.MaxEditDistance == 0 {
		cfg.Query.MaxEditDistance = 2
	}
}
