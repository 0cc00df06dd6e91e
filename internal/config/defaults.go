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
		cfg.Storage.DatabasePath = "/usr/local/var/doko/data/inventory.db"
	}
	if cfg.Storage.AssetsPath == "" {
		cfg.Storage.AssetsPath = "/usr/local/var/doko/data/assets.db"
	}
	if cfg.Storage.BrowseIndexPath == "" {
		cfg.Storage.BrowseIndexPath = "/usr/local/var/doko/data/browse.bleve"
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = "http://localhost:11434"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "mxbai-embed-large"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 1024
	}
	if cfg.Embedding.QueryPrefix == "" {
		cfg.Embedding.QueryPrefix = "Represent this sentence for searching relevant passages: "
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.TimeoutSeconds == 0 {
		cfg.Embedding.TimeoutSeconds = 30
	}
	if cfg.Caption.BaseURL == "" {
		cfg.Caption.BaseURL = "https://api.openai.com"
	}
	if cfg.Caption.Model == "" {
		cfg.Caption.Model = "gpt-4o-mini"
	}
	if cfg.Caption.RequestsPerMinute == 0 {
		cfg.Caption.RequestsPerMinute = 60
	}
	if cfg.Caption.TimeoutSeconds == 0 {
		cfg.Caption.TimeoutSeconds = 60
	}
	if cfg.Ingest.Concurrency == 0 {
		cfg.Ingest.Concurrency = 4
	}
	if cfg.Search.DefaultK == 0 {
		cfg.Search.DefaultK = 10
	}
	if cfg.Search.MaxK == 0 {
		cfg.Search.MaxK = 100
	}
}
