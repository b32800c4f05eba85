package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.IndexPath == "" {
		cfg.Storage.IndexPath = ".tansa/index"
	}
	if cfg.Storage.CatalogPath == "" {
		cfg.Storage.CatalogPath = ".tansa/catalog.db"
	}
	if cfg.Scan.QueueSize == 0 {
		cfg.Scan.QueueSize = 1024
	}
	if cfg.Scan.FlushDocs == 0 {
		cfg.Scan.FlushDocs = 500
	}
	if cfg.Scan.FlushIntervalMS == 0 {
		cfg.Scan.FlushIntervalMS = 2000
	}
	if cfg.Scan.Fingerprint == "" {
		cfg.Scan.Fingerprint = "mtime_size"
	}
	if cfg.Extract.MaxFileSize == 0 {
		cfg.Extract.MaxFileSize = 32 << 20 // 32 MiB
	}
	if cfg.Extract.MaxTextBytes == 0 {
		cfg.Extract.MaxTextBytes = 1 << 20 // 1 MiB of extracted text
	}
	if cfg.Extract.TimeoutSeconds == 0 {
		cfg.Extract.TimeoutSeconds = 30
	}
	if cfg.Watch.DebounceMS == 0 {
		cfg.Watch.DebounceMS = 400
	}
	if cfg.Search.DefaultPerPage == 0 {
		cfg.Search.DefaultPerPage = 20
	}
	if cfg.Search.MaxPerPage == 0 {
		cfg.Search.MaxPerPage = 100
	}
	if cfg.Search.SnippetsPerDoc == 0 {
		cfg.Search.SnippetsPerDoc = 3
	}
	if cfg.Search.SnippetMaxBytes == 0 {
		cfg.Search.SnippetMaxBytes = 200
	}
}
