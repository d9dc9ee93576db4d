package config

const (
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"

	VariantStandard   = "standard"
	VariantContextual = "contextual"

	StoreMemory = "memory"
	StoreBadger = "badger"

	EmbedderONNX = "onnx"
	EmbedderHash = "hash"

	DefaultEmbeddingWeight = 0.6
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.CORSOrigins == nil {
		cfg.Server.CORSOrigins = []string{"*"}
	}
	if cfg.Server.RateLimit == 0 {
		cfg.Server.RateLimit = 60
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = StorageSQLite
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = ".cursobot/data/conversations.db"
	}
	if cfg.Catalog.CoursesPath == "" {
		cfg.Catalog.CoursesPath = ".cursobot/data/catalog/cursos.csv"
	}
	if cfg.Catalog.EmbeddingsPath == "" {
		cfg.Catalog.EmbeddingsPath = ".cursobot/data/catalog/embeddings.npy"
	}
	if cfg.Ranking.Variant == "" {
		cfg.Ranking.Variant = VariantStandard
	}
	if cfg.Ranking.NameFeatures == 0 {
		cfg.Ranking.NameFeatures = 3000
	}
	if cfg.Ranking.ContextFeatures == 0 {
		cfg.Ranking.ContextFeatures = 5000
	}
	if cfg.Ranking.SeedSize == 0 {
		cfg.Ranking.SeedSize = 10
	}
	if cfg.Ranking.MaxEditDistance == 0 {
		cfg.Ranking.MaxEditDistance = 2
	}
	if cfg.Ranking.DefaultLimit == 0 {
		cfg.Ranking.DefaultLimit = 5
	}
	if cfg.Ranking.MaxLimit == 0 {
		cfg.Ranking.MaxLimit = 100
	}
	if cfg.Dialogue.Store == "" {
		cfg.Dialogue.Store = StoreMemory
	}
	if cfg.Dialogue.StatePath == "" {
		cfg.Dialogue.StatePath = ".cursobot/data/state"
	}
	if cfg.Dialogue.PageSize == 0 {
		cfg.Dialogue.PageSize = 4
	}
	if cfg.Dialogue.CandidatePool == 0 {
		cfg.Dialogue.CandidatePool = 100
	}
	if cfg.Dialogue.Alternatives == 0 {
		cfg.Dialogue.Alternatives = 10
	}
	if cfg.Dialogue.ExtensionCodes == nil {
		cfg.Dialogue.ExtensionCodes = []string{"EXT", "EC", "EXTENSION", "EDUCACION CONTINUA"}
	}
	if cfg.Dialogue.ExtensionLabels == nil {
		cfg.Dialogue.ExtensionLabels = []string{"educacion continua", "extension"}
	}
	if cfg.Tagging.Embedder == "" {
		cfg.Tagging.Embedder = EmbedderONNX
	}
	if cfg.Tagging.ModelPath == "" {
		cfg.Tagging.ModelPath = ".cursobot/data/models/paraphrase-multilingual-MiniLM-L12-v2.onnx"
	}
	if cfg.Tagging.CentroidsPath == "" {
		cfg.Tagging.CentroidsPath = ".cursobot/data/models/centroids.npy"
	}
	if cfg.Tagging.Dimensions == 0 {
		cfg.Tagging.Dimensions = 384
	}
	if cfg.Tagging.MaxTokens == 0 {
		cfg.Tagging.MaxTokens = 128
	}
	if cfg.Tagging.CacheSize == 0 {
		cfg.Tagging.CacheSize = 10000
	}
}
