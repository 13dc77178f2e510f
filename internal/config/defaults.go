package config

const (
	PolicyRebuild = "rebuild"
	PolicyAppend  = "append"

	BackendChromem = "chromem"
	BackendMemory  = "memory"

	ProviderOllama = "ollama"
	ProviderMock   = "mock"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeoutSeconds == 0 {
		cfg.Server.RequestTimeoutSeconds = 60
	}
	if cfg.Storage.VectorDBPath == "" {
		cfg.Storage.VectorDBPath = "./data/chroma_db"
	}
	if cfg.Storage.VectorBackend == "" {
		cfg.Storage.VectorBackend = BackendChromem
	}
	if cfg.Storage.Collection == "" {
		cfg.Storage.Collection = "medical_guidelines"
	}
	if cfg.Storage.PatientDBPath == "" {
		cfg.Storage.PatientDBPath = "./data/patients.db"
	}
	if cfg.Guidelines.Directory == "" {
		cfg.Guidelines.Directory = "./assets/guidelines"
	}
	if cfg.Guidelines.Policy == "" {
		cfg.Guidelines.Policy = PolicyRebuild
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = ProviderOllama
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = "http://localhost:11434"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "llama3"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1000
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 32
	}
	if cfg.Embedding.FailureThreshold == 0 {
		cfg.Embedding.FailureThreshold = 3
	}
	if cfg.Embedding.BreakerTimeoutSeconds == 0 {
		cfg.Embedding.BreakerTimeoutSeconds = 30
	}
	if cfg.Retrieval.DefaultK == 0 {
		cfg.Retrieval.DefaultK = 4
	}
	if cfg.Retrieval.MaxK == 0 {
		cfg.Retrieval.MaxK = 20
	}
	if cfg.Retrieval.ChunkSize == 0 {
		cfg.Retrieval.ChunkSize = 1000
	}
	if cfg.Generation.BaseURL == "" {
		cfg.Generation.BaseURL = cfg.Embedding.BaseURL
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = "MedAIBase/MedGemma1.5:4b"
	}
	if cfg.Generation.Temperature == 0 {
		cfg.Generation.Temperature = 0.4
	}
	if cfg.Generation.TopP == 0 {
		cfg.Generation.TopP = 0.9
	}
	if cfg.Generation.TopK == 0 {
		cfg.Generation.TopK = 50
	}
	if cfg.Generation.NumPredict == 0 {
		cfg.Generation.NumPredict = 3000
	}
	if cfg.Generation.RepeatPenalty == 0 {
		cfg.Generation.RepeatPenalty = 1.1
	}
	if cfg.Watch.DebounceMs == 0 {
		cfg.Watch.DebounceMs = 400
	}
}
