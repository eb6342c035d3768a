package config

type StoreConfig interface {
	GetStoreBackend() string
	GetStoreKeyPrefix() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
}

const (
	StoreBackendMemory = "memory"
	StoreBackendRedis  = "redis"
)

type Store struct{}

var _ StoreConfig = Store{}

func (Store) GetStoreBackend() string {
	return GetEnv("STORE_BACKEND", StoreBackendMemory)
}

// GetStoreKeyPrefix namespaces the persisted session keys on shared backends
func (Store) GetStoreKeyPrefix() string {
	return GetEnv("STORE_KEY_PREFIX", "")
}

func (Store) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "localhost:6379")
}

func (Store) GetRedisPassword() string {
	return GetEnv("REDIS_PASSWORD", "")
}

func (Store) GetRedisDB() int {
	return GetEnvInt("REDIS_DB", 0)
}
