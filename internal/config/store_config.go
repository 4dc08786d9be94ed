package config

// Token store backends selectable via TOKEN_STORE.
const (
	TokenStoreMemory = "memory"
	TokenStoreRedis  = "redis"
	TokenStoreMySQL  = "mysql"
)

type StoreConfig interface {
	GetTokenStoreBackend() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetRedisKeyPrefix() string
	GetMySQLDSN() string
}

type Store struct{}

var _ StoreConfig = Store{}

func (Store) GetTokenStoreBackend() string {
	return GetEnv("TOKEN_STORE", TokenStoreMemory)
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

func (Store) GetRedisKeyPrefix() string {
	return GetEnv("REDIS_KEY_PREFIX", "brokergate:")
}

func (Store) GetMySQLDSN() string {
	return GetEnv("MYSQL_DSN", "")
}
