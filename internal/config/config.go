package config

type Config interface {
	EnvConfig
	CorsConfig
	BrokerConfig
	SecurityConfig
	StoreConfig
}

type EnvConfig interface {
	GetServerAddress() string
	GetAppName() string
	GetBaseURL() string
	GetFrontendURL() string
	GetEnv() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Broker
	Security
	Store
}

func New() Config {
	return mainConfig{}
}
