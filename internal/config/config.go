package config

type Config interface {
	EnvConfig
	ClientConfig
	StoreConfig
	ServerConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

type mainConfig struct {
	EnvVars
	Client
	Store
	Server
}

func New() Config {
	return mainConfig{}
}
