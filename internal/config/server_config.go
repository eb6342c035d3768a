package config

import (
	"fmt"
	"time"
)

// ServerConfig configures the development authentication service
type ServerConfig interface {
	GetPort() string
	GetSigningSecret() string
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
	GetRefreshTokenLength() int
}

type Server struct{}

var _ ServerConfig = Server{}

func (Server) GetPort() string {
	port := GetEnv("PORT", "3000")
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (Server) GetSigningSecret() string {
	return GetEnv("SIGNING_SECRET", "dev-signing-secret")
}

func (Server) GetAccessTokenExpiry() time.Duration {
	return GetEnvDuration("ACCESS_TOKEN_TTL", 15*time.Minute)
}

func (Server) GetRefreshTokenExpiry() time.Duration {
	return GetEnvDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour) // 7 days
}

func (Server) GetRefreshTokenLength() int {
	return 32 // 32 bytes = 256 bits
}
