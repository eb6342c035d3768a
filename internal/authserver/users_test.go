package authserver_test

import (
	"testing"

	"github.com/jrsteele09/go-auth-client/internal/authserver"
	"github.com/stretchr/testify/require"
)

func TestValidatePasswordStrength(t *testing.T) {
	tests := []struct {
		name     string
		password string
		valid    bool
	}{
		{"valid", "Passw0rdOK", true},
		{"too short", "Pa1", false},
		{"no upper", "password1", false},
		{"no lower", "PASSWORD1", false},
		{"no number", "Password", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := authserver.ValidatePasswordStrength(tt.password)
			if tt.valid {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestPasswordHash(t *testing.T) {
	hash, err := authserver.HashPassword("Passw0rdOK")
	require.NoError(t, err)
	require.True(t, authserver.CheckPasswordHash("Passw0rdOK", hash))
	require.False(t, authserver.CheckPasswordHash("wrong", hash))
}
