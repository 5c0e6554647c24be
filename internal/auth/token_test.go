package auth

import (
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	raw, err := tok.SignedString([]byte("secret"))
	require.NoError(t, err)
	return raw
}

func TestCheckToken(t *testing.T) {
	valid := signedToken(t, jwt.MapClaims{
		"user_id": 1,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	expired := signedToken(t, jwt.MapClaims{
		"user_id": 1,
		"exp":     time.Now().Add(-time.Hour).Unix(),
	})
	expiringSoon := signedToken(t, jwt.MapClaims{
		"user_id": 1,
		"exp":     time.Now().Add(10 * time.Second).Unix(),
	})
	noExpiry := signedToken(t, jwt.MapClaims{"user_id": 1})

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "no token", token: "", wantErr: ErrNoToken},
		{name: "not a jwt", token: "lmaooolol", wantErr: ErrBadToken},
		{name: "expired", token: expired, wantErr: ErrTokenExpired},
		{name: "expires within buffer", token: expiringSoon, wantErr: ErrTokenExpired},
		{name: "no exp claim accepted", token: noExpiry},
		{name: "valid", token: valid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := CheckToken(tt.token, DefaultExpiryBuffer); err != tt.wantErr {
				t.Errorf("CheckToken() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
