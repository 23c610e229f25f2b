package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"whosaidit/models"

	jwt "github.com/dgrijalva/jwt-go"
)

// TokenTTL はルームの有効期限に合わせる
const TokenTTL = 24 * time.Hour

var ErrInvalidToken = errors.New("invalid token")

// TokenManager issues and verifies the player session tokens handed out by the
// HTTP API and presented on the websocket upgrade.
type TokenManager struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

func NewTokenManager(secret string) *TokenManager {
	return &TokenManager{key: []byte(secret), ttl: TokenTTL, now: time.Now}
}

// GenerateToken signs a token binding playerID to roomCode.
func (m *TokenManager) GenerateToken(roomCode, playerID string) (string, error) {
	now := m.now()
	claims := &models.PlayerClaims{
		RoomCode: roomCode,
		PlayerID: playerID,
		StandardClaims: jwt.StandardClaims{
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(m.ttl).Unix(),
			Subject:   playerID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies tokenString and returns its claims.
func (m *TokenManager) ParseToken(tokenString string) (*models.PlayerClaims, error) {
	claims := &models.PlayerClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return m.key, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.RoomCode == "" || claims.PlayerID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// TokenFromRequest reads the token from the Authorization header, falling back
// to the token query parameter that browsers use for websocket upgrades.
func TokenFromRequest(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if header != "" {
		return header
	}
	return r.URL.Query().Get("token")
}
