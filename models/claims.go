package models

import (
	"github.com/dgrijalva/jwt-go"
)

// PlayerClaims はWebSocket接続をルームとプレイヤーに結びつけるJWTクレーム
type PlayerClaims struct {
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
	jwt.StandardClaims
}
