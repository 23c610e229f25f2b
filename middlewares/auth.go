package middlewares

import (
	"net/http"

	"whosaidit/auth"
	"whosaidit/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ClaimsKey はgin.Contextに検証済みクレームを保存するキー
const ClaimsKey = "claims"

// OptionalAuth はトークンが付いていれば検証し、クレームをコンテキストにセットする。
// トークンが無いリクエストはそのまま通す
func OptionalAuth(tokens *auth.TokenManager, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.TokenFromRequest(c.Request)
		if token == "" {
			c.Next()
			return
		}

		claims, err := tokens.ParseToken(token)
		if err != nil {
			logger.Warn("認証失敗", zap.String("path", c.FullPath()), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"status": "Unauthorized",
				"error":  "invalid token",
			})
			return
		}
		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// ClaimsFrom returns the claims set by OptionalAuth, if any.
func ClaimsFrom(c *gin.Context) (*models.PlayerClaims, bool) {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*models.PlayerClaims)
	return claims, ok
}
