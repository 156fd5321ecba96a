package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pickuphub/pickup-backend/internal/config"
	jwtutil "github.com/pickuphub/pickup-backend/pkg/jwt"
)

// Auth JWT 인증 미들웨어. 게이트웨이가 발급한 토큰을 검증한다.
func Auth(cfg *config.Config) gin.HandlerFunc {
	jwtManager := jwtutil.NewManager(cfg.JWTSecret, 24*time.Hour)

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")

		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header required",
			})
			c.Abort()
			return
		}

		// "Bearer <token>" 형식 파싱
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid authorization header format",
			})
			c.Abort()
			return
		}

		claims, err := jwtManager.Verify(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			c.Abort()
			return
		}

		// 검증 성공. 플레이어 정보를 context에 저장
		c.Set("playerId", claims.PlayerID)
		c.Set("username", claims.Username)
		c.Set("isAdmin", claims.IsAdmin)

		c.Next()
	}
}
