package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"seatkeeper/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

var errNoUserClaim = errors.New("token has no user id")

// Identity распознает пользователя по HS256 JWT из заголовка Authorization
// или параметра token (для websocket). Запросы без токена проходят анонимно,
// запросы с неверным токеном отклоняются.
func Identity(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			c.Next()
			return
		}

		userID, err := ParseUserID(raw, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("user_id", userID)
		c.Request = c.Request.WithContext(logger.ContextWithUserID(c.Request.Context(), userID))
		c.Next()
	}
}

// RequireUser отклоняет анонимные запросы
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := logger.UserIDFromContext(c.Request.Context()); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

// ParseUserID validates the token and returns its user_id or numeric sub claim.
func ParseUserID(raw, secret string) (int64, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return 0, err
	}

	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return 0, errNoUserClaim
	}
	for _, key := range []string{"user_id", "sub"} {
		if id, ok := claimInt(claims[key]); ok {
			return id, nil
		}
	}
	return 0, errNoUserClaim
}

func claimInt(v any) (int64, bool) {
	switch val := v.(type) {
	case float64:
		if val > 0 && val == float64(int64(val)) {
			return int64(val), true
		}
	case string:
		if id, err := strconv.ParseInt(val, 10, 64); err == nil && id > 0 {
			return id, true
		}
	}
	return 0, false
}

func bearerToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return c.Query("token")
}
