package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"seatkeeper/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func sign(t *testing.T, claims jwt.MapClaims, method jwt.SigningMethod, key any) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return tok
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Identity(secret))
	r.GET("/whoami", func(c *gin.Context) {
		id, ok := logger.UserIDFromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"user_id": id, "known": ok})
	})
	r.GET("/private", RequireUser(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestParseUserID(t *testing.T) {
	exp := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name    string
		claims  jwt.MapClaims
		want    int64
		wantErr bool
	}{
		{"user_id claim", jwt.MapClaims{"user_id": 42, "exp": exp}, 42, false},
		{"numeric sub", jwt.MapClaims{"sub": 7, "exp": exp}, 7, false},
		{"string sub", jwt.MapClaims{"sub": "9", "exp": exp}, 9, false},
		{"non numeric sub", jwt.MapClaims{"sub": "alice", "exp": exp}, 0, true},
		{"expired", jwt.MapClaims{"user_id": 1, "exp": time.Now().Add(-time.Hour).Unix()}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ParseUserID(sign(t, tt.claims, jwt.SigningMethodHS256, []byte(secret)), secret)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestParseUserIDRejectsWrongKeyAndMethod(t *testing.T) {
	_, err := ParseUserID(sign(t, jwt.MapClaims{"user_id": 1}, jwt.SigningMethodHS256, []byte("other")), secret)
	assert.Error(t, err)

	_, err = ParseUserID(sign(t, jwt.MapClaims{"user_id": 1}, jwt.SigningMethodHS512, []byte(secret)), secret)
	assert.Error(t, err)
}

func TestIdentityMiddleware(t *testing.T) {
	r := newRouter()
	token := sign(t, jwt.MapClaims{"user_id": 5}, jwt.SigningMethodHS256, []byte(secret))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":5,"known":true}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami?token="+token, nil))
	assert.JSONEq(t, `{"user_id":5,"known":true}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	assert.JSONEq(t, `{"user_id":0,"known":false}`, w.Body.String())

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireUser(t *testing.T) {
	r := newRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/private", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+sign(t, jwt.MapClaims{"sub": 3}, jwt.SigningMethodHS256, []byte(secret)))
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}
