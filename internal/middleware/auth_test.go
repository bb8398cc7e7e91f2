package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"hv-search-go/internal/model"
	"hv-search-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(jwtManager *token.JWTManager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	echo := func(c *gin.Context) {
		identity := IdentityFromContext(c)
		c.JSON(http.StatusOK, gin.H{
			"authenticated": identity.Authenticated,
			"username":      identity.Username,
			"role":          identity.Role,
		})
	}
	r.GET("/open", OptionalAuthMiddleware(jwtManager, nil), echo)
	r.GET("/protected", AuthMiddleware(jwtManager, nil), echo)
	return r
}

func doRequest(r *gin.Engine, path, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestOptionalAuthAllowsGuest(t *testing.T) {
	jwtManager := token.NewJWTManager("test-secret", 2, 7)
	r := newTestRouter(jwtManager)

	w := doRequest(r, "/open", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"authenticated":false`)
}

func TestOptionalAuthDegradesInvalidToken(t *testing.T) {
	jwtManager := token.NewJWTManager("test-secret", 2, 7)
	r := newTestRouter(jwtManager)

	// 无效 token 降级为访客，而不是拒绝请求
	w := doRequest(r, "/open", "Bearer garbage")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"authenticated":false`)
}

func TestOptionalAuthResolvesIdentity(t *testing.T) {
	jwtManager := token.NewJWTManager("test-secret", 2, 7)
	r := newTestRouter(jwtManager)

	tok, err := jwtManager.GenerateToken("empleado", model.RoleUser)
	require.NoError(t, err)

	w := doRequest(r, "/open", "Bearer "+tok)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"empleado"`)
	assert.Contains(t, w.Body.String(), `"authenticated":true`)
}

func TestAuthMiddlewareRejectsGuest(t *testing.T) {
	jwtManager := token.NewJWTManager("test-secret", 2, 7)
	r := newTestRouter(jwtManager)

	w := doRequest(r, "/protected", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(r, "/protected", "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddlewareAcceptsValidToken(t *testing.T) {
	jwtManager := token.NewJWTManager("test-secret", 2, 7)
	r := newTestRouter(jwtManager)

	tok, err := jwtManager.GenerateToken("admin", model.RoleAdmin)
	require.NoError(t, err)

	w := doRequest(r, "/protected", "Bearer "+tok)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"role":"ADMIN"`)
}

func TestAdminAuthMiddleware(t *testing.T) {
	jwtManager := token.NewJWTManager("test-secret", 2, 7)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin", AuthMiddleware(jwtManager, nil), AdminAuthMiddleware(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	userTok, err := jwtManager.GenerateToken("empleado", model.RoleUser)
	require.NoError(t, err)
	w := doRequest(r, "/admin", "Bearer "+userTok)
	assert.Equal(t, http.StatusForbidden, w.Code)

	adminTok, err := jwtManager.GenerateToken("admin", model.RoleAdmin)
	require.NoError(t, err)
	w = doRequest(r, "/admin", "Bearer "+adminTok)
	assert.Equal(t, http.StatusOK, w.Code)
}
