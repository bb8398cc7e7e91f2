// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"net/http"
	"strings"

	"hv-search-go/internal/model"
	"hv-search-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

// IdentityKey 是请求身份在 Gin 上下文中的键。
const IdentityKey = "identity"

// BlacklistKeyPrefix 是已注销 token 在 Redis 中的键前缀。
const BlacklistKeyPrefix = "jwt:blacklist:"

// AuthMiddleware 创建一个强制 JWT 认证的 Gin 中间件。
// 它从请求头中提取 token，验证有效性并检查注销黑名单，
// 然后将调用方 Identity 存入 Gin 上下文。
func AuthMiddleware(jwtManager *token.JWTManager, redisClient *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := resolveIdentity(c, jwtManager, redisClient)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "无效或已过期的 token"})
			return
		}
		if !identity.Authenticated {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "请求未包含授权头"})
			return
		}

		c.Set(IdentityKey, identity)
		c.Next()
	}
}

// OptionalAuthMiddleware 创建一个可选认证的 Gin 中间件。
// 未携带 token 或 token 无效的请求以访客身份继续，访问范围由业务层按身份裁决。
func OptionalAuthMiddleware(jwtManager *token.JWTManager, redisClient *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := resolveIdentity(c, jwtManager, redisClient)
		if !ok {
			identity = model.Guest()
		}
		c.Set(IdentityKey, identity)
		c.Next()
	}
}

// resolveIdentity 解析请求的调用方身份。
// 返回值 ok=false 表示携带了 token 但验证失败；未携带 token 时返回访客身份且 ok=true。
func resolveIdentity(c *gin.Context, jwtManager *token.JWTManager, redisClient *redis.Client) (model.Identity, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return model.Guest(), true
	}

	// Token 以 "Bearer <token>" 的形式提供，提取出 token 本身
	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return model.Identity{}, false
	}
	tokenString := strings.TrimPrefix(authHeader, bearerPrefix)

	claims, err := jwtManager.VerifyToken(tokenString)
	if err != nil {
		return model.Identity{}, false
	}

	// 已注销的 token 在黑名单中，验证通过也要拒绝
	if redisClient != nil {
		exists, err := redisClient.Exists(c.Request.Context(), BlacklistKeyPrefix+tokenString).Result()
		if err == nil && exists > 0 {
			return model.Identity{}, false
		}
	}

	return model.Identity{
		Authenticated: true,
		Username:      claims.Username,
		Role:          claims.Role,
	}, true
}

// IdentityFromContext 从 Gin 上下文取出调用方身份，缺失时返回访客。
func IdentityFromContext(c *gin.Context) model.Identity {
	v, exists := c.Get(IdentityKey)
	if !exists {
		return model.Guest()
	}
	identity, ok := v.(model.Identity)
	if !ok {
		return model.Guest()
	}
	return identity
}
