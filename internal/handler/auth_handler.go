// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"net/http"
	"strings"
	"time"

	"hv-search-go/internal/middleware"
	"hv-search-go/internal/repository"
	"hv-search-go/internal/service"
	"hv-search-go/pkg/log"
	"hv-search-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

// AuthHandler 负责处理认证相关的 API 请求。
type AuthHandler struct {
	accessService    service.AccessService
	jwtManager       *token.JWTManager
	redisClient      *redis.Client
	conversationRepo repository.ConversationRepository
}

// NewAuthHandler 创建一个新的 AuthHandler 实例。
func NewAuthHandler(accessService service.AccessService, jwtManager *token.JWTManager, redisClient *redis.Client, conversationRepo repository.ConversationRepository) *AuthHandler {
	return &AuthHandler{
		accessService:    accessService,
		jwtManager:       jwtManager,
		redisClient:      redisClient,
		conversationRepo: conversationRepo,
	}
}

// LoginRequest 定义了登录 API 的请求体结构。
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 处理登录请求，凭据通过白名单校验后签发 access/refresh token 对。
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Login: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的请求负载：用户名和密码不能为空",
		})
		return
	}

	role, err := h.accessService.VerifyCredentials(req.Username, req.Password)
	if err != nil {
		log.Warnf("Login: Authentication failed for '%s'", req.Username)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "用户名或密码错误"})
		return
	}

	accessToken, err := h.jwtManager.GenerateToken(req.Username, role)
	if err != nil {
		log.Error("Login: Failed to generate access token", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "生成 token 失败"})
		return
	}
	refreshToken, err := h.jwtManager.GenerateRefreshToken(req.Username, role)
	if err != nil {
		log.Error("Login: Failed to generate refresh token", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "生成 token 失败"})
		return
	}

	log.Infof("User '%s' logged in successfully (role=%s)", req.Username, role)
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Login successful",
		"data": gin.H{
			"token":        accessToken,
			"refreshToken": refreshToken,
			"username":     req.Username,
			"role":         role,
		},
	})
}

// RefreshTokenRequest 定义了刷新 token API 的请求体结构。
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// RefreshToken 处理刷新 token 的请求。
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("RefreshToken: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载：refreshToken 不能为空"})
		return
	}

	claims, err := h.jwtManager.VerifyToken(req.RefreshToken)
	if err != nil {
		log.Warnf("RefreshToken: Failed to refresh token, error: %v", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "无效的 refresh token"})
		return
	}

	newAccessToken, err := h.jwtManager.GenerateToken(claims.Username, claims.Role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "生成 token 失败"})
		return
	}
	newRefreshToken, err := h.jwtManager.GenerateRefreshToken(claims.Username, claims.Role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "生成 token 失败"})
		return
	}

	log.Info("Token refreshed successfully")
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Token refreshed successfully",
		"data": gin.H{
			"token":        newAccessToken,
			"refreshToken": newRefreshToken,
		},
	})
}

// Logout 处理注销请求。
// access token 进入黑名单直至自然过期，同时清空该用户的对话历史，
// 保证随后的访客会话不会继承已认证会话检索到的内容。
func (h *AuthHandler) Logout(c *gin.Context) {
	identity := middleware.IdentityFromContext(c)

	tokenString := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if claims, err := h.jwtManager.VerifyToken(tokenString); err == nil {
		ttl := time.Until(claims.ExpiresAt.Time)
		if ttl > 0 {
			if err := h.redisClient.Set(c.Request.Context(), middleware.BlacklistKeyPrefix+tokenString, "1", ttl).Err(); err != nil {
				log.Errorf("Logout: Failed to blacklist token: %v", err)
			}
		}
	}

	if err := h.conversationRepo.ClearForUser(c.Request.Context(), identity.Username); err != nil {
		log.Errorf("Logout: Failed to clear conversation history for '%s': %v", identity.Username, err)
	}

	log.Infof("User '%s' logged out", identity.Username)
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "Logout successful", "data": nil})
}
