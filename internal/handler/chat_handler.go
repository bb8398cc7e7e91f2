package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"hv-search-go/internal/middleware"
	"hv-search-go/internal/model"
	"hv-search-go/internal/service"
	"hv-search-go/pkg/log"
	"hv-search-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// guestWebsocketToken 是访客建立 WebSocket 连接使用的固定令牌。
// 访客聊天只覆盖 QA 域，不需要真实凭据。
const guestWebsocketToken = "guest"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// ChatHandler 负责处理 WebSocket 聊天连接。
type ChatHandler struct {
	chatService   service.ChatService
	jwtManager    *token.JWTManager
	stopToken     string
	stopTokenLock sync.Mutex
	// 每连接停止标志
	stopFlags sync.Map // key: session pointer string, value: bool
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService, jwtManager *token.JWTManager) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		jwtManager:  jwtManager,
	}
}

// GetWebsocketToken 返回建立 WebSocket 连接所需的令牌。
// 已认证的调用方拿到携带自己身份的短时 token，访客拿到固定的访客令牌；
// 同时返回一个可用于停止流式响应的 cmdToken。
func (h *ChatHandler) GetWebsocketToken(c *gin.Context) {
	identity := middleware.IdentityFromContext(c)

	wsToken := guestWebsocketToken
	if identity.Authenticated {
		var err error
		wsToken, err = h.jwtManager.GenerateToken(identity.Username, identity.Role)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "生成 token 失败", "data": nil})
			return
		}
	}

	h.stopTokenLock.Lock()
	// 在真实的多服务器设置中，这应该在 Redis 中生成和存储
	h.stopToken = "WSS_STOP_CMD_" + token.GenerateRandomString(16)
	cmdToken := h.stopToken
	h.stopTokenLock.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    gin.H{"wsToken": wsToken, "cmdToken": cmdToken},
	})
}

// Handle 处理一个传入的 WebSocket 连接。
// 路径中的 token 决定会话身份：访客令牌对应 QA-only 的访客会话。
func (h *ChatHandler) Handle(c *gin.Context) {
	tokenString := c.Param("token")

	identity := model.Guest()
	if tokenString != guestWebsocketToken {
		claims, err := h.jwtManager.VerifyToken(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "无效的 token", "data": nil})
			return
		}
		identity = model.Identity{Authenticated: true, Username: claims.Username, Role: claims.Role}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	// 每条连接一个会话 ID，访客的对话历史以此隔离
	sessionID := token.GenerateRandomString(16)
	owner := identity.Username
	if !identity.Authenticated {
		owner = "guest:" + sessionID
	}
	log.Infof("WebSocket 连接已建立，会话: %s", owner)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warnf("从 WebSocket 读取消息失败: %v", err)
			break
		}
		log.Infof("收到 WebSocket 消息: %s", string(message))

		// 1) JSON 停止指令: {"type":"stop","_internal_cmd_token":"..."}
		if h.handleStopCommand(conn, message) {
			continue
		}
		// 2) 旧停止令牌：整条消息等于 stopToken（保留兼容）
		h.stopTokenLock.Lock()
		stopTokenValue := h.stopToken
		h.stopTokenLock.Unlock()
		if string(message) == stopTokenValue {
			log.Info("收到停止指令，正在中断流式响应...")
			h.stopFlags.Store(sessionKey(conn), true)
			continue
		}

		// 调用 ChatService 处理完整的 RAG 和流式逻辑
		shouldStop := func() bool {
			v, ok := h.stopFlags.Load(sessionKey(conn))
			return ok && v.(bool)
		}
		// 清除旧标志
		h.stopFlags.Delete(sessionKey(conn))
		err = h.chatService.StreamResponse(c.Request.Context(), string(message), identity, sessionID, conn, shouldStop)
		if err != nil {
			log.Errorf("处理流式响应失败: %v", err)
			errResp := map[string]string{"error": "AI服务暂时不可用，请稍后重试"}
			b, _ := json.Marshal(errResp)
			_ = conn.WriteMessage(websocket.TextMessage, b)
			// 错误时也发送 completion 通知，让前端结束等待
			resp := map[string]interface{}{
				"type":      "completion",
				"status":    "finished",
				"message":   "响应已完成",
				"timestamp": time.Now().UnixMilli(),
				"date":      time.Now().Format("2006-01-02T15:04:05"),
			}
			cb, _ := json.Marshal(resp)
			_ = conn.WriteMessage(websocket.TextMessage, cb)
			break
		}
	}
}

// handleStopCommand 解析并处理 JSON 格式的停止指令，返回是否已消费该消息。
func (h *ChatHandler) handleStopCommand(conn *websocket.Conn, message []byte) bool {
	if len(message) == 0 || message[0] != '{' {
		return false
	}
	var ctrl map[string]interface{}
	if err := json.Unmarshal(message, &ctrl); err != nil {
		return false
	}
	t, ok := ctrl["type"].(string)
	if !ok || t != "stop" {
		return false
	}
	tok, ok := ctrl["_internal_cmd_token"].(string)
	if !ok {
		return false
	}

	h.stopTokenLock.Lock()
	valid := tok == h.stopToken
	h.stopTokenLock.Unlock()
	if !valid {
		return false
	}

	h.stopFlags.Store(sessionKey(conn), true)
	resp := map[string]interface{}{
		"type":      "stop",
		"message":   "响应已停止",
		"timestamp": time.Now().UnixMilli(),
		"date":      time.Now().Format("2006-01-02T15:04:05"),
	}
	b, _ := json.Marshal(resp)
	_ = conn.WriteMessage(websocket.TextMessage, b)
	return true
}

func sessionKey(conn *websocket.Conn) string {
	return fmt.Sprintf("%p", conn)
}
