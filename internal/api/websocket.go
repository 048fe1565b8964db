// internal/api/websocket.go
package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/charaverse/charachat/internal/models"
	"github.com/charaverse/charachat/internal/services"
	"github.com/charaverse/charachat/internal/utils"
)

// WebSocket 升级器配置
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 单用户本地服务，放行本机页面
		return true
	},
}

// 渲染事件类型
const (
	EventMessage        = "message"         // 追加消息气泡
	EventPlaceholder    = "placeholder"     // 生成中占位气泡
	EventStreamDelta    = "stream_delta"    // 流式累计文本更新
	EventMessageFinal   = "message_final"   // 占位气泡替换为定稿内容
	EventSessionCleared = "session_cleared" // 对话已清空
)

// RenderEvent 推送给渲染层的事件
type RenderEvent struct {
	Type        string          `json:"type"`
	CharacterID string          `json:"character_id"`
	Message     *models.Message `json:"message,omitempty"`
	Content     string          `json:"content,omitempty"`
}

// wsClient 一个已连接的渲染端
type wsClient struct {
	conn   *websocket.Conn
	send   chan []byte
	closed int32 // 原子标志，0=开启，1=关闭
}

func (c *wsClient) close() {
	if atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		c.conn.Close()
	}
}

func (c *wsClient) isClosed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}

// ChatHub 按角色维度管理渲染端连接，实现 services.RenderNotifier
type ChatHub struct {
	mu      sync.RWMutex
	clients map[string]map[*wsClient]bool // characterID -> clients
	logger  *utils.Logger
}

// NewChatHub 创建渲染推送中心
func NewChatHub() *ChatHub {
	return &ChatHub{
		clients: make(map[string]map[*wsClient]bool),
		logger:  utils.GetLogger(),
	}
}

// HandleConnection 升级连接并挂到指定角色的频道
func (h *ChatHub) HandleConnection(c *gin.Context) {
	characterID := c.Param("id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("WebSocket升级失败: %v", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 64),
	}

	h.mu.Lock()
	if h.clients[characterID] == nil {
		h.clients[characterID] = make(map[*wsClient]bool)
	}
	h.clients[characterID][client] = true
	h.mu.Unlock()

	go h.writePump(client)
	go h.readPump(characterID, client)
}

// writePump 顺序写出事件帧
func (h *ChatHub) writePump(client *wsClient) {
	defer client.close()

	for payload := range client.send {
		client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := client.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

// readPump 只消费控制帧，连接断开时注销客户端
func (h *ChatHub) readPump(characterID string, client *wsClient) {
	defer func() {
		h.unregister(characterID, client)
		client.close()
		close(client.send)
	}()

	client.conn.SetReadLimit(1024)
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *ChatHub) unregister(characterID string, client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, exists := h.clients[characterID]; exists {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.clients, characterID)
		}
	}
}

// broadcast 将事件推送给角色频道内的所有渲染端
func (h *ChatHub) broadcast(characterID string, event RenderEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Errorf("渲染事件序列化失败: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[characterID] {
		if client.isClosed() {
			continue
		}
		select {
		case client.send <- payload:
		default:
			// 慢消费者丢帧，渲染层以定稿事件为准
		}
	}
}

// MessageAppended 实现 services.RenderNotifier
func (h *ChatHub) MessageAppended(characterID string, msg *models.Message) {
	h.broadcast(characterID, RenderEvent{Type: EventMessage, CharacterID: characterID, Message: msg})
}

// PlaceholderShown 实现 services.RenderNotifier
func (h *ChatHub) PlaceholderShown(characterID string, msg *models.Message) {
	h.broadcast(characterID, RenderEvent{Type: EventPlaceholder, CharacterID: characterID, Message: msg})
}

// MessageFinalized 实现 services.RenderNotifier
func (h *ChatHub) MessageFinalized(characterID string, msg *models.Message) {
	h.broadcast(characterID, RenderEvent{Type: EventMessageFinal, CharacterID: characterID, Message: msg})
}

// SessionCleared 实现 services.RenderNotifier
func (h *ChatHub) SessionCleared(characterID string) {
	h.broadcast(characterID, RenderEvent{Type: EventSessionCleared, CharacterID: characterID})
}

// StreamSink 实现 services.RenderNotifier，返回该角色频道的流式推送句柄
func (h *ChatHub) StreamSink(characterID string) services.StreamSink {
	return &hubSink{hub: h, characterID: characterID}
}

type hubSink struct {
	hub         *ChatHub
	characterID string
}

// Push 推送累计文本，用于渐进式渲染
func (s *hubSink) Push(accumulated string) {
	s.hub.broadcast(s.characterID, RenderEvent{
		Type:        EventStreamDelta,
		CharacterID: s.characterID,
		Content:     accumulated,
	})
}
