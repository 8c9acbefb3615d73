// internal/api/websocket.go
package api

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Corphon/LiveVision/internal/services"
	"github.com/Corphon/LiveVision/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	wsPingTimeout  = 60 * time.Second
	wsPingInterval = 54 * time.Second
	wsWriteTimeout = 10 * time.Second
	wsSendBuffer   = 16
)

// WebSocket 升级器配置
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamClient 一个视频帧流连接
type StreamClient struct {
	id        string
	conn      *websocket.Conn
	send      chan []byte
	quit      chan struct{}
	closed    int32 // 0=开启，1=关闭
	lastPing  atomic.Int64
	createdAt time.Time
	frames    atomic.Int64
	closeOnce sync.Once
}

func newStreamClient(conn *websocket.Conn) *StreamClient {
	client := &StreamClient{
		id:        uuid.NewString(),
		conn:      conn,
		send:      make(chan []byte, wsSendBuffer),
		quit:      make(chan struct{}),
		createdAt: time.Now(),
	}
	client.UpdatePing()
	return client
}

// Close 安全关闭客户端连接
func (client *StreamClient) Close() {
	client.closeOnce.Do(func() {
		atomic.StoreInt32(&client.closed, 1)
		close(client.quit)
		client.conn.Close()
	})
}

// IsClosed 检查连接是否已关闭
func (client *StreamClient) IsClosed() bool {
	return atomic.LoadInt32(&client.closed) == 1
}

// UpdatePing 更新最后活跃时间
func (client *StreamClient) UpdatePing() {
	client.lastPing.Store(time.Now().UnixNano())
}

// IsExpired 检查连接是否超时
func (client *StreamClient) IsExpired(timeout time.Duration) bool {
	if timeout <= 0 {
		return true
	}
	return time.Since(time.Unix(0, client.lastPing.Load())) > timeout
}

// SendJSON 把消息放入发送队列，队列满时丢弃
func (client *StreamClient) SendJSON(message interface{}) bool {
	if client.IsClosed() {
		return false
	}
	msgBytes, err := json.Marshal(message)
	if err != nil {
		return false
	}
	select {
	case client.send <- msgBytes:
		return true
	default:
		return false
	}
}

// SendError 发送错误消息到客户端
func (client *StreamClient) SendError(errorMsg string) {
	client.SendJSON(map[string]interface{}{
		"type":      "error",
		"error":     errorMsg,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// StreamManager 管理所有帧流连接
type StreamManager struct {
	clients     map[*StreamClient]struct{}
	register    chan *StreamClient
	unregister  chan *StreamClient
	done        chan struct{}
	stopOnce    sync.Once
	mutex       sync.RWMutex
	pingTimeout time.Duration
	metrics     *utils.APIMetrics
	logger      *utils.Logger
}

// NewStreamManager 创建并启动连接管理器
func NewStreamManager(metrics *utils.APIMetrics, logger *utils.Logger) *StreamManager {
	if logger == nil {
		logger = utils.GetLogger()
	}
	manager := &StreamManager{
		clients:     make(map[*StreamClient]struct{}),
		register:    make(chan *StreamClient, 64),
		unregister:  make(chan *StreamClient, 64),
		done:        make(chan struct{}),
		pingTimeout: wsPingTimeout,
		metrics:     metrics,
		logger:      logger.With("stream", nil),
	}
	go manager.run()
	return manager
}

// run 管理器主循环
func (manager *StreamManager) run() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case client := <-manager.register:
			manager.registerClient(client)
		case client := <-manager.unregister:
			manager.unregisterClient(client)
		case <-ticker.C:
			manager.cleanupExpiredConnections()
		case <-manager.done:
			manager.closeAll()
			return
		}
	}
}

func (manager *StreamManager) registerClient(client *StreamClient) {
	manager.mutex.Lock()
	manager.clients[client] = struct{}{}
	manager.mutex.Unlock()

	if manager.metrics != nil {
		manager.metrics.StreamOpened()
	}
	manager.logger.Info("stream connected", utils.Fields{"client": client.id})
}

func (manager *StreamManager) unregisterClient(client *StreamClient) {
	manager.mutex.Lock()
	_, exists := manager.clients[client]
	delete(manager.clients, client)
	manager.mutex.Unlock()

	client.Close()
	if !exists {
		return
	}
	if manager.metrics != nil {
		manager.metrics.StreamClosed()
	}
	manager.logger.Info("stream disconnected", utils.Fields{
		"client":   client.id,
		"frames":   client.frames.Load(),
		"duration": time.Since(client.createdAt).Round(time.Millisecond).String(),
	})
}

// cleanupExpiredConnections 关闭长时间无响应的连接
func (manager *StreamManager) cleanupExpiredConnections() {
	manager.mutex.RLock()
	expired := make([]*StreamClient, 0)
	for client := range manager.clients {
		if client.IsClosed() || client.IsExpired(manager.pingTimeout) {
			expired = append(expired, client)
		}
	}
	manager.mutex.RUnlock()

	for _, client := range expired {
		manager.unregisterClient(client)
	}
}

func (manager *StreamManager) closeAll() {
	manager.mutex.Lock()
	clients := manager.clients
	manager.clients = make(map[*StreamClient]struct{})
	manager.mutex.Unlock()

	for client := range clients {
		client.Close()
		if manager.metrics != nil {
			manager.metrics.StreamClosed()
		}
	}
}

// Shutdown 关闭所有连接并停止主循环
func (manager *StreamManager) Shutdown() {
	manager.stopOnce.Do(func() { close(manager.done) })
}

// ActiveCount 当前连接数
func (manager *StreamManager) ActiveCount() int {
	manager.mutex.RLock()
	defer manager.mutex.RUnlock()
	return len(manager.clients)
}

// GetStatus 获取管理器状态
func (manager *StreamManager) GetStatus() map[string]interface{} {
	manager.mutex.RLock()
	defer manager.mutex.RUnlock()

	streams := make([]map[string]interface{}, 0, len(manager.clients))
	for client := range manager.clients {
		streams = append(streams, map[string]interface{}{
			"id":         client.id,
			"frames":     client.frames.Load(),
			"created_at": client.createdAt.Format(time.RFC3339),
		})
	}
	return map[string]interface{}{
		"active_streams": len(manager.clients),
		"streams":        streams,
	}
}

// VisionStream 处理 /ws/vision：每条二进制消息是一帧，每帧回复一条 FrameAnalysis JSON
func (manager *StreamManager) VisionStream(visionService *services.VisionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			manager.logger.Warn("stream upgrade failed", utils.Fields{"error": err.Error()})
			return
		}

		client := newStreamClient(conn)
		select {
		case manager.register <- client:
		case <-manager.done:
			client.Close()
			return
		}

		go manager.writeLoop(client)
		manager.readLoop(c, client, visionService)

		select {
		case manager.unregister <- client:
		case <-manager.done:
		case <-time.After(time.Second):
			client.Close()
		}
	}
}

// readLoop 按到达顺序逐帧分析
func (manager *StreamManager) readLoop(c *gin.Context, client *StreamClient, visionService *services.VisionService) {
	client.conn.SetReadLimit(maxFrameBytes)
	client.conn.SetReadDeadline(time.Now().Add(manager.pingTimeout))
	client.conn.SetPongHandler(func(string) error {
		client.UpdatePing()
		return client.conn.SetReadDeadline(time.Now().Add(manager.pingTimeout))
	})

	for !client.IsClosed() {
		messageType, data, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				manager.logger.Warn("stream read failed", utils.Fields{"client": client.id, "error": err.Error()})
			}
			return
		}
		client.UpdatePing()
		client.conn.SetReadDeadline(time.Now().Add(manager.pingTimeout))

		frame, ok := manager.frameFromMessage(client, messageType, data)
		if !ok {
			continue
		}

		result, err := visionService.AnalyzeFrame(c.Request.Context(), frame)
		if err != nil {
			client.SendError(err.Error())
			continue
		}
		client.frames.Add(1)
		if !client.SendJSON(result) {
			manager.logger.Warn("stream send queue full, result dropped", utils.Fields{"client": client.id})
		}
	}
}

// frameFromMessage 二进制消息原样作为帧；文本消息可以是 ping 或 base64（含 data URL）编码的帧
func (manager *StreamManager) frameFromMessage(client *StreamClient, messageType int, data []byte) ([]byte, bool) {
	if messageType == websocket.BinaryMessage {
		return data, true
	}

	text := strings.TrimSpace(string(data))
	if strings.HasPrefix(text, "{") {
		var msg map[string]interface{}
		if err := json.Unmarshal(data, &msg); err == nil && msg["type"] == "ping" {
			client.SendJSON(map[string]interface{}{"type": "pong", "timestamp": time.Now().Unix()})
			return nil, false
		}
		client.SendError("unsupported message")
		return nil, false
	}

	if i := strings.Index(text, ","); strings.HasPrefix(text, "data:") && i > 0 {
		text = text[i+1:]
	}
	frame, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		client.SendError("text frames must be base64 encoded")
		return nil, false
	}
	return frame, true
}

// writeLoop 串行写出队列中的消息并定期发送 ping
func (manager *StreamManager) writeLoop(client *StreamClient) {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		client.Close()
	}()

	for {
		select {
		case <-client.quit:
			return

		case <-manager.done:
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			client.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return

		case message := <-client.send:
			if client.IsClosed() {
				return
			}
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			if client.IsClosed() {
				return
			}
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
