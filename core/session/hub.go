package session

import (
	"sync"

	"ChordScroll/logger"
)

// Hub 管理所有 WebSocket 会话。每个会话拥有独立的播放时钟，会话之间不同步播放状态
type Hub struct {
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	mu      sync.RWMutex
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// NewHub 创建 Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 16),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
}

// Run 启动 Hub 主循环
func (h *Hub) Run() {
	defer close(h.stopped)
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case msg := <-h.broadcast:
			h.broadcastAll(msg)

		case <-h.done:
			h.cleanup()
			return
		}
	}
}

// Stop closes every session and waits for the loop to exit.
func (h *Hub) Stop() {
	h.once.Do(func() { close(h.done) })
	<-h.stopped
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	count := len(h.clients)
	h.mu.Unlock()

	logger.Info("session registered",
		logger.String("session", client.ID),
		logger.Int("sessions", count))
}

// removeClient 移除会话：先关闭时钟（之后不会再有回调），再关闭发送通道
func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	current, ok := h.clients[client.ID]
	if ok && current == client {
		delete(h.clients, client.ID)
	}
	count := len(h.clients)
	h.mu.Unlock()

	if !ok || current != client {
		return
	}
	client.close()

	logger.Info("session unregistered",
		logger.String("session", client.ID),
		logger.Int("sessions", count))
}

func (h *Hub) broadcastAll(msg []byte) {
	h.mu.RLock()
	clientList := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clientList = append(clientList, client)
	}
	h.mu.RUnlock()

	for _, client := range clientList {
		if !client.trySend(msg) {
			logger.Warn("send buffer full, dropping notice", logger.String("session", client.ID))
		}
	}
}

func (h *Hub) cleanup() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*Client)
	h.mu.Unlock()

	for _, client := range clients {
		client.close()
	}
	logger.Info("session hub stopped", logger.Int("closed", len(clients)))
}

// Register 注册会话；Hub 已停止时直接关闭会话
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.close()
	}
}

// Unregister 注销会话
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast 向所有会话发送通知（例如歌谱文件已更新）
func (h *Hub) Broadcast(msgType MessageType, data interface{}) error {
	msg, err := Encode(msgType, data)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- msg:
	case <-h.done:
	}
	return nil
}

// Count 当前会话数量
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
