package websocket

import (
	"sync"

	"go.uber.org/zap"

	"github.com/pickuphub/pickup-backend/pkg/logger"
)

// 게이트웨이로 밀어주는 이벤트 타입. payload는 플랫폼 중립적인 평문 데이터이며
// 임베드/버튼 등 표현은 전적으로 수신 측 책임이다.
const (
	EventGameFinished     = "game_finished"
	EventGameCancelled    = "game_cancelled"
	EventWaitlistReleased = "waitlist_released"
	EventMapChanged       = "map_changed"
)

// Hub WebSocket 연결 관리 및 브로드캐스트
type Hub struct {
	// 클라이언트별 연결 저장 (clientID -> *Client)
	clients map[string]*Client
	mu      sync.RWMutex

	broadcast  chan *Message
	register   chan *Client
	unregister chan *Client

	done     chan struct{}
	stopOnce sync.Once

	logger *zap.Logger
}

// Message WebSocket 메시지
type Message struct {
	ClientID string      `json:"-"`       // 수신자 (빈 문자열이면 전체 브로드캐스트)
	Type     string      `json:"type"`    // 이벤트 타입
	Payload  interface{} `json:"payload"` // 메시지 내용
}

// GameFinishedMessage 게임 종료 알림
type GameFinishedMessage struct {
	GameID         string  `json:"gameId"`
	FinishedGameID string  `json:"finishedGameId"`
	QueueName      string  `json:"queueName"`
	MapShortName   string  `json:"mapShortName"`
	Team0Name      string  `json:"team0Name"`
	Team1Name      string  `json:"team1Name"`
	WinningTeam    int     `json:"winningTeam"`
	Reward         int     `json:"reward"`
	WinProbability float64 `json:"winProbability"`
	FinishedBy     string  `json:"finishedBy"`
}

// GameCancelledMessage 게임 취소 알림
type GameCancelledMessage struct {
	GameID      string `json:"gameId"`
	QueueName   string `json:"queueName"`
	CancelledBy string `json:"cancelledBy"`
	Predictions string `json:"predictions,omitempty"`
}

// WaitlistReleasedMessage 재입장 대기 종료 알림
type WaitlistReleasedMessage struct {
	QueueID        string `json:"queueId"`
	FinishedGameID string `json:"finishedGameId"`
	ChannelID      string `json:"channelId"`
}

// MapChangedMessage 로테이션 다음 맵 변경 알림
type MapChangedMessage struct {
	RotationID     string   `json:"rotationId"`
	MapFullName    string   `json:"mapFullName"`
	MapShortName   string   `json:"mapShortName"`
	AffectedQueues []string `json:"affectedQueues"`
}

// NewHub Hub 생성
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		broadcast:  make(chan *Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger.L(),
	}
}

// Run Hub 실행. Stop이 호출될 때까지 돈다.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)

		case <-h.done:
			return
		}
	}
}

// Stop Run 루프 종료
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
}

// registerClient 클라이언트 등록
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// 같은 ID의 기존 연결이 있으면 닫기
	if oldClient, exists := h.clients[client.clientID]; exists {
		close(oldClient.send)
	}

	h.clients[client.clientID] = client
	h.logger.Info("WebSocket client registered",
		zap.String("clientId", client.clientID),
		zap.Int("totalClients", len(h.clients)))
}

// unregisterClient 클라이언트 해제.
// 같은 ID로 재접속한 새 연결이 이미 자리를 차지했을 수 있으므로, 맵 엔트리가
// 바로 이 클라이언트일 때만 지운다. 옛 연결의 send는 등록 시점에 이미 닫혔다.
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, exists := h.clients[client.clientID]; exists && current == client {
		delete(h.clients, client.clientID)
		close(client.send)
		h.logger.Info("WebSocket client unregistered",
			zap.String("clientId", client.clientID),
			zap.Int("totalClients", len(h.clients)))
	}
}

// broadcastMessage 메시지 브로드캐스트
func (h *Hub) broadcastMessage(message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if message.ClientID == "" {
		for _, client := range h.clients {
			select {
			case client.send <- message:
			default:
				// 채널이 가득 찬 경우 연결 해제
				h.logger.Warn("Client send channel full, unregistering",
					zap.String("clientId", client.clientID))
				go func(c *Client) {
					h.unregister <- c
				}(client)
			}
		}
	} else {
		if client, exists := h.clients[message.ClientID]; exists {
			select {
			case client.send <- message:
			default:
				h.logger.Warn("Client send channel full",
					zap.String("clientId", message.ClientID))
			}
		}
	}
}

// Broadcast 모든 클라이언트에게 이벤트 전송
func (h *Hub) Broadcast(eventType string, payload interface{}) {
	h.broadcast <- &Message{
		ClientID: "",
		Type:     eventType,
		Payload:  payload,
	}
}

// SendTo 특정 클라이언트에게 이벤트 전송
func (h *Hub) SendTo(clientID string, eventType string, payload interface{}) {
	h.broadcast <- &Message{
		ClientID: clientID,
		Type:     eventType,
		Payload:  payload,
	}
}
