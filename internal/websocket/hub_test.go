package websocket

import (
	"testing"
	"time"
)

func newTestClient(hub *Hub, id string) *Client {
	return &Client{
		hub:      hub,
		send:     make(chan *Message, 1),
		clientID: id,
		logger:   hub.logger,
	}
}

func TestHub_ReconnectSameClientID(t *testing.T) {
	hub := NewHub()

	stale := newTestClient(hub, "gateway")
	fresh := newTestClient(hub, "gateway")

	hub.registerClient(stale)
	// 재접속: 같은 ID의 기존 연결은 닫히고 새 연결이 자리를 차지한다
	hub.registerClient(fresh)

	if _, ok := <-stale.send; ok {
		t.Fatal("Stale send channel should be closed on reconnect")
	}

	// 끊긴 옛 연결의 readPump가 뒤늦게 등록 해제를 요청해도
	// 새 연결을 쫓아내거나 닫힌 채널을 다시 닫아선 안 된다
	hub.unregisterClient(stale)

	hub.mu.RLock()
	got := hub.clients["gateway"]
	hub.mu.RUnlock()
	if got != fresh {
		t.Fatal("Fresh client evicted by stale unregister")
	}

	hub.unregisterClient(fresh)

	hub.mu.RLock()
	_, exists := hub.clients["gateway"]
	hub.mu.RUnlock()
	if exists {
		t.Fatal("Client still registered after unregister")
	}
	if _, ok := <-fresh.send; ok {
		t.Fatal("Fresh send channel should be closed on unregister")
	}
}

func TestHub_BroadcastReachesClient(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	client := newTestClient(hub, "gateway")
	hub.register <- client

	hub.Broadcast(EventGameFinished, GameFinishedMessage{GameID: "g1"})

	select {
	case msg := <-client.send:
		if msg.Type != EventGameFinished {
			t.Errorf("Message type = %q, want %q", msg.Type, EventGameFinished)
		}
	case <-time.After(time.Second):
		t.Fatal("Broadcast message not delivered")
	}
}

func TestHub_StopTerminatesRun(t *testing.T) {
	hub := NewHub()

	runDone := make(chan struct{})
	go func() {
		hub.Run()
		close(runDone)
	}()

	hub.Stop()
	hub.Stop() // 중복 호출은 무해하다

	select {
	case <-runDone:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
}
