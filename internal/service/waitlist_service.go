package service

import (
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pickuphub/pickup-backend/internal/models"
	"github.com/pickuphub/pickup-backend/internal/repository"
	"github.com/pickuphub/pickup-backend/internal/websocket"
	"github.com/pickuphub/pickup-backend/pkg/logger"
)

// WaitlistService 게임 종료 후 재입장 대기를 기록하고, 대기가 끝난 항목을
// 주기적으로 풀어주는 폴러를 돌린다. 실제 큐 재입장은 게이트웨이가 수행한다.
type WaitlistService struct {
	waitlistRepo *repository.WaitlistRepository
	hub          *websocket.Hub
	logger       *zap.Logger
	interval     time.Duration
	stopChan     chan struct{}
	wg           sync.WaitGroup
	running      bool
	mu           sync.Mutex
}

func NewWaitlistService(
	waitlistRepo *repository.WaitlistRepository,
	hub *websocket.Hub,
	interval time.Duration,
) *WaitlistService {
	return &WaitlistService{
		waitlistRepo: waitlistRepo,
		hub:          hub,
		logger:       logger.L(),
		interval:     interval,
		stopChan:     make(chan struct{}),
	}
}

// ScheduleTx 대기 레코드 계산 및 저장. finalize 트랜잭션 안에서 호출되며
// 블로킹하지 않는다: eligible 시점이 지나면 폴러가 소비한다.
func (s *WaitlistService) ScheduleTx(tx *sql.Tx, queueID, finishedGameID, channelID string, delay time.Duration) (*models.QueueWaitlist, error) {
	entry := &models.QueueWaitlist{
		ID:             uuid.NewString(),
		QueueID:        queueID,
		FinishedGameID: finishedGameID,
		ChannelID:      channelID,
		EndWaitlistAt:  time.Now().UTC().Add(delay),
	}

	if err := s.waitlistRepo.InsertTx(tx, entry); err != nil {
		return nil, err
	}

	return entry, nil
}

// Start 폴러 시작
func (s *WaitlistService) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info("Starting WaitlistService", zap.Duration("interval", s.interval))

	s.wg.Add(1)
	go s.pollLoop()
}

// Stop 폴러 중지
func (s *WaitlistService) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopChan)
	s.wg.Wait()
	s.logger.Info("WaitlistService stopped")
}

// pollLoop 주기적으로 만료된 대기 레코드 처리
func (s *WaitlistService) pollLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.releaseExpired()
		case <-s.stopChan:
			return
		}
	}
}

// releaseExpired 만료된 대기 항목을 브로드캐스트하고 삭제
func (s *WaitlistService) releaseExpired() {
	entries, err := s.waitlistRepo.FindExpired(time.Now().UTC())
	if err != nil {
		s.logger.Error("Failed to query expired waitlists", zap.Error(err))
		return
	}

	for _, entry := range entries {
		if s.hub != nil {
			s.hub.Broadcast(websocket.EventWaitlistReleased, websocket.WaitlistReleasedMessage{
				QueueID:        entry.QueueID,
				FinishedGameID: entry.FinishedGameID,
				ChannelID:      entry.ChannelID,
			})
		}

		if err := s.waitlistRepo.Delete(entry.ID); err != nil {
			s.logger.Error("Failed to delete waitlist entry",
				zap.String("waitlistId", entry.ID),
				zap.Error(err))
			continue
		}

		s.logger.Info("Waitlist released",
			zap.String("queueId", entry.QueueID),
			zap.String("finishedGameId", entry.FinishedGameID))
	}
}
