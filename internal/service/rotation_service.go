package service

import (
	"context"
	"database/sql"
	"errors"
	"math/rand"
	"sync"

	"github.com/pickuphub/pickup-backend/internal/models"
	"github.com/pickuphub/pickup-backend/internal/repository"
	"github.com/pickuphub/pickup-backend/pkg/database"
	"github.com/pickuphub/pickup-backend/pkg/logger"
)

// RotationChange is_next 이동의 결과. 같은 로테이션을 쓰는 큐가 여럿일 수 있어
// 영향을 받은 큐 이름을 함께 보고한다. 알림 자체는 호출자의 몫이다.
type RotationChange struct {
	Entry          models.RotationMap `json:"entry"`
	AffectedQueues []string           `json:"affectedQueues"`
}

// RotationService 로테이션의 다음 맵 포인터를 관리한다.
type RotationService struct {
	db           *database.DB
	rotationRepo *repository.RotationRepository
	queueRepo    *repository.QueueRepository

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRotationService 로테이션 서비스 생성. rng는 가중치 추첨용 난수 소스로,
// 테스트에서 고정 시드를 주입할 수 있다.
func NewRotationService(
	db *database.DB,
	rotationRepo *repository.RotationRepository,
	queueRepo *repository.QueueRepository,
	rng *rand.Rand,
) *RotationService {
	return &RotationService{
		db:           db,
		rotationRepo: rotationRepo,
		queueRepo:    queueRepo,
		rng:          rng,
	}
}

// Advance 다음 is_next 엔트리 선택. 로테이션 정책에 따라 순차(다음 ordinal,
// 끝에서 처음으로 순환) 또는 가중 랜덤(weight > 0인 엔트리 중 weight 비례 추첨,
// 후보가 없으면 순차로 폴백)으로 고른다.
// 현재 엔트리 조회와 후속 선택, 커밋이 모두 로테이션 행 잠금 아래의 한
// 트랜잭션에서 일어난다. 동시에 N번 호출하면 포인터도 N칸 움직인다.
func (s *RotationService) Advance(ctx context.Context, rotationID string) (*RotationChange, error) {
	var next models.RotationMap
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		rotation, err := s.rotationRepo.LockTx(tx, rotationID)
		if err != nil {
			return err
		}
		if rotation == nil {
			return ErrRotationNotFound
		}

		entries, err := s.rotationRepo.FindMapsTx(tx, rotationID)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return ErrEmptyRotation
		}

		var picked *models.RotationMap
		if rotation.IsRandom {
			picked = s.pickWeighted(entries)
		}
		if picked == nil {
			picked = nextSequential(entries)
		}

		if err := s.rotationRepo.SetNextTx(tx, rotationID, picked.ID); err != nil {
			return err
		}
		next = *picked
		return nil
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMapNotFound
		}
		return nil, err
	}

	return s.reportChange(rotationID, next)
}

// SetNext 수동 오버라이드. weight가 0이라 추첨에서 빠지는 맵도 이 경로로는
// 선택할 수 있다.
func (s *RotationService) SetNext(ctx context.Context, rotationID, mapID string) (*RotationChange, error) {
	var next models.RotationMap
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		rotation, err := s.rotationRepo.LockTx(tx, rotationID)
		if err != nil {
			return err
		}
		if rotation == nil {
			return ErrRotationNotFound
		}

		entry, err := s.rotationRepo.FindMapByMapIDTx(tx, rotationID, mapID)
		if err != nil {
			return err
		}
		if entry == nil {
			return ErrMapNotFound
		}

		if err := s.rotationRepo.SetNextTx(tx, rotationID, entry.ID); err != nil {
			return err
		}
		next = *entry
		return nil
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMapNotFound
		}
		return nil, err
	}

	return s.reportChange(rotationID, next)
}

// reportChange 커밋된 이동의 fan-out 대상 큐 수집과 로그
func (s *RotationService) reportChange(rotationID string, entry models.RotationMap) (*RotationChange, error) {
	entry.IsNext = true

	queues, err := s.queueRepo.FindNamesByRotationID(rotationID)
	if err != nil {
		return nil, err
	}

	logger.Info("Rotation next map changed",
		"rotationId", rotationID,
		"map", entry.MapShortName,
		"affectedQueues", queues,
	)

	return &RotationChange{Entry: entry, AffectedQueues: queues}, nil
}

// pickWeighted weight 비례 추첨. weight가 0인 엔트리는 후보에서 제외되며,
// 후보가 하나도 없으면 nil을 돌려 순차 정책으로 폴백한다.
func (s *RotationService) pickWeighted(entries []models.RotationMap) *models.RotationMap {
	total := 0
	for _, e := range entries {
		if e.RandomWeight > 0 {
			total += e.RandomWeight
		}
	}
	if total == 0 {
		return nil
	}

	s.mu.Lock()
	roll := s.rng.Intn(total)
	s.mu.Unlock()

	for i := range entries {
		if entries[i].RandomWeight <= 0 {
			continue
		}
		roll -= entries[i].RandomWeight
		if roll < 0 {
			return &entries[i]
		}
	}

	// unreachable while total > 0
	return nil
}

// nextSequential 현재 is_next 다음 ordinal의 엔트리. 마지막이면 처음으로
// 순환하고, is_next가 비어 있으면 가장 낮은 ordinal에서 시작한다.
// entries는 ordinal 순으로 정렬되어 있다.
func nextSequential(entries []models.RotationMap) *models.RotationMap {
	for i := range entries {
		if entries[i].IsNext {
			return &entries[(i+1)%len(entries)]
		}
	}
	return &entries[0]
}
