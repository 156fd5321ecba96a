package service

import (
	"github.com/pickuphub/pickup-backend/internal/repository"
	"github.com/pickuphub/pickup-backend/pkg/logger"
)

// RewardService 종료된 게임의 래플 티켓 보상 결정
type RewardService struct {
	rotationRepo *repository.RotationRepository
	defaultValue int
}

// NewRewardService 보상 서비스 생성
func NewRewardService(rotationRepo *repository.RotationRepository, defaultValue int) *RewardService {
	return &RewardService{
		rotationRepo: rotationRepo,
		defaultValue: defaultValue,
	}
}

// Reward resolves queue → rotation → rotation map and returns that entry's
// raffle ticket reward. The configured default applies when the reward is
// unset (zero) or when any link in the chain is gone, e.g. the map was
// removed mid-game. This path never fails a finalize.
func (s *RewardService) Reward(queueID, mapShortName string) int {
	reward, ok, err := s.rotationRepo.RewardForMap(queueID, mapShortName)
	if err != nil {
		logger.Warn("Reward lookup failed, using default",
			"queueId", queueID,
			"map", mapShortName,
			"error", err,
		)
		return s.defaultValue
	}

	if !ok || reward == 0 {
		return s.defaultValue
	}

	return reward
}
