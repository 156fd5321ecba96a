package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pickuphub/pickup-backend/internal/models"
	"github.com/pickuphub/pickup-backend/internal/repository"
	"github.com/pickuphub/pickup-backend/internal/websocket"
	"github.com/pickuphub/pickup-backend/pkg/database"
	"github.com/pickuphub/pickup-backend/pkg/economy"
	"github.com/pickuphub/pickup-backend/pkg/logger"
)

// EconomyClient 예측 마켓 사이드카 인터페이스
type EconomyClient interface {
	ResolvePredictions(ctx context.Context, gameID string, winningTeam int) error
	CancelPredictions(ctx context.Context, gameID string) (economy.RefundStatus, error)
}

// FinalizeRequest 게임 종료 요청
type FinalizeRequest struct {
	GameID  string
	ActorID string
	Outcome models.Outcome
	// ActorTeam 참가자가 아닌 관리자가 종료할 때 결과를 해석할 기준 팀.
	// 참가자 본인이 종료하면 무시된다.
	ActorTeam *int
	// ChannelID 대기열 해제 알림을 돌려보낼 채널
	ChannelID string
}

// FinalizeResult 커밋된 게임 해소 결과
type FinalizeResult struct {
	FinishedGame *models.FinishedGame        `json:"finishedGame"`
	Players      []models.FinishedGamePlayer `json:"players"`
	Reward       int                         `json:"reward"`
	// EconomyWarning 커밋 후 이코노미 호출 실패 시 채워진다.
	// 해소 자체는 이미 완료됐으므로 에러가 아니라 경고다.
	EconomyWarning string `json:"economyWarning,omitempty"`
}

// CancelResult 게임 취소 결과
type CancelResult struct {
	GameID         string               `json:"gameId"`
	QueueName      string               `json:"queueName"`
	Predictions    economy.RefundStatus `json:"predictions,omitempty"`
	EconomyWarning string               `json:"economyWarning,omitempty"`
}

// ResolutionService 게임 해소 오케스트레이터.
// finalize/cancel 상태 전이를 소유하며, 레이팅 갱신·종료 기록·보상·대기열
// 등록을 하나의 트랜잭션으로 커밋한다. 같은 게임은 최대 한 번만 해소된다.
type ResolutionService struct {
	db              *database.DB
	gameRepo        *repository.GameRepository
	playerRepo      *repository.PlayerRepository
	queueRepo       *repository.QueueRepository
	finishedRepo    *repository.FinishedGameRepository
	ratingService   *RatingService
	rewardService   *RewardService
	waitlistService *WaitlistService
	economyClient   EconomyClient // nil이면 이코노미 연동 비활성
	hub             *websocket.Hub
	reAddDelay      time.Duration
	logger          *zap.Logger
}

func NewResolutionService(
	db *database.DB,
	gameRepo *repository.GameRepository,
	playerRepo *repository.PlayerRepository,
	queueRepo *repository.QueueRepository,
	finishedRepo *repository.FinishedGameRepository,
	ratingService *RatingService,
	rewardService *RewardService,
	waitlistService *WaitlistService,
	economyClient EconomyClient,
	hub *websocket.Hub,
	reAddDelay time.Duration,
) *ResolutionService {
	return &ResolutionService{
		db:              db,
		gameRepo:        gameRepo,
		playerRepo:      playerRepo,
		queueRepo:       queueRepo,
		finishedRepo:    finishedRepo,
		ratingService:   ratingService,
		rewardService:   rewardService,
		waitlistService: waitlistService,
		economyClient:   economyClient,
		hub:             hub,
		reAddDelay:      reAddDelay,
		logger:          logger.L(),
	}
}

// Finalize 게임을 종료 기록으로 해소한다.
//
// is_finished 검사부터 모든 변경까지 게임 행의 배타 잠금 아래 한 트랜잭션으로
// 실행된다. 경쟁에서 진 호출(다른 참가자의 finalize, 또는 동시 cancel)은
// ErrAlreadyResolved를 받고 아무것도 바꾸지 못한다. 커밋 이후의 이코노미
// 알림은 best-effort로, 실패해도 해소는 유지된다.
func (s *ResolutionService) Finalize(ctx context.Context, req FinalizeRequest) (*FinalizeResult, error) {
	if !req.Outcome.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOutcome, req.Outcome)
	}

	result := &FinalizeResult{}

	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		game, err := s.gameRepo.LockForResolve(tx, req.GameID)
		if err != nil {
			return err
		}
		if game == nil {
			return ErrGameNotFound
		}
		if game.IsFinished {
			return ErrAlreadyResolved
		}

		queue, err := s.queueRepo.FindByIDTx(tx, game.QueueID)
		if err != nil {
			return err
		}
		if queue == nil {
			return ErrQueueNotFound
		}

		actorTeam, err := s.authorizeFinalize(tx, req)
		if err != nil {
			return err
		}

		winningTeam := deriveWinningTeam(req.Outcome, actorTeam)

		participants, err := s.gameRepo.ParticipantsTx(tx, req.GameID)
		if err != nil {
			return err
		}

		playerIDs := make([]string, len(participants))
		for i, p := range participants {
			playerIDs[i] = p.PlayerID
		}

		players, err := s.playerRepo.FindByIDsTx(tx, playerIDs)
		if err != nil {
			return err
		}

		var categoryName *string
		categorySkills := map[string]*models.PlayerCategorySkill{}
		if queue.CategoryID != nil {
			category, err := s.queueRepo.FindCategoryByIDTx(tx, *queue.CategoryID)
			if err != nil {
				return err
			}
			if category == nil {
				return ErrCategoryNotFound
			}
			categoryName = &category.Name

			categorySkills, err = s.playerRepo.FindCategorySkillsTx(tx, playerIDs, *queue.CategoryID)
			if err != nil {
				return err
			}
		}

		// 팀별 로스터와 사전 분포. 카테고리 프로필이 있으면 그것을,
		// 없으면 전역 프로필을 사전 분포로 쓴다.
		var team0, team1 []models.GamePlayer
		var before0, before1 []Rating
		for _, p := range participants {
			r := priorRating(players[p.PlayerID], categorySkills[p.PlayerID])
			if p.Team == 0 {
				team0 = append(team0, p)
				before0 = append(before0, r)
			} else {
				team1 = append(team1, p)
				before1 = append(before1, r)
			}
		}

		after0, after1 := s.ratingService.Rate(before0, before1, winningTeam)

		fg := &models.FinishedGame{
			ID:               uuid.NewString(),
			GameID:           game.ID,
			QueueName:        queue.Name,
			CategoryName:     categoryName,
			MapFullName:      game.MapFullName,
			MapShortName:     game.MapShortName,
			Team0Name:        game.Team0Name,
			Team1Name:        game.Team1Name,
			IsRated:          queue.IsRated,
			AverageTrueskill: game.AverageTrueskill,
			WinProbability:   game.WinProbability,
			WinningTeam:      winningTeam,
			StartedAt:        game.CreatedAt,
		}

		snapshots := make([]models.FinishedGamePlayer, 0, len(participants))
		writeTeam := func(roster []models.GamePlayer, before, after []Rating) error {
			for i, gp := range roster {
				player := players[gp.PlayerID]

				// 카테고리와 무관하게 전역 프로필은 항상 갱신한다.
				// 새 카테고리 프로필이 전역 프로필을 시드로 쓰기 때문에
				// 전역 프로필이 뒤처지면 안 된다.
				if err := s.playerRepo.UpdateSkillTx(tx, gp.PlayerID, after[i].Mu, after[i].Sigma); err != nil {
					return err
				}
				if queue.CategoryID != nil {
					if err := s.playerRepo.UpsertCategorySkillTx(tx, gp.PlayerID, *queue.CategoryID, after[i].Mu, after[i].Sigma); err != nil {
						return err
					}
				}

				snapshots = append(snapshots, models.FinishedGamePlayer{
					FinishedGameID: fg.ID,
					PlayerID:       gp.PlayerID,
					PlayerName:     player.Name,
					Team:           gp.Team,
					MuBefore:       before[i].Mu,
					SigmaBefore:    before[i].Sigma,
					MuAfter:        after[i].Mu,
					SigmaAfter:     after[i].Sigma,
				})
			}
			return nil
		}

		if err := writeTeam(team0, before0, after0); err != nil {
			return err
		}
		if err := writeTeam(team1, before1, after1); err != nil {
			return err
		}

		if err := s.finishedRepo.InsertTx(tx, fg, snapshots); err != nil {
			return err
		}

		if err := s.gameRepo.MarkFinishedTx(tx, game.ID); err != nil {
			return err
		}
		if err := s.gameRepo.DeletePlayersTx(tx, game.ID); err != nil {
			return err
		}

		reward := s.rewardService.Reward(game.QueueID, game.MapShortName)
		if err := s.playerRepo.AddRaffleTicketsTx(tx, playerIDs, reward); err != nil {
			return err
		}

		if _, err := s.waitlistService.ScheduleTx(tx, queue.ID, fg.ID, req.ChannelID, s.reAddDelay); err != nil {
			return err
		}

		result.FinishedGame = fg
		result.Players = snapshots
		result.Reward = reward
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Game finalized",
		zap.String("gameId", req.GameID),
		zap.String("queue", result.FinishedGame.QueueName),
		zap.Int("winningTeam", result.FinishedGame.WinningTeam),
		zap.Int("reward", result.Reward),
	)

	// 커밋 이후: 이코노미 정산은 best-effort. 실패는 경고로만 보고된다.
	if s.economyClient != nil {
		if err := s.economyClient.ResolvePredictions(ctx, req.GameID, result.FinishedGame.WinningTeam); err != nil {
			s.logger.Warn("Failed to resolve predictions",
				zap.String("gameId", req.GameID),
				zap.Error(err))
			result.EconomyWarning = fmt.Sprintf("predictions not resolved: %v", err)
		}
	}

	if s.hub != nil {
		s.hub.Broadcast(websocket.EventGameFinished, websocket.GameFinishedMessage{
			GameID:         result.FinishedGame.GameID,
			FinishedGameID: result.FinishedGame.ID,
			QueueName:      result.FinishedGame.QueueName,
			MapShortName:   result.FinishedGame.MapShortName,
			Team0Name:      result.FinishedGame.Team0Name,
			Team1Name:      result.FinishedGame.Team1Name,
			WinningTeam:    result.FinishedGame.WinningTeam,
			Reward:         result.Reward,
			WinProbability: result.FinishedGame.WinProbability,
			FinishedBy:     req.ActorID,
		})
	}

	return result, nil
}

// Cancel 게임을 기록 없이 파기한다. 관리자 전용.
// finalize와 같은 잠금/플래그 검사를 공유하므로 둘은 상호 배제된다.
func (s *ResolutionService) Cancel(ctx context.Context, gameID, actorID string) (*CancelResult, error) {
	result := &CancelResult{GameID: gameID}

	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		game, err := s.gameRepo.LockForResolve(tx, gameID)
		if err != nil {
			return err
		}
		if game == nil {
			return ErrGameNotFound
		}
		if game.IsFinished {
			return ErrAlreadyResolved
		}

		actors, err := s.playerRepo.FindByIDsTx(tx, []string{actorID})
		if err != nil {
			return err
		}
		actor := actors[actorID]
		if actor == nil || !actor.IsAdmin {
			return fmt.Errorf("%w: cancel requires admin", ErrUnauthorized)
		}

		queue, err := s.queueRepo.FindByIDTx(tx, game.QueueID)
		if err != nil {
			return err
		}
		if queue != nil {
			result.QueueName = queue.Name
		}

		if err := s.gameRepo.DeletePlayersTx(tx, gameID); err != nil {
			return err
		}
		return s.gameRepo.DeleteTx(tx, gameID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Game cancelled",
		zap.String("gameId", gameID),
		zap.String("queue", result.QueueName),
		zap.String("cancelledBy", actorID),
	)

	if s.economyClient != nil {
		status, err := s.economyClient.CancelPredictions(ctx, gameID)
		result.Predictions = status
		if err != nil {
			s.logger.Warn("Failed to refund predictions",
				zap.String("gameId", gameID),
				zap.Error(err))
			result.EconomyWarning = fmt.Sprintf("predictions not refunded: %v", err)
		}
	}

	if s.hub != nil {
		s.hub.Broadcast(websocket.EventGameCancelled, websocket.GameCancelledMessage{
			GameID:      gameID,
			QueueName:   result.QueueName,
			CancelledBy: actorID,
			Predictions: string(result.Predictions),
		})
	}

	return result, nil
}

// authorizeFinalize 참가자 본인 또는 관리자만 게임을 종료할 수 있다.
// 반환값은 결과 해석의 기준 팀 (-1이면 기준 팀 없음, tie에서만 허용).
func (s *ResolutionService) authorizeFinalize(tx *sql.Tx, req FinalizeRequest) (int, error) {
	participant, err := s.gameRepo.ParticipantTx(tx, req.GameID, req.ActorID)
	if err != nil {
		return 0, err
	}
	if participant != nil {
		return participant.Team, nil
	}

	actors, err := s.playerRepo.FindByIDsTx(tx, []string{req.ActorID})
	if err != nil {
		return 0, err
	}
	actor := actors[req.ActorID]
	if actor == nil || !actor.IsAdmin {
		return 0, fmt.Errorf("%w: actor is not in this game", ErrUnauthorized)
	}

	// 관리자가 대신 종료할 때는 어느 팀 기준의 결과인지 명시해야 한다
	if req.ActorTeam != nil {
		if *req.ActorTeam != 0 && *req.ActorTeam != 1 {
			return 0, fmt.Errorf("%w: team must be 0 or 1", ErrInvalidOutcome)
		}
		return *req.ActorTeam, nil
	}
	if req.Outcome == models.OutcomeTie {
		return models.WinningTeamTie, nil
	}
	return 0, fmt.Errorf("%w: admin finalize requires a reference team", ErrInvalidOutcome)
}

// deriveWinningTeam 신고자 기준 결과를 절대 팀 번호로 변환
func deriveWinningTeam(outcome models.Outcome, actorTeam int) int {
	switch outcome {
	case models.OutcomeWin:
		return actorTeam
	case models.OutcomeLoss:
		return (actorTeam + 1) % 2
	default:
		return models.WinningTeamTie
	}
}

// priorRating 카테고리 프로필 우선, 없으면 전역 프로필
func priorRating(player *models.Player, categorySkill *models.PlayerCategorySkill) Rating {
	if categorySkill != nil {
		return Rating{Mu: categorySkill.Mu, Sigma: categorySkill.Sigma}
	}
	return Rating{Mu: player.TrueskillMu, Sigma: player.TrueskillSigma}
}
