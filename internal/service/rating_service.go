package service

import (
	"github.com/intinig/go-openskill/rating"
	"github.com/intinig/go-openskill/types"

	"github.com/pickuphub/pickup-backend/internal/models"
)

// Rating 플레이어 한 명의 스킬 추정치 (mu = 실력 평균, sigma = 불확실성)
type Rating struct {
	Mu    float64
	Sigma float64
}

// RatingService 베이지안 페어와이즈 레이팅 계산 서비스.
// openskill 모델 기반이며 순수 함수로만 구성된다: 같은 입력은 항상 같은
// 사후 분포를 낸다 (숨은 난수 없음).
type RatingService struct{}

// NewRatingService 레이팅 서비스 생성
func NewRatingService() *RatingService {
	return &RatingService{}
}

// Rate computes posterior ratings for both rosters given the winning team
// (0, 1, or WinningTeamTie). Resolved games shrink every player's sigma;
// mu moves toward the winning side. A roster with a single participant in
// total carries no comparative information, so ratings pass through
// unchanged (solo queues exist for testing).
func (s *RatingService) Rate(team0, team1 []Rating, winningTeam int) ([]Rating, []Rating) {
	if len(team0)+len(team1) <= 1 {
		return team0, team1
	}

	// 점수가 높은 팀이 이긴다. 동점이면 무승부.
	var score []int
	switch winningTeam {
	case 0:
		score = []int{1, 0}
	case 1:
		score = []int{0, 1}
	default:
		score = []int{0, 0}
	}

	rated := rating.Rate([]types.Team{toTeam(team0), toTeam(team1)}, &types.OpenSkillOptions{
		Score: score,
	})

	return fromTeam(rated[0]), fromTeam(rated[1])
}

// WinProbability team0이 이길 확률 추정. 게임 생성 시 기록용.
func (s *RatingService) WinProbability(team0, team1 []Rating) float64 {
	if len(team0) == 0 || len(team1) == 0 {
		return 0.5
	}

	probs := rating.PredictWin([]types.Team{toTeam(team0), toTeam(team1)}, nil)
	return probs[0]
}

// Rank 리더보드 정렬용 보수적 스킬 추정치
func (s *RatingService) Rank(r Rating) float64 {
	return models.SkillRank(r.Mu, r.Sigma)
}

func toTeam(rs []Rating) types.Team {
	team := make(types.Team, len(rs))
	for i, r := range rs {
		team[i] = types.Rating{Mu: r.Mu, Sigma: r.Sigma}
	}
	return team
}

func fromTeam(team types.Team) []Rating {
	rs := make([]Rating, len(team))
	for i, r := range team {
		rs[i] = Rating{Mu: r.Mu, Sigma: r.Sigma}
	}
	return rs
}
