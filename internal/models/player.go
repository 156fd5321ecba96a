package models

import "time"

// Player 플레이어와 전역 스킬 프로필. 모든 플레이어는 전역 프로필을 항상 가진다.
type Player struct {
	ID             string    `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	TrueskillMu    float64   `json:"trueskillMu" db:"trueskill_mu"`
	TrueskillSigma float64   `json:"trueskillSigma" db:"trueskill_sigma"`
	RaffleTickets  int       `json:"raffleTickets" db:"raffle_tickets"`
	IsAdmin        bool      `json:"isAdmin" db:"is_admin"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
}

// PlayerCategorySkill 카테고리별 스킬 프로필.
// 카테고리가 걸린 큐에서 처음 평가될 때 전역 프로필을 시드로 생성된다.
type PlayerCategorySkill struct {
	PlayerID   string  `json:"playerId" db:"player_id"`
	CategoryID string  `json:"categoryId" db:"category_id"`
	Mu         float64 `json:"mu" db:"mu"`
	Sigma      float64 `json:"sigma" db:"sigma"`
	Rank       float64 `json:"rank" db:"rank"`
}

// SkillRank mu - 3*sigma. 리더보드 정렬 기준.
func SkillRank(mu, sigma float64) float64 {
	return mu - 3*sigma
}
