package models

import "time"

// Outcome 게임 결과 (신고자 기준 상대적 결과)
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
	OutcomeTie  Outcome = "tie"
)

// Valid 결과 값 검증
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeWin, OutcomeLoss, OutcomeTie:
		return true
	}
	return false
}

// WinningTeamTie 무승부를 나타내는 winning_team 값
const WinningTeamTie = -1

// Game 진행 중인 게임. 매치메이킹 게이트웨이가 생성하고, 이 서비스만 변경한다.
type Game struct {
	ID               string    `json:"id" db:"id"`
	QueueID          string    `json:"queueId" db:"queue_id"`
	MapFullName      string    `json:"mapFullName" db:"map_full_name"`
	MapShortName     string    `json:"mapShortName" db:"map_short_name"`
	Team0Name        string    `json:"team0Name" db:"team0_name"`
	Team1Name        string    `json:"team1Name" db:"team1_name"`
	AverageTrueskill float64   `json:"averageTrueskill" db:"average_trueskill"`
	WinProbability   float64   `json:"winProbability" db:"win_probability"`
	IsFinished       bool      `json:"isFinished" db:"is_finished"`
	CreatedAt        time.Time `json:"createdAt" db:"created_at"`
}

// GamePlayer 게임 참가자 (팀 배정 포함). 게임이 끝나거나 취소되면 삭제된다.
type GamePlayer struct {
	GameID   string `json:"gameId" db:"game_id"`
	PlayerID string `json:"playerId" db:"player_id"`
	Team     int    `json:"team" db:"team"`
}
