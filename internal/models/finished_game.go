package models

import "time"

// FinishedGame 종료된 게임의 불변 스냅샷. finalize에서 정확히 한 번 생성된다.
type FinishedGame struct {
	ID               string    `json:"id" db:"id"`
	GameID           string    `json:"gameId" db:"game_id"`
	QueueName        string    `json:"queueName" db:"queue_name"`
	CategoryName     *string   `json:"categoryName,omitempty" db:"category_name"`
	MapFullName      string    `json:"mapFullName" db:"map_full_name"`
	MapShortName     string    `json:"mapShortName" db:"map_short_name"`
	Team0Name        string    `json:"team0Name" db:"team0_name"`
	Team1Name        string    `json:"team1Name" db:"team1_name"`
	IsRated          bool      `json:"isRated" db:"is_rated"`
	AverageTrueskill float64   `json:"averageTrueskill" db:"average_trueskill"`
	WinProbability   float64   `json:"winProbability" db:"win_probability"`
	WinningTeam      int       `json:"winningTeam" db:"winning_team"`
	StartedAt        time.Time `json:"startedAt" db:"started_at"`
	FinishedAt       time.Time `json:"finishedAt" db:"finished_at"`
}

// FinishedGamePlayer 참가자별 레이팅 전/후 스냅샷
type FinishedGamePlayer struct {
	ID             string  `json:"id" db:"id"`
	FinishedGameID string  `json:"finishedGameId" db:"finished_game_id"`
	PlayerID       string  `json:"playerId" db:"player_id"`
	PlayerName     string  `json:"playerName" db:"player_name"`
	Team           int     `json:"team" db:"team"`
	MuBefore       float64 `json:"muBefore" db:"mu_before"`
	SigmaBefore    float64 `json:"sigmaBefore" db:"sigma_before"`
	MuAfter        float64 `json:"muAfter" db:"mu_after"`
	SigmaAfter     float64 `json:"sigmaAfter" db:"sigma_after"`
}
