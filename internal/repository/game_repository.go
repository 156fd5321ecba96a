package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pickuphub/pickup-backend/internal/models"
	"github.com/pickuphub/pickup-backend/pkg/database"
)

type GameRepository struct {
	db *database.DB
}

func NewGameRepository(db *database.DB) *GameRepository {
	return &GameRepository{db: db}
}

// Create 새 게임과 로스터 생성 (게이트웨이 연동 및 테스트용)
func (r *GameRepository) Create(ctx context.Context, game *models.Game, players []models.GamePlayer) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO games (id, queue_id, map_full_name, map_short_name,
			                   team0_name, team1_name, average_trueskill, win_probability)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, game.ID, game.QueueID, game.MapFullName, game.MapShortName,
			game.Team0Name, game.Team1Name, game.AverageTrueskill, game.WinProbability)
		if err != nil {
			return fmt.Errorf("failed to create game: %w", err)
		}

		for _, p := range players {
			_, err := tx.Exec(`
				INSERT INTO game_players (game_id, player_id, team)
				VALUES ($1, $2, $3)
			`, game.ID, p.PlayerID, p.Team)
			if err != nil {
				return fmt.Errorf("failed to add game player: %w", err)
			}
		}

		return nil
	})
}

// FindByID ID로 게임 찾기
func (r *GameRepository) FindByID(id string) (*models.Game, error) {
	return scanGame(r.db.QueryRow(`
		SELECT id, queue_id, map_full_name, map_short_name, team0_name, team1_name,
		       average_trueskill, win_probability, is_finished, created_at
		FROM games
		WHERE id = $1
	`, id))
}

// LockForResolve 게임 행을 배타적으로 잠근 채 조회.
// finalize/cancel의 is_finished 검사부터 커밋까지 이 잠금 아래에서 이루어진다.
func (r *GameRepository) LockForResolve(tx *sql.Tx, id string) (*models.Game, error) {
	return scanGame(tx.QueryRow(`
		SELECT id, queue_id, map_full_name, map_short_name, team0_name, team1_name,
		       average_trueskill, win_probability, is_finished, created_at
		FROM games
		WHERE id = $1
		FOR UPDATE
	`, id))
}

func scanGame(row *sql.Row) (*models.Game, error) {
	game := &models.Game{}
	err := row.Scan(
		&game.ID,
		&game.QueueID,
		&game.MapFullName,
		&game.MapShortName,
		&game.Team0Name,
		&game.Team1Name,
		&game.AverageTrueskill,
		&game.WinProbability,
		&game.IsFinished,
		&game.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to find game: %w", err)
	}

	return game, nil
}

// ParticipantTx 게임 안에서 특정 플레이어의 참가 정보 조회
func (r *GameRepository) ParticipantTx(tx *sql.Tx, gameID, playerID string) (*models.GamePlayer, error) {
	gp := &models.GamePlayer{}
	err := tx.QueryRow(`
		SELECT game_id, player_id, team
		FROM game_players
		WHERE game_id = $1 AND player_id = $2
	`, gameID, playerID).Scan(&gp.GameID, &gp.PlayerID, &gp.Team)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to find game player: %w", err)
	}

	return gp, nil
}

// ParticipantsTx 게임의 전체 로스터 조회 (팀, 참가 순)
func (r *GameRepository) ParticipantsTx(tx *sql.Tx, gameID string) ([]models.GamePlayer, error) {
	rows, err := tx.Query(`
		SELECT game_id, player_id, team
		FROM game_players
		WHERE game_id = $1
		ORDER BY team, player_id
	`, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to query game players: %w", err)
	}
	defer rows.Close()

	var players []models.GamePlayer
	for rows.Next() {
		var gp models.GamePlayer
		if err := rows.Scan(&gp.GameID, &gp.PlayerID, &gp.Team); err != nil {
			return nil, fmt.Errorf("failed to scan game player: %w", err)
		}
		players = append(players, gp)
	}

	return players, rows.Err()
}

// MarkFinishedTx is_finished 플래그 설정
func (r *GameRepository) MarkFinishedTx(tx *sql.Tx, id string) error {
	_, err := tx.Exec(`UPDATE games SET is_finished = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark game finished: %w", err)
	}
	return nil
}

// DeletePlayersTx 게임의 로스터 행 전체 삭제
func (r *GameRepository) DeletePlayersTx(tx *sql.Tx, gameID string) error {
	_, err := tx.Exec(`DELETE FROM game_players WHERE game_id = $1`, gameID)
	if err != nil {
		return fmt.Errorf("failed to delete game players: %w", err)
	}
	return nil
}

// DeleteTx 게임 행 삭제 (취소 경로)
func (r *GameRepository) DeleteTx(tx *sql.Tx, id string) error {
	_, err := tx.Exec(`DELETE FROM games WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete game: %w", err)
	}
	return nil
}
