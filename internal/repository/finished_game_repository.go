package repository

import (
	"database/sql"
	"fmt"

	"github.com/pickuphub/pickup-backend/internal/models"
	"github.com/pickuphub/pickup-backend/pkg/database"
)

type FinishedGameRepository struct {
	db *database.DB
}

func NewFinishedGameRepository(db *database.DB) *FinishedGameRepository {
	return &FinishedGameRepository{db: db}
}

// InsertTx 종료 기록과 참가자 스냅샷 삽입. finalize 트랜잭션 안에서만 호출된다.
func (r *FinishedGameRepository) InsertTx(tx *sql.Tx, fg *models.FinishedGame, players []models.FinishedGamePlayer) error {
	err := tx.QueryRow(`
		INSERT INTO finished_games (id, game_id, queue_name, category_name,
		                            map_full_name, map_short_name, team0_name, team1_name,
		                            is_rated, average_trueskill, win_probability,
		                            winning_team, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING finished_at
	`, fg.ID, fg.GameID, fg.QueueName, fg.CategoryName,
		fg.MapFullName, fg.MapShortName, fg.Team0Name, fg.Team1Name,
		fg.IsRated, fg.AverageTrueskill, fg.WinProbability,
		fg.WinningTeam, fg.StartedAt,
	).Scan(&fg.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to insert finished game: %w", err)
	}

	for _, p := range players {
		_, err := tx.Exec(`
			INSERT INTO finished_game_players (finished_game_id, player_id, player_name, team,
			                                   mu_before, sigma_before, mu_after, sigma_after)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, fg.ID, p.PlayerID, p.PlayerName, p.Team,
			p.MuBefore, p.SigmaBefore, p.MuAfter, p.SigmaAfter)
		if err != nil {
			return fmt.Errorf("failed to insert finished game player: %w", err)
		}
	}

	return nil
}

// FindByID ID로 종료 기록 찾기
func (r *FinishedGameRepository) FindByID(id string) (*models.FinishedGame, error) {
	fg := &models.FinishedGame{}
	err := r.db.QueryRow(`
		SELECT id, game_id, queue_name, category_name,
		       map_full_name, map_short_name, team0_name, team1_name,
		       is_rated, average_trueskill, win_probability,
		       winning_team, started_at, finished_at
		FROM finished_games
		WHERE id = $1
	`, id).Scan(
		&fg.ID,
		&fg.GameID,
		&fg.QueueName,
		&fg.CategoryName,
		&fg.MapFullName,
		&fg.MapShortName,
		&fg.Team0Name,
		&fg.Team1Name,
		&fg.IsRated,
		&fg.AverageTrueskill,
		&fg.WinProbability,
		&fg.WinningTeam,
		&fg.StartedAt,
		&fg.FinishedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to find finished game: %w", err)
	}

	return fg, nil
}

// FindByGameID 원본 게임 ID로 종료 기록 찾기
func (r *FinishedGameRepository) FindByGameID(gameID string) (*models.FinishedGame, error) {
	fg := &models.FinishedGame{}
	err := r.db.QueryRow(`
		SELECT id, game_id, queue_name, category_name,
		       map_full_name, map_short_name, team0_name, team1_name,
		       is_rated, average_trueskill, win_probability,
		       winning_team, started_at, finished_at
		FROM finished_games
		WHERE game_id = $1
	`, gameID).Scan(
		&fg.ID,
		&fg.GameID,
		&fg.QueueName,
		&fg.CategoryName,
		&fg.MapFullName,
		&fg.MapShortName,
		&fg.Team0Name,
		&fg.Team1Name,
		&fg.IsRated,
		&fg.AverageTrueskill,
		&fg.WinProbability,
		&fg.WinningTeam,
		&fg.StartedAt,
		&fg.FinishedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to find finished game: %w", err)
	}

	return fg, nil
}

// FindPlayers 종료 기록의 참가자 스냅샷 목록
func (r *FinishedGameRepository) FindPlayers(finishedGameID string) ([]models.FinishedGamePlayer, error) {
	rows, err := r.db.Query(`
		SELECT id, finished_game_id, player_id, player_name, team,
		       mu_before, sigma_before, mu_after, sigma_after
		FROM finished_game_players
		WHERE finished_game_id = $1
		ORDER BY team, player_name
	`, finishedGameID)
	if err != nil {
		return nil, fmt.Errorf("failed to query finished game players: %w", err)
	}
	defer rows.Close()

	var players []models.FinishedGamePlayer
	for rows.Next() {
		var p models.FinishedGamePlayer
		err := rows.Scan(
			&p.ID,
			&p.FinishedGameID,
			&p.PlayerID,
			&p.PlayerName,
			&p.Team,
			&p.MuBefore,
			&p.SigmaBefore,
			&p.MuAfter,
			&p.SigmaAfter,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan finished game player: %w", err)
		}
		players = append(players, p)
	}

	return players, rows.Err()
}
