package repository

import (
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/pickuphub/pickup-backend/internal/models"
	"github.com/pickuphub/pickup-backend/pkg/database"
)

type PlayerRepository struct {
	db *database.DB
}

func NewPlayerRepository(db *database.DB) *PlayerRepository {
	return &PlayerRepository{db: db}
}

// FindByID ID로 플레이어 찾기
func (r *PlayerRepository) FindByID(id string) (*models.Player, error) {
	player := &models.Player{}
	err := r.db.QueryRow(`
		SELECT id, name, trueskill_mu, trueskill_sigma, raffle_tickets, is_admin, created_at
		FROM players
		WHERE id = $1
	`, id).Scan(
		&player.ID,
		&player.Name,
		&player.TrueskillMu,
		&player.TrueskillSigma,
		&player.RaffleTickets,
		&player.IsAdmin,
		&player.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to find player: %w", err)
	}

	return player, nil
}

// FindByIDsTx 여러 플레이어 일괄 조회
func (r *PlayerRepository) FindByIDsTx(tx *sql.Tx, ids []string) (map[string]*models.Player, error) {
	rows, err := tx.Query(`
		SELECT id, name, trueskill_mu, trueskill_sigma, raffle_tickets, is_admin, created_at
		FROM players
		WHERE id = ANY($1)
	`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query players: %w", err)
	}
	defer rows.Close()

	players := make(map[string]*models.Player, len(ids))
	for rows.Next() {
		player := &models.Player{}
		err := rows.Scan(
			&player.ID,
			&player.Name,
			&player.TrueskillMu,
			&player.TrueskillSigma,
			&player.RaffleTickets,
			&player.IsAdmin,
			&player.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		players[player.ID] = player
	}

	return players, rows.Err()
}

// FindCategorySkillsTx 카테고리 스코프 프로필 일괄 조회 (없는 플레이어는 맵에서 빠진다)
func (r *PlayerRepository) FindCategorySkillsTx(tx *sql.Tx, playerIDs []string, categoryID string) (map[string]*models.PlayerCategorySkill, error) {
	rows, err := tx.Query(`
		SELECT player_id, category_id, mu, sigma, rank
		FROM player_category_skills
		WHERE player_id = ANY($1) AND category_id = $2
	`, pq.Array(playerIDs), categoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to query category skills: %w", err)
	}
	defer rows.Close()

	skills := make(map[string]*models.PlayerCategorySkill)
	for rows.Next() {
		s := &models.PlayerCategorySkill{}
		if err := rows.Scan(&s.PlayerID, &s.CategoryID, &s.Mu, &s.Sigma, &s.Rank); err != nil {
			return nil, fmt.Errorf("failed to scan category skill: %w", err)
		}
		skills[s.PlayerID] = s
	}

	return skills, rows.Err()
}

// UpdateSkillTx 전역 스킬 프로필 갱신
func (r *PlayerRepository) UpdateSkillTx(tx *sql.Tx, playerID string, mu, sigma float64) error {
	_, err := tx.Exec(`
		UPDATE players
		SET trueskill_mu = $1, trueskill_sigma = $2
		WHERE id = $3
	`, mu, sigma, playerID)
	if err != nil {
		return fmt.Errorf("failed to update player skill: %w", err)
	}
	return nil
}

// UpsertCategorySkillTx 카테고리 프로필 갱신. 없으면 생성 (lazy seeding).
func (r *PlayerRepository) UpsertCategorySkillTx(tx *sql.Tx, playerID, categoryID string, mu, sigma float64) error {
	_, err := tx.Exec(`
		INSERT INTO player_category_skills (player_id, category_id, mu, sigma, rank)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (player_id, category_id) DO UPDATE SET
		    mu = EXCLUDED.mu,
		    sigma = EXCLUDED.sigma,
		    rank = EXCLUDED.rank
	`, playerID, categoryID, mu, sigma, models.SkillRank(mu, sigma))
	if err != nil {
		return fmt.Errorf("failed to upsert category skill: %w", err)
	}
	return nil
}

// AddRaffleTicketsTx 참가자 전원에게 래플 티켓 지급
func (r *PlayerRepository) AddRaffleTicketsTx(tx *sql.Tx, playerIDs []string, amount int) error {
	_, err := tx.Exec(`
		UPDATE players
		SET raffle_tickets = raffle_tickets + $1
		WHERE id = ANY($2)
	`, amount, pq.Array(playerIDs))
	if err != nil {
		return fmt.Errorf("failed to add raffle tickets: %w", err)
	}
	return nil
}
