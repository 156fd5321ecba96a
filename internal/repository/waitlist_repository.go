package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/pickuphub/pickup-backend/internal/models"
	"github.com/pickuphub/pickup-backend/pkg/database"
)

type WaitlistRepository struct {
	db *database.DB
}

func NewWaitlistRepository(db *database.DB) *WaitlistRepository {
	return &WaitlistRepository{db: db}
}

// InsertTx 대기 레코드 삽입. finalize 트랜잭션의 일부로 호출된다.
func (r *WaitlistRepository) InsertTx(tx *sql.Tx, w *models.QueueWaitlist) error {
	err := tx.QueryRow(`
		INSERT INTO queue_waitlists (id, queue_id, finished_game_id, channel_id, end_waitlist_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, w.ID, w.QueueID, w.FinishedGameID, w.ChannelID, w.EndWaitlistAt).Scan(&w.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert queue waitlist: %w", err)
	}
	return nil
}

// FindExpired 대기 시간이 끝난 레코드 조회
func (r *WaitlistRepository) FindExpired(now time.Time) ([]models.QueueWaitlist, error) {
	rows, err := r.db.Query(`
		SELECT id, queue_id, finished_game_id, channel_id, end_waitlist_at, created_at
		FROM queue_waitlists
		WHERE end_waitlist_at <= $1
		ORDER BY end_waitlist_at
	`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired waitlists: %w", err)
	}
	defer rows.Close()

	var entries []models.QueueWaitlist
	for rows.Next() {
		var w models.QueueWaitlist
		err := rows.Scan(&w.ID, &w.QueueID, &w.FinishedGameID, &w.ChannelID, &w.EndWaitlistAt, &w.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue waitlist: %w", err)
		}
		entries = append(entries, w)
	}

	return entries, rows.Err()
}

// FindByFinishedGameID 종료 기록에 연결된 대기 레코드 조회
func (r *WaitlistRepository) FindByFinishedGameID(finishedGameID string) (*models.QueueWaitlist, error) {
	w := &models.QueueWaitlist{}
	err := r.db.QueryRow(`
		SELECT id, queue_id, finished_game_id, channel_id, end_waitlist_at, created_at
		FROM queue_waitlists
		WHERE finished_game_id = $1
	`, finishedGameID).Scan(&w.ID, &w.QueueID, &w.FinishedGameID, &w.ChannelID, &w.EndWaitlistAt, &w.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to find queue waitlist: %w", err)
	}

	return w, nil
}

// Delete 소비된 대기 레코드 삭제
func (r *WaitlistRepository) Delete(id string) error {
	_, err := r.db.Exec(`DELETE FROM queue_waitlists WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete queue waitlist: %w", err)
	}
	return nil
}
