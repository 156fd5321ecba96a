package repository

import (
	"database/sql"
	"fmt"

	"github.com/pickuphub/pickup-backend/internal/models"
	"github.com/pickuphub/pickup-backend/pkg/database"
)

type QueueRepository struct {
	db *database.DB
}

func NewQueueRepository(db *database.DB) *QueueRepository {
	return &QueueRepository{db: db}
}

// FindByID ID로 큐 찾기
func (r *QueueRepository) FindByID(id string) (*models.Queue, error) {
	return r.scanQueue(r.db.QueryRow(queueSelect+` WHERE id = $1`, id))
}

// FindByIDTx 트랜잭션 안에서 큐 찾기
func (r *QueueRepository) FindByIDTx(tx *sql.Tx, id string) (*models.Queue, error) {
	return r.scanQueue(tx.QueryRow(queueSelect+` WHERE id = $1`, id))
}

const queueSelect = `
	SELECT id, name, rotation_id, category_id, is_rated, created_at
	FROM queues`

func (r *QueueRepository) scanQueue(row *sql.Row) (*models.Queue, error) {
	queue := &models.Queue{}
	err := row.Scan(
		&queue.ID,
		&queue.Name,
		&queue.RotationID,
		&queue.CategoryID,
		&queue.IsRated,
		&queue.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to find queue: %w", err)
	}

	return queue, nil
}

// FindNamesByRotationID 로테이션에 묶인 모든 큐 이름 (fan-out 보고용)
func (r *QueueRepository) FindNamesByRotationID(rotationID string) ([]string, error) {
	rows, err := r.db.Query(`
		SELECT name
		FROM queues
		WHERE rotation_id = $1
		ORDER BY name
	`, rotationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query queues by rotation: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan queue name: %w", err)
		}
		names = append(names, name)
	}

	return names, rows.Err()
}

// FindCategoryByIDTx 카테고리 조회
func (r *QueueRepository) FindCategoryByIDTx(tx *sql.Tx, id string) (*models.Category, error) {
	category := &models.Category{}
	err := tx.QueryRow(`
		SELECT id, name, created_at
		FROM categories
		WHERE id = $1
	`, id).Scan(&category.ID, &category.Name, &category.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to find category: %w", err)
	}

	return category, nil
}
