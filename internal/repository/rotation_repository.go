package repository

import (
	"database/sql"
	"fmt"

	"github.com/pickuphub/pickup-backend/internal/models"
	"github.com/pickuphub/pickup-backend/pkg/database"
)

type RotationRepository struct {
	db *database.DB
}

func NewRotationRepository(db *database.DB) *RotationRepository {
	return &RotationRepository{db: db}
}

// FindByID ID로 로테이션 찾기
func (r *RotationRepository) FindByID(id string) (*models.Rotation, error) {
	rotation := &models.Rotation{}
	err := r.db.QueryRow(`
		SELECT id, name, is_random, created_at
		FROM rotations
		WHERE id = $1
	`, id).Scan(&rotation.ID, &rotation.Name, &rotation.IsRandom, &rotation.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to find rotation: %w", err)
	}

	return rotation, nil
}

const rotationMapSelect = `
	SELECT rm.id, rm.rotation_id, rm.map_id, m.full_name, m.short_name,
	       rm.ordinal, rm.is_next, rm.random_weight, rm.raffle_ticket_reward
	FROM rotation_maps rm
	JOIN maps m ON m.id = rm.map_id`

// FindMaps 로테이션의 전체 엔트리 (ordinal 순)
func (r *RotationRepository) FindMaps(rotationID string) ([]models.RotationMap, error) {
	rows, err := r.db.Query(rotationMapSelect+`
		WHERE rm.rotation_id = $1
		ORDER BY rm.ordinal
	`, rotationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rotation maps: %w", err)
	}
	defer rows.Close()

	var entries []models.RotationMap
	for rows.Next() {
		entry, err := scanRotationMap(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}

	return entries, rows.Err()
}

// LockTx 로테이션 행을 배타적으로 잠근 채 조회.
// 같은 로테이션에 대한 동시 포인터 이동은 이 잠금으로 직렬화된다: 각 호출은
// 앞선 호출이 커밋한 is_next를 본 다음에야 자기 후속 맵을 고른다.
func (r *RotationRepository) LockTx(tx *sql.Tx, id string) (*models.Rotation, error) {
	rotation := &models.Rotation{}
	err := tx.QueryRow(`
		SELECT id, name, is_random, created_at
		FROM rotations
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&rotation.ID, &rotation.Name, &rotation.IsRandom, &rotation.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to lock rotation: %w", err)
	}

	return rotation, nil
}

// FindMapsTx 트랜잭션 안에서 로테이션의 전체 엔트리 조회 (ordinal 순)
func (r *RotationRepository) FindMapsTx(tx *sql.Tx, rotationID string) ([]models.RotationMap, error) {
	rows, err := tx.Query(rotationMapSelect+`
		WHERE rm.rotation_id = $1
		ORDER BY rm.ordinal
	`, rotationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rotation maps: %w", err)
	}
	defer rows.Close()

	var entries []models.RotationMap
	for rows.Next() {
		entry, err := scanRotationMap(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}

	return entries, rows.Err()
}

// FindMapByMapIDTx 트랜잭션 안에서 특정 맵 엔트리 찾기
func (r *RotationRepository) FindMapByMapIDTx(tx *sql.Tx, rotationID, mapID string) (*models.RotationMap, error) {
	row := tx.QueryRow(rotationMapSelect+`
		WHERE rm.rotation_id = $1 AND rm.map_id = $2
	`, rotationID, mapID)

	entry := &models.RotationMap{}
	err := row.Scan(
		&entry.ID,
		&entry.RotationID,
		&entry.MapID,
		&entry.MapFullName,
		&entry.MapShortName,
		&entry.Ordinal,
		&entry.IsNext,
		&entry.RandomWeight,
		&entry.RaffleTicketReward,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to find rotation map: %w", err)
	}

	return entry, nil
}

func scanRotationMap(rows *sql.Rows) (*models.RotationMap, error) {
	entry := &models.RotationMap{}
	err := rows.Scan(
		&entry.ID,
		&entry.RotationID,
		&entry.MapID,
		&entry.MapFullName,
		&entry.MapShortName,
		&entry.Ordinal,
		&entry.IsNext,
		&entry.RandomWeight,
		&entry.RaffleTicketReward,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan rotation map: %w", err)
	}
	return entry, nil
}

// SetNextTx is_next 포인터 이동. 호출 전에 LockTx로 로테이션 행을 잠가야 한다.
// 기존 플래그 해제와 새 플래그 설정이 같은 트랜잭션에서 일어나므로
// is_next가 0개 또는 2개인 상태는 관찰되지 않는다.
func (r *RotationRepository) SetNextTx(tx *sql.Tx, rotationID, rotationMapID string) error {
	_, err := tx.Exec(`
		UPDATE rotation_maps
		SET is_next = false
		WHERE rotation_id = $1 AND is_next = true
	`, rotationID)
	if err != nil {
		return fmt.Errorf("failed to clear next map: %w", err)
	}

	res, err := tx.Exec(`
		UPDATE rotation_maps
		SET is_next = true
		WHERE id = $1 AND rotation_id = $2
	`, rotationMapID, rotationID)
	if err != nil {
		return fmt.Errorf("failed to set next map: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// RewardForMap queue → rotation → rotation_map 체인을 따라 래플 보상 조회.
// 체인이 끊겨 있으면 (예: 경기 중 맵 삭제) ok=false로 돌아온다.
func (r *RotationRepository) RewardForMap(queueID, mapShortName string) (int, bool, error) {
	var reward int
	err := r.db.QueryRow(`
		SELECT rm.raffle_ticket_reward
		FROM rotation_maps rm
		JOIN maps m ON m.id = rm.map_id
		JOIN rotations rot ON rot.id = rm.rotation_id
		JOIN queues q ON q.rotation_id = rot.id
		WHERE m.short_name = $1 AND q.id = $2
	`, mapShortName, queueID).Scan(&reward)

	if err == sql.ErrNoRows {
		return 0, false, nil
	}

	if err != nil {
		return 0, false, fmt.Errorf("failed to look up map reward: %w", err)
	}

	return reward, true, nil
}
