package models

import "time"

// Queue 매치메이킹 큐. 하나의 로테이션과 (선택적으로) 카테고리에 묶인다.
type Queue struct {
	ID         string    `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	RotationID *string   `json:"rotationId,omitempty" db:"rotation_id"`
	CategoryID *string   `json:"categoryId,omitempty" db:"category_id"`
	IsRated    bool      `json:"isRated" db:"is_rated"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
}

// Category 레이팅 하위 스코프 (게임 모드 등)
type Category struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
