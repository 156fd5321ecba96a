package models

import "time"

// Rotation 맵 풀. 여러 큐가 같은 로테이션을 공유할 수 있다.
// is_random이 true면 다음 맵을 가중치 추첨으로, 아니면 순서대로 고른다.
type Rotation struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	IsRandom  bool      `json:"isRandom" db:"is_random"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// GameMap 맵
type GameMap struct {
	ID        string    `json:"id" db:"id"`
	FullName  string    `json:"fullName" db:"full_name"`
	ShortName string    `json:"shortName" db:"short_name"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// RotationMap 로테이션 안의 맵 한 칸.
// 로테이션당 is_next는 항상 정확히 하나 (부분 유니크 인덱스로 보장).
type RotationMap struct {
	ID                 string `json:"id" db:"id"`
	RotationID         string `json:"rotationId" db:"rotation_id"`
	MapID              string `json:"mapId" db:"map_id"`
	MapFullName        string `json:"mapFullName" db:"-"`
	MapShortName       string `json:"mapShortName" db:"-"`
	Ordinal            int    `json:"ordinal" db:"ordinal"`
	IsNext             bool   `json:"isNext" db:"is_next"`
	RandomWeight       int    `json:"randomWeight" db:"random_weight"`
	RaffleTicketReward int    `json:"raffleTicketReward" db:"raffle_ticket_reward"`
}
