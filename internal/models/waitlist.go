package models

import "time"

// QueueWaitlist 재입장 대기 레코드. finalize 성공마다 하나 생성되고,
// end_waitlist_at이 지나면 폴러가 소비한다.
type QueueWaitlist struct {
	ID             string    `json:"id" db:"id"`
	QueueID        string    `json:"queueId" db:"queue_id"`
	FinishedGameID string    `json:"finishedGameId" db:"finished_game_id"`
	ChannelID      string    `json:"channelId" db:"channel_id"`
	EndWaitlistAt  time.Time `json:"endWaitlistAt" db:"end_waitlist_at"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
}
