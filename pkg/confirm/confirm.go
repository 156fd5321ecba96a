package confirm

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrTokenNotFound 토큰이 없거나, 만료되었거나, 이미 사용됨
	ErrTokenNotFound = errors.New("confirm token not found or expired")
)

// PendingAction 확인 대기 중인 액션. 토큰과 함께 호출자가 소유하며,
// 프로세스 전역 상태에 기대지 않는다. TTL이 지나면 액션은 "하지 않은 것"이
// 되고, 절대 암묵적 해소로 이어지지 않는다.
type PendingAction struct {
	Action  string `json:"action"` // "finalize" | "cancel"
	GameID  string `json:"gameId"`
	ActorID string `json:"actorId"`
}

// Store Redis 기반 일회용 확인 토큰 저장소
type Store struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewStore 확인 토큰 저장소 생성
func NewStore(redisURL string, ttl time.Duration) (*Store, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	return &Store{
		client:    redis.NewClient(opt),
		keyPrefix: "confirm:",
		ttl:       ttl,
	}, nil
}

// NewStoreWithClient 기존 클라이언트로 저장소 생성 (테스트용)
func NewStoreWithClient(client *redis.Client, ttl time.Duration) *Store {
	return &Store{
		client:    client,
		keyPrefix: "confirm:",
		ttl:       ttl,
	}
}

// Create 새 확인 토큰 발급. SET NX로 원자적으로 저장하고 TTL을 건다.
func (s *Store) Create(ctx context.Context, action PendingAction) (string, error) {
	data, err := json.Marshal(action)
	if err != nil {
		return "", err
	}

	token := uuid.NewString()
	ok, err := s.client.SetNX(ctx, s.keyPrefix+token, data, s.ttl).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		// uuid 충돌은 사실상 불가능
		return "", errors.New("confirm token collision")
	}

	return token, nil
}

// Claim 토큰을 소비하고 대기 중인 액션 반환. GETDEL이라 한 번만 성공한다:
// 같은 토큰으로 달려든 두 호출자 중 한쪽은 ErrTokenNotFound를 받는다.
func (s *Store) Claim(ctx context.Context, token string) (*PendingAction, error) {
	data, err := s.client.GetDel(ctx, s.keyPrefix+token).Result()
	if err == redis.Nil {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}

	action := &PendingAction{}
	if err := json.Unmarshal([]byte(data), action); err != nil {
		return nil, err
	}

	return action, nil
}

// Ping 연결 확인
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close 연결 종료
func (s *Store) Close() error {
	return s.client.Close()
}
