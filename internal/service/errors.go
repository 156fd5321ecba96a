package service

import "errors"

// Common service errors
var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidOutcome = errors.New("invalid outcome value")
)

// Resolution errors
var (
	ErrGameNotFound = errors.New("game not found")
	// ErrAlreadyResolved finalize/cancel 경쟁에서 진 쪽이 받는 에러.
	// 결함이 아니라 동시성 가드의 정상 결과다.
	ErrAlreadyResolved = errors.New("game already resolved")
)

// Queue / rotation errors
var (
	ErrQueueNotFound    = errors.New("queue not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrRotationNotFound = errors.New("rotation not found")
	ErrMapNotFound      = errors.New("map not in rotation")
	ErrEmptyRotation    = errors.New("rotation has no maps")
)
