package service

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pickuphub/pickup-backend/internal/models"
)

func rotationEntries(weights ...int) []models.RotationMap {
	entries := make([]models.RotationMap, len(weights))
	for i, w := range weights {
		entries[i] = models.RotationMap{
			ID:           string(rune('a' + i)),
			Ordinal:      i + 1,
			RandomWeight: w,
		}
	}
	return entries
}

func TestNextSequential(t *testing.T) {
	tests := []struct {
		name        string
		current     int // is_next 엔트리 인덱스, -1이면 없음
		count       int
		wantOrdinal int
	}{
		{name: "advances to the next ordinal", current: 0, count: 3, wantOrdinal: 2},
		{name: "wraps to the first entry", current: 2, count: 3, wantOrdinal: 1},
		{name: "no current pointer starts at the first", current: -1, count: 3, wantOrdinal: 1},
		{name: "single entry rotation points at itself", current: 0, count: 1, wantOrdinal: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries := rotationEntries(make([]int, tt.count)...)
			if tt.current >= 0 {
				entries[tt.current].IsNext = true
			}

			next := nextSequential(entries)
			require.NotNil(t, next)
			assert.Equal(t, tt.wantOrdinal, next.Ordinal)
		})
	}
}

func TestPickWeighted_ExcludesZeroWeight(t *testing.T) {
	s := &RotationService{rng: rand.New(rand.NewSource(1))}
	entries := rotationEntries(0, 5, 0, 3)

	// weight 0 엔트리는 어떤 추첨에서도 나와선 안 된다
	for i := 0; i < 1000; i++ {
		picked := s.pickWeighted(entries)
		require.NotNil(t, picked)
		assert.Greater(t, picked.RandomWeight, 0)
	}
}

func TestPickWeighted_ProportionalDraw(t *testing.T) {
	s := &RotationService{rng: rand.New(rand.NewSource(42))}
	entries := rotationEntries(1, 9)

	counts := map[int]int{}
	const draws = 10000
	for i := 0; i < draws; i++ {
		counts[s.pickWeighted(entries).Ordinal]++
	}

	// weight 1:9 → 대략 10%:90%
	assert.InDelta(t, 0.1, float64(counts[1])/draws, 0.02)
	assert.InDelta(t, 0.9, float64(counts[2])/draws, 0.02)
}

func TestPickWeighted_NoCandidatesFallsBack(t *testing.T) {
	s := &RotationService{rng: rand.New(rand.NewSource(7))}
	entries := rotationEntries(0, 0, 0)

	// 후보가 없으면 nil → 호출부가 순차 정책으로 폴백
	assert.Nil(t, s.pickWeighted(entries))
}
