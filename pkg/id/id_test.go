package id

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_IsSortable(t *testing.T) {
	ids := make([]string, 0, 100)
	for i := 0; i < 100; i++ {
		ids = append(ids, New())
	}

	for i := 1; i < len(ids); i++ {
		assert.Less(t, ids[i-1], ids[i], "ids minted in sequence must sort in sequence")
	}
}

func TestAt_RoundTripsTime(t *testing.T) {
	at := time.Date(2026, 1, 5, 22, 0, 0, 0, time.UTC)

	got, err := Time(At(at))
	require.NoError(t, err)
	assert.True(t, at.Equal(got))
}

func TestTime_RejectsGarbage(t *testing.T) {
	_, err := Time("not-a-ulid")
	assert.Error(t, err)
}
