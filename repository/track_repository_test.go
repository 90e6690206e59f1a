package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"WaveDeck/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTrack(name string) *model.Track {
	return &model.Track{
		Filename:     name + ".bin",
		OriginalName: name + ".mp3",
		FileSize:     1234,
		MimeType:     "audio/mpeg",
		FilePath:     name + ".bin",
	}
}

func TestMemoryCreateAssignsIDAndKeepsOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTrackRepository()

	a, b, c := newTrack("a"), newTrack("b"), newTrack("c")
	for _, tr := range []*model.Track{a, b, c} {
		require.NoError(t, repo.CreateTrack(ctx, tr))
		assert.NotEmpty(t, tr.ID)
		assert.False(t, tr.CreatedAt.IsZero())
	}

	all, err := repo.GetAllTracks(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{a.ID, b.ID, c.ID}, []string{all[0].ID, all[1].ID, all[2].ID})
	assert.Nil(t, all[0].Duration)
}

func TestMemoryDuplicateID(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTrackRepository()
	a := newTrack("a")
	require.NoError(t, repo.CreateTrack(ctx, a))

	dup := newTrack("other")
	dup.ID = a.ID
	assert.ErrorIs(t, repo.CreateTrack(ctx, dup), ErrDuplicateTrack)
}

func TestMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTrackRepository()
	d := 12.5
	a := newTrack("a")
	a.Duration = &d
	require.NoError(t, repo.CreateTrack(ctx, a))

	got, err := repo.GetTrackByID(ctx, a.ID)
	require.NoError(t, err)
	got.OriginalName = "mutated"
	*got.Duration = 99

	again, err := repo.GetTrackByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "a.mp3", again.OriginalName)
	assert.Equal(t, 12.5, *again.Duration)
}

func TestMemoryLookups(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTrackRepository()
	a := newTrack("a")
	require.NoError(t, repo.CreateTrack(ctx, a))

	got, err := repo.GetTrackByFilename(ctx, "a.bin")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, a.ID, got.ID)

	missing, err := repo.GetTrackByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	missing, err = repo.GetTrackByFilename(ctx, "nope.bin")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryDeleteTwice(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTrackRepository()
	a, b := newTrack("a"), newTrack("b")
	require.NoError(t, repo.CreateTrack(ctx, a))
	require.NoError(t, repo.CreateTrack(ctx, b))

	ok, err := repo.DeleteTrack(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.DeleteTrack(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.DeleteTrack(ctx, "never-existed")
	require.NoError(t, err)
	assert.False(t, ok)

	all, err := repo.GetAllTracks(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, b.ID, all[0].ID)
}

func TestMemoryConcurrentDeleteSingleWinner(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTrackRepository()
	a := newTrack("a")
	require.NoError(t, repo.CreateTrack(ctx, a))

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.DeleteTrack(ctx, a.ID)
			assert.NoError(t, err)
			if ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)
}
