package repository

import (
	"context"
	"sync"
	"time"

	"WaveDeck/model"

	"github.com/google/uuid"
)

// TrackRepository defines the catalog operations. Lookups return (nil, nil) when the
// track does not exist.
type TrackRepository interface {
	CreateTrack(ctx context.Context, track *model.Track) error
	GetTrackByID(ctx context.Context, id string) (*model.Track, error)
	GetTrackByFilename(ctx context.Context, filename string) (*model.Track, error)
	// GetAllTracks lists tracks in upload order.
	GetAllTracks(ctx context.Context) ([]*model.Track, error)
	// DeleteTrack reports whether a record was removed. Of two concurrent deletes of
	// the same id exactly one reports true.
	DeleteTrack(ctx context.Context, id string) (bool, error)
}

// prepareTrack fills the fields the catalog owns.
func prepareTrack(track *model.Track) {
	if track.ID == "" {
		track.ID = uuid.NewString()
	}
	if track.CreatedAt.IsZero() {
		track.CreatedAt = time.Now().UTC()
	}
}

func cloneTrack(t *model.Track) *model.Track {
	c := *t
	if t.Duration != nil {
		d := *t.Duration
		c.Duration = &d
	}
	return &c
}

// memoryTrackRepository keeps the catalog in process memory.
type memoryTrackRepository struct {
	mu     sync.RWMutex
	tracks map[string]*model.Track
	order  []string
}

// NewMemoryTrackRepository creates an empty in-memory catalog.
func NewMemoryTrackRepository() TrackRepository {
	return &memoryTrackRepository{tracks: make(map[string]*model.Track)}
}

func (r *memoryTrackRepository) CreateTrack(ctx context.Context, track *model.Track) error {
	prepareTrack(track)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tracks[track.ID]; exists {
		return ErrDuplicateTrack
	}
	r.tracks[track.ID] = cloneTrack(track)
	r.order = append(r.order, track.ID)
	return nil
}

func (r *memoryTrackRepository) GetTrackByID(ctx context.Context, id string) (*model.Track, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tracks[id]
	if !ok {
		return nil, nil
	}
	return cloneTrack(t), nil
}

func (r *memoryTrackRepository) GetTrackByFilename(ctx context.Context, filename string) (*model.Track, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		if t := r.tracks[id]; t.Filename == filename {
			return cloneTrack(t), nil
		}
	}
	return nil, nil
}

func (r *memoryTrackRepository) GetAllTracks(ctx context.Context) ([]*model.Track, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tracks := make([]*model.Track, 0, len(r.order))
	for _, id := range r.order {
		tracks = append(tracks, cloneTrack(r.tracks[id]))
	}
	return tracks, nil
}

func (r *memoryTrackRepository) DeleteTrack(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tracks[id]; !ok {
		return false, nil
	}
	delete(r.tracks, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true, nil
}
