package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"WaveDeck/logger"
	"WaveDeck/model"
	"WaveDeck/repository"

	"github.com/go-redis/redis/v8"
)

const (
	trackKeyPrefix = "wavedeck:track:"
	trackTTL       = 10 * time.Minute
)

// CachedTrackRepository is a read-through Redis cache for single-track lookups, which
// every range request of the stream endpoint performs. Listing is not cached so the
// playlist order always comes from the catalog.
type CachedTrackRepository struct {
	repository.TrackRepository
	client *redis.Client
	ttl    time.Duration
}

// NewCachedTrackRepository wraps next with a Redis cache.
func NewCachedTrackRepository(next repository.TrackRepository, client *redis.Client) *CachedTrackRepository {
	return &CachedTrackRepository{TrackRepository: next, client: client, ttl: trackTTL}
}

func trackKey(id string) string {
	return trackKeyPrefix + id
}

// GetTrackByID serves from Redis when possible. Cache failures fall through to the
// catalog; they never fail the lookup.
func (c *CachedTrackRepository) GetTrackByID(ctx context.Context, id string) (*model.Track, error) {
	data, err := c.client.Get(ctx, trackKey(id)).Bytes()
	switch {
	case err == nil:
		if track, jerr := unmarshalTrack(data); jerr == nil {
			return track, nil
		}
		logger.Warn("discarding corrupt cached track", logger.String("trackId", id))
	case errors.Is(err, redis.Nil):
	default:
		logger.Warn("track cache read failed", logger.String("trackId", id), logger.ErrorField(err))
	}

	track, err := c.TrackRepository.GetTrackByID(ctx, id)
	if err != nil || track == nil {
		return track, err
	}
	c.store(ctx, track)
	return track, nil
}

func (c *CachedTrackRepository) DeleteTrack(ctx context.Context, id string) (bool, error) {
	deleted, err := c.TrackRepository.DeleteTrack(ctx, id)
	if derr := c.client.Del(ctx, trackKey(id)).Err(); derr != nil {
		logger.Warn("track cache invalidation failed", logger.String("trackId", id), logger.ErrorField(derr))
	}
	return deleted, err
}

// store caches track. Failures are logged only.
func (c *CachedTrackRepository) store(ctx context.Context, track *model.Track) {
	data, err := marshalTrack(track)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, trackKey(track.ID), data, c.ttl).Err(); err != nil {
		logger.Warn("track cache write failed", logger.String("trackId", track.ID), logger.ErrorField(err))
	}
}

// cachedTrack mirrors model.Track including FilePath, which the API form hides.
type cachedTrack struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"originalName"`
	FileSize     int64     `json:"fileSize"`
	Duration     *float64  `json:"duration"`
	MimeType     string    `json:"mimeType"`
	FilePath     string    `json:"filePath"`
	CreatedAt    time.Time `json:"createdAt"`
}

func marshalTrack(t *model.Track) ([]byte, error) {
	return json.Marshal(cachedTrack(*t))
}

func unmarshalTrack(data []byte) (*model.Track, error) {
	var ct cachedTrack
	if err := json.Unmarshal(data, &ct); err != nil {
		return nil, err
	}
	t := model.Track(ct)
	return &t, nil
}
