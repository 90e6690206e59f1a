package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"WaveDeck/logger"
	"WaveDeck/model"

	"gorm.io/gorm"
)

// gormTrackRepository implements TrackRepository on MySQL through GORM.
type gormTrackRepository struct {
	db *gorm.DB
}

// NewGormTrackRepository creates a catalog backed by the given GORM handle.
// Call MigrateTracks once before use.
func NewGormTrackRepository(db *gorm.DB) TrackRepository {
	return &gormTrackRepository{db: db}
}

// MigrateTracks creates or updates the audio_tracks table.
func MigrateTracks(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.Track{}); err != nil {
		return fmt.Errorf("failed to migrate audio_tracks: %w", err)
	}
	return nil
}

func (r *gormTrackRepository) CreateTrack(ctx context.Context, track *model.Track) error {
	prepareTrack(track)

	if err := r.db.WithContext(ctx).Create(track).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(strings.ToLower(err.Error()), "duplicate entry") {
			return ErrDuplicateTrack
		}
		return fmt.Errorf("failed to insert track %s: %w", track.ID, err)
	}
	logger.Debug("track created",
		logger.String("trackId", track.ID),
		logger.String("originalName", track.OriginalName))
	return nil
}

func (r *gormTrackRepository) first(ctx context.Context, query string, arg string) (*model.Track, error) {
	var track model.Track
	err := r.db.WithContext(ctx).Where(query, arg).First(&track).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query track (%s %s): %w", query, arg, err)
	}
	return &track, nil
}

func (r *gormTrackRepository) GetTrackByID(ctx context.Context, id string) (*model.Track, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *gormTrackRepository) GetTrackByFilename(ctx context.Context, filename string) (*model.Track, error) {
	return r.first(ctx, "filename = ?", filename)
}

func (r *gormTrackRepository) GetAllTracks(ctx context.Context) ([]*model.Track, error) {
	tracks := make([]*model.Track, 0)
	if err := r.db.WithContext(ctx).Order("created_at ASC").Order("id ASC").Find(&tracks).Error; err != nil {
		return nil, fmt.Errorf("failed to list tracks: %w", err)
	}
	return tracks, nil
}

func (r *gormTrackRepository) DeleteTrack(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Track{})
	if res.Error != nil {
		return false, fmt.Errorf("failed to delete track %s: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}
