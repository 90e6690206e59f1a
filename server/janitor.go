package server

import (
	"context"
	"time"

	"WaveDeck/core/catalog"
	"WaveDeck/logger"
	"WaveDeck/repository"
)

// Janitor drops catalog records whose audio file was removed behind the server's
// back, so the catalog does not list tracks that can only 404.
type Janitor struct {
	trackRepo repository.TrackRepository
	hub       *catalog.Hub
}

// NewJanitor creates a janitor. hub may be nil.
func NewJanitor(trackRepo repository.TrackRepository, hub *catalog.Hub) *Janitor {
	return &Janitor{trackRepo: trackRepo, hub: hub}
}

// FileRemoved handles the disappearance of the file stored under key.
func (j *Janitor) FileRemoved(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	track, err := j.trackRepo.GetTrackByFilename(ctx, key)
	if err != nil {
		logger.Warn("janitor lookup failed", logger.String("key", key), logger.ErrorField(err))
		return
	}
	if track == nil {
		// already deleted through the API
		return
	}

	deleted, err := j.trackRepo.DeleteTrack(ctx, track.ID)
	if err != nil {
		logger.Warn("janitor delete failed", logger.String("trackId", track.ID), logger.ErrorField(err))
		return
	}
	if !deleted {
		return
	}

	logger.Info("pruned track whose file was removed",
		logger.String("trackId", track.ID),
		logger.String("key", key))
	if j.hub != nil {
		j.hub.TrackDeleted(track.ID)
	}
}
