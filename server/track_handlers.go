package server

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"WaveDeck/apperr"
	"WaveDeck/config"
	"WaveDeck/core/audio"
	"WaveDeck/core/catalog"
	"WaveDeck/logger"
	"WaveDeck/model"
	"WaveDeck/repository"
	"WaveDeck/storage"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/samber/lo"
)

// AllowedAudioTypes are the MIME types accepted by the upload endpoint.
var AllowedAudioTypes = []string{
	"audio/mpeg", "audio/mp3", // MP3
	"audio/wav", "audio/x-wav", // WAV
	"audio/ogg", // OGG
}

const (
	uploadField = "audio"
	// multipart envelope allowance on top of the file size limit
	formOverhead  = 1 << 20
	formMemory    = 8 << 20
	uploadTimeout = 5 * time.Minute
	probeTimeout  = 30 * time.Second
)

// APIHandler serves the track catalog and audio streams.
type APIHandler struct {
	trackRepo repository.TrackRepository
	store     storage.Store
	prober    audio.Prober
	hub       *catalog.Hub
	cfg       *config.Config

	// uploadSemaphore bounds concurrent uploads
	uploadSemaphore chan struct{}
}

// NewAPIHandler creates the handler. hub and prober may be nil.
func NewAPIHandler(
	trackRepo repository.TrackRepository,
	store storage.Store,
	prober audio.Prober,
	hub *catalog.Hub,
	cfg *config.Config,
) *APIHandler {
	if prober == nil {
		prober = audio.NopProber{}
	}
	maxConcurrent := cfg.MaxConcurrentUploads
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &APIHandler{
		trackRepo:       trackRepo,
		store:           store,
		prober:          prober,
		hub:             hub,
		cfg:             cfg,
		uploadSemaphore: make(chan struct{}, maxConcurrent),
	}
}

// RegisterRoutes registers the API routes.
func (h *APIHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/tracks", h.GetTracksHandler).Methods(http.MethodGet)
	router.HandleFunc("/tracks/upload", h.UploadTrackHandler).Methods(http.MethodPost)
	router.HandleFunc("/tracks/events", h.EventsHandler).Methods(http.MethodGet)
	router.HandleFunc("/tracks/{id}/stream", h.StreamHandler).Methods(http.MethodGet, http.MethodHead)
	router.HandleFunc("/tracks/{id}", h.DeleteTrackHandler).Methods(http.MethodDelete)
}

// GetTracksHandler lists every track in upload order.
func (h *APIHandler) GetTracksHandler(w http.ResponseWriter, r *http.Request) {
	tracks, err := h.trackRepo.GetAllTracks(r.Context())
	if err != nil {
		writeAppError(w, apperr.IO(err, "list tracks"), "Failed to fetch tracks")
		return
	}
	if tracks == nil {
		tracks = []*model.Track{}
	}
	writeJSON(w, http.StatusOK, tracks)
}

// UploadTrackHandler stores one audio file from the "audio" form field and
// registers it in the catalog.
func (h *APIHandler) UploadTrackHandler(w http.ResponseWriter, r *http.Request) {
	select {
	case h.uploadSemaphore <- struct{}{}:
		defer func() { <-h.uploadSemaphore }()
	default:
		logger.Warn("upload rejected, server busy", logger.Int("maxConcurrent", cap(h.uploadSemaphore)))
		writeError(w, http.StatusServiceUnavailable, "Server is busy, please try again later")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), uploadTimeout)
	defer cancel()

	track, err := h.receiveUpload(ctx, w, r)
	if err != nil {
		writeAppError(w, err, "Failed to upload track")
		return
	}

	logger.Info("track uploaded",
		logger.String("trackId", track.ID),
		logger.String("originalName", track.OriginalName),
		logger.String("size", humanize.IBytes(uint64(track.FileSize))),
		logger.String("mimeType", track.MimeType))

	if h.hub != nil {
		h.hub.TrackCreated(track)
	}
	writeJSON(w, http.StatusCreated, track)
}

func (h *APIHandler) tooLarge() error {
	return apperr.Validation("File too large. Maximum size is %s", humanize.IBytes(uint64(h.cfg.MaxUploadBytes)))
}

func (h *APIHandler) receiveUpload(ctx context.Context, w http.ResponseWriter, r *http.Request) (*model.Track, error) {
	if r.ContentLength > h.cfg.MaxUploadBytes+formOverhead {
		return nil, h.tooLarge()
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes+formOverhead)

	if err := r.ParseMultipartForm(formMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, h.tooLarge()
		}
		return nil, apperr.Validation("Failed to parse upload form")
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			logger.Warn("failed to remove multipart temp files", logger.ErrorField(err))
		}
	}()

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		return nil, apperr.Validation("No audio file provided")
	}
	defer file.Close()

	if header.Size > h.cfg.MaxUploadBytes {
		return nil, h.tooLarge()
	}
	contentType := header.Header.Get("Content-Type")
	if !lo.Contains(AllowedAudioTypes, contentType) {
		logger.Warn("rejected upload with unsupported type",
			logger.String("contentType", contentType),
			logger.String("filename", header.Filename))
		return nil, apperr.Validation("Invalid file type. Only audio files are allowed.")
	}

	return h.storeUpload(ctx, file, header, contentType)
}

// storeUpload writes the validated file and creates its record. Bytes already
// stored are removed when a later step fails.
func (h *APIHandler) storeUpload(ctx context.Context, file multipart.File, header *multipart.FileHeader, contentType string) (*model.Track, error) {
	originalName := filepath.Base(header.Filename)
	ext := strings.ToLower(filepath.Ext(originalName))
	if len(ext) > 8 || strings.ContainsAny(ext, `\/ `) {
		ext = ""
	}
	key := uuid.NewString() + ext

	duration := h.probe(ctx, file, contentType, originalName)
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, apperr.IO(err, "rewind upload")
	}

	written, err := h.store.Save(ctx, key, file, header.Size, contentType)
	if err != nil {
		return nil, apperr.IO(err, "store upload %s", key)
	}

	track := &model.Track{
		Filename:     key,
		OriginalName: originalName,
		FileSize:     written,
		Duration:     duration,
		MimeType:     contentType,
		FilePath:     h.store.Location(key),
	}
	if err := h.trackRepo.CreateTrack(ctx, track); err != nil {
		h.discard(key)
		return nil, apperr.IO(err, "create track record")
	}
	return track, nil
}

func (h *APIHandler) probe(ctx context.Context, src io.ReadSeeker, contentType, name string) *float64 {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	seconds, err := h.prober.Probe(ctx, src, contentType)
	if err != nil {
		if !errors.Is(err, audio.ErrUnsupported) {
			logger.Warn("duration probe failed", logger.String("filename", name), logger.ErrorField(err))
		}
		return nil
	}
	return &seconds
}

// discard removes stored bytes that no record points to.
func (h *APIHandler) discard(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := h.store.Remove(ctx, key); err != nil && !errors.Is(err, storage.ErrNotExist) {
		logger.Error("failed to remove orphaned upload", logger.String("key", key), logger.ErrorField(err))
	}
}

// DeleteTrackHandler removes the record first, then its file. Of concurrent deletes
// of one id only the first succeeds; the rest get 404.
func (h *APIHandler) DeleteTrackHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	track, err := h.trackRepo.GetTrackByID(r.Context(), id)
	if err != nil {
		writeAppError(w, apperr.IO(err, "get track %s", id), "Failed to delete track")
		return
	}
	if track == nil {
		writeError(w, http.StatusNotFound, "Track not found")
		return
	}

	deleted, err := h.trackRepo.DeleteTrack(r.Context(), id)
	if err != nil {
		writeAppError(w, apperr.IO(err, "delete track %s", id), "Failed to delete track")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "Track not found")
		return
	}

	if err := h.store.Remove(r.Context(), track.Filename); err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			logger.Warn("track file already gone", logger.String("trackId", id), logger.String("key", track.Filename))
		} else {
			// The record is gone either way; the file is only orphaned.
			logger.Error("failed to remove track file", logger.String("trackId", id), logger.ErrorField(err))
		}
	}

	logger.Info("track deleted", logger.String("trackId", id), logger.String("originalName", track.OriginalName))
	if h.hub != nil {
		h.hub.TrackDeleted(id)
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Track deleted successfully"})
}
