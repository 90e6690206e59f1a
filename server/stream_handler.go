package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"WaveDeck/apperr"
	"WaveDeck/core/stream"
	"WaveDeck/logger"
	"WaveDeck/storage"

	"github.com/gorilla/mux"
)

// StreamHandler serves the bytes of a track, honouring single byte ranges.
//
// Without a usable Range header the whole file is sent with 200. A satisfiable
// range gets 206 with exactly the requested bytes; a range outside the file gets 416.
func (h *APIHandler) StreamHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	track, err := h.trackRepo.GetTrackByID(r.Context(), id)
	if err != nil {
		writeAppError(w, apperr.IO(err, "get track %s", id), "Failed to stream track")
		return
	}
	if track == nil {
		writeError(w, http.StatusNotFound, "Track not found")
		return
	}

	obj, err := h.store.Open(r.Context(), track.Filename)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			logger.Warn("track file missing", logger.String("trackId", id), logger.String("key", track.Filename))
			writeError(w, http.StatusNotFound, "Audio file not found")
			return
		}
		writeAppError(w, apperr.IO(err, "open %s", track.Filename), "Failed to stream track")
		return
	}
	defer obj.Close()

	size := obj.Size()
	rng, partial, err := stream.ParseRange(r.Header.Get("Range"), size)
	if err != nil {
		w.Header().Set("Content-Range", stream.UnsatisfiedContentRange(size))
		writeAppError(w, err, "Requested range not satisfiable")
		return
	}

	header := w.Header()
	header.Set("Content-Type", track.MimeType)
	header.Set("Accept-Ranges", "bytes")

	start, length, status := int64(0), size, http.StatusOK
	if partial {
		start, length, status = rng.Start, rng.Length(), http.StatusPartialContent
		header.Set("Content-Range", rng.ContentRange())
	}
	header.Set("Content-Length", strconv.FormatInt(length, 10))

	if start > 0 {
		if _, err := obj.Seek(start, io.SeekStart); err != nil {
			header.Del("Content-Range")
			header.Del("Content-Length")
			writeAppError(w, apperr.IO(err, "seek %s", track.Filename), "Failed to stream track")
			return
		}
	}

	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}

	if n, err := io.CopyN(w, obj, length); err != nil {
		// Headers are out; the client sees a short body.
		logger.Warn("stream interrupted",
			logger.String("trackId", id),
			logger.Int64("sent", n),
			logger.Int64("want", length),
			logger.ErrorField(err))
	}
}
