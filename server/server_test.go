package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"WaveDeck/config"
	"WaveDeck/core/audio"
	"WaveDeck/core/catalog"
	"WaveDeck/internal/testutil"
	"WaveDeck/model"
	"WaveDeck/repository"
	"WaveDeck/storage"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	srv     *httptest.Server
	handler *APIHandler
	repo    repository.TrackRepository
	store   *storage.LocalStore
	hub     *catalog.Hub
	dir     string
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewLocalStore(dir)
	require.NoError(t, err)

	cfg := &config.Config{
		UploadDir:            dir,
		MaxUploadBytes:       50 << 20,
		MaxConcurrentUploads: 5,
		DurationProbe:        config.ProbeBeep,
	}
	for _, m := range mutate {
		m(cfg)
	}

	repo := repository.NewMemoryTrackRepository()
	hub := catalog.NewHub(repo.GetAllTracks)
	go hub.Run()
	t.Cleanup(hub.Stop)

	h := NewAPIHandler(repo, store, audio.BeepProber{}, hub, cfg)
	srv := httptest.NewServer(NewRouter(h, ""))
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, handler: h, repo: repo, store: store, hub: hub, dir: dir}
}

func multipartBody(t *testing.T, field, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func (e *testEnv) upload(t *testing.T, filename, contentType string, data []byte) *http.Response {
	t.Helper()
	body, ct := multipartBody(t, "audio", filename, contentType, data)
	resp, err := http.Post(e.srv.URL+"/tracks/upload", ct, body)
	require.NoError(t, err)
	return resp
}

func (e *testEnv) uploadTrack(t *testing.T, filename string, data []byte) *model.Track {
	t.Helper()
	resp := e.upload(t, filename, "audio/wav", data)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var track model.Track
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&track))
	return &track
}

func (e *testEnv) get(t *testing.T, path, rangeHeader string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, e.srv.URL+path, nil)
	require.NoError(t, err)
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func (e *testEnv) listTracks(t *testing.T) []*model.Track {
	t.Helper()
	resp, body := e.get(t, "/tracks", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var tracks []*model.Track
	require.NoError(t, json.Unmarshal(body, &tracks))
	return tracks
}

func (e *testEnv) storedFiles(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(e.dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}

func messageOf(t *testing.T, body []byte) string {
	t.Helper()
	var m struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(body, &m), string(body))
	return m.Message
}

func TestUploadListAndRangeStream(t *testing.T) {
	env := newTestEnv(t)
	data := testutil.WAV(10, 8000)

	track := env.uploadTrack(t, "tone.wav", data)
	assert.NotEmpty(t, track.ID)
	assert.Equal(t, "tone.wav", track.OriginalName)
	assert.Equal(t, int64(len(data)), track.FileSize)
	assert.Equal(t, "audio/wav", track.MimeType)
	assert.True(t, strings.HasSuffix(track.Filename, ".wav"))
	assert.NotEqual(t, "tone.wav", track.Filename)
	require.NotNil(t, track.Duration)
	assert.InDelta(t, 10.0, *track.Duration, 0.01)

	tracks := env.listTracks(t)
	require.Len(t, tracks, 1)
	assert.Equal(t, track.ID, tracks[0].ID)

	resp, body := env.get(t, "/tracks/"+track.ID+"/stream", "bytes=0-99")
	assert.Equal(t, http.StatusPartialContent, resp.StatusCode)
	assert.Equal(t, fmt.Sprintf("bytes 0-99/%d", len(data)), resp.Header.Get("Content-Range"))
	assert.Equal(t, "100", resp.Header.Get("Content-Length"))
	assert.Equal(t, "bytes", resp.Header.Get("Accept-Ranges"))
	assert.Equal(t, "audio/wav", resp.Header.Get("Content-Type"))
	assert.Equal(t, data[:100], body)
}

func TestStreamFullBody(t *testing.T) {
	env := newTestEnv(t)
	data := testutil.WAV(2, 8000)
	track := env.uploadTrack(t, "two.wav", data)

	resp, body := env.get(t, "/tracks/"+track.ID+"/stream", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, strconv.Itoa(len(data)), resp.Header.Get("Content-Length"))
	assert.Empty(t, resp.Header.Get("Content-Range"))
	assert.Equal(t, data, body)
}

func TestStreamHead(t *testing.T) {
	env := newTestEnv(t)
	data := testutil.WAV(1, 8000)
	track := env.uploadTrack(t, "one.wav", data)

	resp, err := http.Head(env.srv.URL + "/tracks/" + track.ID + "/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, strconv.Itoa(len(data)), resp.Header.Get("Content-Length"))
	assert.Empty(t, body)
}

func TestStreamRangeVariants(t *testing.T) {
	env := newTestEnv(t)
	data := testutil.WAV(1, 8000)
	size := len(data)
	track := env.uploadTrack(t, "one.wav", data)
	path := "/tracks/" + track.ID + "/stream"

	t.Run("open ended", func(t *testing.T) {
		resp, body := env.get(t, path, "bytes=100-")
		assert.Equal(t, http.StatusPartialContent, resp.StatusCode)
		assert.Equal(t, fmt.Sprintf("bytes 100-%d/%d", size-1, size), resp.Header.Get("Content-Range"))
		assert.Equal(t, data[100:], body)
	})

	t.Run("last byte", func(t *testing.T) {
		resp, body := env.get(t, path, fmt.Sprintf("bytes=%d-%d", size-1, size-1))
		assert.Equal(t, http.StatusPartialContent, resp.StatusCode)
		assert.Equal(t, data[size-1:], body)
	})

	t.Run("malformed falls back to full body", func(t *testing.T) {
		for _, header := range []string{"bytes=abc", "items=0-10", "bytes=-500", "bytes=0-1,5-6"} {
			resp, body := env.get(t, path, header)
			assert.Equal(t, http.StatusOK, resp.StatusCode, header)
			assert.Equal(t, data, body, header)
		}
	})

	t.Run("end past file is 416", func(t *testing.T) {
		resp, body := env.get(t, path, fmt.Sprintf("bytes=0-%d", size))
		assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, resp.StatusCode)
		assert.Equal(t, fmt.Sprintf("bytes */%d", size), resp.Header.Get("Content-Range"))
		assert.NotEmpty(t, messageOf(t, body))
	})

	t.Run("start past end is 416", func(t *testing.T) {
		resp, _ := env.get(t, path, "bytes=50-10")
		assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, resp.StatusCode)
	})
}

func TestConcurrentRangeReads(t *testing.T) {
	env := newTestEnv(t)
	data := testutil.WAV(3, 8000)
	track := env.uploadTrack(t, "three.wav", data)
	path := env.srv.URL + "/tracks/" + track.ID + "/stream"

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			start := i * 1000
			end := start + 499
			req, _ := http.NewRequest(http.MethodGet, path, nil)
			req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				errs <- err
				return
			}
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				errs <- err
				return
			}
			if resp.StatusCode != http.StatusPartialContent || !bytes.Equal(body, data[start:end+1]) {
				errs <- fmt.Errorf("range %d-%d: status %d, %d bytes", start, end, resp.StatusCode, len(body))
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestUploadRejectsNonAudio(t *testing.T) {
	env := newTestEnv(t)

	resp := env.upload(t, "notes.txt", "text/plain", []byte("hello"))
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid file type. Only audio files are allowed.", messageOf(t, body))
	assert.Empty(t, env.storedFiles(t))
	assert.Empty(t, env.listTracks(t))
}

func TestUploadMissingField(t *testing.T) {
	env := newTestEnv(t)
	body, ct := multipartBody(t, "file", "tone.wav", "audio/wav", testutil.WAV(1, 8000))
	resp, err := http.Post(env.srv.URL+"/tracks/upload", ct, body)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, env.storedFiles(t))
}

func TestUploadTooLarge(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.MaxUploadBytes = 1000 })

	resp := env.upload(t, "big.wav", "audio/wav", testutil.WAV(1, 8000))
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, messageOf(t, body), "File too large")
	assert.Empty(t, env.storedFiles(t))
}

func TestUploadBusy(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.MaxConcurrentUploads = 1 })
	env.handler.uploadSemaphore <- struct{}{}
	defer func() { <-env.handler.uploadSemaphore }()

	resp := env.upload(t, "tone.wav", "audio/wav", testutil.WAV(1, 8000))
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestUploadUnprobeableKeepsNullDuration(t *testing.T) {
	env := newTestEnv(t)
	resp := env.upload(t, "clip.ogg", "audio/ogg", []byte("OggS not really"))
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var raw map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	assert.Contains(t, raw, "duration")
	assert.Nil(t, raw["duration"])
	assert.NotContains(t, raw, "filePath")
}

func TestDeleteTwice(t *testing.T) {
	env := newTestEnv(t)
	track := env.uploadTrack(t, "tone.wav", testutil.WAV(1, 8000))
	require.Len(t, env.storedFiles(t), 1)

	del := func() (*http.Response, []byte) {
		req, _ := http.NewRequest(http.MethodDelete, env.srv.URL+"/tracks/"+track.ID, nil)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp, body
	}

	resp, body := del()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Track deleted successfully", messageOf(t, body))
	assert.Empty(t, env.storedFiles(t))
	assert.Empty(t, env.listTracks(t))

	resp, body = del()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Track not found", messageOf(t, body))

	resp, _ = env.get(t, "/tracks/"+track.ID+"/stream", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestConcurrentDeleteSingleSuccess(t *testing.T) {
	env := newTestEnv(t)
	track := env.uploadTrack(t, "tone.wav", testutil.WAV(1, 8000))

	var wg sync.WaitGroup
	statuses := make(chan int, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, _ := http.NewRequest(http.MethodDelete, env.srv.URL+"/tracks/"+track.ID, nil)
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return
			}
			resp.Body.Close()
			statuses <- resp.StatusCode
		}()
	}
	wg.Wait()
	close(statuses)

	ok := 0
	for status := range statuses {
		if status == http.StatusOK {
			ok++
		} else {
			assert.Equal(t, http.StatusNotFound, status)
		}
	}
	assert.Equal(t, 1, ok)
}

func TestStreamUnknownTrack(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.get(t, "/tracks/does-not-exist/stream", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Track not found", messageOf(t, body))
}

func TestStreamFileMissing(t *testing.T) {
	env := newTestEnv(t)
	// Register the record without a file, as if the file vanished afterwards.
	track := &model.Track{Filename: "gone.wav", OriginalName: "gone.wav", MimeType: "audio/wav"}
	require.NoError(t, env.repo.CreateTrack(context.Background(), track))

	resp, body := env.get(t, "/tracks/"+track.ID+"/stream", "bytes=0-10")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Audio file not found", messageOf(t, body))
}

func TestJanitorPrunesRemovedFiles(t *testing.T) {
	env := newTestEnv(t)
	track := env.uploadTrack(t, "tone.wav", testutil.WAV(1, 8000))
	require.NoError(t, os.Remove(filepath.Join(env.dir, track.Filename)))

	NewJanitor(env.repo, env.hub).FileRemoved(track.Filename)
	assert.Empty(t, env.listTracks(t))

	// a second notification is harmless
	NewJanitor(env.repo, nil).FileRemoved(track.Filename)
}

func TestEventsFeed(t *testing.T) {
	env := newTestEnv(t)
	existing := env.uploadTrack(t, "first.wav", testutil.WAV(1, 8000))

	wsURL := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/tracks/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() catalog.Message {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var msg catalog.Message
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	snapshot := read()
	assert.Equal(t, catalog.MsgTypeSync, snapshot.Type)
	require.Len(t, snapshot.Tracks, 1)
	assert.Equal(t, existing.ID, snapshot.Tracks[0].ID)

	created := env.uploadTrack(t, "second.wav", testutil.WAV(1, 8000))
	msg := read()
	assert.Equal(t, catalog.MsgTypeTrackCreated, msg.Type)
	assert.Equal(t, created.ID, msg.TrackID)

	req, _ := http.NewRequest(http.MethodDelete, env.srv.URL+"/tracks/"+created.ID, nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	msg = read()
	assert.Equal(t, catalog.MsgTypeTrackDeleted, msg.Type)
	assert.Equal(t, created.ID, msg.TrackID)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	req, _ := http.NewRequest(http.MethodOptions, env.srv.URL+"/tracks/abc/stream", nil)
	req.Header.Set("Origin", "http://example.test")
	req.Header.Set("Access-Control-Request-Headers", "Range")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), "Range")
	assert.Contains(t, resp.Header.Get("Access-Control-Expose-Headers"), "Content-Range")
}

func TestRecoverMiddleware(t *testing.T) {
	router := mux.NewRouter()
	router.Use(recoverMiddleware)
	router.HandleFunc("/boom", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", messageOf(t, rec.Body.Bytes()))
}

func TestEmptyCatalogListsEmptyArray(t *testing.T) {
	env := newTestEnv(t)
	_, body := env.get(t, "/tracks", "")
	assert.JSONEq(t, `[]`, string(body))
}

func TestStaticHandlerFallsBackToIndex(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>wavedeck</html>"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0644))

	h := NewAPIHandler(repository.NewMemoryTrackRepository(), storage.NewLocalStoreFs(nil), nil, nil, &config.Config{MaxConcurrentUploads: 1})
	srv := httptest.NewServer(NewRouter(h, dir))
	defer srv.Close()

	for path, want := range map[string]string{
		"/app.js":       "console.log(1)",
		"/library/song": "<html>wavedeck</html>",
	} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Equal(t, want, string(body), path)
	}

	// API routes still win over the UI
	resp, err := http.Get(srv.URL + "/tracks")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.JSONEq(t, `[]`, string(body))
}
