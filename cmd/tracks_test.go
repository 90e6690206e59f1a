package cmd

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"WaveDeck/config"
	"WaveDeck/core/audio"
	"WaveDeck/internal/testutil"
	"WaveDeck/repository"
	"WaveDeck/server"
	"WaveDeck/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T) (*httptest.Server, repository.TrackRepository) {
	t.Helper()
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	repo := repository.NewMemoryTrackRepository()
	cfg := &config.Config{MaxUploadBytes: 50 << 20, MaxConcurrentUploads: 2}
	srv := httptest.NewServer(server.NewRouter(server.NewAPIHandler(repo, store, audio.BeepProber{}, nil, cfg), ""))
	t.Cleanup(srv.Close)
	return srv, repo
}

func runCLI(t *testing.T, args ...string) error {
	t.Helper()
	t.Cleanup(func() {
		uploadType, fetchRange, fetchOutput = "", "", ""
	})
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(context.Background())
}

func TestTracksUploadFetchDelete(t *testing.T) {
	srv, repo := startServer(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "tone.wav")
	data := testutil.WAV(1, 8000)
	require.NoError(t, os.WriteFile(src, data, 0644))

	require.NoError(t, runCLI(t, "tracks", "upload", "--server", srv.URL, src))
	tracks, err := repo.GetAllTracks(context.Background())
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	id := tracks[0].ID

	require.NoError(t, runCLI(t, "tracks", "list", "--server", srv.URL))

	out := filepath.Join(dir, "head.bin")
	require.NoError(t, runCLI(t, "tracks", "fetch", "--server", srv.URL, "--range", "bytes=0-43", "-o", out, id))
	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, data[:44], got)

	require.NoError(t, runCLI(t, "tracks", "delete", "--server", srv.URL, id))
	assert.Error(t, runCLI(t, "tracks", "delete", "--server", srv.URL, id))
}

func TestTracksUploadUnknownExtension(t *testing.T) {
	srv, _ := startServer(t)
	src := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(src, []byte("hi"), 0644))

	err := runCLI(t, "tracks", "upload", "--server", srv.URL, src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--type")
}

func TestTracksUploadRejectedByServer(t *testing.T) {
	srv, repo := startServer(t)
	src := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(src, []byte("hi"), 0644))

	err := runCLI(t, "tracks", "upload", "--server", srv.URL, "--type", "text/plain", src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid file type")

	tracks, err := repo.GetAllTracks(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tracks)
}
