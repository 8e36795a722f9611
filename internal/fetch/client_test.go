package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/ripqoc/qoc-server/internal/errors"
	"github.com/ripqoc/qoc-server/internal/logger"
)

func newTestClient(t *testing.T, opts Options) *Client {
	t.Helper()
	if opts.HostRPS == 0 {
		opts.HostRPS = 1000
		opts.HostBurst = 1000
	}
	c := New(opts, logger.Discard())
	t.Cleanup(c.Close)
	return c
}

func TestHead_ReturnsLowerCasedContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.Header().Set("Content-Type", "Audio/X-WAV")
	}))
	defer srv.Close()

	ct, err := newTestClient(t, Options{}).Head(context.Background(), srv.URL+"/rip.wav")

	require.NoError(t, err)
	assert.Equal(t, "audio/x-wav", ct)
}

func TestDownload_ContentDispositionName(t *testing.T) {
	body := strings.Repeat("RIFF", 20000) // spans several chunks
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Disposition", `attachment; filename="My Rip (final).wav"`)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	dir := filepath.Join(t.TempDir(), "downloads")
	dl, err := newTestClient(t, Options{}).Download(context.Background(), srv.URL+"/api/v2/file/abc", dir)
	require.NoError(t, err)

	assert.Equal(t, "My Rip (final).wav", dl.Filename)
	assert.True(t, strings.HasSuffix(dl.Path, "-My Rip (final).wav"))
	assert.Equal(t, dir, filepath.Dir(dl.Path))
	assert.Equal(t, int64(len(body)), dl.Size)

	data, err := os.ReadFile(dl.Path)
	require.NoError(t, err)
	assert.Equal(t, body, string(data))
}

func TestDownload_RFC5987Filename(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "audio/flac")
		w.Header().Set("Content-Disposition", `attachment; filename*=UTF-8''Ra%C3%BAl%20mix.flac`)
		_, _ = w.Write([]byte("fLaC"))
	}))
	defer srv.Close()

	dl, err := newTestClient(t, Options{}).Download(context.Background(), srv.URL, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "Raúl mix.flac", dl.Filename)
}

func TestDownload_NameFromURLForAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3"))
	}))
	defer srv.Close()

	dl, err := newTestClient(t, Options{}).Download(context.Background(), srv.URL+"/files/song%20one.mp3?x=1", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "song one.mp3", dl.Filename)
	assert.Equal(t, "audio/mpeg", dl.ContentType)
}

func TestDownload_ConcurrentSameNameDoNotCollide(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write([]byte("RIFF"))
	}))
	defer srv.Close()

	c := newTestClient(t, Options{})
	dir := t.TempDir()
	a, err := c.Download(context.Background(), srv.URL+"/rip.wav", dir)
	require.NoError(t, err)
	b, err := c.Download(context.Background(), srv.URL+"/rip.wav", dir)
	require.NoError(t, err)

	assert.NotEqual(t, a.Path, b.Path)
}

func TestDownload_HTMLPageReportsTitle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><head><title>\n  Google Drive - Quota exceeded </title></head><body>x</body></html>"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	_, err := newTestClient(t, Options{}).Download(context.Background(), srv.URL, dir)

	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrUnrecognizedMedia))
	assert.Equal(t, "Filename cannot be parsed from the URL (server response: Google Drive - Quota exceeded).", domainerrors.UserMessage(err))

	entries, _ := os.ReadDir(dir) //nolint:errcheck // Test assertion
	assert.Empty(t, entries)
}

func TestDownload_UnknownContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error":"nope"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, Options{}).Download(context.Background(), srv.URL, t.TempDir())

	require.Error(t, err)
	assert.Equal(t, "Unknown error trying to parse filename.", domainerrors.UserMessage(err))
}

func TestDownload_RedirectLoopIsBadURL(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL+r.URL.Path, http.StatusFound)
	}))
	defer srv.Close()

	_, err := newTestClient(t, Options{MaxRedirects: 3}).Download(context.Background(), srv.URL+"/loop", t.TempDir())

	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNetwork))
	assert.Equal(t, "Bad URL.", domainerrors.UserMessage(err))
}

func TestHead_TimeoutIsRequestTimedOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := newTestClient(t, Options{RequestTimeout: 50 * time.Millisecond}).Head(context.Background(), srv.URL)

	require.Error(t, err)
	assert.Equal(t, "Request timed out.", domainerrors.UserMessage(err))
}

func TestHead_ConnectionRefusedIsUnknownURLError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	target := srv.URL
	srv.Close()

	_, err := newTestClient(t, Options{}).Head(context.Background(), target)

	require.Error(t, err)
	assert.True(t, strings.HasPrefix(domainerrors.UserMessage(err), "Unknown URL error. "))
}

func TestHead_MissingHost(t *testing.T) {
	_, err := newTestClient(t, Options{}).Head(context.Background(), "not a url")

	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNetwork))
}
