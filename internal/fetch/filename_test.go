package fetch

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"rip.wav", "rip.wav"},
		{"../../etc/passwd", "_.._etc_passwd"},
		{"a\x00b\nc.mp3", "abc.mp3"},
		{"...", "download"},
		{"", "download"},
		{`C:\music\rip.flac`, "C__music_rip.flac"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeFilename(tt.in), tt.in)
	}
}

func TestSanitizeFilename_TruncatesKeepingExtension(t *testing.T) {
	got := sanitizeFilename(strings.Repeat("a", 300) + ".flac")

	assert.LessOrEqual(t, len(got), maxFilenameBytes)
	assert.True(t, strings.HasSuffix(got, ".flac"))
}

func TestURLFilename(t *testing.T) {
	u, _ := url.Parse("https://cgas.io/x/My%20Rip.ogg?dl=1") //nolint:errcheck // Test fixture
	assert.Equal(t, "My Rip.ogg", urlFilename(u))

	root, _ := url.Parse("https://cgas.io/") //nolint:errcheck // Test fixture
	assert.Equal(t, "download", urlFilename(root))
}

func TestPageTitle(t *testing.T) {
	assert.Equal(t, "404 Not Found", pageTitle(strings.NewReader("<title>404   Not Found</title>")))
	assert.Equal(t, "", pageTitle(strings.NewReader("<p>no title here</p>")))
}

func TestSanitizeFilename_ComposesUnicode(t *testing.T) {
	decomposed := "Poke\u0301mon.flac"

	assert.Equal(t, "Pok\u00e9mon.flac", sanitizeFilename(decomposed))
}
