// Package resolver rewrites share links from known hosts into URLs that can be
// fetched directly. It never touches the network.
package resolver

import (
	"regexp"
	"strings"

	domainerrors "github.com/ripqoc/qoc-server/internal/errors"
)

const (
	primaryHost     = "siiva-gunner.com/?id="
	primaryFileBase = "https://siiva-gunner.com/api/v2/file/"
	driveHost       = "drive.google.com"
	driveDownload   = "https://drive.usercontent.google.com/download?id=%s&export=download&confirm=t"
	dropboxHost     = "dropbox.com"
	aliasHost       = "catgirlsare.sexy"
	aliasTarget     = "cgas.io"
)

var ipMirror = regexp.MustCompile(`(?:\d{1,3}\.){3}\d{1,3}/\?id=`)

// Resolve returns the directly fetchable form of raw. URLs from unknown hosts
// are returned unchanged.
func Resolve(raw string) (string, error) {
	url := strings.TrimSpace(raw)
	if url == "" {
		return "", domainerrors.URLResolutionf("No URL was provided.")
	}

	switch {
	case strings.Contains(url, primaryHost):
		return strings.ReplaceAll(url, "?id=", "api/v2/file/"), nil

	case ipMirror.MatchString(url):
		_, id, _ := strings.Cut(url, "?id=")
		return primaryFileBase + id, nil

	case strings.Contains(url, driveHost):
		id := driveID(url)
		if id == "" {
			return "", domainerrors.URLResolutionf("Drive ID cannot be detected from URL: %s", url)
		}
		return strings.Replace(driveDownload, "%s", id, 1), nil

	case strings.Contains(url, dropboxHost):
		return strings.ReplaceAll(url, "&dl=0", "&dl=1"), nil

	case strings.Contains(url, aliasHost):
		return strings.ReplaceAll(url, aliasHost, aliasTarget), nil
	}

	return url, nil
}

// driveID extracts the file id from the three drive link shapes:
//
//	drive.google.com/open?id=FILEID
//	drive.google.com/file/d/FILEID/view?usp=sharing
//	drive.google.com/uc?id=FILEID&export=download
//
// When several shapes appear, the later one in that list wins.
func driveID(url string) string {
	var id string
	if _, rest, ok := strings.Cut(url, "open?id="); ok {
		id, _, _ = strings.Cut(rest, "&")
	}
	if _, rest, ok := strings.Cut(url, "file/d/"); ok {
		id, _, _ = strings.Cut(rest, "/")
	}
	if _, rest, ok := strings.Cut(url, "uc?id="); ok {
		id, _, _ = strings.Cut(rest, "&")
	}
	return id
}
