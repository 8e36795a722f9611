package fetch

import (
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"

	domainerrors "github.com/ripqoc/qoc-server/internal/errors"
)

const (
	maxTitleBytes    = 1 << 20
	maxFilenameBytes = 128
	fallbackFilename = "download"
)

// responseFilename picks the name a download is stored under. Servers that
// return something other than audio or video without naming a file are
// treated as failures; HTML error pages report their <title>.
func responseFilename(resp *http.Response) (string, error) {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil && params["filename"] != "" {
			return params["filename"], nil
		}
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.Contains(contentType, "audio") && !strings.Contains(contentType, "video") {
		if strings.Contains(contentType, "html") {
			if title := pageTitle(io.LimitReader(resp.Body, maxTitleBytes)); title != "" {
				return "", domainerrors.UnrecognizedMediaf("Filename cannot be parsed from the URL (server response: %s).", title)
			}
		}
		return "", domainerrors.UnrecognizedMedia("Unknown error trying to parse filename.")
	}

	return urlFilename(resp.Request.URL), nil
}

func urlFilename(u *url.URL) string {
	if u == nil {
		return fallbackFilename
	}
	base := path.Base(u.Path)
	if base == "/" || base == "." || base == "" {
		return fallbackFilename
	}
	return base
}

// sanitizeFilename keeps a server-supplied name from escaping the download
// directory or carrying control characters. Names are stored in NFC so the
// same rip uploaded from macOS and Windows lands under the same name.
func sanitizeFilename(name string) string {
	name = norm.NFC.String(name)
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == ':':
			return '_'
		case unicode.IsControl(r):
			return -1
		default:
			return r
		}
	}, name)
	name = strings.Trim(strings.TrimSpace(name), ".")
	if name == "" {
		return fallbackFilename
	}
	if len(name) > maxFilenameBytes {
		ext := path.Ext(name)
		if len(ext) > 16 {
			ext = ""
		}
		name = strings.ToValidUTF8(name[:maxFilenameBytes-len(ext)], "") + ext
	}
	return name
}

// pageTitle returns the trimmed text of the first <title> element.
func pageTitle(r io.Reader) string {
	doc, err := html.Parse(r)
	if err != nil {
		return ""
	}

	var find func(*html.Node) string
	find = func(n *html.Node) string {
		if n.Type == html.ElementNode && n.Data == "title" {
			var b strings.Builder
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.TextNode {
					b.WriteString(c.Data)
				}
			}
			return strings.Join(strings.Fields(b.String()), " ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if t := find(c); t != "" {
				return t
			}
		}
		return ""
	}
	return find(doc)
}
