package link

import (
	"net/url"
	"path"
	"strings"
	"time"
)

// Link is a candidate discovered on a listing page: an absolute URL plus
// the anchor text it was found under.
type Link struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

// Dated is a Link with the calendar date recognized in its text or URL.
type Dated struct {
	Link
	Date time.Time `json:"date"`
}

// downloadableExts are the file extensions worth mirroring. Everything
// else (HTML pages, anchors, javascript links) is navigation, not data.
var downloadableExts = map[string]bool{
	".pdf":  true,
	".xls":  true,
	".xlsx": true,
	".csv":  true,
	".json": true,
	".zip":  true,
}

// IsDownloadable reports whether the URL path ends in a data-file extension.
func IsDownloadable(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return downloadableExts[strings.ToLower(path.Ext(u.Path))]
}

// contentTypeExts maps Content-Type values to file extensions for responses
// whose URL carries no usable suffix.
var contentTypeExts = []struct {
	mime string
	ext  string
}{
	{"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", ".xlsx"},
	{"application/vnd.ms-excel", ".xls"},
	{"application/pdf", ".pdf"},
	{"text/html", ".html"},
	{"text/csv", ".csv"},
	{"application/json", ".json"},
	{"application/zip", ".zip"},
}

// GuessExtension guesses a file extension from the URL path, falling back
// to the Content-Type header, then ".bin".
func GuessExtension(rawURL, contentType string) string {
	if u, err := url.Parse(rawURL); err == nil {
		if ext := strings.ToLower(path.Ext(u.Path)); ext != "" {
			return ext
		}
	}

	if contentType != "" {
		ct := strings.ToLower(contentType)
		for _, m := range contentTypeExts {
			if strings.Contains(ct, m.mime) {
				return m.ext
			}
		}
	}

	return ".bin"
}

// Filename returns the URL-decoded base name of the URL path, or "" when
// the path has none (trailing slash, bare host).
func Filename(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		return ""
	}
	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}
	return name
}
