package api

import (
	"bytes"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-faster/errors"
)

// snippetLen is the number of characters of a response body kept in errors.
const snippetLen = 200

var (
	// ErrNoBase is returned when no API base address is configured. Requests
	// are refused rather than resolved against an implicit origin.
	ErrNoBase = errors.New("API base not configured")

	// ErrNotJSON is wrapped by ContentTypeError. It almost always means the
	// API base points at the wrong host or a proxy served its own HTML page.
	ErrNotJSON = errors.New("backend did not return JSON")
)

// StatusError is returned for a non-2xx response. Body holds the beginning of
// the response body verbatim.
//
// When the body was an HTML page, Title holds its <title> and the error
// matches ErrNotJSON, since such pages come from a proxy or gateway rather
// than the API.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
	Title      string
	HTML       bool
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("HTTP %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	if e.Title != "" {
		msg += fmt.Sprintf(" (page %q)", e.Title)
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (e *StatusError) Unwrap() error {
	if e.HTML {
		return ErrNotJSON
	}
	return nil
}

// Rejected reports whether the server refused the request itself (4xx), as
// opposed to failing to handle it.
func (e *StatusError) Rejected() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// ContentTypeError is returned when a JSON body was expected but the server
// sent something else, typically an HTML page from a tunnel or gateway.
// The body never reaches the JSON decoder.
type ContentTypeError struct {
	StatusCode  int
	ContentType string
	// Title is the <title> of an HTML body, if any.
	Title   string
	Snippet string
}

func (e *ContentTypeError) Error() string {
	var b strings.Builder
	b.WriteString("backend did not return JSON (check the API base, or a proxy warning page intercepted the request): ")
	fmt.Fprintf(&b, "HTTP %d, content-type %q", e.StatusCode, e.ContentType)
	if e.Title != "" {
		fmt.Fprintf(&b, ", page %q", e.Title)
	}
	if e.Snippet != "" {
		b.WriteString(": ")
		b.WriteString(e.Snippet)
	}
	return b.String()
}

func (e *ContentTypeError) Unwrap() error {
	return ErrNotJSON
}

// checkResponse classifies a response before any decoding happens.
//
// Failed responses become a StatusError whatever their content type.
// Successful responses must be JSON, otherwise they become a ContentTypeError.
func checkResponse(method, path string, statusCode int, contentType string, body []byte) error {
	if statusCode < 200 || statusCode >= 300 {
		e := &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: statusCode,
			Body:       truncate(string(body), snippetLen),
		}
		if isHTML(contentType) {
			e.HTML = true
			e.Title = htmlTitle(body)
			e.Body = truncate(strings.TrimSpace(string(body)), snippetLen)
		}
		return e
	}
	if !isJSON(contentType) {
		return newContentTypeError(statusCode, contentType, body)
	}
	return nil
}

func newContentTypeError(statusCode int, contentType string, body []byte) *ContentTypeError {
	e := &ContentTypeError{
		StatusCode:  statusCode,
		ContentType: contentType,
		Snippet:     truncate(strings.TrimSpace(string(body)), snippetLen),
	}
	if isHTML(contentType) {
		e.Title = htmlTitle(body)
	}
	return e
}

func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}

func isJSON(contentType string) bool {
	mt := mediaType(contentType)
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

func isHTML(contentType string) bool {
	mt := mediaType(contentType)
	return mt == "text/html" || mt == "application/xhtml+xml"
}

func htmlTitle(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	return strings.Join(strings.Fields(doc.Find("title").First().Text()), " ")
}

// truncate cuts s to at most n characters without splitting a rune.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
