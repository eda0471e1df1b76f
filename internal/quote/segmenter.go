// Package quote splits e-mail bodies into the part written by the sender
// of a message and the part quoted or forwarded from earlier messages.
//
// HTML bodies are parsed into a private tree, scanned for the first quote
// boundary (a Gmail-style quote, or a reply attribution followed by a
// blockquote) and serialized in two halves. Plain-text bodies are scanned
// line by line for attribution lines and ">" prefixes.
//
// Everything in this package is pure and synchronous; a Segmenter holds
// only read-only options and is safe for concurrent use.
package quote

import "log/slog"

// DefaultMaxDepth is how many wrapper levels the boundary scan descends
// before giving up and treating the rest of the body as main content.
const DefaultMaxDepth = 32

// Segmenter splits message bodies. The zero value is not usable; use New.
type Segmenter struct {
	maxDepth int
	log      *slog.Logger
}

// Option configures a Segmenter.
type Option func(*Segmenter)

// WithMaxDepth bounds the nesting depth searched for a quote boundary.
// Values below 1 are ignored.
func WithMaxDepth(depth int) Option {
	return func(s *Segmenter) {
		if depth > 0 {
			s.maxDepth = depth
		}
	}
}

// WithLogger sets the logger used for debug diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(s *Segmenter) {
		s.log = log
	}
}

// New creates a Segmenter with the given options.
func New(opts ...Option) *Segmenter {
	s := &Segmenter{maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Segmenter) logger() *slog.Logger {
	if s.log != nil {
		return s.log
	}
	return slog.Default()
}

var defaultSegmenter = New()

// ParseHTMLBody segments an HTML body with default options.
func ParseHTMLBody(body string) HTMLResult {
	return defaultSegmenter.ParseHTMLBody(body)
}

// ParseTextBody segments a plain-text body with default options.
func ParseTextBody(body string) TextResult {
	return defaultSegmenter.ParseTextBody(body)
}

// SanitizeAndRewriteInlineImages sanitizes an HTML body and points its
// cid: images at the attachment proxy, using default options.
func SanitizeAndRewriteInlineImages(body string, attachments []Attachment, url ImageURL) SanitizedResult {
	return defaultSegmenter.SanitizeAndRewriteInlineImages(body, attachments, url)
}
