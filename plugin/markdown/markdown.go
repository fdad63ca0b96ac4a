// Package markdown renders assistant replies to HTML.
package markdown

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

// Service renders markdown to HTML. Raw HTML in the source is dropped and
// dangerous link schemes are neutralized.
type Service interface {
	RenderHTML(source []byte) (string, error)
}

type options struct {
	hardWraps bool
	headingID bool
}

// Option configures the markdown service.
type Option func(*options)

// WithHardWraps renders single newlines as <br>.
func WithHardWraps() Option {
	return func(o *options) {
		o.hardWraps = true
	}
}

// WithHeadingID adds generated ids to headings.
func WithHeadingID() Option {
	return func(o *options) {
		o.headingID = true
	}
}

type service struct {
	md goldmark.Markdown
}

// NewService creates a markdown service with GitHub flavored extensions.
func NewService(opts ...Option) Service {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	var parserOptions []parser.Option
	if o.headingID {
		parserOptions = append(parserOptions, parser.WithAutoHeadingID())
	}
	var rendererOptions []goldmark.Option
	if o.hardWraps {
		rendererOptions = append(rendererOptions, goldmark.WithRendererOptions(html.WithHardWraps()))
	}

	md := goldmark.New(append([]goldmark.Option{
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parserOptions...),
	}, rendererOptions...)...)
	return &service{md: md}
}

func (s *service) RenderHTML(source []byte) (string, error) {
	var buf bytes.Buffer
	if err := s.md.Convert(source, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
