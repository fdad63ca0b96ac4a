// Package attachment turns staged files into self-contained content blocks
// that can be embedded in a completion request.
package attachment

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Kind tags an encoded block.
type Kind string

const (
	KindImage    Kind = "image"
	KindDocument Kind = "document"
)

// maxConcurrentReads bounds EncodeAll.
const maxConcurrentReads = 4

// File is a staged attachment whose bytes can be opened for reading.
type File interface {
	Name() string
	MIMEType() string
	Open() (io.ReadCloser, error)
}

// Block is an encoded attachment.
type Block struct {
	Kind     Kind
	Name     string
	MIMEType string
	// DataURI is "data:<mime>;base64,<payload>".
	DataURI string
}

// ReadError reports a file whose bytes could not be read.
type ReadError struct {
	Name string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to read attachment %q: %v", e.Name, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// KindOf classifies a MIME type.
func KindOf(mimeType string) Kind {
	if strings.HasPrefix(mimeType, "image/") {
		return KindImage
	}
	return KindDocument
}

// Encode reads f completely and returns its data-URI block.
func Encode(ctx context.Context, f File) (Block, error) {
	if err := ctx.Err(); err != nil {
		return Block{}, err
	}

	rc, err := f.Open()
	if err != nil {
		return Block{}, &ReadError{Name: f.Name(), Err: err}
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return Block{}, &ReadError{Name: f.Name(), Err: err}
	}

	return Block{
		Kind:     KindOf(f.MIMEType()),
		Name:     f.Name(),
		MIMEType: f.MIMEType(),
		DataURI:  DataURI(f.MIMEType(), data),
	}, nil
}

// EncodeAll encodes files concurrently and returns the blocks in input order.
// Any read failure fails the whole batch.
func EncodeAll(ctx context.Context, files []File) ([]Block, error) {
	if len(files) == 0 {
		return nil, nil
	}

	blocks := make([]Block, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentReads)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			block, err := Encode(gctx, f)
			if err != nil {
				return err
			}
			blocks[i] = block
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return blocks, nil
}

// DataURI builds a base64 data URI.
func DataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
