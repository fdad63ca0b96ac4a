// Package preview keeps short-lived thumbnails for image attachments.
// Every handle handed out by Create must eventually be passed to Release.
package preview

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/lithammer/shortuuid/v4"
	"golang.org/x/sync/semaphore"

	// Register the WebP decoder with image.Decode.
	_ "golang.org/x/image/webp"
)

const (
	defaultMaxDimension = 320
	defaultConcurrency  = 3
	thumbnailMIMEType   = "image/jpeg"
)

// Preview is a rendered thumbnail owned by one user.
type Preview struct {
	Handle   string
	OwnerID  int32
	MIMEType string
	Data     []byte
}

// Registry maps opaque handles to thumbnails.
type Registry struct {
	mu    sync.RWMutex
	items map[string]*Preview

	sem          *semaphore.Weighted
	maxDimension int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		items:        make(map[string]*Preview),
		sem:          semaphore.NewWeighted(defaultConcurrency), // Limit to 3 concurrent thumbnail generations
		maxDimension: defaultMaxDimension,
	}
}

// Create renders a thumbnail of an image for ownerID and returns its handle.
func (r *Registry) Create(ctx context.Context, ownerID int32, mimeType string, data []byte) (string, error) {
	if !strings.HasPrefix(mimeType, "image/") {
		return "", fmt.Errorf("cannot preview %s", mimeType)
	}

	if err := r.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer r.sem.Release(1)

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}
	thumb := imaging.Fit(img, r.maxDimension, r.maxDimension, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return "", fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	p := &Preview{
		Handle:   shortuuid.New(),
		OwnerID:  ownerID,
		MIMEType: thumbnailMIMEType,
		Data:     buf.Bytes(),
	}

	r.mu.Lock()
	r.items[p.Handle] = p
	r.mu.Unlock()

	return p.Handle, nil
}

// Get returns the preview registered under handle.
func (r *Registry) Get(handle string) (*Preview, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.items[handle]
	return p, ok
}

// GetOwned is Get restricted to previews owned by ownerID.
func (r *Registry) GetOwned(handle string, ownerID int32) (*Preview, bool) {
	p, ok := r.Get(handle)
	if !ok || p.OwnerID != ownerID {
		return nil, false
	}
	return p, true
}

// Release drops the given handles and returns how many were registered.
// Unknown handles are ignored.
func (r *Registry) Release(handles ...string) int {
	if len(handles) == 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	released := 0
	for _, h := range handles {
		if _, ok := r.items[h]; ok {
			delete(r.items, h)
			released++
		}
	}
	if released > 0 {
		slog.Debug("released previews", "count", released, "remaining", len(r.items))
	}
	return released
}

// Len returns the number of live previews.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}
