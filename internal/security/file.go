package security

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// MaxFileSize is the upper bound for a single attachment.
const MaxFileSize int64 = 10 * 1024 * 1024

// Rejection reasons reported by ValidateFile.
const (
	ReasonTooLarge       = "File size exceeds 10MB limit"
	ReasonTypeNotAllowed = "File type not allowed"
)

// allowedTypes is the only list of attachment MIME types the service accepts.
// The upload endpoint and the send path both consult it.
var allowedTypes = map[string]struct{}{
	"image/jpeg":         {},
	"image/png":          {},
	"image/gif":          {},
	"image/webp":         {},
	"video/mp4":          {},
	"video/webm":         {},
	"application/pdf":    {},
	"text/plain":         {},
	"application/msword": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
}

// FileError describes why a file was rejected.
type FileError struct {
	Name   string
	Reason string
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, e.Reason)
}

// IsTooLarge reports whether the rejection was caused by the size limit.
func (e *FileError) IsTooLarge() bool {
	return e.Reason == ReasonTooLarge
}

// IsAllowedType reports whether mimeType is on the attachment allow-list.
func IsAllowedType(mimeType string) bool {
	_, ok := allowedTypes[mimeType]
	return ok
}

// ValidateFile checks a single file against the size limit and the allow-list.
func ValidateFile(name, mimeType string, size int64) error {
	if size > MaxFileSize {
		return &FileError{Name: name, Reason: ReasonTooLarge}
	}
	if !IsAllowedType(mimeType) {
		return &FileError{Name: name, Reason: ReasonTypeNotAllowed}
	}
	return nil
}

// FileMeta is the metadata ValidateFiles needs about a candidate attachment.
type FileMeta struct {
	Name string
	Type string
	Size int64
}

// ValidateFiles validates a batch. It returns the indexes of accepted files
// and a multierror with one *FileError per rejected file. A rejection never
// prevents the other files from being accepted.
func ValidateFiles(files []FileMeta) ([]int, error) {
	var (
		accepted []int
		result   *multierror.Error
	)
	for i, f := range files {
		if err := ValidateFile(f.Name, f.Type, f.Size); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		accepted = append(accepted, i)
	}
	return accepted, result.ErrorOrNil()
}
