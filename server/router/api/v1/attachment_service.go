package v1

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/hashicorp/go-multierror"
	"github.com/labstack/echo/v4"

	"github.com/hrygo/studychat/ai/exchange"
	"github.com/hrygo/studychat/internal/security"
	"github.com/hrygo/studychat/server/auth"
)

type rejectedFileResponse struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

type uploadResponse struct {
	Accepted []pendingResponse     `json:"accepted"`
	Rejected []rejectedFileResponse `json:"rejected"`
}

// UploadPending stages the multipart "files" for the next send. Rejected
// files are listed in the response and do not fail the request.
func (s *APIV1Service) UploadPending(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "expected a multipart form").SetInternal(err)
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "no files uploaded")
	}

	files := make([]*exchange.PendingAttachment, 0, len(headers))
	for _, fh := range headers {
		file, err := readUpload(fh)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("failed to read %s", fh.Filename)).SetInternal(err)
		}
		files = append(files, file)
	}

	staged, err := s.currentView(c).Attach(files)
	resp := uploadResponse{
		Accepted: make([]pendingResponse, 0, len(staged)),
		Rejected: []rejectedFileResponse{},
	}
	for _, a := range staged {
		resp.Accepted = append(resp.Accepted, pendingResponse{ID: a.ID, Name: a.Name(), Type: a.MIMEType(), Size: a.Size()})
	}
	if err != nil {
		var merr *multierror.Error
		if !errors.As(err, &merr) {
			return toHTTPError(err)
		}
		for _, e := range merr.Errors {
			var ferr *security.FileError
			if errors.As(e, &ferr) {
				resp.Rejected = append(resp.Rejected, rejectedFileResponse{Name: ferr.Name, Reason: ferr.Reason})
			}
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// readUpload loads an uploaded file into memory. Oversized files are not
// read since validation rejects them by size alone.
func readUpload(fh *multipart.FileHeader) (*exchange.PendingAttachment, error) {
	mimeType := fh.Header.Get(echo.HeaderContentType)
	if fh.Size > security.MaxFileSize {
		return exchange.NewPendingAttachment(fh.Filename, mimeType, fh.Size, func() (io.ReadCloser, error) {
			return nil, errors.New("file exceeds the size limit")
		}), nil
	}

	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, security.MaxFileSize+1))
	if err != nil {
		return nil, err
	}
	return exchange.PendingFromBytes(fh.Filename, mimeType, data), nil
}

// RemovePending unstages one attachment.
func (s *APIV1Service) RemovePending(c echo.Context) error {
	if !s.currentView(c).RemovePending(c.Param("id")) {
		return echo.NewHTTPError(http.StatusNotFound, "pending attachment not found")
	}
	return c.NoContent(http.StatusNoContent)
}

// ClearPending unstages every attachment.
func (s *APIV1Service) ClearPending(c echo.Context) error {
	s.currentView(c).ClearPending()
	return c.NoContent(http.StatusNoContent)
}

// GetPreview serves a thumbnail of the caller by handle. Handles die with
// the view that created them.
func (s *APIV1Service) GetPreview(c echo.Context) error {
	p, ok := s.Sessions.Previews().GetOwned(c.Param("handle"), auth.GetUserID(c.Request().Context()))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "preview not found")
	}
	c.Response().Header().Set("Cache-Control", "private, max-age=300")
	return c.Blob(http.StatusOK, p.MIMEType, p.Data)
}
