package v1

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

type sendMessageRequest struct {
	Text string `json:"text"`
}

// ListChats reloads the chat list of the view, most recently updated first.
func (s *APIV1Service) ListChats(c echo.Context) error {
	view := s.currentView(c)
	if err := view.LoadChats(c.Request().Context()); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, s.convertChats(view.Snapshot().Chats))
}

// CreateChat creates an empty chat and opens it.
func (s *APIV1Service) CreateChat(c echo.Context) error {
	view := s.currentView(c)
	if _, err := view.NewChat(c.Request().Context()); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, s.convertView(view.Snapshot()))
}

// DeleteChat removes a chat and its messages.
func (s *APIV1Service) DeleteChat(c echo.Context) error {
	chatID, err := parseChatID(c)
	if err != nil {
		return err
	}
	view := s.currentView(c)
	if err := view.DeleteChat(c.Request().Context(), chatID); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, s.convertView(view.Snapshot()))
}

// SelectChat opens a chat and loads its messages.
func (s *APIV1Service) SelectChat(c echo.Context) error {
	chatID, err := parseChatID(c)
	if err != nil {
		return err
	}
	view := s.currentView(c)
	if err := view.SelectChat(c.Request().Context(), chatID); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, s.convertView(view.Snapshot()))
}

// GetView returns the whole view state, with the chat list re-fetched.
func (s *APIV1Service) GetView(c echo.Context) error {
	view := s.currentView(c)
	if err := view.LoadChats(c.Request().Context()); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, s.convertView(view.Snapshot()))
}

// SendMessage runs one exchange on the open chat and returns the view
// after it. The exchange is not cancelled when the client disconnects;
// the client picks the result up from the next view fetch.
func (s *APIV1Service) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body").SetInternal(err)
	}
	view := s.currentView(c)
	ctx := context.WithoutCancel(c.Request().Context())
	if _, err := view.Send(ctx, req.Text); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, s.convertView(view.Snapshot()))
}

func parseChatID(c echo.Context) (int32, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 32)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid chat id")
	}
	return int32(id), nil
}
