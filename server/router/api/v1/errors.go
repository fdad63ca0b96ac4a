package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/studychat/ai/core/llm"
	"github.com/hrygo/studychat/ai/exchange"
	"github.com/hrygo/studychat/server/auth"
	"github.com/hrygo/studychat/store"
)

// toHTTPError maps service errors to HTTP status codes. Completion API
// failures surface the message reported by the endpoint.
func toHTTPError(err error) error {
	var (
		apiErr  *llm.APIError
		stepErr *exchange.StepError
	)
	switch {
	case errors.Is(err, exchange.ErrExchangeInFlight), errors.Is(err, auth.ErrEmailTaken):
		return echo.NewHTTPError(http.StatusConflict, err.Error()).SetInternal(err)
	case errors.Is(err, exchange.ErrNothingToSend),
		errors.Is(err, exchange.ErrNoChatSelected),
		errors.Is(err, auth.ErrInvalidEmail),
		errors.Is(err, auth.ErrWeakPassword):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	case errors.Is(err, exchange.ErrChatNotFound), errors.Is(err, store.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, exchange.ErrChatNotFound.Error()).SetInternal(err)
	case errors.Is(err, auth.ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error()).SetInternal(err)
	case errors.As(err, &apiErr):
		return echo.NewHTTPError(http.StatusBadGateway, apiErr.Message).SetInternal(err)
	case errors.As(err, &stepErr) && stepErr.Step == exchange.StepComplete:
		return echo.NewHTTPError(http.StatusBadGateway, stepErr.Err.Error()).SetInternal(err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error()).SetInternal(err)
	}
}
