package delivery

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bidvault/goapi/domain"
	"github.com/bidvault/goapi/service/query"
)

type JsonResponseStatus string

const (
	JsonResponseStatusSuccess JsonResponseStatus = "success"
	JsonResponseStatusFail    JsonResponseStatus = "fail"
)

type JsonResponse struct {
	Data   interface{}        `json:"data"`
	Status JsonResponseStatus `json:"status"`
}

// MakeJsonResp writes the uniform json envelope. When data is an error the
// status code is refined from the domain error taxonomy so callers can tell
// wrong phase from wrong caller from bad timing.
func MakeJsonResp(c echo.Context, status int, data interface{}) error {
	if err, ok := data.(error); ok {
		switch {
		case errors.Is(err, domain.ErrNotFound) || errors.Is(err, query.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(err, domain.ErrUnauthorized):
			status = http.StatusUnauthorized
		case errors.Is(err, domain.ErrWrongLifecyclePhase),
			errors.Is(err, domain.ErrTimingViolation),
			errors.Is(err, domain.ErrInsufficientBid),
			errors.Is(err, domain.ErrBadParamInput),
			errors.Is(err, domain.ErrInvalidAmountFormat):
			status = http.StatusBadRequest
		case errors.Is(err, domain.ErrCustodyTransferFailed):
			status = http.StatusBadGateway
		case errors.Is(err, domain.ErrInsufficientEscrowBalance):
			status = http.StatusInternalServerError
		}
		data = err.Error()
	}

	if status >= 400 {
		return c.JSON(status, JsonResponse{data, JsonResponseStatusFail})
	}

	if status >= 200 && status < 300 {
		return c.JSON(status, JsonResponse{data, JsonResponseStatusSuccess})
	}

	return c.JSON(status, data)
}
