package http

import (
	"errors"
	stdhttp "net/http"
	"strconv"

	"github.com/E-ugine/kyc-verification-backend/internal/domain"
	"github.com/E-ugine/kyc-verification-backend/internal/ports"
	"github.com/labstack/echo/v4"
)

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func handleError(c echo.Context, logger ports.Logger, err error) error {
	var fieldErr *domain.FieldError
	switch {
	case errors.As(err, &fieldErr):
		return c.JSON(stdhttp.StatusBadRequest, errorBody{Error: err.Error(), Field: fieldErr.Field})
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrDuplicateIdentifier),
		errors.Is(err, domain.ErrUpload),
		errors.Is(err, domain.ErrInvalidState):
		return c.JSON(stdhttp.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, domain.ErrUnauthorized):
		return c.JSON(stdhttp.StatusUnauthorized, errorBody{Error: "incorrect username or password"})
	case errors.Is(err, domain.ErrNotFound):
		return c.JSON(stdhttp.StatusNotFound, errorBody{Error: "kyc application not found"})
	default:
		logger.Error(c.Request().Context(), "request failed", "path", c.Path(), "error", err)
		return c.JSON(stdhttp.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, domain.NewFieldError("id", "must be an integer")
	}
	return id, nil
}

func queryInt(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.NewFieldError(name, "must be an integer")
	}
	return n, nil
}

// listFilter reads the status, skip and limit query parameters shared by
// both listing routes.
func listFilter(c echo.Context) (domain.ListFilter, error) {
	filter := domain.ListFilter{}
	if raw := c.QueryParam("status"); raw != "" {
		status, err := domain.ParseStatus(raw)
		if err != nil {
			return domain.ListFilter{}, err
		}
		filter.Status = &status
	}
	var err error
	if filter.Offset, err = queryInt(c, "skip", 0); err != nil {
		return domain.ListFilter{}, err
	}
	if filter.Limit, err = queryInt(c, "limit", domain.DefaultListLimit); err != nil {
		return domain.ListFilter{}, err
	}
	return filter, nil
}
