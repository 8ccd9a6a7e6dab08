package http

import (
	stdhttp "net/http"

	"github.com/labstack/echo/v4"
)

// MediaResolver maps a stored document reference to a local file path.
type MediaResolver interface {
	Path(ref string) (string, error)
}

type MediaHandler struct {
	resolver MediaResolver
}

func NewMediaHandler(resolver MediaResolver) *MediaHandler {
	return &MediaHandler{resolver: resolver}
}

func (h *MediaHandler) Serve(c echo.Context) error {
	p, err := h.resolver.Path(c.Param("*"))
	if err != nil {
		return c.JSON(stdhttp.StatusNotFound, errorBody{Error: "document not found"})
	}
	return c.File(p)
}
