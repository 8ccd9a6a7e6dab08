package http

import (
	"errors"
	"fmt"
	stdhttp "net/http"

	"github.com/E-ugine/kyc-verification-backend/internal/domain"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type Middleware struct {
	XRay          echo.MiddlewareFunc
	RequestLogger echo.MiddlewareFunc
	Metrics       echo.MiddlewareFunc
	RequireAdmin  echo.MiddlewareFunc
	LoginLimit    echo.MiddlewareFunc
}

type Options struct {
	CORSAllowedOrigins []string
	MaxUploadBytes     int64
	MetricsHandler     stdhttp.Handler
}

type Handlers struct {
	KYC    *KYCHandler
	Admin  *AdminHandler
	Media  *MediaHandler
	System *SystemHandler
}

func optional(mws ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	out := make([]echo.MiddlewareFunc, 0, len(mws))
	for _, mw := range mws {
		if mw != nil {
			out = append(out, mw)
		}
	}
	return out
}

// bodyLimit leaves room for two documents plus the text fields.
func bodyLimit(maxUpload int64) string {
	if maxUpload <= 0 {
		maxUpload = 5 << 20
	}
	return fmt.Sprintf("%dK", (2*maxUpload+64<<10)/1024)
}

// errorHandler reports an oversized body as an upload error, like any other
// rejected document, and leaves everything else to echo.
func errorHandler(e *echo.Echo) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		var he *echo.HTTPError
		if !errors.As(err, &he) || he.Code != stdhttp.StatusRequestEntityTooLarge {
			e.DefaultHTTPErrorHandler(err, c)
			return
		}
		if c.Response().Committed {
			return
		}
		upload := &domain.UploadError{Reason: "request body too large"}
		if err := c.JSON(stdhttp.StatusBadRequest, errorBody{Error: upload.Error()}); err != nil {
			c.Logger().Error(err)
		}
	}
}

func newEcho(m Middleware, opts Options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(e)
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(optional(m.XRay, m.Metrics, m.RequestLogger)...)
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     opts.CORSAllowedOrigins,
		AllowMethods:     []string{stdhttp.MethodGet, stdhttp.MethodPost, stdhttp.MethodPut, stdhttp.MethodPatch, stdhttp.MethodOptions},
		AllowHeaders:     []string{echo.HeaderAuthorization, echo.HeaderContentType, echo.HeaderXRequestID},
		AllowCredentials: true,
	}))
	e.Use(middleware.BodyLimit(bodyLimit(opts.MaxUploadBytes)))
	return e
}

// NewRouter wires every public and admin route onto one echo instance.
func NewRouter(h Handlers, m Middleware, opts Options) *echo.Echo {
	e := newEcho(m, opts)
	admin := optional(m.RequireAdmin)

	e.GET("/", h.System.Root)
	e.GET("/health", h.System.Health)
	if opts.MetricsHandler != nil {
		e.GET("/metrics", echo.WrapHandler(opts.MetricsHandler))
	}

	kyc := e.Group("/kyc")
	kyc.POST("/submit", h.KYC.Submit)
	kyc.GET("/status/:id_number", h.KYC.Status)
	kyc.GET("/applications", h.KYC.List, admin...)
	kyc.GET("/application/:id", h.KYC.Get, admin...)
	kyc.PATCH("/admin/review/:id", h.KYC.Review, admin...)

	adm := e.Group("/admin")
	adm.POST("/login", h.Admin.Login, optional(m.LoginLimit)...)
	adm.GET("/all", h.Admin.All, admin...)
	adm.GET("/stats/dashboard", h.Admin.Stats, admin...)
	adm.GET("/:id", h.Admin.Get, admin...)
	adm.PUT("/verify/:id", h.Admin.Verify, admin...)
	if h.Media != nil {
		adm.GET("/media/*", h.Media.Serve, admin...)
	}
	return e
}
