package http

import (
	stdhttp "net/http"

	"github.com/E-ugine/kyc-verification-backend/internal/application"
	"github.com/E-ugine/kyc-verification-backend/internal/domain"
	"github.com/E-ugine/kyc-verification-backend/internal/ports"
	"github.com/labstack/echo/v4"
)

type AdminHandler struct {
	service *application.KYCService
	auth    *application.AuthService
	logger  ports.Logger
}

func NewAdminHandler(service *application.KYCService, auth *application.AuthService, logger ports.Logger) *AdminHandler {
	return &AdminHandler{service: service, auth: auth, logger: logger}
}

type loginRequest struct {
	Username string `json:"username" form:"username" query:"username"`
	Password string `json:"password" form:"password" query:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Login accepts credentials as query parameters, a JSON body or a form body.
func (h *AdminHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(stdhttp.StatusBadRequest, errorBody{Error: "invalid payload"})
	}
	if req.Username == "" && req.Password == "" {
		req.Username, req.Password = c.QueryParam("username"), c.QueryParam("password")
	}
	token, err := h.auth.Authenticate(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return c.JSON(stdhttp.StatusOK, tokenResponse{
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
		ExpiresIn:   int64(h.auth.TokenTTL().Seconds()),
	})
}

func (h *AdminHandler) All(c echo.Context) error {
	filter, err := listFilter(c)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	apps, err := h.service.List(c.Request().Context(), filter)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return c.JSON(stdhttp.StatusOK, apps)
}

func (h *AdminHandler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	app, err := h.service.GetByID(c.Request().Context(), id)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return c.JSON(stdhttp.StatusOK, app)
}

func (h *AdminHandler) Stats(c echo.Context) error {
	stats, err := h.service.Stats(c.Request().Context())
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return c.JSON(stdhttp.StatusOK, stats)
}

type verifyRequest struct {
	Status          string `json:"status"`
	RejectionReason string `json:"rejection_reason"`
}

// Verify is the older decision endpoint. It applies the same pending-only
// review as PATCH /kyc/admin/review/:id.
func (h *AdminHandler) Verify(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	var req verifyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(stdhttp.StatusBadRequest, errorBody{Error: "invalid payload"})
	}
	status, err := domain.ParseStatus(req.Status)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	if status == domain.StatusPending {
		return handleError(c, h.logger, domain.NewFieldError("status", "an application cannot be moved back to pending"))
	}
	h.logger.Debug(c.Request().Context(), "legacy verify endpoint used", "application_id", id)
	app, err := h.service.Review(c.Request().Context(), id, status, req.RejectionReason)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return c.JSON(stdhttp.StatusOK, app)
}

type SystemHandler struct {
	service *application.KYCService
	logger  ports.Logger
}

func NewSystemHandler(service *application.KYCService, logger ports.Logger) *SystemHandler {
	return &SystemHandler{service: service, logger: logger}
}

func (h *SystemHandler) Root(c echo.Context) error {
	return c.JSON(stdhttp.StatusOK, map[string]string{"message": "KYC Verification Platform API"})
}

func (h *SystemHandler) Health(c echo.Context) error {
	if err := h.service.Ping(c.Request().Context()); err != nil {
		h.logger.Error(c.Request().Context(), "health check failed", "error", err)
		return c.JSON(stdhttp.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
	}
	return c.JSON(stdhttp.StatusOK, map[string]string{"status": "healthy"})
}
