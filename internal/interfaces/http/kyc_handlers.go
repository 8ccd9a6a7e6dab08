package http

import (
	"errors"
	"mime/multipart"
	stdhttp "net/http"

	"github.com/E-ugine/kyc-verification-backend/internal/application"
	"github.com/E-ugine/kyc-verification-backend/internal/domain"
	"github.com/E-ugine/kyc-verification-backend/internal/ports"
	"github.com/labstack/echo/v4"
)

type KYCHandler struct {
	service *application.KYCService
	logger  ports.Logger
}

func NewKYCHandler(service *application.KYCService, logger ports.Logger) *KYCHandler {
	return &KYCHandler{service: service, logger: logger}
}

// formUpload opens an optional multipart file. A missing part or a
// non-multipart body means no upload.
func formUpload(c echo.Context, field string) (*domain.Upload, func(), error) {
	fh, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, stdhttp.ErrMissingFile) || errors.Is(err, stdhttp.ErrNotMultipart) {
			return nil, func() {}, nil
		}
		return nil, func() {}, &domain.UploadError{Field: field, Reason: "could not read uploaded file"}
	}
	f, err := fh.Open()
	if err != nil {
		return nil, func() {}, &domain.UploadError{Field: field, Reason: "could not read uploaded file"}
	}
	return &domain.Upload{Filename: fh.Filename, Content: f}, func() { closeFile(f) }, nil
}

func closeFile(f multipart.File) { _ = f.Close() }

func (h *KYCHandler) Submit(c echo.Context) error {
	sub := domain.Submission{
		FullName:    c.FormValue("full_name"),
		DateOfBirth: c.FormValue("dob"),
		IDNumber:    c.FormValue("id_number"),
		Country:     c.FormValue("country"),
		Address:     c.FormValue("address"),
	}
	selfie, closeSelfie, err := formUpload(c, "selfie")
	defer closeSelfie()
	if err != nil {
		return handleError(c, h.logger, err)
	}
	idDoc, closeIDDoc, err := formUpload(c, "id_doc")
	defer closeIDDoc()
	if err != nil {
		return handleError(c, h.logger, err)
	}
	sub.Selfie, sub.IDDocument = selfie, idDoc

	app, err := h.service.Submit(c.Request().Context(), sub)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return c.JSON(stdhttp.StatusCreated, app)
}

func (h *KYCHandler) Status(c echo.Context) error {
	view, err := h.service.Status(c.Request().Context(), c.Param("id_number"))
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return c.JSON(stdhttp.StatusOK, view)
}

func (h *KYCHandler) List(c echo.Context) error {
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

func (h *KYCHandler) Get(c echo.Context) error {
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

type reviewRequest struct {
	Action          string `json:"action"`
	RejectionReason string `json:"rejection_reason"`
}

func (h *KYCHandler) Review(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	var req reviewRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(stdhttp.StatusBadRequest, errorBody{Error: "invalid payload"})
	}
	app, err := h.service.Review(c.Request().Context(), id, domain.Status(req.Action), req.RejectionReason)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return c.JSON(stdhttp.StatusOK, app)
}
