package http

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	stdhttp "net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	adaptermiddleware "github.com/E-ugine/kyc-verification-backend/internal/adapters/http/middleware"
	adapterlogger "github.com/E-ugine/kyc-verification-backend/internal/adapters/logger"
	"github.com/E-ugine/kyc-verification-backend/internal/application"
	"github.com/E-ugine/kyc-verification-backend/internal/infrastructure/auth"
	"github.com/E-ugine/kyc-verification-backend/internal/infrastructure/documents"
	"github.com/E-ugine/kyc-verification-backend/internal/infrastructure/memory"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testServer struct {
	e     *echo.Echo
	token string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := adapterlogger.NewWithWriter(io.Discard, slog.LevelError, "kyc-test")

	store, err := documents.NewFileStore(t.TempDir(), documents.DefaultMaxBytes)
	require.NoError(t, err)
	svc := application.NewKYCService(memory.NewApplicationRepository(), store, logger)

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret!"), bcrypt.MinCost)
	require.NoError(t, err)
	creds, err := auth.NewAdminCredentials("admin", string(hash), "")
	require.NoError(t, err)
	issuer, err := auth.NewJWTIssuer("0123456789abcdef0123456789abcdef", "kyc-test")
	require.NoError(t, err)
	authSvc := application.NewAuthService(creds, issuer, 30*time.Minute, logger, nil)

	e := NewRouter(Handlers{
		KYC:    NewKYCHandler(svc, logger),
		Admin:  NewAdminHandler(svc, authSvc, logger),
		Media:  NewMediaHandler(store),
		System: NewSystemHandler(svc, logger),
	}, Middleware{
		RequireAdmin:  adaptermiddleware.RequireAdmin(authSvc),
		RequestLogger: adaptermiddleware.RequestLogger(logger),
	}, Options{CORSAllowedOrigins: []string{"http://localhost:5173"}, MaxUploadBytes: documents.DefaultMaxBytes})

	ts := &testServer{e: e}
	rec := ts.do(t, stdhttp.MethodPost, "/admin/login?username=admin&password=s3cret!", nil, "")
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())
	var tok map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tok))
	ts.token = tok["access_token"].(string)
	return ts
}

func (s *testServer) do(t *testing.T, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) admin(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, r)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+s.token)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

type formFile struct {
	field, name string
	data        []byte
}

func multipartBody(t *testing.T, fields map[string]string, files ...formFile) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func validFields(idNumber string) map[string]string {
	return map[string]string{
		"full_name": "Jane Doe",
		"dob":       "1990-05-17",
		"id_number": idNumber,
		"country":   "Kenya",
		"address":   "12 Moi Avenue, Nairobi",
	}
}

func pngData(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	return buf.Bytes()
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (s *testServer) submit(t *testing.T, idNumber string, files ...formFile) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, validFields(idNumber), files...)
	return s.do(t, stdhttp.MethodPost, "/kyc/submit", body, ct)
}

func TestSubmit_CreatesPendingApplicationWithDocument(t *testing.T) {
	s := newTestServer(t)

	rec := s.submit(t, "ID-12345", formFile{field: "selfie", name: "me.png", data: pngData(t)})
	require.Equal(t, stdhttp.StatusCreated, rec.Code, rec.Body.String())

	app := decode(t, rec)
	assert.Equal(t, "pending", app["status"])
	assert.Equal(t, "1990-05-17", app["dob"])
	assert.Nil(t, app["rejection_reason"])
	assert.Nil(t, app["id_doc"])
	assert.True(t, strings.HasPrefix(app["selfie"].(string), "selfies/"))

	media := s.admin(t, stdhttp.MethodGet, "/admin/media/"+app["selfie"].(string), nil)
	assert.Equal(t, stdhttp.StatusOK, media.Code)
	assert.Equal(t, pngData(t), media.Body.Bytes())

	unauth := s.do(t, stdhttp.MethodGet, "/admin/media/"+app["selfie"].(string), nil, "")
	assert.Equal(t, stdhttp.StatusUnauthorized, unauth.Code)
}

func TestSubmit_Rejections(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, stdhttp.StatusCreated, s.submit(t, "ID-12345").Code)

	dup := s.submit(t, "ID-12345")
	assert.Equal(t, stdhttp.StatusBadRequest, dup.Code)
	assert.Contains(t, decode(t, dup)["error"], "already exists")

	fields := validFields("ID-67890")
	fields["dob"] = "17/05/1990"
	body, ct := multipartBody(t, fields)
	bad := s.do(t, stdhttp.MethodPost, "/kyc/submit", body, ct)
	assert.Equal(t, stdhttp.StatusBadRequest, bad.Code)
	assert.Equal(t, "dob", decode(t, bad)["field"])

	upload := s.submit(t, "ID-67890", formFile{field: "id_doc", name: "passport.png", data: []byte("plain text")})
	assert.Equal(t, stdhttp.StatusBadRequest, upload.Code)
	assert.Contains(t, decode(t, upload)["error"], "file upload error")

	status := s.do(t, stdhttp.MethodGet, "/kyc/status/ID-67890", nil, "")
	assert.Equal(t, stdhttp.StatusNotFound, status.Code)
}

func TestSubmit_OversizedBodyIsUploadError(t *testing.T) {
	s := newTestServer(t)

	huge := s.submit(t, "ID-12345", formFile{field: "selfie", name: "me.png", data: make([]byte, 11<<20)})
	assert.Equal(t, stdhttp.StatusBadRequest, huge.Code)
	assert.Contains(t, decode(t, huge)["error"], "file upload error")

	big := s.submit(t, "ID-12345", formFile{field: "selfie", name: "me.png", data: make([]byte, 6<<20)})
	assert.Equal(t, stdhttp.StatusBadRequest, big.Code)
	assert.Contains(t, decode(t, big)["error"], "file upload error")

	status := s.do(t, stdhttp.MethodGet, "/kyc/status/ID-12345", nil, "")
	assert.Equal(t, stdhttp.StatusNotFound, status.Code)
}

func TestStatus_IsPublic(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, stdhttp.StatusCreated, s.submit(t, "ID-12345").Code)

	rec := s.do(t, stdhttp.MethodGet, "/kyc/status/ID-12345", nil, "")
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "ID-12345", body["id_number"])
	assert.Equal(t, "pending", body["status"])
	assert.Contains(t, body, "rejection_reason")
	assert.NotContains(t, body, "full_name")
}

func TestAdminRoutes_RequireToken(t *testing.T) {
	s := newTestServer(t)
	for _, r := range []struct{ method, path string }{
		{stdhttp.MethodGet, "/kyc/applications"},
		{stdhttp.MethodGet, "/kyc/application/1"},
		{stdhttp.MethodPatch, "/kyc/admin/review/1"},
		{stdhttp.MethodGet, "/admin/all"},
		{stdhttp.MethodGet, "/admin/stats/dashboard"},
		{stdhttp.MethodGet, "/admin/1"},
		{stdhttp.MethodPut, "/admin/verify/1"},
	} {
		rec := s.do(t, r.method, r.path, nil, "")
		assert.Equal(t, stdhttp.StatusUnauthorized, rec.Code, r.path)
	}
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)

	wrong := s.do(t, stdhttp.MethodPost, "/admin/login?username=admin&password=nope", nil, "")
	assert.Equal(t, stdhttp.StatusUnauthorized, wrong.Code)

	jsonLogin := s.do(t, stdhttp.MethodPost, "/admin/login",
		strings.NewReader(`{"username":"admin","password":"s3cret!"}`), echo.MIMEApplicationJSON)
	require.Equal(t, stdhttp.StatusOK, jsonLogin.Code)
	body := decode(t, jsonLogin)
	assert.Equal(t, "bearer", body["token_type"])
	assert.EqualValues(t, 1800, body["expires_in"])
	assert.NotEmpty(t, body["access_token"])

	form := url.Values{"username": {"admin"}, "password": {"s3cret!"}}
	formLogin := s.do(t, stdhttp.MethodPost, "/admin/login", strings.NewReader(form.Encode()), echo.MIMEApplicationForm)
	assert.Equal(t, stdhttp.StatusOK, formLogin.Code)
}

func TestReviewFlow(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, stdhttp.StatusCreated, s.submit(t, "ID-12345").Code)

	rec := s.admin(t, stdhttp.MethodPatch, "/kyc/admin/review/1", map[string]string{"action": "approved", "rejection_reason": "why"})
	assert.Equal(t, stdhttp.StatusBadRequest, rec.Code)
	assert.Equal(t, "rejection_reason", decode(t, rec)["field"])

	rec = s.admin(t, stdhttp.MethodPatch, "/kyc/admin/review/1", map[string]string{"action": "rejected"})
	assert.Equal(t, stdhttp.StatusBadRequest, rec.Code)

	rec = s.admin(t, stdhttp.MethodPatch, "/kyc/admin/review/1", map[string]string{"action": "pending"})
	assert.Equal(t, stdhttp.StatusBadRequest, rec.Code)

	rec = s.admin(t, stdhttp.MethodPatch, "/kyc/admin/review/99", map[string]string{"action": "approved"})
	assert.Equal(t, stdhttp.StatusNotFound, rec.Code)

	rec = s.admin(t, stdhttp.MethodPatch, "/kyc/admin/review/1", map[string]string{"action": "rejected", "rejection_reason": "bad photo"})
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())
	app := decode(t, rec)
	assert.Equal(t, "rejected", app["status"])
	assert.Equal(t, "bad photo", app["rejection_reason"])
	assert.NotNil(t, app["updated_at"])

	rec = s.admin(t, stdhttp.MethodPatch, "/kyc/admin/review/1", map[string]string{"action": "approved"})
	assert.Equal(t, stdhttp.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "not pending")

	status := decode(t, s.do(t, stdhttp.MethodGet, "/kyc/status/ID-12345", nil, ""))
	assert.Equal(t, "rejected", status["status"])
	assert.Equal(t, "bad photo", status["rejection_reason"])
}

func TestVerify_LegacyEndpointIsStrict(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, stdhttp.StatusCreated, s.submit(t, "ID-12345").Code)

	rec := s.admin(t, stdhttp.MethodPut, "/admin/verify/1", map[string]string{"status": "pending"})
	assert.Equal(t, stdhttp.StatusBadRequest, rec.Code)
	assert.Equal(t, "status", decode(t, rec)["field"])

	rec = s.admin(t, stdhttp.MethodPut, "/admin/verify/1", map[string]string{"status": "approved"})
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Equal(t, "approved", decode(t, rec)["status"])

	rec = s.admin(t, stdhttp.MethodPut, "/admin/verify/1", map[string]string{"status": "rejected", "rejection_reason": "late"})
	assert.Equal(t, stdhttp.StatusBadRequest, rec.Code)

	rec = s.admin(t, stdhttp.MethodGet, "/admin/1", nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Equal(t, "approved", decode(t, rec)["status"])

	rec = s.admin(t, stdhttp.MethodGet, "/admin/abc", nil)
	assert.Equal(t, stdhttp.StatusBadRequest, rec.Code)
}

func TestListingAndStats(t *testing.T) {
	s := newTestServer(t)
	for _, id := range []string{"ID-00001", "ID-00002", "ID-00003"} {
		require.Equal(t, stdhttp.StatusCreated, s.submit(t, id).Code)
	}
	require.Equal(t, stdhttp.StatusOK,
		s.admin(t, stdhttp.MethodPatch, "/kyc/admin/review/2", map[string]string{"action": "approved"}).Code)

	rec := s.admin(t, stdhttp.MethodGet, "/kyc/applications?status=pending", nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	var apps []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apps))
	require.Len(t, apps, 2)
	assert.Equal(t, "ID-00001", apps[0]["id_number"])
	assert.Equal(t, "ID-00003", apps[1]["id_number"])

	rec = s.admin(t, stdhttp.MethodGet, "/admin/all?skip=1&limit=1", nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apps))
	require.Len(t, apps, 1)
	assert.Equal(t, "ID-00002", apps[0]["id_number"])

	for _, q := range []string{"limit=0", "limit=1001", "skip=-1", "status=escalated", "limit=ten"} {
		rec = s.admin(t, stdhttp.MethodGet, "/kyc/applications?"+q, nil)
		assert.Equal(t, stdhttp.StatusBadRequest, rec.Code, q)
	}

	rec = s.admin(t, stdhttp.MethodGet, "/admin/stats/dashboard", nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.JSONEq(t, `{"total_submissions":3,"approved":1,"rejected":0,"pending":2}`, rec.Body.String())

	rec = s.admin(t, stdhttp.MethodGet, "/kyc/application/3", nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Equal(t, "ID-00003", decode(t, rec)["id_number"])

	rec = s.admin(t, stdhttp.MethodGet, "/kyc/application/42", nil)
	assert.Equal(t, stdhttp.StatusNotFound, rec.Code)
}

func TestSystemRoutes(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, stdhttp.MethodGet, "/health", nil, "")
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode(t, rec)["status"])

	rec = s.do(t, stdhttp.MethodGet, "/", nil, "")
	assert.Equal(t, stdhttp.StatusOK, rec.Code)

	rec = s.admin(t, stdhttp.MethodGet, "/admin/media/../secrets.txt", nil)
	assert.NotEqual(t, stdhttp.StatusOK, rec.Code)
}

func TestCORS_AllowsConfiguredOrigin(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(stdhttp.MethodOptions, "/kyc/submit", nil)
	req.Header.Set(echo.HeaderOrigin, "http://localhost:5173")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, stdhttp.MethodPost)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	assert.Equal(t, stdhttp.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}
