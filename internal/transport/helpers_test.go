package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"storefront/internal/domain"
	"storefront/internal/errs"
	"storefront/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var (
	testAdmin = &domain.Identity{ID: uuid.New(), Name: "Ada", Email: "ada@example.com", Role: domain.RoleAdmin, IsActive: true}
	testSuper = &domain.Identity{ID: uuid.New(), Name: "Root", Email: "root@example.com", Role: domain.RoleSuperAdmin, IsActive: true}
)

type stubAuthenticator struct{}

func (stubAuthenticator) Authenticate(ctx context.Context, token string) (*domain.Identity, error) {
	switch token {
	case "admin-token":
		return testAdmin, nil
	case "super-token":
		return testSuper, nil
	}
	return nil, fmt.Errorf("%w: unknown token", errs.ErrInvalidToken)
}

func passThrough(next http.Handler) http.Handler { return next }

type routeRegistrar interface {
	RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler)
}

// newTestRouter mounts the handler under /api with the real auth middleware
// backed by stubAuthenticator.
func newTestRouter(t *testing.T, h routeRegistrar) http.Handler {
	t.Helper()
	auth := middleware.AuthMiddleware(stubAuthenticator{}, zaptest.NewLogger(t))
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		h.RegisterRoutes(r, auth)
	})
	return r
}

func jsonRequest(t *testing.T, method, target, token string, body interface{}) *http.Request {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

type testFile struct {
	name        string
	contentType string
	data        []byte
}

func multipartRequest(t *testing.T, method, target, token string, fields map[string]string, photo *testFile) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for key, value := range fields {
		require.NoError(t, mw.WriteField(key, value))
	}
	if photo != nil {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="photo"; filename="%s"`, photo.name))
		header.Set("Content-Type", photo.contentType)
		part, err := mw.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write(photo.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func serve(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponse {
	t.Helper()
	var body middleware.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}
