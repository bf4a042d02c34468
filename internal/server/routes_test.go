package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/time/rate"

	"bkmrks/internal/config"
	"bkmrks/internal/database"
	"bkmrks/internal/middlewares"
	"bkmrks/internal/models"
	"bkmrks/internal/services"
	"bkmrks/internal/utils"
)

var testSecret = []byte("routes-secret")

type stubDB struct{ database.Service }

func (stubDB) Health() map[string]string { return map[string]string{"message": "It's healthy"} }

type stubBookmarks struct {
	services.BookmarkService
	deleted []primitive.ObjectID
}

func (s *stubBookmarks) GetBookmarks(context.Context, primitive.ObjectID) ([]models.BookmarkDetail, error) {
	return []models.BookmarkDetail{}, nil
}

func (s *stubBookmarks) DeleteBookmark(_ context.Context, _, id primitive.ObjectID) error {
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *stubBookmarks) AddBookmarkFromTelegram(_ context.Context, req models.TelegramBookmarkRequest) (*models.TelegramBookmarkResponse, error) {
	return &models.TelegramBookmarkResponse{ID: primitive.NewObjectID(), User: req.User, URL: req.URL}, nil
}

type fixture struct {
	handler   http.Handler
	bookmarks *stubBookmarks
	alice     primitive.ObjectID
	bob       primitive.ObjectID
	owned     primitive.ObjectID
	mediaRoot string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		bookmarks: &stubBookmarks{},
		alice:     primitive.NewObjectID(),
		bob:       primitive.NewObjectID(),
		owned:     primitive.NewObjectID(),
		mediaRoot: t.TempDir(),
	}

	lookup := func(_ context.Context, id primitive.ObjectID) (primitive.ObjectID, error) {
		if id == f.owned {
			return f.alice, nil
		}
		return primitive.NilObjectID, utils.ErrNotFound
	}
	ownership := middlewares.NewOwnership()
	for _, resource := range []string{"bookmark", "folder", "download"} {
		ownership.Register(resource, lookup)
	}

	s := &Server{
		cfg: config.Config{
			AllowedOrigins: []string{"http://localhost:3000"},
			MediaRoot:      f.mediaRoot,
			MediaURL:       "/media/",
			BotAPIKey:      "bot-key",
		},
		db:              stubDB{},
		bookmarkService: f.bookmarks,
		auth:            middlewares.NewAuthenticator(testSecret),
		ownership:       ownership,
		limiter:         middlewares.NewRateLimiter(rate.Inf, 1),
	}
	f.handler = s.RegisterRoutes()
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string, as primitive.ObjectID, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if !as.IsZero() {
		token, err := utils.GenerateJWT(as, testSecret, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/health", "", primitive.NilObjectID)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")

	rec = f.do(t, http.MethodGet, "/metrics", "", primitive.NilObjectID)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/api/v1/bookmarks/", "/api/v1/tags/", "/api/v1/folders/", "/api/v1/user/details/"} {
		rec := f.do(t, http.MethodGet, path, "", primitive.NilObjectID)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}

	rec := f.do(t, http.MethodGet, "/api/v1/bookmarks/", "", f.alice)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestDeleteOtherUsersBookmarkIsForbidden(t *testing.T) {
	f := newFixture(t)
	path := "/api/v1/bookmarks/delete/" + f.owned.Hex() + "/"

	rec := f.do(t, http.MethodDelete, path, "", f.bob)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, f.bookmarks.deleted)

	rec = f.do(t, http.MethodDelete, "/api/v1/bookmarks/delete/"+primitive.NewObjectID().Hex()+"/", "", f.alice)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodDelete, path, "", f.alice)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []primitive.ObjectID{f.owned}, f.bookmarks.deleted)
}

func TestCreateFromTelegramNeedsBotKey(t *testing.T) {
	f := newFixture(t)
	body := `{"user":{"telegram_id":"133637887"},"url":"https://example.com/"}`

	rec := f.do(t, http.MethodPost, "/api/v1/bookmarks/create_from_telegram/", body, primitive.NilObjectID)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/bookmarks/create_from_telegram/", body, primitive.NilObjectID, middlewares.BotKeyHeader, "bot-key")
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"telegram_id":"133637887"`)
}

func TestPreflight(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodOptions, "/api/v1/bookmarks/create/", "", primitive.NilObjectID, "Origin", "http://localhost:3000")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMediaIsServed(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.MkdirAll(filepath.Join(f.mediaRoot, "videos"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.mediaRoot, "videos", "clip.mp4"), []byte("mp4"), 0o644))

	rec := f.do(t, http.MethodGet, "/media/videos/clip.mp4", "", primitive.NilObjectID)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "mp4", rec.Body.String())
}
