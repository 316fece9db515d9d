package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/juju/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/bookburst/internal/auth"
	"github.com/sakif/bookburst/internal/config"
	"github.com/sakif/bookburst/internal/handler"
	"github.com/sakif/bookburst/internal/model"
	"github.com/sakif/bookburst/internal/notify"
	sqliteRepo "github.com/sakif/bookburst/internal/repository/sqlite"
	"github.com/sakif/bookburst/internal/service"
)

// =========================================================================
// HELPERS
// =========================================================================

func testConfig(dbPath string) config.Config {
	return config.Config{
		Port:      8080,
		DBPath:    dbPath,
		JWTSecret: "test-secret-that-is-long-enough",
		LogLevel:  "debug",
		LogFormat: "text",
	}
}

// newTestServer builds a server over dbPath with no simulated latency and
// the cheapest bcrypt cost. The database closes when the test ends.
func newTestServer(t *testing.T, cfg config.Config) *Server {
	t.Helper()
	db, err := sqliteRepo.New(cfg.DBPath, clock.WallClock)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := build(context.Background(), cfg, logger, db, clock.WallClock, auth.NewPasswordServiceForTest(4))
	if err != nil {
		db.Close()
		t.Fatalf("build() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// apiClient talks JSON to a test server and keeps cookies like a browser.
type apiClient struct {
	t    *testing.T
	base string
	http *http.Client
}

func newAPIClient(t *testing.T, s *Server) *apiClient {
	t.Helper()
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &apiClient{
		t:    t,
		base: ts.URL,
		http: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (c *apiClient) do(method, path string, body any, cookies ...*http.Cookie) *http.Response {
	c.t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		r = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.base+path, r)
	require.NoError(c.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, ck := range cookies {
		req.AddCookie(ck)
	}

	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	c.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// call sends a request, checks the status and decodes the body into out.
func (c *apiClient) call(method, path string, body any, wantStatus int, out any) {
	c.t.Helper()
	resp := c.do(method, path, body)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	require.Equal(c.t, wantStatus, resp.StatusCode, "%s %s: %s", method, path, raw)
	if out != nil {
		require.NoError(c.t, json.Unmarshal(raw, out), "%s %s: %s", method, path, raw)
	}
}

func (c *apiClient) login() {
	c.t.Helper()
	c.call(http.MethodPost, "/api/auth/login",
		map[string]string{"email": service.DemoEmail, "password": service.DemoPassword},
		http.StatusOK, nil)
}

func (c *apiClient) notifications() []notify.Notification {
	c.t.Helper()
	var out []notify.Notification
	c.call(http.MethodGet, "/api/notifications", nil, http.StatusOK, &out)
	return out
}

func messages(notes []notify.Notification) []string {
	var out []string
	for _, n := range notes {
		out = append(out, n.Message)
	}
	return out
}

// =========================================================================
// AUTH
// =========================================================================

func TestAPI_Login(t *testing.T) {
	c := newAPIClient(t, newTestServer(t, testConfig(":memory:")))

	var failure handler.ErrorResponse
	c.call(http.MethodPost, "/api/auth/login",
		map[string]string{"email": service.DemoEmail, "password": "wrong-password"},
		http.StatusUnauthorized, &failure)
	assert.Equal(t, "invalid_credentials", failure.Error)
	assert.Equal(t, "Invalid email or password", failure.Message)

	resp := c.do(http.MethodPost, "/api/auth/login",
		map[string]string{"email": "DEMO@bookburst.com", "password": service.DemoPassword})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var tokenCookie *http.Cookie
	for _, ck := range resp.Cookies() {
		if ck.Name == auth.CookieName {
			tokenCookie = ck
		}
	}
	require.NotNil(t, tokenCookie, "login must set the token cookie")
	assert.True(t, tokenCookie.HttpOnly)

	var me handler.UserResponse
	c.call(http.MethodGet, "/api/me", nil, http.StatusOK, &me)
	assert.Equal(t, service.DemoUsername, me.User.Username)

	assert.Equal(t, []string{
		"Login failed: Invalid email or password",
		"Welcome back, bookworm!",
	}, messages(c.notifications()))
	assert.Empty(t, c.notifications(), "the feed is drained by reading it")
}

func TestAPI_ProtectedRoutesNeedSession(t *testing.T) {
	c := newAPIClient(t, newTestServer(t, testConfig(":memory:")))

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/me"},
		{http.MethodPut, "/api/me/username"},
		{http.MethodPost, "/api/books"},
		{http.MethodPut, "/api/books/1/status"},
		{http.MethodPut, "/api/books/1/rating"},
		{http.MethodPost, "/api/books/1/reviews"},
	} {
		resp := c.do(tc.method, tc.path, map[string]any{})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "%s %s", tc.method, tc.path)
	}
}

func TestAPI_LogoutInvalidatesOutstandingTokens(t *testing.T) {
	c := newAPIClient(t, newTestServer(t, testConfig(":memory:")))

	resp := c.do(http.MethodPost, "/api/auth/login",
		map[string]string{"email": service.DemoEmail, "password": service.DemoPassword})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stolen := resp.Cookies()[0]

	var out handler.ActionResponse
	c.call(http.MethodPost, "/api/auth/logout", nil, http.StatusOK, &out)
	assert.Equal(t, "/", out.Redirect)

	// The jar dropped the cookie; a copy of it must not work either.
	resp = c.do(http.MethodGet, "/api/me", nil, stolen)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Logging out again is a silent no-op.
	c.call(http.MethodPost, "/api/auth/logout", nil, http.StatusOK, &out)
	assert.Empty(t, out.Redirect)

	notes := c.notifications()
	assert.Equal(t, "Logged out successfully", notes[len(notes)-1].Message)
	assert.Equal(t, notify.Info, notes[len(notes)-1].Severity)
}

func TestAPI_Signup(t *testing.T) {
	c := newAPIClient(t, newTestServer(t, testConfig(":memory:")))

	var created handler.UserResponse
	c.call(http.MethodPost, "/api/auth/signup",
		map[string]string{"email": "reader@x.com", "password": "pw123456", "username": "reader"},
		http.StatusCreated, &created)
	assert.Equal(t, "reader", created.User.Username)

	var status handler.StatusResponse
	c.call(http.MethodGet, "/api/status", nil, http.StatusOK, &status)
	assert.Nil(t, status.User, "signup must not sign in")

	tests := []struct {
		name   string
		body   map[string]string
		status int
		errTyp string
		field  string
	}{
		{"email taken", map[string]string{"email": "READER@x.com", "password": "pw123456", "username": "other"}, http.StatusConflict, "email_taken", "email"},
		{"username taken", map[string]string{"email": "new@x.com", "password": "pw123456", "username": "Reader"}, http.StatusConflict, "username_taken", "username"},
		{"short password", map[string]string{"email": "new@x.com", "password": "short", "username": "newbie"}, http.StatusBadRequest, "validation_error", "password"},
		{"short username", map[string]string{"email": "new@x.com", "password": "pw123456", "username": "ab"}, http.StatusBadRequest, "validation_error", "username"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e handler.ErrorResponse
			c.call(http.MethodPost, "/api/auth/signup", tt.body, tt.status, &e)
			assert.Equal(t, tt.errTyp, e.Error)
			assert.Equal(t, tt.field, e.Field)
		})
	}

	c.call(http.MethodPost, "/api/auth/login",
		map[string]string{"email": "reader@x.com", "password": "pw123456"}, http.StatusOK, nil)
}

func TestAPI_UnknownJSONFieldsRejected(t *testing.T) {
	c := newAPIClient(t, newTestServer(t, testConfig(":memory:")))

	var e handler.ErrorResponse
	c.call(http.MethodPost, "/api/auth/login",
		map[string]string{"email": service.DemoEmail, "pasword": service.DemoPassword},
		http.StatusBadRequest, &e)
	assert.Equal(t, "body", e.Field)
}

func TestAPI_UpdateUsername(t *testing.T) {
	c := newAPIClient(t, newTestServer(t, testConfig(":memory:")))
	c.login()

	var out handler.UserResponse
	c.call(http.MethodPut, "/api/me/username", map[string]string{"username": "bibliophile"}, http.StatusOK, &out)
	assert.Equal(t, "bibliophile", out.User.Username)
	assert.Equal(t, "/profile/bibliophile", out.Redirect)

	// The new name logs in with the same credentials.
	var me handler.UserResponse
	c.call(http.MethodGet, "/api/me", nil, http.StatusOK, &me)
	assert.Equal(t, "bibliophile", me.User.Username)

	c.call(http.MethodPost, "/api/auth/signup",
		map[string]string{"email": "b@x.com", "password": "pw123456", "username": "taken"}, http.StatusCreated, nil)
	var e handler.ErrorResponse
	c.call(http.MethodPut, "/api/me/username", map[string]string{"username": "TAKEN"}, http.StatusConflict, &e)
	assert.Equal(t, "username", e.Field)
}

// =========================================================================
// BOOKS
// =========================================================================

func TestAPI_ReadShelf(t *testing.T) {
	c := newAPIClient(t, newTestServer(t, testConfig(":memory:")))

	var books []model.Book
	c.call(http.MethodGet, "/api/books", nil, http.StatusOK, &books)
	assert.Len(t, books, 5)

	c.call(http.MethodGet, "/api/books?status=finished", nil, http.StatusOK, &books)
	require.Len(t, books, 2)
	assert.Equal(t, "2", books[0].ID)
	assert.Equal(t, "4", books[1].ID)

	c.call(http.MethodGet, "/api/books?status=abandoned", nil, http.StatusBadRequest, nil)

	var book model.Book
	c.call(http.MethodGet, "/api/books/2", nil, http.StatusOK, &book)
	assert.Equal(t, "1984", book.Title)

	var e handler.ErrorResponse
	c.call(http.MethodGet, "/api/books/nope", nil, http.StatusNotFound, &e)
	assert.Equal(t, "not_found", e.Error)

	var counts service.ShelfCounts
	c.call(http.MethodGet, "/api/books/counts", nil, http.StatusOK, &counts)
	assert.Equal(t, service.ShelfCounts{All: 5, Reading: 1, Finished: 2, WantToRead: 2}, counts)
}

func TestAPI_AddAndUpdateBook(t *testing.T) {
	c := newAPIClient(t, newTestServer(t, testConfig(":memory:")))
	c.login()
	c.notifications()

	var e handler.ErrorResponse
	c.call(http.MethodPost, "/api/books", map[string]string{"title": "  ", "author": "Anon"}, http.StatusBadRequest, &e)
	assert.Equal(t, "title", e.Field)

	var created model.Book
	c.call(http.MethodPost, "/api/books",
		map[string]any{"title": "The Hobbit", "author": "J.R.R. Tolkien", "status": "wanttoread"},
		http.StatusCreated, &created)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.AddedAt.IsZero())
	assert.Equal(t, []string{}, created.Genres)

	var upd handler.BookUpdateResponse
	c.call(http.MethodPut, "/api/books/"+created.ID+"/status", map[string]string{"status": "finished"}, http.StatusOK, &upd)
	require.True(t, upd.Updated)
	assert.Equal(t, model.StatusFinished, upd.Book.Status)
	require.NotNil(t, upd.Book.FinishedAt)

	c.call(http.MethodPut, "/api/books/"+created.ID+"/rating", map[string]int{"rating": 4}, http.StatusOK, &upd)
	assert.Equal(t, 4, upd.Book.Rating)

	c.call(http.MethodPut, "/api/books/"+created.ID+"/rating", map[string]int{"rating": 7}, http.StatusBadRequest, nil)

	c.call(http.MethodPut, "/api/books/missing/status", map[string]string{"status": "reading"}, http.StatusOK, &upd)
	assert.False(t, upd.Updated)
	assert.Nil(t, upd.Book)

	assert.Equal(t, []string{
		"'The Hobbit' added to your bookshelf!",
		"Book status updated to finished!",
		"Book rating updated!",
		"Failed to update book rating: Rating must be between 0 and 5",
		"No book with id missing on your shelf",
	}, messages(c.notifications()))
}

func TestAPI_Reviews(t *testing.T) {
	c := newAPIClient(t, newTestServer(t, testConfig(":memory:")))
	c.login()

	var list handler.BookReviewsResponse
	c.call(http.MethodGet, "/api/books/3/reviews", nil, http.StatusOK, &list)
	assert.Empty(t, list.Reviews)
	assert.False(t, list.HasReviewed)

	var review model.Review
	c.call(http.MethodPost, "/api/books/3/reviews",
		map[string]any{"rating": 4, "content": "Green light.", "wouldRecommend": true},
		http.StatusCreated, &review)
	assert.Equal(t, service.DemoUsername, review.Username)
	assert.Equal(t, "3", review.BookID)

	c.call(http.MethodGet, "/api/books/3/reviews", nil, http.StatusOK, &list)
	assert.Len(t, list.Reviews, 1)
	assert.True(t, list.HasReviewed)

	var e handler.ErrorResponse
	c.call(http.MethodPost, "/api/books/3/reviews", map[string]any{"rating": 4, "content": " "}, http.StatusBadRequest, &e)
	assert.Equal(t, "content", e.Field)
	c.call(http.MethodPost, "/api/books/3/reviews", map[string]any{"rating": 0, "content": "x"}, http.StatusBadRequest, &e)
	assert.Equal(t, "rating", e.Field)
	c.call(http.MethodPost, "/api/books/nope/reviews", map[string]any{"rating": 3, "content": "x"}, http.StatusNotFound, nil)

	var latest []model.Review
	c.call(http.MethodGet, "/api/explore/reviews", nil, http.StatusOK, &latest)
	require.Len(t, latest, 3)
	assert.Equal(t, review.ID, latest[0].ID)
}

// =========================================================================
// DERIVED VIEWS
// =========================================================================

func TestAPI_ExploreTimelineProfileSearch(t *testing.T) {
	c := newAPIClient(t, newTestServer(t, testConfig(":memory:")))

	var books []model.Book
	c.call(http.MethodGet, "/api/explore/trending", nil, http.StatusOK, &books)
	require.Len(t, books, 5)
	assert.Equal(t, "5", books[0].ID)

	c.call(http.MethodGet, "/api/explore/top-rated", nil, http.StatusOK, &books)
	require.Len(t, books, 2)
	assert.Equal(t, 5, books[0].Rating)

	var groups []service.TimelineGroup
	c.call(http.MethodGet, "/api/timeline", nil, http.StatusOK, &groups)
	require.Len(t, groups, 2)
	assert.Equal(t, "March 2023", groups[0].Label)
	c.call(http.MethodGet, "/api/timeline?tz=America/New_York", nil, http.StatusOK, &groups)
	c.call(http.MethodGet, "/api/timeline?tz=Mars/Olympus", nil, http.StatusBadRequest, nil)

	var profile service.ProfileView
	c.call(http.MethodGet, "/api/profile/bookworm", nil, http.StatusOK, &profile)
	assert.Len(t, profile.Reviews, 2)
	assert.Len(t, profile.Finished, 2)
	c.call(http.MethodGet, "/api/profile/BOOKWORM", nil, http.StatusOK, &profile)
	assert.Len(t, profile.Reviews, 2, "review authorship ignores case")
	c.call(http.MethodGet, "/api/profile/stranger", nil, http.StatusOK, &profile)
	assert.Empty(t, profile.Reviews)

	var results []model.NewBook
	c.call(http.MethodGet, "/api/search?q=hobbit", nil, http.StatusOK, &results)
	require.Len(t, results, 1)
	assert.Equal(t, "J.R.R. Tolkien", results[0].Author)
	c.call(http.MethodGet, "/api/search?q=", nil, http.StatusBadRequest, nil)
}

func TestAPI_Status(t *testing.T) {
	c := newAPIClient(t, newTestServer(t, testConfig(":memory:")))

	var status handler.StatusResponse
	c.call(http.MethodGet, "/api/status", nil, http.StatusOK, &status)
	assert.False(t, status.SessionLoading)
	assert.False(t, status.CatalogLoading)
	assert.Nil(t, status.User)

	c.login()
	c.call(http.MethodGet, "/api/status", nil, http.StatusOK, &status)
	require.NotNil(t, status.User)
	assert.Equal(t, service.DemoUsername, status.User.Username)
}

// =========================================================================
// RESTART / GITHUB
// =========================================================================

func TestAPI_StateSurvivesRestart(t *testing.T) {
	cfg := testConfig(filepath.Join(t.TempDir(), "bookburst.db"))

	first := newTestServer(t, cfg)
	c := newAPIClient(t, first)
	c.login()
	c.call(http.MethodPost, "/api/books", map[string]string{"title": "Dune", "author": "Frank Herbert"}, http.StatusCreated, nil)
	require.NoError(t, first.Close())

	second := newTestServer(t, cfg)
	c2 := newAPIClient(t, second)

	var status handler.StatusResponse
	c2.call(http.MethodGet, "/api/status", nil, http.StatusOK, &status)
	require.NotNil(t, status.User, "session is restored from storage")
	assert.Equal(t, service.DemoUsername, status.User.Username)

	var books []model.Book
	c2.call(http.MethodGet, "/api/books", nil, http.StatusOK, &books)
	assert.Len(t, books, 6)
	assert.Equal(t, "Dune", books[5].Title)
}

func TestAPI_GitHubRoutes(t *testing.T) {
	disabled := newAPIClient(t, newTestServer(t, testConfig(":memory:")))
	resp := disabled.do(http.MethodGet, "/auth/github/login", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	cfg := testConfig(":memory:")
	cfg.GitHubClientID = "client-id"
	cfg.GitHubClientSecret = "client-secret"
	cfg.GitHubCallbackURL = "http://localhost:8080/auth/github/callback"
	enabled := newAPIClient(t, newTestServer(t, cfg))

	resp = enabled.do(http.MethodGet, "/auth/github/login", nil)
	require.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	loc := resp.Header.Get("Location")
	assert.True(t, strings.HasPrefix(loc, "https://github.com/login/oauth/authorize"), loc)
	assert.Contains(t, loc, "client_id=client-id")

	// A callback without the matching state cookie is rejected.
	resp = enabled.do(http.MethodGet, "/auth/github/callback?state=forged&code=x", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
