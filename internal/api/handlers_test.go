package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/inkhaven/inkhaven-backend/internal/auth"
	"github.com/inkhaven/inkhaven-backend/internal/blog"
	"github.com/inkhaven/inkhaven-backend/internal/events"
	"github.com/inkhaven/inkhaven-backend/internal/render"
	"github.com/inkhaven/inkhaven-backend/pkg/kv/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testServer struct {
	server *httptest.Server
	posts  *blog.PostRepository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := memory.New(0)
	t.Cleanup(func() { store.Close() })

	logger := zap.NewNop().Sugar()

	posts := blog.NewPostRepository(store, logger, nil)
	comments := blog.NewCommentRepository(store, logger, nil)
	images := blog.NewImageRepository(store, logger, nil)

	authMgr := auth.NewManager(store, auth.Config{
		Username:   "admin",
		Password:   "hunter2",
		SessionTTL: time.Hour,
	}, logger)

	hub := events.NewHub(logger, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	handler := NewHandler(HandlerConfig{
		Posts:      posts,
		Comments:   comments,
		Images:     images,
		Auth:       authMgr,
		Hub:        hub,
		SSEHandler: events.NewSSEHandler(hub),
		WSHandler:  events.NewWSHandler(hub, nil),
		Renderer:   render.New(),
		Store:      store,
		Logger:     logger,
		MaxUpload:  1 << 20,
		AdminUser:  "admin",
	})

	mw := NewMiddleware(logger, nil, authMgr)
	router := handler.Routes(mw, RouteConfig{
		CORSOrigins:  []string{"http://localhost:3000"},
		RateLimitRPM: 6000,
		LoginRateRPM: 6000,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testServer{server: srv, posts: posts}
}

func (ts *testServer) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, ts.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}

	resp, err := ts.server.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func (ts *testServer) login(t *testing.T) *http.Cookie {
	t.Helper()

	resp := ts.do(t, http.MethodPost, "/v1/admin/login", LoginRequest{Username: "admin", Password: "hunter2"})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	for _, c := range resp.Cookies() {
		if c.Name == auth.CookieName {
			return c
		}
	}
	t.Fatal("no session cookie in login response")
	return nil
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()

	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestLoginFlow(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/v1/admin/login", LoginRequest{Username: "admin", Password: "wrong"})
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	cookie := ts.login(t)
	assert.True(t, cookie.HttpOnly)

	resp = ts.do(t, http.MethodGet, "/v1/admin/me", nil, cookie)
	me := decodeBody[SessionResponse](t, resp)
	assert.True(t, me.Authenticated)
	assert.Equal(t, "admin", me.Username)

	resp = ts.do(t, http.MethodPost, "/v1/admin/logout", nil, cookie)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/v1/admin/me", nil, cookie)
	me = decodeBody[SessionResponse](t, resp)
	assert.False(t, me.Authenticated)
}

func TestPostLifecycle(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.login(t)

	// create requires auth
	resp := ts.do(t, http.MethodPost, "/v1/posts", CreatePostRequest{Title: "Nope", Content: "x", Author: "a"})
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/v1/posts", CreatePostRequest{
		Title:   "My First Post",
		Content: "# Hello\n\nSome *markdown* here.",
		Author:  "admin",
		Status:  blog.StatusPublished,
		Tags:    []string{"intro"},
	}, cookie)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody[PostDTO](t, resp)
	assert.Equal(t, "my-first-post", created.Slug)

	// duplicate title conflicts
	resp = ts.do(t, http.MethodPost, "/v1/posts", CreatePostRequest{
		Title: "My First Post", Content: "y", Author: "admin",
	}, cookie)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// public read with rendered HTML
	resp = ts.do(t, http.MethodGet, "/v1/posts/my-first-post?render=html", nil)
	got := decodeBody[PostDTO](t, resp)
	assert.Contains(t, got.HTML, "<em>markdown</em>")

	// update
	newStatus := blog.StatusDraft
	resp = ts.do(t, http.MethodPut, "/v1/posts/my-first-post", UpdatePostRequest{Status: &newStatus}, cookie)
	updated := decodeBody[PostDTO](t, resp)
	assert.Equal(t, blog.StatusDraft, updated.Status)

	// drafts vanish from the public view
	resp = ts.do(t, http.MethodGet, "/v1/posts/my-first-post", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/v1/posts", nil)
	listed := decodeBody[PostListResponse](t, resp)
	assert.Zero(t, listed.Total)

	// but stay visible to the admin
	resp = ts.do(t, http.MethodGet, "/v1/posts?all=1", nil, cookie)
	listed = decodeBody[PostListResponse](t, resp)
	assert.Equal(t, 1, listed.Total)

	// delete
	resp = ts.do(t, http.MethodDelete, "/v1/posts/my-first-post", nil, cookie)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/v1/posts/my-first-post", nil, cookie)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCommentModerationOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.login(t)

	resp := ts.do(t, http.MethodPost, "/v1/comments", CreateCommentRequest{
		PostSlug: "some-post",
		Author:   "carol",
		Email:    "carol@example.com",
		Content:  "nice writeup",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	comment := decodeBody[blog.Comment](t, resp)
	assert.Equal(t, blog.CommentPending, comment.Status)

	// pending comments are not returned publicly
	resp = ts.do(t, http.MethodGet, "/v1/comments?postSlug=some-post", nil)
	pub := decodeBody[CommentListResponse](t, resp)
	assert.Zero(t, pub.Total)

	// the full queue requires auth
	resp = ts.do(t, http.MethodGet, "/v1/comments", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/v1/comments", nil, cookie)
	all := decodeBody[CommentListResponse](t, resp)
	assert.Equal(t, 1, all.Total)

	// approve and re-check public view
	status := blog.CommentApproved
	resp = ts.do(t, http.MethodPut, "/v1/comments/"+comment.ID, UpdateCommentRequest{Status: &status}, cookie)
	moderated := decodeBody[blog.Comment](t, resp)
	assert.Equal(t, blog.CommentApproved, moderated.Status)

	resp = ts.do(t, http.MethodGet, "/v1/comments?postSlug=some-post", nil)
	pub = decodeBody[CommentListResponse](t, resp)
	assert.Equal(t, 1, pub.Total)

	// stats
	resp = ts.do(t, http.MethodGet, "/v1/stats/comments", nil, cookie)
	stats := decodeBody[blog.CommentStats](t, resp)
	assert.Equal(t, 1, stats.Approved)
}

func TestImageUploadAndServeOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.login(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreatePart(map[string][]string{
		"Content-Disposition": {`form-data; name="file"; filename="pic.png"`},
		"Content-Type":        {"image/png"},
	})
	require.NoError(t, err)
	_, err = part.Write([]byte("fake png bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("alt", "a picture"))
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, ts.server.URL+"/v1/images", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(cookie)

	resp, err := ts.server.Client().Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	img := decodeBody[blog.Image](t, resp)
	assert.Equal(t, "pic.png", img.OriginalName)
	assert.Equal(t, "a picture", img.Alt)
	assert.True(t, strings.HasSuffix(img.Filename, ".png"))

	// public serving with long-lived caching
	resp = ts.do(t, http.MethodGet, "/v1/images/serve?file="+img.Filename, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Cache-Control"), "max-age=31536000")

	// listing requires auth
	listResp := ts.do(t, http.MethodGet, "/v1/images", nil)
	listResp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, listResp.StatusCode)

	listResp = ts.do(t, http.MethodGet, "/v1/images", nil, cookie)
	listing := decodeBody[ImageListResponse](t, listResp)
	assert.Equal(t, 1, listing.Total)

	// delete removes blob and metadata
	delResp := ts.do(t, http.MethodDelete, "/v1/images/"+img.ID, nil, cookie)
	delResp.Body.Close()
	assert.Equal(t, http.StatusNoContent, delResp.StatusCode)

	serveResp := ts.do(t, http.MethodGet, "/v1/images/serve?file="+img.Filename, nil)
	serveResp.Body.Close()
	assert.Equal(t, http.StatusNotFound, serveResp.StatusCode)
}

func TestSearchEndpoint(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.login(t)

	for _, title := range []string{"Intro to Go", "Intro to Rust", "Cooking Notes"} {
		resp := ts.do(t, http.MethodPost, "/v1/posts", CreatePostRequest{
			Title: title, Content: "c", Author: "admin", Status: blog.StatusPublished,
		}, cookie)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}

	resp := ts.do(t, http.MethodGet, "/v1/search/posts?query=intro&sortBy=title&sortOrder=asc", nil)
	var result struct {
		Items []blog.Post `json:"items"`
		Total int         `json:"total"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	resp.Body.Close()

	require.Equal(t, 2, result.Total)
	assert.Equal(t, "intro-to-go", result.Items[0].Slug)
	assert.Equal(t, "intro-to-rust", result.Items[1].Slug)

	metaResp := ts.do(t, http.MethodGet, "/v1/search/meta", nil)
	meta := decodeBody[SearchMetaResponse](t, metaResp)
	assert.Contains(t, meta.Authors, "admin")
}

func TestSearchCommentsAndImagesRequireAuth(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.login(t)

	resp := ts.do(t, http.MethodPost, "/v1/comments", CreateCommentRequest{
		PostSlug: "some-post",
		Author:   "carol",
		Email:    "carol@example.com",
		Content:  "awaiting moderation",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// the comment search spans the whole moderation queue, submitter email
	// and IP included, so it is never public
	resp = ts.do(t, http.MethodGet, "/v1/search/comments?query=moderation", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/v1/search/images", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/v1/search/comments?query=moderation", nil, cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result struct {
		Items []blog.Comment `json:"items"`
		Total int            `json:"total"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	resp.Body.Close()
	require.Equal(t, 1, result.Total)
	assert.Equal(t, "carol@example.com", result.Items[0].Email)

	resp = ts.do(t, http.MethodGet, "/v1/search/images", nil, cookie)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateCommentRejectsBadEmail(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/v1/comments", CreateCommentRequest{
		PostSlug: "some-post",
		Author:   "carol",
		Email:    "not-an-email",
		Content:  "hello",
	})
	body := decodeBody[ErrorResponse](t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, codeValidation, body.Code)
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz", "/ping"} {
		resp := ts.do(t, http.MethodGet, path, nil)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestErrorShape(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/v1/posts/does-not-exist", nil)
	body := decodeBody[ErrorResponse](t, resp)
	assert.Equal(t, codeNotFound, body.Code)
	assert.NotEmpty(t, body.Message)

	resp = ts.do(t, http.MethodPost, "/v1/comments", CreateCommentRequest{PostSlug: "p"})
	body = decodeBody[ErrorResponse](t, resp)
	assert.Equal(t, codeValidation, body.Code)
}

func TestRequestIDHeader(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/healthz", nil)
	resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}
