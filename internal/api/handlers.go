package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/inkhaven/inkhaven-backend/internal/auth"
	"github.com/inkhaven/inkhaven-backend/internal/blog"
	"github.com/inkhaven/inkhaven-backend/internal/events"
	"github.com/inkhaven/inkhaven-backend/internal/render"
	"github.com/inkhaven/inkhaven-backend/internal/search"
	"github.com/inkhaven/inkhaven-backend/pkg/kv"
	"go.uber.org/zap"
)

type Handler struct {
	posts      *blog.PostRepository
	comments   *blog.CommentRepository
	images     *blog.ImageRepository
	auth       *auth.Manager
	hub        *events.Hub
	sseHandler *events.SSEHandler
	wsHandler  *events.WSHandler
	renderer   *render.Renderer
	store      kv.Store
	logger     *zap.SugaredLogger
	metrics    MetricsHooks
	maxUpload  int64
	adminUser  string
}

// MetricsHooks is the slice of metrics the handlers record directly.
type MetricsHooks interface {
	RecordSearchQuery(ctx context.Context, kind string)
}

type HandlerConfig struct {
	Posts      *blog.PostRepository
	Comments   *blog.CommentRepository
	Images     *blog.ImageRepository
	Auth       *auth.Manager
	Hub        *events.Hub
	SSEHandler *events.SSEHandler
	WSHandler  *events.WSHandler
	Renderer   *render.Renderer
	Store      kv.Store
	Logger     *zap.SugaredLogger
	Metrics    MetricsHooks
	MaxUpload  int64
	AdminUser  string
}

func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		posts:      cfg.Posts,
		comments:   cfg.Comments,
		images:     cfg.Images,
		auth:       cfg.Auth,
		hub:        cfg.Hub,
		sseHandler: cfg.SSEHandler,
		wsHandler:  cfg.WSHandler,
		renderer:   cfg.Renderer,
		store:      cfg.Store,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		maxUpload:  cfg.MaxUpload,
		adminUser:  cfg.AdminUser,
	}
}

// Auth endpoints

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, codeBadRequest, "invalid JSON body")
		return
	}

	if !h.auth.ValidateCredentials(req.Username, req.Password) {
		h.writeError(w, http.StatusUnauthorized, codeUnauthorized, "invalid credentials")
		return
	}

	token, err := h.auth.CreateSession(r.Context())
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	h.auth.SetSessionCookie(w, token)
	h.writeJSON(w, http.StatusOK, LoginResponse{Authenticated: true, Username: req.Username})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := auth.SessionToken(r); token != "" {
		if err := h.auth.DestroySession(r.Context(), token); err != nil {
			h.logger.Warnw("Failed to destroy session", "error", err)
		}
	}
	h.auth.ClearSessionCookie(w)
	h.writeJSON(w, http.StatusOK, SessionResponse{Authenticated: false})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	if !h.auth.Authenticated(r) {
		h.writeJSON(w, http.StatusOK, SessionResponse{Authenticated: false})
		return
	}
	h.writeJSON(w, http.StatusOK, SessionResponse{Authenticated: true, Username: h.adminUser})
}

// Post endpoints

func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	var posts []blog.Post
	if r.URL.Query().Get("all") == "1" && h.auth.Authenticated(r) {
		posts = h.posts.All(r.Context())
	} else {
		posts = h.posts.Published(r.Context())
	}

	renderHTML := r.URL.Query().Get("render") == "html"

	dtos := make([]PostDTO, 0, len(posts))
	for _, p := range posts {
		dtos = append(dtos, h.postDTO(p, renderHTML))
	}
	h.writeJSON(w, http.StatusOK, PostListResponse{Posts: dtos, Total: len(dtos)})
}

func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	postSlug := chi.URLParam(r, "slug")

	post, err := h.posts.Get(r.Context(), postSlug)
	if err != nil {
		h.writeBlogError(w, err)
		return
	}

	if !post.IsPublished() && !h.auth.Authenticated(r) {
		h.writeError(w, http.StatusNotFound, codeNotFound, fmt.Sprintf("post %q not found", postSlug))
		return
	}

	h.writeJSON(w, http.StatusOK, h.postDTO(post, r.URL.Query().Get("render") == "html"))
}

func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, codeBadRequest, "invalid JSON body")
		return
	}

	post, err := h.posts.Create(r.Context(), blog.PostInput{
		Title:       req.Title,
		Description: req.Description,
		Content:     req.Content,
		Author:      req.Author,
		Date:        req.Date,
		Tags:        req.Tags,
		Status:      req.Status,
	})
	if err != nil {
		h.writeBlogError(w, err)
		return
	}

	h.hub.Publish(r.Context(), events.TypePostCreated, post)
	h.writeJSON(w, http.StatusCreated, h.postDTO(post, false))
}

func (h *Handler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	postSlug := chi.URLParam(r, "slug")

	var req UpdatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, codeBadRequest, "invalid JSON body")
		return
	}

	post, err := h.posts.Update(r.Context(), postSlug, blog.PostUpdate{
		Title:       req.Title,
		Description: req.Description,
		Content:     req.Content,
		Author:      req.Author,
		Date:        req.Date,
		Tags:        req.Tags,
		Status:      req.Status,
	})
	if err != nil {
		h.writeBlogError(w, err)
		return
	}

	h.hub.Publish(r.Context(), events.TypePostUpdated, post)
	h.writeJSON(w, http.StatusOK, h.postDTO(post, false))
}

func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	postSlug := chi.URLParam(r, "slug")

	if err := h.posts.Delete(r.Context(), postSlug); err != nil {
		h.writeBlogError(w, err)
		return
	}

	h.hub.Publish(r.Context(), events.TypePostDeleted, map[string]string{"slug": postSlug})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) postDTO(p blog.Post, renderHTML bool) PostDTO {
	dto := PostDTO{Post: p}
	if renderHTML {
		html, err := h.renderer.HTML(p.Content)
		if err != nil {
			h.logger.Warnw("Markdown render failed", "slug", p.Slug, "error", err)
		} else {
			dto.HTML = html
		}
	}
	return dto
}

// Comment endpoints

func (h *Handler) ListComments(w http.ResponseWriter, r *http.Request) {
	if postSlug := r.URL.Query().Get("postSlug"); postSlug != "" {
		comments := h.comments.ForPost(r.Context(), postSlug)
		h.writeJSON(w, http.StatusOK, CommentListResponse{Comments: comments, Total: len(comments)})
		return
	}

	// the full queue, all statuses, is admin-only
	if !h.auth.Authenticated(r) {
		h.writeError(w, http.StatusUnauthorized, codeUnauthorized, "admin session required")
		return
	}

	comments := h.comments.All(r.Context())
	h.writeJSON(w, http.StatusOK, CommentListResponse{Comments: comments, Total: len(comments)})
}

func (h *Handler) CreateComment(w http.ResponseWriter, r *http.Request) {
	var req CreateCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, codeBadRequest, "invalid JSON body")
		return
	}

	comment, err := h.comments.Create(r.Context(), blog.CommentInput{
		PostSlug:  req.PostSlug,
		Author:    req.Author,
		Email:     req.Email,
		Content:   req.Content,
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		h.writeBlogError(w, err)
		return
	}

	h.hub.Publish(r.Context(), events.TypeCommentCreated, comment)
	h.writeJSON(w, http.StatusCreated, comment)
}

func (h *Handler) UpdateComment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, codeBadRequest, "invalid JSON body")
		return
	}

	comment, err := h.comments.Update(r.Context(), id, blog.CommentUpdate{
		Author:  req.Author,
		Email:   req.Email,
		Content: req.Content,
		Status:  req.Status,
	})
	if err != nil {
		h.writeBlogError(w, err)
		return
	}

	if req.Status != nil {
		h.hub.Publish(r.Context(), events.TypeCommentModerated, comment)
	}
	h.writeJSON(w, http.StatusOK, comment)
}

func (h *Handler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.comments.Delete(r.Context(), id); err != nil {
		h.writeBlogError(w, err)
		return
	}

	h.hub.Publish(r.Context(), events.TypeCommentDeleted, map[string]string{"id": id})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CommentStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.comments.Stats(r.Context()))
}

// Image endpoints

func (h *Handler) ListImages(w http.ResponseWriter, r *http.Request) {
	images := h.images.All(r.Context())
	h.writeJSON(w, http.StatusOK, ImageListResponse{Images: images, Total: len(images)})
}

func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		h.writeError(w, http.StatusRequestEntityTooLarge, codePayloadLimit,
			fmt.Sprintf("upload exceeds %d bytes", h.maxUpload))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, codeBadRequest, "missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, codeBadRequest, "failed to read upload")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	img, err := h.images.Upload(r.Context(), blog.ImageUpload{
		OriginalName: header.Filename,
		MimeType:     mimeType,
		Data:         data,
		Alt:          r.FormValue("alt"),
		Description:  r.FormValue("description"),
	})
	if err != nil {
		if errors.Is(err, blog.ErrValidation) {
			h.writeError(w, http.StatusUnsupportedMediaType, codeUploadInvalid, err.Error())
			return
		}
		h.writeBlogError(w, err)
		return
	}

	h.hub.Publish(r.Context(), events.TypeImageUploaded, img)
	h.writeJSON(w, http.StatusCreated, img)
}

func (h *Handler) UpdateImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, codeBadRequest, "invalid JSON body")
		return
	}

	img, err := h.images.Update(r.Context(), id, blog.ImageUpdate{
		Alt:         req.Alt,
		Description: req.Description,
	})
	if err != nil {
		h.writeBlogError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, img)
}

func (h *Handler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.images.Delete(r.Context(), id); err != nil {
		h.writeBlogError(w, err)
		return
	}

	h.hub.Publish(r.Context(), events.TypeImageDeleted, map[string]string{"id": id})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ServeImage(w http.ResponseWriter, r *http.Request) {
	filename := r.URL.Query().Get("file")
	if filename == "" || strings.ContainsAny(filename, "/\\") {
		h.writeError(w, http.StatusBadRequest, codeBadRequest, "file parameter required")
		return
	}

	data, err := h.images.Blob(r.Context(), filename)
	if err != nil {
		h.writeBlogError(w, err)
		return
	}

	w.Header().Set("Content-Type", blog.MimeForFilename(filename))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
	w.Write(data)
}

func (h *Handler) ImageStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.images.Stats(r.Context()))
}

// Search endpoints

func (h *Handler) SearchPosts(w http.ResponseWriter, r *http.Request) {
	filters := parseFilters(r)
	h.recordSearch(r.Context(), "posts")

	var posts []blog.Post
	if h.auth.Authenticated(r) {
		posts = h.posts.All(r.Context())
	} else {
		posts = h.posts.Published(r.Context())
	}

	h.writeJSON(w, http.StatusOK, search.Posts(posts, filters))
}

func (h *Handler) SearchComments(w http.ResponseWriter, r *http.Request) {
	filters := parseFilters(r)
	h.recordSearch(r.Context(), "comments")

	h.writeJSON(w, http.StatusOK, search.Comments(h.comments.All(r.Context()), filters))
}

func (h *Handler) SearchImages(w http.ResponseWriter, r *http.Request) {
	filters := parseFilters(r)
	h.recordSearch(r.Context(), "images")

	h.writeJSON(w, http.StatusOK, search.Images(h.images.All(r.Context()), filters))
}

func (h *Handler) SearchMeta(w http.ResponseWriter, r *http.Request) {
	posts := h.posts.Published(r.Context())
	h.writeJSON(w, http.StatusOK, SearchMetaResponse{
		Tags:     search.AvailableTags(posts),
		Authors:  search.AvailableAuthors(posts),
		Statuses: []string{blog.CommentPending, blog.CommentApproved, blog.CommentRejected},
	})
}

func parseFilters(r *http.Request) search.Filters {
	q := r.URL.Query()

	var tags []string
	if raw := q.Get("tags"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
	}

	return search.Filters{
		Query:     q.Get("query"),
		Tags:      tags,
		Author:    q.Get("author"),
		Status:    q.Get("status"),
		DateFrom:  q.Get("dateFrom"),
		DateTo:    q.Get("dateTo"),
		SortBy:    q.Get("sortBy"),
		SortOrder: q.Get("sortOrder"),
	}
}

func (h *Handler) recordSearch(ctx context.Context, kind string) {
	if h.metrics != nil {
		h.metrics.RecordSearchQuery(ctx, kind)
	}
}

// Streaming endpoints

func (h *Handler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	h.sseHandler.ServeHTTP(w, r)
}

func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.wsHandler.ServeHTTP(w, r)
}

// Health and ops endpoints

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.writeError(w, http.StatusServiceUnavailable, codeStoreFailure, "content store unreachable")
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("READY"))
}

// Utility methods

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i > 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host := r.RemoteAddr
	if i := strings.LastIndexByte(host, ':'); i > 0 {
		host = host[:i]
	}
	return host
}

// writeBlogError maps repository errors onto the API error taxonomy.
func (h *Handler) writeBlogError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, blog.ErrValidation):
		h.writeError(w, http.StatusBadRequest, codeValidation, err.Error())
	case errors.Is(err, blog.ErrNotFound):
		h.writeError(w, http.StatusNotFound, codeNotFound, err.Error())
	case errors.Is(err, blog.ErrConflict):
		h.writeError(w, http.StatusConflict, codeConflict, err.Error())
	default:
		h.writeStoreError(w, err)
	}
}

func (h *Handler) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, kv.ErrBackendUnavailable) {
		h.writeError(w, http.StatusServiceUnavailable, codeStoreFailure, "content store unavailable")
		return
	}
	h.logger.Errorw("Unexpected error", "error", err)
	h.writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.logger.Errorw("API error", "code", code, "message", message, "status", status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Code:    code,
		Message: message,
	})
}
