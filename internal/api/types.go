package api

import (
	"github.com/inkhaven/inkhaven-backend/internal/blog"
)

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes returned by the API.
const (
	codeValidation    = "VALIDATION_ERROR"
	codeNotFound      = "NOT_FOUND"
	codeConflict      = "CONFLICT"
	codeUnauthorized  = "UNAUTHORIZED"
	codeBadRequest    = "BAD_REQUEST"
	codeStoreFailure  = "STORE_UNAVAILABLE"
	codeInternal      = "INTERNAL_ERROR"
	codePayloadLimit  = "PAYLOAD_TOO_LARGE"
	codeUploadInvalid = "UNSUPPORTED_MEDIA_TYPE"
)

// LoginRequest is the admin login body.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse acknowledges a successful login.
type LoginResponse struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username"`
}

// SessionResponse describes the current session for /v1/admin/me.
type SessionResponse struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
}

// CreatePostRequest is the body of POST /v1/posts.
type CreatePostRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Content     string   `json:"content"`
	Author      string   `json:"author"`
	Date        string   `json:"date"`
	Tags        []string `json:"tags"`
	Status      string   `json:"status"`
}

// UpdatePostRequest is the body of PUT /v1/posts/{slug}. Absent fields are
// left unchanged.
type UpdatePostRequest struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Content     *string   `json:"content"`
	Author      *string   `json:"author"`
	Date        *string   `json:"date"`
	Tags        *[]string `json:"tags"`
	Status      *string   `json:"status"`
}

// PostDTO is a post as returned by the API. HTML is only populated when the
// caller asks for rendered content.
type PostDTO struct {
	blog.Post
	HTML string `json:"html,omitempty"`
}

// PostListResponse wraps a list of posts.
type PostListResponse struct {
	Posts []PostDTO `json:"posts"`
	Total int       `json:"total"`
}

// CreateCommentRequest is the body of POST /v1/comments.
type CreateCommentRequest struct {
	PostSlug string `json:"postSlug"`
	Author   string `json:"author"`
	Email    string `json:"email"`
	Content  string `json:"content"`
}

// UpdateCommentRequest is the body of PUT /v1/comments/{id}.
type UpdateCommentRequest struct {
	Author  *string `json:"author"`
	Email   *string `json:"email"`
	Content *string `json:"content"`
	Status  *string `json:"status"`
}

// CommentListResponse wraps a list of comments.
type CommentListResponse struct {
	Comments []blog.Comment `json:"comments"`
	Total    int            `json:"total"`
}

// UpdateImageRequest is the body of PUT /v1/images/{id}.
type UpdateImageRequest struct {
	Alt         *string `json:"alt"`
	Description *string `json:"description"`
}

// ImageListResponse wraps the image library listing.
type ImageListResponse struct {
	Images []blog.Image `json:"images"`
	Total  int          `json:"total"`
}

// SearchMetaResponse lists the filter values available to search UIs.
type SearchMetaResponse struct {
	Tags     []string `json:"tags"`
	Authors  []string `json:"authors"`
	Statuses []string `json:"statuses"`
}
