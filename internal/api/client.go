// Package api is the thin client for the CodeVault REST backend.
//
// The dashboard owns no business logic — authentication, snippet storage,
// favorite tracking and user administration all live behind this client.
// Its job is exactly three things:
//  1. Attach the bearer token to authenticated requests
//  2. Encode/decode the backend's wire shapes (see internal/model)
//  3. Translate failures into the apperror taxonomy so handlers never
//     have to look at an *http.Response
//
// ERROR TRANSLATION:
// A transport failure (connection refused, timeout, cancelled context)
// becomes apperror.ErrUnavailable — the request never reached a status code.
// A non-2xx response becomes a taxonomy error carrying the backend's
// {"detail": "..."} message verbatim when present. Callers use errors.Is and
// never inspect status codes themselves.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/codevault/dashboard/internal/apperror"
	"github.com/codevault/dashboard/internal/model"
)

// Client talks to a single fixed-origin CodeVault backend.
type Client struct {
	origin string
	http   *http.Client
}

// New creates a Client for the given origin, e.g. "http://127.0.0.1:8000".
// The timeout bounds every round-trip; per-request contexts can cancel
// earlier (abandoned page loads cancel their fetches at the transport level).
func New(origin string, timeout time.Duration) *Client {
	return &Client{
		origin: strings.TrimRight(origin, "/"),
		http:   &http.Client{Timeout: timeout},
	}
}

// LoginResult is the backend's response to a successful login.
type LoginResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Username    string `json:"username"`
	Role        string `json:"role"`
}

// SnippetInput carries the user-editable snippet fields for add/update.
type SnippetInput struct {
	Title       string `json:"title"`
	Language    string `json:"language"`
	Description string `json:"description"`
	Tags        string `json:"tags"`
	Code        string `json:"code"`
}

// detailBody is the backend's error envelope (FastAPI-style).
type detailBody struct {
	Detail string `json:"detail"`
}

// Login exchanges credentials for an access token.
// The backend expects form-encoded credentials on this one endpoint.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.origin+"/login",
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("building login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var out LoginResult
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates an account. The backend enforces uniqueness and assigns
// the role; client-side checks before this call are advisory only.
func (c *Client) Register(ctx context.Context, username, email, password string) error {
	body := map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}
	req, err := c.jsonRequest(ctx, http.MethodPost, "/register", "", body)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// MySnippets fetches the authenticated user's full snippet collection.
func (c *Client) MySnippets(ctx context.Context, token string) ([]model.Snippet, error) {
	req, err := c.jsonRequest(ctx, http.MethodGet, "/snippets/my", token, nil)
	if err != nil {
		return nil, err
	}
	var out []model.Snippet
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Snippet fetches a single snippet by id.
func (c *Client) Snippet(ctx context.Context, token string, id int64) (*model.Snippet, error) {
	req, err := c.jsonRequest(ctx, http.MethodGet, fmt.Sprintf("/snippets/%d", id), token, nil)
	if err != nil {
		return nil, err
	}
	var out model.Snippet
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddSnippet creates a snippet and returns the backend's copy of it
// (with the assigned id and timestamp).
func (c *Client) AddSnippet(ctx context.Context, token string, in SnippetInput) (*model.Snippet, error) {
	req, err := c.jsonRequest(ctx, http.MethodPost, "/snippets/add", token, in)
	if err != nil {
		return nil, err
	}
	var out model.Snippet
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateSnippet replaces the editable fields of an existing snippet.
func (c *Client) UpdateSnippet(ctx context.Context, token string, id int64, in SnippetInput) (*model.Snippet, error) {
	req, err := c.jsonRequest(ctx, http.MethodPut, fmt.Sprintf("/snippets/update/%d", id), token, in)
	if err != nil {
		return nil, err
	}
	var out model.Snippet
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteSnippet removes a snippet.
func (c *Client) DeleteSnippet(ctx context.Context, token string, id int64) error {
	req, err := c.jsonRequest(ctx, http.MethodDelete, fmt.Sprintf("/snippets/delete/%d", id), token, nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// ToggleFavorite flips the favorite flag and returns the new state.
func (c *Client) ToggleFavorite(ctx context.Context, token string, id int64) (bool, error) {
	req, err := c.jsonRequest(ctx, http.MethodPost, fmt.Sprintf("/snippets/favorite/%d", id), token, nil)
	if err != nil {
		return false, err
	}
	var out struct {
		IsFavorite bool `json:"is_favorite"`
	}
	if err := c.do(req, &out); err != nil {
		return false, err
	}
	return out.IsFavorite, nil
}

// AdminUsers lists all registered users. Requires an admin token;
// the backend enforces the role, we just forward the result.
func (c *Client) AdminUsers(ctx context.Context, token string) ([]model.User, error) {
	req, err := c.jsonRequest(ctx, http.MethodGet, "/admin/users", token, nil)
	if err != nil {
		return nil, err
	}
	var out []model.User
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteUser removes a user account (admin only).
func (c *Client) DeleteUser(ctx context.Context, token string, id int64) error {
	req, err := c.jsonRequest(ctx, http.MethodDelete, fmt.Sprintf("/admin/delete/%d", id), token, nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// SnippetsWithFavorites returns every snippet with its aggregate
// favorite_count, for the admin analytics charts.
func (c *Client) SnippetsWithFavorites(ctx context.Context, token string) ([]model.Snippet, error) {
	req, err := c.jsonRequest(ctx, http.MethodGet, "/admin/snippets-with-favorites", token, nil)
	if err != nil {
		return nil, err
	}
	var out []model.Snippet
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// jsonRequest builds a request with an optional JSON body and bearer token.
func (c *Client) jsonRequest(ctx context.Context, method, path, token string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.origin+path, reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// do executes the request and decodes a 2xx body into out (out may be nil
// when the caller doesn't need the body). Any other outcome becomes a
// taxonomy error — callers never see status codes.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return apperror.Unavailable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp)
	}

	if out == nil {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperror.Unavailable(fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

// statusError maps a non-2xx response to the taxonomy, keeping the
// backend's detail message when the body carries one.
func statusError(resp *http.Response) error {
	var detail detailBody
	// Best effort — an empty or malformed body just means no detail.
	_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&detail)

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		msg := detail.Detail
		if msg == "" {
			msg = "authentication required"
		}
		return apperror.Unauthorized(msg)
	case http.StatusForbidden:
		msg := detail.Detail
		if msg == "" {
			msg = "not allowed"
		}
		return apperror.Forbidden(msg)
	case http.StatusNotFound:
		if detail.Detail != "" {
			return &apperror.AppError{Err: apperror.ErrNotFound, Message: detail.Detail}
		}
		return &apperror.AppError{Err: apperror.ErrNotFound, Message: "not found"}
	default:
		return apperror.Backend(detail.Detail)
	}
}
