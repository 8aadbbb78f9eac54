// Package client is a Go client for the imgshare REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/imgshare/apiserver/types"
)

// ErrNotLoggedIn is returned by authenticated calls when no token is stored.
var ErrNotLoggedIn = errors.New("not logged in")

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Title      string `json:"error"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Title, e.Message)
	}
	return fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Session is the result of a successful login or registration.
type Session struct {
	Username string `json:"username"`
	Token    string `json:"token"`
	Message  string `json:"message"`
}

// UploadedImage is the server's reply to an upload.
type UploadedImage struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Src  string `json:"src"`
}

// Client talks to one imgshare server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenStore
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTokenStore sets where the session token is kept.
func WithTokenStore(tokens TokenStore) Option {
	return func(c *Client) { c.tokens = tokens }
}

// New returns a Client for baseURL, e.g. "http://localhost:3000".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		tokens:     &MemoryTokenStore{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register creates an account and stores the returned token.
func (c *Client) Register(ctx context.Context, username, password string) (Session, error) {
	return c.authenticate(ctx, "/auth/register", username, password)
}

// Login verifies credentials and stores the returned token.
func (c *Client) Login(ctx context.Context, username, password string) (Session, error) {
	return c.authenticate(ctx, "/auth/login", username, password)
}

// Logout forgets the stored token.
func (c *Client) Logout() error {
	return c.tokens.Clear()
}

func (c *Client) authenticate(ctx context.Context, path, username, password string) (Session, error) {
	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return Session{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return Session{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	var session Session
	if err := c.do(req, &session); err != nil {
		return Session{}, err
	}
	if err := c.tokens.Save(session.Token); err != nil {
		return Session{}, fmt.Errorf("save token: %w", err)
	}
	return session, nil
}

// ListImages returns the whole gallery.
func (c *Client) ListImages(ctx context.Context) ([]types.ImageView, error) {
	return c.fetchImages(ctx, "/api/images")
}

// SearchImages returns images whose name contains name.
func (c *Client) SearchImages(ctx context.Context, name string) ([]types.ImageView, error) {
	return c.fetchImages(ctx, "/api/images/search?name="+url.QueryEscape(name))
}

func (c *Client) fetchImages(ctx context.Context, path string) ([]types.ImageView, error) {
	req, err := c.authedRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	images := []types.ImageView{}
	if err := c.do(req, &images); err != nil {
		return nil, err
	}
	return images, nil
}

// RenameImage changes the name of an image the caller owns.
func (c *Client) RenameImage(ctx context.Context, id, name string) error {
	body, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return err
	}
	req, err := c.authedRequest(ctx, http.MethodPatch, "/api/images/"+url.PathEscape(id), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, nil)
}

// UploadImage sends data as a new image. The content type is derived from
// filename's extension.
func (c *Client) UploadImage(ctx context.Context, name, filename string, data io.Reader) (UploadedImage, error) {
	contentType, err := imageContentType(filename)
	if err != nil {
		return UploadedImage{}, err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("name", name); err != nil {
		return UploadedImage{}, err
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, filepath.Base(filename)))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return UploadedImage{}, err
	}
	if _, err := io.Copy(part, data); err != nil {
		return UploadedImage{}, fmt.Errorf("read %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return UploadedImage{}, err
	}

	req, err := c.authedRequest(ctx, http.MethodPost, "/api/images", &buf)
	if err != nil {
		return UploadedImage{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var uploaded UploadedImage
	if err := c.do(req, &uploaded); err != nil {
		return UploadedImage{}, err
	}
	return uploaded, nil
}

func imageContentType(filename string) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		return "image/png", nil
	case ".jpg", ".jpeg":
		return "image/jpeg", nil
	default:
		return "", fmt.Errorf("unsupported image type %q", filepath.Ext(filename))
	}
}

func (c *Client) authedRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	token, err := c.tokens.Load()
	if err != nil {
		return nil, fmt.Errorf("load token: %w", err)
	}
	if token == "" {
		return nil, ErrNotLoggedIn
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req, nil
}

// do sends req and decodes a JSON body into out when out is non-nil.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
