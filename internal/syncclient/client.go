// Package syncclient talks to the iChat HTTP API and keeps an open
// conversation view in sync by polling.
package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"ichat_backend/internal/model"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// APIError is a failed API call, carrying the server's error kind and reason.
type APIError struct {
	Status  int
	Kind    string
	Reason  string
	Message string
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%d %s (%s): %s", e.Status, e.Kind, e.Reason, e.Message)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.Kind, e.Message)
}

// IsUnauthenticated reports whether err means the session is gone and the
// user has to log in again.
func IsUnauthenticated(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Kind    string          `json:"kind"`
	Reason  string          `json:"reason"`
	Data    json.RawMessage `json:"data"`
}

// Client is a thin API client. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= 400 {
			return &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return &APIError{Status: resp.StatusCode, Kind: env.Kind, Reason: env.Reason, Message: env.Message}
	}
	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out interface{}) error {
	if in == nil {
		return c.do(ctx, method, path, nil, "", out)
	}
	buf, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return c.do(ctx, method, path, bytes.NewReader(buf), "application/json", out)
}

// Login stores the returned token on the client.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var resp struct {
		Token string          `json:"token"`
		User  model.UserBrief `json:"user"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/api/login", map[string]string{"email": email, "password": password}, &resp)
	if err != nil {
		return "", err
	}
	c.SetToken(resp.Token)
	return resp.Token, nil
}

func (c *Client) Register(ctx context.Context, fullName, email, password string) (*model.UserBrief, error) {
	var user model.UserBrief
	in := map[string]string{"fullName": fullName, "email": email, "password": password}
	if err := c.doJSON(ctx, http.MethodPost, "/api/register", in, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) SearchUsers(ctx context.Context, term string) ([]model.UserSearchResult, error) {
	var out []model.UserSearchResult
	err := c.doJSON(ctx, http.MethodGet, "/api/users/search?q="+url.QueryEscape(term), nil, &out)
	return out, err
}

func (c *Client) RequestConnection(ctx context.Context, userID uint) (*model.Relationship, error) {
	var rel model.Relationship
	if err := c.doJSON(ctx, http.MethodPost, "/api/connections", map[string]uint{"userId": userID}, &rel); err != nil {
		return nil, err
	}
	return &rel, nil
}

func (c *Client) AcceptConnection(ctx context.Context, requestID uint) error {
	return c.doJSON(ctx, http.MethodPut, fmt.Sprintf("/api/connections/%d/accept", requestID), nil, nil)
}

func (c *Client) ListConnections(ctx context.Context) ([]model.UserBrief, error) {
	var out []model.UserBrief
	err := c.doJSON(ctx, http.MethodGet, "/api/connections", nil, &out)
	return out, err
}

func (c *Client) ListPending(ctx context.Context) ([]model.ConnectionRequest, error) {
	var out []model.ConnectionRequest
	err := c.doJSON(ctx, http.MethodGet, "/api/connections/pending", nil, &out)
	return out, err
}

func (c *Client) ListConversations(ctx context.Context) ([]model.ConversationSummary, error) {
	var out []model.ConversationSummary
	err := c.doJSON(ctx, http.MethodGet, "/api/conversations", nil, &out)
	return out, err
}

func (c *Client) StartDirect(ctx context.Context, userID uint) (uint, error) {
	var out struct {
		ConversationID uint `json:"conversationId"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/api/conversations/direct", map[string]uint{"userId": userID}, &out)
	return out.ConversationID, err
}

func (c *Client) CreateGroup(ctx context.Context, name, description string, memberIDs []uint) (*model.Conversation, error) {
	in := map[string]interface{}{"name": name, "description": description, "memberIds": memberIDs}
	var conv model.Conversation
	if err := c.doJSON(ctx, http.MethodPost, "/api/groups", in, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (c *Client) GetConversation(ctx context.Context, conversationID uint) (*model.ConversationInfo, error) {
	var info model.ConversationInfo
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/conversations/%d", conversationID), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) ListMessages(ctx context.Context, conversationID, afterID uint) ([]model.MessageView, error) {
	path := fmt.Sprintf("/api/conversations/%d/messages", conversationID)
	if afterID > 0 {
		path += "?after_id=" + strconv.FormatUint(uint64(afterID), 10)
	}
	var out []model.MessageView
	err := c.doJSON(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// File is an attachment to send; Name is only shown to other participants.
type File struct {
	Name   string
	Reader io.Reader
}

func (c *Client) SendMessage(ctx context.Context, conversationID uint, text string, file *File) (*model.Message, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("message", text); err != nil {
		return nil, err
	}
	if file != nil {
		part, err := w.CreateFormFile("file", file.Name)
		if err != nil {
			return nil, err
		}
		if _, err := io.Copy(part, file.Reader); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	var msg model.Message
	path := fmt.Sprintf("/api/conversations/%d/messages", conversationID)
	if err := c.do(ctx, http.MethodPost, path, &buf, w.FormDataContentType(), &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) DeleteMessage(ctx context.Context, messageID uint) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/api/messages/%d", messageID), nil, nil)
}

func (c *Client) AddMembers(ctx context.Context, groupID, conversationID uint, memberIDs []uint) (int64, error) {
	in := map[string]interface{}{"conversationId": conversationID, "memberIds": memberIDs}
	var out struct {
		Added int64 `json:"added"`
	}
	err := c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/api/groups/%d/members", groupID), in, &out)
	return out.Added, err
}

func (c *Client) RemoveMember(ctx context.Context, groupID, conversationID, userID uint) error {
	path := fmt.Sprintf("/api/groups/%d/members/%d?conversation_id=%d", groupID, userID, conversationID)
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) AvailableMembers(ctx context.Context, groupID uint) ([]model.UserBrief, error) {
	var out []model.UserBrief
	err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/groups/%d/available-members", groupID), nil, &out)
	return out, err
}
