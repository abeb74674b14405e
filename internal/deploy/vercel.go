// Package deploy triggers Vercel deployments of the household panel.
package deploy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// TokenSecretKey is the admin secret holding the Vercel token.
const TokenSecretKey = "vercel_token"

var (
	ErrMissingRepo = errors.New("repoUrl required")
	ErrNoToken     = errors.New("Vercel token not configured")
)

// APIError carries the message Vercel returned for a failed deployment.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// SecretGetter reads a stored secret. An unset secret is "".
type SecretGetter interface {
	Get(key string) (string, error)
}

type Client struct {
	token      string
	secrets    SecretGetter
	project    string
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// NewClient builds a client. token wins over the stored secret; either may
// be empty.
func NewClient(token, project, baseURL string, secrets SecretGetter, opts ...Option) *Client {
	c := &Client{
		token:      token,
		secrets:    secrets,
		project:    project,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) resolveToken() (string, error) {
	if c.token != "" {
		return c.token, nil
	}
	if c.secrets == nil {
		return "", ErrNoToken
	}
	tok, err := c.secrets.Get(TokenSecretKey)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", TokenSecretKey, err)
	}
	if tok == "" {
		return "", ErrNoToken
	}
	return tok, nil
}

// RepoFromURL turns a GitHub URL into owner/repo.
func RepoFromURL(repoURL string) string {
	repo := strings.TrimPrefix(repoURL, "https://github.com/")
	return strings.TrimSuffix(repo, ".git")
}

type gitRepository struct {
	Type string `json:"type"`
	Repo string `json:"repo"`
}

type deploymentRequest struct {
	Name          string        `json:"name"`
	GitRepository gitRepository `json:"gitRepository"`
}

type deploymentResponse struct {
	Name  string `json:"name"`
	URL   string `json:"url"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Deploy starts a deployment of repoURL and returns its preview URL.
func (c *Client) Deploy(ctx context.Context, repoURL string) (string, error) {
	if repoURL == "" {
		return "", ErrMissingRepo
	}
	token, err := c.resolveToken()
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(deploymentRequest{
		Name:          c.project,
		GitRepository: gitRepository{Type: "github", Repo: RepoFromURL(repoURL)},
	})
	if err != nil {
		return "", fmt.Errorf("marshal deployment: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v13/deployments", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send deployment: %w", err)
	}
	defer resp.Body.Close()

	var result deploymentResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&result)

	if resp.StatusCode >= 400 {
		msg := "Deployment failed"
		if decodeErr == nil && result.Error != nil && result.Error.Message != "" {
			msg = result.Error.Message
		}
		return "", &APIError{Status: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return "", fmt.Errorf("decode deployment: %w", decodeErr)
	}
	return fmt.Sprintf("https://%s.%s", result.Name, result.URL), nil
}
