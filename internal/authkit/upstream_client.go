package authkit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	upstreamLoginPath   = "/api/auth/login"
	upstreamMePath      = "/api/auth/me"
	upstreamRefreshPath = "/api/auth/refresh"

	maxUpstreamBodyBytes = 1 << 20
)

var (
	// ErrUpstreamUnavailable indicates the upstream could not be reached.
	ErrUpstreamUnavailable = errors.New("authkit.upstream.unavailable")
	// ErrUpstreamMalformed indicates the upstream answered with an unusable body.
	ErrUpstreamMalformed = errors.New("authkit.upstream.malformed_response")
	// ErrEmptyCredential indicates a token argument was blank.
	ErrEmptyCredential = errors.New("authkit.upstream.empty_credential")

	errEmptyUpstreamBaseURL = errors.New("authkit.upstream.empty_base_url")
)

// UpstreamStatusError is a non-2xx upstream response.
type UpstreamStatusError struct {
	Operation  string
	StatusCode int
	Message    string
}

func (statusErr *UpstreamStatusError) Error() string {
	if statusErr.Message == "" {
		return fmt.Sprintf("authkit.upstream.%s: status %d", statusErr.Operation, statusErr.StatusCode)
	}
	return fmt.Sprintf("authkit.upstream.%s: status %d: %s", statusErr.Operation, statusErr.StatusCode, statusErr.Message)
}

// UpstreamIdentityClient talks to the time bank API's auth endpoints.
type UpstreamIdentityClient struct {
	baseURL    string
	timeout    time.Duration
	transport  http.RoundTripper
	httpClient *http.Client
}

// NewUpstreamIdentityClient constructs a client rooted at baseURL.
// A nil transport selects http.DefaultTransport; a non-positive timeout leaves requests bounded only by their context.
func NewUpstreamIdentityClient(baseURL string, timeout time.Duration, transport http.RoundTripper) (*UpstreamIdentityClient, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errEmptyUpstreamBaseURL
	}
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &UpstreamIdentityClient{
		baseURL:    trimmed,
		timeout:    timeout,
		transport:  transport,
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
	}, nil
}

type upstreamUserEnvelope struct {
	User *UpstreamUser `json:"user"`
	Data *struct {
		User *UpstreamUser `json:"user"`
	} `json:"data"`
}

func (envelope upstreamUserEnvelope) resolve() *UpstreamUser {
	if envelope.User != nil {
		return envelope.User
	}
	if envelope.Data != nil {
		return envelope.Data.User
	}
	return nil
}

type upstreamTokenEnvelope struct {
	TokenPair
	Data *TokenPair `json:"data"`
}

func (envelope upstreamTokenEnvelope) resolve() TokenPair {
	if envelope.TokenPair.Empty() && envelope.Data != nil {
		return *envelope.Data
	}
	return envelope.TokenPair
}

type loginPayload struct {
	User         *UpstreamUser `json:"user"`
	AccessToken  string        `json:"accessToken"`
	RefreshToken string        `json:"refreshToken"`
}

type upstreamLoginEnvelope struct {
	loginPayload
	Data *loginPayload `json:"data"`
}

func (envelope upstreamLoginEnvelope) resolve() loginPayload {
	if envelope.User == nil && envelope.Data != nil {
		return *envelope.Data
	}
	return envelope.loginPayload
}

type upstreamMessage struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Login forwards credentials to the upstream login endpoint.
func (client *UpstreamIdentityClient) Login(ctx context.Context, credentials LoginCredentials) (LoginResult, error) {
	body, marshalErr := json.Marshal(credentials)
	if marshalErr != nil {
		return LoginResult{}, fmt.Errorf("authkit.upstream.login: %w", marshalErr)
	}
	request, requestErr := http.NewRequestWithContext(ctx, http.MethodPost, client.baseURL+upstreamLoginPath, bytes.NewReader(body))
	if requestErr != nil {
		return LoginResult{}, fmt.Errorf("authkit.upstream.login: %w", requestErr)
	}
	request.Header.Set("Content-Type", "application/json")

	var envelope upstreamLoginEnvelope
	if err := client.do(client.httpClient, request, "login", &envelope); err != nil {
		return LoginResult{}, err
	}
	resolved := envelope.resolve()
	if resolved.User == nil || resolved.AccessToken == "" {
		return LoginResult{}, fmt.Errorf("authkit.upstream.login: %w", ErrUpstreamMalformed)
	}
	return LoginResult{
		User:      *resolved.User,
		TokenPair: TokenPair{AccessToken: resolved.AccessToken, RefreshToken: resolved.RefreshToken},
	}, nil
}

// CurrentUser asks the upstream who owns accessToken, presenting it as a bearer credential.
func (client *UpstreamIdentityClient) CurrentUser(ctx context.Context, accessToken string) (UpstreamUser, error) {
	if strings.TrimSpace(accessToken) == "" {
		return UpstreamUser{}, fmt.Errorf("authkit.upstream.me: %w", ErrEmptyCredential)
	}
	request, requestErr := http.NewRequestWithContext(ctx, http.MethodGet, client.baseURL+upstreamMePath, nil)
	if requestErr != nil {
		return UpstreamUser{}, fmt.Errorf("authkit.upstream.me: %w", requestErr)
	}
	bearerClient := &http.Client{
		Timeout: client.timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}),
			Base:   client.transport,
		},
	}

	var envelope upstreamUserEnvelope
	if err := client.do(bearerClient, request, "me", &envelope); err != nil {
		return UpstreamUser{}, err
	}
	user := envelope.resolve()
	if user == nil {
		return UpstreamUser{}, fmt.Errorf("authkit.upstream.me: %w", ErrUpstreamMalformed)
	}
	return *user, nil
}

// Refresh exchanges a refresh token for a new token pair.
func (client *UpstreamIdentityClient) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return TokenPair{}, fmt.Errorf("authkit.upstream.refresh: %w", ErrEmptyCredential)
	}
	body, marshalErr := json.Marshal(map[string]string{"refreshToken": refreshToken})
	if marshalErr != nil {
		return TokenPair{}, fmt.Errorf("authkit.upstream.refresh: %w", marshalErr)
	}
	request, requestErr := http.NewRequestWithContext(ctx, http.MethodPost, client.baseURL+upstreamRefreshPath, bytes.NewReader(body))
	if requestErr != nil {
		return TokenPair{}, fmt.Errorf("authkit.upstream.refresh: %w", requestErr)
	}
	request.Header.Set("Content-Type", "application/json")

	var envelope upstreamTokenEnvelope
	if err := client.do(client.httpClient, request, "refresh", &envelope); err != nil {
		return TokenPair{}, err
	}
	tokens := envelope.resolve()
	if tokens.Empty() {
		return TokenPair{}, fmt.Errorf("authkit.upstream.refresh: %w", ErrUpstreamMalformed)
	}
	return tokens, nil
}

func (client *UpstreamIdentityClient) do(httpClient *http.Client, request *http.Request, operation string, target any) error {
	request.Header.Set("Accept", "application/json")
	response, doErr := httpClient.Do(request)
	if doErr != nil {
		return fmt.Errorf("authkit.upstream.%s: %w: %v", operation, ErrUpstreamUnavailable, doErr)
	}
	defer response.Body.Close()

	payload, readErr := io.ReadAll(io.LimitReader(response.Body, maxUpstreamBodyBytes))
	if readErr != nil {
		return fmt.Errorf("authkit.upstream.%s: %w: %v", operation, ErrUpstreamUnavailable, readErr)
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		var message upstreamMessage
		_ = json.Unmarshal(payload, &message)
		text := message.Message
		if text == "" {
			text = message.Error
		}
		return &UpstreamStatusError{Operation: operation, StatusCode: response.StatusCode, Message: text}
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("authkit.upstream.%s: %w: %v", operation, ErrUpstreamMalformed, err)
	}
	return nil
}
