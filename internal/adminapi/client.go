package adminapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tyemirov/timebank-admin/pkg/jsonid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	pathJobs          = "/api/admin/jobs"
	pathHelpRequests  = "/api/admin/help-requests"
	pathVerifications = "/api/admin/verifications"

	maxResponseBytes = 4 << 20
)

var errEmptyBaseURL = errors.New("adminapi.empty_base_url")

// ClientConfig configures the upstream admin data client.
type ClientConfig struct {
	BaseURL   string
	Timeout   time.Duration
	Transport http.RoundTripper
	Cache     ResponseCache
	CacheTTL  time.Duration
	Logger    *zap.Logger
}

// Client fetches admin data from the upstream time bank API on behalf of the signed-in admin.
type Client struct {
	baseURL   string
	timeout   time.Duration
	transport http.RoundTripper
	cache     ResponseCache
	cacheTTL  time.Duration
	logger    *zap.Logger
}

// NewClient validates configuration and constructs a Client.
func NewClient(configuration ClientConfig) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(configuration.BaseURL), "/")
	if baseURL == "" {
		return nil, errEmptyBaseURL
	}
	transport := configuration.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cache := configuration.Cache
	if configuration.CacheTTL <= 0 {
		cache = nil
	}
	return &Client{
		baseURL:   baseURL,
		timeout:   configuration.Timeout,
		transport: transport,
		cache:     cache,
		cacheTTL:  configuration.CacheTTL,
		logger:    logger,
	}, nil
}

// ListJobs returns every job known to the upstream.
func (client *Client) ListJobs(ctx context.Context, token string) Result[[]Job] {
	return fetchList[Job](ctx, client, "list_jobs", token, pathJobs, "jobs")
}

// ListHelpRequests returns open and historical help requests.
func (client *Client) ListHelpRequests(ctx context.Context, token string) Result[[]HelpRequest] {
	return fetchList[HelpRequest](ctx, client, "list_help_requests", token, pathHelpRequests, "helpRequests")
}

// ListJobApplications returns applications submitted for jobID.
func (client *Client) ListJobApplications(ctx context.Context, token string, jobID string) Result[[]JobApplication] {
	if strings.TrimSpace(jobID) == "" {
		return Failed[[]JobApplication](fmt.Errorf("adminapi.list_job_applications: %w: job id", ErrInvalidArgument))
	}
	return fetchList[JobApplication](ctx, client, "list_job_applications", token, pathJobs+"/"+url.PathEscape(jobID)+"/applications", "applications")
}

// ListSkilledUsers returns members whose skills match jobID.
func (client *Client) ListSkilledUsers(ctx context.Context, token string, jobID string) Result[[]SkilledUser] {
	if strings.TrimSpace(jobID) == "" {
		return Failed[[]SkilledUser](fmt.Errorf("adminapi.list_skilled_users: %w: job id", ErrInvalidArgument))
	}
	return fetchList[SkilledUser](ctx, client, "list_skilled_users", token, pathJobs+"/"+url.PathEscape(jobID)+"/skilled-users", "users")
}

// ListVerifications returns identity-verification submissions.
func (client *Client) ListVerifications(ctx context.Context, token string) Result[[]Verification] {
	return fetchList[Verification](ctx, client, "list_verifications", token, pathVerifications, "verifications")
}

// GetVerification returns one verification by id.
func (client *Client) GetVerification(ctx context.Context, token string, verificationID string) Result[Verification] {
	if strings.TrimSpace(verificationID) == "" {
		return Failed[Verification](fmt.Errorf("adminapi.get_verification: %w: verification id", ErrInvalidArgument))
	}
	return fetchOne[Verification](ctx, client, "get_verification", token, verificationPath(verificationID), "verification")
}

// UpdateVerificationStatus moves a verification to approved or rejected.
func (client *Client) UpdateVerificationStatus(ctx context.Context, token string, verificationID string, status string, notes string) Result[Verification] {
	if strings.TrimSpace(verificationID) == "" {
		return Failed[Verification](fmt.Errorf("adminapi.update_verification: %w: verification id", ErrInvalidArgument))
	}
	if status != VerificationStatusApproved && status != VerificationStatusRejected {
		return Failed[Verification](fmt.Errorf("adminapi.update_verification: %w: status %q", ErrInvalidArgument, status))
	}
	body := map[string]string{"status": status}
	if notes != "" {
		body["notes"] = notes
	}
	var envelope map[string]json.RawMessage
	if err := client.send(ctx, http.MethodPatch, "update_verification", token, verificationPath(verificationID), body, &envelope); err != nil {
		return Failed[Verification](err)
	}
	client.invalidate(ctx, token, pathVerifications)

	var updated Verification
	if err := decodeEnvelopeValue(envelope, "verification", &updated); err != nil {
		// An empty PATCH body means the upstream accepted the change without echoing it.
		return Loaded(Verification{ID: jsonid.ID(verificationID), Status: status, Notes: notes})
	}
	return Loaded(updated)
}

func verificationPath(verificationID string) string {
	return pathVerifications + "/" + url.PathEscape(verificationID)
}

func fetchList[T any](ctx context.Context, client *Client, operation string, token string, path string, key string) Result[[]T] {
	var envelope map[string]json.RawMessage
	if err := client.get(ctx, operation, token, path, &envelope); err != nil {
		return Failed[[]T](err)
	}
	var items []T
	if err := decodeEnvelopeValue(envelope, key, &items); err != nil {
		return Failed[[]T](fmt.Errorf("adminapi.%s: %w", operation, err))
	}
	if items == nil {
		items = []T{}
	}
	return Loaded(items)
}

// fetchOne always reads through to the upstream. Only lists are cached.
func fetchOne[T any](ctx context.Context, client *Client, operation string, token string, path string, key string) Result[T] {
	var envelope map[string]json.RawMessage
	if err := client.getFresh(ctx, operation, token, path, &envelope); err != nil {
		return Failed[T](err)
	}
	var item T
	if err := decodeEnvelopeValue(envelope, key, &item); err != nil {
		return Failed[T](fmt.Errorf("adminapi.%s: %w", operation, err))
	}
	return Loaded(item)
}

// decodeEnvelopeValue reads envelope[key], falling back to envelope["data"].
func decodeEnvelopeValue(envelope map[string]json.RawMessage, key string, target any) error {
	raw, found := envelope[key]
	if !found {
		raw, found = envelope["data"]
	}
	if !found || len(raw) == 0 {
		return ErrMalformedResponse
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

func (client *Client) httpClient(token string) *http.Client {
	transport := client.transport
	if token != "" {
		transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
			Base:   client.transport,
		}
	}
	return &http.Client{Timeout: client.timeout, Transport: transport}
}

// get serves a list read from the response cache when possible.
func (client *Client) get(ctx context.Context, operation string, token string, path string, target any) error {
	if client.cache == nil {
		return client.getFresh(ctx, operation, token, path, target)
	}
	cacheKey := responseCacheKey(token, path)
	cached, hit, cacheErr := client.cache.Get(ctx, cacheKey)
	if cacheErr != nil {
		client.logger.Warn("response cache read failed",
			zap.String("code", "adminapi.cache.read_failed"),
			zap.String("operation", operation),
			zap.Error(cacheErr))
	}
	if hit && json.Unmarshal(cached, target) == nil {
		return nil
	}

	payload, err := client.read(ctx, operation, token, path, target)
	if err != nil {
		return err
	}
	if setErr := client.cache.Set(ctx, cacheKey, payload, client.cacheTTL); setErr != nil {
		client.logger.Warn("response cache write failed",
			zap.String("code", "adminapi.cache.write_failed"),
			zap.String("operation", operation),
			zap.Error(setErr))
	}
	return nil
}

func (client *Client) getFresh(ctx context.Context, operation string, token string, path string, target any) error {
	_, err := client.read(ctx, operation, token, path, target)
	return err
}

// read performs an uncached GET, decodes it into target and returns the raw payload.
func (client *Client) read(ctx context.Context, operation string, token string, path string, target any) ([]byte, error) {
	payload, err := client.roundTrip(ctx, http.MethodGet, operation, token, path, nil)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return nil, fmt.Errorf("adminapi.%s: %w: %v", operation, ErrMalformedResponse, err)
	}
	return payload, nil
}

func (client *Client) send(ctx context.Context, method string, operation string, token string, path string, body any, target any) error {
	encoded, marshalErr := json.Marshal(body)
	if marshalErr != nil {
		return fmt.Errorf("adminapi.%s: %w", operation, marshalErr)
	}
	payload, err := client.roundTrip(ctx, method, operation, token, path, encoded)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("adminapi.%s: %w: %v", operation, ErrMalformedResponse, err)
	}
	return nil
}

func (client *Client) roundTrip(ctx context.Context, method string, operation string, token string, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	request, requestErr := http.NewRequestWithContext(ctx, method, client.baseURL+path, reader)
	if requestErr != nil {
		return nil, fmt.Errorf("adminapi.%s: %w", operation, requestErr)
	}
	request.Header.Set("Accept", "application/json")
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, doErr := client.httpClient(token).Do(request)
	if doErr != nil {
		client.logger.Warn("upstream request failed",
			zap.String("code", "adminapi.upstream.unavailable"),
			zap.String("operation", operation),
			zap.Error(doErr))
		return nil, fmt.Errorf("adminapi.%s: %w: %v", operation, ErrUpstreamUnavailable, doErr)
	}
	defer response.Body.Close()

	payload, readErr := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if readErr != nil {
		return nil, fmt.Errorf("adminapi.%s: %w: %v", operation, ErrUpstreamUnavailable, readErr)
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		var message struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		_ = json.Unmarshal(payload, &message)
		text := message.Message
		if text == "" {
			text = message.Error
		}
		client.logger.Info("upstream rejected request",
			zap.String("code", "adminapi.upstream.status"),
			zap.String("operation", operation),
			zap.Int("status", response.StatusCode))
		return nil, &UpstreamError{Operation: operation, StatusCode: response.StatusCode, Message: text}
	}
	return payload, nil
}

func (client *Client) invalidate(ctx context.Context, token string, paths ...string) {
	if client.cache == nil {
		return
	}
	keys := make([]string, 0, len(paths))
	for _, path := range paths {
		keys = append(keys, responseCacheKey(token, path))
	}
	if err := client.cache.Delete(ctx, keys...); err != nil {
		client.logger.Warn("response cache invalidation failed",
			zap.String("code", "adminapi.cache.invalidate_failed"),
			zap.Error(err))
	}
}
