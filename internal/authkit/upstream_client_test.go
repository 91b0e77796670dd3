package authkit

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestNewUpstreamIdentityClientRequiresBaseURL(t *testing.T) {
	t.Parallel()

	if _, err := NewUpstreamIdentityClient("  ", time.Second, nil); err == nil {
		t.Fatalf("expected error for blank base url")
	}
}

func TestUpstreamIdentityClientAcceptsNestedEnvelopes(t *testing.T) {
	upstream := newFakeUpstream(t)
	upstream.meHandler = func(writer http.ResponseWriter, request *http.Request) {
		writeJSON(writer, http.StatusOK, map[string]any{"data": map[string]any{"user": map[string]string{"role": "admin", "email": "a@example.com"}}})
	}
	upstream.refreshHandler = func(writer http.ResponseWriter, request *http.Request) {
		writeJSON(writer, http.StatusOK, map[string]any{"data": map[string]string{"refreshToken": "only-refresh"}})
	}
	upstream.loginHandler = func(writer http.ResponseWriter, request *http.Request) {
		writeJSON(writer, http.StatusOK, map[string]any{"data": map[string]any{
			"user":        map[string]string{"role": "admin"},
			"accessToken": "nested-access",
		}})
	}
	client, err := NewUpstreamIdentityClient(upstream.server.URL+"/", time.Second, nil)
	if err != nil {
		t.Fatalf("client: %v", err)
	}

	user, meErr := client.CurrentUser(context.Background(), "token")
	if meErr != nil || user.Role != "admin" || user.Email != "a@example.com" {
		t.Fatalf("unexpected me result: %#v %v", user, meErr)
	}
	pair, refreshErr := client.Refresh(context.Background(), "refresh")
	if refreshErr != nil || pair.RefreshToken != "only-refresh" || pair.AccessToken != "" {
		t.Fatalf("unexpected refresh result: %#v %v", pair, refreshErr)
	}
	result, loginErr := client.Login(context.Background(), LoginCredentials{Identifier: "a", Password: "b"})
	if loginErr != nil || result.AccessToken != "nested-access" || result.User.Role != "admin" {
		t.Fatalf("unexpected login result: %#v %v", result, loginErr)
	}
}

func TestUpstreamIdentityClientErrors(t *testing.T) {
	upstream := newFakeUpstream(t)
	upstream.meHandler = func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "application/json")
		_, _ = writer.Write([]byte("{not json"))
	}
	upstream.refreshHandler = func(writer http.ResponseWriter, request *http.Request) {
		writeJSON(writer, http.StatusGone, map[string]string{"error": "revoked"})
	}
	client, err := NewUpstreamIdentityClient(upstream.server.URL, time.Second, nil)
	if err != nil {
		t.Fatalf("client: %v", err)
	}

	if _, meErr := client.CurrentUser(context.Background(), "token"); !errors.Is(meErr, ErrUpstreamMalformed) {
		t.Fatalf("expected malformed response error, got %v", meErr)
	}

	_, refreshErr := client.Refresh(context.Background(), "refresh")
	var statusErr *UpstreamStatusError
	if !errors.As(refreshErr, &statusErr) || statusErr.StatusCode != http.StatusGone || statusErr.Message != "revoked" {
		t.Fatalf("expected status error, got %v", refreshErr)
	}

	if _, emptyErr := client.Refresh(context.Background(), ""); !errors.Is(emptyErr, ErrEmptyCredential) {
		t.Fatalf("expected empty credential error, got %v", emptyErr)
	}
	if upstream.refreshCalls.Load() != 1 {
		t.Fatalf("expected blank refresh token to skip the network")
	}
}
