package adminapi

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

type recordingPublisher struct {
	mutex     sync.Mutex
	published []Decision
	err       error
}

func (publisher *recordingPublisher) Publish(ctx context.Context, decision Decision) error {
	publisher.mutex.Lock()
	defer publisher.mutex.Unlock()
	publisher.published = append(publisher.published, decision)
	return publisher.err
}

func (publisher *recordingPublisher) Close() error { return nil }

func newTestDecisionService(t *testing.T, upstream *fakeAdminUpstream, publisher DecisionPublisher) (*DecisionService, *MemoryDecisionStore) {
	t.Helper()
	store := NewMemoryDecisionStore()
	service, err := NewDecisionService(newTestClient(t, upstream.server.URL, nil, 0), store, publisher, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("new decision service: %v", err)
	}
	return service, store
}

func TestNewDecisionServiceRequiresDependencies(t *testing.T) {
	t.Parallel()

	if _, err := NewDecisionService(nil, NewMemoryDecisionStore(), nil, nil); err == nil {
		t.Fatalf("expected error for nil client")
	}
	client := newTestClient(t, "http://127.0.0.1:1", nil, 0)
	if _, err := NewDecisionService(client, nil, nil, nil); err == nil {
		t.Fatalf("expected error for nil store")
	}
}

func TestReviewVerificationApprovesPending(t *testing.T) {
	t.Parallel()

	upstream := newFakeAdminUpstream(t)
	upstream.respond(http.MethodGet, "/api/admin/verifications/ver-1", http.StatusOK, map[string]any{
		"data": map[string]any{"id": "ver-1", "userId": "u-1", "status": "pending"},
	})
	upstream.respond(http.MethodPatch, "/api/admin/verifications/ver-1", http.StatusOK, map[string]any{
		"verification": map[string]any{"id": "ver-1", "userId": "u-1", "status": "approved"},
	})
	publisher := &recordingPublisher{}
	service, store := newTestDecisionService(t, upstream, publisher)

	updated, err := service.ReviewVerification(context.Background(), "token", "admin-1", "ver-1", true, "looks good")
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if updated.Status != VerificationStatusApproved {
		t.Fatalf("unexpected status %q", updated.Status)
	}

	decisions, _ := store.List(context.Background(), 0)
	if len(decisions) != 1 {
		t.Fatalf("expected one decision, got %d", len(decisions))
	}
	decision := decisions[0]
	if decision.Kind != DecisionVerificationApproved || decision.SubjectID != "ver-1" || decision.TargetID != "u-1" || decision.Actor != "admin-1" || decision.Note != "looks good" {
		t.Fatalf("unexpected decision %+v", decision)
	}
	if decision.ID == "" || decision.CreatedAt.IsZero() {
		t.Fatalf("decision id and timestamp must be set: %+v", decision)
	}
	if len(publisher.published) != 1 || publisher.published[0].ID != decision.ID {
		t.Fatalf("expected decision to be published, got %+v", publisher.published)
	}
}

func TestReviewVerificationRejectsNonPending(t *testing.T) {
	t.Parallel()

	upstream := newFakeAdminUpstream(t)
	upstream.respond(http.MethodGet, "/api/admin/verifications/ver-2", http.StatusOK, map[string]any{
		"data": map[string]any{"id": "ver-2", "status": "approved"},
	})
	service, store := newTestDecisionService(t, upstream, nil)

	_, err := service.ReviewVerification(context.Background(), "token", "admin-1", "ver-2", false, "")
	if !errors.Is(err, ErrAlreadyReviewed) || HTTPStatus(err) != http.StatusConflict {
		t.Fatalf("expected already reviewed conflict, got %v", err)
	}
	if decisions, _ := store.List(context.Background(), 0); len(decisions) != 0 {
		t.Fatalf("no decision should be recorded, got %+v", decisions)
	}
}

func TestReviewVerificationSecondAdminSeesFreshStatus(t *testing.T) {
	t.Parallel()

	var reviewed atomic.Bool
	var patches atomic.Int32
	upstream := newFakeAdminUpstream(t)
	upstream.handle(http.MethodGet, "/api/admin/verifications/ver-4", func(responseWriter http.ResponseWriter, request *http.Request) {
		status := VerificationStatusPending
		if reviewed.Load() {
			status = VerificationStatusApproved
		}
		writeJSON(responseWriter, http.StatusOK, map[string]any{
			"verification": map[string]any{"id": "ver-4", "userId": "u-4", "status": status},
		})
	})
	upstream.handle(http.MethodPatch, "/api/admin/verifications/ver-4", func(responseWriter http.ResponseWriter, request *http.Request) {
		patches.Add(1)
		reviewed.Store(true)
		writeJSON(responseWriter, http.StatusOK, map[string]any{})
	})

	store := NewMemoryDecisionStore()
	client := newTestClient(t, upstream.server.URL, NewMemoryCache(), time.Minute)
	service, err := NewDecisionService(client, store, nil, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("new decision service: %v", err)
	}
	ctx := context.Background()

	opened, err := client.GetVerification(ctx, "token-a", "ver-4").Unwrap()
	if err != nil || opened.Status != VerificationStatusPending {
		t.Fatalf("open verification: %+v err=%v", opened, err)
	}
	if _, err := service.ReviewVerification(ctx, "token-b", "admin-b", "ver-4", true, ""); err != nil {
		t.Fatalf("first review: %v", err)
	}
	_, err = service.ReviewVerification(ctx, "token-a", "admin-a", "ver-4", false, "too late")
	if !errors.Is(err, ErrAlreadyReviewed) || HTTPStatus(err) != http.StatusConflict {
		t.Fatalf("expected already reviewed conflict, got %v", err)
	}

	if count := patches.Load(); count != 1 {
		t.Fatalf("expected exactly one status update, got %d", count)
	}
	decisions, _ := store.List(ctx, 0)
	if len(decisions) != 1 || decisions[0].Actor != "admin-b" || decisions[0].Kind != DecisionVerificationApproved {
		t.Fatalf("unexpected decisions %+v", decisions)
	}
}

func TestReviewVerificationKeepsDecisionWhenPublishFails(t *testing.T) {
	t.Parallel()

	upstream := newFakeAdminUpstream(t)
	upstream.respond(http.MethodGet, "/api/admin/verifications/ver-3", http.StatusOK, map[string]any{
		"data": map[string]any{"id": "ver-3", "status": "pending"},
	})
	upstream.respond(http.MethodPatch, "/api/admin/verifications/ver-3", http.StatusOK, map[string]any{})
	service, store := newTestDecisionService(t, upstream, &recordingPublisher{err: errors.New("broker down")})

	updated, err := service.ReviewVerification(context.Background(), "token", "admin-1", "ver-3", false, "expired id")
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if updated.Status != VerificationStatusRejected {
		t.Fatalf("unexpected status %q", updated.Status)
	}
	decisions, _ := store.List(context.Background(), 0)
	if len(decisions) != 1 || decisions[0].Kind != DecisionVerificationRejected {
		t.Fatalf("unexpected decisions %+v", decisions)
	}
}

func TestMatchProvider(t *testing.T) {
	t.Parallel()

	upstream := newFakeAdminUpstream(t)
	upstream.respond(http.MethodGet, "/api/admin/jobs/job-1/skilled-users", http.StatusOK, map[string]any{
		"users": []map[string]any{{"id": "u-1", "name": "Ada"}, {"id": "u-2"}},
	})
	service, store := newTestDecisionService(t, upstream, nil)
	ctx := context.Background()

	notice, err := service.MatchProvider(ctx, "token", "admin-1", "job-1", "u-1")
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if notice != "Ada matched to job-1" {
		t.Fatalf("unexpected notice %q", notice)
	}
	unnamed, err := service.MatchProvider(ctx, "token", "admin-1", "job-1", "u-2")
	if err != nil || unnamed != "u-2 matched to job-1" {
		t.Fatalf("unexpected notice %q: %v", unnamed, err)
	}

	_, missingErr := service.MatchProvider(ctx, "token", "admin-1", "job-1", "u-9")
	if !errors.Is(missingErr, ErrProviderNotCandidate) || HTTPStatus(missingErr) != http.StatusNotFound {
		t.Fatalf("expected provider not candidate, got %v", missingErr)
	}
	_, blankErr := service.MatchProvider(ctx, "token", "admin-1", "job-1", "")
	if !errors.Is(blankErr, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", blankErr)
	}

	decisions, _ := service.Decisions(ctx, 0)
	if len(decisions) != 2 || decisions[0].Kind != DecisionProviderMatched {
		t.Fatalf("unexpected decisions %+v", decisions)
	}
	if total, _ := store.List(ctx, 1); len(total) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(total))
	}
}

func TestMemoryDecisionStoreListsNewestFirst(t *testing.T) {
	t.Parallel()

	store := NewMemoryDecisionStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for index, identifier := range []string{"first", "second", "third"} {
		_ = store.Record(context.Background(), Decision{ID: identifier, CreatedAt: base.Add(time.Duration(index) * time.Minute)})
	}

	decisions, err := store.List(context.Background(), 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(decisions) != 2 || decisions[0].ID != "third" || decisions[1].ID != "second" {
		t.Fatalf("unexpected order %+v", decisions)
	}
}
