package adminapi

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Decision kinds.
const (
	DecisionVerificationApproved = "verification_approved"
	DecisionVerificationRejected = "verification_rejected"
	DecisionProviderMatched      = "provider_matched"
)

const defaultDecisionListLimit = 50

// Decision is an admin action recorded for audit.
type Decision struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	SubjectID string    `json:"subjectId"`
	TargetID  string    `json:"targetId,omitempty"`
	Actor     string    `json:"actor"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// DecisionStore persists recorded decisions.
type DecisionStore interface {
	Record(ctx context.Context, decision Decision) error
	// List returns at most limit decisions, newest first.
	List(ctx context.Context, limit int) ([]Decision, error)
}

// MemoryDecisionStore keeps decisions in process memory.
type MemoryDecisionStore struct {
	mutex     sync.RWMutex
	decisions []Decision
}

// NewMemoryDecisionStore constructs an empty store.
func NewMemoryDecisionStore() *MemoryDecisionStore {
	return &MemoryDecisionStore{}
}

func (store *MemoryDecisionStore) Record(ctx context.Context, decision Decision) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.decisions = append(store.decisions, decision)
	return nil
}

func (store *MemoryDecisionStore) List(ctx context.Context, limit int) ([]Decision, error) {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	listed := make([]Decision, len(store.decisions))
	copy(listed, store.decisions)
	sort.SliceStable(listed, func(left, right int) bool {
		return listed[left].CreatedAt.After(listed[right].CreatedAt)
	})
	if limit > 0 && len(listed) > limit {
		listed = listed[:limit]
	}
	return listed, nil
}

// DecisionService applies admin decisions upstream and records them.
type DecisionService struct {
	client    *Client
	store     DecisionStore
	publisher DecisionPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewDecisionService wires a service; publisher and logger may be nil.
func NewDecisionService(client *Client, store DecisionStore, publisher DecisionPublisher, logger *zap.Logger) (*DecisionService, error) {
	if client == nil {
		return nil, errors.New("adminapi.decisions.nil_client")
	}
	if store == nil {
		return nil, errors.New("adminapi.decisions.nil_store")
	}
	if publisher == nil {
		publisher = NoopDecisionPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DecisionService{
		client:    client,
		store:     store,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// ReviewVerification approves or rejects a pending verification.
func (service *DecisionService) ReviewVerification(ctx context.Context, token string, actor string, verificationID string, approve bool, notes string) (Verification, error) {
	current, err := service.client.GetVerification(ctx, token, verificationID).Unwrap()
	if err != nil {
		return Verification{}, err
	}
	if !strings.EqualFold(current.Status, VerificationStatusPending) {
		return Verification{}, fmt.Errorf("adminapi.review_verification: %w: status %q", ErrAlreadyReviewed, current.Status)
	}

	status := VerificationStatusRejected
	kind := DecisionVerificationRejected
	if approve {
		status = VerificationStatusApproved
		kind = DecisionVerificationApproved
	}
	updated, updateErr := service.client.UpdateVerificationStatus(ctx, token, verificationID, status, notes).Unwrap()
	if updateErr != nil {
		return Verification{}, updateErr
	}

	service.record(ctx, Decision{
		Kind:      kind,
		SubjectID: verificationID,
		TargetID:  current.UserID.String(),
		Actor:     actor,
		Note:      notes,
	})
	return updated, nil
}

// MatchProvider assigns providerID to jobID when the provider is a skilled candidate.
// The returned string is a notice suitable for display.
func (service *DecisionService) MatchProvider(ctx context.Context, token string, actor string, jobID string, providerID string) (string, error) {
	if strings.TrimSpace(providerID) == "" {
		return "", fmt.Errorf("adminapi.match_provider: %w: provider id", ErrInvalidArgument)
	}
	candidates, err := service.client.ListSkilledUsers(ctx, token, jobID).Unwrap()
	if err != nil {
		return "", err
	}
	var provider *SkilledUser
	for index := range candidates {
		if candidates[index].ID.String() == providerID {
			provider = &candidates[index]
			break
		}
	}
	if provider == nil {
		return "", fmt.Errorf("adminapi.match_provider: %w: %s", ErrProviderNotCandidate, providerID)
	}

	providerName := provider.Name
	if providerName == "" {
		providerName = provider.ID.String()
	}
	notice := fmt.Sprintf("%s matched to %s", providerName, jobID)
	service.record(ctx, Decision{
		Kind:      DecisionProviderMatched,
		SubjectID: jobID,
		TargetID:  providerID,
		Actor:     actor,
		Note:      notice,
	})
	return notice, nil
}

// Decisions lists recorded decisions newest first.
func (service *DecisionService) Decisions(ctx context.Context, limit int) ([]Decision, error) {
	if limit <= 0 {
		limit = defaultDecisionListLimit
	}
	return service.store.List(ctx, limit)
}

// record stores and publishes a decision. The upstream change already happened,
// so failures here are logged rather than returned.
func (service *DecisionService) record(ctx context.Context, decision Decision) {
	decision.ID = uuid.NewString()
	decision.CreatedAt = service.now()
	if err := service.store.Record(ctx, decision); err != nil {
		service.logger.Error("decision store write failed",
			zap.String("code", "adminapi.decisions.record_failed"),
			zap.String("kind", decision.Kind),
			zap.Error(err))
	}
	if err := service.publisher.Publish(ctx, decision); err != nil {
		service.logger.Warn("decision publish failed",
			zap.String("code", "adminapi.decisions.publish_failed"),
			zap.String("decision_id", decision.ID),
			zap.Error(err))
	}
}
