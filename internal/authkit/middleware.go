package authkit

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tyemirov/timebank-admin/pkg/sessionvalidator"
	"go.uber.org/zap"
)

const (
	// ContextKeyIdentity holds the Identity resolved by the guard.
	ContextKeyIdentity = "auth_claims"
	// ContextKeyAccessToken holds the access token to forward upstream for this request.
	ContextKeyAccessToken = "auth_token"
)

// GuardMode selects how a denied request is answered.
type GuardMode int

const (
	// GuardModeRedirect sends denied page requests to the login page.
	GuardModeRedirect GuardMode = iota
	// GuardModeJSON answers denied API requests with 401.
	GuardModeJSON
)

func (mode GuardMode) String() string {
	if mode == GuardModeJSON {
		return "json"
	}
	return "redirect"
}

// IdentitySource records which guard step authorized the request.
type IdentitySource string

const (
	IdentitySourceLocal    IdentitySource = "local"
	IdentitySourceUpstream IdentitySource = "upstream"
	IdentitySourceRefresh  IdentitySource = "refresh"
)

// Identity is the admin behind an authorized request. Role is empty when
// the request was let through on a refreshed token the guard could not read.
type Identity struct {
	UserID    string         `json:"user_id,omitempty"`
	Email     string         `json:"email,omitempty"`
	Name      string         `json:"name,omitempty"`
	Role      string         `json:"role"`
	Source    IdentitySource `json:"source"`
	ExpiresAt time.Time      `json:"expires,omitempty"`
}

// GuardOutcome is the terminal state of one guard evaluation.
type GuardOutcome int

const (
	GuardOutcomeAllow GuardOutcome = iota
	GuardOutcomeAllowRotated
	GuardOutcomeRedirect
)

// GuardDecision is the result of evaluating one request.
type GuardDecision struct {
	Outcome     GuardOutcome
	Identity    Identity
	AccessToken string
	Rotated     TokenPair
	Reason      string
}

// Deny reasons. They are logged and counted, never shown to the user.
const (
	ReasonMissingCredential   = "missing_credential"
	ReasonUnauthorizedRole    = "unauthorized_role"
	ReasonInvalidSignature    = "invalid_local_signature"
	ReasonUpstreamUnavailable = "upstream_unavailable"
)

// SessionGuard decides whether a dashboard request may proceed.
type SessionGuard struct {
	configuration ServerConfig
	validator     *sessionvalidator.Validator
	identity      IdentityProvider
	logger        *zap.Logger
	metrics       MetricsRecorder
}

// NewSessionGuard builds a guard. identity may be nil, in which case only local verification applies.
func NewSessionGuard(configuration ServerConfig, identity IdentityProvider, logger *zap.Logger, metrics MetricsRecorder) (*SessionGuard, error) {
	configuration = configuration.WithDefaults()
	validator, validatorErr := sessionvalidator.New(sessionvalidator.Config{
		SigningKey: configuration.AppJWTSigningKey,
		Issuer:     configuration.AppJWTIssuer,
		CookieName: configuration.SessionCookieName,
	})
	if validatorErr != nil {
		return nil, validatorErr
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &SessionGuard{
		configuration: configuration,
		validator:     validator,
		identity:      identity,
		logger:        logger,
		metrics:       metrics,
	}, nil
}

// Configuration returns the effective configuration, defaults applied.
func (guard *SessionGuard) Configuration() ServerConfig {
	return guard.configuration
}

// Evaluate runs verify, validate, refresh in order and stops at the first step that decides.
// It never writes to the response.
func (guard *SessionGuard) Evaluate(ctx context.Context, request *http.Request) GuardDecision {
	accessToken := cookieValue(request, guard.validator.CookieName())
	if accessToken == "" {
		guard.metrics.Increment(MetricGuardDenyMissing)
		return GuardDecision{Outcome: GuardOutcomeRedirect, Reason: ReasonMissingCredential}
	}

	claims, verifyErr := guard.validator.ValidateToken(accessToken)
	if verifyErr == nil {
		if !claims.HasRole(AdminRole) {
			guard.logger.Info("session role rejected",
				zap.String("code", "guard.unauthorized_role"),
				zap.String("role", claims.GetRole()),
				zap.String("path", request.URL.Path))
			guard.metrics.Increment(MetricGuardDenyRole)
			return GuardDecision{Outcome: GuardOutcomeRedirect, Reason: ReasonUnauthorizedRole}
		}
		guard.metrics.Increment(MetricGuardAllowLocal)
		return GuardDecision{
			Outcome:     GuardOutcomeAllow,
			Identity:    identityFromClaims(claims, IdentitySourceLocal),
			AccessToken: accessToken,
		}
	}
	guard.logger.Info("local session verification failed",
		zap.String("code", "guard.local_verify_failed"),
		zap.String("path", request.URL.Path),
		zap.Error(verifyErr))

	if guard.identity == nil {
		guard.metrics.Increment(MetricGuardDenyExhausted)
		return GuardDecision{Outcome: GuardOutcomeRedirect, Reason: ReasonInvalidSignature}
	}

	upstreamUser, validateErr := guard.identity.CurrentUser(ctx, accessToken)
	if validateErr == nil && upstreamUser.Role == AdminRole {
		guard.metrics.Increment(MetricGuardAllowUpstream)
		return GuardDecision{
			Outcome: GuardOutcomeAllow,
			Identity: Identity{
				UserID: upstreamUser.ID.String(),
				Email:  upstreamUser.Email,
				Name:   upstreamUser.Name,
				Role:   upstreamUser.Role,
				Source: IdentitySourceUpstream,
			},
			AccessToken: accessToken,
		}
	}
	guard.metrics.Increment(MetricGuardValidateFailed)
	if validateErr != nil {
		guard.logger.Warn("upstream session validation failed",
			zap.String("code", "guard.upstream_validate_failed"),
			zap.Error(validateErr))
	} else {
		guard.logger.Info("upstream session validation returned non-admin role",
			zap.String("code", "guard.upstream_validate_role"),
			zap.String("role", upstreamUser.Role))
	}

	reason := ReasonInvalidSignature
	if validateErr != nil && errors.Is(validateErr, ErrUpstreamUnavailable) {
		reason = ReasonUpstreamUnavailable
	}

	refreshToken := cookieValue(request, guard.configuration.RefreshCookieName)
	if refreshToken == "" {
		guard.metrics.Increment(MetricGuardDenyExhausted)
		return GuardDecision{Outcome: GuardOutcomeRedirect, Reason: reason}
	}
	rotated, refreshErr := guard.identity.Refresh(ctx, refreshToken)
	if refreshErr != nil || rotated.Empty() {
		guard.logger.Warn("refresh token exchange failed",
			zap.String("code", "guard.upstream_refresh_failed"),
			zap.Error(refreshErr))
		guard.metrics.Increment(MetricGuardRefreshFailed)
		guard.metrics.Increment(MetricGuardDenyExhausted)
		if refreshErr != nil && errors.Is(refreshErr, ErrUpstreamUnavailable) {
			reason = ReasonUpstreamUnavailable
		}
		return GuardDecision{Outcome: GuardOutcomeRedirect, Reason: reason}
	}

	effectiveToken := accessToken
	identity := Identity{Source: IdentitySourceRefresh}
	if rotated.AccessToken != "" {
		effectiveToken = rotated.AccessToken
		if rotatedClaims, rotatedErr := guard.validator.ValidateToken(rotated.AccessToken); rotatedErr == nil {
			if !rotatedClaims.HasRole(AdminRole) {
				guard.metrics.Increment(MetricGuardDenyRole)
				return GuardDecision{Outcome: GuardOutcomeRedirect, Reason: ReasonUnauthorizedRole}
			}
			identity = identityFromClaims(rotatedClaims, IdentitySourceRefresh)
		}
	}
	guard.metrics.Increment(MetricGuardAllowRefreshed)
	return GuardDecision{
		Outcome:     GuardOutcomeAllowRotated,
		Identity:    identity,
		AccessToken: effectiveToken,
		Rotated:     rotated,
	}
}

// Middleware applies Evaluate to each request. Rotated tokens are written as cookies before the handler runs.
func (guard *SessionGuard) Middleware(mode GuardMode) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		decision := guard.Evaluate(contextGin.Request.Context(), contextGin.Request)
		switch decision.Outcome {
		case GuardOutcomeRedirect:
			guard.logger.Info("session denied",
				zap.String("code", "guard.denied"),
				zap.String("reason", decision.Reason),
				zap.Stringer("mode", mode),
				zap.String("path", contextGin.Request.URL.Path))
			if mode == GuardModeJSON {
				contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
				return
			}
			contextGin.Redirect(http.StatusFound, guard.configuration.LoginPath)
			contextGin.Abort()
			return
		case GuardOutcomeAllowRotated:
			writeTokenPair(contextGin.Writer, guard.configuration, decision.Rotated)
		}
		contextGin.Set(ContextKeyIdentity, decision.Identity)
		contextGin.Set(ContextKeyAccessToken, decision.AccessToken)
		contextGin.Next()
	}
}

// IdentityFromContext returns the identity stored by the guard.
func IdentityFromContext(contextGin *gin.Context) (Identity, bool) {
	value, found := contextGin.Get(ContextKeyIdentity)
	if !found {
		return Identity{}, false
	}
	identity, ok := value.(Identity)
	return identity, ok
}

// AccessTokenFromContext returns the access token the guard accepted, or "".
func AccessTokenFromContext(contextGin *gin.Context) string {
	return contextGin.GetString(ContextKeyAccessToken)
}

func identityFromClaims(claims *sessionvalidator.Claims, source IdentitySource) Identity {
	return Identity{
		UserID:    claims.GetUserID(),
		Email:     claims.UserEmail,
		Name:      claims.UserName,
		Role:      claims.GetRole(),
		Source:    source,
		ExpiresAt: claims.GetExpiresAt(),
	}
}
