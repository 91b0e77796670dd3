package web

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tyemirov/timebank-admin/internal/adminapi"
	"github.com/tyemirov/timebank-admin/internal/authkit"
	"go.uber.org/zap"
)

const (
	defaultDecisionPageSize = 50
	maxDecisionPageSize     = 500
)

type reviewRequest struct {
	Approve *bool  `json:"approve" binding:"required"`
	Notes   string `json:"notes"`
}

type matchRequest struct {
	ProviderID string `json:"providerId" binding:"required"`
}

// MountAPI registers the JSON admin endpoints on router, normally the /api/admin group.
func (dashboard *Dashboard) MountAPI(router gin.IRouter) {
	router.GET("/jobs", dashboard.listJobs)
	router.GET("/jobs/export", dashboard.exportJobs)
	router.GET("/jobs/:id/applications", dashboard.listApplications)
	router.GET("/jobs/:id/skilled-users", dashboard.listSkilledUsers)
	router.POST("/jobs/:id/match", dashboard.matchProvider)
	router.GET("/help-requests", dashboard.listHelpRequests)
	router.GET("/verifications", dashboard.listVerifications)
	router.GET("/verifications/:id", dashboard.getVerification)
	router.POST("/verifications/:id/review", dashboard.reviewVerification)
	router.GET("/decisions", dashboard.listDecisions)
}

func (dashboard *Dashboard) listJobs(contextGin *gin.Context) {
	result := dashboard.data.ListJobs(contextGin.Request.Context(), authkit.AccessTokenFromContext(contextGin))
	if result.State == adminapi.LoadStateLoaded {
		result = adminapi.Loaded(adminapi.FilterJobs(result.Value, jobFilterFromQuery(contextGin)))
	}
	respondResult(contextGin, dashboard.logger, "list_jobs", "jobs", result)
}

func (dashboard *Dashboard) listHelpRequests(contextGin *gin.Context) {
	result := dashboard.data.ListHelpRequests(contextGin.Request.Context(), authkit.AccessTokenFromContext(contextGin))
	if result.State == adminapi.LoadStateLoaded {
		result = adminapi.Loaded(adminapi.FilterHelpRequests(result.Value, adminapi.HelpRequestFilter{
			Status:   contextGin.Query("status"),
			Category: contextGin.Query("category"),
			Query:    contextGin.Query("q"),
		}))
	}
	respondResult(contextGin, dashboard.logger, "list_help_requests", "helpRequests", result)
}

func (dashboard *Dashboard) listApplications(contextGin *gin.Context) {
	result := dashboard.data.ListJobApplications(contextGin.Request.Context(), authkit.AccessTokenFromContext(contextGin), contextGin.Param("id"))
	if result.State == adminapi.LoadStateLoaded {
		result = adminapi.Loaded(adminapi.FilterApplications(result.Value, adminapi.ApplicationFilter{
			Status: contextGin.Query("status"),
			Query:  contextGin.Query("q"),
		}))
	}
	respondResult(contextGin, dashboard.logger, "list_applications", "applications", result)
}

func (dashboard *Dashboard) listSkilledUsers(contextGin *gin.Context) {
	result := dashboard.data.ListSkilledUsers(contextGin.Request.Context(), authkit.AccessTokenFromContext(contextGin), contextGin.Param("id"))
	respondResult(contextGin, dashboard.logger, "list_skilled_users", "users", result)
}

func (dashboard *Dashboard) listVerifications(contextGin *gin.Context) {
	result := dashboard.data.ListVerifications(contextGin.Request.Context(), authkit.AccessTokenFromContext(contextGin))
	if result.State == adminapi.LoadStateLoaded {
		result = adminapi.Loaded(adminapi.FilterVerifications(result.Value, adminapi.VerificationFilter{
			Status: contextGin.Query("status"),
			Query:  contextGin.Query("q"),
		}))
	}
	respondResult(contextGin, dashboard.logger, "list_verifications", "verifications", result)
}

func (dashboard *Dashboard) getVerification(contextGin *gin.Context) {
	result := dashboard.data.GetVerification(contextGin.Request.Context(), authkit.AccessTokenFromContext(contextGin), contextGin.Param("id"))
	respondResult(contextGin, dashboard.logger, "get_verification", "verification", result)
}

func (dashboard *Dashboard) reviewVerification(contextGin *gin.Context) {
	var request reviewRequest
	if err := contextGin.ShouldBindJSON(&request); err != nil {
		contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_argument", "message": "approve is required"})
		return
	}
	verification, err := dashboard.decisions.ReviewVerification(
		contextGin.Request.Context(),
		authkit.AccessTokenFromContext(contextGin),
		actorOf(contextGin),
		contextGin.Param("id"),
		*request.Approve,
		strings.TrimSpace(request.Notes),
	)
	if err != nil {
		respondError(contextGin, dashboard.logger, "review_verification", err)
		return
	}
	contextGin.JSON(http.StatusOK, gin.H{"verification": verification})
}

func (dashboard *Dashboard) matchProvider(contextGin *gin.Context) {
	var request matchRequest
	if err := contextGin.ShouldBindJSON(&request); err != nil {
		contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_argument", "message": "providerId is required"})
		return
	}
	notice, err := dashboard.decisions.MatchProvider(
		contextGin.Request.Context(),
		authkit.AccessTokenFromContext(contextGin),
		actorOf(contextGin),
		contextGin.Param("id"),
		strings.TrimSpace(request.ProviderID),
	)
	if err != nil {
		respondError(contextGin, dashboard.logger, "match_provider", err)
		return
	}
	contextGin.JSON(http.StatusOK, gin.H{"message": notice})
}

func (dashboard *Dashboard) listDecisions(contextGin *gin.Context) {
	limit := defaultDecisionPageSize
	if raw := contextGin.Query("limit"); raw != "" {
		parsed, parseErr := strconv.Atoi(raw)
		if parseErr != nil || parsed <= 0 {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_argument", "message": "limit must be a positive integer"})
			return
		}
		limit = min(parsed, maxDecisionPageSize)
	}
	decisions, err := dashboard.decisions.Decisions(contextGin.Request.Context(), limit)
	if err != nil {
		dashboard.logger.Error("decision listing failed",
			zap.String("code", "api.decisions.list_failed"),
			zap.Error(err))
		contextGin.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "decisions_unavailable"})
		return
	}
	contextGin.JSON(http.StatusOK, gin.H{"decisions": decisions})
}

func (dashboard *Dashboard) exportJobs(contextGin *gin.Context) {
	format := strings.ToLower(strings.TrimSpace(contextGin.DefaultQuery("format", adminapi.ExportFormatCSV)))
	if format != adminapi.ExportFormatCSV && format != adminapi.ExportFormatXLSX {
		contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_argument", "message": "format must be csv or xlsx"})
		return
	}
	jobs, err := dashboard.data.ListJobs(contextGin.Request.Context(), authkit.AccessTokenFromContext(contextGin)).Unwrap()
	if err != nil {
		respondError(contextGin, dashboard.logger, "export_jobs", err)
		return
	}
	jobs = adminapi.FilterJobs(jobs, jobFilterFromQuery(contextGin))

	var buffer bytes.Buffer
	if exportErr := adminapi.ExportJobs(&buffer, format, jobs); exportErr != nil {
		dashboard.logger.Error("job export failed",
			zap.String("code", "api.jobs.export_failed"),
			zap.String("format", format),
			zap.Error(exportErr))
		contextGin.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "export_failed"})
		return
	}
	contentType, extension := adminapi.ExportContentType(format)
	fileName := fmt.Sprintf("jobs-%s.%s", time.Now().UTC().Format("20060102"), extension)
	contextGin.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	contextGin.Header("Cache-Control", "no-store")
	contextGin.Data(http.StatusOK, contentType, buffer.Bytes())
}

func respondResult[T any](contextGin *gin.Context, logger *zap.Logger, operation string, key string, result adminapi.Result[T]) {
	value, err := result.Unwrap()
	if err != nil {
		respondError(contextGin, logger, operation, err)
		return
	}
	contextGin.JSON(http.StatusOK, gin.H{key: value})
}

func respondError(contextGin *gin.Context, logger *zap.Logger, operation string, err error) {
	status := adminapi.HTTPStatus(err)
	code := adminapi.ErrorCode(err)
	if status >= http.StatusInternalServerError {
		logger.Warn("admin api request failed",
			zap.String("code", "api.admin."+code),
			zap.String("operation", operation),
			zap.Error(err))
	}
	contextGin.AbortWithStatusJSON(status, gin.H{"error": code})
}

// actorOf names the admin recorded on decisions.
func actorOf(contextGin *gin.Context) string {
	identity, _ := authkit.IdentityFromContext(contextGin)
	for _, candidate := range []string{identity.Email, identity.UserID, identity.Name} {
		if strings.TrimSpace(candidate) != "" {
			return candidate
		}
	}
	return "admin"
}
