package web

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	"github.com/tyemirov/timebank-admin/internal/adminapi"
	"github.com/tyemirov/timebank-admin/internal/authkit"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const overviewDecisionLimit = 10

// AdminData is the read side of the upstream admin API.
type AdminData interface {
	ListJobs(ctx context.Context, token string) adminapi.Result[[]adminapi.Job]
	ListHelpRequests(ctx context.Context, token string) adminapi.Result[[]adminapi.HelpRequest]
	ListJobApplications(ctx context.Context, token string, jobID string) adminapi.Result[[]adminapi.JobApplication]
	ListSkilledUsers(ctx context.Context, token string, jobID string) adminapi.Result[[]adminapi.SkilledUser]
	ListVerifications(ctx context.Context, token string) adminapi.Result[[]adminapi.Verification]
	GetVerification(ctx context.Context, token string, verificationID string) adminapi.Result[adminapi.Verification]
}

// DecisionMaker applies and lists admin decisions.
type DecisionMaker interface {
	ReviewVerification(ctx context.Context, token string, actor string, verificationID string, approve bool, notes string) (adminapi.Verification, error)
	MatchProvider(ctx context.Context, token string, actor string, jobID string, providerID string) (string, error)
	Decisions(ctx context.Context, limit int) ([]adminapi.Decision, error)
}

// Dashboard serves the admin pages and the JSON API behind them.
type Dashboard struct {
	data      AdminData
	decisions DecisionMaker
	templates *template.Template
	logger    *zap.Logger
}

// NewDashboard wires the dashboard handlers.
func NewDashboard(data AdminData, decisions DecisionMaker, templates *template.Template, logger *zap.Logger) (*Dashboard, error) {
	if data == nil {
		return nil, errors.New("web.dashboard.nil_data")
	}
	if decisions == nil {
		return nil, errors.New("web.dashboard.nil_decisions")
	}
	if templates == nil {
		return nil, errors.New("web.dashboard.nil_templates")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dashboard{data: data, decisions: decisions, templates: templates, logger: logger}, nil
}

type resultView struct {
	State   string
	Message string
	Value   any
}

type filterView struct {
	Status   string
	Category string
	Query    string
}

type pageView struct {
	Title    string
	Active   string
	Identity authkit.Identity
	Filter   filterView
	Data     any
}

type overviewData struct {
	Jobs                 resultView
	JobCounts            map[string]int
	HelpRequests         resultView
	PendingVerifications resultView
	Decisions            resultView
}

type jobsData struct {
	Jobs     resultView
	Statuses []string
}

type helpRequestsData struct {
	HelpRequests resultView
}

type applicationsData struct {
	JobID        string
	Applications resultView
	SkilledUsers resultView
}

type verificationsData struct {
	Verifications resultView
	Statuses      []string
}

type verificationData struct {
	Verification resultView
}

var (
	jobStatuses          = []string{adminapi.JobStatusOpen, adminapi.JobStatusMatched, adminapi.JobStatusInProgress, adminapi.JobStatusCompleted, adminapi.JobStatusCancelled}
	verificationStatuses = []string{adminapi.VerificationStatusPending, adminapi.VerificationStatusApproved, adminapi.VerificationStatusRejected}
)

// MountPages registers the HTML pages. The caller is expected to put the session guard in front of router.
func (dashboard *Dashboard) MountPages(router gin.IRouter) {
	router.GET("/", dashboard.showOverview)
	router.GET("/jobs", dashboard.showJobs)
	router.GET("/help-requests", dashboard.showHelpRequests)
	router.GET("/applications", dashboard.showApplications)
	router.GET("/verifications", dashboard.showVerifications)
	router.GET("/verifications/:id", dashboard.showVerification)
}

// ShowLogin renders the public sign-in page.
func (dashboard *Dashboard) ShowLogin(contextGin *gin.Context) {
	dashboard.render(contextGin, http.StatusOK, "login.html", pageView{Title: "Sign in", Active: "login"})
}

func (dashboard *Dashboard) showOverview(contextGin *gin.Context) {
	ctx := contextGin.Request.Context()
	token := authkit.AccessTokenFromContext(contextGin)

	var (
		jobs          adminapi.Result[[]adminapi.Job]
		helpRequests  adminapi.Result[[]adminapi.HelpRequest]
		verifications adminapi.Result[[]adminapi.Verification]
		decisions     adminapi.Result[[]adminapi.Decision]
	)
	var group errgroup.Group
	group.Go(func() error {
		jobs = dashboard.data.ListJobs(ctx, token)
		return nil
	})
	group.Go(func() error {
		helpRequests = dashboard.data.ListHelpRequests(ctx, token)
		return nil
	})
	group.Go(func() error {
		verifications = dashboard.data.ListVerifications(ctx, token)
		return nil
	})
	group.Go(func() error {
		decisions = resultOf(dashboard.decisions.Decisions(ctx, overviewDecisionLimit))
		return nil
	})
	_ = group.Wait()

	data := overviewData{
		Jobs:         viewOf(dashboard.logger, "overview.jobs", jobs),
		HelpRequests: viewOf(dashboard.logger, "overview.help_requests", helpRequests),
		Decisions:    viewOf(dashboard.logger, "overview.decisions", decisions),
	}
	if jobs.State == adminapi.LoadStateLoaded {
		data.JobCounts = adminapi.CountByStatus(jobs.Value)
	}
	if verifications.State == adminapi.LoadStateLoaded {
		verifications = adminapi.Loaded(adminapi.FilterVerifications(verifications.Value, adminapi.VerificationFilter{Status: adminapi.VerificationStatusPending}))
	}
	data.PendingVerifications = viewOf(dashboard.logger, "overview.verifications", verifications)

	dashboard.render(contextGin, http.StatusOK, "overview.html", dashboard.page(contextGin, "Overview", "overview", filterView{}, data))
}

func (dashboard *Dashboard) showJobs(contextGin *gin.Context) {
	filter := jobFilterFromQuery(contextGin)
	result := dashboard.data.ListJobs(contextGin.Request.Context(), authkit.AccessTokenFromContext(contextGin))
	if result.State == adminapi.LoadStateLoaded {
		result = adminapi.Loaded(adminapi.FilterJobs(result.Value, filter))
	}
	data := jobsData{Jobs: viewOf(dashboard.logger, "jobs", result), Statuses: jobStatuses}
	view := dashboard.page(contextGin, "Jobs", "jobs", filterView{Status: filter.Status, Category: filter.Category, Query: filter.Query}, data)
	dashboard.render(contextGin, http.StatusOK, "jobs.html", view)
}

func (dashboard *Dashboard) showHelpRequests(contextGin *gin.Context) {
	filter := adminapi.HelpRequestFilter{
		Status:   strings.TrimSpace(contextGin.Query("status")),
		Category: strings.TrimSpace(contextGin.Query("category")),
		Query:    strings.TrimSpace(contextGin.Query("q")),
	}
	result := dashboard.data.ListHelpRequests(contextGin.Request.Context(), authkit.AccessTokenFromContext(contextGin))
	if result.State == adminapi.LoadStateLoaded {
		result = adminapi.Loaded(adminapi.FilterHelpRequests(result.Value, filter))
	}
	data := helpRequestsData{HelpRequests: viewOf(dashboard.logger, "help_requests", result)}
	view := dashboard.page(contextGin, "Help requests", "help-requests", filterView{Status: filter.Status, Category: filter.Category, Query: filter.Query}, data)
	dashboard.render(contextGin, http.StatusOK, "help_requests.html", view)
}

func (dashboard *Dashboard) showApplications(contextGin *gin.Context) {
	jobID := strings.TrimSpace(contextGin.Query("job"))
	if jobID == "" {
		contextGin.Redirect(http.StatusFound, "/jobs")
		return
	}
	ctx := contextGin.Request.Context()
	token := authkit.AccessTokenFromContext(contextGin)

	var (
		applications adminapi.Result[[]adminapi.JobApplication]
		skilledUsers adminapi.Result[[]adminapi.SkilledUser]
	)
	var group errgroup.Group
	group.Go(func() error {
		applications = dashboard.data.ListJobApplications(ctx, token, jobID)
		return nil
	})
	group.Go(func() error {
		skilledUsers = dashboard.data.ListSkilledUsers(ctx, token, jobID)
		return nil
	})
	_ = group.Wait()

	data := applicationsData{
		JobID:        jobID,
		Applications: viewOf(dashboard.logger, "applications", applications),
		SkilledUsers: viewOf(dashboard.logger, "skilled_users", skilledUsers),
	}
	dashboard.render(contextGin, http.StatusOK, "applications.html", dashboard.page(contextGin, "Applications", "jobs", filterView{}, data))
}

func (dashboard *Dashboard) showVerifications(contextGin *gin.Context) {
	filter := adminapi.VerificationFilter{
		Status: strings.TrimSpace(contextGin.Query("status")),
		Query:  strings.TrimSpace(contextGin.Query("q")),
	}
	result := dashboard.data.ListVerifications(contextGin.Request.Context(), authkit.AccessTokenFromContext(contextGin))
	if result.State == adminapi.LoadStateLoaded {
		result = adminapi.Loaded(adminapi.FilterVerifications(result.Value, filter))
	}
	data := verificationsData{Verifications: viewOf(dashboard.logger, "verifications", result), Statuses: verificationStatuses}
	view := dashboard.page(contextGin, "Verifications", "verifications", filterView{Status: filter.Status, Query: filter.Query}, data)
	dashboard.render(contextGin, http.StatusOK, "verifications.html", view)
}

func (dashboard *Dashboard) showVerification(contextGin *gin.Context) {
	result := dashboard.data.GetVerification(contextGin.Request.Context(), authkit.AccessTokenFromContext(contextGin), contextGin.Param("id"))
	status := http.StatusOK
	if result.State == adminapi.LoadStateFailed && adminapi.IsNotFound(result.Err) {
		status = http.StatusNotFound
	}
	data := verificationData{Verification: viewOf(dashboard.logger, "verification", result)}
	dashboard.render(contextGin, status, "verification.html", dashboard.page(contextGin, "Verification", "verifications", filterView{}, data))
}

func (dashboard *Dashboard) page(contextGin *gin.Context, title string, active string, filter filterView, data any) pageView {
	identity, _ := authkit.IdentityFromContext(contextGin)
	return pageView{Title: title, Active: active, Identity: identity, Filter: filter, Data: data}
}

func (dashboard *Dashboard) render(contextGin *gin.Context, status int, name string, view pageView) {
	contextGin.Header("Cache-Control", "no-store")
	contextGin.Render(status, render.HTML{Template: dashboard.templates, Name: name, Data: view})
}

func jobFilterFromQuery(contextGin *gin.Context) adminapi.JobFilter {
	return adminapi.JobFilter{
		Status:   strings.TrimSpace(contextGin.Query("status")),
		Category: strings.TrimSpace(contextGin.Query("category")),
		Query:    strings.TrimSpace(contextGin.Query("q")),
	}
}

func resultOf[T any](value T, err error) adminapi.Result[T] {
	if err != nil {
		return adminapi.Failed[T](err)
	}
	return adminapi.Loaded(value)
}

func viewOf[T any](logger *zap.Logger, section string, result adminapi.Result[T]) resultView {
	view := resultView{State: result.State.String()}
	switch result.State {
	case adminapi.LoadStateLoaded:
		view.Value = result.Value
	case adminapi.LoadStateFailed:
		logger.Warn("dashboard section failed to load",
			zap.String("code", "web.page.fetch_failed"),
			zap.String("section", section),
			zap.Error(result.Err))
		view.Message = failureMessage(result.Err)
	}
	return view
}

func failureMessage(err error) string {
	switch adminapi.ErrorCode(err) {
	case "not_found":
		return "Not found."
	case "invalid_argument":
		return "The request was not valid."
	case "unauthorized":
		return "The time bank API rejected this session. Sign in again."
	case "upstream_malformed":
		return "The time bank API returned an unexpected response."
	default:
		return "The time bank API is unavailable. Try again shortly."
	}
}
