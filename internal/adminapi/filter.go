package adminapi

import "strings"

// JobFilter narrows a job list. Zero-value fields match everything.
type JobFilter struct {
	Status   string
	Category string
	Query    string
}

// ApplicationFilter narrows job applications.
type ApplicationFilter struct {
	Status string
	Query  string
}

// VerificationFilter narrows verification submissions.
type VerificationFilter struct {
	Status string
	Query  string
}

// HelpRequestFilter narrows help requests.
type HelpRequestFilter struct {
	Status   string
	Category string
	Query    string
}

// FilterJobs returns jobs matching filter, preserving input order.
func FilterJobs(jobs []Job, filter JobFilter) []Job {
	query := normalizeQuery(filter.Query)
	matched := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		if !equalFold(filter.Status, job.Status) || !equalFold(filter.Category, job.Category) {
			continue
		}
		if !containsQuery(query, job.ID.String(), job.Title, job.Description, job.Location, job.RequesterName) {
			continue
		}
		matched = append(matched, job)
	}
	return matched
}

func FilterApplications(applications []JobApplication, filter ApplicationFilter) []JobApplication {
	query := normalizeQuery(filter.Query)
	matched := make([]JobApplication, 0, len(applications))
	for _, application := range applications {
		if !equalFold(filter.Status, application.Status) {
			continue
		}
		if !containsQuery(query, application.ApplicantName, application.ApplicantID.String(), application.Message) {
			continue
		}
		matched = append(matched, application)
	}
	return matched
}

func FilterVerifications(verifications []Verification, filter VerificationFilter) []Verification {
	query := normalizeQuery(filter.Query)
	matched := make([]Verification, 0, len(verifications))
	for _, verification := range verifications {
		if !equalFold(filter.Status, verification.Status) {
			continue
		}
		if !containsQuery(query, verification.UserName, verification.Email, verification.UserID.String(), verification.DocumentType) {
			continue
		}
		matched = append(matched, verification)
	}
	return matched
}

func FilterHelpRequests(requests []HelpRequest, filter HelpRequestFilter) []HelpRequest {
	query := normalizeQuery(filter.Query)
	matched := make([]HelpRequest, 0, len(requests))
	for _, request := range requests {
		if !equalFold(filter.Status, request.Status) || !equalFold(filter.Category, request.Category) {
			continue
		}
		if !containsQuery(query, request.Title, request.Description, request.RequesterName) {
			continue
		}
		matched = append(matched, request)
	}
	return matched
}

// CountByStatus tallies jobs per status for the overview page.
func CountByStatus(jobs []Job) map[string]int {
	counts := make(map[string]int)
	for _, job := range jobs {
		counts[job.Status]++
	}
	return counts
}

func normalizeQuery(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// equalFold treats an empty want as a wildcard.
func equalFold(want string, actual string) bool {
	want = strings.TrimSpace(want)
	return want == "" || strings.EqualFold(want, actual)
}

func containsQuery(query string, fields ...string) bool {
	if query == "" {
		return true
	}
	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}
