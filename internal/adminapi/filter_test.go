package adminapi

import "testing"

func TestFilterJobs(t *testing.T) {
	t.Parallel()

	jobs := []Job{
		{ID: "1", Title: "Fix fence", Category: "Repairs", Status: JobStatusOpen, Location: "Leeds"},
		{ID: "2", Title: "Walk dog", Category: "Pets", Status: JobStatusOpen, RequesterName: "Fenwick"},
		{ID: "3", Title: "Paint fence", Category: "Repairs", Status: JobStatusCompleted},
	}

	testCases := []struct {
		name     string
		filter   JobFilter
		expected []string
	}{
		{name: "empty filter keeps everything in order", filter: JobFilter{}, expected: []string{"1", "2", "3"}},
		{name: "status", filter: JobFilter{Status: "OPEN"}, expected: []string{"1", "2"}},
		{name: "category", filter: JobFilter{Category: "repairs"}, expected: []string{"1", "3"}},
		{name: "query matches title and requester", filter: JobFilter{Query: "  FEN "}, expected: []string{"1", "2", "3"}},
		{name: "combined", filter: JobFilter{Status: "open", Category: "repairs", Query: "fence"}, expected: []string{"1"}},
		{name: "no match", filter: JobFilter{Query: "piano"}, expected: []string{}},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			filtered := FilterJobs(jobs, testCase.filter)
			if len(filtered) != len(testCase.expected) {
				t.Fatalf("expected %v, got %+v", testCase.expected, filtered)
			}
			for index, job := range filtered {
				if job.ID.String() != testCase.expected[index] {
					t.Fatalf("expected %v, got %+v", testCase.expected, filtered)
				}
			}
		})
	}
}

func TestFilterVerificationsAndApplications(t *testing.T) {
	t.Parallel()

	verifications := []Verification{
		{ID: "v1", UserName: "Ada Lovelace", Status: VerificationStatusPending},
		{ID: "v2", UserName: "Alan Turing", Email: "alan@example.com", Status: VerificationStatusApproved},
	}
	pending := FilterVerifications(verifications, VerificationFilter{Status: VerificationStatusPending})
	if len(pending) != 1 || pending[0].ID != "v1" {
		t.Fatalf("unexpected pending: %+v", pending)
	}
	byEmail := FilterVerifications(verifications, VerificationFilter{Query: "EXAMPLE.com"})
	if len(byEmail) != 1 || byEmail[0].ID != "v2" {
		t.Fatalf("unexpected query result: %+v", byEmail)
	}

	applications := []JobApplication{
		{ID: "a1", ApplicantName: "Grace", Status: "pending", Message: "I have a ladder"},
		{ID: "a2", ApplicantName: "Linus", Status: "withdrawn"},
	}
	ladder := FilterApplications(applications, ApplicationFilter{Query: "ladder"})
	if len(ladder) != 1 || ladder[0].ID != "a1" {
		t.Fatalf("unexpected applications: %+v", ladder)
	}
	withdrawn := FilterApplications(applications, ApplicationFilter{Status: "withdrawn"})
	if len(withdrawn) != 1 || withdrawn[0].ID != "a2" {
		t.Fatalf("unexpected applications: %+v", withdrawn)
	}
}

func TestFilterHelpRequestsAndCounts(t *testing.T) {
	t.Parallel()

	requests := []HelpRequest{
		{ID: "h1", Title: "Groceries", Category: "Errands", Status: "open"},
		{ID: "h2", Title: "Lift to clinic", Category: "Transport", Status: "closed"},
	}
	transport := FilterHelpRequests(requests, HelpRequestFilter{Category: "transport"})
	if len(transport) != 1 || transport[0].ID != "h2" {
		t.Fatalf("unexpected help requests: %+v", transport)
	}

	counts := CountByStatus([]Job{{Status: JobStatusOpen}, {Status: JobStatusOpen}, {Status: JobStatusMatched}})
	if counts[JobStatusOpen] != 2 || counts[JobStatusMatched] != 1 || counts[JobStatusCompleted] != 0 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}
