package application

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"Campus2Career/internal/marketplace"
	"Campus2Career/internal/notification"
)

type memoryStore struct {
	mu           sync.Mutex
	applications map[string]*Application
	invites      map[string]*Invite
	ndas         map[string]bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		applications: make(map[string]*Application),
		invites:      make(map[string]*Invite),
		ndas:         make(map[string]bool),
	}
}

func (s *memoryStore) CreateApplication(ctx context.Context, app *Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.applications {
		if existing.StudentID == app.StudentID && existing.ListingID == app.ListingID && existing.Status == StatusPending {
			return ErrDuplicatePending
		}
	}
	copied := *app
	s.applications[app.ID] = &copied
	return nil
}

func (s *memoryStore) FindApplicationByID(ctx context.Context, id string) (*Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.applications[id]
	if !ok {
		return nil, nil
	}
	copied := *app
	return &copied, nil
}

func (s *memoryStore) FindPendingByStudentAndListing(ctx context.Context, studentID, listingID string) (*Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, app := range s.applications {
		if app.StudentID == studentID && app.ListingID == listingID && app.Status == StatusPending {
			copied := *app
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *memoryStore) FindApplicationByTransactionID(ctx context.Context, transactionID string) (*Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, app := range s.applications {
		if app.TransactionID == transactionID && transactionID != "" {
			copied := *app
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *memoryStore) FindApplicationsByStudent(ctx context.Context, studentID string) ([]*Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Application
	for _, app := range s.applications {
		if app.StudentID == studentID {
			copied := *app
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *memoryStore) FindApplicationsByListing(ctx context.Context, listingID, status string) ([]*Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Application
	for _, app := range s.applications {
		if app.ListingID == listingID && (status == "" || app.Status == status) {
			copied := *app
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *memoryStore) DecideApplication(ctx context.Context, id, status, reviewerNotes string) (*Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.applications[id]
	if !ok || app.Status != StatusPending {
		return nil, nil
	}
	app.Status = status
	app.ReviewerNotes = reviewerNotes
	copied := *app
	return &copied, nil
}

func (s *memoryStore) CreateInvite(ctx context.Context, invite *Invite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *invite
	s.invites[invite.ID] = &copied
	return nil
}

func (s *memoryStore) FindInviteByID(ctx context.Context, id string) (*Invite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	invite, ok := s.invites[id]
	if !ok {
		return nil, nil
	}
	copied := *invite
	return &copied, nil
}

func (s *memoryStore) UpdateInviteStatus(ctx context.Context, id, status, transactionID string) (*Invite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	invite, ok := s.invites[id]
	if !ok || invite.Status != InviteStatusPending {
		return nil, nil
	}
	invite.Status = status
	if transactionID != "" {
		invite.TransactionID = transactionID
	}
	copied := *invite
	return &copied, nil
}

func (s *memoryStore) FindInvitesByStudent(ctx context.Context, studentID string) ([]*Invite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Invite
	for _, invite := range s.invites {
		if invite.StudentID == studentID {
			copied := *invite
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *memoryStore) FindInvitesByPartner(ctx context.Context, partnerID string) ([]*Invite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Invite
	for _, invite := range s.invites {
		if invite.CorporatePartnerID == partnerID {
			copied := *invite
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *memoryStore) CreateNDASignature(ctx context.Context, sig *NDASignature) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ndas[sig.StudentID+"|"+sig.ListingID] = true
	return nil
}

func (s *memoryStore) HasSignedNDA(ctx context.Context, studentID, listingID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ndas[studentID+"|"+listingID], nil
}

func (s *memoryStore) get(id string) *Application {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.applications[id]
	if !ok {
		return nil
	}
	copied := *app
	return &copied
}

type fakeMarketplace struct {
	mu             sync.Mutex
	listings       map[string]*marketplace.ListingView
	users          map[string]*marketplace.UserView
	transactions   map[string]*marketplace.TransactionView
	nextTxID       string
	initiateErr    error
	transitionErr  error
	showTxErr      error
	showUserErr    error
	showListingErr error
	calls          int
	transitions    []string
	messages       []string
}

func newFakeMarketplace() *fakeMarketplace {
	return &fakeMarketplace{
		listings:     make(map[string]*marketplace.ListingView),
		users:        make(map[string]*marketplace.UserView),
		transactions: make(map[string]*marketplace.TransactionView),
		nextTxID:     "tx-1",
	}
}

func (m *fakeMarketplace) InitiateTransaction(ctx context.Context, transition, listingID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.initiateErr != nil {
		return "", m.initiateErr
	}
	return m.nextTxID, nil
}

func (m *fakeMarketplace) PostMessage(ctx context.Context, transactionID, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.messages = append(m.messages, content)
	return nil
}

func (m *fakeMarketplace) TransitionTransaction(ctx context.Context, transactionID, transition string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.transitionErr != nil {
		return m.transitionErr
	}
	m.transitions = append(m.transitions, transition)
	return nil
}

func (m *fakeMarketplace) ShowTransaction(ctx context.Context, transactionID string, include ...string) (*marketplace.TransactionView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.showTxErr != nil {
		return nil, m.showTxErr
	}
	tx, ok := m.transactions[transactionID]
	if !ok {
		return nil, &marketplace.APIError{StatusCode: 404, Message: "transaction not found"}
	}
	return tx, nil
}

func (m *fakeMarketplace) ShowUser(ctx context.Context, userID string) (*marketplace.UserView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.showUserErr != nil {
		return nil, m.showUserErr
	}
	user, ok := m.users[userID]
	if !ok {
		return nil, &marketplace.APIError{StatusCode: 404, Message: "user not found"}
	}
	return user, nil
}

func (m *fakeMarketplace) ShowListing(ctx context.Context, listingID string) (*marketplace.ListingView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.showListingErr != nil {
		return nil, m.showListingErr
	}
	listing, ok := m.listings[listingID]
	if !ok {
		return nil, &marketplace.APIError{StatusCode: 404, Message: "listing not found"}
	}
	return listing, nil
}

func (m *fakeMarketplace) VerifyListingOwnership(ctx context.Context, listingID, callerID string) (bool, error) {
	listing, err := m.ShowListing(ctx, listingID)
	if err != nil {
		return false, err
	}
	return listing.AuthorID == callerID, nil
}

func (m *fakeMarketplace) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *fakeMarketplace) lastTransitions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.transitions...)
}

type recorderNotifier struct {
	mu   sync.Mutex
	jobs []notification.Job
}

func (r *recorderNotifier) Enqueue(job notification.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
}

func (r *recorderNotifier) snapshot() []notification.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notification.Job(nil), r.jobs...)
}

// waitForJobs polls until n jobs arrived; the fan-out runs on its own
// goroutine after the service call returns.
func (r *recorderNotifier) waitForJobs(t *testing.T, n int) []notification.Job {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		jobs := r.snapshot()
		if len(jobs) >= n {
			return jobs
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d notification jobs, got %d", n, len(r.snapshot()))
	return nil
}

type fixture struct {
	store    *memoryStore
	market   *fakeMarketplace
	notifier *recorderNotifier
	service  *ApplicationService
}

func newFixture() *fixture {
	store := newMemoryStore()
	market := newFakeMarketplace()
	notifier := &recorderNotifier{}

	market.listings["L123"] = &marketplace.ListingView{ID: "L123", Title: "Brand Audit", AuthorID: "partner-1"}
	market.users["student-1"] = &marketplace.UserView{ID: "student-1", Email: "dana@example.edu", DisplayName: "Dana"}
	market.users["partner-1"] = &marketplace.UserView{ID: "partner-1", Email: "owner@acme.com", DisplayName: "Acme Corp"}

	return &fixture{
		store:    store,
		market:   market,
		notifier: notifier,
		service:  NewApplicationServiceWith(store, market, notifier),
	}
}

func validSubmit(listingID string) *SubmitRequest {
	return &SubmitRequest{
		ListingID:          listingID,
		CoverLetter:        strings.Repeat("x", 25),
		InterestReason:     "I want real experience",
		RelevantCoursework: "Marketing 101",
		ReferencesText:     "Prof. Smith, advisor",
		Skills:             []string{"research"},
		HoursPerWeek:       10,
	}
}

func TestSubmitValidationFailsBeforeAnyExternalCall(t *testing.T) {
	f := newFixture()
	req := validSubmit("L123")
	req.CoverLetter = "too short"

	_, err := f.service.Submit(context.Background(), "student-1", req)
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if validationErr.Field != "CoverLetter" {
		t.Fatalf("expected cover letter field error, got %s", validationErr.Field)
	}
	if f.market.callCount() != 0 {
		t.Fatal("validation must fail before any marketplace call")
	}
}

func TestSubmitFieldThresholds(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*SubmitRequest)
	}{
		{"missing listing", func(r *SubmitRequest) { r.ListingID = "" }},
		{"short interest reason", func(r *SubmitRequest) { r.InterestReason = "short" }},
		{"short coursework", func(r *SubmitRequest) { r.RelevantCoursework = "ab" }},
		{"short references", func(r *SubmitRequest) { r.ReferencesText = "abcd" }},
		{"no skills", func(r *SubmitRequest) { r.Skills = nil }},
		{"zero hours", func(r *SubmitRequest) { r.HoursPerWeek = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			req := validSubmit("L123")
			tc.mutate(req)
			_, err := f.service.Submit(context.Background(), "student-1", req)
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestSubmitCreatesApplicationAndFansOut(t *testing.T) {
	f := newFixture()

	app, err := f.service.Submit(context.Background(), "student-1", validSubmit("L123"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if app.Status != StatusPending {
		t.Fatalf("expected pending, got %s", app.Status)
	}
	if app.TransactionID != "tx-1" {
		t.Fatalf("expected transaction link, got %q", app.TransactionID)
	}
	if len(f.market.messages) != 1 || f.market.messages[0] != app.CoverLetter {
		t.Fatal("cover letter must be posted as the first transaction message")
	}

	jobs := f.notifier.waitForJobs(t, 2)
	byType := map[string]notification.Job{}
	for _, job := range jobs {
		byType[job.Type] = job
	}
	student, ok := byType[notification.TypeApplicationReceived]
	if !ok {
		t.Fatal("missing application-received job")
	}
	if student.RecipientID != "student-1" || student.RecipientEmail != "dana@example.edu" {
		t.Fatalf("unexpected student job: %+v", student)
	}
	partner, ok := byType[notification.TypeNewApplication]
	if !ok {
		t.Fatal("missing new-application job")
	}
	if partner.RecipientID != "partner-1" || partner.RecipientEmail != "owner@acme.com" {
		t.Fatalf("unexpected partner job: %+v", partner)
	}
	if partner.Data["projectTitle"] != "Brand Audit" {
		t.Fatalf("unexpected project title: %s", partner.Data["projectTitle"])
	}
}

func TestSubmitSurvivesMarketplaceOutage(t *testing.T) {
	f := newFixture()
	f.market.initiateErr = errors.New("marketplace down")

	app, err := f.service.Submit(context.Background(), "student-1", validSubmit("L123"))
	if err != nil {
		t.Fatalf("submit must survive the outage: %v", err)
	}
	if app.TransactionID != "" {
		t.Fatalf("expected empty transaction id, got %q", app.TransactionID)
	}
	if stored := f.store.get(app.ID); stored == nil || stored.Status != StatusPending {
		t.Fatal("application must be persisted pending despite the outage")
	}
}

func TestSubmitDuplicatePendingConflict(t *testing.T) {
	f := newFixture()

	first, err := f.service.Submit(context.Background(), "student-1", validSubmit("L123"))
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}

	_, err = f.service.Submit(context.Background(), "student-1", validSubmit("L123"))
	var conflictErr *ConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflictErr.ExistingID != first.ID {
		t.Fatalf("conflict must carry the existing application id, got %q", conflictErr.ExistingID)
	}

	// After a decline the student may re-apply.
	if _, err := f.service.Decline(context.Background(), "partner-1", first.ID, "not a fit"); err != nil {
		t.Fatalf("decline: %v", err)
	}
	second, err := f.service.Submit(context.Background(), "student-1", validSubmit("L123"))
	if err != nil {
		t.Fatalf("resubmit after decline: %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("resubmission must create a new application")
	}
}

func TestAcceptThenDeclineIsConflict(t *testing.T) {
	f := newFixture()
	app, err := f.service.Submit(context.Background(), "student-1", validSubmit("L123"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	accepted, err := f.service.Accept(context.Background(), "partner-1", app.ID, "welcome aboard")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if accepted.Status != StatusAccepted || accepted.ReviewerNotes != "welcome aboard" {
		t.Fatalf("unexpected accepted state: %+v", accepted)
	}

	_, err = f.service.Decline(context.Background(), "partner-1", app.ID, "")
	var conflictErr *ConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if !strings.Contains(conflictErr.Message, "already been accepted") {
		t.Fatalf("conflict must name the current status: %s", conflictErr.Message)
	}
	if f.store.get(app.ID).Status != StatusAccepted {
		t.Fatal("second decision must not change status")
	}

	_, err = f.service.Accept(context.Background(), "partner-1", app.ID, "")
	if !errors.As(err, &conflictErr) {
		t.Fatalf("repeat accept must conflict, got %v", err)
	}
}

func TestAcceptMirrorsTransitionAndToleratesFailure(t *testing.T) {
	f := newFixture()
	app, _ := f.service.Submit(context.Background(), "student-1", validSubmit("L123"))

	if _, err := f.service.Accept(context.Background(), "partner-1", app.ID, ""); err != nil {
		t.Fatalf("accept: %v", err)
	}
	transitions := f.market.lastTransitions()
	if len(transitions) != 1 || transitions[0] != marketplace.TransitionAccept {
		t.Fatalf("expected accept transition, got %v", transitions)
	}
}

func TestDecideSurvivesExternalTransitionFailure(t *testing.T) {
	f := newFixture()
	app, _ := f.service.Submit(context.Background(), "student-1", validSubmit("L123"))
	f.market.transitionErr = errors.New("marketplace down")

	updated, err := f.service.Decline(context.Background(), "partner-1", app.ID, "no capacity")
	if err != nil {
		t.Fatalf("local decision must stand despite transition failure: %v", err)
	}
	if updated.Status != StatusDeclined {
		t.Fatalf("expected declined, got %s", updated.Status)
	}
}

func TestDecideRequiresListingOwnership(t *testing.T) {
	f := newFixture()
	app, _ := f.service.Submit(context.Background(), "student-1", validSubmit("L123"))

	_, err := f.service.Accept(context.Background(), "intruder", app.ID, "")
	var authErr *AuthorizationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthorizationError, got %v", err)
	}
	if f.store.get(app.ID).Status != StatusPending {
		t.Fatal("status must be unchanged")
	}
}

func TestDecideUnknownApplication(t *testing.T) {
	f := newFixture()
	_, err := f.service.Accept(context.Background(), "partner-1", "missing", "")
	var notFoundErr *NotFoundError
	if !errors.As(err, &notFoundErr) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestNotifyDecisionFallsBackWhenLookupFails(t *testing.T) {
	f := newFixture()
	f.market.showTxErr = errors.New("marketplace down")
	f.market.showUserErr = errors.New("marketplace down")

	app := &Application{ID: "a1", StudentID: "student-1", ListingID: "L123", TransactionID: "tx-1", Status: StatusAccepted}
	f.service.notifyDecision(app, notification.TypeApplicationAccepted)

	jobs := f.notifier.snapshot()
	if len(jobs) != 1 {
		t.Fatalf("notification must never be dropped, got %d jobs", len(jobs))
	}
	job := jobs[0]
	if job.RecipientID != "student-1" {
		t.Fatalf("unexpected recipient: %s", job.RecipientID)
	}
	if job.RecipientEmail != "" {
		t.Fatal("fallback must be in-app only")
	}
	if job.Data["projectTitle"] != "your project application" {
		t.Fatalf("expected generic title, got %s", job.Data["projectTitle"])
	}
}

func TestSubmitMarksInviteApplied(t *testing.T) {
	f := newFixture()
	invite, err := f.service.CreateInvite(context.Background(), "partner-1", &InviteRequest{
		StudentID:    "student-1",
		ListingID:    "L123",
		ProjectTitle: "Brand Audit",
		Message:      "We liked your profile",
	})
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}

	req := validSubmit("L123")
	req.InviteID = invite.ID
	app, err := f.service.Submit(context.Background(), "student-1", req)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	stored, _ := f.store.FindInviteByID(context.Background(), invite.ID)
	if stored.Status != InviteStatusApplied {
		t.Fatalf("expected invite applied, got %s", stored.Status)
	}
	if stored.TransactionID != app.TransactionID {
		t.Fatalf("invite must carry the transaction id, got %q", stored.TransactionID)
	}
}

func TestSubmitRejectsForeignInvite(t *testing.T) {
	f := newFixture()
	invite, err := f.service.CreateInvite(context.Background(), "partner-1", &InviteRequest{
		StudentID:    "student-1",
		ListingID:    "L123",
		ProjectTitle: "Brand Audit",
	})
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}
	f.notifier.waitForJobs(t, 1)
	before := f.market.callCount()

	req := validSubmit("L123")
	req.InviteID = invite.ID
	_, err = f.service.Submit(context.Background(), "student-2", req)
	var authErr *AuthorizationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthorizationError for a foreign invite, got %v", err)
	}
	if f.market.callCount() != before {
		t.Fatal("invite ownership must be checked before any marketplace call")
	}

	stored, _ := f.store.FindInviteByID(context.Background(), invite.ID)
	if stored.Status != InviteStatusPending || stored.TransactionID != "" {
		t.Fatalf("foreign invite must be untouched, got %+v", stored)
	}
	// The invited student can still respond.
	if _, err := f.service.RespondInvite(context.Background(), "student-1", invite.ID, true); err != nil {
		t.Fatalf("respond after foreign submit attempt: %v", err)
	}
}

func TestSubmitRejectsInviteForOtherListing(t *testing.T) {
	f := newFixture()
	invite, err := f.service.CreateInvite(context.Background(), "partner-1", &InviteRequest{
		StudentID:    "student-1",
		ListingID:    "L999",
		ProjectTitle: "Other Project",
	})
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}

	req := validSubmit("L123")
	req.InviteID = invite.ID
	_, err = f.service.Submit(context.Background(), "student-1", req)
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError for a listing mismatch, got %v", err)
	}
	if validationErr.Field != "invite_id" {
		t.Fatalf("expected invite_id field error, got %s", validationErr.Field)
	}
	stored, _ := f.store.FindInviteByID(context.Background(), invite.ID)
	if stored.Status != InviteStatusPending {
		t.Fatalf("mismatched invite must stay pending, got %s", stored.Status)
	}
}

func TestSubmitRejectsUnknownInvite(t *testing.T) {
	f := newFixture()
	req := validSubmit("L123")
	req.InviteID = "no-such-invite"
	_, err := f.service.Submit(context.Background(), "student-1", req)
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestSubmitProceedsWhenListingLookupFails(t *testing.T) {
	f := newFixture()
	f.market.listings["L123"].PublicData = map[string]any{"nda_required": true}
	f.market.showListingErr = errors.New("marketplace down")

	// The NDA requirement cannot be read during the outage, so the gate
	// degrades open and the submission survives.
	app, err := f.service.Submit(context.Background(), "student-1", validSubmit("L123"))
	if err != nil {
		t.Fatalf("submit during listing outage: %v", err)
	}
	if app.Status != StatusPending {
		t.Fatalf("expected pending, got %s", app.Status)
	}
}

func TestRespondInvite(t *testing.T) {
	f := newFixture()
	invite, err := f.service.CreateInvite(context.Background(), "partner-1", &InviteRequest{
		StudentID:    "student-1",
		ListingID:    "L123",
		ProjectTitle: "Brand Audit",
	})
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}
	// Invite creation fans out to the student.
	f.notifier.waitForJobs(t, 1)

	_, err = f.service.RespondInvite(context.Background(), "student-2", invite.ID, true)
	var authErr *AuthorizationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthorizationError for foreign invite, got %v", err)
	}

	updated, err := f.service.RespondInvite(context.Background(), "student-1", invite.ID, true)
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if updated.Status != InviteStatusAccepted {
		t.Fatalf("expected accepted, got %s", updated.Status)
	}

	jobs := f.notifier.waitForJobs(t, 2)
	last := jobs[len(jobs)-1]
	if last.Type != notification.TypeStudentAcceptedInvite || last.RecipientID != "partner-1" {
		t.Fatalf("expected partner acceptance alert, got %+v", last)
	}

	_, err = f.service.RespondInvite(context.Background(), "student-1", invite.ID, false)
	var conflictErr *ConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("invite decisions are final, got %v", err)
	}
}

func TestSubmitRequiresNDAWhenListingDemandsIt(t *testing.T) {
	f := newFixture()
	f.market.listings["L123"].PublicData = map[string]any{"nda_required": true}

	_, err := f.service.Submit(context.Background(), "student-1", validSubmit("L123"))
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if validationErr.Field != "nda" {
		t.Fatalf("expected nda field error, got %s", validationErr.Field)
	}

	if _, err := f.service.SignNDA(context.Background(), "student-1", "L123", "Dana Q. Example"); err != nil {
		t.Fatalf("sign nda: %v", err)
	}
	if _, err := f.service.Submit(context.Background(), "student-1", validSubmit("L123")); err != nil {
		t.Fatalf("submit after signing: %v", err)
	}
}

func TestSignNDATwiceConflicts(t *testing.T) {
	f := newFixture()
	if _, err := f.service.SignNDA(context.Background(), "student-1", "L123", "Dana Q. Example"); err != nil {
		t.Fatalf("sign nda: %v", err)
	}
	_, err := f.service.SignNDA(context.Background(), "student-1", "L123", "Dana Q. Example")
	var conflictErr *ConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
}

func TestCompleteProject(t *testing.T) {
	f := newFixture()
	app, _ := f.service.Submit(context.Background(), "student-1", validSubmit("L123"))
	if _, err := f.service.Accept(context.Background(), "partner-1", app.ID, ""); err != nil {
		t.Fatalf("accept: %v", err)
	}
	f.market.transactions["tx-1"] = &marketplace.TransactionView{
		ID:           "tx-1",
		ListingTitle: "Brand Audit",
		Customer:     &marketplace.UserView{ID: "student-1", Email: "dana@example.edu", DisplayName: "Dana"},
	}

	completed, err := f.service.CompleteProject(context.Background(), "partner-1", "tx-1")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.ID != app.ID {
		t.Fatalf("unexpected application: %s", completed.ID)
	}
	transitions := f.market.lastTransitions()
	if transitions[len(transitions)-1] != marketplace.TransitionComplete {
		t.Fatalf("expected completion transition, got %v", transitions)
	}
}

func TestCompleteProjectFailsWhenMarketplaceDown(t *testing.T) {
	f := newFixture()
	app, _ := f.service.Submit(context.Background(), "student-1", validSubmit("L123"))
	if _, err := f.service.Accept(context.Background(), "partner-1", app.ID, ""); err != nil {
		t.Fatalf("accept: %v", err)
	}
	f.market.transitionErr = errors.New("marketplace down")

	_, err := f.service.CompleteProject(context.Background(), "partner-1", "tx-1")
	var depErr *DependencyError
	if !errors.As(err, &depErr) {
		t.Fatalf("completion is an external-first operation, expected DependencyError, got %v", err)
	}
}

func TestListByListingRequiresOwnership(t *testing.T) {
	f := newFixture()
	if _, err := f.service.Submit(context.Background(), "student-1", validSubmit("L123")); err != nil {
		t.Fatalf("submit: %v", err)
	}

	_, err := f.service.ListByListing(context.Background(), "intruder", "L123", "")
	var authErr *AuthorizationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthorizationError, got %v", err)
	}

	apps, err := f.service.ListByListing(context.Background(), "partner-1", "L123", StatusPending)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(apps) != 1 {
		t.Fatalf("expected 1 application, got %d", len(apps))
	}
}
