package application

import (
	"Campus2Career/internal/marketplace"
	"Campus2Career/internal/notification"
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Store is the slice of the repository the reconciler needs. Satisfied by
// ApplicationRepository; tests use an in-memory fake.
type Store interface {
	CreateApplication(ctx context.Context, app *Application) error
	FindApplicationByID(ctx context.Context, id string) (*Application, error)
	FindPendingByStudentAndListing(ctx context.Context, studentID, listingID string) (*Application, error)
	FindApplicationByTransactionID(ctx context.Context, transactionID string) (*Application, error)
	FindApplicationsByStudent(ctx context.Context, studentID string) ([]*Application, error)
	FindApplicationsByListing(ctx context.Context, listingID, status string) ([]*Application, error)
	DecideApplication(ctx context.Context, id, status, reviewerNotes string) (*Application, error)
	CreateInvite(ctx context.Context, invite *Invite) error
	FindInviteByID(ctx context.Context, id string) (*Invite, error)
	UpdateInviteStatus(ctx context.Context, id, status, transactionID string) (*Invite, error)
	FindInvitesByStudent(ctx context.Context, studentID string) ([]*Invite, error)
	FindInvitesByPartner(ctx context.Context, partnerID string) ([]*Invite, error)
	CreateNDASignature(ctx context.Context, sig *NDASignature) error
	HasSignedNDA(ctx context.Context, studentID, listingID string) (bool, error)
}

// ApplicationService reconciles the local application lifecycle with the
// marketplace transaction state machine and fans out notifications. The local
// write is always the source of truth: a marketplace failure never rolls back
// or blocks a local state change.
type ApplicationService struct {
	store    Store
	market   marketplace.Client
	notifier notification.Notifier
}

// NewApplicationService creates a new ApplicationService.
func NewApplicationService(repo *ApplicationRepository, client marketplace.Client, worker *notification.DispatchWorker) *ApplicationService {
	return &ApplicationService{store: repo, market: client, notifier: worker}
}

// NewApplicationServiceWith wires explicit collaborators. Used by tests.
func NewApplicationServiceWith(store Store, client marketplace.Client, notifier notification.Notifier) *ApplicationService {
	return &ApplicationService{store: store, market: client, notifier: notifier}
}

var validate = validator.New()

// SubmitRequest carries the student's application form.
type SubmitRequest struct {
	ListingID          string   `json:"listing_id" validate:"required"`
	InviteID           string   `json:"invite_id"`
	CoverLetter        string   `json:"cover_letter" validate:"required,min=20"`
	InterestReason     string   `json:"interest_reason" validate:"required,min=10"`
	RelevantCoursework string   `json:"relevant_coursework" validate:"required,min=3"`
	ReferencesText     string   `json:"references" validate:"required,min=5"`
	GPA                string   `json:"gpa"`
	Skills             []string `json:"skills" validate:"required,min=1"`
	AvailabilityDate   string   `json:"availability_date"`
	HoursPerWeek       int      `json:"hours_per_week" validate:"required,min=1"`
}

func validateSubmit(req *SubmitRequest) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &ValidationError{Field: fe.Field(), Message: submitFieldMessage(fe.Field())}
	}
	return &ValidationError{Field: "request", Message: "invalid submission"}
}

func submitFieldMessage(field string) string {
	switch field {
	case "ListingID":
		return "A listing id is required"
	case "CoverLetter":
		return "Cover letter must be at least 20 characters"
	case "InterestReason":
		return "Interest reason must be at least 10 characters"
	case "RelevantCoursework":
		return "Relevant coursework must be at least 3 characters"
	case "ReferencesText":
		return "References must be at least 5 characters"
	case "Skills":
		return "At least one skill is required"
	case "HoursPerWeek":
		return "Hours per week must be at least 1"
	}
	return "invalid value"
}

// Submit validates and persists a new pending application, best-effort links
// it to a marketplace transaction, and queues the confirmation fan-out.
// A marketplace outage leaves TransactionID empty instead of failing the
// submission.
func (s *ApplicationService) Submit(ctx context.Context, studentID string, req *SubmitRequest) (*Application, error) {
	if err := validateSubmit(req); err != nil {
		return nil, err
	}

	// A caller-supplied invite id is only honored when the invite was sent to
	// this student for this listing. Same ownership policy as RespondInvite.
	if req.InviteID != "" {
		invite, err := s.store.FindInviteByID(ctx, req.InviteID)
		if err != nil {
			return nil, err
		}
		if invite == nil {
			return nil, &ValidationError{Field: "invite_id", Message: "Unknown invitation"}
		}
		if invite.StudentID != studentID {
			return nil, &AuthorizationError{Message: "This invitation was sent to another student"}
		}
		if invite.ListingID != req.ListingID {
			return nil, &ValidationError{Field: "invite_id", Message: "This invitation is for a different project listing"}
		}
	}

	// Listing lookup feeds both the NDA gate and the fan-out project title.
	// A failed lookup degrades to "no NDA requirement known, generic title".
	listing, err := s.market.ShowListing(ctx, req.ListingID)
	if err != nil {
		// With the listing unknown the NDA requirement cannot be evaluated,
		// so the gate degrades open rather than blocking every submission
		// during a marketplace outage. Flagged distinctly for operators.
		log.Printf("[RECONCILE] listing lookup failed for %s during submit, NDA gate skipped: %v", req.ListingID, err)
		listing = nil
	}
	if listing != nil && listing.PublicData != nil {
		if required, _ := listing.PublicData["nda_required"].(bool); required {
			signed, err := s.store.HasSignedNDA(ctx, studentID, req.ListingID)
			if err != nil {
				return nil, err
			}
			if !signed {
				return nil, &ValidationError{Field: "nda", Message: "This project requires a signed NDA before applying"}
			}
		}
	}

	existing, err := s.store.FindPendingByStudentAndListing(ctx, studentID, req.ListingID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &ConflictError{
			Message:    "You have already applied to this project",
			ExistingID: existing.ID,
			Status:     existing.Status,
		}
	}

	transactionID, err := s.market.InitiateTransaction(ctx, marketplace.TransitionInquire, req.ListingID)
	if err != nil {
		// Deliberate: the submission proceeds without a transaction link so
		// the student's work survives a marketplace outage.
		log.Printf("[RECONCILE] marketplace initiate failed for listing %s, storing application unlinked: %v", req.ListingID, err)
		transactionID = ""
	} else if err := s.market.PostMessage(ctx, transactionID, req.CoverLetter); err != nil {
		log.Printf("[RECONCILE] failed to post cover letter on transaction %s: %v", transactionID, err)
	}

	app := &Application{
		ID:                 uuid.NewString(),
		StudentID:          studentID,
		ListingID:          req.ListingID,
		TransactionID:      transactionID,
		InviteID:           req.InviteID,
		CoverLetter:        req.CoverLetter,
		InterestReason:     req.InterestReason,
		RelevantCoursework: req.RelevantCoursework,
		ReferencesText:     req.ReferencesText,
		GPA:                req.GPA,
		Skills:             req.Skills,
		AvailabilityDate:   req.AvailabilityDate,
		HoursPerWeek:       req.HoursPerWeek,
		Status:             StatusPending,
		SubmittedAt:        time.Now(),
	}
	if err := s.store.CreateApplication(ctx, app); err != nil {
		if errors.Is(err, ErrDuplicatePending) {
			return nil, &ConflictError{Message: "You have already applied to this project", Status: StatusPending}
		}
		return nil, err
	}

	if req.InviteID != "" {
		if _, err := s.store.UpdateInviteStatus(ctx, req.InviteID, InviteStatusApplied, transactionID); err != nil {
			log.Printf("[RECONCILE] failed to mark invite %s applied: %v", req.InviteID, err)
		}
	}

	go s.notifySubmitted(app, listing)
	return app, nil
}

// Accept moves a pending application to accepted. See decide.
func (s *ApplicationService) Accept(ctx context.Context, callerID, applicationID, reviewerNotes string) (*Application, error) {
	return s.decide(ctx, callerID, applicationID, StatusAccepted, reviewerNotes)
}

// Decline moves a pending application to declined. See decide.
func (s *ApplicationService) Decline(ctx context.Context, callerID, applicationID, reviewerNotes string) (*Application, error) {
	return s.decide(ctx, callerID, applicationID, StatusDeclined, reviewerNotes)
}

// decide is the shared accept/decline path: verify the caller owns the
// listing, flip pending -> decision locally, then best-effort mirror the
// decision onto the marketplace transaction and queue the fan-out. The local
// status is authoritative once set; an external transition failure is logged
// for operators, never rolled back.
func (s *ApplicationService) decide(ctx context.Context, callerID, applicationID, status, reviewerNotes string) (*Application, error) {
	app, err := s.store.FindApplicationByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, &NotFoundError{Resource: "application"}
	}

	owns, err := s.market.VerifyListingOwnership(ctx, app.ListingID, callerID)
	if err != nil {
		log.Printf("[RECONCILE] ownership check failed for listing %s: %v", app.ListingID, err)
		return nil, &AuthorizationError{Message: "Could not verify you own this project listing"}
	}
	if !owns {
		return nil, &AuthorizationError{Message: "Only the project listing owner can respond to applications"}
	}

	if app.Status != StatusPending {
		return nil, &ConflictError{
			Message:    fmt.Sprintf("This application has already been %s", app.Status),
			ExistingID: app.ID,
			Status:     app.Status,
		}
	}

	updated, err := s.store.DecideApplication(ctx, applicationID, status, reviewerNotes)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		// Lost a race with another decision between the read and the write.
		current, _ := s.store.FindApplicationByID(ctx, applicationID)
		conflictStatus := "processed"
		if current != nil {
			conflictStatus = current.Status
		}
		return nil, &ConflictError{
			Message:    fmt.Sprintf("This application has already been %s", conflictStatus),
			ExistingID: applicationID,
			Status:     conflictStatus,
		}
	}

	if updated.TransactionID != "" {
		transition := marketplace.TransitionAccept
		if status == StatusDeclined {
			transition = marketplace.TransitionDecline
		}
		if err := s.market.TransitionTransaction(ctx, updated.TransactionID, transition); err != nil {
			log.Printf("[RECONCILE] local application %s is %s but marketplace transition failed on %s: %v",
				updated.ID, status, updated.TransactionID, err)
		}
	}

	typ := notification.TypeApplicationAccepted
	if status == StatusDeclined {
		typ = notification.TypeApplicationDeclined
	}
	go s.notifyDecision(updated, typ)
	return updated, nil
}

// CompleteProject marks the marketplace transaction completed and notifies
// the student. Unlike accept/decline, the external transition is the primary
// effect here, so its failure fails the operation.
func (s *ApplicationService) CompleteProject(ctx context.Context, callerID, transactionID string) (*Application, error) {
	app, err := s.store.FindApplicationByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, &NotFoundError{Resource: "application"}
	}

	owns, err := s.market.VerifyListingOwnership(ctx, app.ListingID, callerID)
	if err != nil || !owns {
		return nil, &AuthorizationError{Message: "Only the project listing owner can complete a project"}
	}
	if app.Status != StatusAccepted {
		return nil, &ConflictError{
			Message:    "Only an accepted application's project can be completed",
			ExistingID: app.ID,
			Status:     app.Status,
		}
	}

	if err := s.market.TransitionTransaction(ctx, transactionID, marketplace.TransitionComplete); err != nil {
		return nil, &DependencyError{Dependency: "marketplace", Err: err}
	}

	go s.notifyCompleted(app)
	return app, nil
}

// ListByStudent returns the student's own applications.
func (s *ApplicationService) ListByStudent(ctx context.Context, studentID string) ([]*Application, error) {
	return s.store.FindApplicationsByStudent(ctx, studentID)
}

// ListByListing returns a listing's applications for its owner.
func (s *ApplicationService) ListByListing(ctx context.Context, callerID, listingID, status string) ([]*Application, error) {
	owns, err := s.market.VerifyListingOwnership(ctx, listingID, callerID)
	if err != nil || !owns {
		return nil, &AuthorizationError{Message: "Only the project listing owner can view its applications"}
	}
	return s.store.FindApplicationsByListing(ctx, listingID, status)
}

// InviteRequest carries a corporate partner's solicitation.
type InviteRequest struct {
	StudentID    string `json:"student_id" validate:"required"`
	ListingID    string `json:"listing_id" validate:"required"`
	ProjectTitle string `json:"project_title" validate:"required"`
	Message      string `json:"message"`
}

// CreateInvite persists a partner's invitation and queues the invite
// notification to the student.
func (s *ApplicationService) CreateInvite(ctx context.Context, partnerID string, req *InviteRequest) (*Invite, error) {
	if err := validate.Struct(req); err != nil {
		return nil, &ValidationError{Field: "request", Message: "student_id, listing_id and project_title are required"}
	}

	invite := &Invite{
		ID:                 uuid.NewString(),
		CorporatePartnerID: partnerID,
		StudentID:          req.StudentID,
		ListingID:          req.ListingID,
		ProjectTitle:       req.ProjectTitle,
		Message:            req.Message,
		Status:             InviteStatusPending,
		CreatedAt:          time.Now(),
	}
	if err := s.store.CreateInvite(ctx, invite); err != nil {
		return nil, err
	}

	go s.notifyInvited(invite)
	return invite, nil
}

// RespondInvite records the invited student's direct accept or decline.
// Submitting an application against the invite is the other way out of
// pending and is handled by Submit.
func (s *ApplicationService) RespondInvite(ctx context.Context, studentID, inviteID string, accept bool) (*Invite, error) {
	invite, err := s.store.FindInviteByID(ctx, inviteID)
	if err != nil {
		return nil, err
	}
	if invite == nil {
		return nil, &NotFoundError{Resource: "invite"}
	}
	if invite.StudentID != studentID {
		return nil, &AuthorizationError{Message: "This invitation was sent to another student"}
	}
	if invite.Status != InviteStatusPending {
		return nil, &ConflictError{
			Message:    fmt.Sprintf("This invitation has already been %s", invite.Status),
			ExistingID: invite.ID,
			Status:     invite.Status,
		}
	}

	status := InviteStatusDeclined
	if accept {
		status = InviteStatusAccepted
	}
	updated, err := s.store.UpdateInviteStatus(ctx, inviteID, status, "")
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, &ConflictError{
			Message:    "This invitation has already been responded to",
			ExistingID: inviteID,
			Status:     invite.Status,
		}
	}

	if accept {
		go s.notifyInviteAccepted(updated)
	}
	return updated, nil
}

// ListInvitesForStudent returns invitations sent to the student.
func (s *ApplicationService) ListInvitesForStudent(ctx context.Context, studentID string) ([]*Invite, error) {
	return s.store.FindInvitesByStudent(ctx, studentID)
}

// ListInvitesForPartner returns invitations the partner has sent.
func (s *ApplicationService) ListInvitesForPartner(ctx context.Context, partnerID string) ([]*Invite, error) {
	return s.store.FindInvitesByPartner(ctx, partnerID)
}

// SignNDA records the student's signature for a listing's NDA.
func (s *ApplicationService) SignNDA(ctx context.Context, studentID, listingID, signatureName string) (*NDASignature, error) {
	if listingID == "" {
		return nil, &ValidationError{Field: "listing_id", Message: "A listing id is required"}
	}
	if len(signatureName) < 2 {
		return nil, &ValidationError{Field: "signature_name", Message: "A full legal name is required"}
	}
	signed, err := s.store.HasSignedNDA(ctx, studentID, listingID)
	if err != nil {
		return nil, err
	}
	if signed {
		return nil, &ConflictError{Message: "You have already signed the NDA for this project"}
	}

	sig := &NDASignature{
		ID:            uuid.NewString(),
		StudentID:     studentID,
		ListingID:     listingID,
		SignatureName: signatureName,
		SignedAt:      time.Now(),
	}
	if err := s.store.CreateNDASignature(ctx, sig); err != nil {
		return nil, err
	}
	return sig, nil
}

// HasSignedNDA reports whether the student signed the listing's NDA.
func (s *ApplicationService) HasSignedNDA(ctx context.Context, studentID, listingID string) (bool, error) {
	return s.store.HasSignedNDA(ctx, studentID, listingID)
}

const fanOutTimeout = 30 * time.Second

// notifySubmitted queues the student confirmation and the listing owner's
// new-application alert. Runs off the request path; every lookup failure
// degrades the notification instead of dropping it where a recipient is
// still known.
func (s *ApplicationService) notifySubmitted(app *Application, listing *marketplace.ListingView) {
	ctx, cancel := context.WithTimeout(context.Background(), fanOutTimeout)
	defer cancel()

	if listing == nil {
		fetched, err := s.market.ShowListing(ctx, app.ListingID)
		if err != nil {
			log.Printf("[NOTIFY] listing lookup failed for %s, sending reduced-fidelity notifications: %v", app.ListingID, err)
		} else {
			listing = fetched
		}
	}
	title := "this project"
	if listing != nil && listing.Title != "" {
		title = listing.Title
	}

	studentName, studentEmail := "there", ""
	if student, err := s.market.ShowUser(ctx, app.StudentID); err != nil {
		log.Printf("[NOTIFY] student lookup failed for %s, sending in-app only: %v", app.StudentID, err)
	} else {
		studentName, studentEmail = student.DisplayName, student.Email
	}

	s.notifier.Enqueue(notification.Job{
		Type:           notification.TypeApplicationReceived,
		RecipientID:    app.StudentID,
		RecipientEmail: studentEmail,
		Data: map[string]string{
			"projectTitle": title,
			"studentName":  studentName,
		},
	})

	if listing == nil || listing.AuthorID == "" {
		log.Printf("[NOTIFY] cannot resolve owner of listing %s, skipping new-application alert for application %s", app.ListingID, app.ID)
		return
	}
	partnerName, partnerEmail := "there", ""
	if partner, err := s.market.ShowUser(ctx, listing.AuthorID); err != nil {
		log.Printf("[NOTIFY] partner lookup failed for %s, sending in-app only: %v", listing.AuthorID, err)
	} else {
		partnerName, partnerEmail = partner.DisplayName, partner.Email
	}
	s.notifier.Enqueue(notification.Job{
		Type:           notification.TypeNewApplication,
		RecipientID:    listing.AuthorID,
		RecipientEmail: partnerEmail,
		Data: map[string]string{
			"projectTitle": title,
			"studentName":  studentName,
			"partnerName":  partnerName,
		},
	})
}

// notifyDecision queues the accept/decline notification to the student,
// resolving full transaction context when possible and falling back to a
// reduced-fidelity in-app message when it is not.
func (s *ApplicationService) notifyDecision(app *Application, typ string) {
	ctx, cancel := context.WithTimeout(context.Background(), fanOutTimeout)
	defer cancel()

	title, studentName, studentEmail := "your project application", "there", ""
	resolved := false
	if app.TransactionID != "" {
		tx, err := s.market.ShowTransaction(ctx, app.TransactionID, "listing", "customer", "provider")
		if err != nil {
			log.Printf("[NOTIFY] transaction lookup failed for %s, sending reduced-fidelity notification: %v", app.TransactionID, err)
		} else {
			resolved = true
			if tx.ListingTitle != "" {
				title = tx.ListingTitle
			}
			if tx.Customer != nil {
				studentName, studentEmail = tx.Customer.DisplayName, tx.Customer.Email
			}
		}
	}
	if !resolved {
		if student, err := s.market.ShowUser(ctx, app.StudentID); err == nil {
			studentName, studentEmail = student.DisplayName, student.Email
		}
	}

	s.notifier.Enqueue(notification.Job{
		Type:           typ,
		RecipientID:    app.StudentID,
		RecipientEmail: studentEmail,
		Data: map[string]string{
			"projectTitle":  title,
			"studentName":   studentName,
			"reviewerNotes": app.ReviewerNotes,
		},
	})
}

func (s *ApplicationService) notifyCompleted(app *Application) {
	ctx, cancel := context.WithTimeout(context.Background(), fanOutTimeout)
	defer cancel()

	title, studentName, studentEmail := "your project", "there", ""
	if tx, err := s.market.ShowTransaction(ctx, app.TransactionID, "listing", "customer"); err != nil {
		log.Printf("[NOTIFY] transaction lookup failed for %s, sending reduced-fidelity notification: %v", app.TransactionID, err)
	} else {
		if tx.ListingTitle != "" {
			title = tx.ListingTitle
		}
		if tx.Customer != nil {
			studentName, studentEmail = tx.Customer.DisplayName, tx.Customer.Email
		}
	}

	s.notifier.Enqueue(notification.Job{
		Type:           notification.TypeProjectCompleted,
		RecipientID:    app.StudentID,
		RecipientEmail: studentEmail,
		Data: map[string]string{
			"projectTitle": title,
			"studentName":  studentName,
		},
	})
}

func (s *ApplicationService) notifyInvited(invite *Invite) {
	ctx, cancel := context.WithTimeout(context.Background(), fanOutTimeout)
	defer cancel()

	studentName, studentEmail := "there", ""
	if student, err := s.market.ShowUser(ctx, invite.StudentID); err != nil {
		log.Printf("[NOTIFY] student lookup failed for %s, sending in-app only: %v", invite.StudentID, err)
	} else {
		studentName, studentEmail = student.DisplayName, student.Email
	}
	partnerName := "A corporate partner"
	if partner, err := s.market.ShowUser(ctx, invite.CorporatePartnerID); err == nil && partner.DisplayName != "" {
		partnerName = partner.DisplayName
	}

	s.notifier.Enqueue(notification.Job{
		Type:           notification.TypeInviteReceived,
		RecipientID:    invite.StudentID,
		RecipientEmail: studentEmail,
		Data: map[string]string{
			"projectTitle": invite.ProjectTitle,
			"studentName":  studentName,
			"partnerName":  partnerName,
			"message":      invite.Message,
		},
	})
}

func (s *ApplicationService) notifyInviteAccepted(invite *Invite) {
	ctx, cancel := context.WithTimeout(context.Background(), fanOutTimeout)
	defer cancel()

	partnerName, partnerEmail := "there", ""
	if partner, err := s.market.ShowUser(ctx, invite.CorporatePartnerID); err != nil {
		log.Printf("[NOTIFY] partner lookup failed for %s, sending in-app only: %v", invite.CorporatePartnerID, err)
	} else {
		partnerName, partnerEmail = partner.DisplayName, partner.Email
	}
	studentName := "The student"
	if student, err := s.market.ShowUser(ctx, invite.StudentID); err == nil && student.DisplayName != "" {
		studentName = student.DisplayName
	}

	s.notifier.Enqueue(notification.Job{
		Type:           notification.TypeStudentAcceptedInvite,
		RecipientID:    invite.CorporatePartnerID,
		RecipientEmail: partnerEmail,
		Data: map[string]string{
			"projectTitle": invite.ProjectTitle,
			"studentName":  studentName,
			"partnerName":  partnerName,
		},
	})
}
