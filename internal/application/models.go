package application

import "time"

// Application statuses. Monotonic: once accepted or declined, never pending
// again.
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusDeclined = "declined"
)

// Invite statuses.
const (
	InviteStatusPending  = "pending"
	InviteStatusApplied  = "applied"
	InviteStatusAccepted = "accepted"
	InviteStatusDeclined = "declined"
)

// Application is the locally-owned record of a student applying to a project
// listing. TransactionID links it to the marketplace transaction and stays
// empty when the marketplace was unreachable at submission time; the local
// record is the system of record in that case.
type Application struct {
	ID                 string    `bson:"_id" json:"id"`
	StudentID          string    `bson:"student_id" json:"student_id"`
	ListingID          string    `bson:"listing_id" json:"listing_id"`
	TransactionID      string    `bson:"transaction_id,omitempty" json:"transaction_id,omitempty"`
	InviteID           string    `bson:"invite_id,omitempty" json:"invite_id,omitempty"`
	CoverLetter        string    `bson:"cover_letter" json:"cover_letter"`
	InterestReason     string    `bson:"interest_reason" json:"interest_reason"`
	RelevantCoursework string    `bson:"relevant_coursework" json:"relevant_coursework"`
	ReferencesText     string    `bson:"references" json:"references"`
	GPA                string    `bson:"gpa,omitempty" json:"gpa,omitempty"`
	Skills             []string  `bson:"skills" json:"skills"`
	AvailabilityDate   string    `bson:"availability_date,omitempty" json:"availability_date,omitempty"`
	HoursPerWeek       int       `bson:"hours_per_week" json:"hours_per_week"`
	Status             string    `bson:"status" json:"status"`
	SubmittedAt        time.Time `bson:"submitted_at" json:"submitted_at"`
	ReviewerNotes      string    `bson:"reviewer_notes,omitempty" json:"reviewer_notes,omitempty"`
}

// Invite is a corporate-partner-initiated solicitation to a student.
type Invite struct {
	ID                 string    `bson:"_id" json:"id"`
	CorporatePartnerID string    `bson:"corporate_partner_id" json:"corporate_partner_id"`
	StudentID          string    `bson:"student_id" json:"student_id"`
	ListingID          string    `bson:"listing_id" json:"listing_id"`
	ProjectTitle       string    `bson:"project_title" json:"project_title"`
	Message            string    `bson:"message,omitempty" json:"message,omitempty"`
	Status             string    `bson:"status" json:"status"`
	TransactionID      string    `bson:"transaction_id,omitempty" json:"transaction_id,omitempty"`
	CreatedAt          time.Time `bson:"created_at" json:"created_at"`
}

// NDASignature records that a student signed the NDA attached to a listing.
type NDASignature struct {
	ID            string    `bson:"_id" json:"id"`
	StudentID     string    `bson:"student_id" json:"student_id"`
	ListingID     string    `bson:"listing_id" json:"listing_id"`
	SignatureName string    `bson:"signature_name" json:"signature_name"`
	SignedAt      time.Time `bson:"signed_at" json:"signed_at"`
}
