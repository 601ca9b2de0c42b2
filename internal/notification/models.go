package notification

import (
	"time"
)

// Notification types. Each maps to a subject/body template in templates.go.
const (
	TypeApplicationReceived  = "application-received"
	TypeApplicationAccepted  = "application-accepted"
	TypeApplicationDeclined  = "application-declined"
	TypeProjectCompleted     = "project-completed"
	TypeInviteReceived       = "invite-received"
	TypeNewApplication       = "new-application"
	TypeAssessmentReceived   = "assessment-received"
	TypeStudentAcceptedInvite = "student-accepted-invite"
	TypeAdminMessage         = "admin-message"
	TypeNewMessage           = "new-message"
)

// Notification is a persisted in-app message for one recipient. The record is
// the durability guarantee; email delivery is best-effort on top of it.
type Notification struct {
	ID          string            `bson:"_id" json:"id"`
	RecipientID string            `bson:"recipient_id" json:"recipient_id"`
	Type        string            `bson:"type" json:"type"`
	Subject     string            `bson:"subject" json:"subject"`
	Content     string            `bson:"content" json:"content"`
	Data        map[string]string `bson:"data,omitempty" json:"data,omitempty"`
	Read        bool              `bson:"read" json:"read"`
	ReadAt      *time.Time        `bson:"read_at,omitempty" json:"read_at,omitempty"`
	CreatedAt   time.Time         `bson:"created_at" json:"created_at"`
}
