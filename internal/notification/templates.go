package notification

import "strings"

type template struct {
	Subject string
	Body    string
}

// templates maps every known notification type to its subject/body pair.
// Placeholders use {name} and are filled from the dispatch data payload.
var templates = map[string]template{
	TypeApplicationReceived: {
		Subject: "Application received for {projectTitle}",
		Body: "Hi {studentName},\n\n" +
			"Your application for {projectTitle} has been received.\n\n" +
			"What happens next:\n" +
			"- The project owner reviews your application\n" +
			"- You will be notified when a decision is made\n\n" +
			"Good luck!",
	},
	TypeNewApplication: {
		Subject: "New application for {projectTitle}",
		Body: "Hi {partnerName},\n\n" +
			"{studentName} has applied to {projectTitle}.\n\n" +
			"Log in to review the application and respond.",
	},
	TypeApplicationAccepted: {
		Subject: "Your application for {projectTitle} was accepted",
		Body: "Hi {studentName},\n\n" +
			"Congratulations! Your application for {projectTitle} has been accepted.\n\n" +
			"Notes from the project owner:\n" +
			"{reviewerNotes}",
	},
	TypeApplicationDeclined: {
		Subject: "Update on your application for {projectTitle}",
		Body: "Hi {studentName},\n\n" +
			"Your application for {projectTitle} was not selected this time.\n\n" +
			"Keep applying - new projects are posted regularly.",
	},
	TypeProjectCompleted: {
		Subject: "{projectTitle} has been marked complete",
		Body: "Hi {studentName},\n\n" +
			"{projectTitle} has been marked as completed.\n\n" +
			"Thank you for your work on this project.",
	},
	TypeInviteReceived: {
		Subject: "You have been invited to {projectTitle}",
		Body: "Hi {studentName},\n\n" +
			"{partnerName} has invited you to apply to {projectTitle}.\n\n" +
			"Message from {partnerName}:\n" +
			"{message}",
	},
	TypeStudentAcceptedInvite: {
		Subject: "{studentName} accepted your invitation",
		Body: "Hi {partnerName},\n\n" +
			"{studentName} has accepted your invitation to {projectTitle}.",
	},
	TypeAssessmentReceived: {
		Subject: "New assessment for {projectTitle}",
		Body: "Hi {studentName},\n\n" +
			"You have received an assessment for your work on {projectTitle}.\n\n" +
			"Log in to view the feedback.",
	},
	TypeAdminMessage: {
		Subject: "{subject}",
		Body:    "{message}",
	},
	TypeNewMessage: {
		Subject: "New message about {projectTitle}",
		Body: "Hi {recipientName},\n\n" +
			"{senderName} sent you a message about {projectTitle}:\n\n" +
			"{message}",
	},
}

// Render resolves the templates for typ against data. Unknown placeholders are
// left verbatim so a missing field degrades the message instead of killing it.
// ok is false only when the type itself is not registered.
func Render(typ string, data map[string]string) (subject, body string, ok bool) {
	tmpl, ok := templates[typ]
	if !ok {
		return "", "", false
	}
	return substitute(tmpl.Subject, data), substitute(tmpl.Body, data), true
}

func substitute(text string, data map[string]string) string {
	for key, value := range data {
		text = strings.ReplaceAll(text, "{"+key+"}", value)
	}
	return text
}

// KnownType reports whether typ has a registered template.
func KnownType(typ string) bool {
	_, ok := templates[typ]
	return ok
}
