package notification

import (
	"strings"
	"testing"
)

func TestRenderSubstitutesPlaceholders(t *testing.T) {
	subject, body, ok := Render(TypeApplicationReceived, map[string]string{
		"projectTitle": "Market Research Sprint",
		"studentName":  "Dana",
	})
	if !ok {
		t.Fatal("expected known type to render")
	}
	if subject != "Application received for Market Research Sprint" {
		t.Fatalf("unexpected subject: %s", subject)
	}
	if !strings.Contains(body, "Hi Dana,") {
		t.Fatalf("body missing student name: %s", body)
	}
}

func TestRenderLeavesMissingPlaceholderVerbatim(t *testing.T) {
	subject, body, ok := Render(TypeApplicationAccepted, map[string]string{
		"studentName": "Dana",
	})
	if !ok {
		t.Fatal("expected known type to render")
	}
	if !strings.Contains(subject, "{projectTitle}") {
		t.Fatalf("expected unresolved placeholder to stay verbatim, got: %s", subject)
	}
	if !strings.Contains(body, "{reviewerNotes}") {
		t.Fatalf("expected unresolved placeholder to stay verbatim, got: %s", body)
	}
}

func TestRenderUnknownType(t *testing.T) {
	_, _, ok := Render("password-reset", map[string]string{"x": "y"})
	if ok {
		t.Fatal("expected unknown type to report not ok")
	}
}

func TestKnownType(t *testing.T) {
	for _, typ := range []string{
		TypeApplicationReceived, TypeApplicationAccepted, TypeApplicationDeclined,
		TypeProjectCompleted, TypeInviteReceived, TypeNewApplication,
		TypeAssessmentReceived, TypeStudentAcceptedInvite, TypeAdminMessage, TypeNewMessage,
	} {
		if !KnownType(typ) {
			t.Fatalf("expected %s to have a template", typ)
		}
	}
	if KnownType("nonsense") {
		t.Fatal("expected nonsense type to be unknown")
	}
}
