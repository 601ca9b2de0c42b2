package application

import (
	"context"
	"errors"
	"log"
	"net/http"

	"Campus2Career/pkg/middleware"

	"github.com/labstack/echo/v4"
)

// ApplicationHandler handles HTTP requests for applications, invites and NDAs.
type ApplicationHandler struct {
	service *ApplicationService
}

// NewApplicationHandler creates a new ApplicationHandler.
func NewApplicationHandler(service *ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{service: service}
}

func claimsFrom(c echo.Context) *middleware.JWTClaims {
	claims, ok := c.Get("user").(*middleware.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// writeError maps the service error taxonomy onto HTTP. Internal detail never
// reaches the caller; it is logged instead.
func writeError(c echo.Context, err error) error {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": validationErr.Message,
			"field": validationErr.Field,
		})
	}
	var conflictErr *ConflictError
	if errors.As(err, &conflictErr) {
		body := map[string]string{"error": conflictErr.Message}
		if conflictErr.ExistingID != "" {
			body["existing_id"] = conflictErr.ExistingID
		}
		if conflictErr.Status != "" {
			body["status"] = conflictErr.Status
		}
		return c.JSON(http.StatusConflict, body)
	}
	var authErr *AuthorizationError
	if errors.As(err, &authErr) {
		return c.JSON(http.StatusForbidden, map[string]string{"error": authErr.Message})
	}
	var notFoundErr *NotFoundError
	if errors.As(err, &notFoundErr) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": notFoundErr.Error()})
	}
	log.Println("Unexpected application error:", err)
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Something went wrong"})
}

// Submit handles a student submitting a new application.
func (h *ApplicationHandler) Submit(c echo.Context) error {
	claims := claimsFrom(c)
	if claims == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Missing user claims"})
	}
	var req SubmitRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	app, err := h.service.Submit(context.Background(), claims.UserID, &req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, app)
}

// ListMine returns the calling student's applications.
func (h *ApplicationHandler) ListMine(c echo.Context) error {
	claims := claimsFrom(c)
	if claims == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Missing user claims"})
	}
	apps, err := h.service.ListByStudent(context.Background(), claims.UserID)
	if err != nil {
		return writeError(c, err)
	}
	if apps == nil {
		apps = []*Application{}
	}
	return c.JSON(http.StatusOK, apps)
}

// ListForListing returns a listing's applications to its owner. Optional
// status query filters to pending/accepted/declined.
func (h *ApplicationHandler) ListForListing(c echo.Context) error {
	claims := claimsFrom(c)
	if claims == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Missing user claims"})
	}
	status := c.QueryParam("status")
	if status != "" && status != StatusPending && status != StatusAccepted && status != StatusDeclined {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid status filter"})
	}
	apps, err := h.service.ListByListing(context.Background(), claims.UserID, c.Param("id"), status)
	if err != nil {
		return writeError(c, err)
	}
	if apps == nil {
		apps = []*Application{}
	}
	return c.JSON(http.StatusOK, apps)
}

// DecisionRequest carries optional reviewer notes on accept/decline.
type DecisionRequest struct {
	ReviewerNotes string `json:"reviewer_notes"`
}

// Accept handles the listing owner accepting a pending application.
func (h *ApplicationHandler) Accept(c echo.Context) error {
	return h.decide(c, StatusAccepted)
}

// Decline handles the listing owner declining a pending application.
func (h *ApplicationHandler) Decline(c echo.Context) error {
	return h.decide(c, StatusDeclined)
}

func (h *ApplicationHandler) decide(c echo.Context, status string) error {
	claims := claimsFrom(c)
	if claims == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Missing user claims"})
	}
	var req DecisionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	var app *Application
	var err error
	if status == StatusAccepted {
		app, err = h.service.Accept(context.Background(), claims.UserID, c.Param("id"), req.ReviewerNotes)
	} else {
		app, err = h.service.Decline(context.Background(), claims.UserID, c.Param("id"), req.ReviewerNotes)
	}
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, app)
}

// Complete handles the listing owner marking a project's transaction
// completed.
func (h *ApplicationHandler) Complete(c echo.Context) error {
	claims := claimsFrom(c)
	if claims == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Missing user claims"})
	}
	app, err := h.service.CompleteProject(context.Background(), claims.UserID, c.Param("id"))
	if err != nil {
		var depErr *DependencyError
		if errors.As(err, &depErr) {
			log.Println("Marketplace completion failed:", depErr)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Could not complete the project right now"})
		}
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, app)
}

// CreateInvite handles a corporate partner inviting a student.
func (h *ApplicationHandler) CreateInvite(c echo.Context) error {
	claims := claimsFrom(c)
	if claims == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Missing user claims"})
	}
	var req InviteRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	invite, err := h.service.CreateInvite(context.Background(), claims.UserID, &req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, invite)
}

// ListInvites returns the caller's invites: sent ones for partners, received
// ones for students.
func (h *ApplicationHandler) ListInvites(c echo.Context) error {
	claims := claimsFrom(c)
	if claims == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Missing user claims"})
	}
	var invites []*Invite
	var err error
	if claims.Role == middleware.RolePartner {
		invites, err = h.service.ListInvitesForPartner(context.Background(), claims.UserID)
	} else {
		invites, err = h.service.ListInvitesForStudent(context.Background(), claims.UserID)
	}
	if err != nil {
		return writeError(c, err)
	}
	if invites == nil {
		invites = []*Invite{}
	}
	return c.JSON(http.StatusOK, invites)
}

// RespondInviteRequest carries the student's answer to an invitation.
type RespondInviteRequest struct {
	Response string `json:"response"`
}

// RespondInvite handles the invited student accepting or declining directly.
func (h *ApplicationHandler) RespondInvite(c echo.Context) error {
	claims := claimsFrom(c)
	if claims == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Missing user claims"})
	}
	var req RespondInviteRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if req.Response != "accept" && req.Response != "decline" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Response must be accept or decline"})
	}
	invite, err := h.service.RespondInvite(context.Background(), claims.UserID, c.Param("id"), req.Response == "accept")
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, invite)
}

// SignNDARequest carries an NDA signature for a listing.
type SignNDARequest struct {
	ListingID     string `json:"listing_id"`
	SignatureName string `json:"signature_name"`
}

// SignNDA records the calling student's NDA signature.
func (h *ApplicationHandler) SignNDA(c echo.Context) error {
	claims := claimsFrom(c)
	if claims == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Missing user claims"})
	}
	var req SignNDARequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	sig, err := h.service.SignNDA(context.Background(), claims.UserID, req.ListingID, req.SignatureName)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, sig)
}

// CheckNDA reports whether the calling student has signed a listing's NDA.
func (h *ApplicationHandler) CheckNDA(c echo.Context) error {
	claims := claimsFrom(c)
	if claims == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Missing user claims"})
	}
	signed, err := h.service.HasSignedNDA(context.Background(), claims.UserID, c.Param("listingId"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"signed": signed})
}
