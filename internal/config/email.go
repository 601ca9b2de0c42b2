package config

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
	"go.uber.org/fx"
	"golang.org/x/time/rate"
	"gopkg.in/gomail.v2"
)

// Delivery modes. Console and disabled make no network calls and always
// report success so callers never branch on whether email is configured.
const (
	EmailModeResend   = "resend"
	EmailModeSMTP     = "smtp"
	EmailModeConsole  = "console"
	EmailModeDisabled = "disabled"
)

type EmailConfig struct {
	Mode           string
	From           string
	ResendAPIKey   string
	SMTPHost       string
	SMTPPort       int
	SMTPUser       string
	SMTPPassword   string
	SendsPerSecond float64
}

func NewEmailConfig() *EmailConfig {
	cfg := &EmailConfig{
		Mode:           strings.ToLower(os.Getenv("EMAIL_MODE")),
		From:           os.Getenv("FROM_EMAIL"),
		ResendAPIKey:   os.Getenv("RESEND_API_KEY"),
		SMTPHost:       os.Getenv("SMTP_HOST"),
		SMTPUser:       os.Getenv("SMTP_USER"),
		SMTPPassword:   os.Getenv("SMTP_PASSWORD"),
		SendsPerSecond: 5,
	}
	if port := os.Getenv("SMTP_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			log.Fatal("Invalid SMTP_PORT:", port)
		}
		cfg.SMTPPort = p
	}
	if rps := os.Getenv("EMAIL_SENDS_PER_SECOND"); rps != "" {
		r, err := strconv.ParseFloat(rps, 64)
		if err != nil || r <= 0 {
			log.Fatal("Invalid EMAIL_SENDS_PER_SECOND:", rps)
		}
		cfg.SendsPerSecond = r
	}
	if cfg.Mode == "" {
		cfg.Mode = EmailModeResend
	}
	// Missing credentials degrade to console mode instead of failing startup.
	switch cfg.Mode {
	case EmailModeResend:
		if cfg.ResendAPIKey == "" || cfg.From == "" {
			log.Println("Resend credentials not set, falling back to console email mode")
			cfg.Mode = EmailModeConsole
		}
	case EmailModeSMTP:
		if cfg.SMTPHost == "" || cfg.SMTPPort == 0 || cfg.From == "" {
			log.Println("SMTP settings incomplete, falling back to console email mode")
			cfg.Mode = EmailModeConsole
		}
	case EmailModeConsole, EmailModeDisabled:
	default:
		log.Fatal("Unknown EMAIL_MODE:", cfg.Mode)
	}
	return cfg
}

type EmailMessage struct {
	To      string
	Subject string
	Text    string
	HTML    string
	Tags    []string
}

// SendResult is the only thing SendEmail ever hands back. Provider failures
// are folded into Success=false; nothing is thrown at the caller.
type SendResult struct {
	Success   bool
	Mode      string
	MessageID string
	Error     string
}

type EmailService struct {
	Config  *EmailConfig
	resend  *resend.Client
	dialer  *gomail.Dialer
	limiter *rate.Limiter
}

func NewEmailService(lc fx.Lifecycle, config *EmailConfig) *EmailService {
	service := &EmailService{
		Config:  config,
		limiter: rate.NewLimiter(rate.Limit(config.SendsPerSecond), 1),
	}
	switch config.Mode {
	case EmailModeResend:
		service.resend = resend.NewClient(config.ResendAPIKey)
	case EmailModeSMTP:
		service.dialer = gomail.NewDialer(config.SMTPHost, config.SMTPPort, config.SMTPUser, config.SMTPPassword)
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Println("Email service initialized in", config.Mode, "mode")
			return nil
		},
	})
	return service
}

func (e *EmailService) SendEmail(ctx context.Context, msg EmailMessage) SendResult {
	if msg.To == "" {
		return SendResult{Success: false, Mode: e.Config.Mode, Error: "missing recipient address"}
	}
	if msg.HTML == "" {
		msg.HTML = TextToHTML(msg.Text)
	}

	switch e.Config.Mode {
	case EmailModeDisabled:
		return SendResult{Success: true, Mode: EmailModeDisabled}
	case EmailModeConsole:
		log.Printf("[EMAIL console] to=%s subject=%q\n%s", msg.To, msg.Subject, msg.Text)
		return SendResult{Success: true, Mode: EmailModeConsole}
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return SendResult{Success: false, Mode: e.Config.Mode, Error: err.Error()}
	}

	id, err := e.sendOnce(ctx, msg)
	if err != nil {
		// One retry covers the common transient provider hiccup. Anything
		// past that is the dispatcher's problem to log and move on from.
		time.Sleep(500 * time.Millisecond)
		id, err = e.sendOnce(ctx, msg)
	}
	if err != nil {
		return SendResult{Success: false, Mode: e.Config.Mode, Error: err.Error()}
	}
	log.Println("Email sent successfully to", msg.To)
	return SendResult{Success: true, Mode: e.Config.Mode, MessageID: id}
}

func (e *EmailService) sendOnce(ctx context.Context, msg EmailMessage) (string, error) {
	switch e.Config.Mode {
	case EmailModeResend:
		params := &resend.SendEmailRequest{
			From:    e.Config.From,
			To:      []string{msg.To},
			Subject: msg.Subject,
			Text:    msg.Text,
			Html:    msg.HTML,
		}
		for _, tag := range msg.Tags {
			params.Tags = append(params.Tags, resend.Tag{Name: "category", Value: tag})
		}
		sent, err := e.resend.Emails.SendWithContext(ctx, params)
		if err != nil {
			return "", fmt.Errorf("resend send failed: %w", err)
		}
		return sent.Id, nil
	case EmailModeSMTP:
		m := gomail.NewMessage()
		m.SetHeader("From", e.Config.From)
		m.SetHeader("To", msg.To)
		m.SetHeader("Subject", msg.Subject)
		m.SetBody("text/plain", msg.Text)
		m.AddAlternative("text/html", msg.HTML)
		if err := e.dialer.DialAndSend(m); err != nil {
			return "", fmt.Errorf("smtp send failed: %w", err)
		}
		return "", nil
	}
	return "", fmt.Errorf("no provider for mode %s", e.Config.Mode)
}

// TextToHTML converts a plain text body into simple HTML: blank lines become
// breaks, lines ending in a colon become bold headings, and "- " items are
// indented.
func TextToHTML(text string) string {
	var b strings.Builder
	b.WriteString("<div>")
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			b.WriteString("<br>")
		case strings.HasSuffix(trimmed, ":"):
			b.WriteString("<p><strong>" + trimmed + "</strong></p>")
		case strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* "):
			b.WriteString("<p style=\"margin-left:16px\">" + trimmed[2:] + "</p>")
		default:
			b.WriteString("<p>" + trimmed + "</p>")
		}
	}
	b.WriteString("</div>")
	return b.String()
}
