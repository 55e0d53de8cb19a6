// Package email sends officer notification e-mails.
//
// This package defines an EmailService interface with an SMTP
// implementation that works with Mailhog in development and any standard
// relay in production.
package email

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// EmailService sends transactional e-mails to officers.
//
// All methods are context-aware for timeout and cancellation support.
type EmailService interface {
	// SendReportNotification sends a new-report notice or a review reminder.
	SendReportNotification(ctx context.Context, to string, n ReportNotification) error
}

// =============================================================================
// Email Data Types
// =============================================================================

// Email represents a single email message.
type Email struct {
	To       string // Recipient email address
	Subject  string // Email subject line
	HTMLBody string // HTML content of the email
	TextBody string // Plain text fallback content
}

// ReportNotification is the data rendered into a notification e-mail.
type ReportNotification struct {
	Reminder                bool
	OfficerName             string
	ReportID                uuid.UUID
	SocietyName             string
	VerificationProbability float64
	AITrustScore            float64
	SubmissionDate          time.Time
	ExpiresAt               time.Time
	DaysUntilExpiry         int
}

// =============================================================================
// Configuration Types
// =============================================================================

// SMTPConfig holds SMTP server configuration.
type SMTPConfig struct {
	Host     string // SMTP server hostname (e.g., "localhost" for Mailhog)
	Port     int    // SMTP server port (e.g., 1025 for Mailhog)
	Username string // SMTP authentication username (empty for Mailhog)
	Password string // SMTP authentication password (empty for Mailhog)
	From     string // Default sender email address
	FromName string // Default sender display name

	// Timeout bounds one delivery from dial to QUIT. Default: 30 seconds
	Timeout time.Duration
}

// =============================================================================
// Constants
// =============================================================================

const (
	// DefaultFromEmail is used when SMTPConfig.From is empty.
	DefaultFromEmail = "noreply@bwg.local"

	// DefaultFromName is used when SMTPConfig.FromName is empty.
	DefaultFromName = "BWG Compliance"

	// DefaultSMTPTimeout is used when SMTPConfig.Timeout is not positive.
	DefaultSMTPTimeout = 30 * time.Second
)
