package service

import (
	"context"
	"fmt"
	"log"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// sesSender is the part of the SES client the email service uses
type sesSender interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// EmailConfig holds the settings for outgoing mail
type EmailConfig struct {
	AWSRegion  string
	FromEmail  string
	FromName   string
	AppBaseURL string
	Debug      bool
}

// EmailService handles sending emails via Amazon SES
type EmailService struct {
	client     sesSender
	fromEmail  string
	fromName   string
	appBaseURL string
	enabled    bool
	debug      bool
}

// NewEmailService creates a new email service. Without a sender address the
// service is disabled and every send is skipped.
func NewEmailService(ctx context.Context, cfg EmailConfig) (*EmailService, error) {
	if cfg.FromEmail == "" {
		log.Println("Email service disabled: SES_FROM_EMAIL not configured")
		return &EmailService{appBaseURL: cfg.AppBaseURL, debug: cfg.Debug}, nil
	}

	if cfg.Debug {
		log.Printf("[DEBUG] Initializing email service with AWS SES: region=%s from=%s", cfg.AWSRegion, cfg.FromEmail)
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	log.Printf("Email service enabled: from=%s, region=%s", cfg.FromEmail, cfg.AWSRegion)
	return newEmailServiceWithClient(sesv2.NewFromConfig(awsCfg), cfg), nil
}

func newEmailServiceWithClient(client sesSender, cfg EmailConfig) *EmailService {
	return &EmailService{
		client:     client,
		fromEmail:  cfg.FromEmail,
		fromName:   cfg.FromName,
		appBaseURL: cfg.AppBaseURL,
		enabled:    true,
		debug:      cfg.Debug,
	}
}

// IsEnabled returns whether the email service is enabled
func (s *EmailService) IsEnabled() bool {
	return s.enabled
}

// ResetLink builds the link a user follows to choose a new password
func (s *EmailService) ResetLink(token string) string {
	return fmt.Sprintf("%s/reset-password?token=%s", s.appBaseURL, url.QueryEscape(token))
}

// SendPasswordResetEmail sends a password reset email with a reset link
func (s *EmailService) SendPasswordResetEmail(ctx context.Context, toEmail, resetToken string) error {
	if !s.enabled {
		log.Printf("Skipping email send (service disabled): password reset to %s", toEmail)
		return nil
	}

	resetLink := s.ResetLink(resetToken)
	if s.debug {
		log.Printf("[DEBUG] Reset link generated for %s", toEmail)
	}

	subject := "Reset your Cards password"
	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
	<p>You requested a password reset for your Cards account.</p>
	<p><a href="%s">Reset your password</a></p>
	<p style="word-break: break-all; font-size: 12px; color: #666;">%s</p>
	<p>This link will expire in 1 hour. If you did not request this, you can ignore this email.</p>
</body>
</html>
`, resetLink, resetLink)

	textBody := fmt.Sprintf(`You requested a password reset for your Cards account.

Reset link: %s

This link will expire in 1 hour.
If you did not request this, you can ignore this email.
`, resetLink)

	return s.sendEmail(ctx, toEmail, subject, htmlBody, textBody)
}

func (s *EmailService) sendEmail(ctx context.Context, toEmail, subject, htmlBody, textBody string) error {
	fromAddress := s.fromEmail
	if s.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Html: &types.Content{
						Data:    aws.String(htmlBody),
						Charset: aws.String("UTF-8"),
					},
					Text: &types.Content{
						Data:    aws.String(textBody),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	if s.debug && result.MessageId != nil {
		log.Printf("[DEBUG] Email sent: message_id=%s", *result.MessageId)
	}
	log.Printf("Email sent successfully to %s", toEmail)
	return nil
}
