package service

import (
	"context"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// EmailService handles sending notification emails via Amazon SES
type EmailService struct {
	client     *sesv2.Client
	fromEmail  string
	appBaseURL string
	enabled    bool
}

// NewEmailService creates a new email service. An empty fromEmail
// yields a disabled service that silently skips all sends, so the app
// runs fine without SES configured.
func NewEmailService(awsRegion, fromEmail, appBaseURL string) (*EmailService, error) {
	if fromEmail == "" {
		log.Println("Email service disabled: SES_FROM_EMAIL not configured")
		return &EmailService{enabled: false}, nil
	}

	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(awsRegion),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	log.Printf("Email service enabled: from=%s, region=%s", fromEmail, awsRegion)

	return &EmailService{
		client:     sesv2.NewFromConfig(cfg),
		fromEmail:  fromEmail,
		appBaseURL: appBaseURL,
		enabled:    true,
	}, nil
}

// IsEnabled returns whether the email service is enabled
func (s *EmailService) IsEnabled() bool {
	return s.enabled
}

// SendVerificationPendingEmail tells a parent a proof is waiting for review
func (s *EmailService) SendVerificationPendingEmail(ctx context.Context, toEmail, childName, questName string) error {
	subject := fmt.Sprintf("%s needs your review on QuestKeeper", childName)
	htmlBody := fmt.Sprintf(`
<html><body style="font-family: Arial, sans-serif; color: #333;">
	<h2>A quest is waiting for you</h2>
	<p><strong>%s</strong> submitted a photo for the quest <strong>%s</strong> and it needs your review.</p>
	<p><a href="%s/parent/review" style="display:inline-block;padding:12px 30px;background:#4a90e2;color:#fff;text-decoration:none;border-radius:5px;">Review now</a></p>
	<p style="font-size:12px;color:#666;">You can turn these emails off in your family settings.</p>
</body></html>`, childName, questName, s.appBaseURL)
	textBody := fmt.Sprintf("%s submitted a photo for the quest %q and it needs your review. Open %s/parent/review to take a look.",
		childName, questName, s.appBaseURL)

	return s.sendEmail(ctx, toEmail, subject, htmlBody, textBody)
}

// SendQuestCompletedEmail tells a parent a quest was auto-approved and paid out
func (s *EmailService) SendQuestCompletedEmail(ctx context.Context, toEmail, childName, questName string, tokens int) error {
	subject := fmt.Sprintf("%s completed a quest!", childName)
	htmlBody := fmt.Sprintf(`
<html><body style="font-family: Arial, sans-serif; color: #333;">
	<h2>Quest complete</h2>
	<p><strong>%s</strong> finished the quest <strong>%s</strong> and earned <strong>%d coins</strong>.</p>
	<p style="font-size:12px;color:#666;">You can turn these emails off in your family settings.</p>
</body></html>`, childName, questName, tokens)
	textBody := fmt.Sprintf("%s finished the quest %q and earned %d coins.", childName, questName, tokens)

	return s.sendEmail(ctx, toEmail, subject, htmlBody, textBody)
}

// SendChildLinkedEmail tells a parent their invite code was claimed
func (s *EmailService) SendChildLinkedEmail(ctx context.Context, toEmail, childName string) error {
	subject := fmt.Sprintf("%s joined your family on QuestKeeper", childName)
	htmlBody := fmt.Sprintf(`
<html><body style="font-family: Arial, sans-serif; color: #333;">
	<h2>Your family grew</h2>
	<p><strong>%s</strong> used your invite code and is now linked to your account.</p>
	<p><a href="%s/parent" style="display:inline-block;padding:12px 30px;background:#4a90e2;color:#fff;text-decoration:none;border-radius:5px;">Open your dashboard</a></p>
</body></html>`, childName, s.appBaseURL)
	textBody := fmt.Sprintf("%s used your invite code and is now linked to your account.", childName)

	return s.sendEmail(ctx, toEmail, subject, htmlBody, textBody)
}

// sendEmail sends an email using Amazon SES
func (s *EmailService) sendEmail(ctx context.Context, toEmail, subject, htmlBody, textBody string) error {
	if !s.enabled {
		log.Printf("Skipping email send (service disabled): %s to %s", subject, toEmail)
		return nil
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.fromEmail),
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

	if _, err := s.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", toEmail, err)
	}

	log.Printf("Email sent: to=%s, subject=%s", toEmail, subject)
	return nil
}
