package email

import (
	"context"
	"strconv"

	sendinblue "github.com/sendinblue/APIv3-go-library/lib"
)

// Mailer is the interface email services can implement
type Mailer interface {
	SendEmail(ctx context.Context, mail *Email) error
}

// Email is a struct that contains information to send an email
type Email struct {
	ReceiverName    string
	ReceiverAddress string
	Template        string
	Parameters      map[string]interface{}
}

// SendInBlueService is an implementation of Mailer
type SendInBlueService struct {
	mailer *sendinblue.APIClient
}

// ReplyToName the reply to name for all emails
const ReplyToName = "FreelanceFlow"

// ReplyToEmail the reply to email for all emails
const ReplyToEmail = "hello@freelanceflow.app"

// NewSendInBlueService constructs a new SendInBlueService
func NewSendInBlueService(apiKey string) *SendInBlueService {
	cfg := sendinblue.NewConfiguration()
	cfg.AddDefaultHeader("api-key", apiKey)

	return &SendInBlueService{mailer: sendinblue.NewAPIClient(cfg)}
}

// SendEmail sends a transactional email based on a template
func (s *SendInBlueService) SendEmail(ctx context.Context, mail *Email) error {
	templateID, err := strconv.ParseInt(mail.Template, 10, 64)
	if err != nil {
		return err
	}

	params := interface{}(mail.Parameters)

	_, _, err = s.mailer.TransactionalEmailsApi.SendTransacEmail(ctx, sendinblue.SendSmtpEmail{
		TemplateId: templateID,
		To: []sendinblue.SendSmtpEmailTo{
			{
				Email: mail.ReceiverAddress,
				Name:  mail.ReceiverName,
			},
		},
		ReplyTo: &sendinblue.SendSmtpEmailReplyTo{
			Name:  ReplyToName,
			Email: ReplyToEmail,
		},
		Params: &params,
	})

	return err
}

// MockMailer records sent emails
type MockMailer struct {
	Sent []*Email
	Err  error
}

// SendEmail records the email
func (m *MockMailer) SendEmail(_ context.Context, mail *Email) error {
	if m.Err != nil {
		return m.Err
	}

	m.Sent = append(m.Sent, mail)
	return nil
}
