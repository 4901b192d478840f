package mailer

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/charmbracelet/log"
	mail "github.com/xhit/go-simple-mail/v2"

	"github.com/Windi-Fikriyansyah/freelancehub/internal/config"
	"github.com/Windi-Fikriyansyah/freelancehub/internal/models"
)

//go:embed templates/*.html
var templatesFS embed.FS

var templates = template.Must(template.New("").ParseFS(templatesFS, "templates/*.html"))

// Welcome is the data rendered into the welcome email.
type Welcome struct {
	Name       string
	Username   string
	RoleLabel  string
	ProfileURL string
}

// SMTPMailer sends transactional mail through an SMTP relay.
type SMTPMailer struct {
	cfg     config.SMTPConfig
	baseURL string
}

func New(cfg config.SMTPConfig, baseURL string) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, baseURL: baseURL}
}

// SendWelcome greets a freshly registered user. It is a no-op when SMTP is disabled.
func (m *SMTPMailer) SendWelcome(u *models.User) error {
	if !m.cfg.Enabled {
		log.Debug("smtp disabled, skipping welcome email", "user", u.Username)
		return nil
	}
	if u.Email == "" {
		return nil
	}

	body, err := RenderWelcome(Welcome{
		Name:       u.FullName(),
		Username:   u.Username,
		RoleLabel:  u.Role().Label(),
		ProfileURL: fmt.Sprintf("%s/users/%s", m.baseURL, u.Username),
	})
	if err != nil {
		return fmt.Errorf("failed to render welcome email: %w", err)
	}

	return m.send(u.Email, "Welcome to Freelancehub", body)
}

func RenderWelcome(w Welcome) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "welcome.html", w); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (m *SMTPMailer) send(to, subject, body string) error {
	server := mail.NewSMTPClient()
	server.Host = m.cfg.Host
	server.Port = m.cfg.Port
	server.Username = m.cfg.Username
	server.Password = m.cfg.Password
	if m.cfg.UseTLS {
		server.Encryption = mail.EncryptionSTARTTLS
	} else {
		server.Encryption = mail.EncryptionNone
	}
	server.KeepAlive = false
	server.ConnectTimeout = 10 * time.Second
	server.SendTimeout = 10 * time.Second

	client, err := server.Connect()
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Warn("failed to close SMTP client", "error", err)
		}
	}()

	email := mail.NewMSG()
	email.SetFrom(fmt.Sprintf("%s <%s>", m.cfg.FromName, m.cfg.FromEmail))
	email.AddTo(to)
	email.SetSubject(subject)
	email.SetBody(mail.TextHTML, body)

	if email.Error != nil {
		return fmt.Errorf("failed to build email: %w", email.Error)
	}
	if err := email.Send(client); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	log.Info("email sent", "to", to, "subject", subject)
	return nil
}
