package notify

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
)

// SMTPConfig holds connection parameters for the SMTP channel sink.
type SMTPConfig struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	FromAddr   string `json:"from_address"`
	Encryption string `json:"encryption"` // "none", "starttls", "ssl_tls"
}

// SMTPChannelSink is a PrimaryChannelSink delivering over SMTP via go-mail.
// It exists for deployments where the process is allowed to originate mail;
// the standard portal deployment composes the orchestrator without it.
type SMTPChannelSink struct {
	config SMTPConfig
}

// NewSMTPChannelSink creates an SMTP sink with the given configuration.
func NewSMTPChannelSink(config SMTPConfig) *SMTPChannelSink {
	return &SMTPChannelSink{config: config}
}

// Name returns the sink identifier.
func (s *SMTPChannelSink) Name() string { return "smtp" }

// Send delivers msg to its recipients using the configured SMTP server.
func (s *SMTPChannelSink) Send(ctx context.Context, msg Message) error {
	m := mail.NewMsg()
	if err := m.From(s.config.FromAddr); err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}
	for _, r := range msg.To {
		if err := m.To(r); err != nil {
			return fmt.Errorf("invalid recipient %q: %w", r, err)
		}
	}

	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)

	c, err := mail.NewClient(s.config.Host,
		mail.WithPort(s.config.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.config.Username),
		mail.WithPassword(s.config.Password),
		mail.WithTLSPolicy(tlsPolicyFromEncryption(s.config.Encryption)),
	)
	if err != nil {
		return fmt.Errorf("failed to create mail client: %w", err)
	}

	return c.DialAndSendWithContext(ctx, m)
}

// tlsPolicyFromEncryption converts the encryption string to a go-mail TLSPolicy.
func tlsPolicyFromEncryption(enc string) mail.TLSPolicy {
	switch enc {
	case "ssl_tls":
		return mail.TLSMandatory
	case "starttls":
		return mail.TLSOpportunistic
	default:
		return mail.NoTLS
	}
}
