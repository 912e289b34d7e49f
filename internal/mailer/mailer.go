package mailer

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

var otpTemplate = template.Must(template.New("otp").Parse(`<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2>Email Verification</h2>
  <p>Use the following one-time password to verify your email address:</p>
  <p style="font-size: 28px; font-weight: bold; letter-spacing: 4px;">{{.OTP}}</p>
  <p>The code expires in 10 minutes. If you did not request it, ignore this mail.</p>
</body>
</html>`))

// Mailer sends transactional mail over SMTP with STARTTLS.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
	log    *logrus.Logger
}

func New(host string, port int, username, password, from string, log *logrus.Logger) *Mailer {
	return &Mailer{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
		log:    log,
	}
}

// SendOTP delivers the verification code to the address.
func (m *Mailer) SendOTP(to, otp string) error {
	var body bytes.Buffer
	if err := otpTemplate.Execute(&body, map[string]string{"OTP": otp}); err != nil {
		return fmt.Errorf("render otp mail: %w", err)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", "Your OTP for Email Verification")
	msg.SetBody("text/html", body.String())

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	m.log.WithField("to", to).Debug("otp mail sent")
	return nil
}
