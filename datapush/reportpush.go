package datapush

import (
	"crypto/tls"
	"fmt"
	"net/smtp"
	"os"
	"strings"
	"time"

	"github.com/jordan-wright/email"

	"github.com/Krishiv200719/Airline-delay-visual-analytics/config"
	"github.com/Krishiv200719/Airline-delay-visual-analytics/storage"
)

const (
	RetryTimes    = 3
	RetryInterval = 2 * time.Second
)

// Pusher mails generated report artifacts to the configured recipients.
type Pusher struct {
	cfg *config.Config
	log *storage.Logger
}

func NewPusher(cfg *config.Config, log *storage.Logger) *Pusher {
	return &Pusher{cfg: cfg, log: log}
}

// SendReport sends body with the given files attached. Attachments that
// are missing on disk are skipped with a warning so one lost chart does
// not block the whole report.
func (p *Pusher) SendReport(body string, attachments []string) error {
	sc := p.cfg.SendEmail
	if sc.Server == "" || len(sc.Recipients) == 0 {
		return fmt.Errorf("send_email is not configured")
	}

	e := email.NewEmail()
	e.From = fmt.Sprintf("Delay Analytics <%s>", sc.Username)
	e.To = sc.Recipients
	e.Subject = subjectLine(sc.Subject, time.Now())
	e.Text = []byte(body)

	attached := 0
	for _, path := range attachments {
		if _, err := os.Stat(path); err != nil {
			p.log.Warning(fmt.Sprintf("report attachment missing, skipped: %s", path))
			continue
		}
		if _, err := e.AttachFile(path); err != nil {
			p.log.Warning(fmt.Sprintf("attaching %s failed: %v", path, err))
			continue
		}
		attached++
	}

	addr := smtpAddr(sc.Server)
	host := strings.Split(addr, ":")[0]

	err := retry(func() error {
		return e.SendWithTLS(
			addr,
			smtp.PlainAuth("", sc.Username, sc.Password, host),
			&tls.Config{ServerName: host},
		)
	}, RetryTimes, RetryInterval)
	if err != nil {
		return fmt.Errorf("sending report mail: %w", err)
	}

	p.log.Info(fmt.Sprintf("report mailed to %d recipients with %d attachments",
		len(sc.Recipients), attached))
	return nil
}

func subjectLine(base string, now time.Time) string {
	if base == "" {
		base = "Airline delay report"
	}
	return fmt.Sprintf("%s %s", base, now.Format("2006-01-02"))
}

// smtpAddr appends the implicit TLS port when the config only names a
// host.
func smtpAddr(server string) string {
	if !strings.Contains(server, ":") {
		return server + ":465"
	}
	return server
}

func retry(fn func() error, times int, interval time.Duration) error {
	var err error
	for i := 0; i < times; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < times-1 {
			time.Sleep(interval)
		}
	}
	return fmt.Errorf("after %d attempts: %w", times, err)
}
