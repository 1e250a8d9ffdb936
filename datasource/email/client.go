package email

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"github.com/Krishiv200719/Airline-delay-visual-analytics/storage"
)

const (
	// MaxFetchMessages caps a single fetch so a flooded inbox cannot
	// exhaust memory.
	MaxFetchMessages = 100
	FetchBufferSize  = 10
	// RecentMailWindow bounds the unread search. Older mail was either
	// handled already or is stale enough to ignore.
	RecentMailWindow = 24 * time.Hour
)

// MailService is the fetch side of a mailbox.
type MailService interface {
	Connect() error
	Disconnect()
	FetchUnreadEmails() ([]*Email, error)
}

// EmailHandler consumes a fetched message, typically by saving its data
// attachments into the ingest directory.
type EmailHandler interface {
	Handle(email *Email) error
}

// Email is one fetched message with its decoded headers and attachments.
type Email struct {
	UID         uint32
	Date        time.Time
	From        string
	Subject     string
	Attachments []*Attachment
}

// Attachment is a named blob pulled out of a message body.
type Attachment struct {
	Filename string
	Content  []byte
}

// EmailClient talks IMAP over TLS to the mailbox that receives flight
// data exports.
type EmailClient struct {
	server    string
	username  string
	password  string
	client    *client.Client
	mu        sync.Mutex
	connected bool
}

// NewEmailClient prepares a client for server (host:port form, e.g.
// "imap.example.com:993"). No connection is made until Connect.
func NewEmailClient(server, username, password string) *EmailClient {
	return &EmailClient{
		server:   server,
		username: username,
		password: password,
	}
}

// Connect dials and authenticates. A live connection is reused, a stale
// one is replaced.
func (s *EmailClient) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		if _, err := s.client.Capability(); err == nil {
			return nil
		}
		s.client.Logout()
		s.client = nil
		s.connected = false
	}

	c, err := client.DialTLS(s.server, nil)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", s.server, err)
	}

	if err := c.Login(s.username, s.password); err != nil {
		c.Logout()
		return fmt.Errorf("login as %s: %w", s.username, err)
	}

	s.client = c
	s.connected = true
	return nil
}

// Disconnect logs out and drops the connection.
func (s *EmailClient) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		s.client.Logout()
		s.client = nil
	}
	s.connected = false
}

// FetchUnreadEmails returns unread messages from INBOX received within
// RecentMailWindow, newest capped at MaxFetchMessages.
func (s *EmailClient) FetchUnreadEmails() ([]*Email, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil, fmt.Errorf("not connected to mail server")
	}

	if _, err := s.client.Select("INBOX", false); err != nil {
		return nil, fmt.Errorf("selecting INBOX: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	criteria.Since = time.Now().Add(-RecentMailWindow)

	ids, err := s.client.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("searching mailbox: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > MaxFetchMessages {
		ids = ids[:MaxFetchMessages]
	}

	return s.fetchMessages(ids)
}

func (s *EmailClient) fetchMessages(ids []uint32) ([]*Email, error) {
	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{
		imap.FetchEnvelope,
		imap.FetchFlags,
		imap.FetchInternalDate,
		imap.FetchUid,
		section.FetchItem(),
	}

	messages := make(chan *imap.Message, FetchBufferSize)
	done := make(chan error, 1)

	go func() {
		done <- s.client.Fetch(seqset, items, messages)
	}()

	var emails []*Email
	var parseErrs int
	for msg := range messages {
		email, err := s.parseEmail(msg, section)
		if err != nil {
			parseErrs++
			continue
		}
		emails = append(emails, email)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("fetching messages: %w", err)
	}
	if parseErrs > 0 && len(emails) == 0 {
		return nil, fmt.Errorf("all %d fetched messages failed to parse", parseErrs)
	}

	return emails, nil
}

func (s *EmailClient) parseEmail(msg *imap.Message, section *imap.BodySectionName) (*Email, error) {
	r := msg.GetBody(section)
	if r == nil {
		return nil, fmt.Errorf("message %d has no body", msg.Uid)
	}

	mr, err := mail.CreateReader(r)
	if err != nil {
		return nil, fmt.Errorf("reading message %d: %w", msg.Uid, err)
	}

	header := mr.Header
	date, _ := header.Date()

	email := &Email{
		UID:     msg.Uid,
		Date:    date,
		From:    decodeHeader(header.Get("From")),
		Subject: decodeHeader(header.Get("Subject")),
	}

	if err := s.parseEmailParts(mr, email); err != nil {
		return nil, err
	}

	return email, nil
}

func (s *EmailClient) parseEmailParts(mr *mail.Reader, email *Email) error {
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A broken part does not invalidate the rest of the message.
			continue
		}

		if h, ok := p.Header.(*mail.AttachmentHeader); ok {
			s.parseAttachment(h, p.Body, email)
		}
	}
	return nil
}

func (s *EmailClient) parseAttachment(h *mail.AttachmentHeader, body io.Reader, email *Email) {
	filename, err := h.Filename()
	if err != nil || filename == "" {
		return
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return
	}

	email.Attachments = append(email.Attachments, &Attachment{
		Filename: decodeHeader(filename),
		Content:  buf.Bytes(),
	})
}

// decodeHeader decodes =?charset?encoding?text?= encoded words. Failed
// decodes fall back to the raw header.
func decodeHeader(header string) string {
	decoder := mime.WordDecoder{
		CharsetReader: charsetReader,
	}

	decoded, err := decoder.DecodeHeader(header)
	if err != nil {
		return header
	}
	return decoded
}

// charsetReader covers the charsets seen in airline operations mail
// beyond what the mime package handles on its own.
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(charset) {
	case "gbk", "gb2312":
		return transform.NewReader(input, simplifiedchinese.GBK.NewDecoder()), nil
	case "gb18030":
		return transform.NewReader(input, simplifiedchinese.GB18030.NewDecoder()), nil
	case "latin1", "iso-8859-1":
		return transform.NewReader(input, charmap.ISO8859_1.NewDecoder()), nil
	default:
		return input, nil
	}
}

// CheckAndProcessEmails runs one inbox poll: connect, fetch unread,
// pick the newest message whose subject matches, hand it to handler.
// Returns nil without error when there is nothing to do.
func CheckAndProcessEmails(svc MailService, handler EmailHandler, subject string, logger *storage.Logger) (*Email, error) {
	start := time.Now()
	logger.Info("checking mailbox...")

	if err := svc.Connect(); err != nil {
		return nil, fmt.Errorf("connecting: %w", err)
	}
	defer svc.Disconnect()

	emails, err := svc.FetchUnreadEmails()
	if err != nil {
		return nil, fmt.Errorf("fetching unread mail: %w", err)
	}
	if len(emails) == 0 {
		logger.Info("no new mail")
		return nil, nil
	}

	target := filterLatestTargetEmail(emails, subject)
	if target == nil {
		logger.Info(fmt.Sprintf("no mail matching subject %q", subject))
		return nil, nil
	}

	if err := handler.Handle(target); err != nil {
		return nil, fmt.Errorf("handling message %d: %w", target.UID, err)
	}

	logger.Info(fmt.Sprintf("mailbox check done in %v", time.Since(start)))
	return target, nil
}

// filterLatestTargetEmail keeps messages whose subject contains keyword
// and returns the newest by date.
func filterLatestTargetEmail(emails []*Email, keyword string) *Email {
	var targets []*Email
	for _, email := range emails {
		if strings.Contains(email.Subject, keyword) {
			targets = append(targets, email)
		}
	}

	if len(targets) == 0 {
		return nil
	}

	sort.Slice(targets, func(i, j int) bool {
		return targets[i].Date.After(targets[j].Date)
	})

	return targets[0]
}
