package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message"

	"github.com/ronyzarom/SecureWatch-sub001/internal/config"
	"github.com/ronyzarom/SecureWatch-sub001/internal/domain"
)

const gmailSentFolder = "[Gmail]/Sent Mail"

// GmailClient syncs monitored Google mailboxes over IMAP. Principals come
// from configuration: Gmail has no tenant-wide directory to enumerate
// with plain IMAP credentials.
type GmailClient struct {
	server    string
	mailboxes []config.MailboxConfig
	logger    *slog.Logger
}

// GmailConfig configures a GmailClient.
type GmailConfig struct {
	IMAPServer string
	Mailboxes  []config.MailboxConfig
	Logger     *slog.Logger
}

// NewGmail creates a client for the configured mailbox roster.
func NewGmail(cfg GmailConfig) *GmailClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &GmailClient{
		server:    cfg.IMAPServer,
		mailboxes: cfg.Mailboxes,
		logger:    logger,
	}
}

func (c *GmailClient) Name() domain.Provider { return domain.ProviderGmail }

func (c *GmailClient) Folders(includeOutbound bool) []string {
	if includeOutbound {
		return []string{"INBOX", gmailSentFolder}
	}
	return []string{"INBOX"}
}

// ListPrincipals returns one principal per configured mailbox.
func (c *GmailClient) ListPrincipals(ctx context.Context) ([]domain.Principal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(c.mailboxes) == 0 {
		return nil, fmt.Errorf("gmail: no mailboxes configured")
	}
	principals := make([]domain.Principal, 0, len(c.mailboxes))
	for _, mb := range c.mailboxes {
		name := mb.DisplayName
		if name == "" {
			name = mb.Email
		}
		principals = append(principals, domain.Principal{
			ID:           mb.Email,
			PrimaryEmail: mb.Email,
			DisplayName:  name,
			Enabled:      mb.Enabled,
		})
	}
	return principals, nil
}

// FetchActivity fetches one page of messages from the principal's folder.
// The cursor is an offset into the UID list returned by the server's
// SINCE search; an empty cursor starts at the beginning.
func (c *GmailClient) FetchActivity(ctx context.Context, p domain.Principal, q domain.ActivityQuery) (domain.ActivityPage, error) {
	mb, err := c.credentialsFor(p.ID)
	if err != nil {
		return domain.ActivityPage{}, err
	}

	cl, err := client.DialTLS(c.server, nil)
	if err != nil {
		return domain.ActivityPage{}, fmt.Errorf("imap connect %s: %w", c.server, err)
	}
	defer cl.Logout()

	if err := cl.Login(mb.Email, mb.Password); err != nil {
		return domain.ActivityPage{}, &domain.AuthError{
			Provider: domain.ProviderGmail,
			Err:      fmt.Errorf("login %s: %w", mb.Email, err),
		}
	}
	mbox, err := cl.Select(q.Folder, true)
	if err != nil {
		return domain.ActivityPage{}, fmt.Errorf("select %s: %w", q.Folder, err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.Since = q.Since
	uids, err := cl.UidSearch(criteria)
	if err != nil {
		return domain.ActivityPage{}, fmt.Errorf("search %s since %s: %w", q.Folder, q.Since, err)
	}

	offset := 0
	if q.Cursor != "" {
		offset, err = strconv.Atoi(q.Cursor)
		if err != nil || offset < 0 {
			return domain.ActivityPage{}, fmt.Errorf("malformed gmail cursor %q", q.Cursor)
		}
	}
	if offset >= len(uids) {
		return domain.ActivityPage{}, nil
	}

	end := min(offset+q.PageSize, len(uids))
	page := domain.ActivityPage{}
	for _, uid := range uids[offset:end] {
		if err := ctx.Err(); err != nil {
			return domain.ActivityPage{}, err
		}
		payload, err := c.fetchMessage(cl, uid)
		if err != nil {
			return domain.ActivityPage{}, fmt.Errorf("fetch uid %d: %w", uid, err)
		}
		page.Items = append(page.Items, domain.RawItem{
			ProviderID: gmailProviderID(payload, q.Folder, mbox.UidValidity, uid),
			Folder:     q.Folder,
			Format:     domain.FormatRFC822,
			Payload:    payload,
		})
	}

	if end < len(uids) {
		page.NextCursor = strconv.Itoa(end)
	}
	return page, nil
}

func (c *GmailClient) fetchMessage(cl *client.Client, uid uint32) ([]byte, error) {
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchUid, imap.FetchInternalDate}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- cl.UidFetch(seqSet, items, messages)
	}()

	var msg *imap.Message
	for m := range messages {
		msg = m
	}
	if err := <-done; err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, fmt.Errorf("no message returned")
	}

	body := msg.GetBody(section)
	if body == nil {
		return nil, fmt.Errorf("empty body section")
	}
	return io.ReadAll(body)
}

// gmailProviderID derives a mailbox-wide stable message id. IMAP UIDs
// are only unique within one folder and reset with UIDVALIDITY, so the
// RFC 822 Message-ID wins whenever the payload carries one; the fallback
// qualifies the UID with folder and UIDVALIDITY so no two distinct
// messages can collide on the natural key.
func gmailProviderID(payload []byte, folder string, uidValidity, uid uint32) string {
	if id := rfc822MessageID(payload); id != "" {
		return id
	}
	return fmt.Sprintf("%s/%d/%d", folder, uidValidity, uid)
}

// rfc822MessageID extracts the Message-ID header, stripped of its angle
// brackets. Empty when the payload has no parseable header.
func rfc822MessageID(payload []byte) string {
	entity, err := message.Read(bytes.NewReader(payload))
	if err != nil && entity == nil {
		return ""
	}
	id := strings.TrimSpace(entity.Header.Get("Message-Id"))
	return strings.Trim(id, "<>")
}

func (c *GmailClient) credentialsFor(email string) (config.MailboxConfig, error) {
	for _, mb := range c.mailboxes {
		if strings.EqualFold(mb.Email, email) {
			return mb, nil
		}
	}
	return config.MailboxConfig{}, fmt.Errorf("gmail: no credentials for mailbox %s", email)
}
