package normalize

import (
	"strings"
	"testing"
	"time"

	"github.com/ronyzarom/SecureWatch-sub001/internal/domain"
)

var outbound = []string{"sent", "[Gmail]/Sent Mail", "sentitems"}

func alice() domain.Principal {
	return domain.Principal{ID: "u-1", PrimaryEmail: "alice@co.com", DisplayName: "Alice", Enabled: true}
}

// --- Address parsing precedence ---

func TestParseAddress_AngleBracketWins(t *testing.T) {
	email, name := ParseAddress(`"Bob" <bob@co.com>`)
	if email != "bob@co.com" {
		t.Fatalf("expected bob@co.com, got %q", email)
	}
	if name != "Bob" {
		t.Fatalf("expected name Bob, got %q", name)
	}
}

func TestParseAddress_AngleBeatsBareToken(t *testing.T) {
	email, _ := ParseAddress(`spoof@evil.com via <real@co.com>`)
	if email != "real@co.com" {
		t.Fatalf("angle-bracketed address must win, got %q", email)
	}
}

func TestParseAddress_BareToken(t *testing.T) {
	email, name := ParseAddress("carol@co.com")
	if email != "carol@co.com" || name != "" {
		t.Fatalf("got %q / %q", email, name)
	}
}

func TestParseAddress_NoMatchUsesRawVerbatim(t *testing.T) {
	email, _ := ParseAddress("mailer-daemon")
	if email != "mailer-daemon" {
		t.Fatalf("expected verbatim fallback, got %q", email)
	}
}

// --- RFC 822 / MIME ---

const plainEmail = "From: \"Bob\" <bob@co.com>\r\n" +
	"To: alice@co.com\r\n" +
	"Subject: Quarterly numbers\r\n" +
	"Date: Mon, 02 Jan 2006 15:04:05 -0700\r\n" +
	"Content-Type: text/plain\r\n" +
	"\r\n" +
	"The numbers look off.\r\n"

func TestNormalize_InboundRFC822(t *testing.T) {
	n := New(outbound, nil)
	item := domain.RawItem{
		ProviderID: "m-100",
		Folder:     "inbox",
		Format:     domain.FormatRFC822,
		Payload:    []byte(plainEmail),
	}
	msg, err := n.Normalize(item, alice(), domain.ProviderGmail)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Direction != domain.DirectionInbound {
		t.Fatalf("expected inbound, got %s", msg.Direction)
	}
	if msg.SenderEmail != "bob@co.com" {
		t.Errorf("sender: expected bob@co.com, got %q", msg.SenderEmail)
	}
	if msg.SenderName != "Bob" {
		t.Errorf("sender name: expected Bob, got %q", msg.SenderName)
	}
	if len(msg.Recipients) != 1 || msg.Recipients[0] != "alice@co.com" {
		t.Errorf("inbound recipients must be [owner], got %v", msg.Recipients)
	}
	if msg.Subject != "Quarterly numbers" {
		t.Errorf("subject: got %q", msg.Subject)
	}
	if !strings.Contains(msg.BodyText, "numbers look off") {
		t.Errorf("body: got %q", msg.BodyText)
	}
	if msg.SentAt.IsZero() {
		t.Error("sentAt not extracted")
	}
	if msg.OwnerEmail != "alice@co.com" {
		t.Errorf("owner: got %q", msg.OwnerEmail)
	}
}

const sentEmail = "From: alice@co.com\r\n" +
	"To: bob@co.com, carol@co.com\r\n" +
	"Subject: Re: Quarterly numbers\r\n" +
	"Content-Type: text/plain\r\n" +
	"\r\n" +
	"Checking now.\r\n"

func TestNormalize_OutboundRFC822(t *testing.T) {
	n := New(outbound, nil)
	item := domain.RawItem{
		ProviderID: "m-101",
		Folder:     "sent",
		Format:     domain.FormatRFC822,
		Payload:    []byte(sentEmail),
	}
	msg, err := n.Normalize(item, alice(), domain.ProviderGmail)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Direction != domain.DirectionOutbound {
		t.Fatalf("expected outbound, got %s", msg.Direction)
	}
	if msg.SenderEmail != "alice@co.com" {
		t.Errorf("outbound sender must equal owner, got %q", msg.SenderEmail)
	}
	want := []string{"bob@co.com", "carol@co.com"}
	if len(msg.Recipients) != 2 || msg.Recipients[0] != want[0] || msg.Recipients[1] != want[1] {
		t.Errorf("recipients: expected %v, got %v", want, msg.Recipients)
	}
}

const multipartEmail = "From: bob@co.com\r\n" +
	"To: alice@co.com\r\n" +
	"Subject: report attached\r\n" +
	"Content-Type: multipart/mixed; boundary=outer\r\n" +
	"\r\n" +
	"--outer\r\n" +
	"Content-Type: multipart/alternative; boundary=inner\r\n" +
	"\r\n" +
	"--inner\r\n" +
	"Content-Type: text/plain\r\n" +
	"\r\n" +
	"plain body\r\n" +
	"--inner\r\n" +
	"Content-Type: text/html\r\n" +
	"\r\n" +
	"<p>html body</p>\r\n" +
	"--inner--\r\n" +
	"--outer\r\n" +
	"Content-Type: application/pdf\r\n" +
	"Content-Disposition: attachment; filename=\"report.pdf\"\r\n" +
	"\r\n" +
	"%PDF-fake\r\n" +
	"--outer--\r\n"

func TestNormalize_NestedMultipartWithAttachment(t *testing.T) {
	n := New(outbound, nil)
	item := domain.RawItem{
		ProviderID: "m-102",
		Folder:     "INBOX",
		Format:     domain.FormatRFC822,
		Payload:    []byte(multipartEmail),
	}
	msg, err := n.Normalize(item, alice(), domain.ProviderGmail)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(msg.BodyText, "plain body") {
		t.Errorf("plain text part preferred, got %q", msg.BodyText)
	}
	if !strings.Contains(msg.BodyHTML, "html body") {
		t.Errorf("html part retained, got %q", msg.BodyHTML)
	}
	if !msg.HasAttachments {
		t.Error("attachment with filename must set hasAttachments")
	}
}

func TestNormalize_MalformedMIMEIsNormalizationError(t *testing.T) {
	n := New(outbound, nil)
	item := domain.RawItem{
		ProviderID: "m-bad",
		Folder:     "inbox",
		Format:     domain.FormatRFC822,
		Payload:    []byte("not an email at all\x00\x01"),
	}
	_, err := n.Normalize(item, alice(), domain.ProviderGmail)
	if err == nil {
		t.Fatal("expected error for malformed payload")
	}
	if !domain.IsNormalization(err) {
		t.Fatalf("expected NormalizationError, got %T: %v", err, err)
	}
}

func TestNormalize_MissingProviderID(t *testing.T) {
	n := New(outbound, nil)
	_, err := n.Normalize(domain.RawItem{Format: domain.FormatRFC822}, alice(), domain.ProviderGmail)
	if !domain.IsNormalization(err) {
		t.Fatalf("expected NormalizationError, got %v", err)
	}
}

// --- Graph mail ---

const graphMail = `{
  "subject": "wire transfer",
  "body": {"contentType": "html", "content": "<b>urgent</b> wire needed"},
  "from": {"emailAddress": {"name": "Eve Attacker", "address": "eve@outside.io"}},
  "toRecipients": [{"emailAddress": {"address": "alice@co.com"}}],
  "sentDateTime": "2024-03-05T09:30:00Z",
  "hasAttachments": true
}`

func TestNormalize_GraphMailInbound(t *testing.T) {
	n := New(outbound, nil)
	item := domain.RawItem{
		ProviderID: "AAMk-1",
		Folder:     "inbox",
		Format:     domain.FormatGraphMail,
		Payload:    []byte(graphMail),
	}
	msg, err := n.Normalize(item, alice(), domain.ProviderOffice365)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.SenderEmail != "eve@outside.io" {
		t.Errorf("sender: got %q", msg.SenderEmail)
	}
	if msg.SenderName != "Eve Attacker" {
		t.Errorf("sender name: got %q", msg.SenderName)
	}
	if msg.BodyHTML == "" {
		t.Error("html body lost")
	}
	if !strings.Contains(msg.BodyText, "urgent") {
		t.Errorf("text fallback from html: got %q", msg.BodyText)
	}
	if !msg.HasAttachments {
		t.Error("hasAttachments lost")
	}
	want := time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)
	if !msg.SentAt.Equal(want) {
		t.Errorf("sentAt: got %v", msg.SentAt)
	}
}

func TestNormalize_GraphMailOutboundFolder(t *testing.T) {
	n := New(outbound, nil)
	item := domain.RawItem{
		ProviderID: "AAMk-2",
		Folder:     "SentItems",
		Format:     domain.FormatGraphMail,
		Payload:    []byte(graphMail),
	}
	msg, err := n.Normalize(item, alice(), domain.ProviderOffice365)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Direction != domain.DirectionOutbound {
		t.Fatalf("folder match must be case-insensitive, got %s", msg.Direction)
	}
	if msg.SenderEmail != "alice@co.com" {
		t.Errorf("outbound sender must equal owner, got %q", msg.SenderEmail)
	}
	if len(msg.Recipients) != 1 || msg.Recipients[0] != "alice@co.com" {
		t.Errorf("recipients from toRecipients, got %v", msg.Recipients)
	}
}

// --- Graph chat (Teams) ---

const graphChat = `{
  "messageType": "message",
  "body": {"contentType": "html", "content": "<div>deal terms inside</div>"},
  "from": {"user": {"id": "9f-aa", "displayName": "Dan Seller", "email": "dan@co.com"}},
  "createdDateTime": "2024-04-01T12:00:00Z",
  "attachments": [{"name": "terms.docx"}]
}`

func TestNormalize_GraphChatChannelPrincipal(t *testing.T) {
	n := New(outbound, nil)
	channel := domain.Principal{ID: "team1:chanA", DisplayName: "deals", Enabled: true}
	item := domain.RawItem{
		ProviderID: "1712-99",
		Folder:     "channel",
		Format:     domain.FormatGraphChat,
		Payload:    []byte(graphChat),
	}
	msg, err := n.Normalize(item, channel, domain.ProviderTeams)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.OwnerEmail != "team1:chanA" {
		t.Errorf("channel principal id used as owner key, got %q", msg.OwnerEmail)
	}
	if msg.SenderEmail != "dan@co.com" {
		t.Errorf("sender: got %q", msg.SenderEmail)
	}
	if msg.Direction != domain.DirectionInbound {
		t.Errorf("channel messages default inbound, got %s", msg.Direction)
	}
	if !msg.HasAttachments {
		t.Error("named attachment must set hasAttachments")
	}
	if !strings.Contains(msg.BodyText, "deal terms") {
		t.Errorf("body text: got %q", msg.BodyText)
	}
}

func TestNormalize_GraphChatSystemEventRejected(t *testing.T) {
	n := New(outbound, nil)
	item := domain.RawItem{
		ProviderID: "1712-100",
		Folder:     "channel",
		Format:     domain.FormatGraphChat,
		Payload:    []byte(`{"messageType": "systemEventMessage", "body": {"content": ""}}`),
	}
	_, err := n.Normalize(item, alice(), domain.ProviderTeams)
	if !domain.IsNormalization(err) {
		t.Fatalf("expected NormalizationError for system event, got %v", err)
	}
}
