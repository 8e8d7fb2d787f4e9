package normalize

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// graphRecipient mirrors the Microsoft Graph emailAddress wrapper.
type graphRecipient struct {
	EmailAddress struct {
		Name    string `json:"name"`
		Address string `json:"address"`
	} `json:"emailAddress"`
}

// graphMailMessage is the subset of a Graph mailbox message the
// normalizer consumes.
type graphMailMessage struct {
	Subject string `json:"subject"`
	Body    struct {
		ContentType string `json:"contentType"`
		Content     string `json:"content"`
	} `json:"body"`
	From           graphRecipient   `json:"from"`
	ToRecipients   []graphRecipient `json:"toRecipients"`
	SentDateTime   string           `json:"sentDateTime"`
	HasAttachments bool             `json:"hasAttachments"`
}

func parseGraphMail(payload []byte) (envelope, error) {
	var gm graphMailMessage
	if err := json.Unmarshal(payload, &gm); err != nil {
		return envelope{}, fmt.Errorf("decode graph message: %w", err)
	}

	var env envelope
	env.subject = gm.Subject
	env.hasAttachments = gm.HasAttachments
	env.fromName = gm.From.EmailAddress.Name
	if addr := gm.From.EmailAddress.Address; addr != "" {
		env.fromRaw = addr
		if gm.From.EmailAddress.Name != "" {
			env.fromRaw = fmt.Sprintf("%q <%s>", gm.From.EmailAddress.Name, addr)
		}
	}
	for _, r := range gm.ToRecipients {
		if r.EmailAddress.Address != "" {
			env.toRaw = append(env.toRaw, r.EmailAddress.Address)
		}
	}

	switch strings.ToLower(gm.Body.ContentType) {
	case "html":
		env.bodyHTML = gm.Body.Content
		env.bodyText = stripHTML(gm.Body.Content)
	default:
		env.bodyText = gm.Body.Content
	}

	if gm.SentDateTime != "" {
		if ts, err := time.Parse(time.RFC3339, gm.SentDateTime); err == nil {
			env.sentAt = timeValue{ts}
		}
	}
	return env, nil
}

// graphChatMessage is the subset of a Graph Teams chatMessage the
// normalizer consumes.
type graphChatMessage struct {
	MessageType string `json:"messageType"`
	Subject     string `json:"subject"`
	Body        struct {
		ContentType string `json:"contentType"`
		Content     string `json:"content"`
	} `json:"body"`
	From struct {
		User struct {
			ID          string `json:"id"`
			DisplayName string `json:"displayName"`
			Email       string `json:"email"`
		} `json:"user"`
	} `json:"from"`
	CreatedDateTime string `json:"createdDateTime"`
	Attachments     []struct {
		Name string `json:"name"`
	} `json:"attachments"`
}

func parseGraphChat(payload []byte) (envelope, error) {
	var cm graphChatMessage
	if err := json.Unmarshal(payload, &cm); err != nil {
		return envelope{}, fmt.Errorf("decode chat message: %w", err)
	}
	if cm.MessageType != "" && cm.MessageType != "message" {
		return envelope{}, fmt.Errorf("unsupported chat message type %q", cm.MessageType)
	}

	var env envelope
	env.subject = cm.Subject
	env.fromName = cm.From.User.DisplayName
	switch {
	case cm.From.User.Email != "":
		env.fromRaw = cm.From.User.Email
	case cm.From.User.ID != "":
		env.fromRaw = cm.From.User.ID
	}

	switch strings.ToLower(cm.Body.ContentType) {
	case "html":
		env.bodyHTML = cm.Body.Content
		env.bodyText = stripHTML(cm.Body.Content)
	default:
		env.bodyText = cm.Body.Content
	}

	for _, a := range cm.Attachments {
		if a.Name != "" {
			env.hasAttachments = true
			break
		}
	}

	if cm.CreatedDateTime != "" {
		if ts, err := time.Parse(time.RFC3339, cm.CreatedDateTime); err == nil {
			env.sentAt = timeValue{ts}
		}
	}
	return env, nil
}

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// stripHTML produces a rough plain-text rendering of an HTML body so the
// text field is searchable even when the provider only sent HTML.
func stripHTML(s string) string {
	s = htmlTagPattern.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	return strings.Join(strings.Fields(s), " ")
}
