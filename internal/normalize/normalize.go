// Package normalize maps raw provider items into canonical messages.
// Three wire shapes are understood: full RFC 822 MIME (gmail/IMAP),
// Microsoft Graph mailbox messages, and Microsoft Graph Teams chat
// messages. Direction is a policy decision taken from the item's origin
// folder, never inferred from headers.
package normalize

import (
	"log/slog"
	"strings"

	"github.com/ronyzarom/SecureWatch-sub001/internal/domain"
)

// Normalizer converts raw items for one provider into canonical messages.
type Normalizer struct {
	outboundFolders map[string]bool
	logger          *slog.Logger
}

// New creates a Normalizer. Items fetched from any folder in
// outboundFolders (case-insensitive) are classified outbound; everything
// else is inbound.
func New(outboundFolders []string, logger *slog.Logger) *Normalizer {
	set := make(map[string]bool, len(outboundFolders))
	for _, f := range outboundFolders {
		set[strings.ToLower(f)] = true
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{outboundFolders: set, logger: logger}
}

// envelope is the provider-agnostic intermediate extracted from any wire
// shape before direction policy is applied.
type envelope struct {
	subject        string
	bodyText       string
	bodyHTML       string
	sentAt         timeValue
	fromRaw        string // raw From header or address
	fromName       string
	toRaw          []string // raw recipient strings
	hasAttachments bool
}

// Normalize maps one raw item fetched for principal p into a canonical
// message. Malformed items return a *domain.NormalizationError.
func (n *Normalizer) Normalize(item domain.RawItem, p domain.Principal, provider domain.Provider) (*domain.CanonicalMessage, error) {
	if item.ProviderID == "" {
		return nil, &domain.NormalizationError{Reason: "raw item has no provider message id"}
	}

	var env envelope
	var err error
	switch item.Format {
	case domain.FormatRFC822:
		env, err = parseRFC822(item.Payload)
	case domain.FormatGraphMail:
		env, err = parseGraphMail(item.Payload)
	case domain.FormatGraphChat:
		env, err = parseGraphChat(item.Payload)
	default:
		return nil, &domain.NormalizationError{
			ProviderID: item.ProviderID,
			Reason:     "unknown raw format " + string(item.Format),
		}
	}
	if err != nil {
		return nil, &domain.NormalizationError{
			ProviderID: item.ProviderID,
			Reason:     "cannot parse payload",
			Err:        err,
		}
	}

	owner := p.PrimaryEmail
	if owner == "" {
		// Channel-only principals have no mailbox address; the principal
		// id keeps the natural key unique and stable.
		owner = p.ID
	}

	msg := &domain.CanonicalMessage{
		Provider:          provider,
		ProviderMessageID: item.ProviderID,
		OwnerEmail:        owner,
		Subject:           env.subject,
		BodyText:          env.bodyText,
		BodyHTML:          env.bodyHTML,
		SentAt:            env.sentAt.t,
		HasAttachments:    env.hasAttachments,
	}

	if n.outboundFolders[strings.ToLower(item.Folder)] {
		msg.Direction = domain.DirectionOutbound
		msg.SenderEmail = owner
		msg.SenderName = p.DisplayName
		for _, raw := range env.toRaw {
			addr, _ := ParseAddress(raw)
			if addr != "" {
				msg.Recipients = append(msg.Recipients, addr)
			}
		}
	} else {
		msg.Direction = domain.DirectionInbound
		addr, name := ParseAddress(env.fromRaw)
		msg.SenderEmail = addr
		msg.SenderName = name
		if msg.SenderName == "" {
			msg.SenderName = env.fromName
		}
		msg.Recipients = []string{owner}
	}

	return msg, nil
}
