package domain

import "time"

// Provider identifies the external collaboration system a record came from.
type Provider string

const (
	ProviderGmail     Provider = "gmail"
	ProviderOffice365 Provider = "office365"
	ProviderTeams     Provider = "teams"
)

// KnownProviders lists every provider the sync pipeline understands.
var KnownProviders = []Provider{ProviderGmail, ProviderOffice365, ProviderTeams}

// Valid reports whether p is one of the known providers.
func (p Provider) Valid() bool {
	switch p {
	case ProviderGmail, ProviderOffice365, ProviderTeams:
		return true
	}
	return false
}

// Direction classifies whether the monitored account sent or received a message.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// RawFormat tells the normalizer which wire shape a raw item carries.
type RawFormat string

const (
	FormatRFC822    RawFormat = "rfc822"     // full MIME message (gmail/IMAP)
	FormatGraphMail RawFormat = "graph-mail" // Microsoft Graph mailbox message JSON
	FormatGraphChat RawFormat = "graph-chat" // Microsoft Graph Teams chatMessage JSON
)

// RawItem is one activity item as fetched from a provider, before
// normalization. The Folder tag is attached at fetch time by the provider
// client; direction is decided from it, never re-inferred from headers.
type RawItem struct {
	ProviderID string // provider-native message id
	Folder     string // origin folder or channel, as fetched
	Format     RawFormat
	Payload    []byte
}

// CanonicalMessage is the single normalized representation of an activity
// item regardless of source provider.
//
// Invariants:
//   - Direction == outbound  => SenderEmail == OwnerEmail
//   - Direction == inbound   => Recipients == [OwnerEmail]
type CanonicalMessage struct {
	Provider          Provider
	ProviderMessageID string
	OwnerEmail        string // the monitored account, never empty
	SenderEmail       string
	SenderName        string
	Recipients        []string // ordered, direction-dependent
	Subject           string
	BodyText          string
	BodyHTML          string // empty when the message had no HTML part
	SentAt            time.Time
	HasAttachments    bool
	Direction         Direction
	RiskScore         int // 0..100, 0 until scored
	Flagged           bool
	Category          string // derived by the risk analyzer, mutable on re-run
}

// NaturalKey uniquely identifies a message for idempotent storage. The
// tuple must stay bit-stable: (provider, provider-native id, owner email).
type NaturalKey struct {
	Provider          Provider
	ProviderMessageID string
	OwnerEmail        string
}

// Key returns the message's natural key.
func (m *CanonicalMessage) Key() NaturalKey {
	return NaturalKey{
		Provider:          m.Provider,
		ProviderMessageID: m.ProviderMessageID,
		OwnerEmail:        m.OwnerEmail,
	}
}

// RiskResult is the outcome of scoring one canonical message.
type RiskResult struct {
	Score    int // 0..100
	Flagged  bool
	Category string
}
