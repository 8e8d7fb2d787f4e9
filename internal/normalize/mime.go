package normalize

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message/mail"
)

// parseRFC822 extracts the envelope from a full MIME message. The mail
// reader walks nested multipart structures, so alternative and mixed
// payloads come out as a flat sequence of inline and attachment parts.
func parseRFC822(payload []byte) (envelope, error) {
	var env envelope

	mr, err := mail.CreateReader(bytes.NewReader(payload))
	if err != nil {
		return env, fmt.Errorf("create mail reader: %w", err)
	}

	header := mr.Header
	env.fromRaw = header.Get("From")

	if toList, err := header.AddressList("To"); err == nil && len(toList) > 0 {
		for _, addr := range toList {
			env.toRaw = append(env.toRaw, addr.Address)
		}
	} else if raw := header.Get("To"); raw != "" {
		// Header did not parse as an address list; fall back to raw
		// comma-separated tokens.
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				env.toRaw = append(env.toRaw, part)
			}
		}
	}

	env.subject = DecodeHeader(header.Get("Subject"))
	if date, err := header.Date(); err == nil {
		env.sentAt = timeValue{date}
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A broken part does not discard what was already read.
			break
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, err := h.ContentType()
			if err != nil {
				continue
			}
			body, err := io.ReadAll(part.Body)
			if err != nil {
				continue
			}
			switch contentType {
			case "text/plain":
				if env.bodyText == "" {
					env.bodyText = string(body)
				}
			case "text/html":
				if env.bodyHTML == "" {
					env.bodyHTML = string(body)
				}
			}
		case *mail.AttachmentHeader:
			if filename, err := h.Filename(); err == nil && filename != "" {
				env.hasAttachments = true
			}
		}
	}

	return env, nil
}
