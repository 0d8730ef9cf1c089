package parser

import (
	"bytes"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jhillyerd/enmime"
	"github.com/pkg/errors"

	"github.com/customeros/mailingest/dto"
	mailerrors "github.com/customeros/mailingest/internal/errors"
	"github.com/customeros/mailingest/internal/utils"
)

const (
	DefaultMaxPayloadBytes = 1024 * 1024
	SnippetLength          = 500
	HTMLFallbackLength     = 1000
	DefaultSender          = "unknown@example.com"
	DecodeErrorPlaceholder = "Error decoding content."

	// Column widths of the message and attachment tables.
	maxIDLength        = 998
	maxSenderLength    = 255
	maxFilenameLength  = 500
	maxAttributeLength = 255
)

type Parser struct {
	maxPayloadBytes int
}

// NewParser returns a parser that keeps attachment payloads up to maxPayloadBytes.
// A non-positive size falls back to DefaultMaxPayloadBytes.
func NewParser(maxPayloadBytes int) *Parser {
	if maxPayloadBytes <= 0 {
		maxPayloadBytes = DefaultMaxPayloadBytes
	}
	return &Parser{maxPayloadBytes: maxPayloadBytes}
}

// Parse decodes one raw MIME message. It returns ErrMalformedMessage or ErrMissingMessageID
// when the message must be dropped. Recoverable per-part problems never fail the parse.
func (p *Parser) Parse(raw []byte) (parsed *dto.ParsedMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			parsed = nil
			err = errors.Wrapf(mailerrors.ErrMalformedMessage, "panic while parsing: %v", r)
		}
	}()

	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errors.Wrap(mailerrors.ErrMalformedMessage, "empty message")
	}

	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrap(mailerrors.ErrMalformedMessage, err.Error())
	}
	if env.Root == nil {
		return nil, errors.Wrap(mailerrors.ErrMalformedMessage, "no mime root")
	}

	messageID := strings.TrimSpace(header(env, "Message-ID"))
	if messageID == "" {
		return nil, mailerrors.ErrMissingMessageID
	}
	if utf8.RuneCountInString(messageID) > maxIDLength {
		return nil, errors.Wrapf(mailerrors.ErrMalformedMessage, "message-id longer than %d characters", maxIDLength)
	}

	parsed = &dto.ParsedMessage{
		MessageID:  messageID,
		Subject:    strings.TrimSpace(header(env, "Subject")),
		To:         addressList(env, "To"),
		Cc:         addressList(env, "Cc"),
		Bcc:        addressList(env, "Bcc"),
		SentAt:     parseDate(header(env, "Date")),
		Headers:    headerMap(env),
		References: strings.TrimSpace(header(env, "References")),
	}

	if ids := strings.Fields(header(env, "In-Reply-To")); len(ids) > 0 && fitsID(ids[0]) {
		parsed.InReplyTo = ids[0]
	}
	for _, id := range strings.Fields(parsed.References) {
		if fitsID(id) {
			parsed.ReferenceIDs = utils.AppendUnique(parsed.ReferenceIDs, id)
		}
	}

	parsed.SenderAddress = DefaultSender
	if from := addressList(env, "From"); len(from) > 0 {
		parsed.SenderName = utils.TruncateRunes(from[0].Name, maxSenderLength)
		if utf8.RuneCountInString(from[0].Address) <= maxSenderLength {
			parsed.SenderAddress = from[0].Address
		}
	}

	p.walkParts(env.Root, parsed)

	if parsed.BodyText == "" && parsed.BodyHTML != "" {
		parsed.BodyText = htmlToText(parsed.BodyHTML, HTMLFallbackLength)
	}
	parsed.Snippet = utils.TruncateWithEllipsis(parsed.BodyText, SnippetLength)

	return parsed, nil
}

type walkState struct {
	textSeen bool
	htmlSeen bool
}

func (p *Parser) walkParts(root *enmime.Part, parsed *dto.ParsedMessage) {
	state := &walkState{}
	var walk func(part *enmime.Part)
	walk = func(part *enmime.Part) {
		for ; part != nil; part = part.NextSibling {
			if part.FirstChild != nil {
				walk(part.FirstChild)
				continue
			}
			p.visitLeaf(part, parsed, state)
		}
	}
	walk(root)
}

func (p *Parser) visitLeaf(part *enmime.Part, parsed *dto.ParsedMessage, state *walkState) {
	contentType := strings.ToLower(strings.TrimSpace(part.ContentType))
	disposition := strings.ToLower(strings.TrimSpace(part.Disposition))

	if disposition == "attachment" || part.FileName != "" {
		parsed.Attachments = append(parsed.Attachments, p.toAttachment(part, contentType, disposition))
		return
	}

	switch {
	case (contentType == "text/plain" || contentType == "") && !state.textSeen:
		state.textSeen = true
		parsed.BodyText = partText(part)
	case contentType == "text/html" && !state.htmlSeen:
		state.htmlSeen = true
		parsed.BodyHTML = partText(part)
	}
}

func (p *Parser) toAttachment(part *enmime.Part, contentType, disposition string) dto.ParsedAttachment {
	size := len(part.Content)
	attachment := dto.ParsedAttachment{
		Filename:    utils.TruncateRunes(utils.CleanText(part.FileName), maxFilenameLength),
		ContentType: utils.TruncateRunes(utils.CleanText(utils.FirstNonEmpty(contentType, "application/octet-stream")), maxAttributeLength),
		ContentID:   utils.TruncateRunes(utils.CleanText(strings.Trim(part.ContentID, "<>")), maxAttributeLength),
		IsInline:    disposition == "inline",
		SizeBytes:   int64(size),
	}
	if size <= p.maxPayloadBytes {
		attachment.Payload = append([]byte(nil), part.Content...)
	}
	return attachment
}

func partText(part *enmime.Part) string {
	if len(part.Content) == 0 && hasSevereError(part) {
		return DecodeErrorPlaceholder
	}
	return utils.CleanText(string(part.Content))
}

// fitsID reports whether a referenced message id fits the id columns. Longer ids could never
// match a stored message.
func fitsID(id string) bool {
	return utf8.RuneCountInString(id) <= maxIDLength
}

func hasSevereError(part *enmime.Part) bool {
	for _, e := range part.Errors {
		if e != nil && e.Severe {
			return true
		}
	}
	return false
}

// header returns the decoded header value, or the raw value when decoding produced nothing.
// The result is always valid UTF-8 without NUL bytes.
func header(env *enmime.Envelope, name string) string {
	if value := env.GetHeader(name); value != "" {
		return utils.CleanText(value)
	}
	if env.Root != nil && env.Root.Header != nil {
		return utils.CleanText(env.Root.Header.Get(name))
	}
	return ""
}

func headerMap(env *enmime.Envelope) map[string][]string {
	headers := make(map[string][]string)
	for _, key := range env.GetHeaderKeys() {
		values := env.GetHeaderValues(key)
		if len(values) == 0 {
			continue
		}
		lower := strings.ToLower(utils.CleanText(key))
		for _, value := range values {
			headers[lower] = append(headers[lower], utils.CleanText(value))
		}
	}
	return headers
}

func parseDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	t, err := mail.ParseDate(value)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
