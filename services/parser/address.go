package parser

import (
	"net/mail"
	"strings"

	"github.com/customeros/mailsherpa/mailvalidate"
	"github.com/jhillyerd/enmime"

	"github.com/customeros/mailingest/dto"
	"github.com/customeros/mailingest/internal/utils"
)

// addressList parses an address header into (name, address) pairs, skipping empty addresses.
// When the header as a whole does not parse, each comma separated entry is tried on its own.
func addressList(env *enmime.Envelope, key string) []dto.Address {
	list, err := env.AddressList(key)
	if err == nil {
		out := make([]dto.Address, 0, len(list))
		for _, a := range list {
			if a == nil {
				continue
			}
			if addr := cleanAddress(a.Address); addr != "" {
				out = append(out, dto.Address{Name: utils.CleanText(strings.TrimSpace(a.Name)), Address: addr})
			}
		}
		return out
	}

	raw := header(env, key)
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	var out []dto.Address
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if parsed, perr := mail.ParseAddress(entry); perr == nil {
			if addr := cleanAddress(parsed.Address); addr != "" {
				out = append(out, dto.Address{Name: utils.CleanText(strings.TrimSpace(parsed.Name)), Address: addr})
			}
			continue
		}
		if strings.Contains(entry, "@") {
			if addr := cleanAddress(strings.Trim(entry, "<> \"")); addr != "" {
				out = append(out, dto.Address{Address: addr})
			}
		}
	}
	return out
}

func cleanAddress(address string) string {
	address = utils.CleanText(strings.TrimSpace(address))
	if address == "" {
		return ""
	}
	validation := mailvalidate.ValidateEmailSyntax(address)
	if validation.IsValid && validation.CleanEmail != "" {
		return strings.ToLower(validation.CleanEmail)
	}
	return strings.ToLower(address)
}
