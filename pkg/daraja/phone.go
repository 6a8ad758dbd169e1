package daraja

import (
	"fmt"
	"regexp"
	"strings"
)

var msisdnRe = regexp.MustCompile(`^254[17]\d{8}$`)

// NormalizePhone converts common Kenyan phone spellings (07XX..., +2547XX...,
// 2547XX...) into the 254XXXXXXXXX form the gateway requires.
func NormalizePhone(raw string) (string, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "+")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	cleaned = strings.ReplaceAll(cleaned, "-", "")

	if strings.HasPrefix(cleaned, "0") && len(cleaned) == 10 {
		cleaned = "254" + cleaned[1:]
	}

	if !msisdnRe.MatchString(cleaned) {
		return "", fmt.Errorf("invalid phone number %q, expected 2547XXXXXXXX or 07XXXXXXXX", raw)
	}
	return cleaned, nil
}
