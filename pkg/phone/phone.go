package phone

import (
	"fmt"
	"regexp"
	"strings"
)

var e164Regex = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

// IsE164 reports whether phone is a valid E.164 number.
func IsE164(phone string) bool {
	return e164Regex.MatchString(strings.TrimSpace(phone))
}

// Normalize strips separators and returns the number in E.164 format.
// Numbers without a country prefix are assumed to be US/Canada (+1).
func Normalize(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	for _, r := range []string{" ", "-", "(", ")", "."} {
		phone = strings.ReplaceAll(phone, r, "")
	}

	if !strings.HasPrefix(phone, "+") {
		switch {
		case len(phone) == 11 && strings.HasPrefix(phone, "1"):
			phone = "+" + phone
		case len(phone) == 10:
			phone = "+1" + phone
		default:
			return "", fmt.Errorf("cannot normalize phone number: %s", phone)
		}
	}

	if !e164Regex.MatchString(phone) {
		return "", fmt.Errorf("phone number must be in E.164 format (e.g., +15551234567)")
	}

	return phone, nil
}

// Mask masks a phone number for logging, keeping the prefix and last
// four digits visible.
func Mask(phone string) string {
	if phone == "" {
		return ""
	}

	phone = strings.TrimSpace(phone)

	re := regexp.MustCompile(`^(\+)(\d{1,3})(\d{3})(\d+)$`)
	matches := re.FindStringSubmatch(phone)

	if len(matches) == 5 {
		countryCode := matches[2]
		first3 := matches[3]
		lastDigits := matches[4]

		if len(lastDigits) >= 4 {
			last4 := lastDigits[len(lastDigits)-4:]
			masked := strings.Repeat("•", len(lastDigits)-4)
			return "+" + countryCode + first3 + masked + last4
		}
	}

	// Fallback: mask all but last 4 characters
	if len(phone) > 4 {
		masked := strings.Repeat("•", len(phone)-4)
		return masked + phone[len(phone)-4:]
	}

	return strings.Repeat("•", len(phone))
}
