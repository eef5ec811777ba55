package privacy

import "strings"

// MaskKind selects the display-masking rule. Masking is format-preserving
// and cosmetic, not cryptographic.
type MaskKind string

const (
	MaskPhone MaskKind = "phone"
	MaskEmail MaskKind = "email"
	MaskPlate MaskKind = "plate"
)

// Mask partially hides field for display. Unknown kinds fall back to
// hiding everything but the first character.
func Mask(field string, kind MaskKind) string {
	if field == "" {
		return ""
	}
	switch kind {
	case MaskPhone:
		return maskPhone(field)
	case MaskEmail:
		return maskEmail(field)
	case MaskPlate:
		return maskPlate(field)
	default:
		return field[:1] + strings.Repeat("*", len(field)-1)
	}
}

// maskPhone keeps the last four digits: +1 (555) 123-4567 → ***-***-4567.
func maskPhone(phone string) string {
	digits := 0
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if digits <= 4 {
		return phone
	}
	var b strings.Builder
	seen := 0
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			seen++
			if seen <= digits-4 {
				b.WriteRune('*')
				continue
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}

// maskEmail keeps the first character of the local part and the domain:
// alice@example.com → a****@example.com.
func maskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return email
	}
	return local[:1] + strings.Repeat("*", len(local)-1) + "@" + domain
}

// maskPlate keeps the first and last characters: ABC-1234 → A******4.
func maskPlate(plate string) string {
	if len(plate) <= 2 {
		return plate
	}
	return plate[:1] + strings.Repeat("*", len(plate)-2) + plate[len(plate)-1:]
}
