package instrument

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"payment-gateway/internal/model"
)

var (
	vpaPattern        = regexp.MustCompile(`^[a-zA-Z0-9._-]+@[a-zA-Z0-9]+$`)
	cardNumberPattern = regexp.MustCompile(`^\d{13,19}$`)
	separators        = strings.NewReplacer(" ", "", "\t", "", "\n", "", "\r", "", "-", "")
)

// CleanCardNumber strips whitespace and hyphens.
func CleanCardNumber(number string) string {
	return separators.Replace(number)
}

// Last4 returns the last four digits of the cleaned number, or the whole
// cleaned number when it is shorter.
func Last4(number string) string {
	cleaned := CleanCardNumber(number)
	if len(cleaned) <= 4 {
		return cleaned
	}
	return cleaned[len(cleaned)-4:]
}

func ValidateCardNumber(number string) bool {
	cleaned := CleanCardNumber(number)
	if !cardNumberPattern.MatchString(cleaned) {
		return false
	}

	sum := 0
	double := false
	for i := len(cleaned) - 1; i >= 0; i-- {
		n := int(cleaned[i] - '0')
		if double {
			n *= 2
			if n > 9 {
				n -= 9
			}
		}
		sum += n
		double = !double
	}
	return sum%10 == 0
}

// DetectCardNetwork never fails: anything unrecognised is NetworkUnknown.
func DetectCardNetwork(number string) model.CardNetwork {
	cleaned := CleanCardNumber(number)

	switch {
	case strings.HasPrefix(cleaned, "4"):
		return model.NetworkVisa
	case len(cleaned) >= 2 && cleaned[0] == '5' && cleaned[1] >= '1' && cleaned[1] <= '5':
		return model.NetworkMastercard
	case strings.HasPrefix(cleaned, "34"), strings.HasPrefix(cleaned, "37"):
		return model.NetworkAmex
	case strings.HasPrefix(cleaned, "60"), strings.HasPrefix(cleaned, "65"),
		len(cleaned) >= 2 && cleaned[0] == '8' && cleaned[1] >= '1' && cleaned[1] <= '9':
		return model.NetworkRupay
	default:
		return model.NetworkUnknown
	}
}

func ValidateExpiry(month, year string) bool {
	return ValidateExpiryAt(month, year, time.Now())
}

// ValidateExpiryAt accepts a card expiring in the month of now.
func ValidateExpiryAt(month, year string, now time.Time) bool {
	month = strings.TrimSpace(month)
	year = strings.TrimSpace(year)

	mm, err := strconv.Atoi(month)
	if err != nil || mm < 1 || mm > 12 {
		return false
	}

	yy, err := strconv.Atoi(year)
	if err != nil || yy < 0 {
		return false
	}
	if len(year) == 2 {
		yy += 2000
	}

	current := now.Year()*12 + int(now.Month())
	expiry := yy*12 + mm
	return expiry >= current
}

func ValidateVpa(vpa string) bool {
	if strings.TrimSpace(vpa) == "" {
		return false
	}
	return vpaPattern.MatchString(vpa)
}

// ValidateCardInstrument checks the number with Luhn and only the presence
// of expiry and cvv.
func ValidateCardInstrument(card model.Card) bool {
	return ValidateCardNumber(card.Number) &&
		card.ExpiryMonth.Present() &&
		card.ExpiryYear.Present() &&
		card.CVV.Present()
}
