package usecase

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/nutriscan/backend/internal/domain"
)

var (
	// Matches codes typed with grouping, e.g. "3 017620 422003" or "4006-3813-33931"
	groupedDigitsPattern = regexp.MustCompile(`^[0-9][0-9\s-]*[0-9]$`)

	separatorPattern = regexp.MustCompile(`[\s-]+`)
)

// GTIN lengths whose last digit is a check digit (EAN-8, UPC-A, EAN-13, GTIN-14)
var gtinLengths = map[int]bool{8: true, 12: true, 13: true, 14: true}

// IdentifierNormalizer cleans typed or scanned product identifiers before lookup
type IdentifierNormalizer struct {
	logger *slog.Logger
}

// NewIdentifierNormalizer creates a new identifier normalizer
func NewIdentifierNormalizer(logger *slog.Logger) *IdentifierNormalizer {
	return &IdentifierNormalizer{logger: logger.With("component", "identifier")}
}

// Normalize trims the identifier and strips separators from grouped digit
// codes. A bad check digit is logged but the code is still returned; the
// food database decides whether it exists.
func (n *IdentifierNormalizer) Normalize(raw string) (string, error) {
	code := strings.TrimSpace(raw)
	if code == "" {
		return "", fmt.Errorf("%w: empty identifier", domain.ErrInvalidInput)
	}

	if groupedDigitsPattern.MatchString(code) {
		code = separatorPattern.ReplaceAllString(code, "")
		if gtinLengths[len(code)] && !ValidGTIN(code) {
			n.logger.Warn("check digit mismatch", "code", code)
		}
	}

	if code != raw {
		n.logger.Debug("identifier normalized", "input", raw, "output", code)
	}
	return code, nil
}

// ValidGTIN verifies the trailing check digit of an all-digit GTIN.
func ValidGTIN(code string) bool {
	if len(code) < 2 {
		return false
	}
	sum := 0
	weight := 3
	for i := len(code) - 2; i >= 0; i-- {
		c := code[i]
		if c < '0' || c > '9' {
			return false
		}
		sum += int(c-'0') * weight
		weight = 4 - weight
	}
	last := code[len(code)-1]
	if last < '0' || last > '9' {
		return false
	}
	return (10-sum%10)%10 == int(last-'0')
}
