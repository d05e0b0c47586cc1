package validation

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrCoordinateEmpty is returned when the coordinate text is empty.
var ErrCoordinateEmpty = errors.New("coordinate is required")

// ErrCoordinateInvalid is returned when the text is not a decimal number.
var ErrCoordinateInvalid = errors.New("coordinate is not a number")

// ErrCoordinateNotFinite is returned for NaN, infinities and values that overflow float64.
var ErrCoordinateNotFinite = errors.New("coordinate is not finite")

// ParseCoordinate parses a latitude or longitude exactly as typed. Surrounding
// whitespace is not trimmed and hexadecimal or underscore-separated forms are
// rejected, so only plain decimal input (optionally signed, optionally with an
// exponent) is accepted. Range is not checked.
func ParseCoordinate(input string) (float64, error) {
	if input == "" {
		return 0, ErrCoordinateEmpty
	}
	if strings.ContainsAny(input, "xX_") {
		return 0, fmt.Errorf("%w: %q", ErrCoordinateInvalid, input)
	}
	v, err := strconv.ParseFloat(input, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, fmt.Errorf("%w: %q", ErrCoordinateNotFinite, input)
		}
		return 0, fmt.Errorf("%w: %q", ErrCoordinateInvalid, input)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", ErrCoordinateNotFinite, input)
	}
	return v, nil
}

// CoordinateOrZero parses input and substitutes 0 when it cannot be parsed.
// The returned error is the parse failure, if any, for logging only.
func CoordinateOrZero(input string) (float64, error) {
	v, err := ParseCoordinate(input)
	if err != nil {
		return 0, err
	}
	return v, nil
}

// IsFinite reports whether v can be stored as a coordinate.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
