// Package trainno canonicalizes train numbers reported by the operator feeds.
//
// A train number is an uppercase letter prefix followed by a numeric payload.
// The payload is zero-padded to four digits, which is the width the reference
// database is keyed by. Normalization only ever touches the prefix and, on the
// loop line, the line-identifying digit.
package trainno

import (
	"fmt"
	"strings"

	"metrotrack/internal/domain"
)

const payloadWidth = 4

type rule struct {
	// marker is prepended when the prefix does not already start with it.
	marker string
	// corporate replaces whatever prefix the feed sent.
	corporate string
	// lineDigit, when set, must appear at payload[digitPos].
	lineDigit byte
	digitPos  int
}

var rules = map[string]rule{
	// The loop line shares its numbering pool with the other operators.
	"2": {marker: "S", lineDigit: '2', digitPos: 0},
	"5": {corporate: "SMRT"},
	"6": {corporate: "SMRT"},
	"7": {corporate: "SMRT"},
	"8": {corporate: "SMRT"},
}

// Parse splits a train number into prefix and zero-padded payload.
func Parse(raw string) (prefix, payload string, err error) {
	s := strings.TrimSpace(raw)
	i := 0
	for i < len(s) && s[i] >= 'A' && s[i] <= 'Z' {
		i++
	}
	prefix, payload = s[:i], s[i:]
	if payload == "" {
		return "", "", domain.Errorf(domain.KindMalformedResponse, "trainno", "train number %q has no numeric part", raw)
	}
	for j := 0; j < len(payload); j++ {
		if payload[j] < '0' || payload[j] > '9' {
			return "", "", domain.Errorf(domain.KindMalformedResponse, "trainno", "train number %q is not prefix+digits", raw)
		}
	}
	if len(payload) < payloadWidth {
		payload = strings.Repeat("0", payloadWidth-len(payload)) + payload
	}
	return prefix, payload, nil
}

// Normalize returns the canonical train number for line. Normalizing an
// already canonical number returns it unchanged.
func Normalize(line, raw string) (string, error) {
	prefix, payload, err := Parse(raw)
	if err != nil {
		return "", err
	}

	r, ok := rules[line]
	if !ok {
		return prefix + payload, nil
	}

	switch {
	case r.corporate != "":
		prefix = r.corporate
	case r.marker != "" && !strings.HasPrefix(prefix, r.marker):
		prefix = r.marker + prefix
	}

	if r.lineDigit != 0 && r.digitPos < len(payload) && payload[r.digitPos] != r.lineDigit {
		b := []byte(payload)
		b[r.digitPos] = r.lineDigit
		payload = string(b)
	}

	return prefix + payload, nil
}

// Bare strips the prefix, leaving the padded payload used to match trains
// across sources.
func Bare(number string) (string, error) {
	_, payload, err := Parse(number)
	if err != nil {
		return "", fmt.Errorf("bare train number: %w", err)
	}
	return payload, nil
}
