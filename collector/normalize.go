package collector

import (
	"strconv"
	"strings"
)

// Domain maps the tokens of one enumeration reported by the Mist API to small integers.
// Lookups are case-insensitive: the API mixes "FullyRedundant" and "fullyredundant"
// across versions and both must land on the same value.
type Domain struct {
	Name    string
	Tokens  map[string]int
	Default int
	// Strict domains have a closed vocabulary; an unmapped token is worth a warning.
	Strict bool
}

var (
	// ConnectionState covers device and edge "status".
	ConnectionState = &Domain{
		Name: "connection_state",
		Tokens: map[string]int{
			"connected":    0,
			"disconnected": 1,
			"restarting":   2,
			"upgrading":    3,
		},
		Default: 1,
		Strict:  true,
	}

	// RedundancyState covers power supply and fan redundancy reported by edges.
	// Every state other than fully redundant counts as degraded.
	RedundancyState = &Domain{
		Name: "redundancy_state",
		Tokens: map[string]int{
			"fullyredundant": 0,
		},
		Default: 1,
	}
)

// Normalize returns the integer for token and whether the token was known.
// Unknown tokens yield the domain default.
func (d *Domain) Normalize(token string) (int, bool) {
	if v, ok := d.Tokens[strings.ToLower(strings.TrimSpace(token))]; ok {
		return v, true
	}
	return d.Default, false
}

// normalizeNumber passes numeric text through unchanged so the original precision survives,
// and folds booleans to 1/0. ok is false for anything that would not parse as a sample value.
func normalizeNumber(text string) (string, bool) {
	switch text {
	case "true":
		return "1", true
	case "false":
		return "0", true
	}
	if _, err := strconv.ParseFloat(text, 64); err != nil {
		return "0", false
	}
	return text, true
}
