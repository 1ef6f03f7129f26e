// Package taxonomy validates structured cues ("key:value") against a
// per-project allow-list before they reach the engine. Plain cues (no
// colon) are always accepted; a structured cue is rejected if its key
// isn't in AllowedKeys (when that list is non-empty) or its value fails
// every configured value/prefix constraint for that key.
package taxonomy

import (
	"fmt"
	"strings"
)

// Taxonomy constrains which structured cues a project will accept. A zero
// value imposes no constraints at all: any key and any value are allowed.
type Taxonomy struct {
	AllowedKeys          []string
	AllowedValues        map[string][]string
	AllowedValuePrefixes map[string][]string
}

// RejectedCue records why a cue did not pass validation.
type RejectedCue struct {
	Cue    string
	Code   string
	Detail string
}

// Rejection codes, stable across callers (used by API responses).
const (
	CodeBadFormat   = "bad_format"
	CodeUnknownKey  = "unknown_key"
	CodeUnknownValue = "unknown_value"
)

// ValidationReport splits a cue batch into what survived and what didn't.
type ValidationReport struct {
	Accepted []string
	Rejected []RejectedCue
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ValidateCues checks each cue against tax, in order, and returns the split
// result. A cue with no colon is a plain cue and is always accepted.
func ValidateCues(cues []string, tax Taxonomy) ValidationReport {
	report := ValidationReport{
		Accepted: make([]string, 0, len(cues)),
	}

	for _, cue := range cues {
		idx := strings.Index(cue, ":")
		if idx < 0 {
			report.Accepted = append(report.Accepted, cue)
			continue
		}

		key, value := cue[:idx], cue[idx+1:]
		if key == "" || value == "" {
			report.Rejected = append(report.Rejected, RejectedCue{
				Cue:    cue,
				Code:   CodeBadFormat,
				Detail: "cue must be non-empty on both sides of ':'",
			})
			continue
		}

		if len(tax.AllowedKeys) > 0 && !containsString(tax.AllowedKeys, key) {
			report.Rejected = append(report.Rejected, RejectedCue{
				Cue:    cue,
				Code:   CodeUnknownKey,
				Detail: fmt.Sprintf("key %q is not in allowed_keys", key),
			})
			continue
		}

		allowedValues, hasValueConstraint := tax.AllowedValues[key]
		allowedPrefixes, hasPrefixConstraint := tax.AllowedValuePrefixes[key]

		valueAllowed := true
		if hasValueConstraint || hasPrefixConstraint {
			valueAllowed = containsString(allowedValues, value)
			if !valueAllowed {
				for _, prefix := range allowedPrefixes {
					if strings.HasPrefix(value, prefix) {
						valueAllowed = true
						break
					}
				}
			}
		}

		if !valueAllowed {
			report.Rejected = append(report.Rejected, RejectedCue{
				Cue:    cue,
				Code:   CodeUnknownValue,
				Detail: fmt.Sprintf("value %q is not allowed for key %q", value, key),
			})
			continue
		}

		report.Accepted = append(report.Accepted, cue)
	}

	return report
}
