// Package extractor turns the free-text dump of a registry certificate page
// into a structured record. Extraction is pure: no I/O, no clock, and the
// same input always yields the same output.
package extractor

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/openregistry/consulta/models"
)

var (
	// maskedValue is the "value withheld" sentinel the registry prints in
	// place of restricted fields. It is never written into the record.
	maskedValue = regexp.MustCompile(`^\*+$`)

	// emissionPattern decomposes the certificate emission line.
	emissionPattern = regexp.MustCompile(`(\d{2}/\d{2}/\d{4}) às (\d{2}:\d{2}:\d{2})`)
)

// Extract scans rawText and returns a fully-shaped RegistryRecord. Fields the
// text does not carry stay at their zero value; Extract never fails. Metadata
// is left untouched for the caller to fill.
func Extract(rawText string) *models.RegistryRecord {
	lines := splitLines(rawText)
	rec := newRecord()

	for i, line := range lines {
		switch {
		case line == tokenMatrix:
			if rec.Identification.Kind == "" {
				rec.Identification.Kind = models.KindMatrix
			}
		case line == tokenBranch:
			if rec.Identification.Kind == "" {
				rec.Identification.Kind = models.KindBranch
			}
		case strings.Contains(line, labelSecondaryActivities):
			if len(rec.Activities.Secondary) == 0 {
				rec.Activities.Secondary = append(rec.Activities.Secondary, collectSecondary(lines[i+1:])...)
			}
		case strings.Contains(line, labelPrimaryActivity):
			if cd, ok := splitCodeDescription(valueAt(lines, i)); ok && rec.Activities.Primary.Code == "" {
				rec.Activities.Primary = cd
			}
		case strings.Contains(line, labelLegalNature):
			if cd, ok := splitCodeDescription(valueAt(lines, i)); ok && rec.Organization.LegalNature.Code == "" {
				rec.Organization.LegalNature = cd
			}
		case strings.Contains(line, emissionPrefix):
			if m := emissionPattern.FindStringSubmatch(line); m != nil {
				rec.Certificate.IssuedOnDate = m[1]
				rec.Certificate.IssuedOnTime = m[2]
			}
		default:
			applyRules(rec, lines, i)
		}
	}

	return rec
}

// applyRules matches line i against the label table and, on the first match,
// writes the value line into the rule's field unless it was already set.
func applyRules(rec *models.RegistryRecord, lines []string, i int) {
	for _, rule := range labelRules {
		if !rule.matches(lines[i]) {
			continue
		}
		dst := rule.field(rec)
		if *dst == "" {
			if v := valueAt(lines, i); v != "" {
				*dst = v
			}
		}
		return
	}
}

func (r labelRule) matches(line string) bool {
	switch r.policy {
	case matchExact:
		return line == r.label
	case matchShort:
		return utf8.RuneCountInString(line) < r.maxLen && strings.Contains(line, r.label)
	default:
		return strings.Contains(line, r.label)
	}
}

// valueAt returns the value line for the label at index i: the next line,
// provided it exists, is not itself a recognised label (two labels can appear
// back to back with no value between them), and is not a masking sentinel.
func valueAt(lines []string, i int) string {
	if i+1 >= len(lines) {
		return ""
	}
	v := lines[i+1]
	if isLabel(v) || maskedValue.MatchString(v) {
		return ""
	}
	return v
}

// isLabel reports whether line is any recognised label or section header.
func isLabel(line string) bool {
	for _, rule := range labelRules {
		if rule.matches(line) {
			return true
		}
	}
	return strings.Contains(line, labelLegalNature) ||
		strings.Contains(line, labelPrimaryActivity) ||
		strings.Contains(line, labelSecondaryActivities)
}

// collectSecondary consumes "<code> - <description>" lines in order until a
// section boundary or the first non-matching line. No de-duplication.
func collectSecondary(lines []string) []models.CodeDescription {
	var out []models.CodeDescription
	for _, line := range lines {
		if isSecondaryBoundary(line) {
			break
		}
		cd, ok := splitCodeDescription(line)
		if !ok {
			break
		}
		out = append(out, cd)
	}
	return out
}

func isSecondaryBoundary(line string) bool {
	for _, marker := range secondaryBoundaries {
		if strings.Contains(line, marker) {
			return true
		}
	}
	return false
}

// splitCodeDescription splits "<code> - <description>" on the first
// separator only; descriptions may themselves contain " - ".
func splitCodeDescription(v string) (models.CodeDescription, bool) {
	if v == "" {
		return models.CodeDescription{}, false
	}
	parts := strings.SplitN(v, " - ", 2)
	if len(parts) != 2 {
		return models.CodeDescription{}, false
	}
	return models.CodeDescription{Code: parts[0], Description: parts[1]}, true
}

// splitLines breaks rawText into trimmed, non-empty lines.
func splitLines(rawText string) []string {
	raw := strings.Split(rawText, "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if t := strings.TrimSpace(l); t != "" {
			lines = append(lines, t)
		}
	}
	return lines
}

// newRecord builds the empty record shape. Secondary starts as an empty
// slice, not nil, so it serialises as [] rather than null.
func newRecord() *models.RegistryRecord {
	return &models.RegistryRecord{
		Activities: models.Activities{Secondary: []models.CodeDescription{}},
	}
}
