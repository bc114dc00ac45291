package ai

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strings"
)

// Placeholder format used for redacted spans. The provider only ever sees
// placeholders; originals are restored into its responses afterwards.
var placeholderPattern = regexp.MustCompile(`\bANON_[0-9a-f]{8}\b`)

var (
	emailPattern  = regexp.MustCompile(`[\w.\-]+@[\w.\-]+\.\w+`)
	phonePattern  = regexp.MustCompile(`(?:\+?\d{1,3}[\s.\-]?)?(?:1[3-9]\d{9}|\(?\d{2,4}\)?[\s.\-]?\d{3,4}[\s.\-]?\d{4})`)
	urlPattern    = regexp.MustCompile(`https?://\S+`)
	jwtPattern    = regexp.MustCompile(`\beyJ[a-zA-Z0-9_\-]+\.[a-zA-Z0-9_\-]+\.[a-zA-Z0-9_\-]+\b`)
	awsKeyPattern = regexp.MustCompile(`\b(?:AKIA|ASIA)[0-9A-Z]{16}\b`)
	gcpKeyPattern = regexp.MustCompile(`\bAIza[0-9A-Za-z_\-]{35}\b`)
	slackPattern  = regexp.MustCompile(`\bxox[baprs]-[A-Za-z0-9\-]{10,}\b`)
	githubPattern = regexp.MustCompile(`\bgh[opsu]_[A-Za-z0-9]{36,}\b`)
	stripePattern = regexp.MustCompile(`\bsk_(?:live|test)_[0-9a-zA-Z]{24,}\b`)
	ipPattern     = regexp.MustCompile(`\b\d{1,3}(?:\.\d{1,3}){3}\b`)

	labelledSecretPattern = regexp.MustCompile(`(?i)\b(password|passwd|pwd|token|key|secret|api_key|credential)\s*[:=]\s*\S+`)
	inlineSecretPattern   = regexp.MustCompile(`(?i)\b(password|token|secret|pwd)\s+\S+`)

	hexTokenPattern       = regexp.MustCompile(`^[a-fA-F0-9]{32,}$`)
	base64TokenPattern    = regexp.MustCompile(`^[A-Za-z0-9+/]{24,}={0,2}$`)
	tokenCandidatePattern = regexp.MustCompile(`[A-Za-z0-9_+/=\-]{16,}`)
)

// sensitivePatterns flag text as sensitive and drive anonymization.
var sensitivePatterns = []*regexp.Regexp{
	labelledSecretPattern,
	inlineSecretPattern,
	ipPattern,
	emailPattern,
	phonePattern,
	urlPattern,
	jwtPattern,
	awsKeyPattern,
	gcpKeyPattern,
	slackPattern,
	githubPattern,
	stripePattern,
}

func isPlaceholder(value string) bool {
	return placeholderPattern.MatchString(value)
}

func newPlaceholder(mapping map[string]string, original string) string {
	for {
		b := make([]byte, 4)
		_, _ = rand.Read(b)
		placeholder := "ANON_" + hex.EncodeToString(b)
		if _, taken := mapping[placeholder]; !taken {
			mapping[placeholder] = original
			return placeholder
		}
	}
}

func looksLikeToken(value string) bool {
	if isPlaceholder(value) {
		return false
	}
	if hexTokenPattern.MatchString(value) || base64TokenPattern.MatchString(value) {
		return true
	}
	if len(value) < 20 {
		return false
	}
	hasAlpha := strings.IndexFunc(value, func(r rune) bool {
		return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
	}) >= 0
	hasDigit := strings.IndexFunc(value, func(r rune) bool { return r >= '0' && r <= '9' }) >= 0
	hasSep := strings.ContainsAny(value, "+/=_-")
	return hasAlpha && (hasDigit || hasSep)
}

// Anonymize replaces secrets, contact data and opaque tokens with
// placeholders and returns the mapping needed to restore them.
func Anonymize(text string) (string, map[string]string) {
	mapping := make(map[string]string)
	anonymized := text
	for _, pattern := range sensitivePatterns {
		anonymized = pattern.ReplaceAllStringFunc(anonymized, func(original string) string {
			if isPlaceholder(original) {
				return original
			}
			return newPlaceholder(mapping, original)
		})
	}
	anonymized = tokenCandidatePattern.ReplaceAllStringFunc(anonymized, func(candidate string) string {
		if !looksLikeToken(candidate) {
			return candidate
		}
		return newPlaceholder(mapping, candidate)
	})
	return anonymized, mapping
}

// Restore substitutes placeholders in text back to their originals.
func Restore(text string, mapping map[string]string) string {
	restored := text
	for placeholder, original := range mapping {
		restored = strings.ReplaceAll(restored, placeholder, original)
	}
	return restored
}

// RestoreAnalysis restores placeholders across every string field of an
// analysis result.
func RestoreAnalysis(a Analysis, mapping map[string]string) Analysis {
	if len(mapping) == 0 {
		return a
	}
	a.Title = Restore(a.Title, mapping)
	a.ShortTitle = Restore(a.ShortTitle, mapping)
	a.Summary = Restore(a.Summary, mapping)
	tags := make([]string, len(a.Tags))
	for i, tag := range a.Tags {
		tags[i] = Restore(tag, mapping)
	}
	a.Tags = tags
	restored := make(map[string]string, len(a.Entities))
	for k, v := range a.Entities {
		restored[Restore(k, mapping)] = Restore(v, mapping)
	}
	a.Entities = restored
	return a
}

// DetectSensitive reports whether text contains secret-looking material.
func DetectSensitive(text string) bool {
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(text) {
			return true
		}
	}
	for _, candidate := range tokenCandidatePattern.FindAllString(text, -1) {
		if looksLikeToken(candidate) {
			return true
		}
	}
	return false
}

// ExtractEntities pulls contact-like entities (ips, emails, urls) out of the
// text for the heuristic analysis path.
func ExtractEntities(text string) map[string]string {
	entities := make(map[string]string)
	if ips := dedupe(ipPattern.FindAllString(text, -1)); len(ips) > 0 {
		entities["ips"] = strings.Join(ips, ", ")
	}
	if emails := dedupe(emailPattern.FindAllString(text, -1)); len(emails) > 0 {
		entities["emails"] = strings.Join(emails, ", ")
	}
	if urls := dedupe(urlPattern.FindAllString(text, -1)); len(urls) > 0 {
		entities["urls"] = strings.Join(urls, ", ")
	}
	return entities
}

func dedupe(items []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
