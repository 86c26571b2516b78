package triage

import (
	"regexp"
	"strings"

	"builddesk/internal/domain"
)

var (
	emailPattern     = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	urlPattern       = regexp.MustCompile(`https?://[^\s<>"']+`)
	errorCodePattern = regexp.MustCompile(`(?i)\b(?:error|err)(?:\s+code)?\s*[:#-]?\s*([a-z]*\d[a-z0-9_-]*)\b`)
	refCodePattern   = regexp.MustCompile(`\b[A-Z]{2,6}-\d{2,6}\b`)
	amountPattern    = regexp.MustCompile(`\$\s?\d[\d,]*(?:\.\d{1,2})?`)
)

// ExtractInfo pulls emails, URLs, error codes and currency amounts out of
// text. Keys are only present when something was found.
func ExtractInfo(text string) map[string][]string {
	info := make(map[string][]string)

	addAll(info, domain.InfoEmails, emailPattern.FindAllString(text, -1))

	var urls []string
	for _, u := range urlPattern.FindAllString(text, -1) {
		urls = append(urls, strings.TrimRight(u, ".,;:!?)"))
	}
	addAll(info, domain.InfoURLs, urls)

	var codes []string
	for _, m := range errorCodePattern.FindAllStringSubmatch(text, -1) {
		codes = append(codes, strings.ToUpper(m[1]))
	}
	codes = append(codes, refCodePattern.FindAllString(text, -1)...)
	addAll(info, domain.InfoErrorCodes, codes)

	var amounts []string
	for _, a := range amountPattern.FindAllString(text, -1) {
		amounts = append(amounts, strings.TrimRight(a, ","))
	}
	addAll(info, domain.InfoAmounts, amounts)

	return info
}

func addAll(info map[string][]string, key string, values []string) {
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		info[key] = append(info[key], v)
	}
}
