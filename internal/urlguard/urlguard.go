// Package urlguard validates and sanitizes URLs before the research agent
// fetches or cites them. Only an allow-list of known-good domains passes;
// direct IP access, private ranges, blocked TLDs, embedded credentials and
// common injection patterns are rejected.
package urlguard

import (
	"fmt"
	"net/netip"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
)

const maxURLLength = 2048

// Validator checks URLs against an allow-list and structural safety rules.
type Validator struct {
	allowedDomains map[string]struct{}
	blockedTLDs    map[string]struct{}
	blockedRanges  []netip.Prefix
	logger         *zap.Logger
}

var maliciousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(eval\(|exec\(|system\()`),
	regexp.MustCompile(`\.\./`),
	regexp.MustCompile(`(?i)(<script|javascript:)`),
	regexp.MustCompile(`(?i)(union.*select|select.*from)`),
	regexp.MustCompile(`(%[0-9a-fA-F]{2}){3,}`),
}

// trackingParamPrefixes match query parameters stripped during sanitization.
var trackingParamPrefixes = []string{
	"utm_", "fbclid", "gclid", "_ga",
	"ref", "source", "campaign", "medium",
	"term", "content", "affiliate", "_hsenc",
	"_hsmi", "mc_", "mkt_", "sb_",
}

func defaultAllowedDomains() []string {
	return []string{
		// Code repositories
		"github.com", "gitlab.com", "bitbucket.org",
		// Academic sources
		"arxiv.org", "wikipedia.org", "scholar.google.com",
		"research.google.com", "science.org", "nature.com",
		"ieee.org", "doi.org", "springer.com", "acm.org",
		"sciencedirect.com", "jstor.org", "ssrn.com",
		// Documentation
		"python.org", "docs.python.org", "readthedocs.io",
		"docs.scipy.org", "numpy.org", "pandas.pydata.org",
		"pytorch.org", "tensorflow.org",
		// Package repositories
		"pypi.org", "conda.io", "anaconda.org",
		// Cloud platforms
		"aws.amazon.com", "cloud.google.com", "azure.microsoft.com",
		// Development resources
		"stackoverflow.com", "developer.mozilla.org",
	}
}

func defaultBlockedTLDs() []string {
	return []string{"xyz", "top", "pw", "tk", "ml"}
}

func defaultBlockedRanges() []string {
	return []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"127.0.0.0/8",
		"169.254.0.0/16",
		"0.0.0.0/8",
		"fc00::/7",
		"fe80::/10",
	}
}

// Config overrides the built-in allow and block lists. Empty fields keep
// the defaults; ExtraAllowedDomains always extends the allow-list.
type Config struct {
	AllowedDomains      []string `yaml:"allowed_domains" env:"URLGUARD_ALLOWED_DOMAINS"`
	ExtraAllowedDomains []string `yaml:"extra_allowed_domains" env:"URLGUARD_EXTRA_ALLOWED_DOMAINS"`
	BlockedTLDs         []string `yaml:"blocked_tlds" env:"URLGUARD_BLOCKED_TLDS"`
}

// NewValidator creates a validator with the default lists overridden by cfg.
func NewValidator(cfg Config, logger *zap.Logger) *Validator {
	allowed := cfg.AllowedDomains
	if len(allowed) == 0 {
		allowed = defaultAllowedDomains()
	}
	allowed = append(allowed, cfg.ExtraAllowedDomains...)

	tlds := cfg.BlockedTLDs
	if len(tlds) == 0 {
		tlds = defaultBlockedTLDs()
	}

	v := &Validator{
		allowedDomains: make(map[string]struct{}, len(allowed)),
		blockedTLDs:    make(map[string]struct{}, len(tlds)),
		logger:         logger.With(zap.String("component", "urlguard")),
	}
	for _, d := range allowed {
		v.allowedDomains[strings.ToLower(d)] = struct{}{}
	}
	for _, t := range tlds {
		v.blockedTLDs[strings.ToLower(t)] = struct{}{}
	}
	for _, cidr := range defaultBlockedRanges() {
		prefix, err := netip.ParsePrefix(cidr)
		if err != nil {
			continue
		}
		v.blockedRanges = append(v.blockedRanges, prefix)
	}
	return v
}

// Check reports whether raw is safe to fetch. On rejection the returned
// reason is suitable for logs.
func (v *Validator) Check(raw string) (bool, string) {
	if raw == "" || len(raw) > maxURLLength {
		return false, "URL exceeds maximum length"
	}

	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return false, "Invalid URL format"
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false, "Invalid URL scheme"
	}
	if u.User != nil {
		return false, "Credentials in URL not allowed"
	}

	host := strings.ToLower(u.Hostname())
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return false, "Localhost access not allowed"
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		for _, prefix := range v.blockedRanges {
			if prefix.Contains(addr) {
				return false, fmt.Sprintf("IP in blocked range %s", prefix)
			}
		}
		return false, "Direct IP access not allowed"
	}

	for _, p := range maliciousPatterns {
		if p.MatchString(raw) {
			return false, "Potentially malicious pattern detected"
		}
	}

	domain := registrableDomain(host)
	if tld := domain[strings.LastIndex(domain, ".")+1:]; tld != "" {
		if _, blocked := v.blockedTLDs[tld]; blocked {
			return false, "Blocked TLD"
		}
	}

	if _, ok := v.allowedDomains[host]; !ok {
		if _, ok := v.allowedDomains[domain]; !ok {
			return false, fmt.Sprintf("Domain %s not in allowed list", domain)
		}
	}

	return true, ""
}

// Sanitize normalizes a URL: lowercases scheme and host, strips default
// ports, credentials, fragments and tracking parameters, and sorts the
// remaining query for a stable form. A URL that can not be parsed is
// returned unchanged.
func (v *Validator) Sanitize(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.User = nil
	u.Fragment = ""

	host := strings.ToLower(u.Hostname())
	if port := u.Port(); port != "" {
		if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
			u.Host = host
		} else {
			u.Host = host + ":" + port
		}
	} else {
		u.Host = host
	}

	if u.Path == "" {
		u.Path = "/"
	}
	for strings.Contains(u.Path, "//") {
		u.Path = strings.ReplaceAll(u.Path, "//", "/")
	}

	if u.RawQuery != "" {
		values := u.Query()
		keys := make([]string, 0, len(values))
		for k := range values {
			if isTrackingParam(k) {
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var b strings.Builder
		for _, k := range keys {
			for _, val := range values[k] {
				if b.Len() > 0 {
					b.WriteByte('&')
				}
				b.WriteString(url.QueryEscape(k))
				b.WriteByte('=')
				b.WriteString(url.QueryEscape(val))
			}
		}
		u.RawQuery = b.String()
	}

	return u.String()
}

// Filter returns the safe, sanitized subset of urls, logging each rejection.
func (v *Validator) Filter(urls []string) []string {
	kept := make([]string, 0, len(urls))
	for _, raw := range urls {
		ok, reason := v.Check(raw)
		if !ok {
			v.logger.Warn("blocked unsafe URL",
				zap.String("url", raw),
				zap.String("reason", reason),
			)
			continue
		}
		kept = append(kept, v.Sanitize(raw))
	}
	return kept
}

func isTrackingParam(key string) bool {
	k := strings.ToLower(key)
	for _, prefix := range trackingParamPrefixes {
		if strings.Contains(k, prefix) {
			return true
		}
	}
	return false
}

// registrableDomain reduces a host to its last two labels, which is how the
// allow-list entries are written. Multi-label suffixes like co.uk are not
// supported; such hosts can be allow-listed verbatim instead.
func registrableDomain(host string) string {
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return host
	}
	return strings.Join(labels[len(labels)-2:], ".")
}
