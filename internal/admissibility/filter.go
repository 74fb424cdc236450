package admissibility

import (
	"net/url"
	"strconv"
	"strings"
)

// Result classifies a locator ahead of any network I/O. A rejection is
// a classification outcome, not an error: Skip tells the caller to pass
// the item through without fetching, Reason is kept for audit display.
type Result struct {
	Valid  bool   `json:"valid"`
	Skip   bool   `json:"skip"`
	Reason string `json:"reason,omitempty"`
}

const (
	ReasonInternalReference = "internal reference"
	ReasonInvalidFormat     = "invalid format"
	ReasonUnsupportedScheme = "unsupported scheme"
	ReasonBlockedDomain     = "blocked domain"
	ReasonPrivateAddress    = "private address"
)

// Filter decides whether a URL is safe and likely fetchable. The
// blocked-domain list is configuration (social networks, auth-walled
// collab tools, paywalled publishers), not business logic.
type Filter struct {
	blockedDomains []string
}

func NewFilter(blockedDomains []string) *Filter {
	lowered := make([]string, len(blockedDomains))
	for i, d := range blockedDomains {
		lowered[i] = strings.ToLower(d)
	}
	return &Filter{blockedDomains: lowered}
}

// Classify is pure: no I/O, no logging, no state.
func (f *Filter) Classify(locator string) Result {
	if strings.HasPrefix(locator, "#") {
		return Result{Valid: false, Skip: true, Reason: ReasonInternalReference}
	}

	u, err := url.Parse(locator)
	if err != nil {
		return Result{Valid: false, Skip: true, Reason: ReasonInvalidFormat}
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return Result{Valid: false, Skip: true, Reason: ReasonUnsupportedScheme}
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return Result{Valid: false, Skip: true, Reason: ReasonInvalidFormat}
	}

	for _, blocked := range f.blockedDomains {
		if strings.Contains(host, blocked) {
			return Result{Valid: false, Skip: true, Reason: ReasonBlockedDomain}
		}
	}

	if isPrivateHost(host) {
		return Result{Valid: false, Skip: true, Reason: ReasonPrivateAddress}
	}

	return Result{Valid: true}
}

// isPrivateHost matches loopback, RFC1918 and link-local naming
// patterns without resolving the host.
func isPrivateHost(host string) bool {
	if host == "localhost" || strings.HasSuffix(host, ".local") {
		return true
	}
	if strings.HasPrefix(host, "127.") || strings.HasPrefix(host, "192.168.") || strings.HasPrefix(host, "10.") {
		return true
	}
	for i := 16; i <= 31; i++ {
		if strings.HasPrefix(host, "172."+strconv.Itoa(i)+".") {
			return true
		}
	}
	return false
}
