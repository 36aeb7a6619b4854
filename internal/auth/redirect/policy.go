// Package redirect decides where a freshly signed-in customer lands.
package redirect

import (
	"net/url"
	"slices"
	"strings"

	dErrors "luwei/pkg/domain-errors"
	"luwei/pkg/email"
)

// Policy maps the host of a client-supplied hint to a configured landing URL.
// Hints never pass through verbatim, so the login endpoint cannot be used as an
// open redirect.
type Policy struct {
	defaultURL string
	hosts      map[string]string
	restricted map[string][]string
}

// NewPolicy builds a Policy. restricted maps a landing URL to the normalized
// emails allowed to land there.
func NewPolicy(defaultURL string, hosts map[string]string, restricted map[string][]string) *Policy {
	p := &Policy{
		defaultURL: defaultURL,
		hosts:      make(map[string]string, len(hosts)),
		restricted: make(map[string][]string, len(restricted)),
	}
	if p.defaultURL == "" {
		p.defaultURL = "/"
	}
	for host, landing := range hosts {
		p.hosts[strings.ToLower(host)] = landing
	}
	for landing, emails := range restricted {
		allowed := make([]string, 0, len(emails))
		for _, e := range emails {
			allowed = append(allowed, email.Normalize(e))
		}
		p.restricted[landing] = allowed
	}
	return p
}

// RestrictTo builds the restriction map handing every URL in urls to the same
// set of emails.
func RestrictTo(urls []string, emails []string) map[string][]string {
	out := make(map[string][]string, len(urls))
	for _, u := range urls {
		out[u] = slices.Clone(emails)
	}
	return out
}

// Resolve returns the landing URL for hint. A restricted landing URL requested
// by an email outside its allow list is a forbidden error.
func (p *Policy) Resolve(hint, address string) (string, error) {
	landing := p.lookup(hint)
	if allowed, ok := p.restricted[landing]; ok {
		if !slices.Contains(allowed, email.Normalize(address)) {
			return "", dErrors.New(dErrors.CodeForbidden, "account may not sign in to this destination")
		}
	}
	return landing, nil
}

func (p *Policy) lookup(hint string) string {
	hint = strings.TrimSpace(hint)
	if hint == "" {
		return p.defaultURL
	}
	u, err := url.Parse(hint)
	if err != nil || u.Host == "" {
		return p.defaultURL
	}
	if landing, ok := p.hosts[strings.ToLower(u.Hostname())]; ok {
		return landing
	}
	if landing, ok := p.hosts[strings.ToLower(u.Host)]; ok {
		return landing
	}
	return p.defaultURL
}
