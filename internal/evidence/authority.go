// Package evidence classifies the sources cited by verification results
// into authority tiers.
package evidence

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/ppiankov/veristream/internal/model"
)

// Classifier assigns authority tiers to cited source URLs
type Classifier struct {
	primary   map[string]bool
	secondary map[string]bool
	patterns  []*regexp.Regexp // URL patterns that mark a primary source
}

// NewClassifier builds a classifier from configuration. A nil config uses
// the built-in domain lists.
func NewClassifier(config *model.AuthorityConfig) *Classifier {
	if config == nil {
		config = &model.DefaultConfig().Authority
	}

	c := &Classifier{
		primary:   make(map[string]bool, len(config.PrimaryDomains)),
		secondary: make(map[string]bool, len(config.SecondaryDomains)),
	}
	for _, domain := range config.PrimaryDomains {
		c.primary[domain] = true
	}
	for _, domain := range config.SecondaryDomains {
		c.secondary[domain] = true
	}
	for _, pattern := range config.PrimaryPatterns {
		if re, err := regexp.Compile(pattern); err == nil {
			c.patterns = append(c.patterns, re)
		}
	}
	return c
}

// Classify maps a URL to its authority tier
func (c *Classifier) Classify(rawURL string) model.AuthorityTier {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return model.TierTertiary
	}

	host := parsed.Hostname()

	if matchDomain(c.primary, host) {
		return model.TierPrimary
	}
	if matchDomain(c.secondary, host) {
		return model.TierSecondary
	}

	for _, re := range c.patterns {
		if re.MatchString(rawURL) {
			return model.TierPrimary
		}
	}

	// Government and academic hosts are primary even when unlisted.
	if strings.HasSuffix(host, ".gov") || strings.HasSuffix(host, ".edu") || strings.HasSuffix(host, ".ac.uk") {
		return model.TierPrimary
	}

	return model.TierTertiary
}

// Annotate classifies every source in place
func (c *Classifier) Annotate(sources []model.Source) {
	for i := range sources {
		sources[i].Authority = c.Classify(sources[i].URL)
	}
}

// AnnotateResult classifies the sources of one verification result
func (c *Classifier) AnnotateResult(r *model.VerificationResult) {
	c.Annotate(r.Sources)
}

// matchDomain reports whether host equals a listed domain or is one of its
// subdomains
func matchDomain(domains map[string]bool, host string) bool {
	if domains[host] {
		return true
	}
	for domain := range domains {
		if strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}
