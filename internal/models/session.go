package models

import (
	"strings"
	"time"
)

type Cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain"`
}

// MatchesHost reports whether the cookie should be sent to host.
func (c Cookie) MatchesHost(host string) bool {
	domain := strings.ToLower(strings.TrimPrefix(c.Domain, "."))
	if domain == "" {
		return true
	}
	host = strings.ToLower(host)
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// RequestIdentity lets a stateless fetch continue a rendering session.
// It is only valid for the crawl pass of the timeframe that captured it.
type RequestIdentity struct {
	Timeframe  TimeframeKey
	Cookies    []Cookie
	UserAgent  string
	CapturedAt time.Time
}

// Snapshot is the stored output of one timeframe of one run.
type Snapshot struct {
	RunID      string               `json:"run_id"`
	Window     TimeframeWindow      `json:"window"`
	Products   []*NormalizedProduct `json:"products"`
	CapturedAt time.Time            `json:"captured_at"`
}
