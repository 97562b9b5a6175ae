package wake

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// TriggerRoute is the in-app route for the dismiss-challenge screen.
const TriggerRoute = "/alarm/trigger"

// ErrMalformedPayload is returned for payloads or links without an alarm ID.
var ErrMalformedPayload = errors.New("malformed alarm payload")

// Route fallbacks for optional payload fields.
const (
	defaultLinkTime   = "00:00"
	defaultLinkPeriod = AM
)

// WithDefaults fills optional fields that are empty so a partially populated
// payload still routes. A recognised period is normalized; anything else is
// left for the link codec to reject.
func (p Payload) WithDefaults() Payload {
	if p.Time == "" {
		p.Time = defaultLinkTime
	}
	if strings.TrimSpace(string(p.Period)) == "" {
		p.Period = defaultLinkPeriod
	} else if period, err := ParsePeriod(string(p.Period)); err == nil {
		p.Period = period
	}
	if p.Challenge == "" {
		p.Challenge = DefaultChallenge
	}
	if p.ChallengeIcon == "" {
		p.ChallengeIcon = DefaultChallengeIcon
	}
	if p.Type == "" {
		p.Type = DefaultChallengeType
	}
	return p
}

// BuildTriggerLink renders the deep link for a payload. The alarm ID is
// required; every other field falls back to its default.
func BuildTriggerLink(p Payload) (string, error) {
	if strings.TrimSpace(p.AlarmID) == "" {
		return "", ErrMalformedPayload
	}
	p = p.WithDefaults()
	if _, err := ParsePeriod(string(p.Period)); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	fields := [][2]string{
		{"alarmId", p.AlarmID},
		{"time", p.Time},
		{"period", string(p.Period)},
		{"challenge", p.Challenge},
		{"challengeIcon", p.ChallengeIcon},
		{"type", p.Type},
	}
	var b strings.Builder
	b.WriteString(TriggerRoute)
	for i, f := range fields {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(f[0])
		b.WriteByte('=')
		b.WriteString(escapeComponent(f[1]))
	}
	return b.String(), nil
}

// ParseTriggerLink reverses BuildTriggerLink, applying the same defaults.
func ParseTriggerLink(link string) (Payload, error) {
	u, err := url.Parse(link)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if u.Path != TriggerRoute {
		return Payload{}, fmt.Errorf("%w: unexpected route %q", ErrMalformedPayload, u.Path)
	}
	q := u.Query()
	p := Payload{
		AlarmID:       q.Get("alarmId"),
		Time:          q.Get("time"),
		Period:        Period(q.Get("period")),
		Challenge:     q.Get("challenge"),
		ChallengeIcon: q.Get("challengeIcon"),
		Type:          q.Get("type"),
	}
	if strings.TrimSpace(p.AlarmID) == "" {
		return Payload{}, fmt.Errorf("%w: missing alarmId", ErrMalformedPayload)
	}
	p = p.WithDefaults()
	if _, err := ParsePeriod(string(p.Period)); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return p, nil
}

// escapeComponent percent-encodes everything outside the RFC 3986 unreserved
// set, except ':' and '@' which are legal in a query.
func escapeComponent(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) || c == ':' || c == '@' {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '_', c == '.', c == '~':
		return true
	}
	return false
}
