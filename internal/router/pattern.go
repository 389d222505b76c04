package router

import (
	"errors"
	"fmt"
	"strings"

	"github.com/amoylab/janus/internal/protocol"
)

// ErrInvalidPattern is returned by Subscribe for an unusable pattern.
var ErrInvalidPattern = errors.New("invalid event pattern")

type matchKind int

const (
	matchAll matchKind = iota
	matchDomain
	matchMethod
)

// Pattern selects events by method name.
//
//	"*"                      every event
//	"Network.*" or "Network" every event of the Network domain
//	"Network.loadingFailed"  exactly that event
type Pattern struct {
	raw   string
	kind  matchKind
	value string
}

// ParsePattern validates and compiles a pattern.
func ParsePattern(s string) (Pattern, error) {
	switch {
	case s == "*":
		return Pattern{raw: s, kind: matchAll}, nil
	case s == "" || strings.HasPrefix(s, "."):
		return Pattern{}, fmt.Errorf("%w: %q", ErrInvalidPattern, s)
	case strings.HasSuffix(s, ".*"):
		domain := strings.TrimSuffix(s, ".*")
		if strings.Contains(domain, ".") || strings.Contains(domain, "*") {
			return Pattern{}, fmt.Errorf("%w: %q", ErrInvalidPattern, s)
		}
		return Pattern{raw: s, kind: matchDomain, value: domain}, nil
	case strings.Contains(s, "*"):
		return Pattern{}, fmt.Errorf("%w: %q", ErrInvalidPattern, s)
	case !strings.Contains(s, "."):
		return Pattern{raw: s, kind: matchDomain, value: s}, nil
	default:
		return Pattern{raw: s, kind: matchMethod, value: s}, nil
	}
}

// Match reports whether the event method is selected.
func (p Pattern) Match(method string) bool {
	switch p.kind {
	case matchAll:
		return true
	case matchDomain:
		return protocol.DomainOf(method) == p.value
	default:
		return method == p.value
	}
}

func (p Pattern) String() string { return p.raw }
