// Package security holds the access policies applied to inbound senders.
// Everything here is pure: decisions depend only on the policy, the
// allowlist and the candidate identity.
package security

import (
	"fmt"
	"strings"
)

// Wildcard is the allowlist entry that admits every non-empty identity.
const Wildcard = "*"

// DmPolicy governs direct messages.
type DmPolicy string

const (
	// DmPairing accepts DMs from allow-listed identities only.
	DmPairing DmPolicy = "pairing"
	// DmOpen accepts DMs from anyone.
	DmOpen DmPolicy = "open"
	// DmDeny rejects every DM.
	DmDeny DmPolicy = "deny"
)

// GroupPolicy governs group messages.
type GroupPolicy string

const (
	// GroupAllowlist accepts group messages from allow-listed identities only.
	GroupAllowlist GroupPolicy = "allowlist"
	// GroupOpen accepts group messages from anyone.
	GroupOpen GroupPolicy = "open"
	// GroupDeny rejects every group message.
	GroupDeny GroupPolicy = "deny"
)

type mode int

const (
	modeDeny mode = iota
	modeOpen
	modeAllowlist
)

// decide is the single decision table shared by both policy axes.
func decide(m mode, allowlist []string, identity string) bool {
	if identity == "" {
		return false
	}
	switch m {
	case modeOpen:
		return true
	case modeAllowlist:
		for _, entry := range allowlist {
			if entry == Wildcard || entry == identity {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func (p DmPolicy) mode() mode {
	switch p {
	case DmOpen:
		return modeOpen
	case DmPairing:
		return modeAllowlist
	default:
		return modeDeny
	}
}

func (p GroupPolicy) mode() mode {
	switch p {
	case GroupOpen:
		return modeOpen
	case GroupAllowlist:
		return modeAllowlist
	default:
		return modeDeny
	}
}

// Allows decides whether identity may send a DM under p.
func (p DmPolicy) Allows(allowlist []string, identity string) bool {
	return decide(p.mode(), allowlist, identity)
}

// Allows decides whether identity may post in a group under p.
func (p GroupPolicy) Allows(allowlist []string, identity string) bool {
	return decide(p.mode(), allowlist, identity)
}

// DmPolicyFromAllowlist derives a policy for configurations that only carry
// an allowlist: empty → deny, contains "*" → open, otherwise pairing.
func DmPolicyFromAllowlist(allowlist []string) DmPolicy {
	if len(allowlist) == 0 {
		return DmDeny
	}
	for _, entry := range allowlist {
		if entry == Wildcard {
			return DmOpen
		}
	}
	return DmPairing
}

func (p DmPolicy) String() string    { return string(p) }
func (p GroupPolicy) String() string { return string(p) }

// UnmarshalText accepts "pairing" (alias "allowlist"), "open" and "deny".
func (p *DmPolicy) UnmarshalText(text []byte) error {
	switch v := strings.ToLower(strings.TrimSpace(string(text))); v {
	case "pairing", "allowlist":
		*p = DmPairing
	case "open":
		*p = DmOpen
	case "deny":
		*p = DmDeny
	default:
		return fmt.Errorf("unknown dm policy %q", v)
	}
	return nil
}

// UnmarshalText accepts "allowlist", "open" and "deny".
func (p *GroupPolicy) UnmarshalText(text []byte) error {
	switch v := strings.ToLower(strings.TrimSpace(string(text))); v {
	case "allowlist":
		*p = GroupAllowlist
	case "open":
		*p = GroupOpen
	case "deny":
		*p = GroupDeny
	default:
		return fmt.Errorf("unknown group policy %q", v)
	}
	return nil
}
