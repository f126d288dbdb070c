package security

// GuardConfig describes both policy axes. A zero DMPolicy is derived from
// DMAllowlist; a zero GroupPolicy means GroupOpen.
type GuardConfig struct {
	DMAllowlist    []string
	DMPolicy       DmPolicy
	GroupAllowlist []string
	GroupPolicy    GroupPolicy
}

// Guard enforces the DM and group policies. It is immutable after
// construction and safe for concurrent use without locking.
type Guard struct {
	dmAllowlist    []string
	dmPolicy       DmPolicy
	groupAllowlist []string
	groupPolicy    GroupPolicy
}

// NewGuard builds a guard from a DM allowlist alone, deriving the DM policy.
func NewGuard(allowedUsers []string) *Guard {
	return NewGuardWithConfig(GuardConfig{DMAllowlist: allowedUsers})
}

// NewGuardWithConfig builds a guard from explicit policies.
func NewGuardWithConfig(cfg GuardConfig) *Guard {
	dmPolicy := cfg.DMPolicy
	if dmPolicy == "" {
		dmPolicy = DmPolicyFromAllowlist(cfg.DMAllowlist)
	}
	groupPolicy := cfg.GroupPolicy
	if groupPolicy == "" {
		groupPolicy = GroupOpen
	}
	return &Guard{
		dmAllowlist:    cloneList(cfg.DMAllowlist),
		dmPolicy:       dmPolicy,
		groupAllowlist: cloneList(cfg.GroupAllowlist),
		groupPolicy:    groupPolicy,
	}
}

// IsDMAllowed checks identity against the DM policy.
func (g *Guard) IsDMAllowed(identity string) bool {
	return g.dmPolicy.Allows(g.dmAllowlist, identity)
}

// IsGroupAllowed checks identity against the group policy.
func (g *Guard) IsGroupAllowed(identity string) bool {
	return g.groupPolicy.Allows(g.groupAllowlist, identity)
}

// IsUserAllowed is the legacy name of IsDMAllowed.
func (g *Guard) IsUserAllowed(identity string) bool { return g.IsDMAllowed(identity) }

// IsAnyAllowed reports whether any of identities passes the DM check.
func (g *Guard) IsAnyAllowed(identities []string) bool {
	for _, id := range identities {
		if g.IsDMAllowed(id) {
			return true
		}
	}
	return false
}

func (g *Guard) DMPolicy() DmPolicy       { return g.dmPolicy }
func (g *Guard) GroupPolicy() GroupPolicy { return g.groupPolicy }

func cloneList(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
