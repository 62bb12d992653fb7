package toolpolicy

import "github.com/alvesfc/openbotx/internal/model"

// ToolInfo describes one catalog entry subject to filtering.
type ToolInfo struct {
	Name             string
	PrimaryGroup     string
	SecondaryGroups  []string
	ApprovalRequired bool
	Dangerous        bool
	AdminOnly        bool
}

// Decision is the outcome of evaluating one tool against a policy.
type Decision struct {
	Allowed           bool
	ApprovalRequired  bool
	ElevationRequired bool
}

// Policy is the filtering configuration applied to a tool catalog: an
// explicit deny/allow list, a set of groups always treated as dangerous
// regardless of the tool's own Dangerous flag, and per-profile group
// overrides layered on top of the base profile->groups map.
type Policy struct {
	Denylist        map[string]bool
	Allowlist       map[string]bool
	DangerousGroups map[string]bool
	GroupOverrides  map[model.ToolProfile][]string
}

// baseProfileGroups is the §4.I profile->allowed-groups map.
var baseProfileGroups = map[model.ToolProfile]map[string]bool{
	model.ProfileMinimal:   {"system": true},
	model.ProfileCoding:    {"system": true, "fs": true, "database": true},
	model.ProfileMessaging: {"system": true, "messaging": true, "web": true},
}

// Evaluate applies the §4.I seven-step rule, stopping at the first
// applicable rule, for a single tool under the given profile/elevation.
func (p Policy) Evaluate(tool ToolInfo, profile model.ToolProfile, elevated bool) Decision {
	if p.Denylist[tool.Name] {
		return Decision{Allowed: false}
	}
	if p.Allowlist[tool.Name] {
		return Decision{Allowed: true, ApprovalRequired: tool.ApprovalRequired}
	}
	if tool.AdminOnly && !elevated {
		return Decision{Allowed: false, ElevationRequired: true}
	}
	if (tool.Dangerous || p.DangerousGroups[tool.PrimaryGroup]) && !elevated {
		return Decision{Allowed: false, ElevationRequired: true}
	}

	allowedGroups := p.allowedGroupsFor(profile)
	if allowedGroups[tool.PrimaryGroup] {
		return Decision{Allowed: true, ApprovalRequired: tool.ApprovalRequired}
	}
	for _, g := range tool.SecondaryGroups {
		if allowedGroups[g] {
			return Decision{Allowed: true, ApprovalRequired: tool.ApprovalRequired}
		}
	}

	if tool.PrimaryGroup == "" && len(tool.SecondaryGroups) == 0 && profile == model.ProfileFull {
		return Decision{Allowed: true, ApprovalRequired: tool.ApprovalRequired}
	}

	return Decision{Allowed: false}
}

// allowedGroupsFor returns the profile's base group set (every group, for
// ProfileFull) with any configured override applied set-wise on top.
func (p Policy) allowedGroupsFor(profile model.ToolProfile) map[string]bool {
	groups := map[string]bool{}
	if profile == model.ProfileFull {
		groups["system"] = true
		groups["fs"] = true
		groups["database"] = true
		groups["messaging"] = true
		groups["web"] = true
	} else {
		for g := range baseProfileGroups[profile] {
			groups[g] = true
		}
	}
	for _, g := range p.GroupOverrides[profile] {
		groups[g] = true
	}
	return groups
}

// Filter evaluates every tool in catalog and returns only those allowed.
func (p Policy) Filter(catalog []ToolInfo, profile model.ToolProfile, elevated bool) []ToolInfo {
	var out []ToolInfo
	for _, t := range catalog {
		if p.Evaluate(t, profile, elevated).Allowed {
			out = append(out, t)
		}
	}
	return out
}
