package skills

import (
	"context"
	"os/exec"
	"regexp"
	"runtime"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// EligibilityContext supplies the host facts a skill's Eligibility is
// checked against.
type EligibilityContext struct {
	OS                 string
	ConfigFlags        map[string]bool
	AvailableProviders map[string]bool
	LookPath           func(binary string) error // nil uses os/exec.LookPath
}

func (c EligibilityContext) lookPath(bin string) error {
	if c.LookPath != nil {
		return c.LookPath(bin)
	}
	_, err := exec.LookPath(bin)
	return err
}

// Registry holds the set of currently registered skills, resolved from
// four ordered source directories with precedence extra < bundled <
// managed < workspace.
type Registry struct {
	mu         sync.RWMutex
	bySource   map[Source][]Definition
	registered map[string]Definition
	ineligible map[string][]Ineligible
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		bySource:   make(map[Source][]Definition),
		registered: make(map[string]Definition),
		ineligible: make(map[string][]Ineligible),
	}
}

// Dirs names the four source directories in ascending precedence order.
type Dirs struct {
	Extra     string
	Bundled   string
	Managed   string
	Workspace string
}

// LoadAll loads every source directory (in precedence order) and evaluates
// eligibility/registration for each discovered skill.
func (r *Registry) LoadAll(dirs Dirs, ectx EligibilityContext) {
	order := []struct {
		path string
		src  Source
	}{
		{dirs.Extra, SourceExtra},
		{dirs.Bundled, SourceBundled},
		{dirs.Managed, SourceManaged},
		{dirs.Workspace, SourceWorkspace},
	}
	for _, o := range order {
		defs, bad := LoadDir(o.path, o.src)
		for _, b := range bad {
			r.recordIneligible(b.Path, b)
		}
		for _, d := range defs {
			r.Register(d, ectx)
		}
	}
}

// LoadAllCached behaves like LoadAll, but resolves the managed-tier
// directory through cache first when cache is non-nil: a hit for
// generation skips re-reading/re-parsing the directory, and a miss
// populates the cache with the freshly parsed definitions.
func (r *Registry) LoadAllCached(ctx context.Context, dirs Dirs, ectx EligibilityContext, cache *ManagedCache, generation string) {
	for _, o := range []struct {
		path string
		src  Source
	}{
		{dirs.Extra, SourceExtra},
		{dirs.Bundled, SourceBundled},
	} {
		defs, bad := LoadDir(o.path, o.src)
		for _, b := range bad {
			r.recordIneligible(b.Path, b)
		}
		for _, d := range defs {
			r.Register(d, ectx)
		}
	}

	managed, ok := cache.Get(ctx, generation)
	if !ok {
		var bad []Ineligible
		managed, bad = LoadDir(dirs.Managed, SourceManaged)
		for _, b := range bad {
			r.recordIneligible(b.Path, b)
		}
		cache.Set(ctx, generation, managed)
	}
	for _, d := range managed {
		r.Register(d, ectx)
	}

	defs, bad := LoadDir(dirs.Workspace, SourceWorkspace)
	for _, b := range bad {
		r.recordIneligible(b.Path, b)
	}
	for _, d := range defs {
		r.Register(d, ectx)
	}
}

func (r *Registry) recordIneligible(key string, in Ineligible) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ineligible[key] = append(r.ineligible[key], in)
}

// evalEligibility checks a Definition's Eligibility against ectx, returning
// ("", true) when eligible or (reason, false) otherwise.
func evalEligibility(d Definition, ectx EligibilityContext) (IneligibleKind, string, bool) {
	if len(d.Eligibility.OS) > 0 {
		host := ectx.OS
		if host == "" {
			host = runtime.GOOS
		}
		ok := false
		for _, want := range d.Eligibility.OS {
			if strings.EqualFold(want, host) {
				ok = true
				break
			}
		}
		if !ok {
			return ReasonOS, "host os " + host + " not in " + strings.Join(d.Eligibility.OS, ","), false
		}
	}
	for _, bin := range d.Eligibility.RequiredBinaries {
		if err := ectx.lookPath(bin); err != nil {
			return ReasonBinary, "required binary not found: " + bin, false
		}
	}
	for _, flag := range d.Eligibility.RequiredConfig {
		if !ectx.ConfigFlags[flag] {
			return ReasonConfig, "required config flag not enabled: " + flag, false
		}
	}
	for _, p := range d.Eligibility.RequiredProviders {
		if !ectx.AvailableProviders[p] {
			return ReasonProvider, "required provider not available: " + p, false
		}
	}
	return "", "", true
}

// Register evaluates eligibility for d and, if eligible, registers it
// subject to source-precedence replacement rules.
func (r *Registry) Register(d Definition, ectx EligibilityContext) {
	if kind, detail, ok := evalEligibility(d, ectx); !ok {
		r.mu.Lock()
		r.ineligible[d.ID] = append(r.ineligible[d.ID], Ineligible{Path: d.Path, ID: d.ID, Kind: kind, Detail: detail})
		r.mu.Unlock()
		log.Debug().Str("skill", d.ID).Str("reason", string(kind)).Str("detail", detail).Msg("skill_ineligible")
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.bySource[d.Source] = append(r.bySource[d.Source], d)

	existing, ok := r.registered[d.ID]
	if !ok || d.Source.precedence() >= existing.Source.precedence() {
		r.registered[d.ID] = d
	}
}

// Get returns the currently registered definition for id, if any.
func (r *Registry) Get(id string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.registered[id]
	return d, ok
}

// All returns every currently registered skill, in no particular order.
func (r *Registry) All() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Definition, 0, len(r.registered))
	for _, d := range r.registered {
		out = append(out, d)
	}
	return out
}

// Ineligible returns the recorded ineligibility reasons keyed by skill id
// or file path.
func (r *Registry) Ineligible() map[string][]Ineligible {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string][]Ineligible, len(r.ineligible))
	for k, v := range r.ineligible {
		out[k] = append([]Ineligible(nil), v...)
	}
	return out
}

// FindMatchingSkills returns up to limit registered skills whose triggers
// match text: any keyword substring match (case-insensitive), OR any regex
// match, OR any intent exact match (case-insensitive). Order follows the
// registry's internal registration order recorded at Register time.
func (r *Registry) FindMatchingSkills(text string, limit int) []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lowered := strings.ToLower(text)
	var matches []Definition
	for _, d := range r.orderedLocked() {
		if skillMatches(d, text, lowered) {
			matches = append(matches, d)
			if limit > 0 && len(matches) >= limit {
				break
			}
		}
	}
	return matches
}

// orderedLocked returns registered skills sorted by the order their ids
// first appeared in any bySource slice, which approximates registration
// order across the four tiers (extra, bundled, managed, workspace).
func (r *Registry) orderedLocked() []Definition {
	seen := make(map[string]bool)
	var ids []string
	for _, src := range []Source{SourceExtra, SourceBundled, SourceManaged, SourceWorkspace} {
		for _, d := range r.bySource[src] {
			if !seen[d.ID] {
				seen[d.ID] = true
				ids = append(ids, d.ID)
			}
		}
	}
	out := make([]Definition, 0, len(ids))
	for _, id := range ids {
		if d, ok := r.registered[id]; ok {
			out = append(out, d)
		}
	}
	return out
}

func skillMatches(d Definition, original, lowered string) bool {
	for _, kw := range d.Triggers.Keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(kw)) {
			return true
		}
	}
	for _, pattern := range d.Triggers.Regexes {
		re, err := regexp.Compile(pattern)
		if err != nil {
			continue
		}
		if re.MatchString(original) {
			return true
		}
	}
	for _, intent := range d.Triggers.Intents {
		if strings.EqualFold(intent, original) {
			return true
		}
	}
	return false
}
