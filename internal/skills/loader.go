package skills

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const skillFileBase = "skill"

var skillFileExts = []string{".md", ".yaml", ".yml"}

// frontmatter is the declarative shape of a skill document.
type frontmatter struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Triggers    struct {
		Keywords []string `yaml:"keywords"`
		Regexes  []string `yaml:"regexes"`
		Intents  []string `yaml:"intents"`
	} `yaml:"triggers"`
	Tools    []string `yaml:"tools"`
	Security struct {
		ApprovalRequired bool     `yaml:"approval_required"`
		AdminOnly        bool     `yaml:"admin_only"`
		AllowChannels    []string `yaml:"allow_channels"`
		DenyChannels     []string `yaml:"deny_channels"`
	} `yaml:"security"`
	Eligibility struct {
		OS                []string `yaml:"os"`
		RequiredBinaries  []string `yaml:"required_binaries"`
		RequiredConfig    []string `yaml:"required_config"`
		RequiredProviders []string `yaml:"required_providers"`
	} `yaml:"eligibility"`
}

// discoverSkillFiles walks root looking for skill.<md|yaml|yml> files,
// case-insensitive, skipping dot-directories.
func discoverSkillFiles(root string) []string {
	var paths []string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		name := strings.ToLower(d.Name())
		ext := filepath.Ext(name)
		base := strings.TrimSuffix(name, ext)
		if base != skillFileBase {
			return nil
		}
		for _, want := range skillFileExts {
			if ext == want {
				paths = append(paths, path)
				return nil
			}
		}
		return nil
	})
	return paths
}

// parseSkillFile reads a skill document and returns the raw front-matter
// plus free-text body (empty for .yaml/.yml files, which are front-matter
// only).
func parseSkillFile(path string) (frontmatter, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return frontmatter{}, "", fmt.Errorf("read skill file: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		var fm frontmatter
		if err := yaml.Unmarshal(data, &fm); err != nil {
			return frontmatter{}, "", fmt.Errorf("parse yaml skill: %w", err)
		}
		return fm, "", nil
	}

	raw := string(data)
	const delim = "---"
	lines := strings.Split(raw, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != delim {
		return frontmatter{}, "", fmt.Errorf("missing front-matter delimited by ---")
	}
	var fmLines []string
	bodyStart := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == delim {
			bodyStart = i + 1
			break
		}
		fmLines = append(fmLines, lines[i])
	}
	if bodyStart == -1 {
		return frontmatter{}, "", fmt.Errorf("unterminated front-matter")
	}
	var fm frontmatter
	if err := yaml.Unmarshal([]byte(strings.Join(fmLines, "\n")), &fm); err != nil {
		return frontmatter{}, "", fmt.Errorf("parse yaml front-matter: %w", err)
	}
	body := strings.TrimSpace(strings.Join(lines[bodyStart:], "\n"))
	return fm, body, nil
}

// LoadDir discovers and parses every skill document anywhere under dir
// (dot-directories are skipped), tagging each Definition with source. It never evaluates eligibility or
// precedence; that is Registry's job.
func LoadDir(dir string, source Source) ([]Definition, []Ineligible) {
	var defs []Definition
	var bad []Ineligible
	if strings.TrimSpace(dir) == "" {
		return defs, bad
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		log.Debug().Str("dir", dir).Msg("skills_source_dir_absent")
		return defs, bad
	}

	for _, path := range discoverSkillFiles(dir) {
		fm, body, err := parseSkillFile(path)
		if err != nil {
			bad = append(bad, Ineligible{Path: path, Kind: ReasonParse, Detail: err.Error()})
			continue
		}
		id := strings.TrimSpace(fm.ID)
		if id == "" {
			id = strings.TrimSpace(fm.Name)
		}
		if id == "" || strings.TrimSpace(fm.Description) == "" {
			bad = append(bad, Ineligible{Path: path, Kind: ReasonParse, Detail: "missing id/name or description"})
			continue
		}
		defs = append(defs, Definition{
			ID:          id,
			Name:        strings.TrimSpace(fm.Name),
			Description: strings.TrimSpace(fm.Description),
			Triggers: Triggers{
				Keywords: fm.Triggers.Keywords,
				Regexes:  fm.Triggers.Regexes,
				Intents:  fm.Triggers.Intents,
			},
			Tools: fm.Tools,
			Security: Security{
				ApprovalRequired: fm.Security.ApprovalRequired,
				AdminOnly:        fm.Security.AdminOnly,
				AllowChannels:    fm.Security.AllowChannels,
				DenyChannels:     fm.Security.DenyChannels,
			},
			Eligibility: Eligibility{
				OS:                fm.Eligibility.OS,
				RequiredBinaries:  fm.Eligibility.RequiredBinaries,
				RequiredConfig:    fm.Eligibility.RequiredConfig,
				RequiredProviders: fm.Eligibility.RequiredProviders,
			},
			Source: source,
			Body:   body,
			Path:   filepath.Clean(path),
		})
	}
	return defs, bad
}
