// Package skills discovers declarative skill documents from four ordered
// source directories (extra, bundled, managed, workspace) and resolves
// which ones are eligible and registered for the current host.
//
// A skill file is named skill.md, skill.yaml or skill.yml (case-insensitive)
// and carries a front-matter block (YAML for .md, the whole file for .yaml)
// describing triggers, required tools, security, and eligibility, followed
// by a free-text body for .md files.
package skills
