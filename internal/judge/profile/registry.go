package profile

import (
	"sort"
	"strings"
	"time"

	appErr "codearena/pkg/errors"
)

// Registry is an immutable language-id → Profile mapping constructed once
// at process start.
type Registry struct {
	profiles map[string]Profile
}

// NewRegistry builds a registry from the given profiles. Entries without an
// ID are skipped; a later duplicate ID replaces an earlier one.
func NewRegistry(profiles []Profile) *Registry {
	m := make(map[string]Profile, len(profiles))
	for _, p := range profiles {
		if p.ID == "" {
			continue
		}
		m[p.ID] = p
	}
	return &Registry{profiles: m}
}

// NewDefaultRegistry returns the built-in language table.
func NewDefaultRegistry() *Registry {
	return NewRegistry(DefaultProfiles())
}

// Resolve looks up the profile for a language id. An unknown id is a
// validation failure, reported before any sandbox resource is allocated.
func (r *Registry) Resolve(languageID string) (Profile, error) {
	if strings.TrimSpace(languageID) == "" {
		return Profile{}, appErr.ValidationError("language", "required")
	}
	p, ok := r.profiles[languageID]
	if !ok {
		return Profile{}, appErr.New(appErr.LanguageNotSupported).
			WithMessagef("language %q is not supported", languageID)
	}
	return p, nil
}

// Supported returns the sorted list of supported language ids.
func (r *Registry) Supported() []string {
	ids := make([]string, 0, len(r.profiles))
	for id := range r.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DefaultProfiles returns the built-in language profiles.
func DefaultProfiles() []Profile {
	baseLimits := ResourceLimits{
		WallTime: 10 * time.Second,
		CPUTime:  5 * time.Second,
		MemoryMB: 256,
		OutputMB: 16,
		PIDs:     64,
	}
	return []Profile{
		{
			ID:            "python",
			Name:          "Python 3",
			FileExtension: "py",
			RunCmdTpl:     "python3 {src}",
			ImageRef:      "sandbox/python:3.11",
			DefaultLimits: baseLimits,
		},
		{
			ID:            "cpp",
			Name:          "C++17",
			FileExtension: "cpp",
			RunCmdTpl:     `sh -c "g++ -O2 -std=c++17 {src} -o {bin} && ./{bin}"`,
			ImageRef:      "sandbox/gcc:13",
			DefaultLimits: baseLimits,
		},
		{
			ID:            "javascript",
			Name:          "Node.js",
			FileExtension: "js",
			RunCmdTpl:     "node {src}",
			ImageRef:      "sandbox/node:20",
			DefaultLimits: baseLimits,
		},
	}
}
