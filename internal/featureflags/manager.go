// Package featureflags evaluates on/off and percentage-rollout flags per user.
package featureflags

import (
	"fmt"
	"hash/fnv"
	"maps"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// MediaUpload gates POST /api/upload.
const MediaUpload = "media_upload"

// builtin values apply when neither the file nor the env list mentions a flag.
var builtin = map[string]string{
	MediaUpload: "on",
}

// Manager evaluates flags such as "media_upload=on,new_feed=25%".
type Manager struct {
	flags map[string]string
}

type fileFormat struct {
	Flags map[string]string `yaml:"flags"`
}

// NewManager parses a comma-separated key=value list on top of the built-in defaults.
func NewManager(raw string) *Manager {
	m := &Manager{flags: maps.Clone(builtin)}
	m.merge(parseList(raw))
	return m
}

// Load reads a YAML flag file (a top-level "flags" map) and applies raw on top of it.
// An empty path behaves like NewManager.
func Load(path, raw string) (*Manager, error) {
	m := &Manager{flags: maps.Clone(builtin)}
	if path != "" {
		// #nosec G304: path comes from configuration
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read feature flag file: %w", err)
		}
		var f fileFormat
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse feature flag file: %w", err)
		}
		m.merge(f.Flags)
	}
	m.merge(parseList(raw))
	return m, nil
}

func parseList(raw string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		out[key] = value
	}
	return out
}

func (m *Manager) merge(in map[string]string) {
	for k, v := range in {
		k, v = normalize(k), normalize(v)
		if k == "" || v == "" {
			continue
		}
		m.flags[k] = v
	}
}

// Enabled reports whether name is on for userID. Values: on/true/1, off/false/0, or N%
// for a deterministic per-user rollout. Unknown flags are off.
func (m *Manager) Enabled(name string, userID uint) bool {
	if m == nil {
		return false
	}
	value, ok := m.flags[normalize(name)]
	if !ok {
		return false
	}

	switch value {
	case "on", "true", "1":
		return true
	case "off", "false", "0":
		return false
	}

	pctRaw, isPct := strings.CutSuffix(value, "%")
	if !isPct {
		return false
	}
	pct, err := strconv.Atoi(pctRaw)
	switch {
	case err != nil, pct <= 0:
		return false
	case pct >= 100:
		return true
	case userID == 0:
		return false
	}
	return rolloutBucket(name, userID) < pct
}

// Raw returns a copy of the configured values.
func (m *Manager) Raw() map[string]string {
	return maps.Clone(m.flags)
}

// Snapshot evaluates every flag for one user.
func (m *Manager) Snapshot(userID uint) map[string]bool {
	out := make(map[string]bool, len(m.flags))
	for name := range m.flags {
		out[name] = m.Enabled(name, userID)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = fmt.Fprintf(h, "%s:%d", normalize(name), userID)
	return int(h.Sum32() % 100)
}
