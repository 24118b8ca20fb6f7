package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// Settings is the subset of Claude settings files the bridge consumes.
// Layers are merged with precedence local > project > user.
type Settings struct {
	Permissions *PermissionSettings `json:"permissions,omitempty"`
}

type PermissionSettings struct {
	Allow []string `json:"allow,omitempty"`
	Deny  []string `json:"deny,omitempty"`
	Ask   []string `json:"ask,omitempty"`

	DefaultMode           string   `json:"defaultMode,omitempty"`
	AdditionalDirectories []string `json:"additionalDirectories,omitempty"`
}

// LoadSettings reads the three settings layers relative to cwd and merges
// them. Missing files are skipped; a malformed file fails the load so broken
// rules never degrade silently into "ask everything".
func LoadSettings(cwd string) (Settings, error) {
	paths := make([]string, 0, 3)
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".claude", "settings.json"))
	}
	paths = append(paths,
		filepath.Join(cwd, ".claude", "settings.json"),
		filepath.Join(cwd, ".claude", "settings.local.json"),
	)

	merged := Settings{}
	for _, path := range paths {
		layer, err := readSettingsFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return Settings{}, err
		}
		merged = mergeSettings(merged, layer)
	}
	return merged, nil
}

func readSettingsFile(path string) (Settings, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, err
	}
	var s Settings
	if err := json.Unmarshal(buf, &s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// mergeSettings layers overlay on top of base. Rule lists concatenate (base
// first) so every configured rule stays in effect; scalar fields from the
// higher-precedence layer win.
func mergeSettings(base, overlay Settings) Settings {
	if overlay.Permissions == nil {
		return base
	}
	if base.Permissions == nil {
		base.Permissions = &PermissionSettings{}
	}

	out := *base.Permissions
	out.Allow = append(out.Allow, overlay.Permissions.Allow...)
	out.Deny = append(out.Deny, overlay.Permissions.Deny...)
	out.Ask = append(out.Ask, overlay.Permissions.Ask...)
	out.AdditionalDirectories = append(out.AdditionalDirectories, overlay.Permissions.AdditionalDirectories...)
	if overlay.Permissions.DefaultMode != "" {
		out.DefaultMode = overlay.Permissions.DefaultMode
	}
	return Settings{Permissions: &out}
}
