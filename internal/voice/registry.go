package voice

import (
	"fmt"
	"strings"
)

// DefaultLabel is the speaker label used for narration and for any
// line whose speaker is not registered.
const DefaultLabel = "narrator"

// Profile selects how a piece of text is rendered to audio.
type Profile struct {
	LanguageCode string  `yaml:"language_code" json:"language_code"`
	VoiceName    string  `yaml:"voice_name" json:"voice_name"`
	SpeakingRate float64 `yaml:"speaking_rate" json:"speaking_rate"`
	Pitch        float64 `yaml:"pitch" json:"pitch"`
}

// Registry maps speaker labels to voice profiles. It is built once at
// startup and read-only afterwards, so concurrent reads need no locking.
type Registry struct {
	profiles map[string]Profile
}

// NewRegistry builds a registry from a label->profile map. The map must
// contain an entry for DefaultLabel; labels are matched case-insensitively.
func NewRegistry(profiles map[string]Profile) (*Registry, error) {
	normalized := make(map[string]Profile, len(profiles))
	for label, p := range profiles {
		key := strings.ToLower(strings.TrimSpace(label))
		if key == "" {
			return nil, fmt.Errorf("voice registry: empty speaker label")
		}
		if err := validateProfile(label, p); err != nil {
			return nil, err
		}
		if _, dup := normalized[key]; dup {
			return nil, fmt.Errorf("voice registry: duplicate speaker label %q", label)
		}
		normalized[key] = p
	}
	if _, ok := normalized[DefaultLabel]; !ok {
		return nil, fmt.Errorf("voice registry: missing %q profile", DefaultLabel)
	}
	if err := validateDistinct(normalized); err != nil {
		return nil, err
	}
	return &Registry{profiles: normalized}, nil
}

// Resolve returns the profile for a speaker label. Unknown or empty
// labels resolve to the default profile.
func (r *Registry) Resolve(label string) Profile {
	if p, ok := r.profiles[strings.ToLower(strings.TrimSpace(label))]; ok {
		return p
	}
	return r.profiles[DefaultLabel]
}

// Default returns the narrator profile.
func (r *Registry) Default() Profile {
	return r.profiles[DefaultLabel]
}

// Known reports whether a label is registered.
func (r *Registry) Known(label string) bool {
	_, ok := r.profiles[strings.ToLower(strings.TrimSpace(label))]
	return ok
}

// Labels returns the registered labels in no particular order.
func (r *Registry) Labels() []string {
	labels := make([]string, 0, len(r.profiles))
	for label := range r.profiles {
		labels = append(labels, label)
	}
	return labels
}

func validateProfile(label string, p Profile) error {
	if p.LanguageCode == "" {
		return fmt.Errorf("voice %q: language_code must not be empty", label)
	}
	if p.VoiceName == "" {
		return fmt.Errorf("voice %q: voice_name must not be empty", label)
	}
	if p.SpeakingRate < 0.25 || p.SpeakingRate > 4.0 {
		return fmt.Errorf("voice %q: speaking_rate must be within [0.25, 4.0]", label)
	}
	if p.Pitch < -20.0 || p.Pitch > 20.0 {
		return fmt.Errorf("voice %q: pitch must be within [-20.0, 20.0]", label)
	}
	return nil
}

// validateDistinct rejects registries where two speakers would be
// audibly identical: distinct labels must differ in voice name or pitch.
func validateDistinct(profiles map[string]Profile) error {
	type key struct {
		name  string
		pitch float64
	}
	seen := make(map[key]string, len(profiles))
	for label, p := range profiles {
		k := key{name: p.VoiceName, pitch: p.Pitch}
		if other, dup := seen[k]; dup {
			return fmt.Errorf("voices %q and %q are indistinguishable: same voice_name and pitch", other, label)
		}
		seen[k] = label
	}
	return nil
}
