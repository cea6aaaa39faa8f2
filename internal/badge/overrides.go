package badge

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Overrides force the elevated badge for titles the heuristics miss. Keys are
// IMDb ids ("tt0133093") or Rotten Tomatoes slugs ("m/the_matrix").
type Overrides struct {
	CertifiedFresh map[string]bool
	VerifiedHot    map[string]bool
}

type overridesFile struct {
	CertifiedFresh []string `yaml:"certified_fresh"`
	VerifiedHot    []string `yaml:"verified_hot"`
}

// LoadOverrides reads an override file. An empty path or a missing file
// yields empty overrides.
func LoadOverrides(path string) (Overrides, error) {
	if path == "" {
		return Overrides{}, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Overrides{}, nil
	}
	if err != nil {
		return Overrides{}, fmt.Errorf("read overrides: %w", err)
	}
	return ParseOverrides(data)
}

// ParseOverrides decodes the YAML form of an override file.
func ParseOverrides(data []byte) (Overrides, error) {
	var f overridesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Overrides{}, fmt.Errorf("parse overrides: %w", err)
	}
	return Overrides{
		CertifiedFresh: toSet(f.CertifiedFresh),
		VerifiedHot:    toSet(f.VerifiedHot),
	}, nil
}

// Certified reports whether any of ids is forced to Certified Fresh.
func (o Overrides) Certified(ids ...string) bool {
	return contains(o.CertifiedFresh, ids)
}

// Verified reports whether any of ids is forced to Verified Hot.
func (o Overrides) Verified(ids ...string) bool {
	return contains(o.VerifiedHot, ids)
}

func toSet(keys []string) map[string]bool {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		if k = normalizeKey(k); k != "" {
			set[k] = true
		}
	}
	return set
}

func contains(set map[string]bool, ids []string) bool {
	for _, id := range ids {
		if id = normalizeKey(id); id != "" && set[id] {
			return true
		}
	}
	return false
}

func normalizeKey(k string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(k), "/"))
}
