// Package expand turns short procurement search tokens into ranked
// phrase expansions using a hot-reloadable YAML synonym dictionary.
package expand

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// entry is one dictionary keyword with its ordered expansions.
type entry struct {
	Phrases      []string
	Domain       string
	Weight       float64
	AntiPatterns []string
}

// dictionary is an immutable snapshot of the loaded synonym data.
// Expander swaps whole snapshots atomically; nothing mutates one in place.
type dictionary struct {
	entries  map[string]entry
	domains  map[string][]string // domain -> sorted keywords
	version  string
	source   string // "file" or "builtin"
	loadedAt time.Time
}

// dictFile is the on-disk YAML shape.
type dictFile struct {
	Version string                        `yaml:"version"`
	Domains map[string]map[string]dictKey `yaml:"domains"`
}

// dictKey accepts both the short list form
//
//	wan: ["wide area network", "wan link"]
//
// and the full form
//
//	lan:
//	  expansions: ["local area network", "vlan"]
//	  weight: 1.0
//	  anti_patterns: ["lanyard"]
type dictKey struct {
	Expansions   []string `yaml:"expansions"`
	Weight       float64  `yaml:"weight"`
	AntiPatterns []string `yaml:"anti_patterns"`
}

func (k *dictKey) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.SequenceNode {
		return node.Decode(&k.Expansions)
	}
	type plain dictKey
	return node.Decode((*plain)(k))
}

// normalizeKeyword canonicalizes a dictionary key or lookup token:
// lowercase, underscores to spaces, collapsed whitespace.
func normalizeKeyword(s string) string {
	s = strings.ToLower(strings.ReplaceAll(s, "_", " "))
	return strings.Join(strings.Fields(s), " ")
}

// loadDictionary reads and validates the YAML dictionary file.
func loadDictionary(path string) (*dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dictionary %s: %w", path, err)
	}

	var f dictFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse dictionary %s: %w", path, err)
	}
	if len(f.Domains) == 0 {
		return nil, fmt.Errorf("dictionary %s has no domains", path)
	}

	d := &dictionary{
		entries:  make(map[string]entry),
		domains:  make(map[string][]string),
		version:  f.Version,
		source:   "file",
		loadedAt: time.Now(),
	}

	for domain, keys := range f.Domains {
		for raw, k := range keys {
			kw := normalizeKeyword(raw)
			if kw == "" {
				return nil, fmt.Errorf("dictionary %s: empty keyword in domain %q", path, domain)
			}
			if _, dup := d.entries[kw]; dup {
				return nil, fmt.Errorf("dictionary %s: duplicate keyword %q", path, kw)
			}
			weight := k.Weight
			if weight <= 0 {
				weight = 1.0
			}
			phrases := make([]string, 0, len(k.Expansions))
			for _, p := range k.Expansions {
				if p = strings.TrimSpace(p); p != "" {
					phrases = append(phrases, strings.ToLower(p))
				}
			}
			d.entries[kw] = entry{
				Phrases:      phrases,
				Domain:       domain,
				Weight:       weight,
				AntiPatterns: k.AntiPatterns,
			}
			d.domains[domain] = append(d.domains[domain], kw)
		}
	}
	for domain := range d.domains {
		sort.Strings(d.domains[domain])
	}
	return d, nil
}

// builtinDictionary is the minimal fallback used when the configured
// file is missing or malformed, so expansion keeps working.
func builtinDictionary() *dictionary {
	seed := map[string]struct {
		domain  string
		phrases []string
	}{
		"api":      {"software", []string{"application programming interface", "api gateway", "rest api", "web service"}},
		"lan":      {"networking", []string{"local area network", "lan network", "ethernet network", "vlan"}},
		"cloud":    {"cloud", []string{"cloud computing", "cloud services", "cloud infrastructure", "cloud migration"}},
		"security": {"security", []string{"cyber security", "information security", "network security", "security audit"}},
	}
	anti := map[string][]string{
		"api":      {"rapid", "therapy"},
		"lan":      {"lanyard", "plan", "land"},
		"cloud":    {"cloudy"},
		"security": {"social security"},
	}

	d := &dictionary{
		entries:  make(map[string]entry, len(seed)),
		domains:  make(map[string][]string),
		version:  "builtin",
		source:   "builtin",
		loadedAt: time.Now(),
	}
	for kw, s := range seed {
		d.entries[kw] = entry{
			Phrases:      s.phrases,
			Domain:       s.domain,
			Weight:       1.0,
			AntiPatterns: anti[kw],
		}
		d.domains[s.domain] = append(d.domains[s.domain], kw)
	}
	for domain := range d.domains {
		sort.Strings(d.domains[domain])
	}
	return d
}
