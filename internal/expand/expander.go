package expand

import (
	"math"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Result is one expansion outcome.
type Result struct {
	Keyword string `json:"keyword"`
	// Phrases are the ordered query phrases, most specific first as
	// authored in the dictionary. For a miss this is the literal token.
	Phrases    []string `json:"phrases"`
	Domain     string   `json:"domain"`
	Confidence float64  `json:"confidence"`
	// Source is "dictionary" for a hit, "literal" for a miss.
	Source string `json:"source"`
}

// ReloadReport summarizes one dictionary reload.
type ReloadReport struct {
	KeywordsBefore int       `json:"keywords_before"`
	KeywordsAfter  int       `json:"keywords_after"`
	DomainsBefore  int       `json:"domains_before"`
	DomainsAfter   int       `json:"domains_after"`
	Version        string    `json:"version"`
	ReloadedAt     time.Time `json:"reloaded_at"`
}

// Statistics is a snapshot of the loaded dictionary.
type Statistics struct {
	Keywords         int            `json:"keywords"`
	Domains          int            `json:"domains"`
	TotalExpansions  int            `json:"total_expansions"`
	AvgPerKeyword    float64        `json:"avg_expansions_per_keyword"`
	KeywordsByDomain map[string]int `json:"keywords_by_domain"`
	Version          string         `json:"version"`
	Source           string         `json:"source"`
	LoadedAt         time.Time      `json:"loaded_at"`
}

// KeywordMatch is one hit from a dictionary keyword search.
type KeywordMatch struct {
	Keyword    string   `json:"keyword"`
	Domain     string   `json:"domain"`
	Expansions []string `json:"expansions"`
	// MatchedOn is "keyword" or "expansion".
	MatchedOn string `json:"matched_on"`
}

// QualityReport grades the loaded dictionary.
type QualityReport struct {
	Issues   []string `json:"issues"`
	Warnings []string `json:"warnings"`
	// Score is 100 minus penalties, floored at 0.
	Score int `json:"score"`
}

// Expander resolves tokens against an atomically swapped dictionary
// snapshot. Safe for concurrent use; Expand never blocks on Reload.
type Expander struct {
	file string
	log  *zap.Logger
	dict atomic.Pointer[dictionary]
}

// New builds an Expander from the dictionary file. A missing or
// malformed file is logged and replaced by the built-in fallback so
// search stays usable.
func New(file string, log *zap.Logger) *Expander {
	e := &Expander{file: file, log: log}
	d, err := loadDictionary(file)
	if err != nil {
		log.Warn("synonym dictionary unusable, using builtin fallback",
			zap.String("file", file),
			zap.Error(err))
		d = builtinDictionary()
	} else {
		log.Info("synonym dictionary loaded",
			zap.String("file", file),
			zap.String("version", d.version),
			zap.Int("keywords", len(d.entries)),
			zap.Int("domains", len(d.domains)))
	}
	e.dict.Store(d)
	return e
}

// Expand resolves a token to its query phrases. maxExpansions caps the
// phrase count; values < 1 mean no cap. A token absent from the
// dictionary comes back as-is with low confidence, never an error.
func (e *Expander) Expand(token string, maxExpansions int) Result {
	kw := normalizeKeyword(token)
	d := e.dict.Load()

	ent, ok := d.entries[kw]
	if !ok || len(ent.Phrases) == 0 {
		return Result{
			Keyword:    kw,
			Phrases:    []string{kw},
			Domain:     "general",
			Confidence: 0.3,
			Source:     "literal",
		}
	}

	phrases := ent.Phrases
	if maxExpansions > 0 && len(phrases) > maxExpansions {
		phrases = phrases[:maxExpansions]
	}
	out := make([]string, len(phrases))
	copy(out, phrases)

	return Result{
		Keyword:    kw,
		Phrases:    out,
		Domain:     ent.Domain,
		Confidence: confidence(len(ent.Phrases), ent.Weight),
		Source:     "dictionary",
	}
}

// confidence grades a hit by how rich its entry is, scaled by the
// entry's declared weight and rounded to 3 decimals.
func confidence(expansions int, weight float64) float64 {
	var base float64
	switch {
	case expansions >= 4:
		base = 0.95
	case expansions >= 3:
		base = 0.90
	case expansions >= 2:
		base = 0.75
	default:
		base = 0.5
	}
	return math.Round(base*weight*1000) / 1000
}

// Domain returns the domain a token belongs to, or "general".
func (e *Expander) Domain(token string) string {
	if ent, ok := e.dict.Load().entries[normalizeKeyword(token)]; ok {
		return ent.Domain
	}
	return "general"
}

// AntiPatterns returns the advisory anti-pattern terms for a token.
func (e *Expander) AntiPatterns(token string) []string {
	if ent, ok := e.dict.Load().entries[normalizeKeyword(token)]; ok {
		return ent.AntiPatterns
	}
	return nil
}

// Reload rebuilds the dictionary from the file and swaps it in. On
// failure the previous snapshot keeps serving and the error is returned.
func (e *Expander) Reload() (ReloadReport, error) {
	old := e.dict.Load()
	report := ReloadReport{
		KeywordsBefore: len(old.entries),
		DomainsBefore:  len(old.domains),
	}

	d, err := loadDictionary(e.file)
	if err != nil {
		e.log.Error("dictionary reload failed, keeping previous snapshot",
			zap.String("file", e.file),
			zap.Error(err))
		return report, err
	}

	e.dict.Store(d)
	report.KeywordsAfter = len(d.entries)
	report.DomainsAfter = len(d.domains)
	report.Version = d.version
	report.ReloadedAt = d.loadedAt

	e.log.Info("dictionary reloaded",
		zap.String("version", d.version),
		zap.Int("keywords", report.KeywordsAfter),
		zap.Int("domains", report.DomainsAfter))
	return report, nil
}

// Statistics summarizes the current snapshot.
func (e *Expander) Statistics() Statistics {
	d := e.dict.Load()
	stats := Statistics{
		Keywords:         len(d.entries),
		Domains:          len(d.domains),
		KeywordsByDomain: make(map[string]int, len(d.domains)),
		Version:          d.version,
		Source:           d.source,
		LoadedAt:         d.loadedAt,
	}
	for domain, kws := range d.domains {
		stats.KeywordsByDomain[domain] = len(kws)
	}
	for _, ent := range d.entries {
		stats.TotalExpansions += len(ent.Phrases)
	}
	if stats.Keywords > 0 {
		stats.AvgPerKeyword = math.Round(float64(stats.TotalExpansions)/float64(stats.Keywords)*100) / 100
	}
	return stats
}

// Keywords returns every dictionary keyword, sorted.
func (e *Expander) Keywords() []string {
	d := e.dict.Load()
	out := make([]string, 0, len(d.entries))
	for kw := range d.entries {
		out = append(out, kw)
	}
	sort.Strings(out)
	return out
}

// DomainKeywords returns the sorted keywords of one domain.
func (e *Expander) DomainKeywords(domain string) []string {
	d := e.dict.Load()
	kws := d.domains[strings.ToLower(domain)]
	out := make([]string, len(kws))
	copy(out, kws)
	return out
}

// SearchKeywords finds dictionary entries whose keyword or expansions
// contain the query substring, up to limit matches.
func (e *Expander) SearchKeywords(query string, limit int) []KeywordMatch {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	d := e.dict.Load()

	kws := make([]string, 0, len(d.entries))
	for kw := range d.entries {
		kws = append(kws, kw)
	}
	sort.Strings(kws)

	var out []KeywordMatch
	for _, kw := range kws {
		if limit > 0 && len(out) >= limit {
			break
		}
		ent := d.entries[kw]
		matchedOn := ""
		if strings.Contains(kw, q) {
			matchedOn = "keyword"
		} else {
			for _, p := range ent.Phrases {
				if strings.Contains(p, q) {
					matchedOn = "expansion"
					break
				}
			}
		}
		if matchedOn == "" {
			continue
		}
		exp := make([]string, len(ent.Phrases))
		copy(exp, ent.Phrases)
		out = append(out, KeywordMatch{
			Keyword:    kw,
			Domain:     ent.Domain,
			Expansions: exp,
			MatchedOn:  matchedOn,
		})
	}
	return out
}

// ValidateQuality audits the loaded dictionary for authoring mistakes:
// empty entries, self-referential expansions, duplicate phrases across
// keywords, and anti-patterns that collide with expansions.
func (e *Expander) ValidateQuality() QualityReport {
	d := e.dict.Load()
	report := QualityReport{Issues: []string{}, Warnings: []string{}}

	phraseOwner := make(map[string]string)
	kws := make([]string, 0, len(d.entries))
	for kw := range d.entries {
		kws = append(kws, kw)
	}
	sort.Strings(kws)

	for _, kw := range kws {
		ent := d.entries[kw]
		if len(ent.Phrases) == 0 {
			report.Issues = append(report.Issues, "keyword "+kw+" has no expansions")
			continue
		}
		if len(ent.Phrases) == 1 && ent.Phrases[0] == kw {
			report.Warnings = append(report.Warnings, "keyword "+kw+" only expands to itself")
		}
		seen := make(map[string]struct{}, len(ent.Phrases))
		for _, p := range ent.Phrases {
			if _, dup := seen[p]; dup {
				report.Issues = append(report.Issues, "keyword "+kw+" repeats expansion "+p)
			}
			seen[p] = struct{}{}
			if owner, taken := phraseOwner[p]; taken && owner != kw {
				report.Warnings = append(report.Warnings,
					"expansion "+p+" shared by "+owner+" and "+kw)
			} else {
				phraseOwner[p] = kw
			}
		}
		for _, ap := range ent.AntiPatterns {
			if _, collides := seen[strings.ToLower(ap)]; collides {
				report.Issues = append(report.Issues,
					"keyword "+kw+" lists "+ap+" as both expansion and anti-pattern")
			}
		}
	}

	score := 100 - 10*len(report.Issues) - 2*len(report.Warnings)
	if score < 0 {
		score = 0
	}
	report.Score = score
	return report
}
