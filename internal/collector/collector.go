// Package collector tracks per-step analysis results over one
// investigation run, validates completeness, and merges cached and fresh
// outputs into a single ordered document.
//
// A collector moves forward through four phases: collecting, validating,
// combining, finalized. No transition is reversible within a run.
package collector

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/archhub/investigator/internal/types"
)

// CriticalSection is the one base section whose absence from a combined
// document is a hard failure rather than a warning. Downstream consumers
// depend on its presence.
const CriticalSection = "monitoring"

// ErrMissingCriticalSection aborts a combine when the critical section is
// absent from the merged output.
var ErrMissingCriticalSection = errors.New("critical section missing from combined results")

// Phase is the collector's position in its run lifecycle.
type Phase int

const (
	PhaseCollecting Phase = iota
	PhaseValidating
	PhaseCombining
	PhaseFinalized
)

func (p Phase) String() string {
	switch p {
	case PhaseCollecting:
		return "collecting"
	case PhaseValidating:
		return "validating"
	case PhaseCombining:
		return "combining"
	case PhaseFinalized:
		return "finalized"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// CachedResult is a previously cached step output offered to Combine.
type CachedResult struct {
	Content   string
	Version   string
	Timestamp *time.Time
}

// CombinedResult is one section of the merged document.
type CombinedResult struct {
	Name        string
	Description string
	Content     string
	Version     string
	Cached      bool

	// CacheTimestamp is set when the content came from cache.
	CacheTimestamp *time.Time

	// ResultKey and Required carry over from the tracked step, when the
	// step was tracked before combining.
	ResultKey string
	Required  bool
}

// Collector accumulates tracked steps for one repository run.
type Collector struct {
	repoName     string
	baseSections []string
	results      map[string]*types.TrackedStepResult
	phase        Phase
}

// New creates a collector for one run. baseSections are the section names
// mandatory across all repository types, validated independently of
// per-step required flags; pass the configured processing-order names.
func New(repoName string, baseSections []string) *Collector {
	return &Collector{
		repoName:     repoName,
		baseSections: append([]string(nil), baseSections...),
		results:      make(map[string]*types.TrackedStepResult),
	}
}

// Phase reports the collector's current lifecycle phase.
func (c *Collector) Phase() Phase {
	return c.phase
}

// Track records that a step ran (or was resolved from cache). Tracking is
// idempotent per name: re-tracking a step overwrites the earlier entry.
// Tracking after validation has started is ignored.
func (c *Collector) Track(name, description, resultKey string, required bool, contextDeps []string) {
	if c.phase != PhaseCollecting {
		log.Printf("[COLLECTOR] ignoring Track(%s) in phase %s", name, c.phase)
		return
	}
	c.results[name] = &types.TrackedStepResult{
		Name:                name,
		Description:         description,
		ResultKey:           resultKey,
		Required:            required,
		ContextDependencies: append([]string(nil), contextDeps...),
	}
	log.Printf("[COLLECTOR] tracked step %s (key=%s)", name, resultKey)
}

// TrackedSteps returns the tracked step names in sorted order.
func (c *Collector) TrackedSteps() []string {
	names := make([]string, 0, len(c.results))
	for name := range c.results {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateRequiredSections checks that every descriptor marked required
// has been tracked. Returns the missing names in descriptor order.
func (c *Collector) ValidateRequiredSections(order []types.StepDescriptor) (bool, []string) {
	c.advance(PhaseValidating)

	var missing []string
	for _, step := range order {
		if !step.Required {
			continue
		}
		if _, ok := c.results[step.Name]; !ok {
			missing = append(missing, step.Name)
		}
	}

	if len(missing) > 0 {
		log.Printf("[COLLECTOR] missing required sections for %s: %v", c.repoName, missing)
	}
	return len(missing) == 0, missing
}

// ValidateBaseSections checks that every base section has been tracked,
// regardless of required flags. A missing critical section is logged at
// critical severity but, at this stage, still only reported; Combine is
// where it becomes fatal.
func (c *Collector) ValidateBaseSections() (bool, []string) {
	c.advance(PhaseValidating)

	if len(c.baseSections) == 0 {
		log.Printf("[COLLECTOR] no base sections configured for %s", c.repoName)
		return true, nil
	}

	var missing []string
	for _, section := range c.baseSections {
		if _, ok := c.results[section]; !ok {
			missing = append(missing, section)
		}
	}

	if len(missing) > 0 {
		log.Printf("[COLLECTOR] missing base sections for %s: %v", c.repoName, missing)
		for _, section := range missing {
			if section == CriticalSection {
				log.Printf("[COLLECTOR] CRITICAL: %s section is missing from results", CriticalSection)
			}
		}
	}
	return len(missing) == 0, missing
}

// Combine merges fresh and cached step outputs into one ordered list,
// following the configured order exactly. Per step, preference is: fresh
// result, then cached result at the current prompt version, then a
// version-mismatched cached result (warned), then nothing. A required step
// with nothing available is logged as an error and omitted — unless the
// critical section ends up absent from the output, which aborts the merge.
func (c *Collector) Combine(resultsMap map[string]string, order []types.StepDescriptor,
	cachedResults map[string]CachedResult, promptVersions map[string]string) ([]CombinedResult, error) {

	c.advance(PhaseCombining)

	var combined []CombinedResult
	cachedCount, freshCount := 0, 0

	for _, step := range order {
		currentVersion := promptVersions[step.Name]
		if currentVersion == "" {
			currentVersion = types.DefaultPromptVersion
		}
		cached, hasCached := cachedResults[step.Name]

		var content string
		var usedCached bool
		var cacheTS *time.Time

		switch {
		case resultsMap[step.Name] != "":
			content = resultsMap[step.Name]
			freshCount++
			log.Printf("[COLLECTOR] using new result for %s (v%s)", step.Name, currentVersion)
		case hasCached && cached.Content != "" && cached.Version == currentVersion:
			content = cached.Content
			usedCached = true
			cacheTS = cached.Timestamp
			cachedCount++
			log.Printf("[COLLECTOR] using cached result for %s (v%s)", step.Name, currentVersion)
		case hasCached && cached.Content != "":
			// Better a stale section than a hole in the document.
			content = cached.Content
			usedCached = true
			cacheTS = cached.Timestamp
			cachedCount++
			log.Printf("[COLLECTOR] using outdated cached result for %s (cached v%s != current v%s)",
				step.Name, cached.Version, currentVersion)
		default:
			if step.Required {
				log.Printf("[COLLECTOR] ERROR: missing required step in results: %s", step.Name)
			} else {
				log.Printf("[COLLECTOR] optional step not in results: %s", step.Name)
			}
			continue
		}

		result := CombinedResult{
			Name:           step.Name,
			Description:    step.Description,
			Content:        content,
			Version:        currentVersion,
			Cached:         usedCached,
			CacheTimestamp: cacheTS,
		}
		if tracked, ok := c.results[step.Name]; ok {
			result.ResultKey = tracked.ResultKey
			result.Required = tracked.Required
		}
		combined = append(combined, result)
	}

	log.Printf("[COLLECTOR] combined %d of %d steps for %s (cached: %d, new: %d)",
		len(combined), len(order), c.repoName, cachedCount, freshCount)

	if err := c.checkCriticalPresent(combined); err != nil {
		return nil, err
	}

	return combined, nil
}

// checkCriticalPresent enforces the hard invariant that the critical
// section, when it is part of the configured base sections, appears in the
// combined output.
func (c *Collector) checkCriticalPresent(combined []CombinedResult) error {
	critical := false
	for _, section := range c.baseSections {
		if section == CriticalSection {
			critical = true
			break
		}
	}
	if !critical {
		return nil
	}
	for _, r := range combined {
		if r.Name == CriticalSection {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrMissingCriticalSection, CriticalSection)
}

// GenerateFinalDocument renders the combined results as one markdown
// document, one section per result in combine order. The formatting lives
// here, apart from Combine, so ordering and completeness stay testable
// without text assertions.
func (c *Collector) GenerateFinalDocument(results []CombinedResult) string {
	c.advance(PhaseFinalized)

	if len(results) == 0 {
		log.Printf("[COLLECTOR] no results to generate final document for %s", c.repoName)
		return ""
	}

	sections := make([]string, 0, len(results))
	for _, result := range results {
		var b strings.Builder
		fmt.Fprintf(&b, "# %s\n\n", result.Name)
		if result.Description != "" {
			fmt.Fprintf(&b, "%s\n\n", result.Description)
		}
		b.WriteString(result.Content)
		sections = append(sections, b.String())
	}

	doc := strings.Join(sections, "\n\n")
	log.Printf("[COLLECTOR] generated final document for %s: %d sections, %d chars",
		c.repoName, len(sections), len(doc))

	// Belt-and-braces text check; Combine already enforced presence.
	for _, section := range c.baseSections {
		if section == CriticalSection {
			heading := fmt.Sprintf("# %s\n", CriticalSection)
			if !strings.Contains(strings.ToLower(doc), heading) {
				log.Printf("[COLLECTOR] ERROR: %s heading not found in final document", CriticalSection)
			}
			break
		}
	}

	return doc
}

// advance moves the collector forward to at least the given phase.
// Phases never move backward.
func (c *Collector) advance(p Phase) {
	if p > c.phase {
		c.phase = p
	}
}
