// Package investigate runs one full investigation pass for a repository:
// staleness decision, per-step cache arbitration, analysis calls for
// misses, result collection, and the final metadata write.
//
// Each pass is a synchronous, single-call unit. Retries, timeouts, and
// scheduling belong to the caller.
package investigate

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/archhub/investigator/internal/ai"
	"github.com/archhub/investigator/internal/collector"
	"github.com/archhub/investigator/internal/promptcache"
	"github.com/archhub/investigator/internal/promptver"
	"github.com/archhub/investigator/internal/staleness"
	"github.com/archhub/investigator/internal/steps"
	"github.com/archhub/investigator/internal/storage"
	"github.com/archhub/investigator/internal/types"
)

// Engine coordinates one repository investigation at a time. All
// collaborators are injected; the engine owns no global state.
type Engine struct {
	staleness *staleness.Engine
	cache     *promptcache.Cache
	analyzer  ai.Analyzer
	steps     *steps.Config
}

// NewEngine wires an investigation engine from its collaborators.
func NewEngine(store storage.Store, analyzer ai.Analyzer, stepConfig *steps.Config) *Engine {
	return &Engine{
		staleness: staleness.NewEngine(store),
		cache:     promptcache.New(store),
		analyzer:  analyzer,
		steps:     stepConfig,
	}
}

// Options configures a single run.
type Options struct {
	RepoName string
	RepoURL  string
	State    types.RepositoryState

	// Prompts maps step name to full prompt content, including the
	// version=N header line.
	Prompts map[string]string

	// Force runs the investigation even when the staleness decision says
	// nothing changed.
	Force bool

	// TTLDays for cache entries and the metadata record. Zero uses the
	// component defaults.
	TTLDays int
}

// Result summarizes one run.
type Result struct {
	RunID    string
	Decision types.InvestigationDecision

	// Skipped is true when the staleness decision ended the run early.
	Skipped bool

	Document     string
	CachedSteps  int
	FreshSteps   int
	MetadataSave staleness.SaveResult
}

// Run executes one investigation pass.
func (e *Engine) Run(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.State.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log.Printf("[INVESTIGATE] run %s starting for %s", runID, opts.RepoName)

	versions, err := promptver.TrackVersions(opts.Prompts)
	if err != nil {
		return nil, err
	}

	decision := e.staleness.Decide(ctx, opts.RepoName, opts.State, versions)
	result := &Result{RunID: runID, Decision: decision}

	if !decision.NeedsInvestigation && !opts.Force {
		log.Printf("[INVESTIGATE] run %s skipped: %s", runID, decision.Reason)
		result.Skipped = true
		return result, nil
	}

	coll := collector.New(opts.RepoName, e.steps.Names())
	resultsMap := make(map[string]string)
	cachedResults := make(map[string]collector.CachedResult)
	stepOutputs := make(map[string]string)

	for _, step := range e.steps.ProcessingOrder {
		prompt, ok := opts.Prompts[step.Name]
		if !ok {
			if step.Required {
				log.Printf("[INVESTIGATE] no prompt supplied for required step %s", step.Name)
			}
			continue
		}
		version := versions[step.Name]

		check := e.cache.Check(ctx, opts.RepoName, step.Name, opts.State.CommitID, version)
		if !check.NeedsAnalysis {
			cachedResults[step.Name] = collector.CachedResult{
				Content:   check.CachedResult,
				Version:   check.Version,
				Timestamp: check.CacheTimestamp,
			}
			stepOutputs[step.Name] = check.CachedResult
			coll.Track(step.Name, step.Description, check.CachedResultKey, step.Required, step.ContextDependencies)
			result.CachedSteps++
			continue
		}

		output, err := e.analyzer.Analyze(ctx, renderPrompt(prompt, step, stepOutputs))
		if err != nil {
			return nil, fmt.Errorf("analysis failed for step %s: %w", step.Name, err)
		}
		resultsMap[step.Name] = output
		stepOutputs[step.Name] = output

		save := e.cache.Save(ctx, opts.RepoName, step.Name, opts.State.CommitID, output, version, opts.TTLDays)
		coll.Track(step.Name, step.Description, save.CacheKey, step.Required, step.ContextDependencies)
		result.FreshSteps++
	}

	if ok, missing := coll.ValidateRequiredSections(e.steps.ProcessingOrder); !ok {
		log.Printf("[INVESTIGATE] run %s missing required sections: %v", runID, missing)
	}
	coll.ValidateBaseSections()

	combined, err := coll.Combine(resultsMap, e.steps.ProcessingOrder, cachedResults, versions)
	if err != nil {
		return nil, fmt.Errorf("failed to combine results: %w", err)
	}
	result.Document = coll.GenerateFinalDocument(combined)

	result.MetadataSave = e.staleness.SaveMetadata(ctx, staleness.SaveMetadataParams{
		RepoName:   opts.RepoName,
		RepoURL:    opts.RepoURL,
		CommitID:   opts.State.CommitID,
		BranchName: opts.State.BranchName,
		AnalysisSummary: map[string]any{
			"run_id":       runID,
			"steps_total":  len(e.steps.ProcessingOrder),
			"steps_cached": result.CachedSteps,
			"steps_fresh":  result.FreshSteps,
		},
		PromptVersions: versions,
		TTLDays:        opts.TTLDays,
	})
	if result.MetadataSave.Status != types.SaveStatusSuccess {
		// Deliberately non-fatal: the investigation itself succeeded.
		log.Printf("[INVESTIGATE] run %s metadata save failed: %s", runID, result.MetadataSave.Message)
	}

	log.Printf("[INVESTIGATE] run %s complete (cached=%d fresh=%d)", runID, result.CachedSteps, result.FreshSteps)
	return result, nil
}

// renderPrompt strips the version header and appends the outputs of the
// step's declared context dependencies. Steps run in configured order, so
// every dependency named here has already been resolved.
func renderPrompt(prompt string, step types.StepDescriptor, outputs map[string]string) string {
	body := promptver.Strip(prompt)
	if len(step.ContextDependencies) == 0 {
		return body
	}

	var b strings.Builder
	b.WriteString(body)
	for _, dep := range step.ContextDependencies {
		content, ok := outputs[dep]
		if !ok {
			log.Printf("[INVESTIGATE] context dependency %s unavailable for step %s", dep, step.Name)
			continue
		}
		fmt.Fprintf(&b, "\n\n## Context: %s\n\n%s", dep, content)
	}
	return b.String()
}
