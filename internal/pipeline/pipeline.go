// Package pipeline drives the execute -> extract -> download state machine
// over templates in dependency order. Each stage checks whether its output
// already exists before performing any work, which is what makes repeated
// runs with unchanged SQL and parameters cheap no-ops.
package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/warepipe/internal/resolve"
	"github.com/leapstack-labs/warepipe/internal/template"
)

// Pipeline executes templates against a warehouse through injected
// collaborators. It holds no state of its own between runs.
type Pipeline struct {
	queries QueryEngine
	objects ObjectStore
	namer   resolve.Namer
	logger  *slog.Logger
}

// New creates a pipeline. objects may be nil when extraction is never
// requested. A nil logger discards.
func New(queries QueryEngine, objects ObjectStore, namer resolve.Namer, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{
		queries: queries,
		objects: objects,
		namer:   namer,
		logger:  logger,
	}
}

// Run plans and executes all templates. Independent templates at the same
// dependency depth run concurrently up to opts.Concurrency. A failure marks
// the template and its transitive dependents failed; independent branches
// continue. The returned error covers structural problems only (unresolved
// references, cycles); per-template failures live in the report.
func (p *Pipeline) Run(ctx context.Context, templates []*template.Template, opts Options) (*Report, error) {
	start := time.Now()

	plan, err := NewPlan(templates, opts.Params, p.namer)
	if err != nil {
		return nil, err
	}

	report := &Report{RunID: uuid.NewString()}
	p.logger.Info("starting run", "run_id", report.RunID, "templates", len(templates))

	limit := opts.Concurrency
	if limit <= 0 {
		limit = 1
	}

	// failed is only written between levels, so the per-level goroutines
	// never share mutable state.
	failed := make(map[string]bool)

	for _, level := range plan.Graph.Levels() {
		var eg errgroup.Group
		eg.SetLimit(limit)

		results := make([]*Result, len(level))
		for i, name := range level {
			res := &Result{Name: name, Status: StatusPending}
			results[i] = res

			if planErr := plan.Errs[name]; planErr != nil {
				res.Status = StatusFailed
				res.Err = planErr
				p.logger.Info("template failed during resolution", "template", name, "error", planErr)
				continue
			}

			if up := failedUpstream(plan.Graph.Parents(name), failed); up != "" {
				res.Status = StatusFailed
				res.Err = &UpstreamError{Template: name, Upstream: up}
				p.logger.Info("skipping template, upstream failed", "template", name, "upstream", up)
				continue
			}

			r := plan.Resolved[name]
			res.ArtifactName = r.ArtifactName
			res.FullName = r.FullName

			eg.Go(func() error {
				p.runTemplate(ctx, r, opts, res)
				return nil
			})
		}
		_ = eg.Wait()

		for _, res := range results {
			if res.Status == StatusFailed {
				failed[res.Name] = true
			}
			report.Results = append(report.Results, res)
		}
	}

	report.Elapsed = time.Since(start)
	p.logger.Info("run finished", "run_id", report.RunID, "failed", report.Failed(), "elapsed", report.Elapsed.Round(time.Millisecond))
	return report, nil
}

func failedUpstream(parents []string, failed map[string]bool) string {
	for _, dep := range parents {
		if failed[dep] {
			return dep
		}
	}
	return ""
}

// runTemplate walks one template through its stages, stopping at the first
// failure or at the last requested stage.
func (p *Pipeline) runTemplate(ctx context.Context, r *resolve.Resolved, opts Options, res *Result) {
	name := r.Template.Name
	log := p.logger.With("template", name, "artifact", r.ArtifactName)

	if err := p.execute(ctx, r, opts, res, log); err != nil {
		res.Status = StatusFailed
		res.Err = &StageError{Template: name, Stage: StageExecute, Err: err}
		return
	}
	res.Status = StatusExecuted

	if !opts.Extract && !opts.Download {
		return
	}

	prefix := path.Join(objectPrefix(opts), r.ArtifactName)
	if err := p.extract(ctx, r, prefix, res, log); err != nil {
		res.Status = StatusFailed
		res.Err = &StageError{Template: name, Stage: StageExtract, Err: err}
		return
	}
	res.Status = StatusExtracted

	if !opts.Download {
		return
	}

	if err := p.download(ctx, prefix, opts, log); err != nil {
		res.Status = StatusFailed
		res.Err = &StageError{Template: name, Stage: StageDownload, Err: err}
		return
	}
	res.Status = StatusDownloaded
}

// execute creates the output table unless it already exists. Force bypasses
// the existence check and overwrites.
func (p *Pipeline) execute(ctx context.Context, r *resolve.Resolved, opts Options, res *Result, log *slog.Logger) error {
	if !opts.Force {
		exists, err := p.queries.TableExists(ctx, r.FullName)
		if err != nil {
			return err
		}
		if exists {
			res.ExecuteSkipped = true
			log.Info("table already exists, skipping execution")
			return nil
		}
	}

	log.Info("creating table", "force", opts.Force)
	if err := p.queries.Execute(ctx, r.Text, r.FullName); err != nil {
		return err
	}

	ttl := opts.Expiration
	if ttl <= 0 {
		ttl = DefaultExpiration
	}
	expires := time.Now().Add(ttl)
	if err := p.queries.SetExpiration(ctx, r.FullName, expires); err != nil {
		return err
	}
	log.Debug("table expiration set", "expires", expires)
	return nil
}

// extract materializes the table to the bucket unless an extract already
// exists under the artifact's prefix.
func (p *Pipeline) extract(ctx context.Context, r *resolve.Resolved, prefix string, res *Result, log *slog.Logger) error {
	exists, err := p.objects.Exists(ctx, prefix)
	if err != nil {
		return err
	}
	if exists {
		res.ExtractSkipped = true
		log.Info("extract already exists, skipping", "prefix", prefix)
		return nil
	}

	log.Info("extracting table", "prefix", prefix)
	return p.objects.Extract(ctx, r.FullName, prefix)
}

// download copies each extract part to the download directory, skipping
// parts whose local file already exists.
func (p *Pipeline) download(ctx context.Context, prefix string, opts Options, log *slog.Logger) error {
	parts, err := p.objects.Parts(ctx, prefix)
	if err != nil {
		return err
	}

	dir := opts.DownloadDir
	if dir == "" {
		dir = "."
	}

	for _, part := range parts {
		local := filepath.Join(dir, path.Base(part))
		if _, err := os.Stat(local); err == nil {
			log.Info("local file exists, skipping download", "path", local)
			continue
		}
		log.Info("downloading extract part", "object", part, "path", local)
		if err := p.objects.Download(ctx, part, local); err != nil {
			return err
		}
	}
	return nil
}

func objectPrefix(opts Options) string {
	if opts.ObjectPrefix != "" {
		return opts.ObjectPrefix
	}
	return DefaultObjectPrefix
}
