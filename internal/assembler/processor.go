package assembler

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"openbuckets/internal/config"
	"openbuckets/internal/logging"
	"openbuckets/internal/services"
)

// ConfigResolver produces the effective configuration for a dropped file.
type ConfigResolver interface {
	Resolve(targetPath, baseDir string) config.Resolved
}

// Processor handles drops end to end: resolve config, build, render, write.
// Reports are written whole under a mutex so two drops never interleave.
type Processor struct {
	logger   *slog.Logger
	resolver ConfigResolver
	builder  *Builder
	baseDir  string
	newID    func() string

	mu  sync.Mutex
	out io.Writer
}

// NewProcessor constructs a Processor writing reports to out.
func NewProcessor(logger *slog.Logger, resolver ConfigResolver, builder *Builder, baseDir string, out io.Writer) *Processor {
	return &Processor{
		logger:   logging.NewComponentLogger(logger, "processor"),
		resolver: resolver,
		builder:  builder,
		baseDir:  baseDir,
		newID:    uuid.NewString,
		out:      out,
	}
}

// HandleDrop assembles and writes the report for one dropped file. The
// configuration is re-read from disk for every drop.
func (p *Processor) HandleDrop(ctx context.Context, path, watchDir string) error {
	ctx = services.WithDropID(ctx, p.newID())
	ctx = services.WithWatchDir(ctx, watchDir)
	logger := logging.WithContext(ctx, p.logger)

	logger.Info("file dropped", logging.String("path", path))

	resolved := p.resolver.Resolve(path, p.baseDir)
	for _, layer := range resolved.InvalidLayers() {
		logging.WarnWithContext(logger, "config layer unreadable; treated as empty", "config_layer_invalid",
			logging.String("layer", layer.Name),
			logging.String("path", layer.Path),
			logging.Error(layer.Err),
			logging.String(logging.FieldErrorHint, "fix the TOML syntax in "+layer.Path),
			logging.String(logging.FieldImpact, "layer ignored for this drop"),
		)
	}

	bundle := p.builder.BuildForFile(ctx, path, resolved, p.baseDir)
	report := Render(bundle)

	p.mu.Lock()
	_, err := io.WriteString(p.out, report+"\n")
	p.mu.Unlock()
	if err != nil {
		return services.Wrap(services.ErrTransient, StageAssemble, "write report", path, err)
	}

	logger.Info("context bundle written",
		logging.String("path", bundle.Dropped.Path),
		logging.String("config_source", string(resolved.BaseSource)),
		logging.String("skill_source", string(resolved.SkillSource)),
		logging.Int("related_count", len(bundle.Related)),
		logging.Int("match_count", len(bundle.Matches)),
		logging.Int("problem_count", len(bundle.Problems)),
		logging.Int("report_bytes", len(report)),
	)
	return nil
}
