package assembler

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"openbuckets/internal/collector"
	"openbuckets/internal/config"
	"openbuckets/internal/logging"
	"openbuckets/internal/search"
	"openbuckets/internal/services"
)

// Stage names, in execution order.
const (
	StageReadDropped = "read-dropped-file"
	StageCollect     = "collect-related"
	StageSearch      = "search-directories"
	StageAssemble    = "assemble"
)

// DroppedFile describes the file that triggered assembly. Content is set only
// for text files that could be read.
type DroppedFile struct {
	Path      string
	Name      string
	SizeBytes int64
	ModTime   time.Time
	IsText    bool
	Content   *string
	Err       string
}

// Problem records a stage that degraded instead of failing the bundle.
type Problem struct {
	Stage   string
	Kind    string
	Message string
}

// Bundle is the assembled context for one drop.
type Bundle struct {
	DropID       string
	Dropped      DroppedFile
	Related      []string
	RelatedStats collector.Stats
	Matches      []search.Match
	GeneratedAt  time.Time
	BaseDir      string
	WatchDir     string
	BaseSource   config.Source
	SkillSource  config.SkillSource
	SkillPath    string
	Problems     []Problem
}

// RelatedCollector gathers related files for a bundle.
type RelatedCollector interface {
	Collect(ctx context.Context, include, exclude []string, baseDir string, limits config.Limits) (collector.Result, error)
}

// DirectorySearcher runs configured directory searches for a bundle.
type DirectorySearcher interface {
	Search(ctx context.Context, directories []string, patterns map[string][]string, baseDir string) []search.Match
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithClock overrides the time source used for GeneratedAt.
func WithClock(now func() time.Time) BuilderOption {
	return func(b *Builder) {
		if now != nil {
			b.now = now
		}
	}
}

// Builder assembles bundles.
type Builder struct {
	logger    *slog.Logger
	collector RelatedCollector
	searcher  DirectorySearcher
	now       func() time.Time
}

// NewBuilder constructs a Builder. A nil logger discards output.
func NewBuilder(logger *slog.Logger, coll RelatedCollector, searcher DirectorySearcher, opts ...BuilderOption) *Builder {
	b := &Builder{
		logger:    logging.NewComponentLogger(logger, "assembler"),
		collector: coll,
		searcher:  searcher,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BuildForFile runs every stage for droppedPath and always returns a bundle.
// Stage failures are logged and recorded in Bundle.Problems.
func (b *Builder) BuildForFile(ctx context.Context, droppedPath string, resolved config.Resolved, baseDir string) *Bundle {
	bundle := &Bundle{
		BaseDir:     baseDir,
		BaseSource:  resolved.BaseSource,
		SkillSource: resolved.SkillSource,
		SkillPath:   resolved.SkillPath,
	}
	if id, ok := services.DropIDFromContext(ctx); ok {
		bundle.DropID = id
	}
	if dir, ok := services.WatchDirFromContext(ctx); ok {
		bundle.WatchDir = dir
	}
	cfg := resolved.Config

	stageCtx := services.WithStage(ctx, StageReadDropped)
	dropped, err := readDropped(droppedPath, cfg.Limits.MaxSizeBytes)
	bundle.Dropped = dropped
	if err != nil {
		b.degrade(stageCtx, bundle, StageReadDropped, err)
	}

	stageCtx = services.WithStage(ctx, StageCollect)
	if b.collector != nil {
		res, err := b.collector.Collect(stageCtx, cfg.Include, cfg.Exclude, baseDir, cfg.Limits)
		if err != nil {
			b.degrade(stageCtx, bundle, StageCollect, err)
			res = collector.Result{}
		}
		bundle.Related = res.Files
		bundle.RelatedStats = res.Stats
		logging.WithContext(stageCtx, b.logger).Debug("related files collected",
			logging.Int("file_count", res.Stats.Count),
			logging.Int64("total_size_bytes", res.Stats.TotalSizeBytes),
		)
	}

	stageCtx = services.WithStage(ctx, StageSearch)
	if b.searcher != nil {
		bundle.Matches = b.searcher.Search(stageCtx, cfg.DirectoryNames(), cfg.Directories, baseDir)
	}

	bundle.GeneratedAt = b.now()
	logging.WithContext(services.WithStage(ctx, StageAssemble), b.logger).Debug("bundle assembled",
		logging.Int("related_count", len(bundle.Related)),
		logging.Int("match_count", len(bundle.Matches)),
		logging.Int("problem_count", len(bundle.Problems)),
	)
	return bundle
}

func (b *Builder) degrade(ctx context.Context, bundle *Bundle, stage string, err error) {
	kind := services.FailureKind(err)
	bundle.Problems = append(bundle.Problems, Problem{Stage: stage, Kind: kind, Message: err.Error()})
	logging.WarnWithContext(logging.WithContext(ctx, b.logger), "stage degraded; continuing with empty section", "stage_degraded",
		logging.String("failure_kind", kind),
		logging.Error(err),
		logging.String(logging.FieldImpact, "report section "+stage+" is empty"),
	)
}

func readDropped(path string, maxSize int64) (DroppedFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	dropped := DroppedFile{Path: abs, Name: filepath.Base(abs)}

	info, err := os.Stat(abs)
	if err != nil {
		dropped.Err = err.Error()
		marker := services.ErrTransient
		if errors.Is(err, fs.ErrNotExist) {
			marker = services.ErrNotFound
		}
		return dropped, services.Wrap(marker, StageReadDropped, "stat", abs, err)
	}
	dropped.SizeBytes = info.Size()
	dropped.ModTime = info.ModTime()
	if !info.Mode().IsRegular() {
		dropped.Err = "not a regular file"
		return dropped, services.Wrap(services.ErrValidation, StageReadDropped, "stat", abs+" is not a regular file", nil)
	}

	isText, err := Sniff(abs)
	if err != nil {
		dropped.Err = err.Error()
		return dropped, services.Wrap(services.ErrTransient, StageReadDropped, "sniff", abs, err)
	}
	dropped.IsText = isText
	if !isText {
		return dropped, nil
	}
	if maxSize > 0 && info.Size() > maxSize {
		dropped.Err = fmt.Sprintf("content omitted: larger than %d bytes", maxSize)
		return dropped, nil
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		dropped.Err = err.Error()
		return dropped, services.Wrap(services.ErrTransient, StageReadDropped, "read", abs, err)
	}
	content := string(data)
	dropped.Content = &content
	return dropped, nil
}
