package services

import "context"

// Annotations is the per-drop metadata carried through a context.
// The zero value means no annotations.
type Annotations struct {
	DropID   string
	Stage    string
	WatchDir string
}

type annotationsKey struct{}

// AnnotationsFrom returns the annotations stored on ctx.
func AnnotationsFrom(ctx context.Context) Annotations {
	if ctx == nil {
		return Annotations{}
	}
	a, _ := ctx.Value(annotationsKey{}).(Annotations)
	return a
}

func annotate(ctx context.Context, value string, set func(*Annotations)) context.Context {
	if value == "" {
		return ctx
	}
	a := AnnotationsFrom(ctx)
	set(&a)
	return context.WithValue(ctx, annotationsKey{}, a)
}

// WithDropID tags ctx with the identifier assigned to a dropped file.
func WithDropID(ctx context.Context, id string) context.Context {
	return annotate(ctx, id, func(a *Annotations) { a.DropID = id })
}

// WithStage tags ctx with the pipeline stage currently running.
func WithStage(ctx context.Context, stage string) context.Context {
	return annotate(ctx, stage, func(a *Annotations) { a.Stage = stage })
}

// WithWatchDir tags ctx with the watched directory that saw the drop.
func WithWatchDir(ctx context.Context, dir string) context.Context {
	return annotate(ctx, dir, func(a *Annotations) { a.WatchDir = dir })
}

func DropIDFromContext(ctx context.Context) (string, bool) {
	id := AnnotationsFrom(ctx).DropID
	return id, id != ""
}

func StageFromContext(ctx context.Context) (string, bool) {
	stage := AnnotationsFrom(ctx).Stage
	return stage, stage != ""
}

func WatchDirFromContext(ctx context.Context) (string, bool) {
	dir := AnnotationsFrom(ctx).WatchDir
	return dir, dir != ""
}
