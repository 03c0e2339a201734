package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Limits bounds what the collector returns for one drop.
type Limits struct {
	MaxFiles     int
	MaxSizeBytes int64
}

// Config is the effective per-drop configuration after every layer is merged.
// Exclude always contains BaselineExcludes.
type Config struct {
	Include     []string
	Exclude     []string
	Directories map[string][]string
	Limits      Limits
}

// DirectoryNames returns the configured search directories in sorted order.
func (c Config) DirectoryNames() []string {
	names := make([]string, 0, len(c.Directories))
	for name := range c.Directories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// MarshalTOML renders c in the on-disk layer format, so the output of
// "config show" can be saved as a project file.
func (c Config) MarshalTOML() ([]byte, error) {
	maxFiles := c.Limits.MaxFiles
	maxSize := c.Limits.MaxSizeBytes
	layer := fileLayer{
		Include:     c.Include,
		Exclude:     c.Exclude,
		Directories: c.Directories,
		Limits:      fileLimits{MaxFiles: &maxFiles, MaxSizeBytes: &maxSize},
	}
	data, err := toml.Marshal(layer)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}

// fileLimits uses pointers so an unset field does not override a less specific layer.
type fileLimits struct {
	MaxFiles     *int   `toml:"max_files"`
	MaxSizeBytes *int64 `toml:"max_size_bytes"`
}

// fileLayer is the on-disk shape shared by global, local and skill files.
type fileLayer struct {
	Include     []string            `toml:"include"`
	Exclude     []string            `toml:"exclude"`
	Directories map[string][]string `toml:"directories"`
	Limits      fileLimits          `toml:"limits"`
}

// Source names the layer that supplied the base configuration.
type Source string

const (
	SourceDefault Source = "default"
	SourceGlobal  Source = "global"
	SourceLocal   Source = "local"
)

// SkillSource names where the extension-specific skill file came from.
type SkillSource string

const (
	SkillNone   SkillSource = "none"
	SkillLocal  SkillSource = "local-skill"
	SkillGlobal SkillSource = "global-skill"
)

// LayerState reports what happened when a layer file was consulted.
type LayerState string

const (
	LayerLoaded  LayerState = "loaded"
	LayerAbsent  LayerState = "absent"
	LayerInvalid LayerState = "invalid"
)

// LayerStatus records one consulted layer file.
type LayerStatus struct {
	Name  string
	Path  string
	State LayerState
	Err   error
}

// Resolved is the effective configuration plus provenance. Provenance is
// diagnostic only and never changes merge behavior.
type Resolved struct {
	Config      Config
	Extension   string
	BaseSource  Source
	SkillSource SkillSource
	SkillPath   string
	Layers      []LayerStatus
}

// InvalidLayers returns the layers that existed but could not be parsed.
func (r Resolved) InvalidLayers() []LayerStatus {
	var out []LayerStatus
	for _, layer := range r.Layers {
		if layer.State == LayerInvalid {
			out = append(out, layer)
		}
	}
	return out
}

// Resolver builds the effective configuration for a dropped file.
type Resolver struct {
	globalDir string
}

// NewResolver returns a Resolver reading the global profile from globalDir.
// An empty globalDir uses DefaultGlobalDir.
func NewResolver(globalDir string) *Resolver {
	if strings.TrimSpace(globalDir) == "" {
		globalDir = DefaultGlobalDir()
	}
	return &Resolver{globalDir: globalDir}
}

// GlobalDir returns the profile directory consulted by this resolver.
func (r *Resolver) GlobalDir() string {
	return r.globalDir
}

// Resolve merges defaults, the global profile, the local project file and at
// most one skill file for targetPath's extension. Missing or unparseable
// files are treated as empty layers, so Resolve never fails.
func (r *Resolver) Resolve(targetPath, baseDir string) Resolved {
	res := Resolved{
		BaseSource:  SourceDefault,
		SkillSource: SkillNone,
		Extension:   Extension(targetPath),
	}

	globalPath := filepath.Join(r.globalDir, LocalFileName)
	globalLayer, status := loadLayer("global", globalPath)
	res.Layers = append(res.Layers, status)
	if status.State == LayerLoaded {
		res.BaseSource = SourceGlobal
	}

	localPath := filepath.Join(baseDir, LocalFileName)
	localLayer, status := loadLayer("local", localPath)
	res.Layers = append(res.Layers, status)
	if status.State == LayerLoaded {
		res.BaseSource = SourceLocal
	}

	var skillLayer *fileLayer
	if res.Extension != "" {
		name := SkillFileName(res.Extension)
		candidates := []struct {
			path   string
			source SkillSource
		}{
			{filepath.Join(baseDir, name), SkillLocal},
			{filepath.Join(r.globalDir, name), SkillGlobal},
		}
		for _, candidate := range candidates {
			layer, status := loadLayer(string(candidate.source), candidate.path)
			res.Layers = append(res.Layers, status)
			if status.State == LayerLoaded {
				skillLayer = layer
				res.SkillSource = candidate.source
				res.SkillPath = candidate.path
				break
			}
		}
	}

	// Most specific first: skill, local, global.
	res.Config = merge(Default(), skillLayer, localLayer, globalLayer)
	return res
}

// Extension returns the lowercase extension of path without the leading dot.
// Dotfiles such as ".env" have no extension.
func Extension(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	if ext == "" || ext == base || ext == "." {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// SkillFileName returns the skill file name for an extension, e.g. ".go.bucket-include.toml".
func SkillFileName(ext string) string {
	return "." + ext + skillFileSuffix
}

// DefaultGlobalDir returns $XDG_CONFIG_HOME/open-buckets, falling back to ~/.config/open-buckets.
func DefaultGlobalDir() string {
	if base, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, GlobalDirName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("~", ".config", GlobalDirName)
	}
	return filepath.Join(home, ".config", GlobalDirName)
}

func loadLayer(name, path string) (*fileLayer, LayerStatus) {
	status := LayerStatus{Name: name, Path: path, State: LayerAbsent}
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			status.State = LayerInvalid
			status.Err = fmt.Errorf("read %s config: %w", name, err)
		}
		return nil, status
	}
	layer, err := parseLayer(data)
	if err != nil {
		status.State = LayerInvalid
		status.Err = fmt.Errorf("parse %s config %s: %w", name, path, err)
		return nil, status
	}
	status.State = LayerLoaded
	return layer, status
}

func parseLayer(data []byte) (*fileLayer, error) {
	var layer fileLayer
	if err := toml.Unmarshal(data, &layer); err != nil {
		return nil, err
	}
	if err := layer.normalize(); err != nil {
		return nil, err
	}
	return &layer, nil
}

// merge folds layers into base. Layers are ordered most specific first; nil
// layers are skipped.
func merge(base Config, layers ...*fileLayer) Config {
	var include, exclude []string
	directories := map[string][]string{}
	var maxFiles *int
	var maxSize *int64

	for _, layer := range layers {
		if layer == nil {
			continue
		}
		include = append(include, layer.Include...)
		exclude = append(exclude, layer.Exclude...)
		for dir, patterns := range layer.Directories {
			if _, ok := directories[dir]; ok {
				continue
			}
			directories[dir] = append([]string(nil), patterns...)
		}
		if maxFiles == nil && layer.Limits.MaxFiles != nil {
			maxFiles = layer.Limits.MaxFiles
		}
		if maxSize == nil && layer.Limits.MaxSizeBytes != nil {
			maxSize = layer.Limits.MaxSizeBytes
		}
	}

	out := Config{
		Include:     dedupe(append(include, base.Include...)),
		Exclude:     dedupe(append(exclude, base.Exclude...)),
		Directories: base.Directories,
		Limits:      base.Limits,
	}
	if out.Directories == nil {
		out.Directories = map[string][]string{}
	}
	for dir, patterns := range directories {
		out.Directories[dir] = patterns
	}
	if maxFiles != nil {
		out.Limits.MaxFiles = *maxFiles
	}
	if maxSize != nil {
		out.Limits.MaxSizeBytes = *maxSize
	}
	return out
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && pathValue[1] == '/' {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample layer file to path. It refuses to overwrite an
// existing file unless force is set.
func CreateSample(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s: %w", path, fs.ErrExist)
		}
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
