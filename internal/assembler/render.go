package assembler

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"openbuckets/internal/config"
	"openbuckets/internal/search"
)

// Report caps. Content beyond them is summarized with a remainder line.
const (
	MaxPreviewFiles   = 20
	MaxMatchesPerFile = 10
)

const noneLine = "(none)"

// Render serializes a bundle into a Markdown report. The output depends only
// on the bundle, so equal bundles render identically.
func Render(b *Bundle) string {
	var sb strings.Builder
	renderHeader(&sb, b)
	renderContent(&sb, b)
	renderRelated(&sb, b)
	renderMatches(&sb, b)
	renderProblems(&sb, b)
	return sb.String()
}

func renderHeader(sb *strings.Builder, b *Bundle) {
	fmt.Fprintf(sb, "# Context: %s\n\n", b.Dropped.Name)
	fmt.Fprintf(sb, "- File: %s\n", b.Dropped.Path)
	if b.WatchDir != "" {
		fmt.Fprintf(sb, "- Watch directory: %s\n", b.WatchDir)
	}
	fmt.Fprintf(sb, "- Base directory: %s\n", b.BaseDir)
	fmt.Fprintf(sb, "- Size: %s\n", humanize.IBytes(uint64(max(b.Dropped.SizeBytes, 0))))
	fmt.Fprintf(sb, "- Type: %s\n", fileKind(b.Dropped))
	fmt.Fprintf(sb, "- Config: %s\n", describeConfig(b))
	fmt.Fprintf(sb, "- Generated: %s\n", b.GeneratedAt.UTC().Format(time.RFC3339))
}

func fileKind(d DroppedFile) string {
	switch {
	case d.Err != "" && d.Content == nil && !d.IsText:
		return "unreadable"
	case d.IsText:
		return "text"
	default:
		return "binary"
	}
}

func describeConfig(b *Bundle) string {
	base := string(b.BaseSource)
	if base == "" {
		base = string(config.SourceDefault)
	}
	if b.SkillSource == "" || b.SkillSource == config.SkillNone {
		return base
	}
	return fmt.Sprintf("%s + %s (%s)", base, b.SkillSource, filepath.Base(b.SkillPath))
}

func renderContent(sb *strings.Builder, b *Bundle) {
	sb.WriteString("\n## Content\n\n")
	d := b.Dropped
	switch {
	case d.Content != nil:
		fence := fenceFor(*d.Content)
		sb.WriteString(fence)
		sb.WriteString(config.Extension(d.Name))
		sb.WriteByte('\n')
		sb.WriteString(*d.Content)
		if !strings.HasSuffix(*d.Content, "\n") {
			sb.WriteByte('\n')
		}
		sb.WriteString(fence)
		sb.WriteByte('\n')
	case d.Err != "":
		fmt.Fprintf(sb, "(%s)\n", d.Err)
	case !d.IsText:
		sb.WriteString("(binary file, content omitted)\n")
	default:
		sb.WriteString(noneLine + "\n")
	}
}

// fenceFor returns a backtick fence longer than any backtick run in content.
func fenceFor(content string) string {
	longest, run := 0, 0
	for _, r := range content {
		if r == '`' {
			run++
			longest = max(longest, run)
			continue
		}
		run = 0
	}
	return strings.Repeat("`", max(3, longest+1))
}

func renderRelated(sb *strings.Builder, b *Bundle) {
	stats := b.RelatedStats
	fmt.Fprintf(sb, "\n## Related Files (%d, %s)\n\n", len(b.Related), humanize.IBytes(uint64(max(stats.TotalSizeBytes, 0))))
	if len(b.Related) == 0 {
		sb.WriteString(noneLine + "\n")
		return
	}
	for i, path := range b.Related {
		if i == MaxPreviewFiles {
			fmt.Fprintf(sb, "- ... and %d more files\n", len(b.Related)-MaxPreviewFiles)
			break
		}
		fmt.Fprintf(sb, "- %s\n", displayPath(b.BaseDir, path))
	}
	if stats.OverFileLimit {
		sb.WriteString("\nNote: matched file count exceeds the configured max_files.\n")
	}
}

type matchGroup struct {
	source  string
	matches []search.Match
}

// groupMatches groups by source file in order of first appearance.
func groupMatches(matches []search.Match) []matchGroup {
	index := map[string]int{}
	var groups []matchGroup
	for _, m := range matches {
		pos, ok := index[m.SourceFile]
		if !ok {
			pos = len(groups)
			index[m.SourceFile] = pos
			groups = append(groups, matchGroup{source: m.SourceFile})
		}
		groups[pos].matches = append(groups[pos].matches, m)
	}
	return groups
}

func renderMatches(sb *strings.Builder, b *Bundle) {
	fmt.Fprintf(sb, "\n## Search Matches (%d)\n", countHits(b.Matches))
	if len(b.Matches) == 0 {
		sb.WriteString("\n" + noneLine + "\n")
		return
	}
	for _, group := range groupMatches(b.Matches) {
		fmt.Fprintf(sb, "\n### %s\n\n", displayPath(b.BaseDir, group.source))
		for i, m := range group.matches {
			if i == MaxMatchesPerFile {
				fmt.Fprintf(sb, "- ... and %d more matches\n", len(group.matches)-MaxMatchesPerFile)
				break
			}
			if m.LineNumber != nil {
				fmt.Fprintf(sb, "- Line %s: %s\n", strconv.Itoa(*m.LineNumber), inlineCode(m.Text))
				continue
			}
			fmt.Fprintf(sb, "- context: %s\n", inlineCode(m.Text))
		}
	}
}

func countHits(matches []search.Match) int {
	n := 0
	for _, m := range matches {
		if m.LineNumber != nil {
			n++
		}
	}
	return n
}

func inlineCode(text string) string {
	text = strings.TrimRight(text, "\r")
	if strings.TrimSpace(text) == "" {
		return "(blank)"
	}
	if strings.Contains(text, "`") {
		return "`` " + text + " ``"
	}
	return "`" + text + "`"
}

func renderProblems(sb *strings.Builder, b *Bundle) {
	if len(b.Problems) == 0 {
		return
	}
	sb.WriteString("\n## Problems\n\n")
	for _, p := range b.Problems {
		fmt.Fprintf(sb, "- %s (%s): %s\n", p.Stage, p.Kind, p.Message)
	}
}

// displayPath shows paths under baseDir relative to it.
func displayPath(baseDir, path string) string {
	if baseDir == "" || !filepath.IsAbs(path) {
		return path
	}
	rel, err := filepath.Rel(baseDir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return filepath.ToSlash(rel)
}
