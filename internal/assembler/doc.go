// Package assembler turns a dropped file into a context bundle and renders it
// as a Markdown report.
//
// BuildForFile runs four stages in order: read-dropped-file, collect-related,
// search-directories and assemble. A failing stage is logged, recorded as a
// problem on the bundle and degrades to an empty section, so a bundle is
// always produced. Render is a pure function of the bundle. Processor ties a
// resolver, builder and output writer together and serializes report writes.
package assembler
