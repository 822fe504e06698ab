// Package markdown parses Markdown into a goldmark AST that can be patched in
// place and written back with minimal changes.
//
// goldmark has no Markdown renderer, so serialization works on the original
// bytes: Parse records where every image destination and every raw HTML node
// lives in the source, callers mutate ast.Image destinations or patch Markup
// values, and Serialize turns those mutations into byte-range edits. Text the
// caller did not touch comes back byte-identical.
package markdown
