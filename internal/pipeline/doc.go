// Package pipeline renders archived Markdown as a self-contained HTML page.
//
// The export runs in stages:
//   - Markdown preprocessing (line normalization, highlight syntax)
//   - Markdown to HTML conversion via Goldmark with GFM and chroma highlighting
//   - Sanitization with bluemonday, keeping data URI images
//   - An inline stylesheet in the page head (base layout plus the chroma classes)
//
// ExternalImages audits the result for images that would still need the
// network to display.
package pipeline
