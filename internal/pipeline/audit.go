package pipeline

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ExternalImages lists the image sources in htmlContent that still point
// outside the page, in document order without duplicates.
//
// Checks:
//   - img[src]
//   - img[srcset] and source[srcset] candidates
//
// Data URIs, anchors and empty values are self-contained and skipped.
func ExternalImages(htmlContent string) ([]string, error) {
	doc, err := parseHTML(htmlContent)
	if err != nil {
		return nil, err
	}

	var found []string
	seen := make(map[string]bool)
	add := func(src string) {
		if !isExternal(src) || seen[src] {
			return
		}
		seen[src] = true
		found = append(found, src)
	}

	walk(doc, func(n *html.Node) {
		switch n.DataAtom {
		case atom.Img:
			add(attr(n, "src"))
			for _, candidate := range srcsetURLs(attr(n, "srcset")) {
				add(candidate)
			}
		case atom.Source:
			for _, candidate := range srcsetURLs(attr(n, "srcset")) {
				add(candidate)
			}
		}
	})
	return found, nil
}

// parseHTML parses HTML content, handling both full documents and fragments.
func parseHTML(content string) (*html.Node, error) {
	trimmed := strings.ToLower(strings.TrimSpace(content))

	// Full document: starts with <!DOCTYPE or <html
	if strings.HasPrefix(trimmed, "<!doctype") || strings.HasPrefix(trimmed, "<html") {
		return html.Parse(strings.NewReader(content))
	}

	// Fragment: parse with body context to avoid wrapping
	context := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Body,
		Data:     "body",
	}
	nodes, err := html.ParseFragment(strings.NewReader(content), context)
	if err != nil {
		return nil, err
	}

	// Wrap nodes in a container for uniform traversal
	container := &html.Node{Type: html.DocumentNode}
	for _, n := range nodes {
		container.AppendChild(n)
	}
	return container, nil
}

// walk visits element nodes depth-first.
func walk(n *html.Node, visit func(*html.Node)) {
	if n.Type == html.ElementNode {
		visit(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// srcsetURLs extracts the URL of each comma separated srcset candidate.
func srcsetURLs(srcset string) []string {
	if srcset == "" {
		return nil
	}
	var urls []string
	for _, candidate := range strings.Split(srcset, ",") {
		if fields := strings.Fields(candidate); len(fields) > 0 {
			urls = append(urls, fields[0])
		}
	}
	return urls
}

// isExternal reports whether displaying src needs anything beyond the page.
func isExternal(src string) bool {
	src = strings.TrimSpace(src)
	if src == "" || strings.HasPrefix(src, "#") {
		return false
	}
	return !strings.HasPrefix(strings.ToLower(src), "data:")
}
