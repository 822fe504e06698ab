// Package mdarchive makes Markdown documents self-contained by embedding
// every image they reference as a data: URI.
//
// # Quick Start
//
// Create an archiver, archive markdown, and close when done:
//
//	arc, err := mdarchive.NewArchiver()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer arc.Close()
//
//	out, err := arc.Archive(ctx, "# Trip\n\n![view](https://example.com/view.jpg)")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.WriteFile("trip.archived.md", []byte(out), 0644)
//
// # Archiving Pipeline
//
//  1. Parse the document with Goldmark (CommonMark plus GFM)
//  2. Scan image references: Markdown image syntax and the first <img src="...">
//     of each raw HTML node, in document order
//  3. Fetch and encode every image concurrently
//  4. Serialize the document, rewriting only the image destinations
//
// Everything else in the document is preserved byte for byte. Documents with
// no images come back unchanged.
//
// # Failure Policy
//
// By default an image that cannot be fetched or encoded is replaced by a
// small placeholder and reported in Result.Images:
//
//	res, err := arc.ArchiveDocument(ctx, mdarchive.Input{Markdown: md})
//	for _, img := range res.Fallbacks() {
//	    log.Printf("%s: %v", img.URL, img.Err)
//	}
//
// With WithFailurePolicy(PolicyPropagate) the first failure is returned as an
// *ImageError and nothing is written back to the document.
//
// # Configuration
//
// Use functional options to customize the archiver:
//
//	arc, err := mdarchive.NewArchiver(
//	    mdarchive.WithTimeout(10 * time.Second),
//	    mdarchive.WithConcurrency(8),
//	    mdarchive.WithUserAgent("docs-archiver/1.0"),
//	    mdarchive.WithContentSniffing(true),
//	)
//
// Per-document options are passed via Input:
//
//	res, err := arc.ArchiveDocument(ctx, mdarchive.Input{
//	    Markdown: content,
//	    BaseDir:  "/path/to/markdown", // for relative image paths
//	    HTML:     true,                // also render a standalone page
//	    Title:    "Trip report",
//	})
//
// # Runtime Modes
//
// Server mode base64-encodes image bytes in process. Browser mode hands them
// to a FileReader and waits for its load event; it is the default under
// js/wasm. On other hosts, WithChrome provides the FileReader of a headless
// Chrome:
//
//	arc, err := mdarchive.NewArchiver(
//	    mdarchive.WithRuntimeMode(mdarchive.ModeBrowser),
//	    mdarchive.WithChrome(""),
//	)
//
// # Parallel Processing
//
// For batch archiving, use ArchiverPool:
//
//	pool, err := mdarchive.NewArchiverPool(mdarchive.ResolvePoolSize(0))
//	defer pool.Close()
//
//	arc, err := pool.Acquire()
//	defer pool.Release(arc)
//	out, err := arc.Archive(ctx, content)
package mdarchive
