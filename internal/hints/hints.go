// Package hints provides actionable error hints for common failure scenarios.
// Hints are formatted consistently as "\n  hint: <text>" for appending to error messages.
package hints

import (
	"os"
	"strconv"
	"strings"

	"github.com/alnah/go-mdarchive/internal/fileutil"
)

// IsInContainer detects if running inside a Docker container or similar.
// Checks for /.dockerenv file which Docker creates automatically.
var IsInContainer = func() bool {
	return fileutil.FileExists("/.dockerenv")
}

// ForBrowserConnect returns hints for browser connection errors.
// Detects CI/Docker environment and suggests relevant environment variables.
func ForBrowserConnect() string {
	var hints []string

	inCI := os.Getenv("CI") != "" ||
		os.Getenv("GITHUB_ACTIONS") != "" ||
		os.Getenv("GITLAB_CI") != "" ||
		os.Getenv("JENKINS_URL") != ""

	if (inCI || IsInContainer()) && os.Getenv("ROD_NO_SANDBOX") != "1" {
		hints = append(hints, "set ROD_NO_SANDBOX=1 for Docker/CI")
	}

	if os.Getenv("ROD_BROWSER_BIN") == "" {
		hints = append(hints, "set ROD_BROWSER_BIN or --chrome-bin to use an installed Chrome")
	}

	hints = append(hints, "or drop --chrome to encode in-process")

	return formatHints(hints)
}

// ForTimeout returns a hint for image downloads cut short by the deadline.
func ForTimeout() string {
	return format("slow image hosts need a longer --timeout or a lower --concurrency")
}

// ForImageFailure returns a hint for documents rejected by the propagate policy.
func ForImageFailure() string {
	return format("use --policy fallback to keep going with a placeholder image")
}

// ForOutsideRoot returns a hint for local images that escape the document directory.
func ForOutsideRoot() string {
	return format("local images must live under the document's directory")
}

// ForExternalImages returns a hint for HTML pages that still load n images
// from the network.
func ForExternalImages(n int) string {
	if n <= 0 {
		return ""
	}
	noun := "images"
	if n == 1 {
		noun = "image"
	}
	return format(strconv.Itoa(n) + " " + noun + " come from srcset or raw HTML the archiver does not rewrite")
}

// ForConfigNotFound returns hints for config file not found errors.
// Suggests --config flag and creating a config in ~/.config/go-mdarchive/.
func ForConfigNotFound(searchedPaths []string) string {
	hint := "use --config /path/to/file.yaml"

	for _, p := range searchedPaths {
		if strings.Contains(filepathSlash(p), ".config/go-mdarchive") {
			hint += " or create " + p
			break
		}
	}

	return format(hint)
}

// ForOutputDirectory returns hints for output directory creation errors.
func ForOutputDirectory() string {
	return format("check parent directory exists and is writable")
}

func filepathSlash(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

// format creates a single hint string with consistent formatting.
func format(hint string) string {
	if hint == "" {
		return ""
	}
	return "\n  hint: " + hint
}

// formatHints joins multiple hints with consistent formatting.
func formatHints(hints []string) string {
	if len(hints) == 0 {
		return ""
	}
	return format(strings.Join(hints, "; "))
}
