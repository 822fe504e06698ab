package main

import (
	"fmt"
	"io"
)

// printUsage prints the main usage message.
func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: mdarchive [archive] <input> [flags]")
	fmt.Fprintln(w, "       mdarchive <command>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  archive    Embed every image of markdown files as data URIs (default)")
	fmt.Fprintln(w, "  doctor     Check Chrome and the environment")
	fmt.Fprintln(w, "  completion Generate shell completion script")
	fmt.Fprintln(w, "  version    Show version information")
	fmt.Fprintln(w, "  help       Show help for a command")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'mdarchive help <command>' for details on a specific command.")
}

// printArchiveUsage prints usage for the archive command.
func printArchiveUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: mdarchive archive <input> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Download every image a markdown document references and rewrite it")
	fmt.Fprintln(w, "as an inline data: URI, producing a self-contained copy.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Arguments:")
	fmt.Fprintln(w, "  input    Markdown file, directory, or - for stdin")
	fmt.Fprintln(w, "           (optional if config has input.defaultDir)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Input/Output:")
	fmt.Fprintln(w, "  -o, --output <path>         Output file, directory, or - for stdout")
	fmt.Fprintln(w, "      --suffix <s>            Output name suffix (default \".archived\")")
	fmt.Fprintln(w, "      --html                  Also write a self-contained HTML page")
	fmt.Fprintln(w, "      --title <s>             HTML page title (default: file name)")
	fmt.Fprintln(w, "  -c, --config <name>         Config file name or path")
	fmt.Fprintln(w, "  -w, --workers <n>           Parallel documents (0 = auto)")
	fmt.Fprintln(w, "      --watch                 Re-archive documents when they change")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Images:")
	fmt.Fprintln(w, "  -p, --policy <s>            On failure: fallback (default) or propagate")
	fmt.Fprintln(w, "      --fallback <s>          Replacement image: data URI or file path")
	fmt.Fprintln(w, "  -t, --timeout <d>           Per-image timeout (default 30s)")
	fmt.Fprintln(w, "  -n, --concurrency <n>       Images in flight per document (0 = unbounded)")
	fmt.Fprintln(w, "      --max-image-size <s>    Largest accepted image (default 32MiB)")
	fmt.Fprintln(w, "      --user-agent <s>        User-Agent for image requests")
	fmt.Fprintln(w, "      --sniff                 Detect types from content when servers are vague")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Runtime:")
	fmt.Fprintln(w, "  -r, --runtime <s>           Encoding strategy: auto, server, browser")
	fmt.Fprintln(w, "      --chrome                Encode through headless Chrome's FileReader")
	fmt.Fprintln(w, "      --chrome-bin <path>     Chrome binary (implies --chrome)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Output Control:")
	fmt.Fprintln(w, "  -q, --quiet                 Only show errors")
	fmt.Fprintln(w, "  -v, --verbose               Log every image and show timings")
	fmt.Fprintln(w, "      --metrics-file <path>   Write Prometheus metrics to a textfile")
	fmt.Fprintln(w, "      --print-config          Print the effective configuration and exit")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  MDARCHIVE_CONFIG, MDARCHIVE_POLICY, MDARCHIVE_TIMEOUT, MDARCHIVE_INPUT_DIR,")
	fmt.Fprintln(w, "  MDARCHIVE_OUTPUT_DIR, MDARCHIVE_METRICS_FILE, MDARCHIVE_RUNTIME,")
	fmt.Fprintln(w, "  MDARCHIVE_CHROME_BIN, MDARCHIVE_USER_AGENT, MDARCHIVE_CONCURRENCY,")
	fmt.Fprintln(w, "  MDARCHIVE_WORKERS")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Exit codes:")
	fmt.Fprintln(w, "  0 success, 1 general, 2 usage, 3 I/O, 4 browser, 5 image failure")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Examples:")
	fmt.Fprintln(w, "  mdarchive notes.md                      # writes notes.archived.md")
	fmt.Fprintln(w, "  mdarchive ./docs -o ./offline --html")
	fmt.Fprintln(w, "  mdarchive ./docs --watch")
	fmt.Fprintln(w, "  cat notes.md | mdarchive - -p propagate > notes.offline.md")
}

// printDoctorUsage prints usage for the doctor command.
func printDoctorUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: mdarchive doctor [--json]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Report the detected runtime, Chrome availability and sandbox settings.")
	fmt.Fprintln(w, "Exits 1 when archiving cannot work at all.")
}

// runHelp prints help for a command.
func runHelp(args []string, env *Environment) int {
	if len(args) == 0 {
		printUsage(env.Stdout)
		return ExitSuccess
	}
	switch args[0] {
	case "archive":
		printArchiveUsage(env.Stdout)
	case "doctor":
		printDoctorUsage(env.Stdout)
	case "completion":
		printCompletionUsage(env.Stdout)
	case "version", "help":
		printUsage(env.Stdout)
	default:
		fmt.Fprintf(env.Stderr, "error: %v: %q\n", ErrUnknownCommand, args[0])
		printUsage(env.Stderr)
		return ExitUsage
	}
	return ExitSuccess
}
