package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	flag "github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"
)

// Version is set at build time via ldflags.
var Version = "dev"

// ErrUnknownCommand is returned for a first argument that is neither a
// command nor an input path.
var ErrUnknownCommand = errors.New("unknown command")

func main() {
	os.Exit(runMain(os.Args, DefaultEnv(), defaultPoolFactory))
}

// runMain dispatches the command line and returns the process exit code.
// A first argument that is not a command is an input for archive.
func runMain(args []string, env *Environment, newPool poolFactory) int {
	if len(args) < 2 {
		printUsage(env.Stderr)
		return ExitUsage
	}

	cmd, rest := args[1], args[2:]
	switch cmd {
	case "archive":
		return runArchiveCmd(rest, env, newPool)
	case "doctor":
		return runDoctorCmd(rest, env)
	case "completion":
		return runCompletionCmd(rest, env)
	case "version", "--version":
		fmt.Fprintf(env.Stdout, "mdarchive %s\n", Version)
		return ExitSuccess
	case "help", "-h", "--help":
		return runHelp(rest, env)
	}

	if looksLikeCommand(cmd) {
		err := fmt.Errorf("%w: %q", ErrUnknownCommand, cmd)
		fmt.Fprintln(env.Stderr, "error:", err)
		printUsage(env.Stderr)
		return exitCodeFor(err)
	}
	return runArchiveCmd(args[1:], env, newPool)
}

// looksLikeCommand reports whether arg is a bare word naming no file.
func looksLikeCommand(arg string) bool {
	if arg == stdioPath || strings.HasPrefix(arg, "-") || strings.ContainsAny(arg, `./\`) {
		return false
	}
	_, err := os.Stat(arg)
	return err != nil
}

// runArchiveCmd parses flags, installs signal handling and runs the archive.
func runArchiveCmd(args []string, env *Environment, newPool poolFactory) int {
	flags, positional, err := parseArchiveFlags(args, env.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return ExitSuccess
	}
	if err != nil {
		fmt.Fprintln(env.Stderr, "error:", err)
		return exitCodeFor(err)
	}

	setMaxProcs(flags.common.verbose, env.Stderr)

	ctx, stop := notifyContext(context.Background())
	defer stop()

	err = runArchive(ctx, positional, flags, env, newPool)
	if err != nil {
		fmt.Fprintf(env.Stderr, "error: %v%s\n", err, hintFor(err, configName(flags, env)))
	}
	return exitCodeFor(err)
}

// setMaxProcs configures GOMAXPROCS from the container CPU quota.
// Error ignored: maxprocs.Set only fails if GOMAXPROCS env is invalid,
// in which case Go runtime defaults apply and the program continues safely.
func setMaxProcs(verbose bool, w io.Writer) {
	if verbose {
		_, _ = maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
			fmt.Fprintf(w, format+"\n", args...)
		}))
		return
	}
	_, _ = maxprocs.Set(maxprocs.Logger(func(string, ...interface{}) {}))
}

func configName(flags *archiveFlags, env *Environment) string {
	if flags.common.config != "" {
		return flags.common.config
	}
	return env.Getenv("MDARCHIVE_CONFIG")
}
