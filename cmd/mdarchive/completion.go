package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	flag "github.com/spf13/pflag"
)

// Shell represents a supported shell for completion generation.
type Shell string

// Supported shells for completion.
const (
	ShellBash       Shell = "bash"
	ShellZsh        Shell = "zsh"
	ShellFish       Shell = "fish"
	ShellPowerShell Shell = "powershell"
)

// ErrUnsupportedShell is returned when an unknown shell is requested.
var ErrUnsupportedShell = errors.New("unsupported shell")

// flagType represents the completion type for a flag.
type flagType int

const (
	flagString flagType = iota // default
	flagBool
	flagInt
	flagEnum // has predefined values
	flagFile // file with glob pattern
	flagDir  // directory
)

// flagDef describes a flag for completion purposes.
type flagDef struct {
	Long     string   // --output
	Short    string   // -o (empty if none)
	Type     flagType // completion type
	Desc     string   // help text
	Values   []string // for enum flags
	FileGlob string   // for file flags, comma separated
}

// commandDef describes a command for completion.
type commandDef struct {
	Name   string
	Desc   string
	Flags  []flagDef
	Values []string // positional values, e.g. shells
}

// completionMeta holds completion-specific metadata for flags.
// Flag names, types and descriptions come from the FlagSet.
type completionMeta struct {
	Values   []string
	FileGlob string
	IsDir    bool
}

// markdownGlob matches the documents archive accepts.
const markdownGlob = "*.md,*.markdown"

var flagCompletionMeta = map[string]completionMeta{
	"policy":  {Values: []string{"fallback", "propagate"}},
	"runtime": {Values: []string{"auto", "server", "browser"}},
	"suffix":  {Values: []string{".archived", "auto", "auto:iso", "auto:compact", "auto:minute"}},

	"config":       {FileGlob: "*.yaml,*.yml"},
	"fallback":     {FileGlob: "*.png,*.jpg,*.jpeg,*.gif,*.svg,*.webp"},
	"metrics-file": {FileGlob: "*.prom"},
	"chrome-bin":   {FileGlob: "*"},

	"output": {IsDir: true},
}

var shells = []string{string(ShellBash), string(ShellZsh), string(ShellFish), string(ShellPowerShell)}

// extractFlagsFromFlagSet extracts flag definitions from a pflag.FlagSet,
// enriched with flagCompletionMeta. Flags come out sorted by name.
func extractFlagsFromFlagSet(fs *flag.FlagSet) []flagDef {
	var flags []flagDef

	fs.VisitAll(func(f *flag.Flag) {
		fd := flagDef{
			Long:  f.Name,
			Short: f.Shorthand,
			Desc:  f.Usage,
		}

		switch f.Value.Type() {
		case "bool":
			fd.Type = flagBool
		case "int", "int8", "int16", "int32", "int64", "uint", "uint8", "uint16", "uint32", "uint64":
			fd.Type = flagInt
		default:
			fd.Type = flagString
		}

		if meta, ok := flagCompletionMeta[f.Name]; ok {
			switch {
			case len(meta.Values) > 0:
				fd.Type = flagEnum
				fd.Values = meta.Values
			case meta.FileGlob != "":
				fd.Type = flagFile
				fd.FileGlob = meta.FileGlob
			case meta.IsDir:
				fd.Type = flagDir
			}
		}

		flags = append(flags, fd)
	})

	sort.Slice(flags, func(i, j int) bool { return flags[i].Long < flags[j].Long })
	return flags
}

// getCommands returns the command registry for completion.
// Archive flags are read from the FlagSet the parser uses.
func getCommands() []commandDef {
	fs, _ := newArchiveFlagSet()

	return []commandDef{
		{
			Name:  "archive",
			Desc:  "Embed every image of markdown documents as data URIs",
			Flags: extractFlagsFromFlagSet(fs),
		},
		{
			Name:  "doctor",
			Desc:  "Check runtime, Chrome and sandbox setup",
			Flags: []flagDef{{Long: "json", Type: flagBool, Desc: "print results as JSON"}},
		},
		{Name: "version", Desc: "Show version information"},
		{Name: "help", Desc: "Show help for a command"},
		{Name: "completion", Desc: "Generate shell completion script", Values: shells},
	}
}

// archiveCommand returns the archive entry of commands.
func archiveCommand(commands []commandDef) commandDef {
	for _, c := range commands {
		if c.Name == "archive" {
			return c
		}
	}
	return commandDef{}
}

// GenerateCompletion writes the completion script for shell to w.
func GenerateCompletion(w io.Writer, shell Shell) error {
	switch shell {
	case ShellBash:
		return generateBash(w)
	case ShellZsh:
		return generateZsh(w)
	case ShellFish:
		return generateFish(w)
	case ShellPowerShell:
		return generatePowerShell(w)
	default:
		return fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedShell, shell, strings.Join(shells, ", "))
	}
}

// runCompletion handles the completion command.
func runCompletion(args []string, env *Environment) error {
	if len(args) == 0 {
		printCompletionUsage(env.Stdout)
		return nil
	}
	return GenerateCompletion(env.Stdout, Shell(args[0]))
}

// runCompletionCmd runs the completion command and returns an exit code.
func runCompletionCmd(args []string, env *Environment) int {
	if err := runCompletion(args, env); err != nil {
		fmt.Fprintln(env.Stderr, "error:", err)
		return exitCodeFor(err)
	}
	return ExitSuccess
}

// globExtensions turns "*.yaml,*.yml" into ["yaml", "yml"]. A bare "*"
// yields nil, meaning any file.
func globExtensions(glob string) []string {
	var exts []string
	for _, g := range strings.Split(glob, ",") {
		if ext, ok := strings.CutPrefix(strings.TrimSpace(g), "*."); ok {
			exts = append(exts, ext)
		}
	}
	return exts
}

// ---------------------------------------------------------------------------
// Bash
// ---------------------------------------------------------------------------

func generateBash(w io.Writer) error {
	commands := getCommands()
	archive := archiveCommand(commands)

	var b strings.Builder
	b.WriteString("# bash completion for mdarchive\n\n")
	b.WriteString("_mdarchive_files() {\n")
	b.WriteString("    local IFS=$'\\n'\n")
	b.WriteString("    COMPREPLY+=( $(compgen -d -- \"$1\") )\n")
	b.WriteString("    local ext\n")
	b.WriteString("    for ext in \"${@:2}\"; do\n")
	b.WriteString("        COMPREPLY+=( $(compgen -f -X \"!*.${ext}\" -- \"$1\") )\n")
	b.WriteString("    done\n")
	b.WriteString("}\n\n")

	b.WriteString("_mdarchive_completions() {\n")
	b.WriteString("    local cur prev cmd\n")
	b.WriteString("    cur=\"${COMP_WORDS[COMP_CWORD]}\"\n")
	b.WriteString("    prev=\"${COMP_WORDS[COMP_CWORD-1]}\"\n")
	b.WriteString("    cmd=\"${COMP_WORDS[1]}\"\n")
	b.WriteString("    COMPREPLY=()\n\n")

	names := make([]string, len(commands))
	for i, c := range commands {
		names[i] = c.Name
	}
	b.WriteString("    if [[ ${COMP_CWORD} -eq 1 && \"$cur\" != -* ]]; then\n")
	fmt.Fprintf(&b, "        COMPREPLY=( $(compgen -W %q -- \"$cur\") )\n", strings.Join(names, " "))
	fmt.Fprintf(&b, "        _mdarchive_files \"$cur\" %s\n", strings.Join(globExtensions(markdownGlob), " "))
	b.WriteString("        return\n")
	b.WriteString("    fi\n\n")

	b.WriteString("    case \"$prev\" in\n")
	for _, f := range archive.Flags {
		action := bashFlagAction(f)
		if action == "" {
			continue
		}
		fmt.Fprintf(&b, "        %s)\n            %s\n            return\n            ;;\n", bashFlagPattern(f), action)
	}
	b.WriteString("    esac\n\n")

	b.WriteString("    case \"$cmd\" in\n")
	for _, c := range commands {
		if c.Name == "archive" {
			continue
		}
		fmt.Fprintf(&b, "        %s)\n", c.Name)
		words := append(flagWords(c.Flags), c.Values...)
		if len(words) > 0 {
			fmt.Fprintf(&b, "            COMPREPLY=( $(compgen -W %q -- \"$cur\") )\n", strings.Join(words, " "))
		}
		b.WriteString("            ;;\n")
	}
	b.WriteString("        *)\n")
	fmt.Fprintf(&b, "            if [[ \"$cur\" == -* ]]; then\n                COMPREPLY=( $(compgen -W %q -- \"$cur\") )\n",
		strings.Join(flagWords(archive.Flags), " "))
	fmt.Fprintf(&b, "            else\n                _mdarchive_files \"$cur\" %s\n            fi\n",
		strings.Join(globExtensions(markdownGlob), " "))
	b.WriteString("            ;;\n")
	b.WriteString("    esac\n")
	b.WriteString("}\n\n")
	b.WriteString("complete -F _mdarchive_completions mdarchive\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func bashFlagPattern(f flagDef) string {
	if f.Short != "" {
		return "-" + f.Short + "|--" + f.Long
	}
	return "--" + f.Long
}

// bashFlagAction completes the value of f, or returns "" for flags whose
// value cannot be completed.
func bashFlagAction(f flagDef) string {
	switch f.Type {
	case flagEnum:
		return fmt.Sprintf("COMPREPLY=( $(compgen -W %q -- \"$cur\") )", strings.Join(f.Values, " "))
	case flagDir:
		return "COMPREPLY=( $(compgen -d -- \"$cur\") )"
	case flagFile:
		exts := globExtensions(f.FileGlob)
		if len(exts) == 0 {
			return "COMPREPLY=( $(compgen -f -- \"$cur\") )"
		}
		return "_mdarchive_files \"$cur\" " + strings.Join(exts, " ")
	case flagString, flagInt:
		return ":"
	}
	return ""
}

// flagWords lists every spelling of flags, long forms first.
func flagWords(flags []flagDef) []string {
	var words []string
	for _, f := range flags {
		words = append(words, "--"+f.Long)
	}
	for _, f := range flags {
		if f.Short != "" {
			words = append(words, "-"+f.Short)
		}
	}
	return words
}

// ---------------------------------------------------------------------------
// Zsh
// ---------------------------------------------------------------------------

func generateZsh(w io.Writer) error {
	commands := getCommands()
	archive := archiveCommand(commands)

	var b strings.Builder
	b.WriteString("#compdef mdarchive\n\n")
	b.WriteString("_mdarchive() {\n")
	b.WriteString("    local -a commands archive_args\n")
	b.WriteString("    commands=(\n")
	for _, c := range commands {
		fmt.Fprintf(&b, "        '%s:%s'\n", c.Name, zshEscape(c.Desc))
	}
	b.WriteString("    )\n")
	b.WriteString("    archive_args=(\n")
	for _, f := range archive.Flags {
		for _, spec := range zshFlagSpecs(f) {
			fmt.Fprintf(&b, "        %s\n", spec)
		}
	}
	fmt.Fprintf(&b, "        '*:markdown file:_files -g \"%s\"'\n", zshGlob(markdownGlob))
	b.WriteString("    )\n\n")

	b.WriteString("    if (( CURRENT == 2 )) && [[ $words[2] != -* ]]; then\n")
	b.WriteString("        _describe 'command' commands\n")
	fmt.Fprintf(&b, "        _files -g \"%s\"\n", zshGlob(markdownGlob))
	b.WriteString("        return\n")
	b.WriteString("    fi\n\n")

	b.WriteString("    case $words[2] in\n")
	for _, c := range commands {
		switch {
		case c.Name == "archive":
			b.WriteString("        archive)\n")
			b.WriteString("            shift words\n")
			b.WriteString("            (( CURRENT-- ))\n")
			b.WriteString("            _arguments -s $archive_args\n")
			b.WriteString("            ;;\n")
		case len(c.Flags) > 0:
			fmt.Fprintf(&b, "        %s)\n            _arguments", c.Name)
			for _, f := range c.Flags {
				for _, spec := range zshFlagSpecs(f) {
					b.WriteString(" " + spec)
				}
			}
			b.WriteString("\n            ;;\n")
		case len(c.Values) > 0:
			fmt.Fprintf(&b, "        %s)\n            _values '%s' %s\n            ;;\n",
				c.Name, c.Name, strings.Join(c.Values, " "))
		default:
			fmt.Fprintf(&b, "        %s)\n            ;;\n", c.Name)
		}
	}
	b.WriteString("        *)\n")
	b.WriteString("            _arguments -s $archive_args\n")
	b.WriteString("            ;;\n")
	b.WriteString("    esac\n")
	b.WriteString("}\n\n")
	b.WriteString("compdef _mdarchive mdarchive\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// zshFlagSpecs returns _arguments specs for f, one per spelling.
func zshFlagSpecs(f flagDef) []string {
	desc := "[" + zshEscape(f.Desc) + "]"
	var action string
	switch f.Type {
	case flagEnum:
		action = ":" + f.Long + ":(" + strings.Join(f.Values, " ") + ")"
	case flagDir:
		action = ":directory:_files -/"
	case flagFile:
		if exts := globExtensions(f.FileGlob); len(exts) > 0 {
			action = ":file:_files -g \"" + zshGlob(f.FileGlob) + "\""
		} else {
			action = ":file:_files"
		}
	case flagString, flagInt:
		action = ":" + f.Long + ": "
	}

	specs := []string{"'--" + f.Long + desc + action + "'"}
	if f.Short != "" {
		specs = append(specs, "'-"+f.Short+desc+action+"'")
	}
	return specs
}

// zshGlob turns "*.yaml,*.yml" into "*.(yaml|yml)".
func zshGlob(glob string) string {
	exts := globExtensions(glob)
	if len(exts) == 0 {
		return "*"
	}
	if len(exts) == 1 {
		return "*." + exts[0]
	}
	return "*.(" + strings.Join(exts, "|") + ")"
}

func zshEscape(s string) string {
	r := strings.NewReplacer("'", `'\''`, "[", `\[`, "]", `\]`, ":", `\:`)
	return r.Replace(s)
}

// ---------------------------------------------------------------------------
// Fish
// ---------------------------------------------------------------------------

func generateFish(w io.Writer) error {
	commands := getCommands()
	archive := archiveCommand(commands)

	var names []string
	for _, c := range commands {
		names = append(names, c.Name)
	}
	others := make([]string, 0, len(names))
	for _, n := range names {
		if n != "archive" {
			others = append(others, n)
		}
	}

	var b strings.Builder
	b.WriteString("# fish completion for mdarchive\n\n")
	b.WriteString("function __fish_mdarchive_needs_command\n")
	b.WriteString("    set -l cmd (commandline -opc)\n")
	b.WriteString("    test (count $cmd) -eq 1\n")
	b.WriteString("end\n\n")
	b.WriteString("function __fish_mdarchive_using_command\n")
	b.WriteString("    set -l cmd (commandline -opc)\n")
	b.WriteString("    test (count $cmd) -gt 1; and test $cmd[2] = $argv[1]\n")
	b.WriteString("end\n\n")

	b.WriteString("complete -c mdarchive -f\n")
	for _, c := range commands {
		fmt.Fprintf(&b, "complete -c mdarchive -n __fish_mdarchive_needs_command -a %s -d '%s'\n", c.Name, fishEscape(c.Desc))
	}
	fmt.Fprintf(&b, "complete -c mdarchive -n 'not __fish_seen_subcommand_from %s' -k -a '(__fish_complete_suffix .md; __fish_complete_suffix .markdown)'\n",
		strings.Join(others, " "))
	b.WriteString("\n")

	archiveCond := "not __fish_seen_subcommand_from " + strings.Join(others, " ")
	for _, f := range archive.Flags {
		b.WriteString(fishFlagLine(archiveCond, f))
	}
	for _, c := range commands {
		if c.Name == "archive" {
			continue
		}
		cond := "__fish_mdarchive_using_command " + c.Name
		for _, f := range c.Flags {
			b.WriteString(fishFlagLine(cond, f))
		}
		if len(c.Values) > 0 {
			fmt.Fprintf(&b, "complete -c mdarchive -n '%s' -a '%s'\n", cond, strings.Join(c.Values, " "))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func fishFlagLine(cond string, f flagDef) string {
	var b strings.Builder
	fmt.Fprintf(&b, "complete -c mdarchive -n '%s'", cond)
	if f.Short != "" {
		fmt.Fprintf(&b, " -s %s", f.Short)
	}
	fmt.Fprintf(&b, " -l %s -d '%s'", f.Long, fishEscape(f.Desc))
	switch f.Type {
	case flagEnum:
		fmt.Fprintf(&b, " -x -a '%s'", strings.Join(f.Values, " "))
	case flagDir:
		b.WriteString(" -x -a '(__fish_complete_directories)'")
	case flagFile:
		b.WriteString(" -r -F")
	case flagString, flagInt:
		b.WriteString(" -x")
	}
	b.WriteString("\n")
	return b.String()
}

func fishEscape(s string) string {
	return strings.NewReplacer(`\`, `\\`, "'", `\'`).Replace(s)
}

// ---------------------------------------------------------------------------
// PowerShell
// ---------------------------------------------------------------------------

func generatePowerShell(w io.Writer) error {
	commands := getCommands()

	var b strings.Builder
	b.WriteString("# PowerShell completion for mdarchive\n\n")
	b.WriteString("Register-ArgumentCompleter -Native -CommandName mdarchive -ScriptBlock {\n")
	b.WriteString("    param($wordToComplete, $commandAst, $cursorPosition)\n\n")
	b.WriteString("    $words = @($commandAst.CommandElements | ForEach-Object { $_.ToString() })\n")
	b.WriteString("    $commands = [ordered]@{\n")
	for _, c := range commands {
		fmt.Fprintf(&b, "        '%s' = '%s'\n", c.Name, psEscape(c.Desc))
	}
	b.WriteString("    }\n")
	b.WriteString("    $flags = @{\n")
	for _, c := range commands {
		fmt.Fprintf(&b, "        '%s' = @(", c.Name)
		var entries []string
		for _, f := range c.Flags {
			entries = append(entries, fmt.Sprintf("@('--%s', '%s')", f.Long, psEscape(f.Desc)))
			if f.Short != "" {
				entries = append(entries, fmt.Sprintf("@('-%s', '%s')", f.Short, psEscape(f.Desc)))
			}
		}
		for _, v := range c.Values {
			entries = append(entries, fmt.Sprintf("@('%s', '%s')", v, v))
		}
		b.WriteString(strings.Join(entries, ", "))
		b.WriteString(")\n")
	}
	b.WriteString("    }\n\n")

	b.WriteString("    if ($words.Count -le 2 -and -not $wordToComplete.StartsWith('-')) {\n")
	b.WriteString("        $commands.GetEnumerator() | Where-Object { $_.Key -like \"$wordToComplete*\" } | ForEach-Object {\n")
	b.WriteString("            [System.Management.Automation.CompletionResult]::new($_.Key, $_.Key, 'ParameterValue', $_.Value)\n")
	b.WriteString("        }\n")
	b.WriteString("        return\n")
	b.WriteString("    }\n\n")

	b.WriteString("    $cmd = if ($words.Count -gt 1 -and $commands.Contains($words[1])) { $words[1] } else { 'archive' }\n")
	b.WriteString("    $flags[$cmd] | Where-Object { $_[0] -like \"$wordToComplete*\" } | ForEach-Object {\n")
	b.WriteString("        [System.Management.Automation.CompletionResult]::new($_[0], $_[0], 'ParameterName', $_[1])\n")
	b.WriteString("    }\n")
	b.WriteString("}\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func psEscape(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// printCompletionUsage prints help for the completion command.
func printCompletionUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: mdarchive completion <shell>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Generate shell completion script for the specified shell.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Supported shells:")
	fmt.Fprintln(w, "  bash        Bash completion script")
	fmt.Fprintln(w, "  zsh         Zsh completion script")
	fmt.Fprintln(w, "  fish        Fish completion script")
	fmt.Fprintln(w, "  powershell  PowerShell completion script")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Installation:")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  Bash:")
	fmt.Fprintln(w, "    # Add to ~/.bashrc:")
	fmt.Fprintln(w, "    eval \"$(mdarchive completion bash)\"")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  Zsh:")
	fmt.Fprintln(w, "    # Add to ~/.zshrc (after compinit):")
	fmt.Fprintln(w, "    eval \"$(mdarchive completion zsh)\"")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  Fish:")
	fmt.Fprintln(w, "    mdarchive completion fish > ~/.config/fish/completions/mdarchive.fish")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  PowerShell:")
	fmt.Fprintln(w, "    # Add to $PROFILE:")
	fmt.Fprintln(w, "    mdarchive completion powershell | Out-String | Invoke-Expression")
}
