package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

const (
	sentinelStart = "<!-- symnav:start -->"
	sentinelEnd   = "<!-- symnav:end -->"
)

// newInitCmd builds `symnav init`, which writes (or updates) a symnav usage
// section in a CLAUDE.md file.
func newInitCmd(stdout, stderr io.Writer) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "init [path-to-CLAUDE.md]",
		Short: "Write a symnav usage section to CLAUDE.md",
		Long: `Write a symnav usage section to a CLAUDE.md file. The section is wrapped in
sentinel comments so it can be updated in place on subsequent runs without
touching surrounding content. Creates the file if it does not exist.

path-to-CLAUDE.md defaults to ./CLAUDE.md.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(args, dryRun, stdout, stderr)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print what would be written without modifying the file")
	return cmd
}

func runInit(args []string, dryRun bool, stdout, stderr io.Writer) error {
	section := generateSection()

	// --dry-run with no path: just print the section itself.
	if dryRun && len(args) == 0 {
		_, _ = fmt.Fprintln(stdout, section)
		return nil
	}

	path := "CLAUDE.md"
	if len(args) > 0 {
		path = args[0]
	}

	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	updated := applySection(string(existing), section)

	if dryRun {
		_, _ = fmt.Fprint(stdout, updated)
		return nil
	}

	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	_, _ = fmt.Fprintf(stderr, "wrote symnav section to %s\n", path)
	return nil
}

// generateSection returns the full sentinel-wrapped symnav documentation block.
func generateSection() string {
	body := `## symnav: Symbol Navigation

Use ` + "`symnav`" + ` via the Bash tool to jump straight to where a function,
class, method or type is defined, and to every place it is used. Each hit is
printed with its enclosing scopes so you rarely need to open the file.

**Availability:** Check with ` + "`symnav version`" + ` first; skip gracefully if
not found. It only works inside a git repository.

**Run it:**
` + "```" + `bash
symnav def UserService                       # every definition of UserService
symnav def handle --path internal/api        # only files under internal/api
symnav refs parse_config                     # every reference to parse_config
symnav refs Render --dir internal --depth 1  # limit the scan to part of the tree
` + "```" + `

**All flags:** ` + "`symnav --help`" + `

**How to use the output:**

1. **Prefer ` + "`symnav def`" + ` over Grep for definitions.** It matches whole
   identifiers and shows the complete definition body.

2. **Use ` + "`symnav refs`" + ` before changing a signature.** It lists every
   call site grouped by file.

3. **Read the suggestions.** When nothing matches, symnav lists similarly named
   symbols; retry with one of them.`

	return sentinelStart + "\n" + body + "\n" + sentinelEnd
}

// applySection inserts section into content, replacing an existing sentinel
// block if present or appending if not.
func applySection(content, section string) string {
	start := strings.Index(content, sentinelStart)
	end := strings.Index(content, sentinelEnd)

	if start >= 0 && end > start {
		return content[:start] + section + content[end+len(sentinelEnd):]
	}

	// Append, ensuring a blank line separator.
	if len(content) > 0 && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content + "\n" + section + "\n"
}
