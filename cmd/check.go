package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/TFMV/dirlisten/internal/config"
	"github.com/TFMV/dirlisten/internal/listen"
	"github.com/karrick/godirwalk"
	"github.com/spf13/cobra"
)

var checkOutput string

// checkCmd reports which rule each existing entry would trigger.
var checkCmd = &cobra.Command{
	Use:   "check [dir]",
	Short: "Show which rule each entry in a directory would trigger",
	Long: `List the entries currently in a directory and, for each event kind,
the pattern of the first rule that would handle that entry. Use it to check
rule order before running watch.

Examples:
  dirlisten check /etc/myapp
  dirlisten check --config=rules.yaml --output=json /srv/inbox`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(args)
		if err != nil {
			return err
		}
		r := c.Builder(cmd.Context(), io.Discard, nil).Registry()
		results, err := checkEntries(c, r)
		if err != nil {
			return err
		}
		return writeCheck(os.Stdout, results, checkOutput)
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVar(&checkOutput, "output", "text", "Output format (text|json)")
}

// entryCheck is the first matching pattern per kind for one entry. A kind
// with no match is absent.
type entryCheck struct {
	Name  string            `json:"name"`
	IsDir bool              `json:"is_dir"`
	Rules map[string]string `json:"rules"`
}

func checkEntries(c config.Config, r *listen.Registry) ([]entryCheck, error) {
	dirents, err := godirwalk.ReadDirents(c.Directory, nil)
	if err != nil {
		return nil, fmt.Errorf("error reading directory %s: %w", c.Directory, err)
	}
	sort.Sort(dirents)

	results := make([]entryCheck, 0, len(dirents))
	for _, de := range dirents {
		name := de.Name()
		ec := entryCheck{Name: name, IsDir: de.IsDir(), Rules: map[string]string{}}
		for _, kind := range listen.AllKinds {
			entry, ok, err := r.Match(kind, name)
			if err != nil {
				return nil, err
			}
			if ok {
				ec.Rules[string(kind)] = entry.Pattern
			}
		}
		results = append(results, ec)
	}
	return results, nil
}

func writeCheck(w io.Writer, results []entryCheck, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	case "text":
		for _, ec := range results {
			name := ec.Name
			if ec.IsDir {
				name += "/"
			}
			fmt.Fprintf(w, "%s\n", name)
			for _, kind := range listen.AllKinds {
				pattern, ok := ec.Rules[string(kind)]
				if !ok {
					pattern = "-"
				}
				fmt.Fprintf(w, "  %-7s %s\n", kind, pattern)
			}
		}
		return nil
	}
	return fmt.Errorf("invalid output format: %s", format)
}
