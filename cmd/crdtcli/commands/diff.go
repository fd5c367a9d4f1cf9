package commands

import (
	"fmt"
	"strings"

	"github.com/ledgerwatch/turbocrdt/common"
	"github.com/ledgerwatch/turbocrdt/document"
	"github.com/spf13/cobra"
)

var (
	diffActor  string
	diffBefore string
	diffAfter  string
)

func init() {
	diffCmd.Flags().StringVar(&diffActor, "actor", "", "actor id (hex); defaults to a fixed local id")
	diffCmd.Flags().StringVar(&diffBefore, "before", "", "comma-separated heads to diff from (default: document start)")
	diffCmd.Flags().StringVar(&diffAfter, "after", "", "comma-separated heads to diff to (default: current heads)")
	rootCmd.AddCommand(diffCmd)
}

var diffCmd = &cobra.Command{
	Use:   "diff <file>",
	Short: "print the patch stream between two heads of the same document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := loadDoc(args[0], diffActor)
		if err != nil {
			return err
		}
		before, err := parseHashes(diffBefore)
		if err != nil {
			return err
		}
		if len(before) == 0 {
			// An empty, non-nil heads set has no ancestors, i.e. the
			// document start; nil would mean the current heads.
			before = []common.ChangeHash{}
		}
		after, err := parseHashes(diffAfter)
		if err != nil {
			return err
		}
		if len(after) == 0 {
			after = doc.Heads()
		}
		for _, p := range doc.Diff(before, after) {
			fmt.Println(formatPatch(p))
		}
		return nil
	},
}

func formatPatch(p document.Patch) string {
	path := formatPath(p.Path)
	switch p.Kind {
	case document.PatchPut:
		conflict := ""
		if p.Conflict {
			conflict = " (conflict)"
		}
		return fmt.Sprintf("put %s = %s%s", path, p.Value.String(), conflict)
	case document.PatchInsert:
		return fmt.Sprintf("insert %s", path)
	case document.PatchSplice:
		return fmt.Sprintf("splice %s -> %q", path, p.Value.String())
	case document.PatchDel:
		return fmt.Sprintf("del %s (%d)", path, p.Length)
	case document.PatchInc:
		return fmt.Sprintf("inc %s by %s", path, p.Value.String())
	case document.PatchMark:
		return fmt.Sprintf("mark %s %s[%d,%d]=%s", path, p.Name, p.Start, p.End, p.Value.String())
	case document.PatchUnmark:
		return fmt.Sprintf("unmark %s %s[%d,%d]", path, p.Name, p.Start, p.End)
	default:
		return fmt.Sprintf("? %s", path)
	}
}

func formatPath(path []document.PathToken) string {
	parts := make([]string, len(path))
	for i, tok := range path {
		if tok.IsKey {
			parts[i] = tok.Key
		} else {
			parts[i] = fmt.Sprintf("%d", tok.Index)
		}
	}
	return strings.Join(parts, ".")
}
