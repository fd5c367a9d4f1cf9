package commands

import (
	"github.com/ledgerwatch/turbocrdt/document"
	"github.com/spf13/cobra"
)

var (
	intersectActor    string
	intersectNewActor string
)

func init() {
	intersectCmd.Flags().StringVar(&intersectActor, "actor", "", "actor id (hex) for loading the inputs; defaults to a fixed local id")
	intersectCmd.Flags().StringVar(&intersectNewActor, "result-actor", "", "actor id (hex) the result commits under")
	rootCmd.AddCommand(intersectCmd)
}

var intersectCmd = &cobra.Command{
	Use:   "intersect <a> <b> <outfile>",
	Short: "keep only the changes two documents' histories have in common",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadDoc(args[0], intersectActor)
		if err != nil {
			return err
		}
		b, err := loadDoc(args[1], intersectActor)
		if err != nil {
			return err
		}
		resultActor, err := parseActor(intersectNewActor)
		if err != nil {
			return usageErrorf("invalid --result-actor: %v", err)
		}

		result := document.New(resultActor)
		for _, c := range a.AllChanges() {
			if !b.HasChange(c.Hash) {
				continue
			}
			if err := result.Apply(c); err != nil {
				return err
			}
		}
		return saveDoc(result, args[2])
	},
}
