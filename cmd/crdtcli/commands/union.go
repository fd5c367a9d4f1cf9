package commands

import (
	"github.com/spf13/cobra"
)

var (
	unionActor    string
	unionNewActor string
)

func init() {
	unionCmd.Flags().StringVar(&unionActor, "actor", "", "actor id (hex) for loading the inputs; defaults to a fixed local id")
	unionCmd.Flags().StringVar(&unionNewActor, "result-actor", "", "actor id (hex) the merged result commits under")
	rootCmd.AddCommand(unionCmd)
}

var unionCmd = &cobra.Command{
	Use:   "union <a> <b> <outfile>",
	Short: "merge two documents' full causal histories into outfile",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadDoc(args[0], unionActor)
		if err != nil {
			return err
		}
		b, err := loadDoc(args[1], unionActor)
		if err != nil {
			return err
		}
		resultActor, err := parseActor(unionNewActor)
		if err != nil {
			return usageErrorf("invalid --result-actor: %v", err)
		}
		merged, err := a.Fork(resultActor)
		if err != nil {
			return err
		}
		if _, err := merged.Merge(b); err != nil {
			return err
		}
		return saveDoc(merged, args[2])
	},
}
