package commands

import (
	"github.com/spf13/cobra"
)

var forkActor string

func init() {
	forkCmd.Flags().StringVar(&forkActor, "actor", "", "actor id (hex); defaults to a fixed local id")
	rootCmd.AddCommand(forkCmd)
}

var forkCmd = &cobra.Command{
	Use:   "fork <file> <newactor-hex> <outfile>",
	Short: "fork a document under a new actor id and write it to outfile",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := loadDoc(args[0], forkActor)
		if err != nil {
			return err
		}
		newActor, err := parseActor(args[1])
		if err != nil {
			return usageErrorf("invalid new actor: %v", err)
		}
		forked, err := doc.Fork(newActor)
		if err != nil {
			return err
		}
		return saveDoc(forked, args[2])
	},
}
