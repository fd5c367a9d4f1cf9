package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var logActor string

func init() {
	logCmd.Flags().StringVar(&logActor, "actor", "", "actor id (hex); defaults to a fixed local id")
	rootCmd.AddCommand(logCmd)
}

var logCmd = &cobra.Command{
	Use:   "log <file>",
	Short: "list applied changes in topological order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := loadDoc(args[0], logActor)
		if err != nil {
			return err
		}
		for _, c := range doc.Log() {
			fmt.Printf("%s actor=%s seq=%d time=%d %q\n", c.Hash, c.Actor, c.Seq, c.Time, c.Message)
		}
		return nil
	},
}
