package commands

import (
	"encoding/json"
	"io/ioutil"

	"github.com/ledgerwatch/turbocrdt/common"
	"github.com/spf13/cobra"
)

var (
	exportActor string
	exportOut   string
)

func init() {
	exportCmd.Flags().StringVar(&exportActor, "actor", "", "actor id (hex); defaults to a fixed local id")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "write JSON to this file instead of stdout")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "materialize a document's root object as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := loadDoc(args[0], exportActor)
		if err != nil {
			return err
		}
		val, err := doc.Materialize(common.RootObject)
		if err != nil {
			return err
		}
		b, err := json.MarshalIndent(val, "", "  ")
		if err != nil {
			return err
		}
		if exportOut == "" {
			cmd.Println(string(b))
			return nil
		}
		return ioutil.WriteFile(exportOut, b, 0o644)
	},
}
