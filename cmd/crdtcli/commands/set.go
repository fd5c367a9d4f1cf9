package commands

import (
	"github.com/ledgerwatch/turbocrdt/document"
	"github.com/spf13/cobra"
)

var (
	setActor   string
	setMessage string
)

func init() {
	setCmd.Flags().StringVar(&setActor, "actor", "", "actor id (hex); defaults to a fixed local id")
	setCmd.Flags().StringVar(&setMessage, "message", "", "commit message")
	rootCmd.AddCommand(setCmd)
}

var setCmd = &cobra.Command{
	Use:   "set <file> <path> <value>",
	Short: "set a scalar value at a dotted map-key/list-index path and commit",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := loadDoc(args[0], setActor)
		if err != nil {
			return err
		}
		parent, leaf, err := resolveObject(doc, args[1])
		if err != nil {
			return err
		}
		value := parseScalar(args[2])

		_, err = doc.Update(setMessage, 0, func(tx *document.Tx) error {
			if leaf.isIndex {
				_, err := tx.SetAt(parent, leaf.index, value)
				return err
			}
			_, err := tx.Put(parent, leaf.key, value)
			return err
		})
		if err != nil {
			return err
		}
		return saveDoc(doc, args[0])
	},
}
