package commands

import (
	"encoding/json"
	"fmt"

	"github.com/ledgerwatch/turbocrdt/common"
	"github.com/ledgerwatch/turbocrdt/document"
	"github.com/spf13/cobra"
)

var getActor string

func init() {
	getCmd.Flags().StringVar(&getActor, "actor", "", "actor id (hex); defaults to a fixed local id")
	rootCmd.AddCommand(getCmd)
}

var getCmd = &cobra.Command{
	Use:   "get <file> [path]",
	Short: "print the value at a dotted map-key/list-index path (root if path is omitted)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := loadDoc(args[0], getActor)
		if err != nil {
			return err
		}
		path := ""
		if len(args) == 2 {
			path = args[1]
		}
		if path == "" {
			val, err := doc.Materialize(common.RootObject)
			if err != nil {
				return err
			}
			return printJSON(val)
		}

		parent, leaf, err := resolveObject(doc, path)
		if err != nil {
			return err
		}
		if child, ok := leafChild(doc, parent, leaf); ok {
			val, err := doc.Materialize(child)
			if err != nil {
				return err
			}
			return printJSON(val)
		}
		v, ok := leafValue(doc, parent, leaf)
		if !ok {
			return fmt.Errorf("crdtcli: no value at path %q", path)
		}
		fmt.Println(v.String())
		return nil
	},
}

func leafChild(doc *document.Document, parent common.ObjectId, leaf pathToken) (common.ObjectId, bool) {
	if leaf.isIndex {
		return doc.ChildObjectAt(parent, leaf.index)
	}
	return doc.ChildObject(parent, leaf.key)
}

func leafValue(doc *document.Document, parent common.ObjectId, leaf pathToken) (common.Value, bool) {
	if leaf.isIndex {
		v, err := doc.GetAt(parent, leaf.index)
		return v, err == nil
	}
	return doc.Get(parent, leaf.key)
}

func printJSON(v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
