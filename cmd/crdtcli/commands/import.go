package commands

import (
	"encoding/json"
	"fmt"
	"io/ioutil"

	"github.com/ledgerwatch/turbocrdt/common"
	"github.com/ledgerwatch/turbocrdt/document"
	"github.com/spf13/cobra"
)

var (
	importActor   string
	importMessage string
)

func init() {
	importCmd.Flags().StringVar(&importActor, "actor", "", "actor id (hex); defaults to a fixed local id")
	importCmd.Flags().StringVar(&importMessage, "message", "import", "commit message")
	rootCmd.AddCommand(importCmd)
}

var importCmd = &cobra.Command{
	Use:   "import <jsonfile> <outfile>",
	Short: "build a fresh document from a JSON value (object/array/scalar tree)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := ioutil.ReadFile(args[0])
		if err != nil {
			return err
		}
		var val interface{}
		if err := json.Unmarshal(raw, &val); err != nil {
			return usageErrorf("invalid JSON in %s: %v", args[0], err)
		}
		actor, err := parseActor(importActor)
		if err != nil {
			return usageErrorf("invalid --actor: %v", err)
		}
		doc := document.New(actor)
		_, err = doc.Update(importMessage, 0, func(tx *document.Tx) error {
			return buildInto(tx, common.RootObject, val)
		})
		if err != nil {
			return err
		}
		return saveDoc(doc, args[1])
	},
}

// buildInto recursively populates obj (already known to be a map) from a
// decoded JSON value, creating nested map/list children as needed —
// the write-side counterpart of document.Materialize.
func buildInto(tx *document.Tx, obj common.ObjectId, val interface{}) error {
	m, ok := val.(map[string]interface{})
	if !ok {
		return fmt.Errorf("crdtcli: import root must be a JSON object")
	}
	for k, v := range m {
		if err := putField(tx, obj, k, v); err != nil {
			return err
		}
	}
	return nil
}

func putField(tx *document.Tx, obj common.ObjectId, key string, v interface{}) error {
	switch t := v.(type) {
	case map[string]interface{}:
		child, err := tx.PutObject(obj, key, common.ObjTypeMap)
		if err != nil {
			return err
		}
		for k, nested := range t {
			if err := putField(tx, child, k, nested); err != nil {
				return err
			}
		}
		return nil
	case []interface{}:
		child, err := tx.PutObject(obj, key, common.ObjTypeList)
		if err != nil {
			return err
		}
		for i, elem := range t {
			if err := insertField(tx, child, i, elem); err != nil {
				return err
			}
		}
		return nil
	default:
		_, err := tx.Put(obj, key, jsonScalar(v))
		return err
	}
}

func insertField(tx *document.Tx, obj common.ObjectId, index int, v interface{}) error {
	switch t := v.(type) {
	case map[string]interface{}:
		child, err := tx.InsertObject(obj, index, common.ObjTypeMap)
		if err != nil {
			return err
		}
		for k, nested := range t {
			if err := putField(tx, child, k, nested); err != nil {
				return err
			}
		}
		return nil
	case []interface{}:
		child, err := tx.InsertObject(obj, index, common.ObjTypeList)
		if err != nil {
			return err
		}
		for i, elem := range t {
			if err := insertField(tx, child, i, elem); err != nil {
				return err
			}
		}
		return nil
	default:
		_, err := tx.Insert(obj, index, jsonScalar(v))
		return err
	}
}

// jsonScalar converts an encoding/json-decoded leaf (bool, float64, string,
// or nil — json.Unmarshal's default number type) into a common.Value.
func jsonScalar(v interface{}) common.Value {
	switch t := v.(type) {
	case nil:
		return common.NullValue()
	case bool:
		return common.BoolValue(t)
	case float64:
		if t == float64(int64(t)) {
			return common.IntValue(int64(t))
		}
		return common.FloatValue(t)
	case string:
		return common.StrValue(t)
	default:
		return common.StrValue(fmt.Sprintf("%v", t))
	}
}
