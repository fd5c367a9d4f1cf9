package commands

import (
	"fmt"
	"io/ioutil"
	"strconv"
	"strings"

	"github.com/ledgerwatch/turbocrdt/common"
	"github.com/ledgerwatch/turbocrdt/document"
)

func parseActor(hexStr string) (common.ActorId, error) {
	if hexStr == "" {
		return common.NewActorId([]byte("crdtcli"))
	}
	return common.ActorIdFromHex(hexStr)
}

func loadDoc(path, actorHex string) (*document.Document, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	actor, err := parseActor(actorHex)
	if err != nil {
		return nil, usageErrorf("invalid --actor: %v", err)
	}
	return document.Load(actor, data)
}

func saveDoc(doc *document.Document, path string) error {
	data, err := doc.Save()
	if err != nil {
		return err
	}
	return ioutil.WriteFile(path, data, 0o644)
}

func parseHashes(csv string) ([]common.ChangeHash, error) {
	if csv == "" {
		return nil, nil
	}
	parts := strings.Split(csv, ",")
	out := make([]common.ChangeHash, 0, len(parts))
	for _, p := range parts {
		h, err := common.HashFromHex(strings.TrimSpace(p))
		if err != nil {
			return nil, usageErrorf("invalid hash %q: %v", p, err)
		}
		out = append(out, h)
	}
	return out, nil
}

// pathToken is one dotted-path segment resolved against a live object: a
// map key, or (if it parses as a non-negative integer) a sequence index.
type pathToken struct {
	key     string
	index   int
	isIndex bool
}

func parsePath(s string) []pathToken {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ".")
	out := make([]pathToken, len(parts))
	for i, p := range parts {
		if n, err := strconv.Atoi(p); err == nil && n >= 0 {
			out[i] = pathToken{index: n, isIndex: true}
			continue
		}
		out[i] = pathToken{key: p}
	}
	return out
}

// resolveObject walks path from root, descending into nested objects
// through map keys and list indices, and returns the object reached by
// all but the last token plus the last token itself — the (parent,leaf)
// split get/set operate on.
func resolveObject(doc *document.Document, path string) (common.ObjectId, pathToken, error) {
	tokens := parsePath(path)
	if len(tokens) == 0 {
		return common.RootObject, pathToken{}, usageErrorf("empty path")
	}
	obj := common.RootObject
	for _, tok := range tokens[:len(tokens)-1] {
		next, err := descend(doc, obj, tok)
		if err != nil {
			return common.ObjectId{}, pathToken{}, err
		}
		obj = next
	}
	return obj, tokens[len(tokens)-1], nil
}

func descend(doc *document.Document, obj common.ObjectId, tok pathToken) (common.ObjectId, error) {
	var child common.ObjectId
	var ok bool
	if tok.isIndex {
		child, ok = doc.ChildObjectAt(obj, tok.index)
	} else {
		child, ok = doc.ChildObject(obj, tok.key)
	}
	if !ok {
		return common.ObjectId{}, fmt.Errorf("crdtcli: path segment %v is not a traversable object", tok)
	}
	return child, nil
}
