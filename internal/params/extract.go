package params

import (
	"encoding/json"
	"strconv"

	"github.com/agentoven/promptplane/internal/registry"
	"github.com/tidwall/gjson"
)

// document is a retrieval response encoded once for repeated extraction.
type document struct {
	raw []byte
}

func newDocument(response map[string]any) (document, error) {
	raw, err := json.Marshal(response)
	if err != nil {
		return document{}, err
	}
	return document{raw: raw}, nil
}

// get resolves a dotted key / integer index path. Missing segments, type
// mismatches and JSON null all report not found.
func (d document) get(path string) (any, bool) {
	if !registry.ValidPath(path) {
		return nil, false
	}
	res := gjson.GetBytes(d.raw, path)
	if !res.Exists() || res.Type == gjson.Null {
		return nil, false
	}
	if res.Type == gjson.Number {
		if n, err := strconv.ParseInt(res.Raw, 10, 64); err == nil {
			return n, true
		}
		return res.Float(), true
	}
	return res.Value(), true
}

// Extract pulls the value at path out of response. Integers come back as
// int64, other numbers as float64, objects as map[string]any and arrays as
// []any.
func Extract(response map[string]any, path string) (any, bool) {
	doc, err := newDocument(response)
	if err != nil {
		return nil, false
	}
	return doc.get(path)
}
