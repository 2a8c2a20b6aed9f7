package serializer

import (
	"fmt"
	"slices"

	"github.com/measuredat/nexo/store"
)

// project pushes one free-form metadata value into the hierarchy under
// node. The value is mapped over a closed set of storable shapes:
//
//   - nested mapping: recurse per key into a child group, except the
//     reserved key "start", which folds into the current node
//   - sequence of mappings: one indexed child group per element
//   - other sequence: one array leaf, textual elements forcing a
//     byte-string encoding, unstorable elements a text fallback
//   - nil: dropped
//   - anything else: scalar leaf
//
// Values the store cannot hold natively never fail the call; they are
// stored as their string representation.
func project(node *store.Group, value any) error {
	mapping, ok := asMapping(value)
	if !ok {
		return node.SetValue("value", value)
	}

	return projectMapping(node, mapping)
}

func projectMapping(node *store.Group, mapping map[string]any) error {
	for _, key := range sortedKeys(mapping) {
		if err := projectField(node, key, mapping[key]); err != nil {
			return err
		}
	}

	return nil
}

func projectField(node *store.Group, key string, value any) error {
	if value == nil {
		return nil
	}

	if mapping, ok := asMapping(value); ok {
		sub := node
		// A reserved "start" level folds into the current node instead of
		// nesting.
		if key != "start" {
			var err error
			sub, err = node.RequireGroup(key)
			if err != nil {
				return err
			}
		}

		return projectMapping(sub, mapping)
	}

	if seq, ok := asSequence(value); ok {
		return projectSequence(node, key, seq)
	}

	return node.SetValue(key, value)
}

func projectSequence(node *store.Group, key string, seq []any) error {
	allMappings := len(seq) > 0
	for _, el := range seq {
		if _, ok := asMapping(el); !ok {
			allMappings = false
			break
		}
	}

	if allMappings {
		for i, el := range seq {
			sub, err := node.RequireGroup(fmt.Sprintf("%s_%d", key, i))
			if err != nil {
				return err
			}
			mapping, _ := asMapping(el)
			if err := projectMapping(sub, mapping); err != nil {
				return err
			}
		}

		return nil
	}

	return node.SetValue(key, sequenceLeaf(seq))
}

// sequenceLeaf turns a mixed sequence into a leaf-storable value. Any
// textual element forces the whole sequence into strings; elements with no
// native representation fall back to their text form.
func sequenceLeaf(seq []any) any {
	hasText := false
	for _, el := range seq {
		if _, ok := el.(string); ok {
			hasText = true
			break
		}
	}
	if !hasText {
		return seq
	}

	texts := make([]string, len(seq))
	for i, el := range seq {
		if s, ok := el.(string); ok {
			texts[i] = s
		} else {
			texts[i] = fmt.Sprint(el)
		}
	}

	return texts
}

func asMapping(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func asSequence(v any) ([]any, bool) {
	switch seq := v.(type) {
	case []any:
		return seq, true
	case []string:
		out := make([]any, len(seq))
		for i, s := range seq {
			out[i] = s
		}

		return out, true
	case []float64:
		out := make([]any, len(seq))
		for i, f := range seq {
			out[i] = f
		}

		return out, true
	case []int:
		out := make([]any, len(seq))
		for i, n := range seq {
			out[i] = n
		}

		return out, true
	default:
		return nil, false
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	return keys
}
