package airmedia

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// decodeDocument decodes raw keeping numbers exactly as the device wrote them.
func decodeDocument(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// lookup resolves a JSON pointer (RFC 6901) against node.
func lookup(node any, pointer string) (any, bool) {
	if pointer == "" {
		return node, true
	}
	if !strings.HasPrefix(pointer, "/") {
		return nil, false
	}

	current := node
	for _, token := range strings.Split(pointer[1:], "/") {
		token = strings.ReplaceAll(strings.ReplaceAll(token, "~1", "/"), "~0", "~")
		switch typed := current.(type) {
		case map[string]any:
			next, ok := typed[token]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(token)
			if err != nil || idx < 0 || idx >= len(typed) {
				return nil, false
			}
			current = typed[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

// text renders the node at pointer the way the device UI shows it: scalars
// verbatim, explicit null as "null", containers and missing nodes as "".
func text(node any, pointer string) string {
	value, ok := lookup(node, pointer)
	if !ok {
		return ""
	}

	switch typed := value.(type) {
	case nil:
		return "null"
	case string:
		return typed
	case json.Number:
		return typed.String()
	case bool:
		return strconv.FormatBool(typed)
	default:
		return ""
	}
}
