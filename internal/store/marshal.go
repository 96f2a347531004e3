package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/docrun/internal/canonical"
)

// DomainEmitted separates digests of emitted event arguments from any other
// canonical digest. The version suffix allows a later encoding change.
const DomainEmitted = "docrun/emitted/v1"

// marshalArguments converts event arguments to canonical JSON TEXT plus
// their digest.
func marshalArguments(args []any) (text, digest string, err error) {
	if args == nil {
		args = []any{}
	}
	data, err := canonical.Marshal(args)
	if err != nil {
		return "", "", fmt.Errorf("marshal arguments: %w", err)
	}
	digest, err = canonical.Digest(DomainEmitted, args)
	if err != nil {
		return "", "", fmt.Errorf("marshal arguments: %w", err)
	}
	return string(data), digest, nil
}

// unmarshalArguments parses canonical JSON TEXT back to arguments. Numbers
// are decoded through json.Number so integers come back as int, the same
// type the document decoder produces.
func unmarshalArguments(text string) ([]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()
	var raw []any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("unmarshal arguments: %w", err)
	}
	out := make([]any, len(raw))
	for i, v := range raw {
		conv, err := fromJSON(v)
		if err != nil {
			return nil, fmt.Errorf("unmarshal arguments[%d]: %w", i, err)
		}
		out[i] = conv
	}
	return out, nil
}

func fromJSON(v any) (any, error) {
	switch val := v.(type) {
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("non-integer number %s", val)
		}
		return int(n), nil
	case []any:
		for i, elem := range val {
			conv, err := fromJSON(elem)
			if err != nil {
				return nil, err
			}
			val[i] = conv
		}
		return val, nil
	case map[string]any:
		for k, elem := range val {
			conv, err := fromJSON(elem)
			if err != nil {
				return nil, err
			}
			val[k] = conv
		}
		return val, nil
	default:
		return val, nil
	}
}
