package tool

import (
	"encoding/json"

	"github.com/mitchellh/mapstructure"

	"github.com/atendai/atendai/errors"
)

func errEmptyMetadata(name string) error {
	return errors.Wrapf(errors.ErrInvalidConfig, "function %q has empty metadata", name)
}

// decodeArgs decodes the assistant-provided argument object into a typed
// struct. Decoding is weakly typed because the model sometimes serializes
// numbers as strings.
func decodeArgs(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return errors.Wrapf(err, "invalid argument payload")
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return errors.Wrapf(err, "failed to build argument decoder")
	}
	if err := dec.Decode(m); err != nil {
		return errors.Wrapf(err, "invalid arguments")
	}
	return nil
}
