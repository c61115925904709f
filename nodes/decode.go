package nodes

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// decode converts an operation's loosely-typed envelope.Result.Output (a
// map[string]any produced by an LLM-backed control agent) into a concrete
// struct, matching keys case-insensitively on the struct's `mapstructure`
// tags. Used for the plan, the reasoner decision and the synthesis result;
// the validation result is decoded in execctx.RecordToolExecutionResult.
func decode(src any, dst any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           dst,
	})
	if err != nil {
		return fmt.Errorf("nodes: build decoder: %w", err)
	}
	if err := dec.Decode(src); err != nil {
		return fmt.Errorf("nodes: decode: %w", err)
	}
	return nil
}
