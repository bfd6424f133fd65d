package snippet

import (
	"fmt"

	"github.com/dop251/goja"
)

// Evaluator turns the text of a JavaScript object literal into a decoded
// value. The setup block is not JSON: wizard-generated snippets carry
// unquoted keys, single-quoted strings and nested objects, so a JS runtime
// has to do the reading.
//
// Running vendor-authored script text is a deliberate, bounded trust
// decision: snippets are pasted by a site editor, not submitted by anonymous
// visitors, and evaluation happens in a throwaway VM with no host bindings.
// Anything that wants stricter guarantees can swap in a structural parser
// behind this interface without touching the rest of the pipeline.
type Evaluator interface {
	EvaluateObjectLiteral(src string) (map[string]interface{}, error)
}

type gojaEvaluator struct{}

func NewEvaluator() Evaluator {
	return gojaEvaluator{}
}

func (gojaEvaluator) EvaluateObjectLiteral(src string) (map[string]interface{}, error) {
	vm := goja.New()
	value, err := vm.RunString(`"use strict";(` + src + `)`)
	if err != nil {
		return nil, fmt.Errorf("evaluating config literal: %w", err)
	}
	obj, ok := value.Export().(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("config literal did not evaluate to an object")
	}
	return obj, nil
}
