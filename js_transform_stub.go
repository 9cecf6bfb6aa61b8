//go:build !js_eval

package contextual

import "fmt"

// JSTransform is unavailable without the js_eval build tag.
func JSTransform(expression string, opts ...JSTransformOption) (Transform, error) {
	_ = applyJSTransformOptions(opts)
	return nil, fmt.Errorf("contextual: js transforms require the js_eval build tag")
}

func jsTransformAvailable() bool {
	return false
}
