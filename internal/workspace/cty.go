package workspace

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

// ctyValueToGo converts a cty.Value into plain Go values (string, float64,
// bool, map[string]any, []any) so downstream packages never depend on cty.
func ctyValueToGo(val cty.Value) (any, error) {
	if !val.IsKnown() || val.IsNull() {
		return nil, nil
	}
	if val.Type().IsPrimitiveType() {
		switch val.Type() {
		case cty.String:
			return val.AsString(), nil
		case cty.Number:
			f, _ := val.AsBigFloat().Float64()
			return f, nil
		case cty.Bool:
			return val.True(), nil
		default:
			return nil, fmt.Errorf("unsupported primitive type: %s", val.Type().FriendlyName())
		}
	}
	if val.Type().IsObjectType() || val.Type().IsMapType() {
		out := make(map[string]any)
		for it := val.ElementIterator(); it.Next(); {
			k, v := it.Element()
			converted, err := ctyValueToGo(v)
			if err != nil {
				return nil, err
			}
			out[k.AsString()] = converted
		}
		return out, nil
	}
	if val.Type().IsTupleType() || val.Type().IsListType() || val.Type().IsSetType() {
		var out []any
		for it := val.ElementIterator(); it.Next(); {
			_, v := it.Element()
			converted, err := ctyValueToGo(v)
			if err != nil {
				return nil, err
			}
			out = append(out, converted)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported cty.Type for conversion: %s", val.Type().FriendlyName())
}

// ctyObjectToOptions converts an HCL options expression into a string-keyed
// option map. A null value (attribute omitted) yields nil.
func ctyObjectToOptions(val cty.Value) (map[string]any, error) {
	if val.IsNull() {
		return nil, nil
	}
	converted, err := ctyValueToGo(val)
	if err != nil {
		return nil, err
	}
	opts, ok := converted.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("options must be an object, got %T", converted)
	}
	return opts, nil
}
