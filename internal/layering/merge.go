// Package layering merges configuration layers. Layers are ordered from
// strongest to weakest: a stronger layer keeps every value it sets and
// borrows whatever it leaves unset from the weaker ones.
//
// "Unset" means a nil pointer, interface, map or slice, or a missing map key.
// Scalars held by value always come from the strongest layer, so callers that
// need per-key fallback should merge generic maps (decoded YAML or JSON) and
// decode the result afterwards.
package layering

import "reflect"

// MergeLayers folds layers (strongest first) into a new value. Inputs are not
// modified and the result shares no maps or slices with them.
func MergeLayers[T any](layers ...T) T {
	var zero T
	if len(layers) == 0 {
		return zero
	}
	target := reflect.TypeOf((*T)(nil)).Elem()

	merged := deepCopy(reflect.ValueOf(layers[len(layers)-1]))
	for i := len(layers) - 2; i >= 0; i-- {
		merged = merge(reflect.ValueOf(layers[i]), merged)
	}
	if !merged.IsValid() {
		return zero
	}
	out := reflect.New(target).Elem()
	out.Set(merged.Convert(target))
	return out.Interface().(T)
}

// Maps merges generic documents, strongest first. Nested maps merge key by
// key; any other value from a stronger layer replaces the weaker one.
func Maps(layers ...map[string]any) map[string]any {
	merged := MergeLayers(layers...)
	if merged == nil {
		return map[string]any{}
	}
	return merged
}

func merge(strong, weak reflect.Value) reflect.Value {
	if !strong.IsValid() {
		return deepCopy(weak)
	}
	switch strong.Kind() {
	case reflect.Pointer:
		if strong.IsNil() {
			return deepCopy(weak)
		}
		out := reflect.New(strong.Type().Elem())
		out.Elem().Set(merge(strong.Elem(), elemOf(weak, reflect.Pointer)))
		return out
	case reflect.Interface:
		if strong.IsNil() {
			return deepCopy(weak)
		}
		return merge(strong.Elem(), elemOf(weak, reflect.Interface)).Convert(strong.Type())
	case reflect.Struct:
		out := reflect.New(strong.Type()).Elem()
		sameType := weak.IsValid() && weak.Type() == strong.Type()
		for i := 0; i < strong.NumField(); i++ {
			if !out.Field(i).CanSet() {
				continue
			}
			var weakField reflect.Value
			if sameType {
				weakField = weak.Field(i)
			}
			out.Field(i).Set(merge(strong.Field(i), weakField))
		}
		return out
	case reflect.Map:
		if strong.IsNil() {
			return deepCopy(weak)
		}
		out := reflect.MakeMapWithSize(strong.Type(), strong.Len())
		if weak.IsValid() && weak.Kind() == reflect.Map && !weak.IsNil() && weak.Type() == strong.Type() {
			for iter := weak.MapRange(); iter.Next(); {
				out.SetMapIndex(iter.Key(), deepCopy(iter.Value()))
			}
		}
		for iter := strong.MapRange(); iter.Next(); {
			key := iter.Key()
			if existing := out.MapIndex(key); existing.IsValid() {
				out.SetMapIndex(key, merge(iter.Value(), existing))
				continue
			}
			out.SetMapIndex(key, deepCopy(iter.Value()))
		}
		return out
	case reflect.Slice:
		if strong.IsNil() {
			return deepCopy(weak)
		}
		return deepCopy(strong)
	default:
		return deepCopy(strong)
	}
}

// elemOf unwraps weak when it has the given kind and is non-nil.
func elemOf(weak reflect.Value, kind reflect.Kind) reflect.Value {
	if weak.IsValid() && weak.Kind() == kind && !weak.IsNil() {
		return weak.Elem()
	}
	return reflect.Value{}
}

func deepCopy(v reflect.Value) reflect.Value {
	if !v.IsValid() {
		return v
	}
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		out := reflect.New(v.Type().Elem())
		out.Elem().Set(deepCopy(v.Elem()))
		return out
	case reflect.Interface:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		return deepCopy(v.Elem()).Convert(v.Type())
	case reflect.Struct:
		out := reflect.New(v.Type()).Elem()
		for i := 0; i < v.NumField(); i++ {
			if out.Field(i).CanSet() {
				out.Field(i).Set(deepCopy(v.Field(i)))
			}
		}
		return out
	case reflect.Map:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		for iter := v.MapRange(); iter.Next(); {
			out.SetMapIndex(iter.Key(), deepCopy(iter.Value()))
		}
		return out
	case reflect.Slice:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(deepCopy(v.Index(i)))
		}
		return out
	case reflect.Array:
		out := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(deepCopy(v.Index(i)))
		}
		return out
	default:
		out := reflect.New(v.Type()).Elem()
		out.Set(v)
		return out
	}
}
