package ficha

import (
	"reflect"
	"strings"
)

// Merge folds patch into dst. A non-empty patch leaf replaces the current
// value; an empty leaf (zero string, nil pointer, empty slice) never clears
// data already confirmed in earlier turns. dst is mutated in place; patch is
// read-only.
func Merge(dst *Ficha, patch Ficha) {
	mergeStruct(reflect.ValueOf(dst).Elem(), reflect.ValueOf(patch))
}

func mergeStruct(dst, src reflect.Value) {
	for i := 0; i < src.NumField(); i++ {
		sf := src.Field(i)
		df := dst.Field(i)
		switch sf.Kind() {
		case reflect.Struct:
			mergeStruct(df, sf)
		case reflect.Pointer:
			if !sf.IsNil() {
				df.Set(clonePointer(sf))
			}
		case reflect.String:
			if sf.String() != "" {
				df.Set(sf)
			}
		case reflect.Slice:
			if sf.Len() > 0 {
				df.Set(sf)
			}
		default:
			if !sf.IsZero() {
				df.Set(sf)
			}
		}
	}
}

func clonePointer(p reflect.Value) reflect.Value {
	out := reflect.New(p.Type().Elem())
	out.Elem().Set(p.Elem())
	return out
}

// IsEmpty reports whether f carries no data at all.
func (f Ficha) IsEmpty() bool {
	return structIsEmpty(reflect.ValueOf(f))
}

func structIsEmpty(v reflect.Value) bool {
	for i := 0; i < v.NumField(); i++ {
		fv := v.Field(i)
		switch fv.Kind() {
		case reflect.Struct:
			if !structIsEmpty(fv) {
				return false
			}
		default:
			if !fv.IsZero() {
				return false
			}
		}
	}
	return true
}

// Lookup resolves a dotted json-tag path ("antropometria.peso_kg") and
// reports whether the leaf holds a non-empty value.
func Lookup(f Ficha, path string) (any, bool) {
	v := reflect.ValueOf(f)
	for _, part := range strings.Split(path, ".") {
		if v.Kind() != reflect.Struct {
			return nil, false
		}
		next, ok := fieldByTag(v, part)
		if !ok {
			return nil, false
		}
		v = next
	}
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return nil, false
		}
		return v.Elem().Interface(), true
	case reflect.String:
		s := v.String()
		return s, s != ""
	case reflect.Slice:
		if v.Len() == 0 {
			return nil, false
		}
		return v.Interface(), true
	case reflect.Struct:
		return v.Interface(), !structIsEmpty(v)
	default:
		return v.Interface(), !v.IsZero()
	}
}

func fieldByTag(v reflect.Value, tag string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		name := strings.Split(t.Field(i).Tag.Get("json"), ",")[0]
		if name == tag {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}
