// Copyright (C) 2024 the quixsi maintainers
// See root-dir/LICENSE for more information

// Package form decodes url.Values into structs tagged with `form:"name"`.
// Nested structs read their fields from "parent.child" keys.
package form

import (
	"encoding"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"
)

var textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()

func Unmarshal(input url.Values, target any) error {
	val := reflect.ValueOf(target)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return &InvalidUnmarshalError{Type: reflect.TypeOf(target)}
	}
	if val.Elem().Kind() != reflect.Struct {
		return &InvalidUnmarshalError{Type: reflect.TypeOf(target)}
	}
	return unmarshalStruct(input, "", val.Elem())
}

func unmarshalStruct(input url.Values, prefix string, v reflect.Value) error {
	ttype := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := ttype.Field(i)
		name := field.Tag.Get("form")
		if name == "" || name == "-" || !field.IsExported() {
			continue
		}
		key := prefix + name
		fieldVal := v.Field(i)

		if field.Type.Kind() == reflect.Struct && !reflect.PointerTo(field.Type).Implements(textUnmarshalerType) {
			if err := unmarshalStruct(input, key+".", fieldVal); err != nil {
				return err
			}
			continue
		}

		values, exists := input[key]
		if !exists || len(values) == 0 {
			continue
		}

		if field.Type.Kind() == reflect.Slice && field.Type.Elem().Kind() != reflect.Uint8 {
			slice := reflect.MakeSlice(field.Type, len(values), len(values))
			for j, raw := range values {
				if err := setValue(slice.Index(j), raw); err != nil {
					return &UnmarshalTypeError{Key: key, Value: raw, Err: err}
				}
			}
			fieldVal.Set(slice)
			continue
		}

		// NOTE: Take only the first value.
		if err := setValue(fieldVal, values[0]); err != nil {
			return &UnmarshalTypeError{Key: key, Value: values[0], Err: err}
		}
	}
	return nil
}

func setValue(v reflect.Value, raw string) error {
	if v.CanAddr() && v.Addr().Type().Implements(textUnmarshalerType) {
		if raw == "" {
			return nil
		}
		return v.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(raw))
	}

	switch v.Kind() {
	case reflect.String:
		v.SetString(strings.TrimSpace(raw))
	case reflect.Bool:
		switch strings.ToLower(raw) {
		case "true", "on", "1":
			v.SetBool(true)
		default:
			v.SetBool(false)
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if raw == "" {
			return nil
		}
		n, err := strconv.ParseInt(raw, 10, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetInt(n)
	case reflect.Float32, reflect.Float64:
		if raw == "" {
			return nil
		}
		f, err := strconv.ParseFloat(raw, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetFloat(f)
	default:
		return fmt.Errorf("unsupported kind %s", v.Kind())
	}
	return nil
}

type InvalidUnmarshalError struct {
	Type reflect.Type
}

func (e *InvalidUnmarshalError) Error() string {
	if e.Type == nil {
		return "form: Unmarshal(nil)"
	}

	if e.Type.Kind() != reflect.Pointer {
		return "form: Unmarshal(non-pointer " + e.Type.String() + ")"
	}
	if e.Type.Elem().Kind() != reflect.Struct {
		return "form: Unmarshal(non-struct " + e.Type.String() + ")"
	}
	return "form: Unmarshal(nil " + e.Type.String() + ")"
}

// UnmarshalTypeError describes a form value that does not fit its field.
type UnmarshalTypeError struct {
	Key   string
	Value string
	Err   error
}

func (e *UnmarshalTypeError) Error() string {
	return fmt.Sprintf("form: cannot decode %q into %s: %v", e.Value, e.Key, e.Err)
}

func (e *UnmarshalTypeError) Unwrap() error {
	return e.Err
}
