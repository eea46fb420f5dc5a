package cfg

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/pkg/errors"
)

// Bind 将解码后的 map 绑定到结构体，字段名取 cfg tag，匹配时忽略大小写
func Bind(data map[string]any, object any) error {
	rv := reflect.ValueOf(object)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.New("object must be a non-nil pointer")
	}
	return bindValue(data, rv.Elem())
}

func bindValue(src any, dst reflect.Value) error {
	if src == nil {
		return nil
	}

	if dst.Kind() == reflect.Ptr {
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
		}
		return bindValue(src, dst.Elem())
	}

	if dst.Kind() == reflect.Interface && dst.NumMethod() == 0 {
		dst.Set(reflect.ValueOf(src))
		return nil
	}

	switch v := src.(type) {
	case string:
		return setString(dst, v)
	case json.Number:
		return setString(dst, v.String())
	}

	switch dst.Kind() {
	case reflect.Struct:
		if dst.Type() == timeType {
			return setString(dst, fmt.Sprint(src))
		}
		m, ok := toStringMap(src)
		if !ok {
			return errors.Errorf("cannot bind %T to %v", src, dst.Type())
		}
		return bindStruct(m, dst)
	case reflect.Map:
		m, ok := toStringMap(src)
		if !ok {
			return errors.Errorf("cannot bind %T to %v", src, dst.Type())
		}
		if dst.IsNil() {
			dst.Set(reflect.MakeMap(dst.Type()))
		}
		for k, item := range m {
			elem := reflect.New(dst.Type().Elem()).Elem()
			if err := bindValue(item, elem); err != nil {
				return errors.WithMessagef(err, "key %s", k)
			}
			dst.SetMapIndex(reflect.ValueOf(k).Convert(dst.Type().Key()), elem)
		}
		return nil
	case reflect.Slice:
		items, ok := src.([]any)
		if !ok {
			return errors.Errorf("cannot bind %T to %v", src, dst.Type())
		}
		slice := reflect.MakeSlice(dst.Type(), len(items), len(items))
		for i, item := range items {
			if err := bindValue(item, slice.Index(i)); err != nil {
				return errors.WithMessagef(err, "index %d", i)
			}
		}
		dst.Set(slice)
		return nil
	}

	sv := reflect.ValueOf(src)
	if sv.Type().AssignableTo(dst.Type()) {
		dst.Set(sv)
		return nil
	}
	if sv.Type().ConvertibleTo(dst.Type()) && sv.Kind() != reflect.String {
		dst.Set(sv.Convert(dst.Type()))
		return nil
	}
	return setString(dst, fmt.Sprint(src))
}

func bindStruct(m map[string]any, dst reflect.Value) error {
	rt := dst.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name := fieldKey(field)
		if name == "-" {
			continue
		}
		for k, v := range m {
			if strings.EqualFold(k, name) {
				if err := bindValue(v, dst.Field(i)); err != nil {
					return errors.WithMessagef(err, "field %s", field.Name)
				}
				break
			}
		}
	}
	return nil
}

func fieldKey(field reflect.StructField) string {
	if tag := field.Tag.Get("cfg"); tag != "" {
		return strings.Split(tag, ",")[0]
	}
	return field.Name
}

func toStringMap(src any) (map[string]any, bool) {
	switch m := src.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		result := make(map[string]any, len(m))
		for k, v := range m {
			result[fmt.Sprint(k)] = v
		}
		return result, true
	}
	return nil, false
}
