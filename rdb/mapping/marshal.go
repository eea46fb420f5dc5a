package mapping

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/hatlonely/qorm/rdb/schema"
	"github.com/pkg/errors"
)

var (
	timeType    = reflect.TypeOf(time.Time{})
	scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
	valuerType  = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// InferType 根据 Go 类型推断列类型，第二个返回值表示是否推断成功
func InferType(typ reflect.Type) (schema.DataType, bool) {
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ == timeType {
		return schema.Timestamp, true
	}
	switch typ.Kind() {
	case reflect.Int, reflect.Int32, reflect.Uint16, reflect.Uint8, reflect.Int8:
		return schema.Integer, true
	case reflect.Int16:
		return schema.SmallInt, true
	case reflect.Int64, reflect.Uint32, reflect.Uint, reflect.Uint64:
		return schema.BigInt, true
	case reflect.Float32:
		return schema.Real, true
	case reflect.Float64:
		return schema.Double, true
	case reflect.Bool:
		return schema.Boolean, true
	case reflect.String:
		return schema.Text, true
	}
	return schema.Text, false
}

// ToDriver 将字段值转换为驱动参数，nil 指针转换为 NULL
func ToDriver(fv reflect.Value) any {
	if fv.Type().Implements(valuerType) {
		if fv.Kind() == reflect.Ptr && fv.IsNil() {
			return nil
		}
		return fv.Interface()
	}
	if fv.Kind() == reflect.Ptr {
		if fv.IsNil() {
			return nil
		}
		fv = fv.Elem()
	}
	switch fv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(fv.Uint())
	case reflect.Float32, reflect.Float64:
		return fv.Float()
	case reflect.Bool:
		return fv.Bool()
	case reflect.String:
		return fv.String()
	}
	return fv.Interface()
}

// FromDriver 将驱动返回的值写入字段，NULL 写入零值
func FromDriver(fv reflect.Value, value any) error {
	if fv.CanAddr() && fv.Addr().Type().Implements(scannerType) {
		return fv.Addr().Interface().(sql.Scanner).Scan(value)
	}

	if value == nil {
		fv.Set(reflect.Zero(fv.Type()))
		return nil
	}

	if fv.Kind() == reflect.Ptr {
		elem := reflect.New(fv.Type().Elem())
		if err := FromDriver(elem.Elem(), value); err != nil {
			return err
		}
		fv.Set(elem)
		return nil
	}

	if b, ok := value.([]byte); ok && fv.Kind() != reflect.Slice {
		value = string(b)
	}

	if fv.Type() == timeType {
		t, err := toTime(value)
		if err != nil {
			return err
		}
		fv.Set(reflect.ValueOf(t))
		return nil
	}

	switch fv.Kind() {
	case reflect.Bool:
		switch v := value.(type) {
		case bool:
			fv.SetBool(v)
		case int64:
			fv.SetBool(v != 0)
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return errors.Wrapf(err, "cannot convert %q to bool", v)
			}
			fv.SetBool(b)
		default:
			return errors.Errorf("cannot convert %T to bool", value)
		}
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := toInt64(value)
		if err != nil {
			return err
		}
		fv.SetInt(n)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := toInt64(value)
		if err != nil {
			return err
		}
		fv.SetUint(uint64(n))
		return nil
	case reflect.Float32, reflect.Float64:
		f, err := ToFloat64(value)
		if err != nil {
			return err
		}
		fv.SetFloat(f)
		return nil
	case reflect.String:
		fv.SetString(ToString(value))
		return nil
	}

	rv := reflect.ValueOf(value)
	if rv.Type().AssignableTo(fv.Type()) {
		fv.Set(rv)
		return nil
	}
	if rv.Type().ConvertibleTo(fv.Type()) {
		fv.Set(rv.Convert(fv.Type()))
		return nil
	}
	return errors.Errorf("cannot convert %T to %v", value, fv.Type())
}

func toInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case float32:
		return int64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "cannot convert %q to integer", v)
		}
		return n, nil
	}
	return 0, errors.Errorf("cannot convert %T to integer", value)
}

// ToFloat64 将驱动返回的数值转换为 float64，聚合结果也使用
func ToFloat64(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case []byte:
		return ToFloat64(string(v))
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, errors.Wrapf(err, "cannot convert %q to float", v)
		}
		return f, nil
	}
	return 0, errors.Errorf("cannot convert %T to float", value)
}

// ToString 将驱动返回的值转换为字符串，用于关联数据的键比较
func ToString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 32)
	}
	return fmt.Sprint(value)
}

func toTime(value any) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case string:
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t, nil
			}
		}
		return time.Time{}, errors.Errorf("cannot parse time %q", v)
	case int64:
		return time.Unix(v, 0), nil
	}
	return time.Time{}, errors.Errorf("cannot convert %T to time", value)
}
