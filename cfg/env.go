package cfg

import (
	"os"
	"reflect"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// LoadEnv 使用环境变量覆盖配置
// 键名由前缀和各层 cfg tag 的大写形式以下划线连接，例如 QORM_CONNECTION_HOST
// envFiles 按顺序加载，后面的文件覆盖前面的，文件不存在时忽略，进程环境变量优先级最高
func LoadEnv(prefix string, object any, envFiles ...string) error {
	rv := reflect.ValueOf(object)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.New("object must be a non-nil pointer")
	}

	env := map[string]string{}
	for _, file := range envFiles {
		if file == "" {
			continue
		}
		values, err := godotenv.Read(file)
		if err != nil {
			if os.IsNotExist(errors.Cause(err)) {
				continue
			}
			return errors.Wrapf(err, "failed to load env file: %s", file)
		}
		for k, v := range values {
			env[k] = v
		}
	}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}

	return applyEnv(env, envKey(prefix), rv.Elem())
}

func applyEnv(env map[string]string, key string, rv reflect.Value) error {
	if rv.Kind() == reflect.Ptr {
		if rv.Type().Elem().Kind() != reflect.Struct {
			if v, ok := env[key]; ok {
				return setString(rv, v)
			}
			return nil
		}
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}

	if rv.Kind() != reflect.Struct || rv.Type() == timeType {
		if v, ok := env[key]; ok {
			return errors.WithMessagef(setString(rv, v), "env %s", key)
		}
		return nil
	}

	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() || rv.Field(i).Kind() == reflect.Map || rv.Field(i).Kind() == reflect.Interface {
			continue
		}
		name := fieldKey(field)
		if name == "-" {
			continue
		}
		if err := applyEnv(env, joinEnvKey(key, envKey(name)), rv.Field(i)); err != nil {
			return err
		}
	}
	return nil
}

// envKey 将 camelCase 转为大写下划线形式
func envKey(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' && i > 0 && name[i-1] >= 'a' && name[i-1] <= 'z' {
			b.WriteByte('_')
		}
		b.WriteRune(r)
	}
	return strings.ToUpper(strings.Trim(b.String(), "_"))
}

func joinEnvKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "_" + key
}
