package cfg

import (
	"os"

	"github.com/pkg/errors"
)

// Load 从文件加载配置到结构体，依次执行默认值填充、解码和校验
// 默认值先于文件生效，文件中显式设置的 false 或 0 不会被默认值覆盖
// path 为空时只填充默认值并校验
func Load(path string, object any) error {
	if err := SetDefaults(object); err != nil {
		return errors.WithMessage(err, "SetDefaults failed")
	}

	if path != "" {
		format, err := FormatOf(path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "failed to read config file: %s", path)
		}
		m, err := Decode(data, format)
		if err != nil {
			return errors.WithMessagef(err, "failed to decode config file: %s", path)
		}
		if err := Bind(m, object); err != nil {
			return errors.WithMessage(err, "Bind failed")
		}
	}

	if err := Validate(object); err != nil {
		return errors.Wrap(err, "Validate failed")
	}
	return nil
}

// LoadWithEnv 先从文件加载，再以环境变量覆盖，最后重新校验
func LoadWithEnv(path string, prefix string, object any, envFiles ...string) error {
	if err := Load(path, object); err != nil {
		return err
	}
	if err := LoadEnv(prefix, object, envFiles...); err != nil {
		return errors.WithMessage(err, "LoadEnv failed")
	}
	if err := Validate(object); err != nil {
		return errors.Wrap(err, "Validate failed")
	}
	return nil
}
