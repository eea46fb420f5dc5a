package cfg

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// Format 配置文件格式
type Format string

const (
	FormatYaml Format = "yaml"
	FormatJson Format = "json"
	FormatToml Format = "toml"
	FormatIni  Format = "ini"
)

// FormatOf 根据文件扩展名推断格式
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYaml, nil
	case ".json":
		return FormatJson, nil
	case ".toml":
		return FormatToml, nil
	case ".ini":
		return FormatIni, nil
	default:
		return "", errors.Errorf("unsupported config file extension: %s", path)
	}
}

// Decode 将原始数据解码为 map
func Decode(data []byte, format Format) (map[string]any, error) {
	result := map[string]any{}

	switch format {
	case FormatYaml:
		if err := yaml.Unmarshal(data, &result); err != nil {
			return nil, errors.Wrap(err, "yaml.Unmarshal failed")
		}
	case FormatJson:
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.UseNumber()
		if err := decoder.Decode(&result); err != nil {
			return nil, errors.Wrap(err, "json.Decode failed")
		}
	case FormatToml:
		if _, err := toml.Decode(string(data), &result); err != nil {
			return nil, errors.Wrap(err, "toml.Decode failed")
		}
	case FormatIni:
		return decodeIni(data)
	default:
		return nil, errors.Errorf("unsupported format: %s", format)
	}

	return result, nil
}

// decodeIni 默认 section 的键放在顶层，其他 section 作为嵌套 map
func decodeIni(data []byte) (map[string]any, error) {
	file, err := ini.LoadSources(ini.LoadOptions{
		AllowBooleanKeys:         true,
		SpaceBeforeInlineComment: true,
	}, data)
	if err != nil {
		return nil, errors.Wrap(err, "ini.LoadSources failed")
	}

	result := map[string]any{}
	for _, section := range file.Sections() {
		target := result
		if section.Name() != ini.DefaultSection {
			target = map[string]any{}
			result[section.Name()] = target
		}
		for _, key := range section.Keys() {
			target[key.Name()] = iniValue(key.String())
		}
	}
	return result, nil
}

func iniValue(s string) any {
	if b, err := strconv.ParseBool(s); err == nil && (strings.EqualFold(s, "true") || strings.EqualFold(s, "false")) {
		return b
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
