package schema

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Document schema 文件的结构
//
//	tables:
//	  - name: persons
//	    columns:
//	      - {name: id, type: integer, primaryKey: true}
//	      - {name: name, type: varchar, size: 64}
type Document struct {
	Tables []Table `yaml:"tables"`
}

// LoadFile 从 yaml 文件加载表声明并校验
func LoadFile(path string) ([]Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read schema file: %s", path)
	}
	return Parse(data)
}

// Parse 解析 yaml 格式的表声明，任意一张表或关系非法都返回错误
func Parse(data []byte) ([]Table, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "yaml.Unmarshal failed")
	}

	for _, table := range doc.Tables {
		if err := table.Validate(); err != nil {
			return nil, err
		}
		for _, relation := range table.Relations {
			if err := relation.Validate(); err != nil {
				return nil, err
			}
		}
	}
	return doc.Tables, nil
}
