package aggregation

import (
	"regexp"
	"strings"

	"github.com/hatlonely/qorm/rdb/query"
	"github.com/pkg/errors"
)

// MetricAggregation 指标聚合基础结构
// Field 是普通列名时加引号，否则视为表达式原样输出；AggName 非空时追加 AS 别名
type MetricAggregation struct {
	AggName  string
	Field    string
	Distinct bool
}

func (m *MetricAggregation) Name() string {
	return m.AggName
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

func (m *MetricAggregation) compile(fn string) (string, []any, error) {
	field := strings.TrimSpace(m.Field)
	if field == "" {
		return "", nil, errors.Errorf("%s aggregation requires a field", fn)
	}
	if field == "*" && m.Distinct {
		return "", nil, errors.Errorf("%s(DISTINCT *) is not allowed", fn)
	}

	if identifierPattern.MatchString(field) {
		quoted, err := query.Column(field)
		if err != nil {
			return "", nil, err
		}
		field = quoted
	}

	var b strings.Builder
	b.WriteString(fn)
	b.WriteString("(")
	if m.Distinct {
		b.WriteString("DISTINCT ")
	}
	b.WriteString(field)
	b.WriteString(")")
	if m.AggName != "" {
		alias, err := query.Column(m.AggName)
		if err != nil {
			return "", nil, err
		}
		b.WriteString(" AS ")
		b.WriteString(alias)
	}
	return b.String(), nil, nil
}
