// Package query 参数化的过滤条件节点，编译为 WHERE 子句片段，占位符统一使用 ?
package query

import (
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// QueryType 查询类型
type QueryType string

const (
	QueryTypeBool     QueryType = "bool"
	QueryTypeTerm     QueryType = "term"
	QueryTypeTerms    QueryType = "terms"
	QueryTypeMatch    QueryType = "match"
	QueryTypeRange    QueryType = "range"
	QueryTypeExists   QueryType = "exists"
	QueryTypeWildcard QueryType = "wildcard"
	QueryTypePrefix   QueryType = "prefix"
	QueryTypeRegexp   QueryType = "regexp"
	QueryTypeRaw      QueryType = "raw"
)

var ErrEmptyField = errors.New("empty field")

// Query 查询节点接口
type Query interface {
	Type() QueryType
	ToSQL() (string, []any, error)
}

// Column 引用列名，table.column 形式分段引用，* 和已带引号的名称原样保留
func Column(field string) (string, error) {
	field = strings.TrimSpace(field)
	if field == "" {
		return "", ErrEmptyField
	}
	parts := strings.Split(field, ".")
	for i, part := range parts {
		if part == "*" || strings.HasPrefix(part, `"`) {
			continue
		}
		parts[i] = pq.QuoteIdentifier(part)
	}
	return strings.Join(parts, "."), nil
}

// escapeLike 转义 LIKE 模式中的特殊字符，配合 ESCAPE '\' 使用
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func Term(field string, value any) *TermQuery {
	return &TermQuery{Field: field, Value: value}
}

func Terms(field string, values ...any) *TermsQuery {
	return &TermsQuery{Field: field, Values: values}
}

func Match(field string, value any) *MatchQuery {
	return &MatchQuery{Field: field, Value: value}
}

func Prefix(field string, value string) *PrefixQuery {
	return &PrefixQuery{Field: field, Value: value}
}

func Wildcard(field string, value string) *WildcardQuery {
	return &WildcardQuery{Field: field, Value: value}
}

func Regexp(field string, value string) *RegexpQuery {
	return &RegexpQuery{Field: field, Value: value}
}

func Exists(field string) *ExistsQuery {
	return &ExistsQuery{Field: field}
}

func Raw(clause string, args ...any) *RawQuery {
	return &RawQuery{Clause: clause, Args: args}
}

// And 所有条件都满足
func And(queries ...Query) *BoolQuery {
	return &BoolQuery{Must: queries}
}

// Or 任一条件满足
func Or(queries ...Query) *BoolQuery {
	return &BoolQuery{Should: queries}
}

// Not 所有条件都不满足
func Not(queries ...Query) *BoolQuery {
	return &BoolQuery{MustNot: queries}
}
