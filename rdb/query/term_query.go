package query

import (
	"strings"

	"github.com/pkg/errors"
)

// TermQuery 精确匹配查询，值为 nil 时匹配 NULL
type TermQuery struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

func (q *TermQuery) Type() QueryType {
	return QueryTypeTerm
}

func (q *TermQuery) ToSQL() (string, []any, error) {
	column, err := Column(q.Field)
	if err != nil {
		return "", nil, err
	}
	if q.Value == nil {
		return column + " IS NULL", nil, nil
	}
	return column + " = ?", []any{q.Value}, nil
}

// TermsQuery 匹配任一值，编译为 IN
type TermsQuery struct {
	Field  string `json:"field"`
	Values []any  `json:"values"`
}

func (q *TermsQuery) Type() QueryType {
	return QueryTypeTerms
}

// ToSQL 空值列表不匹配任何行
func (q *TermsQuery) ToSQL() (string, []any, error) {
	column, err := Column(q.Field)
	if err != nil {
		return "", nil, errors.WithMessage(err, "terms query")
	}
	if len(q.Values) == 0 {
		return "1=0", nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(q.Values)), ", ")
	return column + " IN (" + placeholders + ")", append([]any(nil), q.Values...), nil
}
