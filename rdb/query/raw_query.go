package query

import (
	"strings"

	"github.com/pkg/errors"
)

// RawQuery 原样使用的条件片段
type RawQuery struct {
	Clause string `json:"clause"`
	Args   []any  `json:"args,omitempty"`
}

func (q *RawQuery) Type() QueryType {
	return QueryTypeRaw
}

func (q *RawQuery) ToSQL() (string, []any, error) {
	if strings.TrimSpace(q.Clause) == "" {
		return "", nil, errors.New("empty raw clause")
	}
	return "(" + q.Clause + ")", q.Args, nil
}
