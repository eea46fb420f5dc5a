package query

import "fmt"

// MatchQuery 忽略大小写的包含匹配
type MatchQuery struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

func (q *MatchQuery) Type() QueryType {
	return QueryTypeMatch
}

func (q *MatchQuery) ToSQL() (string, []any, error) {
	column, err := Column(q.Field)
	if err != nil {
		return "", nil, err
	}
	return "LOWER(" + column + `) LIKE LOWER(?) ESCAPE '\'`, []any{"%" + escapeLike(fmt.Sprint(q.Value)) + "%"}, nil
}
