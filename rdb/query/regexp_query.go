package query

// RegexpQuery 正则表达式查询，使用 PostgreSQL 的 ~ 操作符
type RegexpQuery struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

func (q *RegexpQuery) Type() QueryType {
	return QueryTypeRegexp
}

func (q *RegexpQuery) ToSQL() (string, []any, error) {
	column, err := Column(q.Field)
	if err != nil {
		return "", nil, err
	}
	return column + " ~ ?", []any{q.Value}, nil
}
