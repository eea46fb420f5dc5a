package query

// PrefixQuery 前缀查询
type PrefixQuery struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

func (q *PrefixQuery) Type() QueryType {
	return QueryTypePrefix
}

func (q *PrefixQuery) ToSQL() (string, []any, error) {
	column, err := Column(q.Field)
	if err != nil {
		return "", nil, err
	}
	return column + ` LIKE ? ESCAPE '\'`, []any{escapeLike(q.Value) + "%"}, nil
}
