package query

// ExistsQuery 字段非空
type ExistsQuery struct {
	Field string `json:"field"`
}

func (q *ExistsQuery) Type() QueryType {
	return QueryTypeExists
}

func (q *ExistsQuery) ToSQL() (string, []any, error) {
	column, err := Column(q.Field)
	if err != nil {
		return "", nil, err
	}
	return column + " IS NOT NULL", nil, nil
}
