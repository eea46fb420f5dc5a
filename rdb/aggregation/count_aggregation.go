package aggregation

// CountAggregation 计数聚合，Field 为空时为 COUNT(*)
type CountAggregation struct {
	MetricAggregation
}

func (a *CountAggregation) Type() AggregationType {
	return AggTypeCount
}

func (a *CountAggregation) ToSQL() (string, []any, error) {
	if a.Field == "" {
		m := a.MetricAggregation
		m.Field = "*"
		return m.compile("COUNT")
	}
	return a.compile("COUNT")
}
