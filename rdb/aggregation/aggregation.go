// Package aggregation 指标聚合表达式，编译为 SELECT 列表中的 FN([DISTINCT] column)
package aggregation

// AggregationType 聚合类型
type AggregationType string

const (
	AggTypeSum   AggregationType = "sum"
	AggTypeAvg   AggregationType = "avg"
	AggTypeMax   AggregationType = "max"
	AggTypeMin   AggregationType = "min"
	AggTypeCount AggregationType = "count"
)

// Aggregation 聚合接口
type Aggregation interface {
	Type() AggregationType
	Name() string
	ToSQL() (string, []any, error)
}

func Count(field string) *CountAggregation {
	return &CountAggregation{MetricAggregation{Field: field}}
}

func Sum(field string) *SumAggregation {
	return &SumAggregation{MetricAggregation{Field: field}}
}

func Avg(field string) *AvgAggregation {
	return &AvgAggregation{MetricAggregation{Field: field}}
}

func Max(field string) *MaxAggregation {
	return &MaxAggregation{MetricAggregation{Field: field}}
}

func Min(field string) *MinAggregation {
	return &MinAggregation{MetricAggregation{Field: field}}
}
