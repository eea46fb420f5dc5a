package rdb

import (
	"context"
	"strconv"
	"strings"

	"github.com/hatlonely/qorm/rdb/aggregation"
	"github.com/hatlonely/qorm/rdb/conn"
	"github.com/pkg/errors"
)

// Number 聚合结果可以转换到的数值类型
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Aggregate 编译单个聚合查询，不包含 ORDER BY 和 LIMIT
func (q *Query[T]) Aggregate(agg aggregation.Aggregation) (string, []any, error) {
	expr, _, err := agg.ToSQL()
	if err != nil {
		return "", nil, err
	}
	tail, args := q.tail()
	return "SELECT " + expr + tail, args, nil
}

// scalar 立即执行聚合查询，不使用也不影响列表缓存，NULL 结果返回 nil
func (q *Query[T]) scalar(ctx context.Context, agg aggregation.Aggregation) (any, error) {
	if q.err != nil {
		return nil, q.set.fail(ctx, q.err, "aggregate failed")
	}
	statement, args, err := q.Aggregate(agg)
	if err != nil {
		return nil, q.set.fail(ctx, err, "aggregate failed")
	}
	var value any
	err = q.set.ctx.do(ctx, func(s *conn.Session) error {
		_, err := s.Scalar(ctx, &value, statement, args...)
		return err
	})
	if err != nil {
		return nil, q.set.fail(ctx, err, "aggregate failed")
	}
	return value, nil
}

// Count 统计行数，column 为空时为 COUNT(*)，Distinct 时统计去重后的值
func (q *Query[T]) Count(ctx context.Context, column ...string) (int64, error) {
	field := ""
	if len(column) > 0 {
		field = column[0]
	}
	value, err := q.scalar(ctx, &aggregation.CountAggregation{
		MetricAggregation: aggregation.MetricAggregation{Field: field, Distinct: q.distinct},
	})
	if err != nil {
		return 0, err
	}
	n, err := toNumber[int64](value)
	if err != nil {
		return 0, q.set.fail(ctx, err, "aggregate failed")
	}
	return n, nil
}

// Sum 求和，空表返回零值
func Sum[N Number, T any](ctx context.Context, q *Query[T], column string) (N, error) {
	return aggregate[N](ctx, q, &aggregation.SumAggregation{
		MetricAggregation: aggregation.MetricAggregation{Field: column, Distinct: q.distinct},
	})
}

// Avg 平均值，空表返回零值
func Avg[N Number, T any](ctx context.Context, q *Query[T], column string) (N, error) {
	return aggregate[N](ctx, q, &aggregation.AvgAggregation{
		MetricAggregation: aggregation.MetricAggregation{Field: column, Distinct: q.distinct},
	})
}

// Max 最大值，空表返回零值
func Max[N Number, T any](ctx context.Context, q *Query[T], column string) (N, error) {
	return aggregate[N](ctx, q, &aggregation.MaxAggregation{
		MetricAggregation: aggregation.MetricAggregation{Field: column, Distinct: q.distinct},
	})
}

// Min 最小值，空表返回零值
func Min[N Number, T any](ctx context.Context, q *Query[T], column string) (N, error) {
	return aggregate[N](ctx, q, &aggregation.MinAggregation{
		MetricAggregation: aggregation.MetricAggregation{Field: column, Distinct: q.distinct},
	})
}

func aggregate[N Number, T any](ctx context.Context, q *Query[T], agg aggregation.Aggregation) (N, error) {
	value, err := q.scalar(ctx, agg)
	if err != nil {
		return 0, err
	}
	n, err := toNumber[N](value)
	if err != nil {
		return 0, q.set.fail(ctx, err, "aggregate failed")
	}
	return n, nil
}

// toNumber 驱动返回的整数、浮点数或数字字符串转换为 N，nil 为零值
func toNumber[N Number](value any) (N, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case int64:
		return N(v), nil
	case int32:
		return N(v), nil
	case int:
		return N(v), nil
	case float64:
		return N(v), nil
	case float32:
		return N(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case []byte:
		return parseNumber[N](string(v))
	case string:
		return parseNumber[N](v)
	}
	return 0, errors.Errorf("cannot convert %T to number", value)
}

func parseNumber[N Number](s string) (N, error) {
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return N(i), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "cannot parse %q as number", s)
	}
	return N(f), nil
}
