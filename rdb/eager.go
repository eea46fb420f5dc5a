package rdb

import (
	"context"
	"strings"

	"github.com/hatlonely/qorm/rdb/conn"
	"github.com/hatlonely/qorm/rdb/ddl"
	"github.com/hatlonely/qorm/rdb/mapping"
	"github.com/hatlonely/qorm/rdb/schema"
)

// joinKey 多对多预加载时携带关联表键的列别名
const joinKey = "__qorm_key"

// link 一次预加载的键关系
// 直接关联：related.remoteKey = base.localKey
// 多对多：junction.junctionRemote = related.relatedKey 且 junction.junctionLocal = base.localKey
type link struct {
	name      string
	table     string
	localKey  string
	remoteKey string

	junction       string
	junctionLocal  string
	junctionRemote string
	relatedKey     string
}

// links 解析 Include 的名称
// 优先匹配本表 TopTable 为 name 的关系；否则在上下文中查找 BaseTable 为 name、TopTable 为本表的关系反向使用
func (s *Set[T]) links(ctx context.Context, names []string) []link {
	own := s.entity.TableName()
	var links []link
	for _, name := range names {
		if relation, ok := s.entity.Table().RelationTo(name); ok {
			links = append(links, forward(name, relation))
			continue
		}
		if other, ok := s.ctx.table(name); ok {
			if relation, ok := other.RelationTo(own); ok {
				links = append(links, reverse(name, relation))
				continue
			}
		}
		s.logger.WarnContext(ctx, "include does not match any relation, ignored", "include", name)
	}
	return links
}

func forward(name string, r schema.Relation) link {
	if r.Type == schema.ManyToMany {
		base, top := r.JunctionColumns()
		return link{
			name: name, table: r.TopTable, localKey: r.ForeignKey,
			junction: r.JunctionTable(), junctionLocal: base, junctionRemote: top, relatedKey: r.ReferenceKey,
		}
	}
	return link{name: name, table: r.TopTable, localKey: r.ForeignKey, remoteKey: r.ReferenceKey}
}

func reverse(name string, r schema.Relation) link {
	if r.Type == schema.ManyToMany {
		base, top := r.JunctionColumns()
		return link{
			name: name, table: r.BaseTable, localKey: r.ReferenceKey,
			junction: r.JunctionTable(), junctionLocal: top, junctionRemote: base, relatedKey: r.ForeignKey,
		}
	}
	return link{name: name, table: r.BaseTable, localKey: r.ReferenceKey, remoteKey: r.ForeignKey}
}

// resolve 每个关联只发一条 IN 查询，然后按字符串化的键在内存中合并到基础记录上
func (s *Set[T]) resolve(ctx context.Context, session *conn.Session, names []string, records []map[string]any) error {
	if len(names) == 0 {
		return nil
	}
	for _, l := range s.links(ctx, names) {
		keys, args := distinctKeys(records, l.localKey)

		var related []map[string]any
		if len(args) > 0 {
			statement := l.statement(len(args))
			rows, _, err := session.Records(ctx, statement, args...)
			if err != nil {
				return err
			}
			related = rows
		}
		s.logger.DebugContext(ctx, "include loaded", "include", l.name, "keys", len(keys), "rows", len(related))

		matchKey := l.remoteKey
		if l.junction != "" {
			matchKey = joinKey
		}
		groups := map[string][]map[string]any{}
		for _, row := range related {
			key := mapping.ToString(lookup(row, matchKey))
			if l.junction != "" {
				row = without(row, joinKey)
			}
			groups[key] = append(groups[key], row)
		}

		for _, record := range records {
			matched := groups[mapping.ToString(lookup(record, l.localKey))]
			if matched == nil {
				matched = []map[string]any{}
			}
			record[l.name] = matched
		}
	}
	return nil
}

func (l link) statement(n int) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
	table := ddl.Quote(l.table)
	if l.junction == "" {
		return "SELECT * FROM " + table + " WHERE " + ddl.Quote(l.remoteKey) + " IN (" + placeholders + ")"
	}
	junction := ddl.Quote(l.junction)
	return "SELECT " + table + ".*, " + junction + "." + ddl.Quote(l.junctionLocal) + " AS " + ddl.Quote(joinKey) +
		" FROM " + table +
		" INNER JOIN " + junction + " ON " + junction + "." + ddl.Quote(l.junctionRemote) + " = " + table + "." + ddl.Quote(l.relatedKey) +
		" WHERE " + junction + "." + ddl.Quote(l.junctionLocal) + " IN (" + placeholders + ")"
}

// distinctKeys 收集非空的去重键，保持首次出现的顺序
func distinctKeys(records []map[string]any, column string) ([]string, []any) {
	seen := map[string]bool{}
	var keys []string
	var args []any
	for _, record := range records {
		value := lookup(record, column)
		if value == nil {
			continue
		}
		key := mapping.ToString(value)
		if seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
		args = append(args, value)
	}
	return keys, args
}

// lookup 按列名取值，精确匹配失败时忽略大小写
func lookup(record map[string]any, column string) any {
	if v, ok := record[column]; ok {
		return v
	}
	for k, v := range record {
		if strings.EqualFold(k, column) {
			return v
		}
	}
	return nil
}

func without(record map[string]any, key string) map[string]any {
	out := make(map[string]any, len(record))
	for k, v := range record {
		if k != key {
			out[k] = v
		}
	}
	return out
}
