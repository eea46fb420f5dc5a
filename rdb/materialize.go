package rdb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// encodeRecords 字段按字母序输出，nested 中的关联数组按 Include 顺序排在标量字段之后
func encodeRecords(records []map[string]any, nested []string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, record := range records {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeRecord(&buf, record, nested); err != nil {
			return nil, err
		}
	}
	buf.WriteByte(']')

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "    "); err != nil {
		return nil, errors.Wrap(err, "json.Indent failed")
	}
	return out.Bytes(), nil
}

func encodeRecord(buf *bytes.Buffer, record map[string]any, nested []string) error {
	isNested := make(map[string]bool, len(nested))
	for _, name := range nested {
		isNested[name] = true
	}
	var keys []string
	for key, value := range record {
		if _, ok := value.([]map[string]any); ok && isNested[key] {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	first := true
	writeKey := func(key string) error {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		k, err := json.Marshal(key)
		if err != nil {
			return errors.Wrap(err, "json.Marshal failed")
		}
		buf.Write(k)
		buf.WriteByte(':')
		return nil
	}

	for _, key := range keys {
		if err := writeKey(key); err != nil {
			return err
		}
		v, err := json.Marshal(record[key])
		if err != nil {
			return errors.Wrapf(err, "json.Marshal failed, key [%s]", key)
		}
		buf.Write(v)
	}

	written := map[string]bool{}
	for _, name := range nested {
		rows, ok := record[name].([]map[string]any)
		if !ok || written[name] {
			continue
		}
		written[name] = true
		if err := writeKey(name); err != nil {
			return err
		}
		buf.WriteByte('[')
		for i, row := range rows {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeRecord(buf, row, nil); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	}
	buf.WriteByte('}')
	return nil
}

// flatten 按关联数组展开为显示行
// 每条基础记录与每个关联的每条匹配记录组合成一行，没有匹配的关联保留一行空白列
func flatten(records []map[string]any, columns []string, includes []string) ([]string, [][]string) {
	header := append([]string(nil), columns...)

	type part struct {
		name    string
		columns []string
	}
	var parts []part
	seen := map[string]bool{}
	for _, name := range includes {
		if seen[name] {
			continue
		}
		seen[name] = true
		var keys []string
		present := false
		for _, record := range records {
			rows, ok := record[name].([]map[string]any)
			if !ok {
				continue
			}
			present = true
			for _, row := range rows {
				for key := range row {
					keys = append(keys, key)
				}
			}
		}
		if !present {
			continue
		}
		keys = sortedKeys(keys)
		parts = append(parts, part{name: name, columns: keys})
		for _, key := range keys {
			header = append(header, name+"."+key)
		}
	}

	var rows [][]string
	for _, record := range records {
		base := make([]string, len(columns))
		for i, column := range columns {
			base[i] = formatCell(record[column])
		}
		combos := [][]string{base}
		for _, p := range parts {
			related, _ := record[p.name].([]map[string]any)
			var next [][]string
			for _, combo := range combos {
				if len(related) == 0 {
					next = append(next, append(append([]string(nil), combo...), make([]string, len(p.columns))...))
					continue
				}
				for _, row := range related {
					cells := append([]string(nil), combo...)
					for _, key := range p.columns {
						cells = append(cells, formatCell(row[key]))
					}
					next = append(next, cells)
				}
			}
			combos = next
		}
		rows = append(rows, combos...)
	}
	return header, rows
}

// writeTable 输出定宽表格，末尾附加总行数
func writeTable(w io.Writer, header []string, rows [][]string) error {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if n := utf8.RuneCountInString(cell); n > widths[i] {
				widths[i] = n
			}
		}
	}

	var b strings.Builder
	separator := func() {
		b.WriteString("+")
		for _, width := range widths {
			b.WriteString(strings.Repeat("-", width+2))
			b.WriteString("+")
		}
		b.WriteString("\n")
	}
	line := func(cells []string) {
		b.WriteString("|")
		for i, cell := range cells {
			b.WriteString(" ")
			b.WriteString(cell)
			b.WriteString(strings.Repeat(" ", widths[i]-utf8.RuneCountInString(cell)+1))
			b.WriteString("|")
		}
		b.WriteString("\n")
	}

	if len(header) > 0 {
		separator()
		line(header)
		separator()
		for _, row := range rows {
			line(row)
		}
		separator()
	}
	fmt.Fprintf(&b, "Total rows: %d\n", len(rows))

	_, err := io.WriteString(w, b.String())
	return err
}

func formatCell(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		if v.Hour() == 0 && v.Minute() == 0 && v.Second() == 0 && v.Nanosecond() == 0 {
			return v.Format("2006-01-02")
		}
		return v.Format("2006-01-02 15:04:05")
	}
	return fmt.Sprint(value)
}

// sortedKeys 去重并按字母序排序
func sortedKeys(keys []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if !seen[key] {
			seen[key] = true
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}
