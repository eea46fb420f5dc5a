package ddl

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hatlonely/qorm/rdb/schema"
)

// 目录查询语句，参数使用 PostgreSQL 的 $n 占位符
const (
	ListDatabases = `SELECT datname FROM pg_database WHERE datistemplate = false`

	ListTables = `SELECT table_name FROM information_schema.tables ` +
		`WHERE table_schema = current_schema() AND table_type = 'BASE TABLE' ORDER BY table_name`

	ListColumns = `SELECT column_name, data_type, character_maximum_length, is_nullable, column_default, is_identity ` +
		`FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = $1 ORDER BY ordinal_position`

	ConstraintExists = `SELECT 1 FROM information_schema.table_constraints ` +
		`WHERE lower(constraint_name) = lower($1) AND constraint_schema = current_schema() LIMIT 1`
)

// HasNullData 检查列中是否存在 NULL 值
func HasNullData(table string, column string) string {
	return fmt.Sprintf("SELECT 1 FROM %s WHERE %s IS NULL LIMIT 1", Quote(table), Quote(column))
}

// ParseCatalogType 解析 information_schema.columns.data_type，无法识别时返回 false
func ParseCatalogType(name string) (schema.DataType, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "integer":
		return schema.Integer, true
	case "smallint":
		return schema.SmallInt, true
	case "bigint":
		return schema.BigInt, true
	case "real":
		return schema.Real, true
	case "double precision":
		return schema.Double, true
	case "boolean":
		return schema.Boolean, true
	case "character", "char":
		return schema.Char, true
	case "text":
		return schema.Text, true
	case "character varying", "varchar":
		return schema.Varchar, true
	case "date":
		return schema.Date, true
	case "timestamp without time zone", "timestamp":
		return schema.Timestamp, true
	}
	return schema.Text, false
}

var castSuffix = regexp.MustCompile(`::[a-zA-Z ]+(\(\d+\))?(\[\])?$`)

// NormalizeDefault 将目录中的默认值规整为声明时的形式
// 去掉类型转换和字符串引号，序列默认值视为自增，返回空字符串
func NormalizeDefault(raw string) (value string, serial bool) {
	value = strings.TrimSpace(raw)
	if value == "" {
		return "", false
	}
	if strings.HasPrefix(strings.ToLower(value), "nextval(") {
		return "", true
	}
	for {
		stripped := castSuffix.ReplaceAllString(value, "")
		for strings.HasPrefix(stripped, "(") && strings.HasSuffix(stripped, ")") && !strings.Contains(stripped[1:len(stripped)-1], "(") {
			stripped = stripped[1 : len(stripped)-1]
		}
		if stripped == value {
			break
		}
		value = stripped
	}
	if len(value) >= 2 && strings.HasPrefix(value, "'") && strings.HasSuffix(value, "'") {
		value = strings.ReplaceAll(value[1:len(value)-1], "''", "'")
	}
	return value, false
}

// DefaultsEqual 比较声明的默认值和规整后的目录默认值
// 表达式、数值和布尔默认值忽略大小写，字符串字面量精确比较
func DefaultsEqual(column schema.Column, live string) bool {
	if column.DefaultExpr || column.Type.IsNumeric() {
		return strings.EqualFold(strings.TrimSpace(column.Default), live)
	}
	return column.Default == live
}
