package uid

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// Generator 生成字符串唯一标识
type Generator interface {
	Generate() string
}

type UUIDOptions struct {
	// 版本：v1, v4, v6, v7
	Version string `cfg:"version" def:"v7" validate:"omitempty,oneof=v1 v4 v6 v7"`
	// 是否包含连字符，默认输出 32 位十六进制
	WithHyphens bool `cfg:"withHyphens"`
}

type UUIDGenerator struct {
	version     string
	withHyphens bool
}

// NewUUIDGeneratorWithOptions options 为 nil 或未指定版本时使用 v4
func NewUUIDGeneratorWithOptions(options *UUIDOptions) *UUIDGenerator {
	if options == nil {
		options = &UUIDOptions{}
	}
	version := options.Version
	if version == "" {
		version = "v4"
	}
	return &UUIDGenerator{
		version:     version,
		withHyphens: options.WithHyphens,
	}
}

func (g *UUIDGenerator) Generate() string {
	var u uuid.UUID
	var err error
	switch g.version {
	case "v1":
		u, err = uuid.NewUUID()
	case "v6":
		u, err = uuid.NewV6()
	case "v7":
		u, err = uuid.NewV7()
	default:
		u = uuid.New()
	}
	// 时钟序列不可用时退回随机版本
	if err != nil {
		u = uuid.New()
	}

	if g.withHyphens {
		return u.String()
	}
	return hex.EncodeToString(u[:])
}
