package util

import (
	"strconv"
	"strings"
)

// MustParseUint 将字符串转换为无符号整数，解析失败时返回 0
func MustParseUint(s string) uint {
	id, _ := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	return uint(id)
}

// UniqueIDs 去重并剔除 0 与 exclude 中的 ID，保持原有顺序
func UniqueIDs(ids []uint, exclude ...uint) []uint {
	skip := make(map[uint]bool, len(exclude)+1)
	skip[0] = true
	for _, id := range exclude {
		skip[id] = true
	}
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if skip[id] {
			continue
		}
		skip[id] = true
		out = append(out, id)
	}
	return out
}
