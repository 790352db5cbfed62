package pruning

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// PathSignature 分支轨迹的确定性指纹
type PathSignature struct {
	Hash         string   `json:"hash"`
	Steps        []string `json:"steps"`
	ToolsUsed    []string `json:"tools_used"`
	KeyDecisions []string `json:"key_decisions"`
}

const (
	sectionSep = "\x1e"
	itemSep    = "\x1f"
)

// ComputeSignature 按 steps、tools、decisions 顺序拼接，截断到 maxLen 字节后取 SHA-256。
// maxLen <= 0 时不截断。返回值保留未截断的原始序列。
func ComputeSignature(steps, tools, decisions []string, maxLen int) PathSignature {
	key := strings.Join(steps, itemSep) + sectionSep +
		strings.Join(tools, itemSep) + sectionSep +
		strings.Join(decisions, itemSep)
	if maxLen > 0 && len(key) > maxLen {
		key = key[:maxLen]
	}

	sum := sha256.Sum256([]byte(key))
	return PathSignature{
		Hash:         hex.EncodeToString(sum[:]),
		Steps:        cloneStrings(steps),
		ToolsUsed:    cloneStrings(tools),
		KeyDecisions: cloneStrings(decisions),
	}
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
