package djtoggle

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// CalculateHash8 返回 SHA256 Hex 字符串的前 8 位 (用于 AllHash)。
func CalculateHash8(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:8]
}

// CalculateHash16 返回 SHA256 Hex 字符串的前 16 位 (用于 ValueHash)。
func CalculateHash16(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}

// ComputeValueHash 计算单个 Flag 值的 Hash (缓存失效判据)。
// encoding/json 默认会对 map keys 进行排序，保证了 determinism。
func ComputeValueHash(val any) (string, []byte, error) {
	data, err := json.Marshal(val)
	if err != nil {
		return "", nil, err
	}
	return CalculateHash16(data), data, nil
}

// ComputeAllHash 计算整个 Flag 快照的全量 Hash (反熵校验用)。
// 它遍历所有 Flag，按 Key 排序，并对 Key + RawJSON 组合进行 Hash。
func ComputeAllHash(flags map[string]string) string {
	keys := make([]string, 0, len(flags))
	for k := range flags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte(flags[k]))
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum)[:8]
}
