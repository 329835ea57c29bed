package djtoggle

import "encoding/json"

// prefix 目前使用的 Redis Key 前缀
var prefix = "dj-toggle:"

// SetPrefix 设置全局 Redis Key 前缀。
// 这应该在任何其他操作之前调用。
func SetPrefix(p string) {
	prefix = p
	if len(prefix) > 0 && prefix[len(prefix)-1] != ':' {
		prefix += ":"
	}
}

// Suffix defs
const (
	SuffixFlags   = "flags:"  // Flag 快照
	SuffixMeta    = "meta:"   // 元信息 (全量 Hash)
	SuffixUpdates = "updates" // 更新通知
)

// Redis Key Helper

// KeyFlags 返回 Flag 快照的 Redis Key。
// 该 Hash 存储 FlagKey -> RawJSON。
// clientID: Provider 侧的客户端/环境标识。
func KeyFlags(clientID string) string {
	return prefix + SuffixFlags + clientID
}

// KeyMeta 返回元信息的 Redis Key。
// 该 Hash 存储 all_hash 字段 (用于反熵校验)。
func KeyMeta(clientID string) string {
	return prefix + SuffixMeta + clientID
}

// KeyUpdates 返回发布订阅更新通知的 Redis Stream Key。
func KeyUpdates(clientID string) string {
	return prefix + SuffixUpdates + ":" + clientID
}

// MetaFieldAllHash meta Hash 中存储全量 Hash 的字段名。
const MetaFieldAllHash = "all_hash"

// Stream 事件类型
const (
	EventUpdate = "update"
	EventReload = "reload"
)

// Redis Stream 消息载荷
type UpdateMessage struct {
	Event     string          `json:"event"`     // 事件类型
	Key       string          `json:"key"`       // 变更的 Flag Key (EventReload 时为空)
	Value     json.RawMessage `json:"value"`     // 变更后的原始 JSON 值
	AllHash   string          `json:"all_hash"`  // 变更后的全量 Hash
	Timestamp int64           `json:"timestamp"` // 时间戳
}
