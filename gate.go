package djtoggle

// Gate 将 Flag 读取转换为整窗开关 (Boolean Gate)。
// 真值把查询原样委托给 base；假值对该窗口返回空事件序列 (完全静音)。
// 每次 Query 独立判定，不存在部分抑制。
func (b *Bridge) Gate(base Pattern, key string, def bool) Pattern {
	return PatternFunc(func(win Span) []Event {
		if b.readOr(key, def).Truthy() {
			return base.Query(win)
		}
		return nil
	})
}
