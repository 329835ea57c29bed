package djtoggle

// Layered 将 Flag 读取转换为 base 的多层加速叠加 (Polyphonic Layering)。
// 速度序列 [16, 4] 产生 base 加速 16 与加速 4 的确定性叠加 (顺序同序列)；
// 空序列原样透传 base；单个数值等价于单层加速，不叠加。
// 叠加结构每次 Query 重建，不做缓存 (重建成本远低于解析/工厂调用)。
func (b *Bridge) Layered(base Pattern, key string, def any) Pattern {
	return PatternFunc(func(win Span) []Event {
		val := b.readOr(key, def)

		if speeds, ok := val.Floats(); ok {
			if len(speeds) == 0 {
				return base.Query(win)
			}
			layers := make([]Pattern, 0, len(speeds))
			for _, s := range speeds {
				// 每层独立套一次 Fast，各层查询互不影响
				layers = append(layers, b.engine.Fast(base, s))
			}
			return b.engine.Stack(layers...).Query(win)
		}

		if f, ok := val.Float(); ok {
			return b.engine.Fast(base, f).Query(win)
		}

		// 形状不合法时安全回退为原速 base
		return base.Query(win)
	})
}
