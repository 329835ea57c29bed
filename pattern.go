package djtoggle

// Span 是查询窗口：以 cycle 为单位的时间区间。
type Span struct {
	Begin float64
	End   float64
}

// Event 是带时值的事件：载荷 + 时间范围。
// 由底层引擎产生，本层只透传或改写载荷，从不自行构造时值。
type Event struct {
	Value any
	Span  Span
}

// Pattern 是时间窗口到事件序列的纯函数。
// 在两次 Flag 变更之间，对同一窗口的两次 Query 必须返回相同结果。
type Pattern interface {
	Query(win Span) []Event
}

// PatternFunc 将普通函数适配为 Pattern。
type PatternFunc func(win Span) []Event

func (f PatternFunc) Query(win Span) []Event { return f(win) }

// Engine 是底层 Pattern 引擎的边界 (外部协作方，构造时注入)。
type Engine interface {
	// Parse 解析 mini-notation 源码为 Pattern。
	Parse(code string) (Pattern, error)

	// Pure 构造常量 Pattern。
	Pure(value any) Pattern

	// Fast 将 Pattern 加速 factor 倍。
	Fast(p Pattern, factor float64) Pattern

	// Stack 将多个 Pattern 同时叠加。
	// 事件合并顺序必须与入参顺序一致 (下游依赖确定性的 tie-break)。
	Stack(pats ...Pattern) Pattern

	// Silence 返回空 Pattern (任何窗口都不产生事件)。
	Silence() Pattern

	// SetTempo 设置全局速度 (cycles per minute)。
	SetTempo(cpm float64)
}
