package djtoggle

import (
	"log"
	"strings"
	"sync"
)

// patternMarkers 是 mini-notation 的结构性标记字符。
// 字符串值中出现任一标记即认为内嵌了 pattern 语法。
const patternMarkers = "<[{*!/~"

// Bridge 是 Flag 与 Pattern 引擎之间的桥接层入口。
// store / engine 均为外部注入，Bridge 本身只持有
// Tempo 监听注册表这一份可变状态。
type Bridge struct {
	store  *Store
	engine Engine

	mu            sync.Mutex
	tempoListened map[string]bool
}

// NewBridge 创建桥接层。
// store: Flag 存储（外部传入，DI）。
// engine: 底层 Pattern 引擎（外部传入，DI）。
func NewBridge(store *Store, engine Engine) *Bridge {
	return &Bridge{
		store:         store,
		engine:        engine,
		tempoListened: make(map[string]bool),
	}
}

// readOr 读取 Flag，缺失或为 null 时回退到调用方默认值
// (对齐 Provider 侧的 null 合并语义)。
func (b *Bridge) readOr(key string, def any) Value {
	if v, ok := b.store.Read(key); ok && v.Kind() != KindNull {
		return v
	}
	return ValueOf(def)
}

// Resolve 将单个 Flag 读取转换为惰性 Pattern (Scalar Bridge)。
// 每次 Query 重新读取 Flag：字符串值若含 mini-notation 标记则解析为
// Pattern，解析结果按原始字符串相等性缓存；其余形状按常量 Pattern 处理。
// 返回的 Pattern 实例各自持有独立缓存，即使 Key 相同也互不共享。
func (b *Bridge) Resolve(key string, def any) Pattern {
	return &resolvePattern{b: b, key: key, def: def}
}

// resolvePattern 持有单个调用点的解析缓存。
// 同一个实例不会被并发 Query (单线程协作调度)，因此不加锁。
type resolvePattern struct {
	b     *Bridge
	key   string
	def   any
	cache CacheEntry
}

func (r *resolvePattern) Query(win Span) []Event {
	val := r.b.readOr(r.key, r.def)

	if s, ok := val.Str(); ok && strings.ContainsAny(s, patternMarkers) {
		// 字符串未变化则复用上次解析结果
		if r.cache.Pattern != nil && r.cache.Source == s {
			return r.cache.Pattern.Query(win)
		}
		p, err := r.b.engine.Parse(s)
		if err != nil {
			// 仅本次求值降级为常量，不把失败写入缓存
			log.Printf("parse flag %s failed: %v", r.key, err)
			return r.b.engine.Pure(s).Query(win)
		}
		r.cache = CacheEntry{Source: s, Pattern: p}
		return p.Query(win)
	}

	return r.b.engine.Pure(val.Raw()).Query(win)
}
