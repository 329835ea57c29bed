package djtoggle

import "log"

// PatternFactory 是零参的 Pattern 工厂。
// 工厂可能构造开销很大，或携带内部状态 (例如随机源)，
// 因此由 Selector 控制调用次数。
type PatternFactory func() Pattern

// VariantRegistry 是变体名到工厂的映射。
// 对给定 Selector 实例不可变，由调用方在构造时提供。
type VariantRegistry map[string]PatternFactory

// StaticVariant 将现成的 Pattern 包装为工厂 (注册表也允许直接给值)。
func StaticVariant(p Pattern) PatternFactory {
	return func() Pattern { return p }
}

// Select 将 Flag 读取转换为预构建变体之间的选择 (Cached Variant Selector)。
// 每次 Query 解析选中的变体名：未注册时回退 defVariant，
// defVariant 也未注册时告警并静音。
// 对每次生效的选择，工厂恰好调用一次；实例只保留最近一次选择，
// 切换走再切回会重新调用工厂。
func (b *Bridge) Select(key string, defVariant string, registry VariantRegistry) Pattern {
	return &selectPattern{b: b, key: key, defVariant: defVariant, registry: registry}
}

// selectPattern 的两个可观测状态：
// 未解析 (cache.Pattern == nil) 与 已解析 (变体名 + Pattern 实例)。
type selectPattern struct {
	b          *Bridge
	key        string
	defVariant string
	registry   VariantRegistry
	cache      CacheEntry
}

func (s *selectPattern) Query(win Span) []Event {
	name := s.defVariant
	if v, ok := s.b.store.Read(s.key); ok {
		if str, sok := v.Str(); sok {
			name = str
		}
	}

	factory, ok := s.registry[name]
	if !ok {
		// 未知变体回退默认变体
		factory, ok = s.registry[s.defVariant]
		if !ok {
			log.Printf("warning: neither variant %q nor default %q registered (key=%s), yielding silence", name, s.defVariant, s.key)
			return s.b.engine.Silence().Query(win)
		}
		name = s.defVariant
	}

	// 变体未变化时复用已构建的实例，保持其内部状态稳定
	if s.cache.Pattern == nil || s.cache.Source != name {
		s.cache = CacheEntry{Source: name, Pattern: factory()}
	}
	return s.cache.Pattern.Query(win)
}
