package djtoggle

import (
	"encoding/json"
	"reflect"
)

// ValueKind 标识 Flag 原始值的形状。
// Provider 下发的值是动态类型的 (bool/number/string/object/array)，
// 在 Store 读取边界收敛为封闭的 tagged variant，替代运行时 duck-typing。
type ValueKind int

const (
	KindNull ValueKind = iota
	KindBool
	KindNumber
	KindString
	KindObject
	KindArray
)

// Value 是单个 Flag 的当前原始值。
// hash 是 canonical JSON 的内容 Hash，作为各 Bridge 缓存的失效判据。
type Value struct {
	kind ValueKind
	raw  any
	hash string
}

// ValueOf 将任意 Go 值包装为 Value。
// 用于调用方提供的默认值 (Flag 缺失时的回退路径)。
func ValueOf(v any) Value {
	if v == nil {
		return Value{kind: KindNull}
	}
	switch t := v.(type) {
	case Value:
		return t
	case json.RawMessage:
		return decodeRaw(t)
	}

	val := Value{raw: v}
	rv := reflect.ValueOf(v)
	switch {
	case rv.Kind() == reflect.Bool:
		val.kind = KindBool
	case isNumber(rv.Kind()):
		val.kind = KindNumber
	case rv.Kind() == reflect.String:
		val.kind = KindString
	case rv.Kind() == reflect.Map:
		val.kind = KindObject
	case rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array:
		val.kind = KindArray
	default:
		val.kind = KindNull
		val.raw = nil
	}
	return val
}

// decodeRaw 反序列化 Provider 下发的 RawJSON 并计算内容 Hash。
// 非法 JSON 按原始字符串处理 (降级，不丢值)。
func decodeRaw(raw []byte) Value {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return Value{kind: KindString, raw: string(raw), hash: CalculateHash16(raw)}
	}
	val := ValueOf(v)
	val.hash = CalculateHash16(raw)
	return val
}

// Kind 返回值的形状。
func (v Value) Kind() ValueKind { return v.kind }

// Raw 返回解码后的原始值。
func (v Value) Raw() any { return v.raw }

// Hash 返回内容 Hash。调用方默认值没有 Hash (空字符串)。
func (v Value) Hash() string {
	if v.hash == "" && v.kind != KindNull {
		// 默认值路径：惰性计算，保证缓存失效判据一致
		h, _, err := ComputeValueHash(v.raw)
		if err == nil {
			return h
		}
	}
	return v.hash
}

// Bool 返回布尔值。
func (v Value) Bool() (bool, bool) {
	b, ok := v.raw.(bool)
	return b, ok
}

// Str 返回字符串值。
func (v Value) Str() (string, bool) {
	s, ok := v.raw.(string)
	return s, ok
}

// Float 返回数值。
// JSON unmarshal 通常产生 float64，而调用方默认值可能是 int，
// 这里统一做数值类型转换。
func (v Value) Float() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return toFloat(reflect.ValueOf(v.raw))
}

// Object 返回结构化对象值。
func (v Value) Object() (map[string]any, bool) {
	m, ok := v.raw.(map[string]any)
	return m, ok
}

// Floats 返回数值序列 (保持原顺序)。
// 兼容 []any (来自 JSON) 与 []float64/[]int 等 (来自调用方默认值)。
func (v Value) Floats() ([]float64, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	rv := reflect.ValueOf(v.raw)
	out := make([]float64, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		elem := rv.Index(i)
		if elem.Kind() == reflect.Interface {
			elem = elem.Elem()
		}
		f, ok := toFloat(elem)
		if !ok {
			return nil, false
		}
		out = append(out, f)
	}
	return out, true
}

// Truthy 按 Provider 侧的宽松布尔语义求值：
// null/false/0/"" 为假，其余为真。
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNull:
		return false
	case KindBool:
		return v.raw.(bool)
	case KindNumber:
		f, _ := toFloat(reflect.ValueOf(v.raw))
		return f != 0
	case KindString:
		return v.raw.(string) != ""
	}
	return true
}

// CacheEntry 是各 Bridge 实例私有的派生结构缓存。
// 失效契约：仅当 Source 与当前读取到的来源标识
// (Scalar Bridge 的原始字符串 / Variant Selector 的变体名) 相等时，
// Pattern 才有效。每个调用点独立持有，互不共享。
type CacheEntry struct {
	Source  string
	Pattern Pattern
}

// 数值比较辅助方法 (处理 int vs float64 来自 JSON 的类型不一致)

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func toFloat(v reflect.Value) (float64, bool) {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	}
	return 0, false
}
