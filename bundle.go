package djtoggle

import (
	"encoding/json"
	"log"
	"reflect"
)

// bundleShape 区分三类参数包实例：
// primary 是纯文本 Flag 值映射到的载荷字段，
// fields 是受认可的 bundle 字段到事件载荷字段的映射。
type bundleShape struct {
	name    string
	primary string
	fields  map[string]string
}

var (
	drumKitShape = bundleShape{
		name:    "drumKit",
		primary: "bank",
		fields:  map[string]string{"bank": "bank"},
	}
	bassSoundShape = bundleShape{
		name:    "bassSound",
		primary: "s",
		fields:  map[string]string{"sound": "s", "lpf": "lpf", "lpq": "lpq"},
	}
	leadSoundShape = bundleShape{
		name:    "leadSound",
		primary: "s",
		fields:  map[string]string{"sound": "s", "lpf": "lpf", "lpq": "lpq"},
	}
)

// DrumKit 将结构化 Flag 合并进鼓组事件载荷 (Parameter Bundle Merge)。
// 特殊处理 bank；gain 与事件已有增益做乘法合并。
func (b *Bridge) DrumKit(base Pattern, key string, def map[string]any) Pattern {
	return b.bundle(base, key, def, drumKitShape)
}

// BassSound 将结构化 Flag 合并进贝斯事件载荷。
// 特殊处理 sound/lpf/lpq；gain 与事件已有增益做乘法合并。
func (b *Bridge) BassSound(base Pattern, key string, def map[string]any) Pattern {
	return b.bundle(base, key, def, bassSoundShape)
}

// LeadSound 将结构化 Flag 合并进主音色事件载荷。
// 特殊处理 sound/lpf/lpq；gain 与事件已有增益做乘法合并。
func (b *Bridge) LeadSound(base Pattern, key string, def map[string]any) Pattern {
	return b.bundle(base, key, def, leadSoundShape)
}

// bundle 是三个实例共用的合并变换。
// Flag 在每次 Query 读取一次 (查询期间快照不变)，
// 合并逐事件应用到载荷上。
func (b *Bridge) bundle(base Pattern, key string, def map[string]any, shape bundleShape) Pattern {
	return PatternFunc(func(win Span) []Event {
		bundle, ok := b.resolveBundle(key, def, shape)
		events := base.Query(win)
		if !ok || len(bundle) == 0 {
			return events
		}

		out := make([]Event, len(events))
		for i, ev := range events {
			out[i] = ev
			out[i].Value = mergeBundle(ev.Value, bundle, shape)
		}
		return out
	})
}

// resolveBundle 读取并规整参数包。
// 文本值尝试结构化解码，失败时按 primary 字段的裸值处理
// (仅本次求值，不影响后续)。
func (b *Bridge) resolveBundle(key string, def map[string]any, shape bundleShape) (map[string]any, bool) {
	val := b.readOr(key, def)

	if obj, ok := val.Object(); ok {
		return obj, true
	}

	if s, ok := val.Str(); ok {
		var decoded map[string]any
		if err := json.Unmarshal([]byte(s), &decoded); err != nil {
			log.Printf("decode %s bundle %s failed, using raw value: %v", shape.name, key, err)
			return map[string]any{shape.primary: s}, true
		}
		return decoded, true
	}

	return nil, false
}

// mergeBundle 将参数包合并进单个事件载荷。
// 受认可字段按映射改写；gain 乘法合并；未识别字段原样透传。
// 非对象载荷没有可合并的字段，原样返回。
func mergeBundle(payload any, bundle map[string]any, shape bundleShape) any {
	obj, ok := payload.(map[string]any)
	if !ok {
		return payload
	}

	// 复制载荷，避免改写 base 产生的事件
	merged := make(map[string]any, len(obj)+len(bundle))
	for k, v := range obj {
		merged[k] = v
	}

	for k, v := range bundle {
		switch {
		case k == "gain":
			merged["gain"] = existingGain(obj) * gainOf(v)
		case shape.fields[k] != "":
			merged[shape.fields[k]] = v
		default:
			// 未识别字段向前兼容透传
			merged[k] = v
		}
	}
	return merged
}

// existingGain 取事件已有增益，缺省为 1。
func existingGain(obj map[string]any) float64 {
	if g, ok := obj["gain"]; ok {
		if f, fok := toFloat(reflect.ValueOf(g)); fok {
			return f
		}
	}
	return 1
}

// gainOf 取 bundle 增益，非数值时缺省为 1。
func gainOf(v any) float64 {
	if f, ok := toFloat(reflect.ValueOf(v)); ok {
		return f
	}
	return 1
}
