package djtoggle

import (
	"log"
	"strconv"
	"strings"
)

// SyncTempo 将 Flag 派生的数值应用到全局速度 (Tempo Synchronizer)。
// cpm = (数值或可解析字符串) / divisor，立即应用一次；
// 此后该 Key 的每次变更通知都会重新计算并应用。
// 每个 Key 在进程生命周期内至多注册一个监听器，重复调用不会重复注册。
// 返回等价于静音的 Pattern，便于在语法上与其他 Pattern 组合。
func (b *Bridge) SyncTempo(key string, def float64, divisor float64) Pattern {
	if divisor == 0 {
		divisor = 1
	}

	apply := func(v Value) {
		b.engine.SetTempo(tempoOf(v, def, divisor, key))
	}
	apply(b.readOr(key, def))

	b.mu.Lock()
	if !b.tempoListened[key] {
		b.tempoListened[key] = true
		b.store.OnChange(key, apply)
	}
	b.mu.Unlock()

	return b.engine.Silence()
}

// tempoOf 计算 cpm。字符串值按十进制浮点解析，
// 解析失败时回退到默认值。
func tempoOf(v Value, def float64, divisor float64, key string) float64 {
	raw := def
	if f, ok := v.Float(); ok {
		raw = f
	} else if s, ok := v.Str(); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			log.Printf("parse tempo flag %s failed, using default %v: %v", key, def, err)
		} else {
			raw = f
		}
	}
	return raw / divisor
}
