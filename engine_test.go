package djtoggle

import (
	"errors"
	"fmt"
	"strings"
)

// stubEngine 以最小语义实现 Engine 边界，并统计原语调用次数。
// 事件载荷编码构造路径 (如 "bd*16")，便于断言叠加顺序。
type stubEngine struct {
	parseCalls map[string]int
	tempos     []float64
}

func newStubEngine() *stubEngine {
	return &stubEngine{parseCalls: make(map[string]int)}
}

func (e *stubEngine) Parse(code string) (Pattern, error) {
	e.parseCalls[code]++
	// 双重开括号视为非法 mini-notation
	if strings.Contains(code, "<<") {
		return nil, errors.New("unexpected token")
	}
	return PatternFunc(func(win Span) []Event {
		return []Event{{Value: "mini:" + code, Span: win}}
	}), nil
}

func (e *stubEngine) Pure(value any) Pattern {
	return PatternFunc(func(win Span) []Event {
		return []Event{{Value: value, Span: win}}
	})
}

func (e *stubEngine) Fast(p Pattern, factor float64) Pattern {
	return PatternFunc(func(win Span) []Event {
		events := p.Query(win)
		out := make([]Event, len(events))
		for i, ev := range events {
			out[i] = ev
			out[i].Value = fmt.Sprintf("%v*%g", ev.Value, factor)
		}
		return out
	})
}

func (e *stubEngine) Stack(pats ...Pattern) Pattern {
	return PatternFunc(func(win Span) []Event {
		var out []Event
		for _, p := range pats {
			out = append(out, p.Query(win)...)
		}
		return out
	})
}

func (e *stubEngine) Silence() Pattern {
	return PatternFunc(func(Span) []Event { return nil })
}

func (e *stubEngine) SetTempo(cpm float64) {
	e.tempos = append(e.tempos, cpm)
}

var testWin = Span{Begin: 0, End: 1}

// newTestBridge 构造不连 Redis 的本地 Store + stub 引擎。
// Bridge 组件只同步读 Store，本地写入即可驱动。
func newTestBridge() (*Bridge, *Store, *stubEngine) {
	s := NewStore(nil, "test")
	e := newStubEngine()
	return NewBridge(s, e), s, e
}

// seed 直接写入本地 Store (绕过 Provider 路径)。
func seed(s *Store, key, rawJSON string) {
	s.merge(key, []byte(rawJSON))
}

// eventValues 取事件载荷的字符串形式序列。
func eventValues(events []Event) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = fmt.Sprintf("%v", ev.Value)
	}
	return out
}
