package djtoggle

import (
	"testing"
)

func TestResolve_ParseCache(t *testing.T) {
	b, s, e := newTestBridge()
	seed(s, "melody", `"<0 2 4>"`)

	p := b.Resolve("melody", 0)

	// 两次查询之间无 Flag 变更：解析器只应被调用一次
	got1 := eventValues(p.Query(testWin))
	got2 := eventValues(p.Query(testWin))
	if e.parseCalls["<0 2 4>"] != 1 {
		t.Errorf("Expected 1 parse call, got %d", e.parseCalls["<0 2 4>"])
	}
	if len(got1) != 1 || got1[0] != "mini:<0 2 4>" {
		t.Errorf("Unexpected events: %v", got1)
	}
	if got1[0] != got2[0] {
		t.Errorf("Queries diverged without a flag change: %v vs %v", got1, got2)
	}

	// 字符串变更：下一次查询重新解析
	seed(s, "melody", `"<0 3 5>"`)
	got3 := eventValues(p.Query(testWin))
	if e.parseCalls["<0 3 5>"] != 1 {
		t.Errorf("Expected reparse after change, got %d calls", e.parseCalls["<0 3 5>"])
	}
	if got3[0] != "mini:<0 3 5>" {
		t.Errorf("Expected new pattern, got %v", got3)
	}
}

func TestResolve_ParseFailureFallback(t *testing.T) {
	b, s, e := newTestBridge()
	seed(s, "melody", `"<<oops"`)

	p := b.Resolve("melody", 0)

	// 解析失败：本次求值降级为常量
	got := eventValues(p.Query(testWin))
	if len(got) != 1 || got[0] != "<<oops" {
		t.Errorf("Expected raw string fallback, got %v", got)
	}

	// 失败不写缓存：再次查询会重新尝试解析
	p.Query(testWin)
	if e.parseCalls["<<oops"] != 2 {
		t.Errorf("Expected parse retried on each query, got %d calls", e.parseCalls["<<oops"])
	}

	// 修复后恢复正常解析与缓存
	seed(s, "melody", `"<0 2>"`)
	p.Query(testWin)
	p.Query(testWin)
	if e.parseCalls["<0 2>"] != 1 {
		t.Errorf("Expected 1 parse call after fix, got %d", e.parseCalls["<0 2>"])
	}
}

func TestResolve_ConstantValues(t *testing.T) {
	b, s, e := newTestBridge()

	// 无标记字符的字符串按常量处理，不解析
	seed(s, "sample", `"casio"`)
	got := eventValues(b.Resolve("sample", "x").Query(testWin))
	if len(got) != 1 || got[0] != "casio" {
		t.Errorf("Expected constant casio, got %v", got)
	}
	if len(e.parseCalls) != 0 {
		t.Errorf("Plain string should not be parsed: %v", e.parseCalls)
	}

	// 数值同样按常量处理
	seed(s, "note", `42`)
	got = eventValues(b.Resolve("note", 0).Query(testWin))
	if len(got) != 1 || got[0] != "42" {
		t.Errorf("Expected constant 42, got %v", got)
	}
}

func TestResolve_DefaultWhenAbsent(t *testing.T) {
	b, _, e := newTestBridge()

	// 缺失 Key ⇒ 输出等价于直接代入默认值
	direct := eventValues(e.Pure(7).Query(testWin))
	viaFlag := eventValues(b.Resolve("absent", 7).Query(testWin))
	if len(viaFlag) != 1 || viaFlag[0] != direct[0] {
		t.Errorf("Expected default-equivalence, got %v vs %v", viaFlag, direct)
	}

	// 默认值本身是 mini-notation 时同样走解析路径
	got := eventValues(b.Resolve("absent2", "<0 2>").Query(testWin))
	if len(got) != 1 || got[0] != "mini:<0 2>" {
		t.Errorf("Expected default mini-notation parsed, got %v", got)
	}
}

func TestResolve_IndependentCaches(t *testing.T) {
	b, s, e := newTestBridge()
	seed(s, "melody", `"<0 2 4>"`)

	// 同一 Key 的两个调用点各自持有缓存，互不共享
	p1 := b.Resolve("melody", 0)
	p2 := b.Resolve("melody", 0)
	p1.Query(testWin)
	p1.Query(testWin)
	p2.Query(testWin)
	p2.Query(testWin)
	if e.parseCalls["<0 2 4>"] != 2 {
		t.Errorf("Expected one parse per call site, got %d", e.parseCalls["<0 2 4>"])
	}
}
