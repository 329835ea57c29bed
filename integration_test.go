package djtoggle

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestIntegration(t *testing.T) {
	// 1. 初始化 Miniredis
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	SetPrefix("testapp:")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Provider 侧灌入初始快照
	clientID := "dj-1"
	pub := NewPublisher(rdb, clientID)
	err = pub.SetAll(ctx, map[string]any{
		"melody":        "<0 2 4>",
		"drums_enabled": true,
		"tempo":         120,
		"style":         "techno",
	})
	if err != nil {
		t.Fatalf("SetAll failed: %v", err)
	}

	// 3. 客户端初始化
	s := NewStore(rdb, clientID)
	if err := s.Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	e := newStubEngine()
	b := NewBridge(s, e)

	melody := b.Resolve("melody", 0)
	drums := b.Gate(e.Pure("bd"), "drums_enabled", true)
	calls := make(map[string]int)
	style := b.Select("style", "techno", countingRegistry(e, calls))
	b.SyncTempo("tempo", 110, 1)

	// 初始状态
	if got := eventValues(melody.Query(testWin)); got[0] != "mini:<0 2 4>" {
		t.Fatalf("Expected parsed melody, got %v", got)
	}
	if got := drums.Query(testWin); len(got) != 1 {
		t.Fatalf("Expected drums enabled, got %v", got)
	}
	if got := eventValues(style.Query(testWin)); got[0] != "techno" {
		t.Fatalf("Expected techno variant, got %v", got)
	}
	if len(e.tempos) != 1 || e.tempos[0] != 120 {
		t.Fatalf("Expected tempo 120 applied, got %v", e.tempos)
	}

	// 4. 启动监听器
	go s.Watch(ctx)
	time.Sleep(100 * time.Millisecond) // 等待监听器启动

	// 5. 推送变更
	if err := pub.SetFlag(ctx, "drums_enabled", false); err != nil {
		t.Fatalf("SetFlag drums failed: %v", err)
	}
	if err := pub.SetFlag(ctx, "tempo", 90); err != nil {
		t.Fatalf("SetFlag tempo failed: %v", err)
	}
	if err := pub.SetFlag(ctx, "style", "epiano"); err != nil {
		t.Fatalf("SetFlag style failed: %v", err)
	}

	// 6. 等待推送传播 (style 是最后一条消息，以它为同步点)
	switched := false
	for i := 0; i < 20; i++ {
		if got := eventValues(style.Query(testWin)); len(got) == 1 && got[0] == "epiano" {
			switched = true
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if !switched {
		t.Fatal("Selector failed to observe pushed change in time")
	}

	// 下一次查询即观察到新值
	if got := drums.Query(testWin); len(got) != 0 {
		t.Errorf("Expected drums silenced, got %v", got)
	}
	if last := e.tempos[len(e.tempos)-1]; last != 90 {
		t.Errorf("Expected tempo re-applied to 90, got %v", e.tempos)
	}

	// melody 未变更：解析缓存保持命中
	melody.Query(testWin)
	if e.parseCalls["<0 2 4>"] != 1 {
		t.Errorf("Expected parse cache intact across unrelated changes, got %d", e.parseCalls["<0 2 4>"])
	}
}
