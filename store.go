package djtoggle

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Store 是进程级的 Flag 存储：FlagKey -> 当前原始值。
// 由 Provider 通知路径写入，各 Bridge 同步只读。
// client: Redis 客户端实例（外部传入，DI）。
type Store struct {
	rdb      *redis.Client
	clientID string

	mu        sync.RWMutex
	flags     map[string]Value
	raws      map[string]string // FlagKey -> RawJSON (AllHash 计算用)
	allHash   string
	listeners map[string][]func(Value)
}

// NewStore 创建一个空的 Store。
// 在 Initialize 成功之前所有 Read 都会 miss，
// 调用方通过默认值回退，不会崩溃。
func NewStore(client *redis.Client, clientID string) *Store {
	return &Store{
		rdb:       client,
		clientID:  clientID,
		flags:     make(map[string]Value),
		raws:      make(map[string]string),
		listeners: make(map[string][]func(Value)),
	}
}

// Initialize 连接 Provider 并加载全量 Flag 快照。
// 失败时返回错误，Store 保持当前状态 (通常为空)。
func (s *Store) Initialize(ctx context.Context) error {
	if err := s.reload(ctx); err != nil {
		return fmt.Errorf("initialize failed: %w", err)
	}
	log.Printf("flag store initialized: clientID=%s, allHash=%s", s.clientID, s.AllHash())
	return nil
}

// reload 全量拉取快照并整体替换本地状态。
func (s *Store) reload(ctx context.Context) error {
	rawMap, err := s.rdb.HGetAll(ctx, KeyFlags(s.clientID)).Result()
	if err != nil {
		return fmt.Errorf("get flags failed: %w", err)
	}

	flags := make(map[string]Value, len(rawMap))
	for k, v := range rawMap {
		flags[k] = decodeRaw([]byte(v))
	}

	s.mu.Lock()
	s.flags = flags
	s.raws = rawMap
	s.allHash = ComputeAllHash(rawMap)
	s.mu.Unlock()

	return nil
}

// Read 读取单个 Flag 的当前值。
// 缺失时返回零值与 false，由调用方决定默认值回退。
func (s *Store) Read(key string) (Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.flags[key]
	return v, ok
}

// AllHash 返回当前快照的全量 Hash。
func (s *Store) AllHash() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allHash
}

// OnChange 注册指定 Key 的变更监听。
// 监听器在通知路径上同步调用；去重由调用方负责
// (参见 Bridge.SyncTempo 的注册表)。
func (s *Store) OnChange(key string, fn func(Value)) {
	s.mu.Lock()
	s.listeners[key] = append(s.listeners[key], fn)
	s.mu.Unlock()
}

// merge 按 Key 合并单条变更 (last-write-wins)，并返回合并后的值。
// 值内容未变化时跳过监听器通知。
func (s *Store) merge(key string, raw []byte) Value {
	val := decodeRaw(raw)

	s.mu.Lock()
	old, existed := s.flags[key]
	s.flags[key] = val
	s.raws[key] = string(raw)
	s.allHash = ComputeAllHash(s.raws)
	fns := s.listeners[key]
	s.mu.Unlock()

	if existed && old.Hash() == val.Hash() {
		return val
	}
	for _, fn := range fns {
		fn(val)
	}
	return val
}
