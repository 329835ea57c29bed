package djtoggle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Publisher 处理 Provider 侧的 Flag 推送。
type Publisher struct {
	rdb      *redis.Client
	clientID string
}

// NewPublisher 创建发布者。
// client: Redis 客户端实例（外部传入，DI）。
// clientID: 本次操作针对的客户端/环境标识。
func NewPublisher(client *redis.Client, clientID string) *Publisher {
	return &Publisher{
		rdb:      client,
		clientID: clientID,
	}
}

// marshalFlag 将任意值序列化为 RawJSON。
// 支持 []byte / json.RawMessage 透传 (先校验合法性)。
func marshalFlag(value any) ([]byte, error) {
	var rawBytes []byte
	switch b := value.(type) {
	case []byte:
		rawBytes = b
	case json.RawMessage:
		rawBytes = b
	default:
		return json.Marshal(value)
	}

	var check any
	if err := json.Unmarshal(rawBytes, &check); err != nil {
		return nil, fmt.Errorf("invalid json bytes: %w", err)
	}
	return rawBytes, nil
}

// SetFlag 推送单个 Flag 的新值并发送变更通知。
// 通过 Lua 脚本 CAS 更新：如果期间有并发发布 (全量 Hash 不等于
// 读取时的基准)，则拒绝本次更新。
func (p *Publisher) SetFlag(ctx context.Context, key string, value any) error {
	raw, err := marshalFlag(value)
	if err != nil {
		return fmt.Errorf("marshal flag %s failed: %w", key, err)
	}

	// 1. 获取当前全量 Hash (用于 CAS)
	metaKey := KeyMeta(p.clientID)
	baseHash, err := p.rdb.HGet(ctx, metaKey, MetaFieldAllHash).Result()
	if errors.Is(err, redis.Nil) {
		baseHash = ""
		err = nil
	}
	if err != nil {
		return fmt.Errorf("get current snapshot hash failed: %w", err)
	}

	// 2. 计算合并后的全量 Hash
	flagsKey := KeyFlags(p.clientID)
	current, err := p.rdb.HGetAll(ctx, flagsKey).Result()
	if err != nil {
		return fmt.Errorf("load current flags failed: %w", err)
	}
	current[key] = string(raw)
	allHash := ComputeAllHash(current)

	// 3. CAS 更新并发送通知 (Lua 脚本)
	luaScript := `
		local flagsKey = KEYS[1]
		local metaKey = KEYS[2]
		local streamKey = KEYS[3]

		local field = ARGV[1]
		local raw = ARGV[2]
		local oldHash = ARGV[3]
		local newHash = ARGV[4]
		local streamData = ARGV[5]

		-- 检查当前全量 Hash
		local currentHash = redis.call('HGET', metaKey, 'all_hash')

		-- 处理 nil 情况 (转为空字符串)
		if currentHash == false then
			currentHash = ""
		end

		if currentHash ~= oldHash then
			return redis.error_reply('snapshot_mismatch: ' .. currentHash .. ' != ' .. oldHash)
		end

		-- 执行更新
		redis.call('HSET', flagsKey, field, raw)
		redis.call('HSET', metaKey, 'all_hash', newHash)
		redis.call('XADD', streamKey, 'MAXLEN', '~', '1000', '*', 'data', streamData)

		return "OK"
	`

	msg := UpdateMessage{
		Event:     EventUpdate,
		Key:       key,
		Value:     raw,
		AllHash:   allHash,
		Timestamp: time.Now().Unix(),
	}
	msgData, _ := json.Marshal(msg)

	keys := []string{
		flagsKey,
		metaKey,
		KeyUpdates(p.clientID),
	}

	argv := []any{
		key,             // ARGV[1] Field
		string(raw),     // ARGV[2] RawJSON
		baseHash,        // ARGV[3] OldHash
		allHash,         // ARGV[4] NewHash
		string(msgData), // ARGV[5] Stream Data
	}

	if _, err := p.rdb.Eval(ctx, luaScript, keys, argv...).Result(); err != nil {
		return fmt.Errorf("cas update failed: %w", err)
	}

	return nil
}

// SetAll 全量替换 Flag 快照并发送 Reload 通知。
// 用于初始灌入或运营侧批量调整。
func (p *Publisher) SetAll(ctx context.Context, flags map[string]any) error {
	rawMap := make(map[string]string, len(flags))
	for k, v := range flags {
		raw, err := marshalFlag(v)
		if err != nil {
			return fmt.Errorf("marshal flag %s failed: %w", k, err)
		}
		rawMap[k] = string(raw)
	}
	allHash := ComputeAllHash(rawMap)

	msg := UpdateMessage{
		Event:     EventReload,
		AllHash:   allHash,
		Timestamp: time.Now().Unix(),
	}
	msgData, _ := json.Marshal(msg)

	flagsKey := KeyFlags(p.clientID)

	pipe := p.rdb.TxPipeline()
	pipe.Del(ctx, flagsKey)
	for k, raw := range rawMap {
		pipe.HSet(ctx, flagsKey, k, raw)
	}
	pipe.HSet(ctx, KeyMeta(p.clientID), MetaFieldAllHash, allHash)
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: KeyUpdates(p.clientID),
		MaxLen: 1000,
		Approx: true,
		Values: map[string]any{"data": string(msgData)},
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save flags: %w", err)
	}

	return nil
}
