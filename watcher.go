package djtoggle

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Watch 开始监听 Update Stream。
// 它是阻塞的，应在 goroutine 中运行。
func (s *Store) Watch(ctx context.Context) error {
	// 使用 $ 只读取新消息
	lastID := "$"
	streamKey := KeyUpdates(s.clientID)

	// 内部函数：检查快照一致性
	checkConsistency := func() {
		// 获取远程最新 Hash
		remoteHash, err := s.rdb.HGet(ctx, KeyMeta(s.clientID), MetaFieldAllHash).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			log.Printf("check consistency failed: %v", err)
			return
		}

		// 比较本地和远程
		if remoteHash != "" && remoteHash != s.AllHash() {
			log.Printf("flag snapshot hash mismatch detected, reloading: local=%s, remote=%s", s.AllHash(), remoteHash)
			_ = s.reload(ctx)
		}
	}

	// 1. 启动时立即检查一次（防止 Initialize 和 Watch 之间的 Gap 导致漏更）
	checkConsistency()

	// 定期反熵检查 (1分钟)
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			checkConsistency()
		default:
		}

		// 阻塞读取
		streams, err := s.rdb.XRead(ctx, &redis.XReadArgs{
			Streams: []string{streamKey, lastID},
			Block:   5 * time.Second,
			Count:   10,
		}).Result()

		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			log.Printf("watch failed: %v", err)
			// 退避等待，防止死循环刷日志
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
				continue
			}
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				lastID = msg.ID

				dataStr, ok := msg.Values["data"].(string)
				if !ok {
					continue
				}

				var updateMsg UpdateMessage
				if err := json.Unmarshal([]byte(dataStr), &updateMsg); err != nil {
					continue
				}

				// 处理更新
				switch updateMsg.Event {
				case EventUpdate:
					// 单 Key 合并 (last-write-wins)
					s.merge(updateMsg.Key, updateMsg.Value)
				case EventReload:
					_ = s.reload(ctx)
				}
			}
		}
	}
}
