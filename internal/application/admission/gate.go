// Package admission 提供按依赖类划分的并发准入控制
package admission

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"rag-answer-api/internal/config"
	"rag-answer-api/pkg/metrics"
)

// Class 依赖类。每个下游依赖一个独立的闸门，互不占用对方的许可。
type Class string

const (
	ClassChat       Class = "chat"
	ClassGeneration Class = "generation"
	ClassVector     Class = "vector"
	ClassGraph      Class = "graph"
	ClassTranslate  Class = "translate"
	ClassInsight    Class = "insight"
)

// OverloadError 许可获取超时。与后端自身的慢/故障区分开，始终可重试。
type OverloadError struct {
	Class  Class
	Waited time.Duration
}

func (e *OverloadError) Error() string {
	return fmt.Sprintf("admission overloaded: class=%s waited=%s", e.Class, e.Waited)
}

// IsOverload 判断错误链中是否包含 OverloadError
func IsOverload(err error) bool {
	var oe *OverloadError
	return errors.As(err, &oe)
}

// Gate 准入闸门集合，启动时按静态配置构建一次
type Gate struct {
	sems    map[Class]*semaphore.Weighted
	caps    map[Class]int64
	acquire time.Duration
}

// NewGate 创建闸门。容量 <= 0 的类按 1 处理，避免配置缺失时完全封死。
func NewGate(cfg *config.AdmissionConfig) *Gate {
	caps := map[Class]int64{
		ClassChat:       cfg.Chat,
		ClassGeneration: cfg.Generation,
		ClassVector:     cfg.Vector,
		ClassGraph:      cfg.Graph,
		ClassTranslate:  cfg.Translate,
		ClassInsight:    cfg.Insight,
	}
	sems := make(map[Class]*semaphore.Weighted, len(caps))
	for class, n := range caps {
		if n <= 0 {
			n = 1
			caps[class] = n
		}
		sems[class] = semaphore.NewWeighted(n)
	}
	acquire := cfg.AcquireTimeout
	if acquire <= 0 {
		acquire = 2 * time.Second
	}
	return &Gate{sems: sems, caps: caps, acquire: acquire}
}

// Capacity 返回某依赖类的许可总数
func (g *Gate) Capacity(class Class) int64 {
	return g.caps[class]
}

// Acquire 获取一个许可，最多等待配置的获取超时。
// 返回的 release 在任何退出路径上调用且只生效一次。
func (g *Gate) Acquire(ctx context.Context, class Class) (func(), error) {
	sem, ok := g.sems[class]
	if !ok {
		return nil, fmt.Errorf("unknown admission class: %s", class)
	}

	start := time.Now()
	waitCtx, cancel := context.WithTimeout(ctx, g.acquire)
	defer cancel()

	if err := sem.Acquire(waitCtx, 1); err != nil {
		waited := time.Since(start)
		metrics.AdmissionRejectedTotal.WithLabelValues(string(class)).Inc()
		// 调用方自身被取消时原样上抛，只有等待超时才算过载
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &OverloadError{Class: class, Waited: waited}
	}

	metrics.AdmissionWaitDuration.WithLabelValues(string(class)).Observe(time.Since(start).Seconds())

	var once sync.Once
	release := func() {
		once.Do(func() {
			sem.Release(1)
		})
	}
	return release, nil
}
