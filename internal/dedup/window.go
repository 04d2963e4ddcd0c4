package dedup

import (
	"sync"
	"time"
)

// Window 重复投递抑制窗口
// 只记住最近一条原始报文的 (签名, 观测时间)，同一签名在窗口内再次到达即抑制。
// 状态归消费者实例所有，不做包级全局变量，多个独立实例互不干扰。
// 仅为尽力而为的前置层，最终正确性由存储层幂等约束兜底。
type Window struct {
	ttl time.Duration

	mu         sync.Mutex
	signature  string
	observedAt time.Time
}

// NewWindow 创建抑制窗口，ttl 为抑制时长
func NewWindow(ttl time.Duration) *Window {
	return &Window{ttl: ttl}
}

// ShouldSuppress 判断该签名是否应被抑制
// 未被抑制时，在返回前就更新记忆的 (签名, 时间)，
// 关闭背靠背两次重复投递之间的竞争窗口。
func (w *Window) ShouldSuppress(signature string, now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.signature == signature && now.Sub(w.observedAt) < w.ttl {
		return true
	}

	w.signature = signature
	w.observedAt = now
	return false
}
