package session

import "time"

// CursorThrottleInterval 是游标广播的最小间隔。50ms 足以让远端游标
// 看起来平滑，同时把消息量压到可控范围。
const CursorThrottleInterval = 50 * time.Millisecond

// Throttle 是一个简单的时间窗节流器：窗口内只放行第一次调用。
// 单事件循环内使用，不需要加锁。
type Throttle struct {
	interval time.Duration
	last     time.Time
	now      func() time.Time // 测试时注入假时钟
}

// NewThrottle 创建节流器。interval 不为正时退回默认游标间隔。
func NewThrottle(interval time.Duration) *Throttle {
	if interval <= 0 {
		interval = CursorThrottleInterval
	}
	return &Throttle{interval: interval, now: time.Now}
}

// Allow 判断本次调用是否放行，放行时刷新窗口。
func (t *Throttle) Allow() bool {
	now := t.now()
	if !t.last.IsZero() && now.Sub(t.last) < t.interval {
		return false
	}
	t.last = now
	return true
}
