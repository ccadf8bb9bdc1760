package log

import "go.uber.org/atomic"

var (
	_ WithLogger   = (*Binder)(nil)
	_ LoggerBinder = (*Binder)(nil)
)

// WithLogger 暴露组件级 Logger 的读取能力。
type WithLogger interface {
	Logger() *MLogger
}

// LoggerBinder 暴露组件级 Logger 的绑定能力。
type LoggerBinder interface {
	SetLogger(logger *MLogger)
}

// Binder 供协调器、服务器、连接驱动等组件嵌入，持有该组件带固定字段
// （component、conn 等）的 Logger。绑定和读取可以并发进行。
type Binder struct {
	logger atomic.Pointer[MLogger]
}

// SetLogger 绑定组件的 Logger，通常在构造时调用一次。
func (w *Binder) SetLogger(logger *MLogger) {
	w.logger.Store(logger)
}

// Logger 返回已绑定的 Logger；尚未绑定时退回全局 Logger，
// 调用方拿到的永远可用。
func (w *Binder) Logger() *MLogger {
	if l := w.logger.Load(); l != nil {
		return l
	}
	return With()
}
