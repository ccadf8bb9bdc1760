package log

import (
	"go.uber.org/zap"
)

const (
	FieldNameModule    = "module"
	FieldNameComponent = "component"
	FieldNameSession   = "session"
	FieldNameConn      = "conn"
)

// FieldModule 返回一个包含模块名的 zap 字段。
func FieldModule(module string) zap.Field {
	return zap.String(FieldNameModule, module)
}

// FieldComponent 返回一个包含组件名的 zap 字段。
func FieldComponent(component string) zap.Field {
	return zap.String(FieldNameComponent, component)
}

// FieldSession 返回一个包含会话标识的 zap 字段。
func FieldSession(sessionID string) zap.Field {
	return zap.String(FieldNameSession, sessionID)
}

// FieldConn 返回一个包含连接标识的 zap 字段。
func FieldConn(connID string) zap.Field {
	return zap.String(FieldNameConn, connID)
}
