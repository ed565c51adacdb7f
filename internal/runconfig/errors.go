package runconfig

import "fmt"

// ConfigError 配置错误：非法正则、无法解析的父组、冲突的编号模式等，在保存时拒绝
type ConfigError struct {
	GroupID uint64 // 0 表示全局设置
	Field   string
	Reason  string
}

func (e *ConfigError) Error() string {
	if e.GroupID != 0 {
		return fmt.Sprintf("赛事组%d配置错误[%s]: %s", e.GroupID, e.Field, e.Reason)
	}
	return fmt.Sprintf("配置错误[%s]: %s", e.Field, e.Reason)
}

func groupErr(id uint64, field, format string, args ...interface{}) *ConfigError {
	return &ConfigError{GroupID: id, Field: field, Reason: fmt.Sprintf(format, args...)}
}

func settingErr(field, format string, args ...interface{}) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
