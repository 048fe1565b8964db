// internal/models/session.go
package models

import "time"

// 消息角色
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// 好感度取值范围
const (
	AffectionMin     = 0
	AffectionMax     = 100
	AffectionDefault = 50
)

// MessageMeta 消息的展示元数据
type MessageMeta struct {
	Time   string `json:"time"`
	Opener bool   `json:"opener,omitempty"`
}

// Message 单条聊天消息。除流式写入中的占位消息外，内容一经渲染即不再变更
type Message struct {
	Role    string      `json:"role"`
	Content string      `json:"content"`
	Meta    MessageMeta `json:"meta"`
}

// Session 按角色维护的会话状态，以角色ID为键
type Session struct {
	Messages  []*Message `json:"messages"`
	Memory    string     `json:"memory"`
	Affection int        `json:"affection"`
}

// NewSession 创建初始会话
func NewSession() *Session {
	return &Session{
		Messages:  []*Message{},
		Memory:    "",
		Affection: AffectionDefault,
	}
}

// ClampAffection 将好感度限制在[0,100]
func ClampAffection(value int) int {
	if value < AffectionMin {
		return AffectionMin
	}
	if value > AffectionMax {
		return AffectionMax
	}
	return value
}

// DisplayTime 消息时间戳的展示格式
func DisplayTime(t time.Time) string {
	return t.Format("2006/01/02 15:04:05")
}
