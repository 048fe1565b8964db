// internal/models/character.go
package models

// Character 用户自定义的扮演角色
type Character struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Persona string `json:"persona"`
	Opener  string `json:"opener,omitempty"` // 可选的开场白
	Rules   string `json:"rules,omitempty"`
}

// Action 快捷按键：可插入输入框的指令片段
type Action struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Prompt string `json:"prompt"`
}
