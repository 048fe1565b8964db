// internal/models/export.go
package models

import "time"

// ChatExport 一次性导出的会话快照
type ChatExport struct {
	Character  *Character `json:"character"`
	Memory     string     `json:"memory"`
	Affection  int        `json:"affection"`
	Messages   []*Message `json:"messages"`
	ExportedAt time.Time  `json:"exported_at"`
}
