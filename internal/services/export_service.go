// internal/services/export_service.go
package services

import (
	"fmt"
	"time"

	"github.com/charaverse/charachat/internal/models"
)

// ExportService 组装一次性的会话导出文档
type ExportService struct {
	Characters *CharacterService
	Sessions   *SessionService
}

// NewExportService 创建导出服务
func NewExportService(characters *CharacterService, sessions *SessionService) *ExportService {
	return &ExportService{
		Characters: characters,
		Sessions:   sessions,
	}
}

// BuildExport 构建导出快照与下载文件名
// 基于会话快照，序列化时不与在途回合的写入竞争
func (s *ExportService) BuildExport(characterID string) (*models.ChatExport, string, error) {
	character, err := s.Characters.Get(characterID)
	if err != nil {
		return nil, "", err
	}
	sess, err := s.Sessions.SessionView(characterID)
	if err != nil {
		return nil, "", err
	}

	export := &models.ChatExport{
		Character:  character,
		Memory:     sess.Memory,
		Affection:  sess.Affection,
		Messages:   sess.Messages,
		ExportedAt: time.Now().UTC(),
	}
	filename := fmt.Sprintf("%s-chat.json", character.Name)

	return export, filename, nil
}
