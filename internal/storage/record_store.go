// internal/storage/record_store.go
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// 记录键。后缀 _v1 标记存储模式的版本代
const (
	RecordSettings   = "settings_v1"
	RecordCharacters = "characters_v1"
	RecordActions    = "actions_v1"
	RecordSessions   = "sessions_v1"
)

// RecordStore 提供按键整条读写的JSON记录存储
// 每条记录对应一个文件，写入整体替换（last-writer-wins）
type RecordStore struct {
	BaseDir string

	// 记录级别锁 key -> *sync.RWMutex
	recordLocks sync.Map
}

// NewRecordStore 创建记录存储
func NewRecordStore(baseDir string) (*RecordStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("创建存储目录失败: %w", err)
	}
	return &RecordStore{BaseDir: baseDir}, nil
}

// 获取记录锁
func (s *RecordStore) getRecordLock(key string) *sync.RWMutex {
	value, _ := s.recordLocks.LoadOrStore(key, &sync.RWMutex{})
	return value.(*sync.RWMutex)
}

func (s *RecordStore) recordPath(key string) string {
	return filepath.Join(s.BaseDir, key+".json")
}

// Load 读取记录并反序列化到v
// 记录缺失或内容损坏时保持v原样并返回nil，调用方预填默认值即可
func (s *RecordStore) Load(key string, v interface{}) error {
	lock := s.getRecordLock(key)
	lock.RLock()
	defer lock.RUnlock()

	content, err := os.ReadFile(s.recordPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("读取记录失败: %w", err)
	}

	if err := json.Unmarshal(content, v); err != nil {
		// 损坏的记录按缺失处理，回退到默认值
		return nil
	}

	return nil
}

// Save 序列化并整体覆盖记录
func (s *RecordStore) Save(key string, v interface{}) error {
	content, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化记录失败: %w", err)
	}

	lock := s.getRecordLock(key)
	lock.Lock()
	defer lock.Unlock()

	fullPath := s.recordPath(key)

	// 原子性文件写入
	tempPath := fullPath + ".tmp"
	if err := os.WriteFile(tempPath, content, 0644); err != nil {
		return fmt.Errorf("保存临时文件失败: %w", err)
	}

	if err := os.Rename(tempPath, fullPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("保存记录失败: %w", err)
	}

	return nil
}

// Exists 检查记录是否存在
func (s *RecordStore) Exists(key string) bool {
	_, err := os.Stat(s.recordPath(key))
	return err == nil
}
