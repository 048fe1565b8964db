// internal/storage/record_store_test.go
package storage

import (
	"os"
	"path/filepath"
	"testing"
)

type testRecord struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newTestStore(t *testing.T) *RecordStore {
	t.Helper()
	store, err := NewRecordStore(t.TempDir())
	if err != nil {
		t.Fatalf("创建记录存储失败: %v", err)
	}
	return store
}

// TestLoadMissingKeepsDefault 记录缺失时保持调用方默认值
func TestLoadMissingKeepsDefault(t *testing.T) {
	store := newTestStore(t)

	record := testRecord{Name: "default", Count: 7}
	if err := store.Load(RecordSettings, &record); err != nil {
		t.Fatalf("读取缺失记录不应报错: %v", err)
	}
	if record.Name != "default" || record.Count != 7 {
		t.Fatalf("默认值被改写: %+v", record)
	}
}

// TestLoadMalformedKeepsDefault 记录损坏时按缺失处理
func TestLoadMalformedKeepsDefault(t *testing.T) {
	store := newTestStore(t)

	path := filepath.Join(store.BaseDir, RecordActions+".json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("写入损坏文件失败: %v", err)
	}

	record := testRecord{Name: "fallback"}
	if err := store.Load(RecordActions, &record); err != nil {
		t.Fatalf("读取损坏记录不应报错: %v", err)
	}
	if record.Name != "fallback" {
		t.Fatalf("回退值被改写: %+v", record)
	}
}

// TestSaveLoadRoundTrip 整条记录写入后可原样读回
func TestSaveLoadRoundTrip(t *testing.T) {
	store := newTestStore(t)

	saved := testRecord{Name: "aria", Count: 3}
	if err := store.Save(RecordSessions, &saved); err != nil {
		t.Fatalf("保存记录失败: %v", err)
	}

	var loaded testRecord
	if err := store.Load(RecordSessions, &loaded); err != nil {
		t.Fatalf("读取记录失败: %v", err)
	}
	if loaded != saved {
		t.Fatalf("读回数据不一致: got %+v want %+v", loaded, saved)
	}

	// 整体覆盖
	saved.Count = 9
	if err := store.Save(RecordSessions, &saved); err != nil {
		t.Fatalf("覆盖记录失败: %v", err)
	}
	if err := store.Load(RecordSessions, &loaded); err != nil {
		t.Fatalf("再次读取失败: %v", err)
	}
	if loaded.Count != 9 {
		t.Fatalf("覆盖后计数应为9, got %d", loaded.Count)
	}
}

// TestExists 记录存在性检查
func TestExists(t *testing.T) {
	store := newTestStore(t)

	if store.Exists(RecordCharacters) {
		t.Fatal("未写入的记录不应存在")
	}
	if err := store.Save(RecordCharacters, []string{}); err != nil {
		t.Fatalf("保存记录失败: %v", err)
	}
	if !store.Exists(RecordCharacters) {
		t.Fatal("写入后的记录应存在")
	}
}
