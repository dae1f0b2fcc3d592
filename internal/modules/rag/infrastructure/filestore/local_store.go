package filestore

import (
	"fmt"
	"os"
	"path/filepath"
)

// LocalStore 把上传的原始文件落到本地磁盘，按文档 ID 命名。
// 索引任务（inline 或 kafka worker）凭文档 ID 取回字节流，
// 因此消息里只需要传 ID。
type LocalStore struct {
	dir string
}

func NewLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		dir = "data/uploads"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

func (s *LocalStore) path(documentID string) string {
	return filepath.Join(s.dir, filepath.Base(documentID))
}

func (s *LocalStore) Save(documentID string, data []byte) error {
	return os.WriteFile(s.path(documentID), data, 0o644)
}

func (s *LocalStore) Load(documentID string) ([]byte, error) {
	return os.ReadFile(s.path(documentID))
}

// Delete 删除不存在的文件不报错
func (s *LocalStore) Delete(documentID string) error {
	err := os.Remove(s.path(documentID))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
