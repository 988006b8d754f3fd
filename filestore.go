// 定义共享的基类和方法
package taprootscan

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

// FileStore 封装了文件存储的操作
type FileStore struct {
	Fs       afero.Fs
	BasePath string
}

// NewFileStore 创建一个新的FileStore实例
func NewFileStore(basePath string) (*FileStore, error) {
	return NewFileStoreWithFs(afero.NewOsFs(), basePath)
}

// NewFileStoreWithFs 在给定的文件系统上创建FileStore实例
func NewFileStoreWithFs(fs afero.Fs, basePath string) (*FileStore, error) {
	if err := fs.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &FileStore{Fs: fs, BasePath: basePath}, nil
}

// CreateFile 在指定子目录创建一个新文件，返回打开的文件
func (fs *FileStore) CreateFile(subDir, fileName string) (afero.File, error) {
	dir := filepath.Join(fs.BasePath, subDir)
	if err := fs.Fs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := fs.Fs.Create(filepath.Join(dir, fileName))
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	return file, nil
}

// ReadFile 读取指定子目录中的文件
func (fs *FileStore) ReadFile(subDir, fileName string) ([]byte, error) {
	return afero.ReadFile(fs.Fs, filepath.Join(fs.BasePath, subDir, fileName))
}
