package storage

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
)

// 创建测试文件辅助函数
func createTestFile(content string) (io.Reader, string) {
	return bytes.NewBufferString(content), fmt.Sprintf("test-%d.txt", os.Getpid())
}

// 读取文件内容辅助函数
func readAll(r io.Reader) string {
	b, _ := io.ReadAll(r)
	return string(b)
}

// TestLocalStorage 测试本地存储实现
func TestLocalStorage(t *testing.T) {
	tempDir := t.TempDir()

	// 初始化本地存储
	cfg := LocalConfig{
		Path: tempDir,
	}
	localStorage, err := NewLocalStorage(cfg)
	if err != nil {
		t.Fatalf("Failed to create local storage instance: %v", err)
	}

	// 测试 Save 功能
	t.Run("Save", func(t *testing.T) {
		content := "这是测试文件内容"
		fileReader, fileName := createTestFile(content)

		info, err := localStorage.Save(fileReader, fileName)
		if err != nil {
			t.Fatalf("Failed to save file: %v", err)
		}

		if info.ID == "" {
			t.Error("Returned file ID should not be empty")
		}

		if info.Name != fileName {
			t.Errorf("File name should be %s, got %s", fileName, info.Name)
		}

		// 检查文件是否按分片目录落盘
		wantShard := shardOf(info.ID)
		if filepath.Dir(info.Path) != wantShard {
			t.Errorf("File should be stored under shard %s, got path %s", wantShard, info.Path)
		}

		filePath := filepath.Join(tempDir, info.Path)
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			t.Errorf("File was not saved to disk: %s", filePath)
		}
	})

	// 保存一个文件用于后续测试
	content := "这是一个用于测试的样本文件"
	reader, fileName := createTestFile(content)
	fileInfo, err := localStorage.Save(reader, fileName)
	if err != nil {
		t.Fatalf("Failed to save test file: %v", err)
	}

	// 测试 Get 功能
	t.Run("Get", func(t *testing.T) {
		reader, err := localStorage.Get(fileInfo.ID)
		if err != nil {
			t.Fatalf("Failed to get file: %v", err)
		}
		defer reader.Close()

		retrievedContent := readAll(reader)
		if retrievedContent != content {
			t.Errorf("File content mismatch, expected: %s, got: %s", content, retrievedContent)
		}
	})

	// 测试 List 功能
	t.Run("List", func(t *testing.T) {
		files, err := localStorage.List()
		if err != nil {
			t.Fatalf("Failed to list files: %v", err)
		}

		if len(files) < 1 {
			t.Error("There should be at least one file, but the list is empty")
		}

		found := false
		for _, file := range files {
			if file.ID == fileInfo.ID {
				found = true
				break
			}
		}

		if !found {
			t.Errorf("Saved file ID not found: %s", fileInfo.ID)
		}
	})

	// 测试 Exists 功能
	t.Run("Exists", func(t *testing.T) {
		exists, err := localStorage.Exists(fileInfo.ID)
		if err != nil {
			t.Fatalf("Failed to check file existence: %v", err)
		}

		if !exists {
			t.Error("File should exist, but does not")
		}

		exists, err = localStorage.Exists("non-existent-id")
		if err != nil {
			t.Fatalf("Failed to check non-existent file: %v", err)
		}

		if exists {
			t.Error("Non-existent file should return false, but got true")
		}
	})

	// 测试 Delete 功能
	t.Run("Delete", func(t *testing.T) {
		err := localStorage.Delete(fileInfo.ID)
		if err != nil {
			t.Fatalf("Failed to delete file: %v", err)
		}

		// 确认文件已被删除
		exists, _ := localStorage.Exists(fileInfo.ID)
		if exists {
			t.Error("File should have been deleted, but still exists")
		}

		// 删除不存在的文件应返回错误
		if err := localStorage.Delete(fileInfo.ID); err == nil {
			t.Error("Deleting a missing file should return an error")
		}
	})
}

// TestShardOf 测试ID分片前缀计算
func TestShardOf(t *testing.T) {
	cases := []struct {
		id   string
		want string
	}{
		{"ab12cd34", "ab"},
		{"00000000", "00"},
		{"f", "00"},
		{"", "00"},
	}

	for _, c := range cases {
		if got := shardOf(c.id); got != c.want {
			t.Errorf("shardOf(%q) = %q, want %q", c.id, got, c.want)
		}
	}
}

// TestMinioStorage 测试MinIO存储实现
// 需要先启动MinIO服务并设置MINIO_TEST_ENDPOINT环境变量
func TestMinioStorage(t *testing.T) {
	endpoint := os.Getenv("MINIO_TEST_ENDPOINT")
	if endpoint == "" {
		t.Skip("MINIO_TEST_ENDPOINT not set, skipping MinIO tests")
	}

	// MinIO测试配置
	cfg := MinioConfig{
		Endpoint:  endpoint,
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		UseSSL:    false,
		Bucket:    "retrieval-test",
	}

	// 初始化MinIO存储
	minioStorage, err := NewMinioStorage(cfg)
	if err != nil {
		t.Fatalf("Failed to create MinIO storage: %v", err)
	}

	// 保存一个文件用于后续测试
	content := "这是一个用于MinIO测试的样本文件"
	reader, fileName := createTestFile(content)
	fileInfo, err := minioStorage.Save(reader, fileName)
	if err != nil {
		t.Fatalf("Failed to save test file to MinIO: %v", err)
	}

	// 测试 Get 功能
	t.Run("Get", func(t *testing.T) {
		reader, err := minioStorage.Get(fileInfo.ID)
		if err != nil {
			t.Fatalf("Failed to get file from MinIO: %v", err)
		}
		defer reader.Close()

		retrievedContent := readAll(reader)
		if retrievedContent != content {
			t.Errorf("File content mismatch, expected: %s, got: %s", content, retrievedContent)
		}
	})

	// 测试 Exists 功能
	t.Run("Exists", func(t *testing.T) {
		exists, err := minioStorage.Exists(fileInfo.ID)
		if err != nil {
			t.Fatalf("Failed to check MinIO file existence: %v", err)
		}

		if !exists {
			t.Error("File should exist, but does not")
		}
	})

	// 测试 Delete 功能
	t.Run("Delete", func(t *testing.T) {
		err := minioStorage.Delete(fileInfo.ID)
		if err != nil {
			t.Fatalf("Failed to delete MinIO file: %v", err)
		}

		exists, _ := minioStorage.Exists(fileInfo.ID)
		if exists {
			t.Error("File should have been deleted, but still exists")
		}
	})
}

// TestStorageFactory 测试存储工厂函数
func TestStorageFactory(t *testing.T) {
	t.Run("NewLocalStorage", func(t *testing.T) {
		tempDir := t.TempDir()

		cfg := LocalConfig{
			Path: filepath.Join(tempDir, "uploads"),
		}

		store, err := NewLocalStorage(cfg)
		if err != nil {
			t.Fatalf("Failed to create local storage: %v", err)
		}

		if store == nil {
			t.Fatal("Created storage instance should not be nil")
		}

		// 验证存储路径已创建
		if _, err := os.Stat(cfg.Path); os.IsNotExist(err) {
			t.Errorf("Storage path was not created: %s", cfg.Path)
		}
	})
}
