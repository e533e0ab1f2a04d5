package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mautops/change-gin/internal/change"
)

// BackupService 回滚快照服务
// 生成回滚计划时,把变更记录快照写入计划中的备份位置
type BackupService struct {
	backupDir string
}

// BackupInfo 快照文件信息
type BackupInfo struct {
	Filename  string    `json:"filename"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
	ChangeID  string    `json:"change_id"`
}

// NewBackupService 创建快照服务
func NewBackupService(backupDir string) *BackupService {
	return &BackupService{backupDir: backupDir}
}

// BackupDir 获取备份目录
func (s *BackupService) BackupDir() string {
	return s.backupDir
}

// WriteSnapshots 把记录快照写入回滚计划的全部备份位置,返回写入的路径
func (s *BackupService) WriteSnapshots(ctx context.Context, rec *change.Record) ([]string, error) {
	if rec == nil || rec.RollbackPlan == nil {
		return nil, change.ErrNoRollbackPlan
	}

	// 1. 确保备份目录存在
	if err := os.MkdirAll(s.backupDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	// 2. 序列化快照
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	// 3. 写入每个备份位置
	written := make([]string, 0, len(rec.RollbackPlan.BackupLocations))
	for _, location := range rec.RollbackPlan.BackupLocations {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		if err := s.checkPath(location); err != nil {
			return written, err
		}
		if err := os.WriteFile(location, data, 0644); err != nil {
			return written, fmt.Errorf("failed to write snapshot: %w", err)
		}
		written = append(written, location)
	}

	return written, nil
}

// ListBackups 列出变更的快照,按创建时间倒序
func (s *BackupService) ListBackups(ctx context.Context, changeID string) ([]BackupInfo, error) {
	backups := make([]BackupInfo, 0)

	// 读取备份目录
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return backups, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	prefix := backupPrefix(changeID)
	for _, entry := range entries {
		if entry.IsDir() || !isBackupFile(entry.Name()) || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		backups = append(backups, BackupInfo{
			Filename:  entry.Name(),
			Path:      filepath.Join(s.backupDir, entry.Name()),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
			ChangeID:  changeID,
		})
	}

	sort.SliceStable(backups, func(i, j int) bool {
		return backups[i].Filename > backups[j].Filename
	})
	return backups, nil
}

// LoadSnapshot 读取快照
func (s *BackupService) LoadSnapshot(ctx context.Context, filename string) (*change.Record, error) {
	path := filepath.Join(s.backupDir, filename)
	if err := s.checkPath(path); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: backup %s", change.ErrNotFound, filename)
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var rec change.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	rec.Normalize()
	return &rec, nil
}

// checkPath 安全检查:确保文件在备份目录内
func (s *BackupService) checkPath(path string) error {
	absBackupDir, err := filepath.Abs(s.backupDir)
	if err != nil {
		return fmt.Errorf("failed to get absolute backup directory: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to get absolute backup path: %w", err)
	}

	rel, err := filepath.Rel(absBackupDir, absPath)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("%w: invalid backup path %s", change.ErrInvalidRequest, path)
	}
	return nil
}

func backupPrefix(changeID string) string {
	return "backup_" + changeID + "_"
}

// isBackupFile 检查是否是快照文件
func isBackupFile(filename string) bool {
	return strings.HasPrefix(filename, "backup_") && filepath.Ext(filename) == ".json"
}
