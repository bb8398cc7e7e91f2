// Package storage 提供了与 MinIO 对象存储交互的客户端功能。
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"hv-search-go/internal/config"
	"hv-search-go/pkg/log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// NewMinIO 创建一个 MinIO 客户端。配置了 bucket 的知识域会先从对象存储
// 拉取文档再进入提取流程，未配置时索引流水线直接读取本地目录。
func NewMinIO(cfg config.MinIOConfig) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 MinIO 客户端失败: %w", err)
	}
	log.Info("MinIO 客户端初始化成功")
	return client, nil
}

// DownloadPrefix 将 bucket 中指定前缀下的对象全部下载到 destDir，
// 返回下载成功的本地文件路径。单个对象失败只记录日志，不中断整体下载。
func DownloadPrefix(ctx context.Context, client *minio.Client, bucket, prefix, destDir string) ([]string, error) {
	if err := os.MkdirAll(destDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("创建下载目录失败: %w", err)
	}

	var paths []string
	objects := client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})
	for obj := range objects {
		if obj.Err != nil {
			return nil, fmt.Errorf("列举对象失败: %w", obj.Err)
		}
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}
		localPath := filepath.Join(destDir, filepath.Base(obj.Key))
		if err := client.FGetObject(ctx, bucket, obj.Key, localPath, minio.GetObjectOptions{}); err != nil {
			log.Warnf("[Storage] 下载对象失败: %s, err=%v", obj.Key, err)
			continue
		}
		paths = append(paths, localPath)
	}
	log.Infof("[Storage] 从 bucket '%s' 前缀 '%s' 下载了 %d 个对象", bucket, prefix, len(paths))
	return paths, nil
}
