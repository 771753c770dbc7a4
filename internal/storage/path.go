package storage

import (
	"path/filepath"
)

// PathConfig holds configuration for storage path generation.
type PathConfig struct {
	// BasePath is the root directory for blob storage.
	BasePath string

	// ShardLevels is the number of directory levels for sharding.
	// Default: 2 (e.g., /ab/cd/abcdef...)
	ShardLevels int

	// ShardWidth is the number of characters per shard level.
	// Default: 2 (e.g., ab, cd)
	ShardWidth int
}

// DefaultPathConfig returns the default path configuration.
func DefaultPathConfig(basePath string) PathConfig {
	return PathConfig{
		BasePath:    basePath,
		ShardLevels: 2,
		ShardWidth:  2,
	}
}

// ComputePath generates the storage path for a key.
// Uses directory sharding to distribute files across directories.
//
// Example with default config (2 levels, 2 chars each):
//
//	key: "3f2a91c0-..."
//	basePath: "/data"
//	result: "/data/3f/2a/3f2a91c0-..."
func ComputePath(config PathConfig, key string) string {
	return filepath.Join(GetShardPath(config, key), key)
}

// GetShardDirs returns the shard directory components for a key.
// Keys shorter than the sharding prefix are not sharded.
func GetShardDirs(config PathConfig, key string) []string {
	if len(key) < config.ShardLevels*config.ShardWidth {
		return nil
	}

	dirs := make([]string, config.ShardLevels)
	offset := 0
	for i := 0; i < config.ShardLevels; i++ {
		dirs[i] = key[offset : offset+config.ShardWidth]
		offset += config.ShardWidth
	}

	return dirs
}

// GetShardPath returns the directory path for a key (without the filename).
func GetShardPath(config PathConfig, key string) string {
	dirs := GetShardDirs(config, key)
	if dirs == nil {
		return config.BasePath
	}

	components := make([]string, 0, len(dirs)+1)
	components = append(components, config.BasePath)
	components = append(components, dirs...)

	return filepath.Join(components...)
}
