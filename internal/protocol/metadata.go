package protocol

import (
	"fmt"

	"github.com/hashicorp/go-version"
)

// Frame schema versioning constants
const (
	CurrentVersion       = "1.0.0"
	MinCompatibleVersion = "1.0.0"
)

// MetadataManager handles frame schema version compatibility between
// the host and renderer clients
type MetadataManager struct {
	currentVersion *version.Version
	minVersion     *version.Version
}

// NewMetadataManager creates a new metadata manager
func NewMetadataManager() (*MetadataManager, error) {
	current, err := version.NewVersion(CurrentVersion)
	if err != nil {
		return nil, fmt.Errorf("invalid current version: %w", err)
	}

	min, err := version.NewVersion(MinCompatibleVersion)
	if err != nil {
		return nil, fmt.Errorf("invalid min version: %w", err)
	}

	return &MetadataManager{
		currentVersion: current,
		minVersion:     min,
	}, nil
}

// IsCompatible checks if a client schema version can consume this
// host's frames
func (mm *MetadataManager) IsCompatible(clientVersion string) (bool, error) {
	v, err := version.NewVersion(clientVersion)
	if err != nil {
		return false, fmt.Errorf("invalid version string: %w", err)
	}

	return !v.LessThan(mm.minVersion) && !mm.currentVersion.LessThan(v), nil
}

// Current returns the schema version this host emits
func (mm *MetadataManager) Current() string {
	return mm.currentVersion.Original()
}
