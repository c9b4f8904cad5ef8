package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataCompatibility(t *testing.T) {
	mm, err := NewMetadataManager()
	require.NoError(t, err)
	require.Equal(t, CurrentVersion, mm.Current())

	testCases := []struct {
		name       string
		version    string
		compatible bool
		expectErr  bool
	}{
		{name: "current version", version: CurrentVersion, compatible: true},
		{name: "minimum version", version: MinCompatibleVersion, compatible: true},
		{name: "older than minimum", version: "0.9.0", compatible: false},
		{name: "newer than host", version: "2.0.0", compatible: false},
		{name: "garbage version", version: "not-a-version", expectErr: true},
		{name: "empty version", version: "", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := mm.IsCompatible(tc.version)
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.compatible, ok)
		})
	}
}
