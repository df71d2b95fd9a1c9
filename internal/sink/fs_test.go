package sink_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/avask/harvester/internal/sink"
)

func TestNew(t *testing.T) {
	t.Run("ExistingDir", func(t *testing.T) {
		s, err := sink.New(t.TempDir(), zap.NewNop())
		require.NoError(t, err)
		assert.NotNil(t, s)
	})

	t.Run("CreatesMissingDir", func(t *testing.T) {
		root := filepath.Join(t.TempDir(), "out")
		s, err := sink.New(root, zap.NewNop())
		require.NoError(t, err)
		info, err := os.Stat(root)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
		assert.Equal(t, root, s.Root())
	})

	t.Run("EmptyRoot", func(t *testing.T) {
		_, err := sink.New("  ", zap.NewNop())
		assert.Error(t, err)
	})

	t.Run("RootIsFile", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "not-a-dir")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
		_, err := sink.New(file, zap.NewNop())
		assert.Error(t, err)
	})
}

func TestWriteOverwrites(t *testing.T) {
	t.Parallel()

	s, err := sink.New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	path, err := s.Write("pic.jpg", []byte("first"))
	require.NoError(t, err)
	path2, err := s.Write("pic.jpg", []byte("second"))
	require.NoError(t, err)
	assert.Equal(t, path, path2)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data), "Write must truncate the previous artifact")
}

func TestAppendExtends(t *testing.T) {
	t.Parallel()

	s, err := sink.New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	_, err = s.Append("AAA.csv", []byte("row1\n"))
	require.NoError(t, err)
	path, err := s.Append("AAA.csv", []byte("row2\n"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "row1\nrow2\n", string(data), "Append must keep prior contents")
}

func TestResolveRejectsTraversal(t *testing.T) {
	t.Parallel()

	s, err := sink.New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	_, err = s.Write("../escape.txt", []byte("x"))
	assert.Error(t, err)
	_, err = s.Append("", []byte("x"))
	assert.Error(t, err)
}
