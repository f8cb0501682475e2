package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = fs.ReadSegment(SegmentConfig)
	assert.ErrorIs(t, err, ErrSegmentNotFound)

	require.NoError(t, fs.WriteSegment(SegmentConfig, []byte{1, 2, 3}))
	data, err := fs.ReadSegment(SegmentConfig)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)

	require.NoError(t, fs.DeleteSegment(SegmentConfig))
	require.NoError(t, fs.DeleteSegment(SegmentConfig), "delete of absent segment is not an error")
	_, err = fs.ReadSegment(SegmentConfig)
	assert.ErrorIs(t, err, ErrSegmentNotFound)
}

func TestFileStoreTransactionDefersCommit(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, fs.WriteSegment(SegmentConfig, []byte("old")))

	require.NoError(t, fs.EnterTransaction())
	require.NoError(t, fs.WriteSegment(SegmentConfig, []byte("new")))
	require.NoError(t, fs.WriteSegment(SegmentValues, []byte("vals")))

	// Still the old image until the transaction completes.
	data, err := fs.ReadSegment(SegmentConfig)
	require.NoError(t, err)
	assert.Equal(t, []byte("old"), data)

	require.NoError(t, fs.ExitTransaction())

	data, err = fs.ReadSegment(SegmentConfig)
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), data)
	data, err = fs.ReadSegment(SegmentValues)
	require.NoError(t, err)
	assert.Equal(t, []byte("vals"), data)
}

func TestFileStoreNestedTransactionRejected(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, fs.EnterTransaction())
	assert.Error(t, fs.EnterTransaction())
	require.NoError(t, fs.ExitTransaction())
	assert.Error(t, fs.ExitTransaction())
}

func TestMemStoreFailureInjection(t *testing.T) {
	ms := NewMemStore()
	require.NoError(t, ms.WriteSegment("a", []byte{1}))
	assert.Equal(t, 1, ms.Writes)

	ms.FailWrites = true
	assert.Error(t, ms.WriteSegment("a", []byte{2}))

	data, err := ms.ReadSegment("a")
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, data, "failed write must not clobber the segment")
}
