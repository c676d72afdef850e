package logstore

import (
	"errors"
	"os"
	"testing"

	"github.com/anthanhphan/go-kv-store/internal/storage/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegment_RollbackRestoresRecordBoundary(t *testing.T) {
	dir := t.TempDir()
	seg, err := createSegment(dir, 7)
	require.NoError(t, err)
	defer func() { _ = seg.seal() }()

	loc, err := seg.append([]byte("first"))
	require.NoError(t, err)
	assert.Equal(t, Location{Gen: 7, Offset: 0, Length: 5}, loc)

	// Half of a second frame reaches the file before the failure.
	_, err = seg.file.Write([]byte("par"))
	require.NoError(t, err)

	cause := errors.New("disk full")
	err = seg.rollback(seg.size, cause)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, errSegmentOffsetLost)

	loc, err = seg.append([]byte("second"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), loc.Offset)

	data, err := os.ReadFile(segmentPath(dir, 7))
	require.NoError(t, err)
	assert.Equal(t, "firstsecond", string(data))
}

func TestSegment_FailedRollbackLosesOffset(t *testing.T) {
	seg, err := createSegment(t.TempDir(), 1)
	require.NoError(t, err)
	require.NoError(t, seg.file.Close())

	_, err = seg.append([]byte("frame"))
	assert.ErrorIs(t, err, port.ErrIO)
	assert.ErrorIs(t, err, errSegmentOffsetLost)
}
