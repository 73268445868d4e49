package journal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *Journal {
	t.Helper()
	var now int64
	j, err := Open(t.TempDir(), WithClock(func() int64 { now++; return now }))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestAppendAndGet(t *testing.T) {
	j := openTest(t)

	require.NoError(t, j.Append(1, KindTrade, []byte(`{"x":1}`)))

	rec, err := j.Get(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), rec.Seq)
	assert.Equal(t, KindTrade, rec.Kind)
	assert.Equal(t, StateNew, rec.State)
	assert.Equal(t, []byte(`{"x":1}`), rec.Payload)
}

func TestStateTransitions(t *testing.T) {
	j := openTest(t)
	require.NoError(t, j.Append(1, KindOrder, []byte("a")))

	require.NoError(t, j.MarkSent(1))
	rec, _ := j.Get(1)
	assert.Equal(t, StateSent, rec.State)
	assert.NotZero(t, rec.LastAttempt)

	require.NoError(t, j.MarkFailed(1))
	rec, _ = j.Get(1)
	assert.Equal(t, StateFailed, rec.State)
	assert.Equal(t, uint32(1), rec.Retries)

	require.NoError(t, j.MarkAcked(1))
	rec, _ = j.Get(1)
	assert.Equal(t, StateAcked, rec.State)
}

func TestScanPendingSkipsAcked(t *testing.T) {
	j := openTest(t)
	for seq := uint64(1); seq <= 5; seq++ {
		require.NoError(t, j.Append(seq, KindTrade, []byte{byte(seq)}))
	}
	require.NoError(t, j.MarkAcked(2))
	require.NoError(t, j.MarkSent(3))
	require.NoError(t, j.MarkFailed(4))

	var seqs []uint64
	require.NoError(t, j.ScanPending(func(rec Record) error {
		seqs = append(seqs, rec.Seq)
		return nil
	}))
	// sequence order, acked excluded, sent and failed retried
	assert.Equal(t, []uint64{1, 3, 4, 5}, seqs)
}

func TestScanByState(t *testing.T) {
	j := openTest(t)
	require.NoError(t, j.Append(1, KindTrade, nil))
	require.NoError(t, j.Append(2, KindTrade, nil))
	require.NoError(t, j.MarkSent(2))

	var seqs []uint64
	require.NoError(t, j.ScanByState(StateSent, func(rec Record) error {
		seqs = append(seqs, rec.Seq)
		return nil
	}))
	assert.Equal(t, []uint64{2}, seqs)
}

func TestDeleteRemoves(t *testing.T) {
	j := openTest(t)
	require.NoError(t, j.Append(1, KindBook, []byte("x")))
	require.NoError(t, j.Delete(1))

	_, err := j.Get(1)
	assert.Error(t, err)
}

func TestMaxSeq(t *testing.T) {
	j := openTest(t)

	max, err := j.MaxSeq()
	require.NoError(t, err)
	assert.Zero(t, max)

	require.NoError(t, j.Append(3, KindTrade, nil))
	require.NoError(t, j.Append(11, KindTrade, nil))
	require.NoError(t, j.Append(7, KindTrade, nil))

	max, err = j.MaxSeq()
	require.NoError(t, err)
	assert.Equal(t, uint64(11), max)
}

func TestSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, j.Append(5, KindTrade, []byte("persist")))
	require.NoError(t, j.Close())

	j2, err := Open(dir)
	require.NoError(t, err)
	defer j2.Close()

	rec, err := j2.Get(5)
	require.NoError(t, err)
	assert.Equal(t, []byte("persist"), rec.Payload)
}
