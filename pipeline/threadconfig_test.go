package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/vcontext"
	"github.com/opengene/fqdemux/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThreadConfigDrainsUntilProducerFinishedAndEmpty(t *testing.T) {
	ctx := vcontext.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "out.fastq")

	w, err := NewWriter(ctx, path, 1024, 0, false, false, 0, 0)
	require.NoError(t, err)

	q := queue.NewRecordQueue()
	q.Produce(mustRec(t, "@r1\nACGT\n+\nIIII\n"))
	q.Produce(mustRec(t, "@r2\nTTTT\n+\nJJJJ\n"))
	q.SetProducerFinished()

	tc := newThreadConfig()
	tc.add(q, w)

	errOnce := &errors.Once{}
	tc.Run(errOnce)

	require.NoError(t, errOnce.Err())
	assert.True(t, q.ConsumerFinished())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "@r1\nACGT\n+\nIIII\n@r2\nTTTT\n+\nJJJJ\n", string(got))
}

func TestThreadConfigRoundRobinsMultipleQueues(t *testing.T) {
	ctx := vcontext.Background()
	dir := t.TempDir()

	wA, err := NewWriter(ctx, filepath.Join(dir, "a.fastq"), 1024, 0, false, false, 0, 0)
	require.NoError(t, err)
	wB, err := NewWriter(ctx, filepath.Join(dir, "b.fastq"), 1024, 0, false, false, 0, 0)
	require.NoError(t, err)

	qA := queue.NewRecordQueue()
	qA.Produce(mustRec(t, "@a\nAAAA\n+\nIIII\n"))
	qA.SetProducerFinished()

	qB := queue.NewRecordQueue()
	qB.Produce(mustRec(t, "@b\nCCCC\n+\nIIII\n"))
	qB.SetProducerFinished()

	tc := newThreadConfig()
	tc.add(qA, wA)
	tc.add(qB, wB)

	errOnce := &errors.Once{}
	tc.Run(errOnce)
	require.NoError(t, errOnce.Err())

	gotA, err := os.ReadFile(filepath.Join(dir, "a.fastq"))
	require.NoError(t, err)
	assert.Equal(t, "@a\nAAAA\n+\nIIII\n", string(gotA))

	gotB, err := os.ReadFile(filepath.Join(dir, "b.fastq"))
	require.NoError(t, err)
	assert.Equal(t, "@b\nCCCC\n+\nIIII\n", string(gotB))
}
