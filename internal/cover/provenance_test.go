package cover

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvenanceOrdering(t *testing.T) {
	t.Parallel()

	log := NewProvenanceLog("isbn:9780132350884")
	require.NotEmpty(t, log.RequestID)

	a1 := log.Begin(SourceGoogleBooks, "9780132350884")
	a2 := log.Begin(SourceOpenLibrary, "9780132350884")
	log.Complete(a1, StatusFailureNotFound, "No ImageDetails returned from remote service")
	log.CompleteSuccess(a2, "http://covers.openlibrary.org/b/isbn/9780132350884-L.jpg", "480x720")

	attempts := log.Attempts()
	require.Len(t, attempts, 2)
	assert.Equal(t, SourceGoogleBooks, attempts[0].Provider)
	assert.Equal(t, StatusFailureNotFound, attempts[0].Status)
	assert.Equal(t, SourceOpenLibrary, attempts[1].Provider)
	assert.Equal(t, StatusSuccess, attempts[1].Status)
	assert.Equal(t, "http://covers.openlibrary.org/b/isbn/9780132350884-L.jpg", attempts[1].FetchedURL)
	assert.Equal(t, "480x720", attempts[1].Dimensions)
}

func TestAttemptCompletedOnce(t *testing.T) {
	t.Parallel()

	log := NewProvenanceLog("id-1")
	a := log.Begin(SourceLongitood, "id-1")
	log.Complete(a, StatusFailureGeneric, "network error")
	log.Complete(a, StatusSuccess, "should not overwrite")
	log.CompleteSuccess(a, "http://late/url.jpg", "1x1")

	got := log.Attempts()[0]
	assert.Equal(t, StatusFailureGeneric, got.Status)
	assert.Equal(t, "network error", got.Reason)
	assert.Empty(t, got.FetchedURL)
}

func TestAttemptsSnapshotIsolated(t *testing.T) {
	t.Parallel()

	log := NewProvenanceLog("id-2")
	a := log.Begin(SourceGoogleBooks, "id-2")
	snap := log.Attempts()
	log.Complete(a, StatusSuccess, "")

	assert.Equal(t, StatusPending, snap[0].Status, "snapshot must not see later mutation")
	assert.Equal(t, StatusSuccess, log.Attempts()[0].Status)
}

func TestProvenanceConcurrentAppend(t *testing.T) {
	t.Parallel()

	log := NewProvenanceLog("id-3")
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a := log.Begin(SourceOpenLibrary, "id-3")
			log.Complete(a, StatusFailureGeneric, "x")
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, log.Len())
	for _, a := range log.Attempts() {
		assert.True(t, a.Status.Terminal())
	}
}
