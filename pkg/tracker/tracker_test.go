package tracker

import (
	"sync"
	"testing"
)

func TestTracker_Counters(t *testing.T) {
	tr := New()

	tr.TrackAPISuccess("openai")
	tr.TrackAPISuccess("openai")
	tr.TrackAPIFailure("openai")
	tr.TrackRetry("openai")
	tr.TrackChunk("openai", true)
	tr.TrackChunk("openai", false)
	tr.TrackCacheHit("jina")
	tr.TrackCacheMiss("jina")

	snap := tr.Snapshot()

	oa := snap["openai"]
	if oa.APISuccess != 2 || oa.APIFailures != 1 || oa.Retries != 1 {
		t.Errorf("openai stats = %+v", oa)
	}
	if oa.ChunksOK != 1 || oa.ChunksFail != 1 {
		t.Errorf("openai chunk stats = %+v", oa)
	}

	jina := snap["jina"]
	if jina.CacheHits != 1 || jina.CacheMisses != 1 {
		t.Errorf("jina stats = %+v", jina)
	}
}

func TestTracker_ConcurrentAccess(t *testing.T) {
	tr := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.TrackAPISuccess("local")
			tr.TrackChunk("local", true)
		}()
	}
	wg.Wait()

	snap := tr.Snapshot()
	if snap["local"].APISuccess != 50 {
		t.Errorf("APISuccess = %d, want 50", snap["local"].APISuccess)
	}
	if snap["local"].ChunksOK != 50 {
		t.Errorf("ChunksOK = %d, want 50", snap["local"].ChunksOK)
	}
}
