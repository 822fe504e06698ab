package metrics

import (
	"testing"
	"time"
)

func TestNoopRecorder(t *testing.T) {
	t.Parallel()

	var r Recorder = NoopRecorder{}
	r.ObserveImageDuration("image", time.Second)
	r.IncImageResult("image", ResultCanceled)
	r.AddEmbeddedBytes(10)
	r.ObserveDocumentDuration(time.Second, true)
	r.SetInFlight(0)
}
