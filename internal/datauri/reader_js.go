//go:build js && wasm

package datauri

import (
	"context"
	"errors"
	"sync"
	"syscall/js"
)

// DefaultReaderFactory returns the platform FileReader: the host's
// FileReader when running as WebAssembly in a browser.
func DefaultReaderFactory() FileReader {
	return newJSReader()
}

// jsReader adapts the host FileReader. Its load and error callbacks are
// removed from the host object and released once the read settles or aborts.
type jsReader struct {
	listeners Listeners
	reader    js.Value
	onLoad    js.Func
	onError   js.Func
	release   sync.Once
}

func newJSReader() *jsReader {
	r := &jsReader{reader: js.Global().Get("FileReader").New()}

	r.onLoad = js.FuncOf(func(js.Value, []js.Value) any {
		result := r.reader.Get("result")
		if result.Type() != js.TypeString {
			r.settle(ReadEvent{})
			return nil
		}
		r.settle(ReadEvent{Result: result.String()})
		return nil
	})
	r.onError = js.FuncOf(func(js.Value, []js.Value) any {
		msg := "reading the image failed"
		if e := r.reader.Get("error"); e.Truthy() {
			msg = e.Get("message").String()
		}
		r.settle(ReadEvent{Err: errors.New(msg)})
		return nil
	})

	r.reader.Call("addEventListener", "load", r.onLoad)
	r.reader.Call("addEventListener", "error", r.onError)
	return r
}

// AddListener implements FileReader.
func (r *jsReader) AddListener(l Listener) func() {
	return r.listeners.Add(l)
}

// ReadAsDataURL implements FileReader.
func (r *jsReader) ReadAsDataURL(_ context.Context, data []byte, contentType string) {
	buf := js.Global().Get("Uint8Array").New(len(data))
	js.CopyBytesToJS(buf, data)

	opts := map[string]any{}
	if contentType != "" {
		opts["type"] = contentType
	}
	blob := js.Global().Get("Blob").New([]any{buf}, opts)
	r.reader.Call("readAsDataURL", blob)
}

// Abort implements FileReader.
func (r *jsReader) Abort() {
	r.detach()
	r.reader.Call("abort")
}

func (r *jsReader) settle(ev ReadEvent) {
	r.detach()
	r.listeners.Dispatch(ev)
}

func (r *jsReader) detach() {
	r.release.Do(func() {
		r.reader.Call("removeEventListener", "load", r.onLoad)
		r.reader.Call("removeEventListener", "error", r.onError)
		r.onLoad.Release()
		r.onError.Release()
	})
}
