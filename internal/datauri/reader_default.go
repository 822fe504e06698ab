//go:build !(js && wasm)

package datauri

// DefaultReaderFactory returns the platform FileReader: the in-process
// StreamReader on native targets.
func DefaultReaderFactory() FileReader {
	return NewStreamReader()
}
