//go:build !(js && wasm)

package hostenv

// Detect reports the mode of the compiled target.
func Detect() Mode {
	return ModeServer
}
