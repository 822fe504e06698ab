package datauri

// Notes:
// - Parse/Compose/Decode are pure; tests check that the data: prefix is required and that
//   Decode(Compose(x)) recovers payload and type, which the data: source relies on
// - The placeholder round trip is covered in internal/embed where it is defined

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "base64 image", input: "data:image/png;base64,AAAA"},
		{name: "bare prefix", input: "data:"},
		{name: "http URL", input: "https://example.test/a.png", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "uppercase scheme", input: "DATA:image/png;base64,AAAA", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Parse(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalid) {
					t.Fatalf("Parse(%q) error = %v, want ErrInvalid", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tt.input, err)
			}
			if got.String() != tt.input {
				t.Errorf("Parse(%q) = %q", tt.input, got)
			}
		})
	}
}

func TestMustParse_Panics(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Error("MustParse should panic on invalid input")
		}
	}()
	_ = MustParse("not-a-data-uri")
}

func TestParse_TruncatesLongInputInError(t *testing.T) {
	t.Parallel()

	_, err := Parse(strings.Repeat("x", 1000))
	if err == nil {
		t.Fatal("expected error")
	}
	if len(err.Error()) > 200 {
		t.Errorf("error message not truncated: %d bytes", len(err.Error()))
	}
}

func TestCompose(t *testing.T) {
	t.Parallel()

	got := Compose("image/jpeg", []byte("hello"))
	want := DataURI("data:image/jpeg;base64,aGVsbG8=")
	if got != want {
		t.Errorf("Compose() = %q, want %q", got, want)
	}
}

func TestDecode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		wantData []byte
		wantType string
		wantErr  bool
	}{
		{
			name:     "base64 with type",
			input:    "data:image/jpeg;base64,aGVsbG8=",
			wantData: []byte("hello"),
			wantType: "image/jpeg",
		},
		{
			name:     "base64 without padding",
			input:    "data:image/gif;base64,aGVsbG8",
			wantData: []byte("hello"),
			wantType: "image/gif",
		},
		{
			name:     "percent encoded with parameters",
			input:    "data:text/plain;charset=utf-8,a%20b",
			wantData: []byte("a b"),
			wantType: "text/plain;charset=utf-8",
		},
		{
			name:     "no media type",
			input:    "data:;base64,aGVsbG8=",
			wantData: []byte("hello"),
			wantType: "",
		},
		{
			name:     "upper-case scheme and marker",
			input:    "DATA:image/gif;BASE64,aGVsbG8=",
			wantData: []byte("hello"),
			wantType: "image/gif",
		},
		{name: "missing comma", input: "data:image/png;base64", wantErr: true},
		{name: "bad base64", input: "data:image/png;base64,!!!", wantErr: true},
		{name: "not a data URI", input: "https://example.test", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			data, ct, err := Decode(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalid) {
					t.Fatalf("Decode(%q) error = %v, want ErrInvalid", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode(%q) unexpected error: %v", tt.input, err)
			}
			if !bytes.Equal(data, tt.wantData) {
				t.Errorf("data = %q, want %q", data, tt.wantData)
			}
			if ct != tt.wantType {
				t.Errorf("content type = %q, want %q", ct, tt.wantType)
			}
		})
	}
}

func TestDecode_InvertsCompose(t *testing.T) {
	t.Parallel()

	payload := []byte{0x89, 'P', 'N', 'G', 0x00, 0xff, 0x10}
	uri := Compose("image/png", payload)

	data, ct, err := Decode(uri.String())
	if err != nil {
		t.Fatalf("Decode() unexpected error: %v", err)
	}
	if ct != "image/png" || !bytes.Equal(data, payload) {
		t.Fatalf("Decode(Compose()) = %q, %q", data, ct)
	}
	if again := Compose(ct, data); again != uri {
		t.Errorf("re-composed URI differs:\n got %q\nwant %q", again, uri)
	}
}
