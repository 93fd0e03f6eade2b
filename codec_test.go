package exchange

import (
	"encoding/json"
	"net/http"
	"net/url"
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEncodeBody(t *testing.T) {
	type Form struct {
		Name string `query:"name"`
	}

	tests := []struct {
		name     string
		value    any
		declared string
		wantBody string
		wantType string
	}{
		{"string", "hello", "", "hello", "text/plain; charset=utf-8"},
		{"bytes", []byte{1, 2}, "", "\x01\x02", "application/octet-stream"},
		{"raw JSON", json.RawMessage(`{"a":1}`), "", `{"a":1}`, "application/json"},
		{"form values", url.Values{"a": {"1"}}, "", "a=1", "application/x-www-form-urlencoded"},
		{"struct as JSON", struct{ A int }{1}, "", `{"A":1}`, "application/json"},
		{"struct as form", Form{Name: "x"}, "application/x-www-form-urlencoded", "name=x", "application/x-www-form-urlencoded"},
		{"declared type wins", "<a/>", "application/xml", "<a/>", "application/xml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ct, err := encodeBody(tt.value, tt.declared)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(body) != tt.wantBody {
				t.Errorf("expected body %q, got %q", tt.wantBody, body)
			}
			if ct != tt.wantType {
				t.Errorf("expected content type %q, got %q", tt.wantType, ct)
			}
		})
	}

	if _, _, err := encodeBody(make(chan int), ""); err == nil {
		t.Error("expected error encoding a channel")
	}
}

func textResponse(ct, body string) *Response {
	h := make(http.Header)
	if ct != "" {
		h.Set("Content-Type", ct)
	}
	return &Response{StatusCode: http.StatusOK, Header: h, Body: []byte(body)}
}

func TestDecode(t *testing.T) {
	t.Run("text into string", func(t *testing.T) {
		got, err := Decode[string](textResponse("text/plain", "Hello Spring!"))
		if err != nil || got != "Hello Spring!" {
			t.Errorf("got %q, %v", got, err)
		}
	})

	t.Run("JSON into struct", func(t *testing.T) {
		type Greeting struct {
			Text string `json:"text"`
		}
		got, err := Decode[Greeting](textResponse("application/json; charset=utf-8", `{"text":"hi"}`))
		if err != nil || got.Text != "hi" {
			t.Errorf("got %+v, %v", got, err)
		}
	})

	t.Run("vendor JSON", func(t *testing.T) {
		got, err := Decode[map[string]int](textResponse("application/problem+json", `{"status":400}`))
		if err != nil || got["status"] != 400 {
			t.Errorf("got %v, %v", got, err)
		}
	})

	t.Run("sniffed JSON", func(t *testing.T) {
		got, err := Decode[[]int](textResponse("", `[1,2,3]`))
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]int{1, 2, 3}, got); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("text into any", func(t *testing.T) {
		got, err := Decode[any](textResponse("text/plain", "plain"))
		if err != nil || got != "plain" {
			t.Errorf("got %v, %v", got, err)
		}
	})

	t.Run("JSON into any", func(t *testing.T) {
		got, err := Decode[any](textResponse("application/json", `{"a":1}`))
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(map[string]any{"a": float64(1)}, got); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("bytes are raw", func(t *testing.T) {
		got, err := Decode[[]byte](textResponse("image/png", "\x89PNG"))
		if err != nil || string(got) != "\x89PNG" {
			t.Errorf("got %q, %v", got, err)
		}
	})

	t.Run("text into pointer", func(t *testing.T) {
		got, err := Decode[*string](textResponse("text/plain", "Hello Spring!"))
		if err != nil || got == nil || *got != "Hello Spring!" {
			t.Errorf("got %v, %v", got, err)
		}
	})

	t.Run("JSON into pointer", func(t *testing.T) {
		got, err := Decode[*map[string]int](textResponse("application/json", `{"a":1}`))
		if err != nil || got == nil || (*got)["a"] != 1 {
			t.Errorf("got %v, %v", got, err)
		}
	})

	t.Run("empty body", func(t *testing.T) {
		got, err := Decode[*string](textResponse("", ""))
		if err != nil || got != nil {
			t.Errorf("got %v, %v", got, err)
		}
	})
}

func TestDecodeBody_Errors(t *testing.T) {
	tests := []struct {
		name string
		resp *Response
		typ  reflect.Type
	}{
		{"empty body", textResponse("text/plain", ""), reflect.TypeFor[string]()},
		{"binary into struct", textResponse("application/octet-stream", "\x00\x01"), reflect.TypeFor[struct{ A int }]()},
		{"malformed JSON", textResponse("application/json", "{"), reflect.TypeFor[map[string]any]()},
		{"text into int", textResponse("text/plain", "hello"), reflect.TypeFor[int]()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeBody(tt.resp, tt.typ, false)
			if code := AsError(err).Code; code != CodeDecoding {
				t.Errorf("expected decoding error, got %v", err)
			}
		})
	}
}

func TestDecodeBody_EmptyAllowed(t *testing.T) {
	v, err := decodeBody(textResponse("", ""), reflect.TypeFor[string](), true)
	if err != nil {
		t.Fatal(err)
	}
	if v.String() != "" {
		t.Errorf("expected zero value, got %q", v.String())
	}
}
