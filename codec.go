package exchange

import (
	"encoding/json"
	"mime"
	"net/url"
	"reflect"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const (
	contentTypeJSON   = "application/json"
	contentTypeText   = "text/plain; charset=utf-8"
	contentTypeBinary = "application/octet-stream"
	contentTypeForm   = "application/x-www-form-urlencoded"
)

var (
	bytesType      = reflect.TypeOf([]byte(nil))
	rawMessageType = reflect.TypeOf(json.RawMessage(nil))
)

// encodeBody serializes a body argument. declared overrides the content type
// inferred from the value:
//   - string: text/plain
//   - []byte: application/octet-stream
//   - url.Values: form encoded
//   - json.RawMessage: sent as is, application/json
//   - anything else: JSON, or form encoded when declared is a form type
func encodeBody(v any, declared string) ([]byte, string, error) {
	var (
		data []byte
		ct   string
	)
	switch b := v.(type) {
	case string:
		data, ct = []byte(b), contentTypeText
	case []byte:
		data, ct = b, contentTypeBinary
	case json.RawMessage:
		data, ct = b, contentTypeJSON
	case url.Values:
		data, ct = []byte(b.Encode()), contentTypeForm
	default:
		if mediaType(declared) == contentTypeForm && isStruct(v) {
			form := make(url.Values)
			if err := queryEncoder.Encode(v, form); err != nil {
				return nil, "", err
			}
			data, ct = []byte(form.Encode()), contentTypeForm
			break
		}
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, "", err
		}
		data, ct = encoded, contentTypeJSON
	}
	if declared != "" {
		ct = declared
	}
	return data, ct, nil
}

// decodeBody converts the response body into a value of type t.
//
// An empty body decodes to the zero value when allowEmpty is set or t is a
// pointer type; otherwise it is a decoding error.
func decodeBody(resp *Response, t reflect.Type, allowEmpty bool) (reflect.Value, error) {
	out := reflect.New(t).Elem()
	body := resp.Body

	if len(body) == 0 {
		if allowEmpty || t.Kind() == reflect.Pointer || t.Kind() == reflect.Interface {
			return out, nil
		}
		return out, Errorf(CodeDecoding, "empty body from %s cannot be decoded into %s", resp.target(), t).
			WithDetail("status", resp.StatusCode)
	}

	if t.Kind() == reflect.Pointer {
		elem, err := decodeBody(resp, t.Elem(), allowEmpty)
		if err != nil {
			return out, err
		}
		ptr := reflect.New(t.Elem())
		ptr.Elem().Set(elem)
		return ptr, nil
	}

	switch {
	case t == bytesType || t == rawMessageType:
		out.SetBytes(append([]byte(nil), body...))
		return out, nil
	case t.Kind() == reflect.String:
		out.SetString(string(body))
		return out, nil
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = mimetype.Detect(body).String()
	}
	mt := mediaType(ct)
	if !isJSON(mt) && !strings.HasPrefix(mt, "text/") {
		return out, Errorf(CodeDecoding, "cannot decode %s body from %s into %s", mt, resp.target(), t)
	}
	if !isJSON(mt) && t.Kind() == reflect.Interface && t.NumMethod() == 0 {
		out.Set(reflect.ValueOf(string(body)))
		return out, nil
	}

	target := reflect.New(t)
	if err := json.Unmarshal(body, target.Interface()); err != nil {
		return out, Errorf(CodeDecoding, "decode %s body from %s into %s: %w", mt, resp.target(), t, err)
	}
	return target.Elem(), nil
}

// Decode converts the body of resp into an R using the same rules as the
// proxy's result adapters. An empty body decodes to the zero value.
func Decode[R any](resp *Response) (R, error) {
	v, err := decodeBody(resp, reflect.TypeFor[R](), true)
	if err != nil {
		var zero R
		return zero, err
	}
	r, _ := v.Interface().(R)
	return r, nil
}

func mediaType(ct string) string {
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(ct))
	}
	return mt
}

func isJSON(mt string) bool {
	return mt == contentTypeJSON || strings.HasSuffix(mt, "+json")
}
