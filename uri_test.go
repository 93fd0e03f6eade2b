package exchange

import (
	"net/url"
	"testing"
)

func TestNewURIBuilderFactory(t *testing.T) {
	for _, bad := range []string{"", "/relative", "localhost:8080", "http://[::1"} {
		if _, err := NewURIBuilderFactory(bad); err == nil {
			t.Errorf("expected error for base %q", bad)
		}
	}

	f, err := NewURIBuilderFactory("http://localhost:8080/api")
	if err != nil {
		t.Fatal(err)
	}
	b := f.Base()
	b.Path = "/changed"
	if f.Base().Path != "/api" {
		t.Error("expected Base to return a copy")
	}
}

func TestDefaultURIBuilderFactory_Expand(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		template string
		vars     map[string]string
		want     string
	}{
		{"root base", "http://localhost:8080", "/greeting/{id}", map[string]string{"id": "123"}, "http://localhost:8080/greeting/123"},
		{"trailing slash", "http://localhost:8080/", "/greeting", nil, "http://localhost:8080/greeting"},
		{"base path", "http://localhost:8080/api", "/greeting", nil, "http://localhost:8080/api/greeting"},
		{"base query kept", "http://localhost:8080/api?key=k", "/greeting?x=1", nil, "http://localhost:8080/api/greeting?key=k&x=1"},
		{"escaped variable", "http://localhost", "/files/{name}", map[string]string{"name": "a/b"}, "http://localhost/files/a%2Fb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewURIBuilderFactory(tt.base)
			if err != nil {
				t.Fatal(err)
			}
			u, err := f.Expand(tt.template, tt.vars)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := u.String(); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestDefaultURIBuilderFactory_ExpandErrors(t *testing.T) {
	f, err := NewURIBuilderFactory("http://localhost")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Expand("/greeting/{id", nil); AsError(err).Code != CodeBinding {
		t.Errorf("expected binding error for bad template, got %v", err)
	}
	if _, err := f.Expand("/greeting/{id}", nil); AsError(err).Code != CodeInvalidArgument {
		t.Errorf("expected invalid argument for missing variable, got %v", err)
	}
}

func TestDefaultURIBuilderFactory_Resolve(t *testing.T) {
	f, err := NewURIBuilderFactory("http://localhost:8080/api")
	if err != nil {
		t.Fatal(err)
	}
	rel, _ := url.Parse("/greeting/123?param=test")
	if got := f.Resolve(rel).String(); got != "http://localhost:8080/api/greeting/123?param=test" {
		t.Errorf("unexpected resolved URL %s", got)
	}
}
