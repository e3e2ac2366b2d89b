package cache

import (
	"net/url"
	"testing"
)

func TestKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  Key
		want string
	}{
		{
			name: "path only",
			key:  Key{Path: "/2.0/repositories/acme"},
			want: "bb:2.0/repositories/acme",
		},
		{
			name: "path with query params",
			key: Key{
				Path:        "/2.0/repositories/acme/widget/pullrequests",
				QueryParams: url.Values{"state": []string{"OPEN"}},
			},
			want: "bb:2.0/repositories/acme/widget/pullrequests:state=OPEN",
		},
		{
			name: "account scoped",
			key: Key{
				Path:    "/2.0/repositories/acme/widget",
				Account: "agent",
			},
			want: "bb:2.0/repositories/acme/widget:acct=agent",
		},
		{
			name: "empty path",
			key:  Key{},
			want: "bb",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKey_String_QueryParamOrder(t *testing.T) {
	// Two keys with the same params in different insertion order must
	// produce the same string.
	key1 := Key{
		Path: "/2.0/repositories/acme",
		QueryParams: url.Values{
			"sort": []string{"-updated_on"},
			"q":    []string{`language="go"`},
		},
	}
	key2 := Key{
		Path: "/2.0/repositories/acme",
		QueryParams: url.Values{
			"q":    []string{`language="go"`},
			"sort": []string{"-updated_on"},
		},
	}

	if key1.String() != key2.String() {
		t.Errorf("keys differ: %q vs %q", key1.String(), key2.String())
	}
}
