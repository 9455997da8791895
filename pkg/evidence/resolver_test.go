package evidence

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseKey(t *testing.T) {
	tests := []struct {
		raw        string
		wantOK     bool
		wantPrefix string
		wantSuffix string
		wantBucket string
	}{
		{"header.User-Agent", true, "header", "user-agent", PrefixHeader},
		{"QUERY.Session-Id", true, "query", "session-id", PrefixQuery},
		{"Cookie.Id", true, "cookie", "id", PrefixCookie},
		{"server.client.ip", true, "server", "ip", PrefixOther},
		{"noseparator", false, "", "", ""},
		{"header.", false, "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			key, ok := ParseKey(tt.raw)
			if ok != tt.wantOK {
				t.Fatalf("ParseKey(%q) ok = %v, want %v", tt.raw, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if key.Prefix != tt.wantPrefix {
				t.Errorf("prefix = %q, want %q", key.Prefix, tt.wantPrefix)
			}
			if key.Suffix != tt.wantSuffix {
				t.Errorf("suffix = %q, want %q", key.Suffix, tt.wantSuffix)
			}
			if key.Bucket() != tt.wantBucket {
				t.Errorf("bucket = %q, want %q", key.Bucket(), tt.wantBucket)
			}
		})
	}
}

func TestResolve_QueryWinsWithoutConflict(t *testing.T) {
	store := NewStoreFrom(
		Entry{"query.User-Agent", "A"},
		Entry{"header.user-agent", "B"},
		Entry{"cookie.USER-AGENT", "C"},
		Entry{"other.user-agent", "D"},
	)

	result := Resolve(store)

	if diff := cmp.Diff(QueryMap{"user-agent": "A"}, result.Query); diff != "" {
		t.Errorf("query map mismatch (-want +got):\n%s", diff)
	}
	// header over cookie, and cookie over other, are reported; query is not.
	for _, c := range result.Conflicts {
		if strings.HasPrefix(c.Key, "query.") {
			t.Errorf("query evidence must not produce a conflict, got %s", c)
		}
	}
}

func TestResolve_HeaderBeatsCookie(t *testing.T) {
	store := NewStoreFrom(
		Entry{"header.User-Agent", "H"},
		Entry{"cookie.User-Agent", "C"},
	)

	result := Resolve(store)

	if got := result.Query["user-agent"]; got != "H" {
		t.Errorf("user-agent = %q, want %q", got, "H")
	}
	if len(result.Conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %d: %+v", len(result.Conflicts), result.Conflicts)
	}

	want := Conflict{
		Key:    "header.User-Agent",
		Value:  "H",
		Others: []Entry{{Key: "cookie.User-Agent", Value: "C"}},
	}
	if diff := cmp.Diff(want, result.Conflicts[0]); diff != "" {
		t.Errorf("conflict mismatch (-want +got):\n%s", diff)
	}
}

func TestResolve_OtherBucketDescendingOrder(t *testing.T) {
	store := NewStoreFrom(
		Entry{"a.User-Agent", "A"},
		Entry{"z.User-Agent", "Z"},
	)

	selected := selectBucket(parseAll(store), PrefixOther)
	var order []string
	for _, k := range selected {
		order = append(order, k.Raw)
	}
	if diff := cmp.Diff([]string{"z.User-Agent", "a.User-Agent"}, order); diff != "" {
		t.Errorf("iteration order mismatch (-want +got):\n%s", diff)
	}

	// z is merged first, so a overwrites it.
	result := Resolve(store)
	if got := result.Query["user-agent"]; got != "A" {
		t.Errorf("user-agent = %q, want %q", got, "A")
	}
	if len(result.Conflicts) != 1 || result.Conflicts[0].Key != "a.User-Agent" {
		t.Errorf("expected a single conflict raised by a.User-Agent, got %+v", result.Conflicts)
	}
}

func TestResolve_CaseCollapse(t *testing.T) {
	store := NewStoreFrom(
		Entry{"header.user-agent", "first"},
		Entry{"header.USER-AGENT", "second"},
	)

	result := Resolve(store)

	if len(result.Query) != 1 {
		t.Fatalf("expected one suffix, got %v", result.Query)
	}
	if got := result.Query["user-agent"]; got != "second" {
		t.Errorf("user-agent = %q, want %q", got, "second")
	}
}

func TestResolve_IgnoresKeysWithoutSeparator(t *testing.T) {
	store := NewStoreFrom(
		Entry{"useragent", "ignored"},
		Entry{"header.accept", "text/html"},
	)

	result := Resolve(store)

	if diff := cmp.Diff(QueryMap{"accept": "text/html"}, result.Query); diff != "" {
		t.Errorf("query map mismatch (-want +got):\n%s", diff)
	}
}

func TestResolve_Empty(t *testing.T) {
	for name, store := range map[string]*Store{"nil": nil, "empty": NewStore()} {
		t.Run(name, func(t *testing.T) {
			result := Resolve(store)
			if result.Query == nil || len(result.Query) != 0 {
				t.Errorf("expected empty non-nil query map, got %#v", result.Query)
			}
			if len(result.Conflicts) != 0 {
				t.Errorf("expected no conflicts, got %+v", result.Conflicts)
			}
		})
	}
}

func TestResolve_DistinctSuffixesKept(t *testing.T) {
	store := NewStoreFrom(
		Entry{"query.session-id", "8b5461ac"},
		Entry{"query.sequence", "1"},
		Entry{"header.user-agent", "Mozilla"},
	)

	result := Resolve(store)

	want := QueryMap{"session-id": "8b5461ac", "sequence": "1", "user-agent": "Mozilla"}
	if diff := cmp.Diff(want, result.Query); diff != "" {
		t.Errorf("query map mismatch (-want +got):\n%s", diff)
	}
	if got, want := result.Query.Encode(), "sequence=1&session-id=8b5461ac&user-agent=Mozilla"; got != want {
		t.Errorf("Encode() = %q, want %q", got, want)
	}
}

func TestConflict_String(t *testing.T) {
	c := Conflict{
		Key:    "header.User-Agent",
		Value:  "H",
		Others: []Entry{{Key: "cookie.User-Agent", Value: "C"}, {Key: "x.user-agent", Value: "X"}},
	}

	want := "'header.User-Agent=>H' evidence conflicts with cookie.User-Agent=>C, x.user-agent=>X"
	if got := c.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func parseAll(store *Store) []Key {
	var keys []Key
	for _, e := range store.All() {
		if k, ok := ParseKey(e.Key); ok {
			keys = append(keys, k)
		}
	}
	return keys
}
