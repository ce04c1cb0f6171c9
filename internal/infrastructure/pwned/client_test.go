package pwned

import (
	"context"
	"crypto/sha1"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func rangeFor(password string) (prefix, suffix string) {
	sum := sha1.Sum([]byte(password))
	digest := strings.ToUpper(fmt.Sprintf("%x", sum))
	return digest[:5], digest[5:]
}

func TestIsPasswordPwned(t *testing.T) {
	_, suffix := rangeFor("hunter2")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "0018A45C4D1DEF81644B54AB7F969B88D65:1\n%s:532\nFFFFFF0000000000000000000000000000F:2\n", suffix)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, nil, nil)

	pwned, err := c.IsPasswordPwned(context.Background(), "hunter2")
	if err != nil {
		t.Fatalf("IsPasswordPwned failed: %v", err)
	}
	if !pwned {
		t.Fatal("expected hunter2 to be flagged")
	}

	pwned, err = c.IsPasswordPwned(context.Background(), "xkcd-correct-horse-battery")
	if err != nil {
		t.Fatalf("IsPasswordPwned failed: %v", err)
	}
	if pwned {
		t.Fatal("expected clean password not to be flagged")
	}
}

func TestIsPasswordPwnedFailsClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, nil, nil)
	if _, err := c.IsPasswordPwned(context.Background(), "anything"); err == nil {
		t.Fatal("expected error when collaborator is unavailable")
	}
}

type memCache struct {
	data map[string]string
	hits int
}

func (m *memCache) Get(ctx context.Context, key string) (string, error) {
	if v, ok := m.data[key]; ok {
		m.hits++
		return v, nil
	}
	return "", fmt.Errorf("miss")
}

func (m *memCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.data[key] = value.(string)
	return nil
}

func TestRangeResponsesAreCached(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, "ABCDEF0000000000000000000000000000A:1\n")
	}))
	defer srv.Close()

	cache := &memCache{data: map[string]string{}}
	c := NewClient(srv.URL, 5*time.Second, cache, nil)

	for i := 0; i < 3; i++ {
		if _, err := c.IsPasswordPwned(context.Background(), "same-password"); err != nil {
			t.Fatalf("IsPasswordPwned failed: %v", err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected a single upstream call, got %d", calls)
	}
	if cache.hits != 2 {
		t.Fatalf("expected 2 cache hits, got %d", cache.hits)
	}
}
