package test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
)

type client struct {
	t     *testing.T
	base  string
	token string
}

func (c *client) do(method, path, ifMatch string, body interface{}) *http.Response {
	c.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			c.t.Fatalf("encode body: %v", err)
		}
	}

	req, err := http.NewRequest(method, c.base+path, &buf)
	if err != nil {
		c.t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if ifMatch != "" {
		req.Header.Set("If-Match", ifMatch)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decodeInto(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestFullAPIFlow(t *testing.T) {
	server := newAPIServer()
	defer server.Close()

	c := &client{t: t, base: server.URL}

	// Register
	resp := c.do("POST", "/api/users", "", map[string]string{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "S3aWater!",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d", resp.StatusCode)
	}
	if resp.Header.Get("ETag") == "" {
		t.Fatal("register response missing ETag")
	}
	var registered struct {
		ID int64 `json:"id"`
	}
	decodeInto(t, resp, &registered)

	// Anything else without a token is rejected
	resp = c.do("GET", "/api/aquariums", "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated list status = %d, want 401", resp.StatusCode)
	}

	// A breached password is refused outright
	resp = c.do("POST", "/api/users", "", map[string]string{
		"username": "mallory",
		"email":    "m@example.com",
		"password": "hunter2",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("breached register status = %d, want 400", resp.StatusCode)
	}

	// Login
	resp = c.do("POST", "/api/auth/token", "", map[string]string{
		"username": "alice",
		"password": "S3aWater!",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	var tokenResp struct {
		Token string `json:"token"`
	}
	decodeInto(t, resp, &tokenResp)
	if tokenResp.Token == "" {
		t.Fatal("no token returned")
	}
	c.token = tokenResp.Token

	// Bad credentials stay 401
	resp = c.do("POST", "/api/auth/token", "", map[string]string{
		"username": "alice",
		"password": "wrong",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d, want 401", resp.StatusCode)
	}

	// Create an aquarium; the response carries the initial version tag
	resp = c.do("POST", "/api/aquariums", "", map[string]interface{}{
		"name":       "Reef",
		"type":       "marine",
		"volume":     200,
		"volumeUnit": "litres",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create aquarium status = %d", resp.StatusCode)
	}
	tagA := resp.Header.Get("ETag")
	if tagA == "" {
		t.Fatal("create response missing ETag")
	}
	var created struct {
		ID int64 `json:"id"`
	}
	decodeInto(t, resp, &created)
	aqPath := fmt.Sprintf("/api/aquariums/%d", created.ID)

	// Conditional update with the current tag succeeds and advances it
	resp = c.do("PUT", aqPath, tagA, map[string]interface{}{
		"name":       "Reef Display",
		"type":       "marine",
		"volume":     220,
		"volumeUnit": "litres",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("conditional update status = %d", resp.StatusCode)
	}
	tagB := resp.Header.Get("ETag")
	resp.Body.Close()
	if tagB == "" || tagB == tagA {
		t.Fatalf("update must advance the tag: %q -> %q", tagA, tagB)
	}

	// Replaying the stale tag fails with 412 and mutates nothing
	resp = c.do("PUT", aqPath, tagA, map[string]interface{}{
		"name":       "Should Not Land",
		"volume":     1,
		"volumeUnit": "litres",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusPreconditionFailed {
		t.Fatalf("stale update status = %d, want 412", resp.StatusCode)
	}
	resp = c.do("GET", aqPath, "", nil)
	var current struct {
		Name string `json:"name"`
	}
	gotTag := resp.Header.Get("ETag")
	decodeInto(t, resp, &current)
	if current.Name != "Reef Display" {
		t.Fatalf("stale update mutated the entity: name = %q", current.Name)
	}
	if gotTag != tagB {
		t.Fatalf("tag changed without a write: %q vs %q", gotTag, tagB)
	}

	// An absent If-Match skips the check entirely
	resp = c.do("PUT", aqPath, "", map[string]interface{}{
		"name":       "Reef Display",
		"volume":     230,
		"volumeUnit": "litres",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unconditional update status = %d", resp.StatusCode)
	}
	tagC := resp.Header.Get("ETag")
	resp.Body.Close()

	// Nested measurement create under the aquarium
	resp = c.do("POST", aqPath+"/measurements", "", map[string]interface{}{
		"kind":    "ph",
		"value":   8.1,
		"unit":    "ph",
		"takenAt": "2026-08-30T10:00:00Z",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create measurement status = %d", resp.StatusCode)
	}
	var measurement struct {
		ID int64 `json:"id"`
	}
	decodeInto(t, resp, &measurement)

	// Out-of-range value is reported as a validation failure list
	resp = c.do("POST", aqPath+"/measurements", "", map[string]interface{}{
		"kind":    "ph",
		"value":   19.0,
		"takenAt": "2026-08-30T10:00:00Z",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("invalid measurement status = %d, want 422", resp.StatusCode)
	}
	var failureResp struct {
		Failures []struct {
			Field string `json:"field"`
		} `json:"failures"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&failureResp); err != nil {
		t.Fatalf("decode failures: %v", err)
	}
	if len(failureResp.Failures) == 0 {
		t.Fatal("expected validation failures in response")
	}

	// Addressing the measurement under a different aquarium is a conflict
	resp = c.do("POST", "/api/aquariums", "", map[string]interface{}{
		"name": "Quarantine", "volume": 40, "volumeUnit": "litres",
	})
	var other struct {
		ID int64 `json:"id"`
	}
	decodeInto(t, resp, &other)
	resp = c.do("DELETE", fmt.Sprintf("/api/aquariums/%d/measurements/%d", other.ID, measurement.ID), "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("cross-aquarium delete status = %d, want 400", resp.StatusCode)
	}

	// Conditional delete with the current tag
	resp = c.do("DELETE", aqPath, tagC, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", resp.StatusCode)
	}
	resp = c.do("GET", aqPath, "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", resp.StatusCode)
	}
}

func TestPasswordChangeFlow(t *testing.T) {
	server := newAPIServer()
	defer server.Close()

	c := &client{t: t, base: server.URL}

	resp := c.do("POST", "/api/users", "", map[string]string{
		"username": "bob",
		"email":    "bob@example.com",
		"password": "Original1!",
	})
	var registered struct {
		ID int64 `json:"id"`
	}
	decodeInto(t, resp, &registered)

	resp = c.do("POST", "/api/auth/token", "", map[string]string{
		"username": "bob", "password": "Original1!",
	})
	var tokenResp struct {
		Token string `json:"token"`
	}
	decodeInto(t, resp, &tokenResp)
	c.token = tokenResp.Token

	userPath := fmt.Sprintf("/api/users/%d", registered.ID)

	// Change with a breached replacement is refused
	resp = c.do("POST", userPath+"/password", "", map[string]string{
		"oldPassword": "Original1!", "newPassword": "hunter2",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("breached change status = %d, want 400", resp.StatusCode)
	}

	// Good change
	resp = c.do("POST", userPath+"/password", "", map[string]string{
		"oldPassword": "Original1!", "newPassword": "Replacement2!",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("change status = %d", resp.StatusCode)
	}

	// The old password no longer logs in, the new one does
	resp = c.do("POST", "/api/auth/token", "", map[string]string{
		"username": "bob", "password": "Original1!",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("old password login status = %d, want 401", resp.StatusCode)
	}
	resp = c.do("POST", "/api/auth/token", "", map[string]string{
		"username": "bob", "password": "Replacement2!",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("new password login status = %d", resp.StatusCode)
	}

	// History shows both records with tiled validity windows
	resp = c.do("GET", userPath+"/passwords", "", nil)
	var history struct {
		Passwords []struct {
			CreatedAt string  `json:"createdAt"`
			ExpiredAt *string `json:"expiredAt"`
		} `json:"passwords"`
	}
	decodeInto(t, resp, &history)
	if len(history.Passwords) != 2 {
		t.Fatalf("history length = %d, want 2", len(history.Passwords))
	}
	if history.Passwords[0].ExpiredAt != nil {
		t.Error("current record must be open ended")
	}
	if history.Passwords[1].ExpiredAt == nil {
		t.Error("superseded record must carry an expiry")
	}

	// Another user may not read bob's subtree
	c2 := &client{t: t, base: server.URL}
	resp = c2.do("POST", "/api/users", "", map[string]string{
		"username": "eve", "email": "eve@example.com", "password": "EvePass3!",
	})
	resp.Body.Close()
	resp = c2.do("POST", "/api/auth/token", "", map[string]string{
		"username": "eve", "password": "EvePass3!",
	})
	var eveToken struct {
		Token string `json:"token"`
	}
	decodeInto(t, resp, &eveToken)
	c2.token = eveToken.Token

	resp = c2.do("GET", userPath, "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("cross-user read status = %d, want 403", resp.StatusCode)
	}
}
