package server

import (
	"bytes"
	"context"
	"errors"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"foodshare/internal/metrics"
	"foodshare/pkg/auth"
	"foodshare/pkg/store"
	"foodshare/services/foodshare/internal/app"
)

func newTestServer(t *testing.T, mutate func(*Config)) *httptest.Server {
	t.Helper()
	core, err := app.New(app.Config{
		Store:    store.NewMemoryStore(),
		Sessions: store.NewMemorySessionStore(time.Hour),
		Hasher:   auth.PlainHasher{},
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	cfg := Config{App: core, Metrics: metrics.New(), SessionTTL: time.Hour}
	if mutate != nil {
		mutate(&cfg)
	}
	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

type client struct {
	t    *testing.T
	base string
	http *http.Client
}

func newClient(t *testing.T, ts *httptest.Server) *client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &client{t: t, base: ts.URL, http: &http.Client{Jar: jar}}
}

// call sends body as JSON and decodes the response into out when non-nil.
func (c *client) call(method, path string, body, out any) int {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.base+path, reader)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			c.t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func (c *client) signup(username, role, location string) {
	c.t.Helper()
	body := map[string]string{"username": username, "password": "pw", "role": role, "location": location}
	if status := c.call(http.MethodPost, "/api/users", body, nil); status != http.StatusCreated {
		c.t.Fatalf("register %s: status %d", username, status)
	}
	if status := c.call(http.MethodPost, "/api/login", map[string]string{"username": username, "password": "pw"}, nil); status != http.StatusOK {
		c.t.Fatalf("login %s: status %d", username, status)
	}
}

type msgBody struct {
	Msg string `json:"msg"`
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, nil)
	c := newClient(t, ts)
	var body map[string]string
	if status := c.call(http.MethodGet, "/healthz", nil, &body); status != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("healthz = %d %v", status, body)
	}
}

func TestHealthzReportsStoreOutage(t *testing.T) {
	ts := newTestServer(t, func(cfg *Config) {
		cfg.Ready = func(ctx context.Context) error { return errors.New("db down") }
	})
	c := newClient(t, ts)
	if status := c.call(http.MethodGet, "/healthz", nil, nil); status != http.StatusServiceUnavailable {
		t.Fatalf("healthz = %d, want 503", status)
	}
}

func TestMetricsEndpointLabelsRoutes(t *testing.T) {
	ts := newTestServer(t, nil)
	c := newClient(t, ts)
	c.call(http.MethodGet, "/api/posts", nil, nil)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(raw), `route="GET /api/posts"`) {
		t.Fatalf("expected route label in metrics:\n%s", raw)
	}
}

func TestSessionCookie(t *testing.T) {
	ts := newTestServer(t, nil)
	c := newClient(t, ts)
	c.signup("alice", "Donor", "212 Goldenwest")

	resp, err := http.Post(ts.URL+"/api/login", "application/json", strings.NewReader(`{"username":"alice","password":"pw"}`))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	resp.Body.Close()
	var sid *http.Cookie
	for _, ck := range resp.Cookies() {
		if ck.Name == "sid" {
			sid = ck
		}
	}
	if sid == nil || !sid.HttpOnly || sid.Value == "" || sid.MaxAge != 3600 {
		t.Fatalf("unexpected session cookie %+v", sid)
	}

	var me map[string]any
	if status := c.call(http.MethodGet, "/api/session", nil, &me); status != http.StatusOK || me["username"] != "alice" {
		t.Fatalf("session = %d %v", status, me)
	}
	if _, leaked := me["password"]; leaked {
		t.Fatalf("password must not be serialized")
	}
	var role map[string]string
	if status := c.call(http.MethodGet, "/api/user-role", nil, &role); status != http.StatusOK || role["role"] != "Donor" {
		t.Fatalf("user-role = %d %v", status, role)
	}

	if status := c.call(http.MethodPost, "/api/logout", nil, nil); status != http.StatusOK {
		t.Fatalf("logout = %d", status)
	}
	var msg msgBody
	if status := c.call(http.MethodGet, "/api/session", nil, &msg); status != http.StatusForbidden || msg.Msg != "You must be logged in!" {
		t.Fatalf("after logout = %d %q", status, msg.Msg)
	}
}

func TestPickupFlowAndCascade(t *testing.T) {
	ts := newTestServer(t, nil)
	alice := newClient(t, ts)
	bob := newClient(t, ts)
	alice.signup("alice", "Donor", "212 Goldenwest")
	bob.signup("bob", "Recipient", "")

	var created struct {
		Msg  string       `json:"msg"`
		Post app.PostView `json:"post"`
	}
	status := alice.call(http.MethodPost, "/api/posts", map[string]any{
		"food_name":       "Bread",
		"expiration_time": time.Now().Add(24 * time.Hour).Format(time.RFC3339),
		"quantity":        5,
		"tags":            []string{"Bakery"},
	}, &created)
	if status != http.StatusCreated || created.Post.Author != "alice" || created.Post.ID == "" {
		t.Fatalf("create post = %d %+v", status, created)
	}
	postID := created.Post.ID

	var claim struct {
		Claim app.ClaimView `json:"claim"`
	}
	if status := bob.call(http.MethodPost, "/api/claims/pickup", map[string]string{"post": postID}, &claim); status != http.StatusCreated {
		t.Fatalf("claim = %d", status)
	}
	if claim.Claim.Status != "Requested" || claim.Claim.ClaimUser != "bob" || claim.Claim.Post == nil || claim.Claim.Post.DonorAddress != "212 Goldenwest" {
		t.Fatalf("unexpected claim %+v", claim.Claim)
	}

	var unclaimed []app.PostView
	bob.call(http.MethodGet, "/api/posts/non-expired-non-claimed", nil, &unclaimed)
	if len(unclaimed) != 0 {
		t.Fatalf("claimed post listed as unclaimed: %+v", unclaimed)
	}
	var tags map[string]any
	if status := bob.call(http.MethodGet, "/api/tags/"+postID, nil, &tags); status != http.StatusOK {
		t.Fatalf("tags = %d", status)
	}

	if status := alice.call(http.MethodDelete, "/api/posts/"+postID, nil, nil); status != http.StatusOK {
		t.Fatalf("delete post = %d", status)
	}
	var after *app.ClaimView
	if status := bob.call(http.MethodGet, "/api/claims/"+postID, nil, &after); status != http.StatusOK || after != nil {
		t.Fatalf("claim after delete = %d %+v", status, after)
	}
	var mine []app.ClaimView
	bob.call(http.MethodGet, "/api/claims", nil, &mine)
	if len(mine) != 0 {
		t.Fatalf("expected no claims left, got %d", len(mine))
	}
}

func TestDeliveryFlow(t *testing.T) {
	ts := newTestServer(t, nil)
	alice, bob, vic := newClient(t, ts), newClient(t, ts), newClient(t, ts)
	alice.signup("alice", "Donor", "212 Goldenwest")
	bob.signup("bob", "Recipient", "")
	vic.signup("vic", "Volunteer", "")

	var created struct {
		Post app.PostView `json:"post"`
	}
	alice.call(http.MethodPost, "/api/posts", map[string]any{
		"food_name":       "Soup",
		"expiration_time": time.Now().Add(time.Hour),
		"quantity":        2,
	}, &created)

	var claim struct {
		Claim app.ClaimView `json:"claim"`
	}
	if status := bob.call(http.MethodPost, "/api/claims/delivery", map[string]string{
		"post": created.Post.ID, "address": "77 Mass Ave", "instructions": "ring",
	}, &claim); status != http.StatusCreated {
		t.Fatalf("delivery claim = %d", status)
	}

	var open []app.ClaimView
	if status := vic.call(http.MethodGet, "/api/deliveries/requests", nil, &open); status != http.StatusOK || len(open) != 1 {
		t.Fatalf("requests = %d %d", status, len(open))
	}

	var accepted struct {
		Delivery app.DeliveryView `json:"delivery"`
	}
	if status := vic.call(http.MethodPost, "/api/deliveries", map[string]string{"request": claim.Claim.ID}, &accepted); status != http.StatusCreated {
		t.Fatalf("accept = %d", status)
	}
	id := accepted.Delivery.ID
	if accepted.Delivery.Status != "Not Started" || accepted.Delivery.Deliverer != "vic" {
		t.Fatalf("unexpected delivery %+v", accepted.Delivery)
	}

	var msg msgBody
	if status := vic.call(http.MethodPost, "/api/deliveries/complete/"+id, nil, &msg); status != http.StatusForbidden {
		t.Fatalf("complete before start = %d %q", status, msg.Msg)
	}
	if status := vic.call(http.MethodPost, "/api/deliveries/start/"+id, nil, nil); status != http.StatusOK {
		t.Fatalf("start = %d", status)
	}
	if status := vic.call(http.MethodPost, "/api/deliveries/complete/"+id, nil, nil); status != http.StatusOK {
		t.Fatalf("complete = %d", status)
	}

	var current *app.DeliveryView
	vic.call(http.MethodGet, "/api/deliveries/status/"+claim.Claim.ID, nil, &current)
	if current == nil || current.Status != "Completed" || current.Request == nil || current.Request.Status != "Completed" {
		t.Fatalf("delivery status = %+v", current)
	}
	var byVic []app.DeliveryView
	bob.call(http.MethodGet, "/api/deliveries?deliverer=vic", nil, &byVic)
	if len(byVic) != 1 {
		t.Fatalf("deliveries by vic = %d", len(byVic))
	}
}

func TestErrorMapping(t *testing.T) {
	ts := newTestServer(t, nil)
	alice, bob := newClient(t, ts), newClient(t, ts)
	alice.signup("alice", "Donor", "212 Goldenwest")
	bob.signup("bob", "Recipient", "")

	cases := []struct {
		name   string
		c      *client
		method string
		path   string
		body   any
		status int
		msg    string
	}{
		{"missing user", bob, http.MethodGet, "/api/users/ghost", nil, http.StatusNotFound, ""},
		{"wrong role", bob, http.MethodPost, "/api/posts", map[string]any{"food_name": "x", "expiration_time": time.Now().Add(time.Hour), "quantity": 1}, http.StatusForbidden, "User is not a Donor!"},
		{"validation", alice, http.MethodPost, "/api/posts", map[string]any{"food_name": "x", "quantity": 1}, http.StatusBadRequest, "expiration_time is required!"},
		{"past expiration", alice, http.MethodPost, "/api/posts", map[string]any{"food_name": "x", "expiration_time": time.Now().Add(-time.Hour), "quantity": 1}, http.StatusForbidden, ""},
		{"empty tag query", bob, http.MethodGet, "/api/tags/items", nil, http.StatusBadRequest, "No tags provided to search for."},
		{"register while logged in", alice, http.MethodPost, "/api/users", map[string]string{"username": "z", "password": "pw", "role": "Recipient"}, http.StatusForbidden, "You must be logged out!"},
		{"missing post", alice, http.MethodDelete, "/api/posts/nope", nil, http.StatusNotFound, "Post does not exist!"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var body msgBody
			status := tc.c.call(tc.method, tc.path, tc.body, &body)
			if status != tc.status {
				t.Fatalf("status = %d, want %d (%q)", status, tc.status, body.Msg)
			}
			if tc.msg != "" && body.Msg != tc.msg {
				t.Fatalf("msg = %q, want %q", body.Msg, tc.msg)
			}
		})
	}
}

func TestMismatchErrorNamesUsers(t *testing.T) {
	ts := newTestServer(t, nil)
	alice, bob := newClient(t, ts), newClient(t, ts)
	alice.signup("alice", "Donor", "212 Goldenwest")
	bob.signup("bob", "Recipient", "")

	var sent struct {
		Message app.MessageView `json:"message"`
	}
	if status := alice.call(http.MethodPost, "/api/messages", map[string]string{"to": "bob", "content": "hi bob"}, &sent); status != http.StatusCreated {
		t.Fatalf("send = %d", status)
	}
	if sent.Message.From != "alice" || sent.Message.To != "bob" {
		t.Fatalf("unexpected message %+v", sent.Message)
	}

	var body msgBody
	if status := bob.call(http.MethodDelete, "/api/messages/"+sent.Message.ID, nil, &body); status != http.StatusForbidden {
		t.Fatalf("delete by receiver = %d", status)
	}
	want := "bob is not the sender of message " + sent.Message.ID + " (sender: alice)!"
	if body.Msg != want {
		t.Fatalf("msg = %q, want %q", body.Msg, want)
	}

	var convo []app.MessageView
	bob.call(http.MethodGet, "/api/messages?otherUser=alice", nil, &convo)
	if len(convo) != 1 || convo[0].Content != "hi bob" {
		t.Fatalf("conversation = %+v", convo)
	}
}

func TestRequestBodyLimit(t *testing.T) {
	ts := newTestServer(t, nil)
	huge := `{"username":"` + strings.Repeat("a", maxBodyBytes+1) + `","password":"pw"}`
	resp, err := http.Post(ts.URL+"/api/login", "application/json", strings.NewReader(huge))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", resp.StatusCode)
	}
}

func TestMalformedJSON(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, err := http.Post(ts.URL+"/api/login", "application/json", strings.NewReader(`{"username":`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestTagRoutes(t *testing.T) {
	ts := newTestServer(t, nil)
	alice := newClient(t, ts)
	alice.signup("alice", "Donor", "212 Goldenwest")

	post := func(food string, tags ...string) string {
		var created struct {
			Post app.PostView `json:"post"`
		}
		status := alice.call(http.MethodPost, "/api/posts", map[string]any{
			"food_name":       food,
			"expiration_time": time.Now().Add(time.Hour),
			"quantity":        1,
			"tags":            tags,
		}, &created)
		if status != http.StatusCreated {
			t.Fatalf("create %s = %d", food, status)
		}
		return created.Post.ID
	}
	bread := post("Bread", "Bakery", "Vegan")
	post("Croissant", "bakery")

	var added struct {
		Msg string `json:"msg"`
	}
	if status := alice.call(http.MethodPost, "/api/tags/"+bread, map[string]string{"tag": "vegan"}, &added); status != http.StatusForbidden {
		t.Fatalf("duplicate tag = %d %q", status, added.Msg)
	}
	if status := alice.call(http.MethodPost, "/api/tags/"+bread, map[string]string{"tag": "Fresh"}, &added); status != http.StatusCreated {
		t.Fatalf("add tag = %d", status)
	}
	// a comma tag could never be found by ?tags=a,b
	if status := alice.call(http.MethodPost, "/api/tags/"+bread, map[string]string{"tag": "gluten,free"}, &added); status != http.StatusBadRequest || !strings.Contains(added.Msg, "must not contain") {
		t.Fatalf("comma tag = %d %q", status, added.Msg)
	}

	var sets []map[string]any
	alice.call(http.MethodGet, "/api/tags/items?tags=BAKERY", nil, &sets)
	if len(sets) != 2 {
		t.Fatalf("bakery items = %d, want 2", len(sets))
	}
	sets = nil
	alice.call(http.MethodGet, "/api/tags/items?tags=bakery,fresh&tags=vegan", nil, &sets)
	if len(sets) != 1 || sets[0]["item"] != bread {
		t.Fatalf("superset query = %+v", sets)
	}

	if status := alice.call(http.MethodDelete, "/api/tags/"+bread+"/fresh", nil, nil); status != http.StatusOK {
		t.Fatalf("delete tag = %d", status)
	}
	if status := alice.call(http.MethodDelete, "/api/tags/"+bread+"/fresh", nil, nil); status != http.StatusNotFound {
		t.Fatalf("delete missing tag = %d", status)
	}
}

func TestOverlongPasswordsAreRejected(t *testing.T) {
	ts := newTestServer(t, nil)
	c := newClient(t, ts)

	var body msgBody
	status := c.call(http.MethodPost, "/api/users", map[string]string{
		"username": "carol", "password": strings.Repeat("p", 73), "role": "Recipient",
	}, &body)
	if status != http.StatusBadRequest || body.Msg != "password must be at most 72 long!" {
		t.Fatalf("ascii overlong = %d %q", status, body.Msg)
	}

	// 72 characters but 144 bytes: passes the length tag, fails the hasher limit
	status = c.call(http.MethodPost, "/api/users", map[string]string{
		"username": "carol", "password": strings.Repeat("é", 72), "role": "Recipient",
	}, &body)
	if status != http.StatusBadRequest || body.Msg != "Password must be at most 72 bytes!" {
		t.Fatalf("multibyte overlong = %d %q", status, body.Msg)
	}

	c.signup("carol", "Recipient", "")
	status = c.call(http.MethodPatch, "/api/users/password", map[string]string{
		"currentPassword": "pw", "newPassword": strings.Repeat("é", 40),
	}, &body)
	if status != http.StatusBadRequest || body.Msg != "Password must be at most 72 bytes!" {
		t.Fatalf("update overlong = %d %q", status, body.Msg)
	}
}
