package isapi

import (
	"fmt"
	"strings"
	"testing"

	"github.com/schoolpass/registrator/internal/store"
)

func testClient() *Client {
	return NewClient(store.Device{
		ID:       "test",
		Host:     "10.0.0.5",
		Port:     80,
		Username: "admin",
		Password: "secret12",
	})
}

func TestParseDigestChallenge(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   *digestChallenge
	}{
		{
			name:   "full challenge",
			header: `Digest realm="IP Camera", nonce="abc123", qop="auth", opaque="xyz", algorithm=MD5`,
			want:   &digestChallenge{realm: "IP Camera", nonce: "abc123", qop: "auth", opaque: "xyz", algorithm: "MD5"},
		},
		{
			name:   "comma inside quoted value",
			header: `Digest realm="Door, East Wing", nonce="n1"`,
			want:   &digestChallenge{realm: "Door, East Wing", nonce: "n1"},
		},
		{
			name:   "minimal challenge",
			header: `Digest realm="dev", nonce="n"`,
			want:   &digestChallenge{realm: "dev", nonce: "n"},
		},
		{
			name:   "basic scheme",
			header: `Basic realm="dev"`,
			want:   nil,
		},
		{
			name:   "missing nonce",
			header: `Digest realm="dev"`,
			want:   nil,
		},
		{
			name:   "empty header",
			header: "",
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseDigestChallenge(tt.header)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("parseDigestChallenge() = %+v, want %+v", got, tt.want)
			}
			if got != nil && *got != *tt.want {
				t.Errorf("parseDigestChallenge() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

// authParams parses the key=value pairs of a Digest Authorization header.
func authParams(t *testing.T, header string) map[string]string {
	t.Helper()
	rest, ok := strings.CutPrefix(header, "Digest ")
	if !ok {
		t.Fatalf("not a digest header: %q", header)
	}
	params := make(map[string]string)
	for _, item := range strings.Split(rest, ", ") {
		key, value, found := strings.Cut(item, "=")
		if !found {
			t.Fatalf("malformed parameter %q in %q", item, header)
		}
		params[key] = strings.Trim(value, `"`)
	}
	return params
}

func TestBuildDigestAuthorizationWithoutQop(t *testing.T) {
	c := testClient()
	ch := &digestChallenge{realm: "device", nonce: "nonce1"}

	header, err := c.buildDigestAuthorization("GET", "http://10.0.0.5/ISAPI/System/deviceInfo?format=json", ch)
	if err != nil {
		t.Fatalf("buildDigestAuthorization() error = %v", err)
	}

	params := authParams(t, header)
	ha1 := md5Hex("admin:device:secret12")
	ha2 := md5Hex("GET:/ISAPI/System/deviceInfo?format=json")
	want := md5Hex(fmt.Sprintf("%s:%s:%s", ha1, "nonce1", ha2))
	if params["response"] != want {
		t.Errorf("response = %s, want %s", params["response"], want)
	}
	if params["uri"] != "/ISAPI/System/deviceInfo?format=json" {
		t.Errorf("uri = %s, want path with query", params["uri"])
	}
	if _, hasQop := params["qop"]; hasQop {
		t.Error("qop emitted for a challenge without qop")
	}
}

func TestBuildDigestAuthorizationWithQop(t *testing.T) {
	c := testClient()
	ch := &digestChallenge{realm: "device", nonce: "nonce1", qop: "auth", opaque: "op"}

	header, err := c.buildDigestAuthorization("POST", "http://10.0.0.5/ISAPI/AccessControl/UserInfo/Record?format=json", ch)
	if err != nil {
		t.Fatalf("buildDigestAuthorization() error = %v", err)
	}

	params := authParams(t, header)
	if params["nc"] != "00000001" {
		t.Errorf("nc = %s, want 00000001", params["nc"])
	}
	if params["cnonce"] == "" {
		t.Fatal("cnonce missing")
	}
	if params["opaque"] != "op" {
		t.Errorf("opaque = %s, want op", params["opaque"])
	}

	ha1 := md5Hex("admin:device:secret12")
	ha2 := md5Hex("POST:/ISAPI/AccessControl/UserInfo/Record?format=json")
	want := md5Hex(fmt.Sprintf("%s:%s:%s:%s:%s:%s", ha1, "nonce1", "00000001", params["cnonce"], "auth", ha2))
	if params["response"] != want {
		t.Errorf("response = %s, want %s", params["response"], want)
	}
}

func TestBuildDigestAuthorizationQopPickedFromList(t *testing.T) {
	c := testClient()
	ch := &digestChallenge{realm: "device", nonce: "n", qop: "auth-int, auth"}

	header, err := c.buildDigestAuthorization("GET", "http://10.0.0.5/x", ch)
	if err != nil {
		t.Fatalf("buildDigestAuthorization() error = %v", err)
	}
	if params := authParams(t, header); params["qop"] != "auth" {
		t.Errorf("qop = %s, want auth", params["qop"])
	}
}

func TestBuildDigestAuthorizationRejectsUnsupportedAlgorithm(t *testing.T) {
	c := testClient()
	ch := &digestChallenge{realm: "device", nonce: "n", algorithm: "SHA-256"}

	_, err := c.buildDigestAuthorization("GET", "http://10.0.0.5/x", ch)
	if err == nil {
		t.Fatal("expected error for SHA-256 challenge")
	}
	if !strings.Contains(err.Error(), "Unsupported digest algorithm: SHA-256") {
		t.Errorf("error = %q, want unsupported-algorithm message", err)
	}
}
