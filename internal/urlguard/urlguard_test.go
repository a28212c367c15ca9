package urlguard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		url     string
		blocked bool
	}{
		{name: "public https", url: "https://example.com/article", blocked: false},
		{name: "public http", url: "http://example.com", blocked: false},
		{name: "public ip", url: "http://93.184.216.34/", blocked: false},
		{name: "ftp scheme", url: "ftp://example.com/file", blocked: true},
		{name: "file scheme", url: "file:///etc/passwd", blocked: true},
		{name: "no scheme", url: "example.com/page", blocked: true},
		{name: "localhost", url: "http://localhost:8080/admin", blocked: true},
		{name: "loopback", url: "http://127.0.0.1/", blocked: true},
		{name: "private 10/8", url: "http://10.1.2.3/", blocked: true},
		{name: "private 192.168/16", url: "https://192.168.0.10/x", blocked: true},
		{name: "link local metadata", url: "http://169.254.169.254/latest", blocked: true},
		{name: "ipv6 loopback", url: "http://[::1]/", blocked: true},
		{name: "ipv4 mapped loopback", url: "http://[::ffff:127.0.0.1]/", blocked: true},
		{name: "unparseable", url: "http://%zz", blocked: true},
	}

	g := New(Config{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := g.Check(tt.url)
			if tt.blocked {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrBlocked)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCheckAllowPrivate(t *testing.T) {
	t.Parallel()

	g := New(Config{AllowPrivate: true})
	assert.NoError(t, g.Check("http://127.0.0.1:9000/page"))
	assert.NoError(t, g.Check("http://localhost/page"))
	assert.ErrorIs(t, g.Check("gopher://127.0.0.1/"), ErrBlocked)
}

func TestCheckBlockedDomains(t *testing.T) {
	t.Parallel()

	g := New(Config{AllowPrivate: true, BlockedDomains: []string{" Paywall.example ", "*.spam.test", ".tracker.test", ""}})

	tests := []struct {
		url     string
		blocked bool
	}{
		{url: "https://paywall.example/article", blocked: true},
		{url: "https://www.paywall.example/article", blocked: false},
		{url: "https://spam.test/", blocked: true},
		{url: "https://a.b.spam.test/", blocked: true},
		{url: "https://notspam.test/", blocked: false},
		{url: "http://pixel.tracker.test/x.gif", blocked: true},
		{url: "https://example.com/", blocked: false},
	}
	for _, tt := range tests {
		err := g.Check(tt.url)
		if tt.blocked {
			assert.ErrorIs(t, err, ErrBlocked, tt.url)
			continue
		}
		assert.NoError(t, err, tt.url)
	}
}

func TestEmptyBlocklistIsNil(t *testing.T) {
	t.Parallel()

	assert.Nil(t, newDomainBlocklist([]string{" ", "*.", "."}))
	var b *domainBlocklist
	assert.False(t, b.match("example.com"))
}
