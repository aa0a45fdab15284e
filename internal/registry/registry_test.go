package registry

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	buspkg "github.com/Divarin/Community-sub002/internal/bus"
	"github.com/Divarin/Community-sub002/internal/models"
	"github.com/Divarin/Community-sub002/internal/session"
	"github.com/Divarin/Community-sub002/internal/terminal"
)

type fakeConn struct {
	io.Reader
	io.Writer
	host string
}

func (c *fakeConn) Close() error       { return nil }
func (c *fakeConn) RemoteHost() string { return c.host }
func (c *fakeConn) Healthy() bool      { return true }

func newTestSession(host string) *session.Session {
	conn := &fakeConn{Reader: strings.NewReader(""), Writer: &bytes.Buffer{}, host: host}
	term := terminal.NewANSI(conn)
	limits := session.Limits{LoginTimeout: time.Minute, IdleTimeout: time.Hour, AfkAfter: time.Hour}
	return session.New(conn, term, buspkg.New(zap.NewNop()), limits, zap.NewNop())
}

func TestAddEnforcesGlobalLimit(t *testing.T) {
	r := New(Limits{MaxTotal: 2})

	require.NoError(t, r.Add(newTestSession("10.0.0.1")))
	require.NoError(t, r.Add(newTestSession("10.0.0.2")))

	err := r.Add(newTestSession("10.0.0.3"))
	require.Error(t, err)
	var capErr *CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, ScopeGlobal, capErr.Scope)
	assert.Equal(t, 2, capErr.Limit)
	assert.Equal(t, 2, r.Len())
}

func TestAddEnforcesAddressLimit(t *testing.T) {
	r := New(Limits{MaxPerAddress: 1})

	require.NoError(t, r.Add(newTestSession("10.0.0.1")))
	require.NoError(t, r.Add(newTestSession("10.0.0.2")))

	err := r.Add(newTestSession("10.0.0.1"))
	var capErr *CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, ScopeAddress, capErr.Scope)
}

func TestAuthorizeUserCountsSiblings(t *testing.T) {
	r := New(Limits{MaxPerUser: 1})

	first := newTestSession("10.0.0.1")
	require.NoError(t, r.Add(first))
	require.NoError(t, r.AuthorizeUser(first, 7))
	first.SetUser(&models.User{ID: 7, Name: "alice"})

	second := newTestSession("10.0.0.2")
	require.NoError(t, r.Add(second))

	err := r.AuthorizeUser(second, 7)
	var capErr *CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, ScopeUser, capErr.Scope)

	// a different account on the same connection count is fine
	require.NoError(t, r.AuthorizeUser(second, 8))
}

func TestRemoveFreesCapacity(t *testing.T) {
	r := New(Limits{MaxTotal: 1})

	s := newTestSession("10.0.0.1")
	require.NoError(t, r.Add(s))
	require.Error(t, r.Add(newTestSession("10.0.0.2")))

	r.Remove(s)
	assert.Equal(t, 0, r.Len())
	require.NoError(t, r.Add(newTestSession("10.0.0.2")))
}

func TestForUserAndInChannel(t *testing.T) {
	r := New(Limits{})

	a := newTestSession("10.0.0.1")
	a.SetUser(&models.User{ID: 1, Name: "alice"})
	a.SetChannel(&models.Channel{ID: 3, Name: "general"}, nil, nil, 0)
	b := newTestSession("10.0.0.2")
	b.SetUser(&models.User{ID: 2, Name: "bob"})

	require.NoError(t, r.Add(a))
	require.NoError(t, r.Add(b))

	require.Len(t, r.ForUser(1), 1)
	assert.Equal(t, a.ID(), r.ForUser(1)[0].ID())
	assert.Empty(t, r.ForUser(9))

	require.Len(t, r.InChannel(3), 1)
	assert.Empty(t, r.InChannel(4))
}

func TestZeroLimitsMeanUnlimited(t *testing.T) {
	r := New(Limits{})
	for i := 0; i < 10; i++ {
		require.NoError(t, r.Add(newTestSession("10.0.0.1")))
	}
	s := newTestSession("10.0.0.1")
	require.NoError(t, r.Add(s))
	require.NoError(t, r.AuthorizeUser(s, 1))
}
