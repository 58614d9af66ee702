package repository

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/common"
	"github.com/dmitrijs2005/gophsync/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveScope(t *testing.T) {
	sess := session.Static{User: session.User{ID: "u1", CompanyID: "c1"}}

	s, err := ResolveScope(sess, Meta{})
	require.NoError(t, err)
	assert.Equal(t, Scope{}, s)

	s, err = ResolveScope(sess, Meta{HasCompanyScope: true, HasUserScope: true})
	require.NoError(t, err)
	assert.Equal(t, Scope{CompanyID: "c1", UserID: "u1"}, s)

	s, err = ResolveScope(sess, Meta{HasUserScope: true})
	require.NoError(t, err)
	assert.Equal(t, Scope{UserID: "u1"}, s)
}

func TestResolveScope_UnscopedNeverTouchesSession(t *testing.T) {
	s, err := ResolveScope(session.Anonymous, Meta{})
	require.NoError(t, err)
	assert.Equal(t, Scope{}, s)

	_, err = ResolveScope(session.Anonymous, Meta{HasCompanyScope: true})
	require.ErrorIs(t, err, common.ErrNoSession)
}

func TestNanoTimeRoundTrip(t *testing.T) {
	assert.Nil(t, NanoTime(nil))
	assert.Nil(t, FromNano(nil))

	ts := time.Date(2024, 5, 6, 7, 8, 9, 123456789, time.UTC)
	n := NanoTime(&ts).(int64)
	back := FromNano(&n)
	require.NotNil(t, back)
	assert.True(t, back.Equal(ts))
}

func TestClock(t *testing.T) {
	fixed := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, fixed, Clock(func() time.Time { return fixed }).Now())

	var c Clock
	assert.WithinDuration(t, time.Now(), c.Now(), time.Minute)
}
