package utils

import (
	"sync"
	"testing"
	"time"

	"chat-sessions/errors"

	"github.com/stretchr/testify/require"
)

func TestJWT_RoundTrip(t *testing.T) {
	req := require.New(t)

	token, err := GenerateJWT("secret", 7, "alice", time.Hour)
	req.NoError(err)

	uid, uname, err := ParseJWT("secret", token)
	req.NoError(err)
	req.Equal(7, uid)
	req.Equal("alice", uname)
}

func TestJWT_Rejects(t *testing.T) {
	t.Run("wrong secret", func(t *testing.T) {
		token, err := GenerateJWT("secret", 7, "alice", time.Hour)
		require.NoError(t, err)
		_, _, err = ParseJWT("other", token)
		require.ErrorIs(t, err, errors.ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := GenerateJWT("secret", 7, "alice", -time.Minute)
		require.NoError(t, err)
		_, _, err = ParseJWT("secret", token)
		require.ErrorIs(t, err, errors.ErrInvalidToken)
	})

	t.Run("empty", func(t *testing.T) {
		_, _, err := ParseJWT("secret", "")
		require.ErrorIs(t, err, errors.ErrInvalidToken)
	})
}

func TestNewSessionID(t *testing.T) {
	req := require.New(t)
	seen := make(map[string]struct{})
	for range 200 {
		id, err := NewSessionID()
		req.NoError(err)
		req.True(IsSessionID(id), id)
		seen[id] = struct{}{}
	}
	req.Len(seen, 200)
	req.False(IsSessionID("abc"))
	req.False(IsSessionID("abcdefghij"))
}

func TestKeyedMutex_SerializesPerKey(t *testing.T) {
	req := require.New(t)
	km := NewKeyedMutex()

	var wg sync.WaitGroup
	counter := 0
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("session")
			defer unlock()
			v := counter
			time.Sleep(time.Microsecond)
			counter = v + 1
		}()
	}
	wg.Wait()

	req.Equal(50, counter)
	req.Equal(0, km.Len())
}

func TestKeyedMutex_IndependentKeys(t *testing.T) {
	km := NewKeyedMutex()
	unlockA := km.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := km.Lock("b")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b blocked behind a")
	}
}
