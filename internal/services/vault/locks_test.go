package vault

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUserLocks_ReleasedEntriesAreDropped(t *testing.T) {
	var l userLocks
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.lock("PrivateKey_student_alice")
			counter++
			unlock()
		}()
	}
	wg.Wait()
	require.Equal(t, 50, counter)
	require.Zero(t, l.size())
}
