package impl

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWriteSerializerDeliversEveryRecord(t *testing.T) {
	var mu sync.Mutex
	var got []string
	groups := 0
	ws := newWriteSerializer(func(records [][]byte, sync bool) error {
		mu.Lock()
		defer mu.Unlock()
		groups++
		for _, r := range records {
			got = append(got, string(r))
		}
		return nil
	})
	ws.Run()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if err := ws.Write([]byte(fmt.Sprintf("%d-%d", w, i)), i%3 == 0); err != nil {
					t.Error(err)
				}
			}
		}(w)
	}
	wg.Wait()
	ws.Close()

	require.Len(t, got, 400)
	require.LessOrEqual(t, groups, 400)
}

func TestWriteSerializerGroupsWaitingWriters(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var groupSizes []int
	var syncs []bool
	errApply := errors.New("apply failed")

	ws := newWriteSerializer(func(records [][]byte, sync bool) error {
		groupSizes = append(groupSizes, len(records))
		syncs = append(syncs, sync)
		if len(groupSizes) == 1 {
			close(started)
			<-release
			return nil
		}
		return errApply
	})
	ws.Run()

	first := make(chan error, 1)
	go func() { first <- ws.Write([]byte("first"), true) }()
	<-started

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = ws.Write([]byte("later"), false)
		}(i)
	}
	// let the writers queue up behind the first group
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	require.NoError(t, <-first)
	ws.Close()

	// the error of a group reaches each of its writers
	for _, err := range errs {
		require.ErrorIs(t, err, errApply)
	}
	require.True(t, syncs[0])
	for _, s := range syncs[1:] {
		require.False(t, s)
	}
	total := 0
	for _, n := range groupSizes[1:] {
		total += n
	}
	require.Equal(t, 3, total)
}
