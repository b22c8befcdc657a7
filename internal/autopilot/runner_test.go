package autopilot

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3-frozen/yield-optimizer/internal/client"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type seqRemote struct {
	mu      sync.Mutex
	results []client.SimulateResult
	err     error
	calls   int
}

func (s *seqRemote) Simulate(_ context.Context, _ string) (client.SimulateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return client.SimulateResult{}, s.err
	}
	i := s.calls - 1
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	return s.results[i], nil
}

func (s *seqRemote) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type blockingRemote struct {
	calls   atomic.Int32
	release chan struct{}
}

func (b *blockingRemote) Simulate(_ context.Context, _ string) (client.SimulateResult, error) {
	b.calls.Add(1)
	<-b.release
	return client.SimulateResult{Protocol: "late", APY: 9}, nil
}

func newRunner(remote RemoteSimulator, wallet Wallet) *Runner {
	return New(remote, wallet, Options{Interval: tick})
}

func TestRunnerRecordsSwitches(t *testing.T) {
	remote := &seqRemote{results: []client.SimulateResult{
		{Protocol: "aave", APY: 5.8, Rewards: 1.59, PreviousProtocol: "compound"},
		{Protocol: "aave", APY: 5.8, Rewards: 1.59, PreviousProtocol: "compound"},
		{Protocol: "yearn", APY: 7.2, Rewards: 1.97, PreviousProtocol: "aave"},
	}}
	r := newRunner(remote, StaticWallet("0xabc"))
	require.True(t, r.Start(context.Background()))
	require.Eventually(t, func() bool { return r.Snapshot().Polls >= 4 }, waitFor, tick)
	r.Stop()
	<-r.Done()

	snap := r.Snapshot()
	assert.False(t, snap.Running)
	assert.Equal(t, "0xabc", snap.Wallet)
	assert.Equal(t, "yearn", snap.Protocol)
	assert.Equal(t, 1, snap.Switches)
	require.Len(t, snap.History, 1)
	assert.Equal(t, "aave", snap.History[0].From)
	assert.Equal(t, "yearn", snap.History[0].To)
	assert.InDelta(t, 1.97, snap.TotalRewards, 1e-9)
}

func TestRunnerHistoryIsBounded(t *testing.T) {
	names := []string{"aave", "yearn"}
	var results []client.SimulateResult
	for i := 0; i < historySize+10; i++ {
		results = append(results, client.SimulateResult{
			Protocol:         names[i%2],
			PreviousProtocol: names[(i+1)%2],
			Rewards:          1,
		})
	}
	remote := &seqRemote{results: results}
	r := newRunner(remote, StaticWallet("0xabc"))
	require.True(t, r.Start(context.Background()))
	require.Eventually(t, func() bool { return r.Snapshot().Switches == len(results)-1 }, waitFor, tick)
	r.Stop()
	<-r.Done()

	snap := r.Snapshot()
	require.Len(t, snap.History, historySize)
	last := results[len(results)-1]
	assert.Equal(t, last.Protocol, snap.History[0].To)
	assert.InDelta(t, float64(len(results)-1), snap.TotalRewards, 1e-9)
}

func TestRunnerFirstPollIsNotASwitch(t *testing.T) {
	remote := &seqRemote{results: []client.SimulateResult{{Protocol: "yearn", PreviousProtocol: "aave", Rewards: 2}}}
	r := New(remote, StaticWallet("0xabc"), Options{Interval: time.Hour})
	r.Start(context.Background())
	require.Eventually(t, func() bool { return r.Snapshot().Polls == 1 }, waitFor, tick)
	r.Stop()
	<-r.Done()

	snap := r.Snapshot()
	assert.Equal(t, 0, snap.Switches)
	assert.Empty(t, snap.History)
	assert.Zero(t, snap.TotalRewards)
}

func TestRunnerWalletUnavailableStops(t *testing.T) {
	remote := &seqRemote{results: []client.SimulateResult{{Protocol: "aave"}}}
	r := newRunner(remote, StaticWallet(""))
	r.Start(context.Background())

	select {
	case <-r.Done():
	case <-time.After(waitFor):
		t.Fatal("runner did not stop after wallet error")
	}
	snap := r.Snapshot()
	assert.False(t, snap.Running)
	assert.Contains(t, snap.LastError, ErrWalletUnavailable.Error())
	assert.Equal(t, 0, remote.Calls())
}

func TestRunnerKeepsPollingOnRemoteError(t *testing.T) {
	remote := &seqRemote{err: errors.New("connection refused")}
	r := newRunner(remote, StaticWallet("0xabc"))
	r.Start(context.Background())
	require.Eventually(t, func() bool { return remote.Calls() >= 3 }, waitFor, tick)

	assert.True(t, r.Running())
	assert.Equal(t, "connection refused", r.Snapshot().LastError)
	r.Stop()
	<-r.Done()
}

func TestRunnerSkipsWhileInFlightAndDropsLateResult(t *testing.T) {
	remote := &blockingRemote{release: make(chan struct{})}
	r := New(remote, StaticWallet("0xabc"), Options{Interval: time.Millisecond})
	r.Start(context.Background())

	require.Eventually(t, func() bool { return remote.calls.Load() == 1 }, waitFor, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), remote.calls.Load())

	r.Stop()
	close(remote.release)
	<-r.Done()

	snap := r.Snapshot()
	assert.Equal(t, 0, snap.Polls)
	assert.Empty(t, snap.Protocol)
}

func TestRunnerStartStopIdempotent(t *testing.T) {
	remote := &seqRemote{results: []client.SimulateResult{{Protocol: "aave"}}}
	r := New(remote, StaticWallet("0xabc"), Options{Interval: time.Hour})

	r.Stop()
	assert.True(t, r.Start(context.Background()))
	assert.False(t, r.Start(context.Background()))
	assert.True(t, r.Running())
	r.Stop()
	r.Stop()
	assert.False(t, r.Running())
	<-r.Done()
}

func TestRunnerRestartResetsHistory(t *testing.T) {
	remote := &seqRemote{results: []client.SimulateResult{
		{Protocol: "aave"}, {Protocol: "yearn", Rewards: 1},
	}}
	r := newRunner(remote, StaticWallet("0xabc"))
	r.Start(context.Background())
	require.Eventually(t, func() bool { return r.Snapshot().Switches == 1 }, waitFor, tick)
	r.Stop()
	<-r.Done()

	r.Start(context.Background())
	snap := r.Snapshot()
	assert.Equal(t, 0, snap.Switches)
	r.Stop()
	<-r.Done()
}
