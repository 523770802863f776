package poller

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedClient struct {
	responses []*Status
	errs      []error
	calls     int
}

func (c *scriptedClient) GetStatus(_ context.Context, jobID string) (*Status, error) {
	i := c.calls
	c.calls++
	if i < len(c.errs) && c.errs[i] != nil {
		return nil, c.errs[i]
	}
	if i >= len(c.responses) {
		return &Status{JobID: jobID, State: StateProcessing}, nil
	}
	st := *c.responses[i]
	st.JobID = jobID
	return &st, nil
}

type recordingSleeper struct {
	delays []time.Duration
}

func (r *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPolicy_DelayGrowsAndCaps(t *testing.T) {
	p := Policy{Interval: time.Second, Factor: 2, MaxDelay: 10 * time.Second}

	got := []time.Duration{p.Delay(1), p.Delay(2), p.Delay(3), p.Delay(4), p.Delay(5)}
	assert.Equal(t, []time.Duration{
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		10 * time.Second,
		10 * time.Second,
	}, got)
}

func TestPolicy_DelayNonDecreasing(t *testing.T) {
	p := Policy{Interval: 3 * time.Second, Factor: 1.5, MaxDelay: 30 * time.Second}

	prev := time.Duration(0)
	for n := 1; n <= 20; n++ {
		d := p.Delay(n)
		assert.GreaterOrEqual(t, d, prev, "poll %d", n)
		assert.LessOrEqual(t, d, 30*time.Second)
		prev = d
	}
	assert.Equal(t, 4500*time.Millisecond, p.Delay(1))
}

func TestPolicy_NoCapWhenMaxDelayZero(t *testing.T) {
	p := Policy{Interval: time.Second, Factor: 3}
	assert.Equal(t, 27*time.Second, p.Delay(3))
}

func TestPoll_CompletedReturnsPayload(t *testing.T) {
	payload := json.RawMessage(`{"status":"completed","text":"hi"}`)
	client := &scriptedClient{responses: []*Status{
		{State: StateQueued},
		{State: StateProcessing},
		{State: StateCompleted, Payload: payload},
	}}
	s := &recordingSleeper{}
	p := New(client, Policy{Interval: time.Second, Factor: 2, MaxDelay: 3 * time.Second, MaxAttempts: 10}, quietLogger(), WithSleeper(s.sleep))

	st, err := p.Poll(context.Background(), "job-1")

	require.NoError(t, err)
	assert.Equal(t, StateCompleted, st.State)
	assert.JSONEq(t, string(payload), string(st.Payload))
	assert.Equal(t, 3, client.calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 3 * time.Second}, s.delays)
}

func TestPoll_RemoteFailure(t *testing.T) {
	client := &scriptedClient{responses: []*Status{
		{State: StateProcessing},
		{State: StateFailed, Error: "audio too short"},
	}}
	p := New(client, Policy{Interval: time.Millisecond, Factor: 1, MaxAttempts: 5}, quietLogger(), WithSleeper((&recordingSleeper{}).sleep))

	_, err := p.Poll(context.Background(), "job-2")

	var remote *RemoteFailureError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "audio too short", remote.Detail)
	var timeout *TimeoutError
	assert.False(t, errors.As(err, &timeout))
}

func TestPoll_TimeoutIsDistinct(t *testing.T) {
	client := &scriptedClient{}
	s := &recordingSleeper{}
	p := New(client, Policy{Interval: time.Second, Factor: 1, MaxAttempts: 3}, quietLogger(), WithSleeper(s.sleep))

	_, err := p.Poll(context.Background(), "job-3")

	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, 3, timeout.Attempts)
	assert.Equal(t, StateProcessing, timeout.LastState)
	var remote *RemoteFailureError
	assert.False(t, errors.As(err, &remote))
	assert.Equal(t, 3, client.calls)
	assert.Len(t, s.delays, 2)
}

func TestPoll_QueryErrorsCountAsPolls(t *testing.T) {
	netErr := errors.New("connection reset")
	client := &scriptedClient{
		errs:      []error{netErr, nil},
		responses: []*Status{nil, {State: StateCompleted}},
	}
	p := New(client, Policy{Interval: time.Millisecond, Factor: 1, MaxAttempts: 3}, quietLogger(), WithSleeper((&recordingSleeper{}).sleep))

	st, err := p.Poll(context.Background(), "job-4")

	require.NoError(t, err)
	assert.Equal(t, StateCompleted, st.State)
	assert.Equal(t, 2, client.calls)
}

func TestPoll_TimeoutKeepsLastQueryError(t *testing.T) {
	netErr := errors.New("dns failure")
	client := &scriptedClient{errs: []error{netErr, netErr}}
	p := New(client, Policy{Interval: time.Millisecond, Factor: 1, MaxAttempts: 2}, quietLogger(), WithSleeper((&recordingSleeper{}).sleep))

	_, err := p.Poll(context.Background(), "job-5")

	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.ErrorIs(t, err, netErr)
}

func TestPoll_OnPollCallback(t *testing.T) {
	client := &scriptedClient{responses: []*Status{{State: StateQueued}, {State: StateCompleted}}}
	var seen []RemoteState
	p := New(client, Policy{Interval: time.Millisecond, Factor: 1, MaxAttempts: 5}, quietLogger(),
		WithSleeper((&recordingSleeper{}).sleep),
		WithOnPoll(func(_ string, _ int, state RemoteState) { seen = append(seen, state) }))

	_, err := p.Poll(context.Background(), "job-6")

	require.NoError(t, err)
	assert.Equal(t, []RemoteState{StateQueued, StateCompleted}, seen)
}

// emptyThenClient returns (nil, nil) for the first n calls and then completes.
type emptyThenClient struct {
	n     int
	calls int
}

func (c *emptyThenClient) GetStatus(_ context.Context, jobID string) (*Status, error) {
	c.calls++
	if c.calls <= c.n {
		return nil, nil
	}
	return &Status{JobID: jobID, State: StateCompleted}, nil
}

func TestPoll_EmptyStatusCountsAsQueryError(t *testing.T) {
	client := &emptyThenClient{n: 1}
	p := New(client, Policy{Interval: time.Millisecond, Factor: 1, MaxAttempts: 3}, quietLogger(), WithSleeper((&recordingSleeper{}).sleep))

	st, err := p.Poll(context.Background(), "job-7")

	require.NoError(t, err)
	assert.Equal(t, StateCompleted, st.State)
	assert.Equal(t, 2, client.calls)
}

func TestPoll_OnlyEmptyStatusesTimeOut(t *testing.T) {
	client := &emptyThenClient{n: 5}
	p := New(client, Policy{Interval: time.Millisecond, Factor: 1, MaxAttempts: 2}, quietLogger(), WithSleeper((&recordingSleeper{}).sleep))

	_, err := p.Poll(context.Background(), "job-8")

	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.ErrorIs(t, err, ErrEmptyStatus)
	assert.Equal(t, 2, client.calls)
}
