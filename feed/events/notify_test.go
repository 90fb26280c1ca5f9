package events

import (
	"context"
	"errors"
	"testing"

	"github.com/chl3608/anchore-engine/feed"
	testlog "github.com/chl3608/anchore-engine/test/log"
)

type fakeClient struct {
	submitted []feed.Event
	err       error
}

func (f *fakeClient) AddEvent(ctx context.Context, event feed.Event) error {
	f.submitted = append(f.submitted, event)
	return f.err
}

func TestNotifyWithClient(t *testing.T) {
	ctx, done := testlog.TestLogger(context.Background(), t)
	defer done()

	c := &fakeClient{}
	ev := feed.Event{Kind: feed.EventGroupSyncStarted, Feed: "vulnerabilities", Group: "debian:10"}
	Notify(ctx, ev, c)

	if len(c.submitted) != 1 {
		t.Fatalf("got %d submissions, want 1", len(c.submitted))
	}
	if c.submitted[0] != ev {
		t.Errorf("got %+v, want %+v", c.submitted[0], ev)
	}
}

// TestNotifySwallowsSubmitError asserts that a client error never
// propagates: events are best-effort.
func TestNotifySwallowsSubmitError(t *testing.T) {
	ctx, done := testlog.TestLogger(context.Background(), t)
	defer done()

	c := &fakeClient{err: errors.New("catalog unreachable")}
	Notify(ctx, feed.Event{Kind: feed.EventGroupSyncFailed, Feed: "vulnerabilities", Group: "debian:10"}, c)
	// Reaching this line without panicking/failing is the assertion.
}

func TestNotifyWithoutClient(t *testing.T) {
	ctx, done := testlog.TestLogger(context.Background(), t)
	defer done()

	// No client configured: Notify must log rather than panic on a nil
	// EventClient.
	Notify(ctx, feed.Event{Kind: feed.EventGroupSyncCompleted, Feed: "packages", Group: "gem"}, nil)
}
