package subs

import (
	"reflect"
	"testing"

	"coinflow/models"
)

func testArgs() []models.SubscriptionArg {
	return []models.SubscriptionArg{
		{Channel: models.ChannelLevel2, InstID: "BTCUSDT"},
		{Channel: models.ChannelTicker, InstID: "BTCUSDT"},
		{Channel: models.ChannelTrades, InstID: "BTCUSDT"},
	}
}

func TestSubscribeFrameShape(t *testing.T) {
	c := New(testArgs())
	frame := c.SubscribeFrame()
	if frame.Op != models.OpSubscribe {
		t.Fatalf("unexpected op %q", frame.Op)
	}
	if len(frame.Args) != 3 {
		t.Fatalf("expected 3 args, got %d", len(frame.Args))
	}

	unsub := c.UnsubscribeFrame()
	if unsub.Op != models.OpUnsubscribe {
		t.Fatalf("unexpected op %q", unsub.Op)
	}
	if !reflect.DeepEqual(frame.Args, unsub.Args) {
		t.Fatalf("unsubscribe args differ from subscribe args")
	}
}

func TestReplayReproducesIdenticalFrame(t *testing.T) {
	c := New(testArgs())
	first := c.SubscribeFrame()
	replay := c.SubscribeFrame()
	if !reflect.DeepEqual(first, replay) {
		t.Fatalf("replayed frame differs: %+v vs %+v", first, replay)
	}
}

func TestControllerCopiesInput(t *testing.T) {
	args := testArgs()
	c := New(args)
	args[0].InstID = "ETHUSDT"

	got := c.Args()
	if got[0].InstID != "BTCUSDT" {
		t.Fatalf("controller aliased caller slice: %+v", got[0])
	}

	got[1].InstID = "ETHUSDT"
	if c.Args()[1].InstID != "BTCUSDT" {
		t.Fatalf("Args exposed internal slice")
	}
}
