package control

import (
	"context"
	"errors"
	"testing"

	"pressbot/pkg/bindings"
	"pressbot/pkg/config"
	"pressbot/pkg/models"
	"pressbot/pkg/platform"
	"pressbot/pkg/stats"
	"pressbot/pkg/store"
)

var testAssets = []config.AssetConfig{
	{Name: "classic", Label: "Press", Style: "primary", File: "assets/classic.png"},
	{Name: "spicy", Label: "Press (spicy)", Style: "danger", File: "assets/spicy.png"},
}

func assetNames() []string {
	out := make([]string, len(testAssets))
	for i, a := range testAssets {
		out[i] = a.Name
	}
	return out
}

type fixture struct {
	bindings  *bindings.Store
	counter   *stats.Counter
	client    *platform.Memory
	lifecycle *Lifecycle
}

func setup(t *testing.T) *fixture {
	t.Helper()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	f := &fixture{
		bindings: bindings.NewStore(),
		counter:  stats.New(assetNames()),
		client:   platform.NewMemory(),
	}
	f.lifecycle = NewLifecycle(f.bindings, f.counter, f.client, testAssets)
	return f
}

// bind provisions an endpoint, persists a binding and arms the channel.
func (f *fixture) bind(t *testing.T, community, channelID string) models.ChannelBinding {
	t.Helper()
	ctx := context.Background()
	ep, err := f.client.CreateEndpoint(ctx, channelID, "press-to-post")
	if err != nil {
		t.Fatalf("CreateEndpoint: %v", err)
	}
	b, err := f.bindings.Create(community, channelID, ep.ID, ep.Token)
	if err != nil {
		t.Fatalf("Create binding: %v", err)
	}
	if _, err := f.lifecycle.CreateControl(ctx, community, b); err != nil {
		t.Fatalf("CreateControl: %v", err)
	}
	b, err = f.bindings.Get(community, channelID)
	if err != nil {
		t.Fatalf("Get binding: %v", err)
	}
	return b
}

func TestCustomIDRoundTrip(t *testing.T) {
	id := BuildCustomID("classic", "chan-7")
	asset, channel, ok := ParseCustomID(id)
	if !ok || asset != "classic" || channel != "chan-7" {
		t.Fatalf("ParseCustomID(%q) = %q, %q, %v", id, asset, channel, ok)
	}
	if _, _, ok := ParseCustomID("something:else"); ok {
		t.Fatalf("ParseCustomID accepted a foreign id")
	}
	if _, _, ok := ParseCustomID("press:only-two"); ok {
		t.Fatalf("ParseCustomID accepted a two-part id")
	}
}

func TestCreateControlArmsChannel(t *testing.T) {
	f := setup(t)
	b := f.bind(t, "guild", "chan-1")

	if !b.HasControl() {
		t.Fatalf("binding has no control after CreateControl")
	}
	if n := f.client.MessageCount("chan-1"); n != 1 {
		t.Fatalf("channel has %d messages, want 1", n)
	}
	msg, err := f.client.FetchMessage(context.Background(), "chan-1", b.ControlMessageID)
	if err != nil {
		t.Fatalf("FetchMessage: %v", err)
	}
	if len(msg.Buttons) != len(testAssets) {
		t.Fatalf("control has %d buttons, want %d", len(msg.Buttons), len(testAssets))
	}
	if msg.Buttons[0].CustomID != BuildCustomID("classic", "chan-1") {
		t.Fatalf("button id = %q", msg.Buttons[0].CustomID)
	}
}

// TestActivate walks the full press protocol: the old control goes away,
// exactly one delivery fires, both scopes count it, and a fresh control
// with a new id is live.
func TestActivate(t *testing.T) {
	f := setup(t)
	b := f.bind(t, "guild", "chan-1")
	oldID := b.ControlMessageID

	act := models.Activation{Asset: "classic", ActorName: "alex", ActorAvatar: "https://cdn.example/a.png"}
	if err := f.lifecycle.Activate(context.Background(), "guild", "chan-1", oldID, act); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	ds := f.client.Deliveries()
	if len(ds) != 1 {
		t.Fatalf("got %d deliveries, want 1", len(ds))
	}
	if ds[0].EndpointID != b.EndpointID || ds[0].Token != b.EndpointToken {
		t.Fatalf("delivery used endpoint %s, want %s", ds[0].EndpointID, b.EndpointID)
	}
	if ds[0].Delivery.FilePath != "assets/classic.png" || ds[0].Delivery.DisplayName != "alex" {
		t.Fatalf("delivery = %+v", ds[0].Delivery)
	}

	for _, scope := range []stats.Scope{stats.Community("guild"), stats.Global()} {
		n, err := f.counter.Value(scope, "classic")
		if err != nil || n != 1 {
			t.Fatalf("%s count = %d, %v; want 1", scope, n, err)
		}
	}

	after, err := f.bindings.Get("guild", "chan-1")
	if err != nil {
		t.Fatalf("Get after activate: %v", err)
	}
	if !after.HasControl() || after.ControlMessageID == oldID {
		t.Fatalf("control not replaced: %+v (old %s)", after, oldID)
	}
	if n := f.client.MessageCount("chan-1"); n != 1 {
		t.Fatalf("channel has %d messages after activate, want 1", n)
	}
}

// TestActivateDeliveryFailure verifies a failed delivery leaves the channel
// de-armed and uncounted; no fresh control is created.
func TestActivateDeliveryFailure(t *testing.T) {
	f := setup(t)
	b := f.bind(t, "guild", "chan-1")
	f.client.FailDeliveries(errors.New("endpoint down"))

	act := models.Activation{Asset: "classic", ActorName: "alex"}
	err := f.lifecycle.Activate(context.Background(), "guild", "chan-1", b.ControlMessageID, act)
	if !errors.Is(err, platform.ErrDeliveryFailed) {
		t.Fatalf("Activate = %v, want ErrDeliveryFailed", err)
	}

	after, _ := f.bindings.Get("guild", "chan-1")
	if after.HasControl() {
		t.Fatalf("binding still tracks a control after failed delivery: %+v", after)
	}
	if n := f.client.MessageCount("chan-1"); n != 0 {
		t.Fatalf("channel has %d messages, want 0", n)
	}
	n, _ := f.counter.Value(stats.Community("guild"), "classic")
	if n != 0 {
		t.Fatalf("failed delivery was counted: %d", n)
	}
}

// TestActivateMismatchSkipsDeletion verifies a press carrying a stale
// message id never deletes the tracked control, but the press itself still
// goes through.
func TestActivateMismatchSkipsDeletion(t *testing.T) {
	f := setup(t)
	b := f.bind(t, "guild", "chan-1")
	trackedID := b.ControlMessageID

	act := models.Activation{Asset: "spicy", ActorName: "sam"}
	if err := f.lifecycle.Activate(context.Background(), "guild", "chan-1", "stale-id", act); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	// the tracked message was never deleted
	if _, err := f.client.FetchMessage(context.Background(), "chan-1", trackedID); err != nil {
		t.Fatalf("tracked control was deleted on mismatch: %v", err)
	}
	if len(f.client.Deliveries()) != 1 {
		t.Fatalf("mismatched press did not deliver")
	}
	n, _ := f.counter.Value(stats.Global(), "spicy")
	if n != 1 {
		t.Fatalf("mismatched press not counted: %d", n)
	}
}

func TestActivateUnknownAsset(t *testing.T) {
	f := setup(t)
	b := f.bind(t, "guild", "chan-1")

	err := f.lifecycle.Activate(context.Background(), "guild", "chan-1", b.ControlMessageID, models.Activation{Asset: "nope"})
	if err == nil {
		t.Fatalf("Activate accepted unknown asset")
	}
	// nothing happened: control intact, nothing delivered
	after, _ := f.bindings.Get("guild", "chan-1")
	if after.ControlMessageID != b.ControlMessageID {
		t.Fatalf("control changed on unknown asset")
	}
	if len(f.client.Deliveries()) != 0 {
		t.Fatalf("unknown asset delivered")
	}
}

func TestActivateUnboundChannel(t *testing.T) {
	f := setup(t)
	err := f.lifecycle.Activate(context.Background(), "guild", "nope", "msg", models.Activation{Asset: "classic"})
	if !errors.Is(err, bindings.ErrUnknownBinding) {
		t.Fatalf("Activate = %v, want ErrUnknownBinding", err)
	}
}

// TestCreateControlCleansUpOnPersistFailure verifies a control whose
// reference cannot be persisted is deleted rather than orphaned.
func TestCreateControlCleansUpOnPersistFailure(t *testing.T) {
	f := setup(t)
	// binding never persisted, so SetControl fails after the send succeeds
	unbound := models.ChannelBinding{ChannelID: "chan-x", EndpointID: "ep", EndpointToken: "tok"}

	_, err := f.lifecycle.CreateControl(context.Background(), "guild", unbound)
	if !errors.Is(err, bindings.ErrUnknownBinding) {
		t.Fatalf("CreateControl = %v, want ErrUnknownBinding", err)
	}
	if n := f.client.MessageCount("chan-x"); n != 0 {
		t.Fatalf("orphaned control left in channel: %d messages", n)
	}
}

// TestDeactivateTolerates404 verifies a control already deleted out-of-band
// does not fail deactivation; the de-armed state is still recorded.
func TestDeactivateTolerates404(t *testing.T) {
	f := setup(t)
	b := f.bind(t, "guild", "chan-1")
	f.client.RemoveExternally("chan-1", b.ControlMessageID)

	if err := f.lifecycle.DeactivateControl(context.Background(), "guild", b, b.ControlMessageID); err != nil {
		t.Fatalf("DeactivateControl: %v", err)
	}
	after, _ := f.bindings.Get("guild", "chan-1")
	if after.HasControl() {
		t.Fatalf("de-armed state not recorded: %+v", after)
	}
}
