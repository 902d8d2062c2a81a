package game

import (
	"fmt"
	"math"
	"testing"
)

// =============================================================================
// FIXTURES
// =============================================================================

const testPhaseDuration = 3.0

// newTestRoom builds a room with an open goal, a vault goal behind two
// synced keys, a gate goal behind a pressure plate, a timer button and a
// boundary to next
func newTestRoom(id RoomID, spawn Vec3, next RoomID) *Room {
	prefix := string(id) + "_"
	r := NewRoom(id, spawn, testPhaseDuration)

	keyA := NewKeyPickup(EntityID(prefix+"key_a"), spawn.Add(Vec3{X: -2, Z: 4}))
	keyB := NewKeyPickup(EntityID(prefix+"key_b"), spawn.Add(Vec3{X: 2, Z: 4}))
	vault := NewDoor(EntityID(prefix+"vault"), spawn.Add(Vec3{Z: 8}), true)
	gate := NewDoor(EntityID(prefix+"gate"), spawn.Add(Vec3{Z: 12}), true)
	button := NewTimerButton(EntityID(prefix+"button"), spawn.Add(Vec3{X: 1}))
	plate := NewPressurePlate(EntityID(prefix+"plate"), spawn.Add(Vec3{X: 3}), gate)
	lift := NewMovingPlatform(EntityID(prefix+"lift"), spawn.Add(Vec3{Z: 6}), 2, 1, true, false, false)

	for _, b := range []Behavior{keyA, keyB, vault, gate, button, plate, lift} {
		r.AddBehavior(b)
	}
	r.Keys = []*KeyPickup{keyA, keyB}
	r.Doors = []*Door{vault, gate}
	r.Puzzle = NewSyncPuzzle(vault, keyA, keyB)

	r.AddRegion(&Region{ID: "goal", Kind: RegionGoal})
	r.AddRegion(&Region{ID: "vault_goal", Kind: RegionGoal, Door: vault})
	r.AddRegion(&Region{ID: "gate_goal", Kind: RegionGoal, Door: gate})
	r.AddRegion(&Region{ID: "key_a", Kind: RegionKey, Key: keyA})
	r.AddRegion(&Region{ID: "key_b", Kind: RegionKey, Key: keyB})
	r.AddRegion(&Region{ID: "button", Kind: RegionButton, Button: button})
	r.AddRegion(&Region{ID: "plate", Kind: RegionPlate, Plate: plate})
	r.AddRegion(&Region{ID: "exit", Kind: RegionRoomBoundary, TargetRoom: next})
	return r
}

func newTestOrchestrator(t *testing.T, opts Options) (*Orchestrator, *Room, *Room) {
	t.Helper()
	o := NewOrchestrator(opts)
	vault := newTestRoom("vault", Vec3{Y: 1}, "bridge")
	bridge := newTestRoom("bridge", Vec3{Y: 1, Z: 30}, "vault")
	if !o.AddRoom(vault) || !o.AddRoom(bridge) {
		t.Fatal("AddRoom failed")
	}
	if !o.Start("vault") {
		t.Fatal("Start failed")
	}
	o.DrainSignals()
	return o, vault, bridge
}

// toPlayback begins at the room spawn and lets the recording run out
func toPlayback(t *testing.T, o *Orchestrator) {
	t.Helper()
	o.Begin(o.Room().GhostSpawn)
	for i := 0; i < int(testPhaseDuration); i++ {
		o.Update(1)
	}
	if o.Phase() != PhasePlayback {
		t.Fatalf("expected playback, got %v", o.Phase())
	}
}

func completeRoom(t *testing.T, o *Orchestrator) {
	t.Helper()
	toPlayback(t, o)
	o.EnteredRegion(TagLive, "goal")
	o.Update(1)
	if o.Phase() != PhaseComplete {
		t.Fatalf("expected complete, got %v", o.Phase())
	}
}

func phaseChanges(signals []Signal) []Phase {
	var out []Phase
	for _, s := range signals {
		if s.Kind == SignalPhaseChanged {
			out = append(out, s.Phase)
		}
	}
	return out
}

// =============================================================================
// SETUP
// =============================================================================

func TestOrchestratorSetup(t *testing.T) {
	o := NewOrchestrator(DefaultOptions())
	r := newTestRoom("r", Vec3{X: 2, Y: 1}, "r")

	if o.AddRoom(nil) {
		t.Error("nil room accepted")
	}
	if !o.AddRoom(r) {
		t.Fatal("AddRoom failed")
	}
	if o.AddRoom(r) {
		t.Error("duplicate room accepted")
	}
	if o.Registry().Len() != len(r.Behaviors) {
		t.Errorf("registry has %d entities, want %d", o.Registry().Len(), len(r.Behaviors))
	}
	if o.Start("missing") {
		t.Error("Start with unknown room succeeded")
	}
	if !o.Start("r") {
		t.Fatal("Start failed")
	}
	if o.Start("r") {
		t.Error("second Start succeeded")
	}

	if o.Phase() != PhaseIdle {
		t.Errorf("phase = %v", o.Phase())
	}
	if o.Ghost().Pose.Position != r.GhostSpawn {
		t.Errorf("ghost at %+v, want spawn", o.Ghost().Pose.Position)
	}
	if !o.Ghost().ControlEnabled {
		t.Error("ghost should be controllable in Idle")
	}
	if o.Live().Active {
		t.Error("live entity should wait for Playback")
	}
}

// =============================================================================
// LOOP
// =============================================================================

func TestRecordingThenPlayback(t *testing.T) {
	o := NewOrchestrator(DefaultOptions())
	r := NewRoom("a", Vec3{}, 10)
	o.AddRoom(r)
	o.Start("a")

	spawn := Vec3{X: 5}
	o.Begin(spawn)
	for i := 0; i < 10; i++ {
		o.SetPose(TagGhost, PoseAt(Vec3{X: float64(i)}))
		o.Update(1)
		if i < 9 && o.Phase() != PhaseRecording {
			t.Fatalf("tick %d: phase %v, want recording", i, o.Phase())
		}
	}

	if o.Phase() != PhasePlayback {
		t.Fatalf("phase = %v, want playback after the 10th tick", o.Phase())
	}
	fl := o.FrameLog()
	if fl.Len() != 10 {
		t.Fatalf("frame log has %d samples, want 10", fl.Len())
	}

	o.Update(1)
	want := fl.At(0).Position.Add(spawn.Sub(fl.At(0).Position))
	if got := o.Ghost().Pose.Position; got != want {
		t.Errorf("first replayed pose %+v, want %+v", got, want)
	}
	o.Update(1)
	if got := o.Ghost().Pose.Position; got != (Vec3{X: 6}) {
		t.Errorf("second replayed pose %+v, want X=6", got)
	}

	if o.Ghost().ControlEnabled {
		t.Error("ghost should not be controllable in Playback")
	}
	if !o.Live().Active || !o.Live().ControlEnabled {
		t.Error("live entity should be active and controllable")
	}
	if !o.Ghost().IgnoresCollision || !o.Live().IgnoresCollision {
		t.Error("collision between live and ghost should be ignored")
	}
	if o.Following() != TagLive {
		t.Errorf("camera follows %v", o.Following())
	}
	if o.Live().Pose.Position != spawn {
		t.Errorf("live should start at spawn, got %+v", o.Live().Pose.Position)
	}
}

func TestGoalBeatsExpiry(t *testing.T) {
	tests := []struct {
		name      string
		waitTicks int
	}{
		{"one tick before expiry", 1},
		{"on the expiry tick", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, _, _ := newTestOrchestrator(t, DefaultOptions())
			toPlayback(t, o)
			for i := 0; i < tt.waitTicks; i++ {
				o.Update(1)
			}
			o.DrainSignals()

			o.EnteredRegion(TagLive, "goal")
			o.Update(1)

			if o.Phase() != PhaseComplete {
				t.Fatalf("phase = %v, want complete", o.Phase())
			}
			for _, p := range phaseChanges(o.DrainSignals()) {
				if p == PhaseTimedOut {
					t.Error("timed out fired alongside complete")
				}
			}
			if o.HUD().Status != StatusComplete {
				t.Errorf("status = %q", o.HUD().Status)
			}
			if o.Live().ControlEnabled {
				t.Error("live control should be off after completion")
			}

			for i := 0; i < 5; i++ {
				o.Update(1)
			}
			if o.Phase() != PhaseComplete {
				t.Errorf("phase moved on to %v", o.Phase())
			}
		})
	}
}

func TestTimeOutWaitsForManualReset(t *testing.T) {
	o, vault, _ := newTestOrchestrator(t, DefaultOptions())
	toPlayback(t, o)
	firstAttempt := o.Attempt()

	for i := 0; i < int(testPhaseDuration); i++ {
		o.Update(1)
	}
	if o.Phase() != PhaseTimedOut {
		t.Fatalf("phase = %v, want timed out", o.Phase())
	}
	if o.EndReason() != EndTimer {
		t.Errorf("end reason = %q", o.EndReason())
	}
	if o.HUD().Status != StatusTimedOut {
		t.Errorf("status = %q", o.HUD().Status)
	}

	for i := 0; i < 5; i++ {
		o.Update(1)
	}
	if o.Phase() != PhaseTimedOut {
		t.Fatalf("phase moved on to %v without a reset", o.Phase())
	}
	if o.HUD().ResetHint != HintReset {
		t.Errorf("reset hint = %q", o.HUD().ResetHint)
	}
	o.DrainSignals()

	o.ManualReset()
	o.Update(1)

	if o.Phase() != PhaseRecording {
		t.Fatalf("phase = %v, want recording", o.Phase())
	}
	if o.Ghost().Pose.Position != o.Spawn() {
		t.Errorf("ghost at %+v, want spawn %+v", o.Ghost().Pose.Position, o.Spawn())
	}
	if o.Attempt() == firstAttempt {
		t.Error("reset should start a new attempt")
	}
	if o.HUD().Status != "" || o.HUD().ResetHint != "" {
		t.Errorf("HUD not cleared: %+v", o.HUD())
	}
	if o.HUD().Remaining != int(testPhaseDuration)-1 {
		t.Errorf("remaining = %d", o.HUD().Remaining)
	}
	if !vault.Active() {
		t.Error("room should stay active")
	}
	signals := o.DrainSignals()
	if countSignals(signals, SignalResetRoom) != 1 {
		t.Error("missing reset room signal")
	}
	if o.Ghost().IgnoresCollision {
		t.Error("collision flag should clear on reset")
	}
}

func TestManualResetIgnoredMidAttempt(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, DefaultOptions())
	o.Begin(o.Spawn())
	o.Update(1)
	attempt := o.Attempt()

	o.ManualReset()
	o.Update(1)

	if o.Phase() != PhaseRecording || o.Attempt() != attempt {
		t.Error("reset during recording should be ignored")
	}
}

func TestBeginOnlyFromIdle(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, DefaultOptions())
	o.Begin(o.Spawn())
	o.Update(1)
	attempt := o.Attempt()

	o.Begin(Vec3{X: 99})
	o.Update(1)
	if o.Attempt() != attempt || o.Spawn() == (Vec3{X: 99}) {
		t.Error("begin during recording should be ignored")
	}
}

func TestForceSwitchAndShortLog(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, DefaultOptions())
	o.Begin(o.Spawn())
	o.SetPose(TagGhost, PoseAt(Vec3{X: 1, Y: 1}))
	o.Update(0.5)
	o.SetPose(TagGhost, PoseAt(Vec3{X: 2, Y: 1}))
	o.ForceSwitch()
	o.Update(0.5)

	if o.Phase() != PhasePlayback {
		t.Fatalf("phase = %v, want playback", o.Phase())
	}
	if o.FrameLog().Len() != 2 {
		t.Fatalf("frame log has %d samples", o.FrameLog().Len())
	}

	o.Update(0.5)
	o.Update(0.5)
	last := o.Ghost().Pose
	o.Update(0.5)
	if o.Ghost().Pose != last {
		t.Errorf("ghost should hold its last pose, moved to %+v", o.Ghost().Pose)
	}
	if o.Phase() != PhasePlayback {
		t.Errorf("playback should keep running after the log ends, got %v", o.Phase())
	}
}

func TestForceSwitchIgnoredOutsideRecording(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, DefaultOptions())
	o.ForceSwitch()
	o.Update(1)
	if o.Phase() != PhaseIdle {
		t.Errorf("phase = %v", o.Phase())
	}
}

func TestGhostPoseIgnoredDuringPlayback(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, DefaultOptions())
	toPlayback(t, o)
	o.SetPose(TagGhost, PoseAt(Vec3{X: 42}))
	o.Update(0.1)
	if o.Ghost().Pose.Position.X == 42 {
		t.Error("ghost accepted a pose while replaying")
	}
}

// =============================================================================
// PUZZLE AND PROPS
// =============================================================================

func TestKeysMatchedInPlaybackStopClock(t *testing.T) {
	o, vault, _ := newTestOrchestrator(t, DefaultOptions())
	toPlayback(t, o)

	o.KeyCollected(vault.Keys[0].ID)
	o.KeyCollected(vault.Keys[1].ID)
	o.Update(1)

	if vault.Puzzle.State() != PuzzleMatched {
		t.Fatalf("puzzle = %v", vault.Puzzle.State())
	}
	if vault.Doors[0].Locked() {
		t.Error("vault door should be unlocked")
	}
	if o.Clock().Armed() {
		t.Error("clock should stop after a match in playback")
	}
	want := fmt.Sprintf("Ghost collected key at: %ds", int(testPhaseDuration))
	if o.HUD().KeyNotice != want {
		t.Errorf("key notice = %q, want %q", o.HUD().KeyNotice, want)
	}

	for i := 0; i < 10; i++ {
		o.Update(1)
	}
	if o.Phase() != PhasePlayback {
		t.Fatalf("phase = %v, stopped clock should not expire", o.Phase())
	}

	o.EnteredRegion(TagLive, "vault_goal")
	o.Update(1)
	if o.Phase() != PhaseComplete {
		t.Errorf("phase = %v, want complete", o.Phase())
	}
}

func TestKeysMismatchedRevert(t *testing.T) {
	o, vault, _ := newTestOrchestrator(t, DefaultOptions())
	toPlayback(t, o)

	o.EnteredRegion(TagGhost, "key_a")
	o.Update(1)
	o.EnteredRegion(TagLive, "key_b")
	o.Update(1)

	if vault.Puzzle.State() != PuzzleMismatched {
		t.Fatalf("puzzle = %v", vault.Puzzle.State())
	}
	for _, k := range vault.Keys {
		if k.Collected() {
			t.Errorf("key %s should be collectible again", k.ID)
		}
	}
	if !vault.Doors[0].Locked() {
		t.Error("vault door should stay locked")
	}
}

func TestLockedGoalDoesNotComplete(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, DefaultOptions())
	toPlayback(t, o)
	o.EnteredRegion(TagLive, "vault_goal")
	o.Update(0.1)
	if o.Phase() != PhasePlayback {
		t.Errorf("locked goal completed the room: %v", o.Phase())
	}
}

func TestGhostAtGoalDoesNotComplete(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, DefaultOptions())
	toPlayback(t, o)
	o.EnteredRegion(TagGhost, "goal")
	o.Update(0.1)
	if o.Phase() != PhasePlayback {
		t.Errorf("ghost completed the room: %v", o.Phase())
	}
}

func TestEntitiesRewindOnPlayback(t *testing.T) {
	o, vault, _ := newTestOrchestrator(t, DefaultOptions())
	o.Begin(o.Spawn())
	o.EnteredRegion(TagGhost, "key_a")
	o.Update(1)
	if !vault.Keys[0].Collected() {
		t.Fatal("key should be collected during recording")
	}

	o.ForceSwitch()
	o.Update(1)
	if vault.Keys[0].Collected() {
		t.Error("key should be back for playback")
	}
	if vault.Puzzle.State() != PuzzleNone {
		t.Errorf("puzzle = %v, want none", vault.Puzzle.State())
	}
}

func TestTimerButtonStartsRecording(t *testing.T) {
	o, vault, _ := newTestOrchestrator(t, DefaultOptions())

	o.EnteredRegion(TagLive, "button")
	o.Update(0.1)
	if o.Phase() != PhaseIdle {
		t.Fatalf("live entity pressed the button: %v", o.Phase())
	}

	o.EnteredRegion(TagGhost, "button")
	o.Update(0.1)
	if o.Phase() != PhaseRecording {
		t.Fatalf("phase = %v, want recording", o.Phase())
	}
	want := vault.GhostSpawn.Add(Vec3{X: 1})
	if o.Spawn() != want {
		t.Errorf("spawn = %+v, want button position %+v", o.Spawn(), want)
	}
}

func TestPressurePlateUnlocksGate(t *testing.T) {
	o, vault, _ := newTestOrchestrator(t, DefaultOptions())
	gate := vault.Doors[1]

	o.Begin(o.Spawn())
	o.Update(0.5)
	o.EnteredRegion(TagGhost, "plate")
	o.Update(0.5)

	if gate.Locked() {
		t.Fatal("gate should be unlocked")
	}
	if o.HUD().DoorNotice != NoticeDoorUnlocked {
		t.Errorf("door notice = %q", o.HUD().DoorNotice)
	}
	signals := o.DrainSignals()
	found := false
	for _, s := range signals {
		if s.Kind == SignalDoorUnlocked && s.Entity == gate.ID {
			found = true
		}
	}
	if !found {
		t.Error("missing door unlocked signal for the gate")
	}

	// the ghost crosses the plate again on replay
	o.ForceSwitch()
	o.Update(0.5)
	if !gate.Locked() {
		t.Error("gate should relock when playback starts")
	}
	if o.HUD().DoorNotice != "" {
		t.Error("notices should clear on playback")
	}
	o.EnteredRegion(TagGhost, "plate")
	o.Update(0.5)
	if gate.Locked() {
		t.Error("replayed ghost should unlock the gate")
	}

	o.EnteredRegion(TagLive, "gate_goal")
	o.Update(0.5)
	if o.Phase() != PhaseComplete {
		t.Errorf("phase = %v", o.Phase())
	}
}

func TestFallEndsAttempt(t *testing.T) {
	tests := []struct {
		name      string
		fallLimit float64
		want      Phase
	}{
		{"below limit", -5, PhaseTimedOut},
		{"disabled", 0, PhasePlayback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.FallLimitY = tt.fallLimit
			o, _, _ := newTestOrchestrator(t, opts)
			toPlayback(t, o)
			o.DrainSignals()

			o.SetPose(TagLive, PoseAt(Vec3{Y: -6}))
			o.Update(0.1)

			if o.Phase() != tt.want {
				t.Fatalf("phase = %v, want %v", o.Phase(), tt.want)
			}
			if tt.want != PhaseTimedOut {
				return
			}
			if o.EndReason() != EndFell {
				t.Errorf("end reason = %q", o.EndReason())
			}
			if countSignals(o.DrainSignals(), SignalRestartLevel) != 1 {
				t.Error("missing restart level signal")
			}
		})
	}
}

// =============================================================================
// ROOMS
// =============================================================================

func TestBoundaryAfterCompleteChangesRoom(t *testing.T) {
	o, vault, bridge := newTestOrchestrator(t, DefaultOptions())
	completeRoom(t, o)

	o.EnteredRegion(TagLive, "exit")
	o.Update(0.5)

	if o.Phase() != PhaseIdle {
		t.Errorf("phase = %v, want idle", o.Phase())
	}
	if o.Room() != bridge || !bridge.Active() {
		t.Fatal("bridge should be active")
	}
	if vault.Active() {
		t.Error("vault should be frozen")
	}
	for _, b := range vault.Behaviors {
		if b.Enabled() {
			t.Error("vault behaviors should be disabled")
			break
		}
	}
	if o.Transition() == nil {
		t.Fatal("transition should be running")
	}
	if o.Ghost().ControlEnabled {
		t.Error("no control during transition")
	}

	o.Update(0.5)
	if o.Transition() != nil {
		t.Fatal("transition should have finished")
	}
	if !near(o.Ghost().Pose.Position, bridge.GhostSpawn) {
		t.Errorf("ghost at %+v, want bridge spawn", o.Ghost().Pose.Position)
	}
	if !o.Ghost().ControlEnabled {
		t.Error("ghost control should return after the transition")
	}
	if o.Live().Active {
		t.Error("live entity should wait for the next playback")
	}
	if o.Spawn() != bridge.GhostSpawn {
		t.Errorf("spawn = %+v", o.Spawn())
	}

	o.Begin(o.Spawn())
	o.Update(0.5)
	if o.Phase() != PhaseRecording {
		t.Errorf("phase = %v, want recording in the new room", o.Phase())
	}
}

func TestBoundaryIgnoredBeforeComplete(t *testing.T) {
	o, vault, _ := newTestOrchestrator(t, DefaultOptions())
	toPlayback(t, o)
	o.EnteredRegion(TagLive, "exit")
	o.Update(0.1)
	if o.Room() != vault {
		t.Error("boundary changed room during playback")
	}
}

func TestRoomChangeReplacesRunningTransition(t *testing.T) {
	o, vault, _ := newTestOrchestrator(t, DefaultOptions())
	completeRoom(t, o)

	o.ChangeRoom("bridge")
	o.Update(0.5)
	o.ChangeRoom("vault")
	o.Update(0.5)

	tr := o.Transition()
	if tr == nil || tr.Room != vault {
		t.Fatal("transition should now target the vault")
	}
	if tr.Progress() != 0.5 {
		t.Errorf("new transition progress = %v", tr.Progress())
	}

	o.Update(0.5)
	if o.Room() != vault || o.Transition() != nil {
		t.Fatal("should have arrived in the vault")
	}
	if !near(o.Ghost().Pose.Position, vault.GhostSpawn) {
		t.Errorf("ghost at %+v", o.Ghost().Pose.Position)
	}
}

func TestRoomChangeRejected(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, o *Orchestrator)
		room  RoomID
	}{
		{"during recording", func(t *testing.T, o *Orchestrator) {
			o.Begin(o.Spawn())
			o.Update(0.1)
		}, "bridge"},
		{"unknown room", completeRoom, "nowhere"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, vault, _ := newTestOrchestrator(t, DefaultOptions())
			tt.setup(t, o)
			o.ChangeRoom(tt.room)
			o.Update(0.1)
			if o.Room() != vault {
				t.Errorf("room changed to %v", o.Room().ID)
			}
		})
	}
}

func TestCameraFollowsWithOffset(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, DefaultOptions())
	o.SetPose(TagGhost, PoseAt(Vec3{X: 3, Y: 1}))
	o.Update(0.1)

	want := Vec3{X: 3, Y: 11, Z: -10}
	if o.Camera() != want {
		t.Errorf("camera = %+v, want %+v", o.Camera(), want)
	}
}

func TestPhaseSignalsInOrder(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, DefaultOptions())
	completeRoom(t, o)

	got := phaseChanges(o.DrainSignals())
	want := []Phase{PhaseRecording, PhasePlayback, PhaseComplete}
	if len(got) != len(want) {
		t.Fatalf("phase changes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("change %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestKeyOutsideAttemptStaysCollectible(t *testing.T) {
	tests := []struct {
		name  string
		touch func(o *Orchestrator, k *KeyPickup)
	}{
		{"region", func(o *Orchestrator, k *KeyPickup) { o.EnteredRegion(TagGhost, "key_a") }},
		{"key event", func(o *Orchestrator, k *KeyPickup) { o.KeyCollected(k.ID) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, vault, _ := newTestOrchestrator(t, DefaultOptions())
			key := vault.Keys[0]

			tt.touch(o, key)
			o.Update(0.1)
			if key.Collected() || !key.Active {
				t.Fatal("key consumed while idle")
			}

			o.Begin(o.Spawn())
			o.Update(0.1)
			tt.touch(o, key)
			o.Update(0.1)
			if !key.Collected() {
				t.Error("key not collectible during recording")
			}
			if vault.Puzzle.State() != PuzzleOneCollected {
				t.Errorf("puzzle = %v, want one collected", vault.Puzzle.State())
			}
		})
	}
}

func TestPlatformReplaysRecordedMotion(t *testing.T) {
	o, vault, _ := newTestOrchestrator(t, DefaultOptions())
	var lift *MovingPlatform
	for _, b := range vault.Behaviors {
		if m, ok := b.(*MovingPlatform); ok {
			lift = m
		}
	}
	if lift == nil {
		t.Fatal("fixture has no platform")
	}

	// the platform keeps moving while nobody is recording
	for i := 0; i < 5; i++ {
		o.Update(0.5)
	}

	const samples = 3
	var recorded, replayed []float64
	o.Begin(o.Spawn())
	for i := 0; i < samples; i++ {
		o.Update(0.5)
		recorded = append(recorded, lift.Pose.Position.X)
	}

	o.ForceSwitch()
	o.Update(0.5)
	if o.Phase() != PhasePlayback {
		t.Fatalf("phase = %v, want playback", o.Phase())
	}
	for i := 0; i < samples; i++ {
		o.Update(0.5)
		replayed = append(replayed, lift.Pose.Position.X)
	}

	for i := range recorded {
		if math.Abs(recorded[i]-replayed[i]) > 1e-9 {
			t.Errorf("tick %d: recording X=%.3f, playback X=%.3f", i, recorded[i], replayed[i])
		}
	}
}
