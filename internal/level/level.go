package level

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog/log"

	"ghost-loop/internal/game"
)

//go:embed default.toml
var defaultLevel string

var (
	ErrNoRooms      = errors.New("level has no rooms")
	ErrUnknownRoom  = errors.New("unknown room")
	ErrDuplicateID  = errors.New("duplicate id")
	ErrUnknownRef   = errors.New("unknown entity reference")
	ErrInvalidValue = errors.New("invalid value")
)

// Level is a decoded set of rooms ready to install into an orchestrator
type Level struct {
	Start game.RoomID
	Rooms []*game.Room
}

// level file key mapping
type fileLevel struct {
	Start string     `toml:"start"`
	Rooms []fileRoom `toml:"rooms"`
}

type fileRoom struct {
	ID            string         `toml:"id"`
	Spawn         [3]float64     `toml:"spawn"`
	PhaseDuration float64        `toml:"phase_duration"`
	Keys          []fileProp     `toml:"keys"`
	Doors         []fileDoor     `toml:"doors"`
	Buttons       []fileProp     `toml:"buttons"`
	Plates        []filePlate    `toml:"plates"`
	Platforms     []filePlatform `toml:"platforms"`
	Puzzle        *filePuzzle    `toml:"puzzle"`
	Regions       []fileRegion   `toml:"regions"`
}

type fileProp struct {
	ID       string     `toml:"id"`
	Position [3]float64 `toml:"position"`
}

type fileDoor struct {
	ID       string     `toml:"id"`
	Position [3]float64 `toml:"position"`
	Locked   *bool      `toml:"locked"` // default true
}

type filePlate struct {
	ID       string     `toml:"id"`
	Position [3]float64 `toml:"position"`
	Door     string     `toml:"door"`
}

type filePlatform struct {
	ID       string     `toml:"id"`
	Position [3]float64 `toml:"position"`
	Distance float64    `toml:"distance"`
	Speed    float64    `toml:"speed"`
	AlongX   bool       `toml:"along_x"`
	AlongZ   bool       `toml:"along_z"`
	Reverse  bool       `toml:"reverse"`
}

type filePuzzle struct {
	Door string   `toml:"door"`
	Keys []string `toml:"keys"`
}

type fileRegion struct {
	ID     string `toml:"id"`
	Kind   string `toml:"kind"`
	Key    string `toml:"key"`
	Door   string `toml:"door"`
	Button string `toml:"button"`
	Plate  string `toml:"plate"`
	Target string `toml:"target"`
}

// Default returns the built-in level
func Default() (*Level, error) {
	lvl, err := Parse(defaultLevel)
	if err != nil {
		return nil, fmt.Errorf("load built-in level: %w", err)
	}
	return lvl, nil
}

// Load reads a level file
func Load(path string) (*Level, error) {
	var raw fileLevel
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nil, fmt.Errorf("load level %s: %w", path, err)
	}
	lvl, err := build(raw, meta)
	if err != nil {
		return nil, fmt.Errorf("load level %s: %w", path, err)
	}
	return lvl, nil
}

// Parse decodes a level from TOML text
func Parse(data string) (*Level, error) {
	var raw fileLevel
	meta, err := toml.Decode(data, &raw)
	if err != nil {
		return nil, fmt.Errorf("parse level: %w", err)
	}
	return build(raw, meta)
}

func build(raw fileLevel, meta toml.MetaData) (*Level, error) {
	for _, key := range meta.Undecoded() {
		log.Warn().Str("key", key.String()).Msg("level: unknown key ignored")
	}
	if len(raw.Rooms) == 0 {
		return nil, ErrNoRooms
	}

	lvl := &Level{Rooms: make([]*game.Room, 0, len(raw.Rooms))}
	roomIDs := make(map[string]bool, len(raw.Rooms))
	entityIDs := make(map[string]bool)

	for _, fr := range raw.Rooms {
		id := strings.TrimSpace(fr.ID)
		if id == "" {
			return nil, fmt.Errorf("%w: room without id", ErrInvalidValue)
		}
		if roomIDs[id] {
			return nil, fmt.Errorf("%w: room %q", ErrDuplicateID, id)
		}
		roomIDs[id] = true

		room, err := buildRoom(id, fr, entityIDs)
		if err != nil {
			return nil, err
		}
		lvl.Rooms = append(lvl.Rooms, room)
	}

	// boundaries may point forward, so targets are checked once all rooms exist
	for _, r := range lvl.Rooms {
		for _, reg := range r.Regions {
			if reg.Kind == game.RegionRoomBoundary && !roomIDs[string(reg.TargetRoom)] {
				return nil, fmt.Errorf("%w: %q (region %s)", ErrUnknownRoom, reg.TargetRoom, reg.ID)
			}
		}
	}

	lvl.Start = lvl.Rooms[0].ID
	if meta.IsDefined("start") {
		start := strings.TrimSpace(raw.Start)
		if !roomIDs[start] {
			return nil, fmt.Errorf("%w: start %q", ErrUnknownRoom, start)
		}
		lvl.Start = game.RoomID(start)
	}
	return lvl, nil
}

func buildRoom(id string, fr fileRoom, seen map[string]bool) (*game.Room, error) {
	if fr.PhaseDuration <= 0 {
		return nil, fmt.Errorf("%w: room %q phase_duration must be positive", ErrInvalidValue, id)
	}
	room := game.NewRoom(game.RoomID(id), vec(fr.Spawn), fr.PhaseDuration)

	claim := func(eid string) error {
		eid = strings.TrimSpace(eid)
		if eid == "" {
			return fmt.Errorf("%w: entity without id in room %q", ErrInvalidValue, id)
		}
		if seen[eid] {
			return fmt.Errorf("%w: entity %q", ErrDuplicateID, eid)
		}
		seen[eid] = true
		return nil
	}

	keys := make(map[string]*game.KeyPickup)
	for _, fk := range fr.Keys {
		if err := claim(fk.ID); err != nil {
			return nil, err
		}
		k := game.NewKeyPickup(game.EntityID(fk.ID), vec(fk.Position))
		keys[fk.ID] = k
		room.Keys = append(room.Keys, k)
		room.AddBehavior(k)
	}

	doors := make(map[string]*game.Door)
	for _, fd := range fr.Doors {
		if err := claim(fd.ID); err != nil {
			return nil, err
		}
		locked := true
		if fd.Locked != nil {
			locked = *fd.Locked
		}
		d := game.NewDoor(game.EntityID(fd.ID), vec(fd.Position), locked)
		doors[fd.ID] = d
		room.Doors = append(room.Doors, d)
		room.AddBehavior(d)
	}

	buttons := make(map[string]*game.TimerButton)
	for _, fb := range fr.Buttons {
		if err := claim(fb.ID); err != nil {
			return nil, err
		}
		b := game.NewTimerButton(game.EntityID(fb.ID), vec(fb.Position))
		buttons[fb.ID] = b
		room.AddBehavior(b)
	}

	plates := make(map[string]*game.PressurePlate)
	for _, fp := range fr.Plates {
		if err := claim(fp.ID); err != nil {
			return nil, err
		}
		d, ok := doors[fp.Door]
		if !ok {
			return nil, fmt.Errorf("%w: plate %q door %q", ErrUnknownRef, fp.ID, fp.Door)
		}
		p := game.NewPressurePlate(game.EntityID(fp.ID), vec(fp.Position), d)
		plates[fp.ID] = p
		room.AddBehavior(p)
	}

	for _, fm := range fr.Platforms {
		if err := claim(fm.ID); err != nil {
			return nil, err
		}
		room.AddBehavior(game.NewMovingPlatform(game.EntityID(fm.ID), vec(fm.Position),
			fm.Distance, fm.Speed, fm.AlongX, fm.AlongZ, fm.Reverse))
	}

	if fp := fr.Puzzle; fp != nil {
		d, ok := doors[fp.Door]
		if !ok {
			return nil, fmt.Errorf("%w: puzzle door %q", ErrUnknownRef, fp.Door)
		}
		if len(fp.Keys) != 2 {
			return nil, fmt.Errorf("%w: puzzle in room %q needs exactly two keys", ErrInvalidValue, id)
		}
		pk := make([]*game.KeyPickup, 0, 2)
		for _, kid := range fp.Keys {
			k, ok := keys[kid]
			if !ok {
				return nil, fmt.Errorf("%w: puzzle key %q", ErrUnknownRef, kid)
			}
			pk = append(pk, k)
		}
		room.Puzzle = game.NewSyncPuzzle(d, pk...)
	}

	regionIDs := make(map[string]bool, len(fr.Regions))
	for _, freg := range fr.Regions {
		if regionIDs[freg.ID] {
			return nil, fmt.Errorf("%w: region %q", ErrDuplicateID, freg.ID)
		}
		regionIDs[freg.ID] = true

		reg, err := buildRegion(freg, keys, doors, buttons, plates)
		if err != nil {
			return nil, fmt.Errorf("room %q: %w", id, err)
		}
		room.AddRegion(reg)
	}
	return room, nil
}

func buildRegion(
	fr fileRegion,
	keys map[string]*game.KeyPickup,
	doors map[string]*game.Door,
	buttons map[string]*game.TimerButton,
	plates map[string]*game.PressurePlate,
) (*game.Region, error) {
	if strings.TrimSpace(fr.ID) == "" {
		return nil, fmt.Errorf("%w: region without id", ErrInvalidValue)
	}
	kind, ok := game.ParseRegionKind(fr.Kind)
	if !ok {
		return nil, fmt.Errorf("%w: region %q kind %q", ErrInvalidValue, fr.ID, fr.Kind)
	}

	reg := &game.Region{ID: game.RegionID(fr.ID), Kind: kind}
	switch kind {
	case game.RegionGoal:
		if fr.Door != "" {
			if reg.Door, ok = doors[fr.Door]; !ok {
				return nil, fmt.Errorf("%w: region %q door %q", ErrUnknownRef, fr.ID, fr.Door)
			}
		}
	case game.RegionKey:
		if reg.Key, ok = keys[fr.Key]; !ok {
			return nil, fmt.Errorf("%w: region %q key %q", ErrUnknownRef, fr.ID, fr.Key)
		}
	case game.RegionButton:
		if reg.Button, ok = buttons[fr.Button]; !ok {
			return nil, fmt.Errorf("%w: region %q button %q", ErrUnknownRef, fr.ID, fr.Button)
		}
	case game.RegionPlate:
		if reg.Plate, ok = plates[fr.Plate]; !ok {
			return nil, fmt.Errorf("%w: region %q plate %q", ErrUnknownRef, fr.ID, fr.Plate)
		}
	case game.RegionRoomBoundary:
		if strings.TrimSpace(fr.Target) == "" {
			return nil, fmt.Errorf("%w: boundary %q has no target", ErrInvalidValue, fr.ID)
		}
		reg.TargetRoom = game.RoomID(fr.Target)
	}
	return reg, nil
}

// Install adds every room to o and activates the start room
func (l *Level) Install(o *game.Orchestrator) error {
	for _, r := range l.Rooms {
		if !o.AddRoom(r) {
			return fmt.Errorf("install room %q: %w", r.ID, ErrDuplicateID)
		}
	}
	if !o.Start(l.Start) {
		return fmt.Errorf("start room %q: %w", l.Start, ErrUnknownRoom)
	}
	log.Info().Int("rooms", len(l.Rooms)).Str("start", string(l.Start)).Msg("🗺️ level installed")
	return nil
}

func vec(v [3]float64) game.Vec3 {
	return game.Vec3{X: v[0], Y: v[1], Z: v[2]}
}
