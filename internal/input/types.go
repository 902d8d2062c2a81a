package input

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"ghost-loop/internal/game"
)

// CommandKind for routing
type CommandKind int

const (
	CmdUnknown CommandKind = iota
	CmdBegin
	CmdForceSwitch
	CmdRegion
	CmdKey
	CmdReset
	CmdRoom
	CmdPose
)

var kindNames = map[CommandKind]string{
	CmdBegin:       "begin",
	CmdForceSwitch: "force_switch",
	CmdRegion:      "region",
	CmdKey:         "key",
	CmdReset:       "reset",
	CmdRoom:        "room",
	CmdPose:        "pose",
}

func (k CommandKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// SupportedCommands maps text commands and wire names to kinds
var SupportedCommands = map[string]CommandKind{
	// Begin variants
	"begin": CmdBegin,
	"start": CmdBegin,

	// Switch variants
	"switch":       CmdForceSwitch,
	"force_switch": CmdForceSwitch,
	"skip":         CmdForceSwitch,

	// Reset variants
	"reset": CmdReset,
	"r":     CmdReset,
	"retry": CmdReset,

	"room":   CmdRoom,
	"region": CmdRegion,
	"key":    CmdKey,
	"pose":   CmdPose,
}

// GetCommandKind returns the kind for a name (case-insensitive)
func GetCommandKind(name string) CommandKind {
	if k, ok := SupportedCommands[strings.ToLower(name)]; ok {
		return k
	}
	return CmdUnknown
}

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrMissingField   = errors.New("missing field")
	ErrUnknownTag     = errors.New("unknown entity tag")
)

// Command is one parsed input waiting for the next tick
type Command struct {
	Kind   CommandKind
	Tag    game.EntityTag
	Region game.RegionID
	Key    game.EntityID
	Room   game.RoomID
	Spawn  *game.Vec3 // CmdBegin; nil uses the active room's spawn
	Pose   game.Pose

	Source     string // rate limit key (remote address, client id)
	ReceivedAt time.Time
}

// Apply hands the command to the orchestrator's input queue
func (c Command) Apply(o *game.Orchestrator) {
	switch c.Kind {
	case CmdBegin:
		spawn := o.Spawn()
		if c.Spawn != nil {
			spawn = *c.Spawn
		} else if r := o.Room(); r != nil {
			spawn = r.GhostSpawn
		}
		o.Begin(spawn)
	case CmdForceSwitch:
		o.ForceSwitch()
	case CmdRegion:
		o.EnteredRegion(c.Tag, c.Region)
	case CmdKey:
		o.KeyCollected(c.Key)
	case CmdReset:
		o.ManualReset()
	case CmdRoom:
		o.ChangeRoom(c.Room)
	case CmdPose:
		o.SetPose(c.Tag, c.Pose)
	}
}

// ParseText parses a text command such as "!reset", "r" or "!room hall".
// The leading "!" is optional.
func ParseText(source, text string) (Command, error) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("%w: empty", ErrUnknownCommand)
	}
	name := strings.TrimPrefix(fields[0], "!")
	args := fields[1:]

	cmd := Command{Kind: GetCommandKind(name), Source: source}
	switch cmd.Kind {
	case CmdBegin, CmdForceSwitch, CmdReset:
		return cmd, nil
	case CmdRoom:
		if len(args) < 1 {
			return Command{}, fmt.Errorf("%w: room id", ErrMissingField)
		}
		cmd.Room = game.RoomID(args[0])
		return cmd, nil
	case CmdKey:
		if len(args) < 1 {
			return Command{}, fmt.Errorf("%w: key id", ErrMissingField)
		}
		cmd.Key = game.EntityID(args[0])
		return cmd, nil
	case CmdRegion:
		if len(args) < 2 {
			return Command{}, fmt.Errorf("%w: region needs <tag> <id>", ErrMissingField)
		}
		tag, ok := game.ParseEntityTag(args[0])
		if !ok {
			return Command{}, fmt.Errorf("%w: %q", ErrUnknownTag, args[0])
		}
		cmd.Tag = tag
		cmd.Region = game.RegionID(args[1])
		return cmd, nil
	default:
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
}

// Request is the JSON form of a command used by HTTP and websocket clients
type Request struct {
	Type   string     `json:"type"`
	Tag    string     `json:"tag,omitempty"`
	Region string     `json:"region,omitempty"`
	Key    string     `json:"key,omitempty"`
	Room   string     `json:"room,omitempty"`
	Spawn  *game.Vec3 `json:"spawn,omitempty"`
	Pose   *game.Pose `json:"pose,omitempty"`
	Text   string     `json:"text,omitempty"` // type "command"
}

// Command validates the request and converts it
func (r Request) Command(source string) (Command, error) {
	if r.Type == "command" {
		return ParseText(source, r.Text)
	}

	cmd := Command{Kind: GetCommandKind(r.Type), Source: source}
	switch cmd.Kind {
	case CmdBegin:
		cmd.Spawn = r.Spawn
	case CmdForceSwitch, CmdReset:
	case CmdRegion:
		tag, err := parseTag(r.Tag)
		if err != nil {
			return Command{}, err
		}
		if r.Region == "" {
			return Command{}, fmt.Errorf("%w: region", ErrMissingField)
		}
		cmd.Tag = tag
		cmd.Region = game.RegionID(r.Region)
	case CmdKey:
		if r.Key == "" {
			return Command{}, fmt.Errorf("%w: key", ErrMissingField)
		}
		cmd.Key = game.EntityID(r.Key)
	case CmdRoom:
		if r.Room == "" {
			return Command{}, fmt.Errorf("%w: room", ErrMissingField)
		}
		cmd.Room = game.RoomID(r.Room)
	case CmdPose:
		tag, err := parseTag(r.Tag)
		if err != nil {
			return Command{}, err
		}
		if r.Pose == nil {
			return Command{}, fmt.Errorf("%w: pose", ErrMissingField)
		}
		cmd.Tag = tag
		cmd.Pose = *r.Pose
		if cmd.Pose.Rotation == (game.Quat{}) {
			cmd.Pose.Rotation = game.Identity
		}
	default:
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, r.Type)
	}
	return cmd, nil
}

func parseTag(s string) (game.EntityTag, error) {
	if s == "" {
		return 0, fmt.Errorf("%w: tag", ErrMissingField)
	}
	tag, ok := game.ParseEntityTag(s)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownTag, s)
	}
	return tag, nil
}
