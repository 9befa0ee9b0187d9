package protocol

import "encoding/json"

// Client -> Server message types
const (
	MsgJoin              = "join"
	MsgLeave             = "leave"
	MsgList              = "list" // room discovery request
	MsgStartGame         = "startGame"
	MsgState             = "state" // self kinematic report
	MsgFire              = "fire"
	MsgDied              = "died"
	MsgPlatformDamage    = "platformDamage"
	MsgPlatformDestroyed = "platformDestroyed"
	MsgCreatePlatform    = "createPlatform"
	MsgBlockDestroyed    = "blockDestroyed"
	MsgCrateCollected    = "crateCollected"
	MsgPlaneHit          = "planeHit"
	MsgHit               = "hit" // damage taken by the sender's own tank
)

// Server -> Client message types
const (
	MsgInit            = "init"
	MsgSnapshot        = "snapshot" // sent as a binary frame
	MsgPlayerJoined    = "playerJoined"
	MsgPlayerLeft      = "playerLeft"
	MsgHostChanged     = "hostChanged"
	MsgGameStarted     = "gameStarted"
	MsgPlayerFired     = "playerFired"
	MsgHitConfirmed    = "hitConfirmed"
	MsgPlayerDied      = "playerDied"
	MsgPlayerRespawn   = "playerRespawn"
	MsgPlatformCreated = "platformCreated"
	MsgPlatformDamaged = "platformDamaged"
	MsgCrateSpawned    = "crateSpawned"
	MsgCrateRemoved    = "crateRemoved"
	MsgPlaneSpawned    = "planeSpawned"
	MsgClusterBomb     = "clusterBombDropped"
	MsgPlaneDestroyed  = "planeDestroyed"
	MsgSuperpower      = "grantSuperpower"
	MsgGameOver        = "gameOver"
	MsgRoomList        = "roomList"
	MsgNotification    = "notification"
	MsgError           = "error"
)

// Room status values
const (
	StatusLobby   = "lobby"
	StatusPlaying = "playing"
	StatusOver    = "over"
)

// Winner values for GameOverMsg
const (
	WinnerDraw = "DRAW"
	WinnerRed  = "RED TEAM"
	WinnerBlue = "BLUE TEAM"
)

// Envelope wraps all outgoing messages with a type field
type Envelope struct {
	T    string      `json:"t"`
	Data interface{} `json:"d,omitempty"`
}

// InEnvelope is used for incoming messages; json.RawMessage avoids double-unmarshal
type InEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

// JoinMsg asks to join (or create) a room by name
type JoinMsg struct {
	Room     string `json:"room"`
	Name     string `json:"name"`
	Team     int    `json:"team,omitempty"` // 1 or 2, 0 = auto
	Password string `json:"pw,omitempty"`
	Token    string `json:"token,omitempty"` // rejoin token from a previous init
}

// StateReport is the per-tick self report of the owning client
type StateReport struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Angle       float64 `json:"a"`  // body angle, radians
	TurretAngle float64 `json:"ta"` // degrees
	HP          float64 `json:"hp"`
	Shield      float64 `json:"sh"`
}

// PlayerState is the authoritative view of one participant
type PlayerState struct {
	ID          string  `json:"id"`
	Name        string  `json:"n"`
	Team        int     `json:"tm"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Angle       float64 `json:"a"`
	TurretAngle float64 `json:"ta"`
	HP          float64 `json:"hp"`
	MaxHP       float64 `json:"mhp"`
	Shield      float64 `json:"sh"`
	Lives       int     `json:"l"`
	Dead        bool    `json:"d,omitempty"`
	Host        bool    `json:"h,omitempty"`
}

// PlatformState describes one platform
type PlatformState struct {
	ID     string  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"w"`
	Height float64 `json:"h"`
	Angle  float64 `json:"a"` // degrees
	HP     float64 `json:"hp"`
	MaxHP  float64 `json:"mhp"`
	Kind   string  `json:"k"` // standard | unbreakable
}

// CrateState describes a crate in the room
type CrateState struct {
	ID   string  `json:"id"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Kind string  `json:"k"`
}

// PlaneState describes a patrol aircraft
type PlaneState struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	VX float64 `json:"vx"`
	HP float64 `json:"hp"`
}

// Snapshot is the full player map broadcast every room tick
type Snapshot struct {
	Tick    uint64        `json:"tick"`
	Players []PlayerState `json:"p"`
	Planes  []PlaneState  `json:"pl,omitempty"`
}

// InitMsg answers a successful join
type InitMsg struct {
	SelfID             string          `json:"id"`
	Room               string          `json:"room"`
	Team               int             `json:"team"`
	IsHost             bool            `json:"isHost"`
	Status             string          `json:"status"`
	Seed               uint32          `json:"seed"`
	Width              float64         `json:"width"`
	LoadedAmmo         bool            `json:"loadedAmmo,omitempty"`
	Token              string          `json:"token"`
	Crates             []CrateState    `json:"crates"`
	Planes             []PlaneState    `json:"planes"`
	Platforms          []PlatformState `json:"platforms"`
	DestroyedPlatforms []string        `json:"destroyedPlatforms"`
	DestroyedBlocks    []string        `json:"destroyedBlocks"`
	Players            []PlayerState   `json:"players"`
}

// FireMsg is a fire intent; the room adds the shooter id when relaying
type FireMsg struct {
	ID       string  `json:"id,omitempty"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Angle    float64 `json:"a"`
	Power    float64 `json:"p"`
	Munition string  `json:"m"`
}

// IDMsg carries a single entity id
type IDMsg struct {
	ID string `json:"id"`
}

// DiedMsg is the owning client's death report
type DiedMsg struct {
	KillerID string `json:"kid,omitempty"`
}

// DeathMsg is the room's authoritative death notice
type DeathMsg struct {
	ID       string `json:"id"`
	KillerID string `json:"kid,omitempty"`
	Lives    int    `json:"l"`
}

// HitMsg reports damage a tank took. The room fills ID with the sender
// when relaying it as hitConfirmed.
type HitMsg struct {
	ID       string  `json:"id,omitempty"`
	KillerID string  `json:"kid,omitempty"`
	Damage   float64 `json:"dmg"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// PlatformDamageMsg reports damage dealt to a platform
type PlatformDamageMsg struct {
	ID     string  `json:"id"`
	Damage float64 `json:"dmg"`
}

// PlaneHitMsg reports a player shell hitting a plane
type PlaneHitMsg struct {
	ID     string  `json:"id"`
	Damage float64 `json:"dmg"`
}

// ClusterBombMsg tells clients to spawn cluster shells from seed
type ClusterBombMsg struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Seed uint32  `json:"seed"`
}

// PlaneDestroyedMsg announces a downed plane and the shooter
type PlaneDestroyedMsg struct {
	ID       string  `json:"id"`
	KillerID string  `json:"kid"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// GameOverMsg ends a match
type GameOverMsg struct {
	Winner string `json:"winner"`
}

// RoomSummary is one entry of the room discovery list
type RoomSummary struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Blue   int    `json:"blue"`
	Red    int    `json:"red"`
	Locked bool   `json:"locked,omitempty"`
}

// NotificationMsg is a user-facing notice
type NotificationMsg struct {
	Msg string `json:"msg"`
}

// ErrorMsg sends error to client
type ErrorMsg struct {
	Msg string `json:"msg"`
}
