package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Name            string `json:"name"`
	// Optional spawn position; defaults to the origin.
	X *float64 `json:"x,omitempty"`
	Z *float64 `json:"z,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	SessionID       string      `json:"session_id"`
	WorldID         string      `json:"world_id"`
	Seed            int64       `json:"seed"`
	ChunkSize       int         `json:"chunk_size"`
	RenderDistance  int         `json:"render_distance"`
	BlockPalette    []BlockInfo `json:"block_palette"`
	Crops           []string    `json:"crops"`
	PaletteDigest   string      `json:"palette_digest"`
	TuningDigest    string      `json:"tuning_digest,omitempty"`
}

type BlockInfo struct {
	ID       string  `json:"id"`
	Color    string  `json:"color"`
	Hardness float64 `json:"hardness"`
	Tool     string  `json:"tool,omitempty"`
}

// MOVE (client -> server)
type MoveMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	X               float64 `json:"x"`
	Z               float64 `json:"z"`
}

// CHUNKS (server -> client): the window diff after a move or a step.
type ChunksMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	Center          [2]int         `json:"center"`
	Entered         []ChunkPayload `json:"entered"`
	Left            []string       `json:"left"`
	Pending         int            `json:"pending"`
}

type ChunkPayload struct {
	Key         string     `json:"key"`
	CX          int        `json:"cx"`
	CZ          int        `json:"cz"`
	GroundColor string     `json:"ground_color"`
	Heights     []float64  `json:"heights"`
	Biomes      []string   `json:"biomes"`
	Colors      []string   `json:"colors"`
	Trees       []TreeInfo `json:"trees"`
	Plots       []PlotInfo `json:"plots,omitempty"`
	Digest      string     `json:"digest"`
}

type TreeInfo struct {
	ID     string  `json:"id"`
	X      int     `json:"x"`
	Z      int     `json:"z"`
	Height float64 `json:"height"`
	Biome  string  `json:"biome"`
}

type PlotInfo struct {
	Pos   [2]int `json:"pos"`
	State string `json:"state"`
	Crop  string `json:"crop,omitempty"`
}

// UNDERGROUND (server -> client)
type UndergroundMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Blocks          []BlockCell `json:"blocks"`
}

type BlockCell struct {
	Pos   [3]int `json:"pos"`
	Block string `json:"block"`
}

// ACT (client -> server)
type ActMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id"`
	Kind            string `json:"kind"`
	Pos             []int  `json:"pos"`
	Tool            string `json:"tool,omitempty"`
	Crop            string `json:"crop,omitempty"`
}

// ACT_RESULT (server -> client)
type ActResultMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	ID              string  `json:"id"`
	Kind            string  `json:"kind"`
	OK              bool    `json:"ok"`
	Code            string  `json:"code,omitempty"`
	Message         string  `json:"message,omitempty"`
	Block           string  `json:"block,omitempty"`
	Drop            string  `json:"drop,omitempty"`
	Seconds         float64 `json:"seconds,omitempty"`
	Plot            string  `json:"plot,omitempty"`
	Item            string  `json:"item,omitempty"`
	Count           int     `json:"count,omitempty"`
}

// ERROR (server -> client) for requests that could not be routed.
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}
