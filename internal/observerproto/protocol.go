// Package observerproto is the JSON wire format of the observer stream.
package observerproto

// Version is the observer protocol version.
const Version = "0.2"

const (
	TypeSubscribe     = "SUBSCRIBE"
	TypeFrame         = "FRAME"
	TypeMeshes        = "MESHES"
	TypeEdit          = "EDIT"
	TypeEditResult    = "EDIT_RESULT"
	TypeRayCast       = "RAYCAST"
	TypeRayCastResult = "RAYCAST_RESULT"
)

// Base is decoded first to route a message by its type.
type Base struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
}

// Client -> Server. First message on the observer WS connection.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	// IncludeGeometry asks for mesh vertex data in deltas; without it only
	// ids and counts are sent.
	IncludeGeometry bool `json:"include_geometry"`
	MaxQueue        int  `json:"max_queue,omitempty"`
}

// HTTP response for GET /v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string      `json:"protocol_version"`
	WorldID         string      `json:"world_id"`
	Frame           uint64      `json:"frame"`
	WorldParams     WorldParams `json:"world_params"`
	Palette         []string    `json:"palette"`
	Chunks          int         `json:"chunks"`
	Meshes          int         `json:"meshes"`
	UndoLen         int         `json:"undo_len"`
	RedoLen         int         `json:"redo_len"`
}

type WorldParams struct {
	FrameRateHz    int    `json:"frame_rate_hz"`
	ChunkEdge      int    `json:"chunk_edge"`
	Codec          string `json:"codec"`
	MaxUndoHistory int    `json:"max_undo_history"`
}

// Server -> Client. Every installed mesh, sent once after SUBSCRIBE so that
// later FRAME deltas apply on top of it.
type MeshesMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Frame           uint64      `json:"frame"`
	Meshes          []MeshDelta `json:"meshes"`
}

// Server -> Client. Sent for every frame that changed something.
type FrameMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Frame           uint64 `json:"frame"`

	Edited          int      `json:"edited"`
	Dirty           int      `json:"dirty"`
	Reclaimed       [][3]int `json:"reclaimed,omitempty"`
	Chunks          int      `json:"chunks"`
	CompressedBytes int64    `json:"compressed_bytes"`
	Digest          string   `json:"digest,omitempty"`
	Actions         []Action `json:"actions,omitempty"`
	TotalMicros     int64    `json:"total_us"`

	Deltas []MeshDelta `json:"deltas,omitempty"`
}

type Action struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

type MeshDelta struct {
	Kind       string `json:"kind"`
	Key        [3]int `json:"key"`
	ID         uint64 `json:"id"`
	ReplacedID uint64 `json:"replaced_id,omitempty"`
	Vertices   int    `json:"vertices,omitempty"`
	Triangles  int    `json:"triangles,omitempty"`

	// Flattened xyz triples; present only with IncludeGeometry.
	Positions       []float32 `json:"positions,omitempty"`
	Normals         []float32 `json:"normals,omitempty"`
	Indices         []uint32  `json:"indices,omitempty"`
	MaterialWeights []uint32  `json:"material_weights,omitempty"`
}

// Client -> Server. One editing operation; applied in the next frame's tool
// phase.
type EditMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Seq             uint64 `json:"seq"`

	// Op is one of terraform, fill_sphere, drag_face, finish, undo, redo.
	Op string `json:"op"`

	// terraform: make_solid or remove_solid.
	Operation string     `json:"operation,omitempty"`
	Center    [3]float32 `json:"center,omitempty"`
	Radius    float32    `json:"radius,omitempty"`
	VoxelType string     `json:"voxel_type,omitempty"`

	// drag_face
	QuadMin   [3]int `json:"quad_min,omitempty"`
	QuadShape [3]int `json:"quad_shape,omitempty"`
	Normal    string `json:"normal,omitempty"`
	To        int    `json:"to,omitempty"`
}

type EditResultMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Seq             uint64 `json:"seq"`
	OK              bool   `json:"ok"`
	Error           string `json:"error,omitempty"`
	ActionID        string `json:"action_id,omitempty"`
	// Extent touched by drag_face.
	ExtentMin   *[3]int `json:"extent_min,omitempty"`
	ExtentShape *[3]int `json:"extent_shape,omitempty"`
}

// Client -> Server. Picks the first solid voxel along a ray.
type RayCastMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	Seq             uint64     `json:"seq"`
	Origin          [3]float32 `json:"origin"`
	Dir             [3]float32 `json:"dir"`
	MaxT            float32    `json:"max_t,omitempty"`
}

type RayCastResultMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	Seq             uint64     `json:"seq"`
	Hit             bool       `json:"hit"`
	Point           [3]int     `json:"point,omitempty"`
	T               float32    `json:"t,omitempty"`
	Position        [3]float32 `json:"position,omitempty"`
	Normal          [3]int     `json:"normal,omitempty"`
	Chunk           [3]int     `json:"chunk,omitempty"`
	Face            string     `json:"face,omitempty"`
}
