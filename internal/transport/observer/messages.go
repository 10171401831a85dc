package observer

import (
	"context"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"voxeledit.ai/internal/observerproto"
	"voxeledit.ai/internal/sim/geom"
	"voxeledit.ai/internal/sim/terrain/brush"
	"voxeledit.ai/internal/sim/terrain/mesh"
	"voxeledit.ai/internal/sim/terrain/octree"
	"voxeledit.ai/internal/sim/terrain/store"
	"voxeledit.ai/internal/sim/terrain/timeline"
	"voxeledit.ai/internal/sim/voxel"
	"voxeledit.ai/internal/sim/world"
)

func keyArray(k store.ChunkKey) [3]int { return [3]int{k.X, k.Y, k.Z} }

func flatten(vs []mgl32.Vec3) []float32 {
	out := make([]float32, 0, 3*len(vs))
	for _, v := range vs {
		out = append(out, v[0], v[1], v[2])
	}
	return out
}

func meshDelta(kind string, key store.ChunkKey, id, replaced uint64, cm *mesh.ChunkMesh, geometry bool) observerproto.MeshDelta {
	d := observerproto.MeshDelta{Kind: kind, Key: keyArray(key), ID: id, ReplacedID: replaced}
	if cm == nil || cm.Mesh == nil {
		return d
	}
	d.Vertices = len(cm.Mesh.Positions)
	d.Triangles = cm.Mesh.NumTriangles()
	if geometry {
		d.Positions = flatten(cm.Mesh.Positions)
		d.Normals = flatten(cm.Mesh.Normals)
		d.Indices = append([]uint32(nil), cm.Mesh.Indices...)
		d.MaterialWeights = append([]uint32(nil), cm.MaterialWeights...)
	}
	return d
}

// meshesMsg lists every installed mesh as an upsert. Must run between
// frames.
func meshesMsg(w *world.World, geometry bool) observerproto.MeshesMsg {
	reg := w.Meshes()
	msg := observerproto.MeshesMsg{
		Type:            observerproto.TypeMeshes,
		ProtocolVersion: observerproto.Version,
		Frame:           w.Frame(),
		Meshes:          make([]observerproto.MeshDelta, 0, reg.Len()),
	}
	for _, k := range reg.Keys() {
		cm, _ := reg.Get(k)
		msg.Meshes = append(msg.Meshes, meshDelta(mesh.Upsert.String(), k, cm.ID, 0, cm, geometry))
	}
	return msg
}

func frameMsg(rep world.FrameReport, deltas []mesh.MeshDelta, geometry bool) observerproto.FrameMsg {
	msg := observerproto.FrameMsg{
		Type:            observerproto.TypeFrame,
		ProtocolVersion: observerproto.Version,
		Frame:           rep.Frame,
		Edited:          rep.Edited,
		Dirty:           rep.Dirty,
		Chunks:          rep.Chunks,
		CompressedBytes: rep.CompressedBytes,
		Digest:          rep.Digest,
		TotalMicros:     rep.Durations.Total.Microseconds(),
	}
	for _, k := range rep.Reclaimed {
		msg.Reclaimed = append(msg.Reclaimed, keyArray(k))
	}
	for _, a := range rep.Actions {
		msg.Actions = append(msg.Actions, observerproto.Action{Kind: string(a.Kind), ID: a.ID})
	}
	for _, d := range deltas {
		msg.Deltas = append(msg.Deltas, meshDelta(d.Kind.String(), d.Key, d.ID, d.ReplacedID, d.Mesh, geometry))
	}
	return msg
}

func parseSignedAxis(s string) (geom.SignedAxis, error) {
	for _, a := range geom.FaceAxes {
		if a.String() == s {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown face normal %q", s)
}

func (s *Server) voxelType(name string) (voxel.TypeID, error) {
	if name == "" {
		return voxel.EmptyType, nil
	}
	if s.cats == nil {
		return 0, fmt.Errorf("%w: %s", brush.ErrInvalidVoxelType, name)
	}
	t, ok := s.cats.Lookup(name)
	if !ok {
		return 0, fmt.Errorf("%w: %s", brush.ErrInvalidVoxelType, name)
	}
	return t, nil
}

// edit applies one EDIT in the next frame's tool phase.
func (s *Server) edit(ctx context.Context, m observerproto.EditMsg) observerproto.EditResultMsg {
	res := observerproto.EditResultMsg{
		Type:            observerproto.TypeEditResult,
		ProtocolVersion: observerproto.Version,
		Seq:             m.Seq,
	}
	fail := func(err error) observerproto.EditResultMsg {
		res.Error = err.Error()
		return res
	}

	typ, err := s.voxelType(m.VoxelType)
	if err != nil {
		return fail(err)
	}
	center := mgl32.Vec3{m.Center[0], m.Center[1], m.Center[2]}

	var apply func(w *world.World) error
	switch m.Op {
	case "terraform":
		op, err := brush.ParseOperation(m.Operation)
		if err != nil {
			return fail(err)
		}
		apply = func(w *world.World) error {
			return w.Terraform(op, geom.FloorPoint(center), int(m.Radius), typ)
		}
	case "fill_sphere":
		apply = func(w *world.World) error { return w.FillSphere(center, m.Radius, typ) }
	case "drag_face":
		normal, err := parseSignedAxis(m.Normal)
		if err != nil {
			return fail(err)
		}
		quad := geom.ExtentFromMinAndShape(
			geom.P(m.QuadMin[0], m.QuadMin[1], m.QuadMin[2]),
			geom.P(m.QuadShape[0], m.QuadShape[1], m.QuadShape[2]),
		)
		apply = func(w *world.World) error {
			e, err := w.DragFace(quad, normal, m.To, typ)
			if err != nil {
				return err
			}
			mn, sh := e.Min.ToArray(), e.Shape.ToArray()
			res.ExtentMin, res.ExtentShape = &mn, &sh
			return nil
		}
	case "finish", "undo", "redo":
		apply = func(w *world.World) error {
			var (
				id timeline.ActionID
				ok bool
			)
			switch m.Op {
			case "finish":
				id, ok = w.FinishEdit()
			case "undo":
				id, ok = w.Undo()
			default:
				id, ok = w.Redo()
			}
			if !ok {
				return fmt.Errorf("nothing to %s", m.Op)
			}
			res.ActionID = id.String()
			return nil
		}
	default:
		return fail(fmt.Errorf("unknown op %q", m.Op))
	}

	if err := s.world.Submit(ctx, apply); err != nil {
		return fail(err)
	}
	res.OK = true
	return res
}

func (s *Server) rayCast(ctx context.Context, m observerproto.RayCastMsg) observerproto.RayCastResultMsg {
	res := observerproto.RayCastResultMsg{
		Type:            observerproto.TypeRayCastResult,
		ProtocolVersion: observerproto.Version,
		Seq:             m.Seq,
	}
	r := octree.NewRay(mgl32.Vec3(m.Origin), mgl32.Vec3(m.Dir))
	var (
		hit octree.Impact
		ok  bool
	)
	if err := s.world.Do(ctx, func(w *world.World) error {
		hit, ok = w.RayCast(r, m.MaxT)
		return nil
	}); err != nil || !ok {
		return res
	}
	res.Hit = true
	res.Point = hit.Point.ToArray()
	res.T = hit.T
	res.Position = [3]float32(hit.Position)
	res.Normal = hit.Normal.ToArray()
	res.Chunk = keyArray(hit.Chunk)
	if f, ok := hit.Face(); ok {
		res.Face = f.String()
	}
	return res
}
