package geom

// SignedAxis names one of the six faces of a voxel.
type SignedAxis uint8

const (
	NegX SignedAxis = iota
	PosX
	NegY
	PosY
	NegZ
	PosZ
)

var FaceAxes = [6]SignedAxis{NegX, PosX, NegY, PosY, NegZ, PosZ}

// Axis returns 0, 1 or 2.
func (a SignedAxis) Axis() int { return int(a) / 2 }

// Sign returns -1 or +1.
func (a SignedAxis) Sign() int {
	if a%2 == 0 {
		return -1
	}
	return 1
}

// Vector is the unit offset pointing out of the face.
func (a SignedAxis) Vector() Point3i {
	return Point3i{}.WithAxis(a.Axis(), a.Sign())
}

func (a SignedAxis) String() string {
	return [6]string{"-x", "+x", "-y", "+y", "-z", "+z"}[a]
}

// SignedAxisFromVector maps a unit lattice vector back to its face.
func SignedAxisFromVector(v Point3i) (SignedAxis, bool) {
	for _, a := range FaceAxes {
		if a.Vector() == v {
			return a, true
		}
	}
	return 0, false
}
