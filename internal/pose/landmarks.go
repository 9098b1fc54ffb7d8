// Package pose provides body landmark types, the pose history buffer and
// pose sources for movement-intention detection.
package pose

// LandmarkName identifies a tracked anatomical point.
type LandmarkName string

// Landmark vocabulary, following MediaPipe Pose naming.
// See: https://developers.google.com/mediapipe/solutions/vision/pose_landmarker
const (
	Nose          LandmarkName = "nose"
	LeftShoulder  LandmarkName = "left_shoulder"
	RightShoulder LandmarkName = "right_shoulder"
	LeftElbow     LandmarkName = "left_elbow"
	RightElbow    LandmarkName = "right_elbow"
	LeftWrist     LandmarkName = "left_wrist"
	RightWrist    LandmarkName = "right_wrist"
	LeftIndex     LandmarkName = "left_index"
	RightIndex    LandmarkName = "right_index"
	LeftHip       LandmarkName = "left_hip"
	RightHip      LandmarkName = "right_hip"
	LeftKnee      LandmarkName = "left_knee"
	RightKnee     LandmarkName = "right_knee"
	LeftAnkle     LandmarkName = "left_ankle"
	RightAnkle    LandmarkName = "right_ankle"
)

var vocabulary = map[LandmarkName]bool{
	Nose: true, LeftShoulder: true, RightShoulder: true, LeftElbow: true, RightElbow: true,
	LeftWrist: true, RightWrist: true, LeftIndex: true, RightIndex: true,
	LeftHip: true, RightHip: true, LeftKnee: true, RightKnee: true,
	LeftAnkle: true, RightAnkle: true,
}

// Valid reports whether n belongs to the landmark vocabulary.
func (n LandmarkName) Valid() bool {
	return vocabulary[n]
}

// TrackedLandmarks returns the default set of landmarks classified per frame,
// in the order results are emitted.
func TrackedLandmarks() []LandmarkName {
	return []LandmarkName{
		LeftWrist, RightWrist,
		LeftIndex, RightIndex,
		LeftElbow, RightElbow,
		Nose,
		LeftKnee, RightKnee,
		LeftAnkle, RightAnkle,
	}
}

// Landmark is a single detected point in image coordinates.
type Landmark struct {
	Name       LandmarkName `json:"name"`
	X          float64      `json:"x"`
	Y          float64      `json:"y"`
	Confidence float64      `json:"confidence"`
}

// Frame is one snapshot of all landmarks detected at a point in time.
type Frame struct {
	Landmarks []Landmark `json:"landmarks"`
	Timestamp int64      `json:"timestamp"` // Monotonic time in milliseconds
}

// Find returns the landmark with the given name.
func (f *Frame) Find(name LandmarkName) (Landmark, bool) {
	for _, l := range f.Landmarks {
		if l.Name == name {
			return l, true
		}
	}
	return Landmark{}, false
}
