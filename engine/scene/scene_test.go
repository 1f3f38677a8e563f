package scene

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-splat/engine/camera"
	"github.com/Carmen-Shannon/oxy-splat/engine/loader"
	"github.com/Carmen-Shannon/oxy-splat/engine/splat"
)

func splatsAt(centers ...mgl32.Vec3) []splat.Splat {
	out := make([]splat.Splat, len(centers))
	for i, c := range centers {
		out[i] = splat.Default()
		out[i].Center = c
	}
	return out
}

func identitySnapshot() camera.Snapshot {
	return camera.NewSnapshot(mgl32.Ident4(), mgl32.Ident4(), 0.1, 100)
}

type fakeHandle struct{ label string }

func (h *fakeHandle) Label() string { return h.label }
func (h *fakeHandle) Release()      {}

func TestNewSceneDefaults(t *testing.T) {
	s := NewScene("empty", nil)
	defer s.Close()

	assert.Equal(t, "empty", s.Name())
	assert.NotNil(t, s.Camera())
	assert.Zero(t, s.SplatCount())
	assert.Empty(t, s.Splats())
	assert.Equal(t, DeviceHandles{}, s.Handles())
}

func TestCullIdentityCamera(t *testing.T) {
	nan := float32(math.NaN())
	s := NewScene("cull", nil, WithSplats(splatsAt(
		mgl32.Vec3{0, 0, 0.5},        // center: kept
		mgl32.Vec3{0, 0, 0},          // z on the near bound
		mgl32.Vec3{0, 0, 1},          // z on the far bound
		mgl32.Vec3{0.05, -0.05, 0.5}, // inside tolerance
		mgl32.Vec3{0.1, 0, 0.5},      // x on the tolerance bound
		mgl32.Vec3{0, -0.2, 0.5},     // y outside
		mgl32.Vec3{nan, 0, 0.5},      // NaN
		mgl32.Vec3{0, 0, 0.999},      // kept
	)))
	defer s.Close()

	got := s.Cull(identitySnapshot(), 0.1, false)
	assert.Equal(t, []uint32{0, 3, 7}, got)
}

func TestCullEmptyScene(t *testing.T) {
	s := NewScene("none", nil)
	defer s.Close()
	assert.Empty(t, s.Cull(identitySnapshot(), 0.1, false))
}

func TestCullNDC(t *testing.T) {
	// The default camera sits at (0, 0, 5). The origin projects to a raw clip z
	// well above 1 but an NDC z inside (0, 1).
	s := NewScene("ndc", camera.NewCamera(), WithSplats(splatsAt(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 0, 10})))
	defer s.Close()
	snap := s.Camera().Snapshot()

	assert.Empty(t, s.Cull(snap, 1, false))
	assert.Equal(t, []uint32{0}, s.Cull(snap, 1, true))
}

func TestRefreshDepths(t *testing.T) {
	s := NewScene("depth", nil, WithSplats(splatsAt(mgl32.Vec3{1, 2, 3}, mgl32.Vec3{0, 0, -4})))
	defer s.Close()

	s.RefreshDepths(identitySnapshot())
	splats := s.Splats()
	assert.InDelta(t, -3, splats[0].Depth, 1e-6)
	assert.InDelta(t, 4, splats[1].Depth, 1e-6)

	cam := camera.NewCamera()
	s.RefreshDepths(cam.Snapshot())
	assert.InDelta(t, 2, s.Splats()[0].Depth, 1e-5)
	assert.InDelta(t, 9, s.Splats()[1].Depth, 1e-5)
}

func TestWorkersMatchSingleThreaded(t *testing.T) {
	r := rand.New(rand.NewPCG(5, 6))
	centers := make([]mgl32.Vec3, 20000)
	for i := range centers {
		centers[i] = mgl32.Vec3{r.Float32()*4 - 2, r.Float32()*4 - 2, r.Float32()*8 - 4}
	}
	data := splatsAt(centers...)

	single := NewScene("single", nil, WithSplats(data))
	defer single.Close()
	multi := NewScene("multi", nil, WithSplats(data), WithComputeWorkers(4))
	defer multi.Close()

	snap := camera.NewCamera().Snapshot()
	single.RefreshDepths(snap)
	multi.RefreshDepths(snap)
	if diff := cmp.Diff(single.Splats(), multi.Splats()); diff != "" {
		t.Errorf("depth mismatch (-single +multi):\n%s", diff)
	}

	want := single.Cull(snap, 1, true)
	got := multi.Cull(snap, 1, true)
	require.NotEmpty(t, want)
	assert.Equal(t, want, got)
}

func TestLoadIsAtomic(t *testing.T) {
	initial := splatsAt(mgl32.Vec3{1, 1, 1}, mgl32.Vec3{2, 2, 2})
	s := NewScene("atomic", nil, WithSplats(initial))
	defer s.Close()

	err := s.LoadBytes(make([]byte, splat.RawStride+3), loader.FormatRaw)
	require.ErrorIs(t, err, loader.ErrInvalidSplatSize)
	assert.Equal(t, 2, s.SplatCount())
	assert.Equal(t, initial, s.Splats())

	err = s.Load("does-not-exist.splat", loader.FormatAuto)
	require.Error(t, err)
	assert.Equal(t, 2, s.SplatCount())
}

func TestLoadOverwrites(t *testing.T) {
	s := NewScene("overwrite", nil, WithSplats(splatsAt(mgl32.Vec3{1, 1, 1}, mgl32.Vec3{2, 2, 2})))
	defer s.Close()

	replacement := splatsAt(mgl32.Vec3{0, 0, 7})
	require.NoError(t, s.LoadBytes(loader.EncodeRaw(replacement), loader.FormatRaw))
	assert.Equal(t, 1, s.SplatCount())
	assert.Equal(t, replacement, s.Splats())
}

func TestSetSplatsCap(t *testing.T) {
	s := NewScene("cap", nil, WithLoader(loader.NewLoader(loader.WithMaxSplats(1))))
	defer s.Close()

	require.NoError(t, s.SetSplats(splatsAt(mgl32.Vec3{})))
	err := s.SetSplats(splatsAt(mgl32.Vec3{}, mgl32.Vec3{1, 0, 0}))
	require.ErrorIs(t, err, loader.ErrTooManySplats)
	assert.Equal(t, 1, s.SplatCount())
}

func TestSetSplatsCopies(t *testing.T) {
	s := NewScene("copy", nil)
	defer s.Close()

	in := splatsAt(mgl32.Vec3{1, 2, 3})
	require.NoError(t, s.SetSplats(in))
	in[0].Center = mgl32.Vec3{9, 9, 9}
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, s.Splats()[0].Center)
}

func TestHandles(t *testing.T) {
	s := NewScene("handles", nil)
	defer s.Close()

	h := DeviceHandles{
		SplatBuffer:     &fakeHandle{"entries"},
		SortingBuffer:   &fakeHandle{"sorting"},
		RenderBindGroup: &fakeHandle{"render"},
	}
	s.SetHandles(h)
	assert.Equal(t, "sorting", s.Handles().SortingBuffer.Label())

	s.ClearHandles()
	assert.Nil(t, s.Handles().SplatBuffer)
	assert.Nil(t, s.Handles().SortingBuffer)
	assert.Nil(t, s.Handles().RenderBindGroup)
}
