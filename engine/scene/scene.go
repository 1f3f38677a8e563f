package scene

import (
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-splat/common"
	"github.com/Carmen-Shannon/oxy-splat/engine/camera"
	"github.com/Carmen-Shannon/oxy-splat/engine/loader"
	"github.com/Carmen-Shannon/oxy-splat/engine/splat"
)

// minChunkSplats is the smallest per-worker chunk worth handing to the compute pool.
const minChunkSplats = 4096

// DeviceHandle is an opaque device resource owned by the renderer and published
// on the scene after the first upload.
type DeviceHandle interface {
	// Label returns the debug label of the resource.
	Label() string

	// Release frees the device resource.
	Release()
}

// DeviceHandles groups the device resources associated with a scene. Every field is
// nil until the renderer has created its buffers.
type DeviceHandles struct {
	SplatBuffer     DeviceHandle
	SortingBuffer   DeviceHandle
	RenderBindGroup DeviceHandle
}

type scene struct {
	mu *sync.RWMutex

	name string
	cam  camera.Camera
	ldr  loader.Loader

	splats     []splat.Splat
	splatCount int

	handles DeviceHandles

	computePool    worker.DynamicWorkerPool
	computeWorkers int
}

// Scene owns the authoritative splat array, the camera, and the device handles the
// renderer publishes. The splat array keeps file order and is only replaced
// wholesale by a successful load. Thread-safe for concurrent access.
type Scene interface {
	// Name returns the scene's identifier.
	Name() string

	// Camera returns the scene's camera.
	Camera() camera.Camera

	// SetCamera replaces the scene's camera.
	//
	// Parameters:
	//   - cam: the new camera
	SetCamera(cam camera.Camera)

	// Load replaces the scene's splats with the contents of a file. On error the
	// previous splats are kept.
	//
	// Parameters:
	//   - path: the file to load
	//   - format: the file format, or loader.FormatAuto
	//
	// Returns:
	//   - error: error if reading or decoding fails
	Load(path string, format loader.Format) error

	// LoadBytes replaces the scene's splats with an in-memory splat file. On error
	// the previous splats are kept.
	//
	// Parameters:
	//   - data: the file contents
	//   - format: the file format, or loader.FormatAuto to sniff the data
	//
	// Returns:
	//   - error: error if decoding fails
	LoadBytes(data []byte, format loader.Format) error

	// SetSplats replaces the scene's splats with a copy of splats.
	//
	// Parameters:
	//   - splats: the new splats
	//
	// Returns:
	//   - error: error if splats exceeds the loader's cap
	SetSplats(splats []splat.Splat) error

	// Splats returns the scene's splat array. The slice is shared with the scene
	// and must be treated as read-only.
	Splats() []splat.Splat

	// SplatCount returns the number of splats in the scene.
	SplatCount() int

	// RefreshDepths recomputes every splat's cached view-space depth from snap.
	//
	// Parameters:
	//   - snap: the camera state for this frame
	RefreshDepths(snap camera.Snapshot)

	// Cull returns the indices of the splats inside the culling volume, in
	// ascending order. A splat is kept when its clip-space z lies in (0, 1) and its
	// clip-space x and y lie strictly within ±tolerance. With ndc set the clip
	// position is divided by w first.
	//
	// Parameters:
	//   - snap: the camera state for this frame
	//   - tolerance: the lateral culling bound
	//   - ndc: whether to apply the perspective divide before testing
	//
	// Returns:
	//   - []uint32: the visible splat indices
	Cull(snap camera.Snapshot, tolerance float32, ndc bool) []uint32

	// Handles returns the device handles published by the renderer.
	Handles() DeviceHandles

	// SetHandles publishes the renderer's device handles.
	//
	// Parameters:
	//   - h: the handles
	SetHandles(h DeviceHandles)

	// ClearHandles forgets the device handles. The resources are not released.
	ClearHandles()

	// Close stops the scene's compute workers.
	Close()
}

var _ Scene = &scene{}

// NewScene creates an empty Scene. A nil camera is replaced by camera.NewCamera().
//
// Parameters:
//   - name: the scene's identifier
//   - cam: the camera to render from
//   - options: functional options to configure the scene
//
// Returns:
//   - Scene: the newly created scene
func NewScene(name string, cam camera.Camera, options ...SceneBuilderOption) Scene {
	if cam == nil {
		cam = camera.NewCamera()
	}
	s := &scene{
		mu:             &sync.RWMutex{},
		name:           name,
		cam:            cam,
		computeWorkers: 1,
	}
	for _, option := range options {
		option(s)
	}
	if s.ldr == nil {
		s.ldr = loader.NewLoader()
	}

	// Initialize the compute pool after options so WithComputeWorkers can override the default.
	if s.computeWorkers > 1 {
		s.computePool = worker.NewDynamicWorkerPool(s.computeWorkers, 256, 1*time.Second)
	}
	return s
}

func (s *scene) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

func (s *scene) Camera() camera.Camera {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cam
}

func (s *scene) SetCamera(cam camera.Camera) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cam = cam
}

func (s *scene) Load(path string, format loader.Format) error {
	splats, err := s.ldr.Load(path, format)
	if err != nil {
		return fmt.Errorf("scene %q: %w", s.Name(), err)
	}
	s.replace(splats)
	return nil
}

func (s *scene) LoadBytes(data []byte, format loader.Format) error {
	splats, err := s.ldr.LoadBytes(data, format)
	if err != nil {
		return fmt.Errorf("scene %q: %w", s.Name(), err)
	}
	s.replace(splats)
	return nil
}

func (s *scene) SetSplats(splats []splat.Splat) error {
	if limit := s.ldr.MaxSplats(); limit > 0 && len(splats) > limit {
		return fmt.Errorf("scene %q: %w: %d > %d", s.Name(), loader.ErrTooManySplats, len(splats), limit)
	}
	owned := make([]splat.Splat, len(splats))
	copy(owned, splats)
	s.replace(owned)
	return nil
}

// replace swaps in a fully decoded splat slice.
func (s *scene) replace(splats []splat.Splat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.splats = splats
	s.splatCount = len(splats)
	common.Logf("[Scene] %s now holds %d splats", s.name, s.splatCount)
}

func (s *scene) Splats() []splat.Splat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.splats
}

func (s *scene) SplatCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.splatCount
}

func (s *scene) RefreshDepths(snap camera.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	splats := s.splats
	s.forEachChunk(len(splats), func(_, start, end int) {
		for i := start; i < end; i++ {
			splats[i].Depth = snap.ViewDepth(splats[i].Center)
		}
	})
}

func (s *scene) Cull(snap camera.Snapshot, tolerance float32, ndc bool) []uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	splats := s.splats

	chunks := s.chunkCount(len(splats))
	parts := make([][]uint32, chunks)
	s.forEachChunk(len(splats), func(chunk, start, end int) {
		part := make([]uint32, 0, end-start)
		for i := start; i < end; i++ {
			if visible(&snap, splats[i].Center, tolerance, ndc) {
				part = append(part, uint32(i))
			}
		}
		parts[chunk] = part
	})

	if chunks == 1 {
		return parts[0]
	}
	total := 0
	for _, p := range parts {
		total += len(p)
	}
	out := make([]uint32, 0, total)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// visible applies the clip-space culling test to one splat center.
func visible(snap *camera.Snapshot, center mgl32.Vec3, tolerance float32, ndc bool) bool {
	if !ndc {
		return common.InClipBounds(snap.ClipSpacePosition(center), tolerance)
	}
	clip := snap.ClipSpace4(center)
	if !(clip[3] > 0) {
		return false
	}
	return common.InClipBounds(clip.Vec3().Mul(1/clip[3]), tolerance)
}

func (s *scene) Handles() DeviceHandles {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handles
}

func (s *scene) SetHandles(h DeviceHandles) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handles = h
}

func (s *scene) ClearHandles() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handles = DeviceHandles{}
}

func (s *scene) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.computePool != nil {
		s.computePool.Stop()
		s.computePool = nil
	}
}

// chunkCount returns how many chunks forEachChunk splits n splats into.
// Caller must hold the mutex.
func (s *scene) chunkCount(n int) int {
	if s.computePool == nil || n < 2*minChunkSplats {
		return 1
	}
	return min(s.computeWorkers, n/minChunkSplats)
}

// forEachChunk calls fn over contiguous ranges covering [0, n). Ranges are handed
// to the compute pool when one is configured and n is large enough, and the call
// returns once every range is done. A WaitGroup provides the barrier since
// pool.Wait() only returns once workers go idle.
// Caller must hold the mutex.
func (s *scene) forEachChunk(n int, fn func(chunk, start, end int)) {
	chunks := s.chunkCount(n)
	if chunks == 1 {
		fn(0, 0, n)
		return
	}

	size := (n + chunks - 1) / chunks
	var wg sync.WaitGroup
	for chunk := range chunks {
		start := chunk * size
		end := min(start+size, n)
		wg.Add(1)
		s.computePool.SubmitTask(worker.Task{
			ID: chunk,
			Do: func() (any, error) {
				defer wg.Done()
				fn(chunk, start, end)
				return nil, nil
			},
		})
	}
	wg.Wait()
}
