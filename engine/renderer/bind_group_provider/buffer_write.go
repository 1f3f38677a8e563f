package bind_group_provider

import "github.com/cogentcore/webgpu/wgpu"

// BufferSlot addresses the buffer bound at one binding of a provider.
type BufferSlot struct {
	Provider BindGroupProvider
	Binding  int
}

// Buffer resolves the slot, returning nil if the provider has no buffer there.
func (s BufferSlot) Buffer() *wgpu.Buffer {
	if s.Provider == nil {
		return nil
	}
	return s.Provider.Buffer(s.Binding)
}

// BufferWrite describes a single queue write targeting a binding of a provider at a
// byte offset.
type BufferWrite struct {
	Provider BindGroupProvider
	Binding  int
	Offset   uint64
	Data     []byte
}
