package vulkan

import "sync"

type LockGroup string

const (
	BufferManagement     LockGroup = "buffer_management"
	DescriptorManagement LockGroup = "descriptor_management"
	ImageManagement      LockGroup = "image_management"
	PipelineManagement   LockGroup = "pipeline_management"
)

// VulkanLockPool serialises access to externally synchronised Vulkan
// objects. Uploads may be recorded from worker goroutines while the render
// thread submits frames, and both end up on the same queue.
type VulkanLockPool struct {
	mu           sync.Mutex
	locks        map[LockGroup]*sync.Mutex
	queueMutexes map[uint32]*sync.Mutex
}

func NewVulkanLockPool() *VulkanLockPool {
	return &VulkanLockPool{
		locks:        make(map[LockGroup]*sync.Mutex),
		queueMutexes: make(map[uint32]*sync.Mutex),
	}
}

func (lp *VulkanLockPool) group(group LockGroup) *sync.Mutex {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	l, ok := lp.locks[group]
	if !ok {
		l = &sync.Mutex{}
		lp.locks[group] = l
	}
	return l
}

func (lp *VulkanLockPool) SafeCall(group LockGroup, fn func() error) error {
	l := lp.group(group)
	l.Lock()
	defer l.Unlock()
	return fn()
}

func (lp *VulkanLockPool) queue(index uint32) *sync.Mutex {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	l, ok := lp.queueMutexes[index]
	if !ok {
		l = &sync.Mutex{}
		lp.queueMutexes[index] = l
	}
	return l
}

// SafeQueueCall runs fn holding the lock of one queue family. Distinct
// families never block each other.
func (lp *VulkanLockPool) SafeQueueCall(queueFamilyIndex uint32, fn func() error) error {
	l := lp.queue(queueFamilyIndex)
	l.Lock()
	defer l.Unlock()
	return fn()
}
