package metadata

type RenderBufferType int

const (
	/** @brief Buffer is use is unknown. Default, but usually invalid. */
	RENDERBUFFER_TYPE_UNKNOWN RenderBufferType = iota
	/** @brief Buffer is used for vertex data. */
	RENDERBUFFER_TYPE_VERTEX
	/** @brief Buffer is used for index data. */
	RENDERBUFFER_TYPE_INDEX
	/** @brief Buffer is used for uniform data. */
	RENDERBUFFER_TYPE_UNIFORM
	/** @brief Buffer is used for staging purposes (i.e. from host-visible to device-local memory) */
	RENDERBUFFER_TYPE_STAGING
	/**
	 * @brief Host-visible backing for per-frame data. Bindable both as a
	 * uniform buffer and as a read-only storage buffer with dynamic offsets.
	 */
	RENDERBUFFER_TYPE_TRANSIENT
)

func (t RenderBufferType) String() string {
	switch t {
	case RENDERBUFFER_TYPE_VERTEX:
		return "vertex"
	case RENDERBUFFER_TYPE_INDEX:
		return "index"
	case RENDERBUFFER_TYPE_UNIFORM:
		return "uniform"
	case RENDERBUFFER_TYPE_STAGING:
		return "staging"
	case RENDERBUFFER_TYPE_TRANSIENT:
		return "transient"
	}
	return "unknown"
}

type RenderBuffer struct {
	/** @brief The type of buffer, which typically determines its use. */
	RenderBufferType RenderBufferType
	/** @brief The total size of the buffer in bytes. */
	TotalSize uint64
	// Label shows up in graphics debuggers.
	Label string
	/** @brief Contains internal data for the renderer-API-specific buffer. */
	InternalData interface{}
}
