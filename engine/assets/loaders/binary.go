package loaders

import (
	"fmt"
	"io"
	"os"

	"github.com/spaghettifunk/marionette/engine/core"
	"github.com/spaghettifunk/marionette/engine/resources"
)

const spirvMagic = 0x07230203

// BinaryLoader reads compiled SPIR-V stages (*.vert.spv, *.frag.spv).
type BinaryLoader struct{}

func (bl *BinaryLoader) Load(path string, params interface{}) (*resources.Resource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	if len(buf) < 4 || len(buf)%4 != 0 {
		return nil, fmt.Errorf("%w: %s: SPIR-V size %d is not a positive multiple of 4", core.ErrInvalidAsset, path, len(buf))
	}

	code := bytesToBytecode(buf)
	if code[0] != spirvMagic {
		return nil, fmt.Errorf("%w: %s: bad SPIR-V magic %#08x", core.ErrInvalidAsset, path, code[0])
	}

	name := AssetName(path)
	return &resources.Resource{
		Name:     name,
		FullPath: path,
		Type:     resources.ResourceTypeBinary,
		DataSize: uint64(len(buf)),
		Data:     &resources.ShaderResourceData{Name: name, SPIRV: code},
	}, nil
}

func (bl *BinaryLoader) Unload(*resources.Resource) error {
	return nil
}

func bytesToBytecode(b []byte) []uint32 {
	byteCode := make([]uint32, len(b)/4)
	for i := 0; i < len(byteCode); i++ {
		byteIndex := i * 4
		byteCode[i] = 0
		byteCode[i] |= uint32(b[byteIndex])
		byteCode[i] |= uint32(b[byteIndex+1]) << 8
		byteCode[i] |= uint32(b[byteIndex+2]) << 16
		byteCode[i] |= uint32(b[byteIndex+3]) << 24
	}

	return byteCode
}
