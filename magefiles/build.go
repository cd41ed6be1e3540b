//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
)

const (
	binaryPath = "bin/marionette"
	shaderSrc  = "shaders"
	shaderDst  = "assets/shaders"
)

type Build mg.Namespace

// Compiles the GLSL sources in shaders/ to SPIR-V for the Vulkan backend.
// Skipped with a warning when glslc is not installed.
func (Build) Shaders() error {
	return buildShaders()
}

// Compiles shaders and builds the binary into bin/.
func (Build) Binary() error {
	mg.Deps(Build.Shaders)
	// glfw and vulkan are cgo bindings
	if _, err := executeCmd("go", withArgs("build", "-o", binaryPath, "."), withEnv("CGO_ENABLED=1"), withStream()); err != nil {
		return err
	}
	return nil
}

// Runs the unit tests of every package.
func Test() error {
	if _, err := executeCmd("go", withArgs("test", "./..."), withStream()); err != nil {
		return err
	}
	return nil
}

// Removes the binary and the compiled shaders.
func Clean() error {
	if err := os.RemoveAll(filepath.Dir(binaryPath)); err != nil {
		return err
	}
	spv, err := filepath.Glob(filepath.Join(shaderDst, "*.spv"))
	if err != nil {
		return err
	}
	for _, f := range spv {
		if err := os.Remove(f); err != nil {
			return err
		}
	}
	return nil
}

func buildShaders() error {
	if !hasTool("glslc") {
		fmt.Println("glslc not found, Vulkan shaders not compiled")
		return nil
	}
	sources, err := filepath.Glob(filepath.Join(shaderSrc, "*"))
	if err != nil {
		return err
	}
	for _, src := range sources {
		ext := filepath.Ext(src)
		if ext != ".vert" && ext != ".frag" {
			continue
		}
		// skinned.vert becomes assets/shaders/skinned.vert.spv
		out := filepath.Join(shaderDst, filepath.Base(src)+".spv")
		if _, err := executeCmd("glslc", withArgs(filepath.Base(src), "-o", filepath.Join("..", out)), withDir(shaderSrc)); err != nil {
			return err
		}
	}
	return nil
}
