//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Compiles shaders and runs the testbed with marionette.toml.
func (Run) Engine() error {
	if err := buildShaders(); err != nil {
		return err
	}
	fmt.Println("Run engine...")
	if _, err := executeCmd("go", withArgs("run", ".", "-config", "marionette.toml"), withStream()); err != nil {
		return err
	}
	return nil
}

// Runs 600 frames on the in-memory device, no window or GPU needed.
func (Run) Headless() error {
	if _, err := executeCmd("go", withArgs("run", ".", "-headless", "-frames", "600"), withStream()); err != nil {
		return err
	}
	return nil
}
