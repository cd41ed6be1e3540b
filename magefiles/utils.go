package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/magefile/mage/mg"
)

type cmdOptions struct {
	args   []string
	env    []string
	dir    string
	stream bool
}

type cmdOption func(*cmdOptions)

func withArgs(args ...string) cmdOption {
	return func(o *cmdOptions) {
		o.args = args
	}
}

// withEnv adds KEY=value pairs on top of the current environment.
func withEnv(env ...string) cmdOption {
	return func(o *cmdOptions) {
		o.env = append(o.env, env...)
	}
}

func withDir(dir string) cmdOption {
	return func(o *cmdOptions) {
		o.dir = dir
	}
}

func withStream() cmdOption {
	return func(o *cmdOptions) {
		o.stream = true
	}
}

// hasTool reports whether name can be found on PATH.
func hasTool(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func executeCmd(command string, options ...cmdOption) (string, error) {
	opts := &cmdOptions{}
	for _, o := range options {
		o(opts)
	}

	fmt.Printf("Executing: %s %s %s\n", strings.Join(opts.env, " "), command, strings.Join(opts.args, " "))
	cmd := exec.Command(command, opts.args...)
	cmd.Dir = opts.dir
	if len(opts.env) > 0 {
		cmd.Env = append(os.Environ(), opts.env...)
	}

	var out bytes.Buffer
	cmd.Stdout, cmd.Stderr = &out, &out
	if mg.Verbose() || opts.stream {
		cmd.Stdout = io.MultiWriter(&out, os.Stdout)
		cmd.Stderr = io.MultiWriter(&out, os.Stderr)
	} else {
		defer func() {
			if cmd.ProcessState != nil && !cmd.ProcessState.Success() {
				fmt.Println("... failed command output:")
				fmt.Println(out.String())
			}
		}()
	}
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s: %w", command, err)
	}
	return out.String(), nil
}
