// SPDX-FileCopyrightText: Red Hat, Inc.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package qemuimg wraps the qemu-img tool for inspecting local image
// files.
package qemuimg

import (
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
)

// ImageInfo describes a local disk image.
type ImageInfo struct {
	// Format is the image format, "raw" or "qcow2".
	Format string `json:"format"`

	// Size is the virtual size of the image.
	Size uint64 `json:"virtual-size"`
}

// Info inspects filename with qemu-img.
func Info(filename string) (*ImageInfo, error) {
	out, err := run("qemu-img", "info", "--output", "json", filename)
	if err != nil {
		return nil, err
	}

	info := &ImageInfo{}
	if err := json.Unmarshal(out, info); err != nil {
		return nil, fmt.Errorf("cannot parse qemu-img info: %s", err)
	}

	return info, nil
}

func run(name string, arg ...string) ([]byte, error) {
	cmd := exec.Command(name, arg...)

	stdout, err := cmd.Output()
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return nil, fmt.Errorf("command %v failed rc=%d: %q",
				cmd.Args, ee.ExitCode(), ee.Stderr)
		}
		return nil, fmt.Errorf("command %v failed: %s", cmd.Args, err)
	}

	return stdout, nil
}
