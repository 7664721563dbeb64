// SPDX-FileCopyrightText: Red Hat, Inc.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/viper"

	"github.com/mwperina/sparse-stream/imageio"
	imageiohttp "github.com/mwperina/sparse-stream/imageio/http"
	"github.com/mwperina/sparse-stream/imageio/nbd"
	"github.com/mwperina/sparse-stream/qemuimg"
)

// connect opens a backend for a transfer URL or a local image file.
func connect(s string) (imageio.Backend, error) {
	ok, err := isFile(s)
	if err != nil {
		return nil, err
	}
	if ok {
		return connectFile(s)
	}
	return connectURL(s)
}

func isFile(s string) (bool, error) {
	_, err := os.Stat(s)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	// We cannot tell.
	return false, err
}

func connectFile(s string) (imageio.Backend, error) {
	info, err := qemuimg.Info(s)
	if err != nil {
		return nil, err
	}
	return nbd.ConnectFile(s, info.Format)
}

func connectURL(s string) (imageio.Backend, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "nbd", "nbd+unix":
		return nbd.Connect(s)
	case "https":
		return imageiohttp.Connect(s, &imageiohttp.Options{
			Secure:     viper.GetBool("secure"),
			CAFile:     viper.GetString("cafile"),
			BufferSize: viper.GetInt("buffer-size"),
		})
	case "file":
		return connectFile(u.Path)
	default:
		return nil, fmt.Errorf("unsupported URL: %s", s)
	}
}
