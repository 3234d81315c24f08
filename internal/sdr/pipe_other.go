//go:build !linux

package sdr

import "os"

func growPipe(*os.File) {}
