// Copyright 2026 The Geocoder Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/jairoivo/geocoder/cmd"
)

var Version = "development"

func main() {
	cmd.Execute(Version)
}
