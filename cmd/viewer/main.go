// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"github.com/relabs-tech/stateviz/internal/app"
	"github.com/relabs-tech/stateviz/internal/cli"
)

func main() {
	cli.Execute(cli.NewCommand("viewer", "Serve the marker and transform stream to browsers", app.RunViewer))
}
