/*
 * Copyright (c) 2026, the Harmony project authors. All rights reserved.
 * See LICENSE for license information.
 */

package main

import (
	"fmt"
	"os"

	"github.com/nasa/harmony-core/pkg/worker"
)

func main() {
	d, err := worker.NewDaemon()
	if err != nil {
		fmt.Println("failed to new harmony worker, err: ", err.Error())
		os.Exit(1)
	}
	d.Start()
}
