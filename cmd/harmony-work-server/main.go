/*
 * Copyright (c) 2026, the Harmony project authors. All rights reserved.
 * See LICENSE for license information.
 */

package main

import (
	"fmt"
	"os"

	"github.com/nasa/harmony-core/pkg/workserver"
)

func main() {
	d, err := workserver.NewDaemon()
	if err != nil {
		fmt.Println("failed to new harmony work server, err: ", err.Error())
		os.Exit(1)
	}
	d.Start()
}
