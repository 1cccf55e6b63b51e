// Command hydrate は水分補給リマインダーのAPIサーバー、配信ワーカー、
// マイグレーションを1つのバイナリで提供する。
//
//	hydrate [serve|worker|migrate [up|down [N]|version]|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/hydrate/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "hydrate: %v\n", err)
		os.Exit(1)
	}
}
