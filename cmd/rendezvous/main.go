// Rendezvous — standalone signaling service.
//
// Hosts register sessions here and clients look them up to run the WebRTC
// handshake. No game traffic passes through this process; once a handshake
// completes, the peers talk directly.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/pterm/pterm"

	"github.com/1ureka/factorysync/internal/signaling"
	"github.com/1ureka/factorysync/internal/util"
)

var version = "dev"

func main() {
	addr := flag.String("addr", ":8090", "Listen address")
	debugMode := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debugMode {
		util.EnableDebug()
	}

	pterm.Info.Println(fmt.Sprintf("Factorysync rendezvous — v%s", version))
	pterm.Println()

	util.LogInfo("listening on %s", *addr)
	if err := http.ListenAndServe(*addr, signaling.NewServer().Handler()); err != nil {
		util.LogError("server stopped: %v", err)
		os.Exit(1)
	}
}
