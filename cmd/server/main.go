// Command server boots the genome-browser request-pipeline backend,
// wiring the PacketEngine and its boot-time collaborators behind one
// POST route.
package main

import (
	"github.com/ensembl-io/genoverse-backend/internal/serverapp"
)

func main() {
	serverapp.Execute()
}
