package logging

import (
	"log"
	"os"

	"github.com/matrix-org/policyrelay/version"
)

func init() {
	log.SetOutput(os.Stdout)
	log.SetPrefix("[policyrelay] ")
	log.SetFlags(log.LstdFlags | log.Lshortfile | log.Lmicroseconds)

	log.Println("Version:", version.Revision)
}
