// Command mori-basic-plugin packages the basic engine as a Go plugin:
//
//	go build -buildmode=plugin -o libmori-basic.so ./cmd/mori-basic-plugin
//	mori run --set path=dylib://./libmori-basic.so
package main

import (
	"github.com/seantiz/mori/internal/backend"
	"github.com/seantiz/mori/internal/backend/basic"
	"github.com/seantiz/mori/internal/config"
)

// BackendEntry is looked up by the dylib loader.
func BackendEntry(s *config.Settings) (backend.Engine, error) {
	return basic.Entry(s)
}

func main() {}
