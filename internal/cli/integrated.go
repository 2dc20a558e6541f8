//go:build !nointegrated

package cli

import (
	"github.com/seantiz/mori/internal/backend"
	"github.com/seantiz/mori/internal/backend/basic"
)

func init() {
	backend.RegisterIntegrated(basic.Name, basic.Entry)
}
