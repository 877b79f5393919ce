package cmd

import (
	_ "quickflare/cmd/root"
	_ "quickflare/cmd/tunnel"
)
