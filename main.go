package main

import (
	"context"

	"github.com/harrisonrobin/vaultsync/pkg/cli"
)

func main() {
	cli.Execute(context.Background())
}
