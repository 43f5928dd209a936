package main

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/meridian/internal/server"
	"github.com/smallbiznis/meridian/pkg/db"
)

func main() {
	app := fx.New(
		db.Module,
		server.Module,
	)
	app.Run()
}
