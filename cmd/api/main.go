package main

import (
	"go.uber.org/fx"

	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/app"
)

func main() {
	fx.New(app.Module).Run()
}
