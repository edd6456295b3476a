package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/hitoshi/stampcard/internal/app"
)

func main() {
	// ローカル開発時のみ.envを読み込む（本番は環境変数を直接渡す）
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "stampcard: %v\n", err)
		os.Exit(1)
	}
}
