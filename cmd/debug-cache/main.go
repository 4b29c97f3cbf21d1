package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/EasterCompany/dex-voice-bridge/cache"
	"github.com/EasterCompany/dex-voice-bridge/config"
	"github.com/EasterCompany/dex-voice-bridge/notes"
)

func main() {
	cfg, err := config.LoadAllConfigs()
	if err != nil {
		log.Fatalf("Fatal error loading config: %v", err)
	}

	db, err := cache.New(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to initialize cache: %v", err)
	}
	if db == nil {
		log.Fatalf("No redis address configured in %s", cfg.Main.RedisConfig)
	}
	defer db.Close()

	ctx := context.Background()
	keys, err := db.Keys(ctx)
	if err != nil {
		log.Fatalf("Failed to get keys: %v", err)
	}

	for _, key := range keys {
		fmt.Printf("\n--- Key: %s ---\n", key)
		keyType, err := db.Type(ctx, key)
		if err != nil {
			log.Printf("Failed to get type for key %s: %v", key, err)
			continue
		}
		fmt.Printf("Type: %s\n", keyType)

		switch keyType {
		case "string":
			val, err := db.Get(ctx, key)
			if err != nil {
				log.Printf("Failed to get string value for key %s: %v", key, err)
				continue
			}
			printString(key, val)
		case "list":
			vals, err := db.LRange(ctx, key, 0, -1)
			if err != nil {
				log.Printf("Failed to get list value for key %s: %v", key, err)
				continue
			}
			fmt.Printf("Values:\n")
			for _, val := range vals {
				fmt.Printf("  - %s\n", strings.TrimRight(val, "\n"))
			}
		default:
			fmt.Println("Value: (unsupported type for printing)")
		}
	}
}

func printString(key, val string) {
	switch {
	case strings.Contains(key, ":recording:"):
		fmt.Printf("Value: <ogg, %d bytes>\n", len(val))
	case strings.Contains(key, ":notes:"):
		var list []notes.Note
		if err := json.Unmarshal([]byte(val), &list); err != nil {
			fmt.Printf("Value: %s\n", val)
			return
		}
		fmt.Printf("Notes:\n")
		for _, n := range list {
			fmt.Printf("  - [%s] %s: %s\n", n.Timestamp.Format("2006-01-02 15:04"), n.Category, n.Content)
		}
	default:
		fmt.Printf("Value: %s\n", val)
	}
}
