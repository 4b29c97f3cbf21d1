package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"

	"github.com/EasterCompany/dex-voice-bridge/config"
	"github.com/spf13/cobra"
)

// ANSI color codes for formatted output
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
)

// configSchema is the struct a config file must decode into.
type configSchema struct {
	FileName string
	Path     string
	Model    any
}

func newVerifyConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify-config",
		Short: "Check the config files for unknown fields and missing values",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := config.Dir()
			if err != nil {
				return err
			}
			return verifyConfig(cmd.OutOrStdout(), dir)
		},
	}
}

var errConfigInvalid = errors.New("some issues were found in the configuration")

func verifyConfig(out io.Writer, dir string) error {
	fmt.Fprintf(out, "%s--- Voice Bridge Config Verifier ---%s\n", colorBlue, colorReset)

	schemas := []configSchema{
		{FileName: "config.json", Model: config.MainConfig{}},
		{FileName: "discord.json", Model: config.DiscordConfig{}},
		{FileName: "bridge.json", Model: config.BridgeConfig{}},
		{FileName: "realtime.json", Model: config.RealtimeConfig{}},
		{FileName: "redis.json", Model: config.RedisConfig{}},
	}

	ok := true
	for _, schema := range schemas {
		schema.Path = filepath.Join(dir, schema.FileName)
		fmt.Fprintf(out, "\nVerifying %s'%s'%s...\n", colorBlue, schema.FileName, colorReset)
		if !verifyConfigFile(out, schema) {
			ok = false
		}
	}

	fmt.Fprintln(out, "\n--------------------------")
	if !ok {
		fmt.Fprintf(out, "%s❌ Some issues were found in the configuration.%s\n", colorRed, colorReset)
		return errConfigInvalid
	}
	fmt.Fprintf(out, "%s✅ All configuration files seem correct.%s\n", colorGreen, colorReset)
	return nil
}

func verifyConfigFile(out io.Writer, schema configSchema) bool {
	content, err := os.ReadFile(schema.Path)
	if err != nil {
		fmt.Fprintf(out, "  %s[FAIL]%s File not found or not readable: %v\n", colorRed, colorReset, err)
		return false
	}

	decoder := json.NewDecoder(bytes.NewReader(content))
	decoder.DisallowUnknownFields()

	modelType := reflect.TypeOf(schema.Model)
	instance := reflect.New(modelType)
	if err := decoder.Decode(instance.Interface()); err != nil {
		fmt.Fprintf(out, "  %s[FAIL]%s JSON is invalid or contains unexpected fields: %v\n", colorRed, colorReset, err)
		return false
	}
	fmt.Fprintf(out, "  %s[OK]%s JSON is valid and all fields are recognized.\n", colorGreen, colorReset)

	// Empty values are a warning; defaults fill most of them at load time.
	val := instance.Elem()
	var empty []string
	for i := 0; i < val.NumField(); i++ {
		if val.Field(i).IsZero() {
			empty = append(empty, modelType.Field(i).Tag.Get("json"))
		}
	}
	if len(empty) > 0 {
		fmt.Fprintf(out, "  %s[WARN]%s Empty or default values: %v\n", colorYellow, colorReset, empty)
	}
	return true
}
