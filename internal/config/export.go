package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"
)

// ExportScript turns TOML configuration files into a shell script setting
// one KERKOAPP_JSON_<NN> variable per file, numbered in the order given,
// for deployments that only pass configuration through the environment.
func ExportScript(paths []string) (string, error) {
	var sb strings.Builder

	sb.WriteString("#!/bin/sh\n\n")

	for i, path := range paths {
		layer := make(map[string]any)
		if _, err := toml.DecodeFile(path, &layer); err != nil {
			return "", fmt.Errorf("config file %s: %w", path, err)
		}

		buf, err := json.Marshal(layer)
		if err != nil {
			return "", fmt.Errorf("encoding %s: %w", path, err)
		}

		name := fmt.Sprintf("%s%02d", envJSONPrefix, i+1)
		log.Printf("[CONFIG] %s => %s", path, name)

		fmt.Fprintf(&sb, "export %s=%s\n", name, shellQuote(string(buf)))
	}

	return sb.String(), nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
