package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/peterbourgon/mergemap"
	log "github.com/sirupsen/logrus"
)

const (
	envPrefix      = "KERKOAPP_"
	envJSONPrefix  = envPrefix + "JSON_"
	envConfigFiles = envPrefix + "CONFIG_FILES"
	envNesting     = "__"
)

// Load reads a .env file if there is one, then builds the configuration
// from the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	return FromEnv(os.Environ())
}

// FromEnv builds the configuration from "KEY=value" pairs. Layers, each
// overriding the previous ones:
//   - Defaults()
//   - TOML files listed in KERKOAPP_CONFIG_FILES
//   - JSON documents in KERKOAPP_JSON_* variables, in sorted name order
//   - KERKOAPP_<KEY> and KERKOAPP_<SECTION>__<KEY> variables
//   - Development() or Production(), depending on debug
func FromEnv(environ []string) (*Config, error) {
	env := make(map[string]string)
	for _, keyval := range environ {
		if key, val, ok := strings.Cut(keyval, "="); ok {
			env[key] = val
		}
	}

	merged := Defaults()

	layers, err := fileLayers(env[envConfigFiles])
	if err != nil {
		return nil, err
	}

	jsonLayers, err := jsonEnvLayers(env)
	if err != nil {
		return nil, err
	}

	layers = append(layers, jsonLayers...)
	layers = append(layers, scalarEnvLayer(env))

	for _, layer := range layers {
		merged = mergemap.Merge(merged, layer)
	}

	var debug bool
	if err := mapstructure.WeakDecode(merged["debug"], &debug); err != nil {
		return nil, fmt.Errorf("debug: %w", err)
	}

	if debug {
		merged = mergemap.Merge(merged, Development())
	} else {
		merged = mergemap.Merge(merged, Production())
	}

	cfg, err := decode(merged)
	if err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func fileLayers(list string) ([]map[string]any, error) {
	var layers []map[string]any

	paths := strings.FieldsFunc(list, func(r rune) bool { return r == ';' || r == ',' })

	for _, path := range paths {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}

		log.Printf("[CONFIG] loading %s ...", path)

		layer := make(map[string]any)
		if _, err := toml.DecodeFile(path, &layer); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}

		layers = append(layers, layer)
	}

	return layers, nil
}

func jsonEnvLayers(env map[string]string) ([]map[string]any, error) {
	var keys []string

	for key := range env {
		if strings.HasPrefix(key, envJSONPrefix) {
			keys = append(keys, key)
		}
	}

	sort.Strings(keys)

	var layers []map[string]any
	var errs []error

	for _, key := range keys {
		val := env[key]
		if val == "" {
			continue
		}

		log.Printf("[CONFIG] loading %s ...", key)

		layer := make(map[string]any)
		if err := json.Unmarshal([]byte(val), &layer); err != nil {
			errs = append(errs, fmt.Errorf("decoding %s: %w", key, err))
			continue
		}

		layers = append(layers, layer)
	}

	return layers, errors.Join(errs...)
}

// scalarEnvLayer turns KERKOAPP_ZOTERO__API_KEY=x into {"zotero": {"api_key": "x"}}.
func scalarEnvLayer(env map[string]string) map[string]any {
	layer := make(map[string]any)

	for key, val := range env {
		if !strings.HasPrefix(key, envPrefix) || strings.HasPrefix(key, envJSONPrefix) || key == envConfigFiles {
			continue
		}

		path := strings.Split(strings.ToLower(strings.TrimPrefix(key, envPrefix)), envNesting)

		node := layer
		for _, part := range path[:len(path)-1] {
			child, ok := node[part].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[part] = child
			}
			node = child
		}

		node[path[len(path)-1]] = val
	}

	return layer
}

func decode(merged map[string]any) (*Config, error) {
	var cfg Config

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, err
	}

	if err := dec.Decode(merged); err != nil {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}

	return &cfg, nil
}
