// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/chatdesk/internal/config"
)

// Command: config [list|get|set|path]
//
// Examples:
//   chatdesk config list                       Show every key
//   chatdesk config get chat.test_mode         Show one key
//   chatdesk config set ui.theme light         Change one key in the file
//   chatdesk config set providers.openai_key sk-...

func newConfigCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.configList(cmd.OutOrStdout())
		},
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "Show every setting, credentials masked",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return e.configList(cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "get <key>",
			Short: "Show one setting",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := e.loadConfig()
				if err != nil {
					return err
				}
				value, err := cfg.Get(args[0])
				if err != nil {
					return unknownKey(args[0], err)
				}
				shown := maskIfSecret(args[0], fmt.Sprint(value))
				out := cmd.OutOrStdout()
				if e.jsonMode {
					return e.writeJSON(out, "config get", map[string]string{"key": args[0], "value": shown})
				}
				fmt.Fprintln(out, shown)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Change one setting in the config file",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				path, err := e.configSet(args[0], args[1])
				if err != nil {
					return err
				}
				return e.done(cmd.OutOrStdout(), "config set", args[0],
					fmt.Sprintf("Set %s in %s", args[0], path))
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the config file location",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				path, err := e.configFile()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if e.jsonMode {
					return e.writeJSON(out, "config path", map[string]string{"path": path})
				}
				fmt.Fprintln(out, path)
				return nil
			},
		},
	)
	return cmd
}

// configFile returns the file config set writes to.
func (e *env) configFile() (string, error) {
	if e.configPath != "" {
		return e.configPath, nil
	}
	return config.ConfigPathTOML()
}

func (e *env) configList(out io.Writer) error {
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	keys := config.GetAllKeys()
	sort.Strings(keys)

	values := make(map[string]string, len(keys))
	for _, key := range keys {
		value, err := cfg.Get(key)
		if err != nil {
			continue
		}
		values[key] = maskIfSecret(key, fmt.Sprint(value))
	}
	if e.jsonMode {
		return e.writeJSON(out, "config list", values)
	}
	for _, key := range keys {
		fmt.Fprintf(out, "%-34s %s\n", key, values[key])
	}
	return nil
}

// configSet updates key in the config file alone, so environment
// overrides in effect are not written back.
func (e *env) configSet(key, value string) (string, error) {
	path, err := e.configFile()
	if err != nil {
		return "", err
	}

	cfg := config.Default()
	if _, statErr := os.Stat(path); statErr == nil {
		load := config.LoadTOML
		if strings.HasSuffix(path, ".json") {
			load = config.LoadJSON
		}
		if err := load(cfg, path); err != nil {
			return "", err
		}
	} else if !errors.Is(statErr, os.ErrNotExist) {
		return "", statErr
	}

	if err := cfg.Set(key, value); err != nil {
		return "", unknownKey(key, err)
	}
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	if strings.HasSuffix(path, ".json") {
		err = config.SaveJSON(cfg, path)
	} else {
		err = config.SaveTOML(cfg, path)
	}
	return path, err
}

func unknownKey(key string, err error) error {
	return &ValidationError{
		Field:   "key",
		Value:   key,
		Reason:  err.Error(),
		Example: "chatdesk config list",
	}
}

// maskAPIKey shows a short fingerprint instead of the credential.
func maskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	hash := sha256.Sum256([]byte(key))
	return fmt.Sprintf("sha256:%x...", hash[:4])
}

// maskIfSecret masks the value if the key is a secret field.
func maskIfSecret(key, value string) string {
	if config.IsSecretKey(key) {
		return maskAPIKey(value)
	}
	return value
}
