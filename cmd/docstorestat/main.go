// Copyright 2024 The docstore Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command docstorestat inspects and manually compacts a docstore directory.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/solarisdb/docstore/golibs/config"
	"github.com/solarisdb/docstore/golibs/logging"
	"github.com/solarisdb/docstore/pkg/store"
)

// cliConfig is loaded via golibs/config the same way a service config would
// be: a config file first, then DOCSTORE_-prefixed environment overrides.
type cliConfig struct {
	Dir                  string
	MaxDiskBloatFactor   float64
	MaxBucketSpread      float64
	GlobalBloatThreshold float64
}

func defaultCLIConfig() cliConfig {
	d := store.DefaultConfig()
	return cliConfig{
		MaxDiskBloatFactor:   d.MaxDiskBloatFactor,
		MaxBucketSpread:      d.MaxBucketSpread,
		GlobalBloatThreshold: d.GlobalBloatThreshold,
	}
}

func loadConfig(cfgFile string) (cliConfig, error) {
	enr := config.NewEnricher(defaultCLIConfig())
	if err := enr.LoadFromFile(cfgFile); err != nil {
		return cliConfig{}, fmt.Errorf("load config: %w", err)
	}
	if err := enr.ApplyEnvVariables("DOCSTORE", "_"); err != nil {
		return cliConfig{}, fmt.Errorf("apply env overrides: %w", err)
	}
	return enr.Value(), nil
}

func openStore(cc cliConfig, dirFlag string, readOnly bool) (*store.Manager, error) {
	dir := cc.Dir
	if dirFlag != "" {
		dir = dirFlag
	}
	if dir == "" {
		return nil, fmt.Errorf("--dir is required")
	}
	cfg := store.DefaultConfig()
	cfg.Dir = dir
	cfg.ReadOnly = readOnly
	cfg.MaxDiskBloatFactor = cc.MaxDiskBloatFactor
	cfg.MaxBucketSpread = cc.MaxBucketSpread
	cfg.GlobalBloatThreshold = cc.GlobalBloatThreshold
	return store.Open(cfg)
}

func main() {
	var cfgFile, dir string

	root := &cobra.Command{
		Use:   "docstorestat",
		Short: "Inspect and compact a docstore chunk-file directory",
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML or JSON config file")
	root.PersistentFlags().StringVar(&dir, "dir", "", "chunk-file directory (overrides the config file)")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Print per-file bloat, lid count, and the current compaction gain estimate",
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := loadConfig(cfgFile)
			if err != nil {
				return err
			}
			m, err := openStore(cc, dir, true)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer func() { _ = m.Close() }()

			s := m.Stats()
			fmt.Printf("lids: %d   last_sync_token: %d   compaction_gain: %d bytes\n", s.LidCount, s.LastSyncToken, s.CompactionGain)
			for _, f := range s.Files {
				active := ""
				if f.Active {
					active = " (active)"
				}
				fmt.Printf("  file %020d%s  chunks=%d  footprint=%d  bloat=%d\n", f.NameID, active, f.NumChunks, f.DiskFootprint, f.DiskBloat)
			}
			return nil
		},
	}

	var syncToken uint64
	compactCmd := &cobra.Command{
		Use:   "compact",
		Short: "Run one round of worst-file compaction, then flush up to --sync-token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := loadConfig(cfgFile)
			if err != nil {
				return err
			}
			m, err := openStore(cc, dir, false)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer func() { _ = m.Close() }()

			gain := m.CompactionGain()
			if gain == 0 {
				fmt.Println("no file qualifies for compaction")
				return nil
			}
			fmt.Printf("estimated gain: %d bytes, compacting...\n", gain)
			return m.Compact(syncToken)
		},
	}
	compactCmd.Flags().Uint64Var(&syncToken, "sync-token", 0, "serial to flush up to once compaction completes")

	root.AddCommand(statsCmd, compactCmd)

	logging.SetLevel(logging.INFO)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
