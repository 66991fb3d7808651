// Command surefile scans a directory tree, stores fingerprint snapshots in
// a weave-encoded version store, and reports drift between versions.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/keshon/surefile/internal/cache"
	"github.com/keshon/surefile/internal/compare"
	"github.com/keshon/surefile/internal/config"
	"github.com/keshon/surefile/internal/fs"
	"github.com/keshon/surefile/internal/hash"
	"github.com/keshon/surefile/internal/scan"
	"github.com/keshon/surefile/internal/snapshot"
	"github.com/keshon/surefile/internal/util"
	"github.com/keshon/surefile/internal/weave"
)

var opts struct {
	file    string
	dir     string
	workers int
	hash    string
	noCache bool
	verbose bool
	version string
	tags    []string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "surefile",
		Short:         "File-tree integrity monitor with versioned snapshots",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.verbose {
				log.SetLevel(log.DebugLevel)
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.file, "file", "f", config.DefaultStoreFile, "weave store file")
	pf.StringVarP(&opts.dir, "dir", "d", ".", "directory to scan")
	pf.IntVar(&opts.workers, "workers", 0, "hashing workers (0 = one per CPU)")
	pf.StringVar(&opts.hash, "hash", config.DefaultHash, "digest algorithm (xxh3|sha256)")
	pf.BoolVar(&opts.noCache, "no-cache", false, "always rehash, ignore the digest cache")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
	pf.StringArrayVar(&opts.tags, "tag", nil, "key=value to associate with a stored version")

	root.AddCommand(newScanCmd(), newCheckCmd(), newSignoffCmd(), newListCmd(), newShowCmd())
	return root
}

func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Scan the tree, report drift against the latest version, and store the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := openStore()
			snap, cleanup, err := runScan()
			if err != nil {
				return err
			}
			defer cleanup()

			latest, err := store.LatestVersion()
			if err != nil {
				return err
			}
			if latest > 0 {
				old, err := store.Render(latest)
				if err != nil {
					return err
				}
				printReport(compare.Snapshots(old, snap))
			}

			delta, err := store.Append(snap, decodeTags())
			if err != nil {
				return err
			}
			fmt.Printf("stored version %d (%d inserted, %d deleted, %s entries)\n",
				delta.Version, delta.Inserted, delta.Deleted,
				humanize.Comma(int64(len(snap.Entries))))
			return nil
		},
	}
}

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Compare the live tree against a stored version without storing anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := openStore()
			version, err := store.ResolveVersion(opts.version)
			if err != nil {
				return err
			}
			old, err := store.Render(version)
			if err != nil {
				return err
			}
			snap, cleanup, err := runScan()
			if err != nil {
				return err
			}
			defer cleanup()

			fmt.Printf("check %s against version %d\n", opts.dir, version)
			printReport(compare.Snapshots(old, snap))
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.version, "version", "latest", "stored version to compare against (latest|prior|N|key=value)")
	return cmd
}

func newSignoffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signoff",
		Short: "Compare the two most recent stored versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := openStore()
			latest, err := store.LatestVersion()
			if err != nil {
				return err
			}
			if latest < 2 {
				return errors.Errorf("need at least two stored versions, have %d", latest)
			}
			prior, err := store.Render(latest - 1)
			if err != nil {
				return err
			}
			tip, err := store.Render(latest)
			if err != nil {
				return err
			}
			fmt.Printf("signoff %s: version %d -> %d\n", opts.file, latest-1, latest)
			printReport(compare.Snapshots(prior, tip))
			return nil
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			versions, err := openStore().ListVersions()
			if err != nil {
				return err
			}
			fmt.Println("vers | time captured       | tags")
			fmt.Println("-----+---------------------+------------------")
			for _, v := range versions {
				var tags []string
				for _, k := range util.SortedKeys(v.Tags) {
					tags = append(tags, k+"="+v.Tags[k])
				}
				fmt.Printf("%4d | %s | %s\n",
					v.Version, v.Time.Local().Format("2006-01-02 15:04:05"),
					strings.Join(tags, " "))
			}
			return nil
		},
	}
}

func newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print a stored version",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := openStore()
			version, err := store.ResolveVersion(opts.version)
			if err != nil {
				return err
			}
			snap, err := store.Render(version)
			if err != nil {
				return err
			}
			fmt.Printf("version %d, captured %s\n", snap.Version, snap.CapturedAt.Local().Format(time.RFC3339))
			for _, e := range snap.Entries {
				digest := e.Digest
				if digest == "" {
					digest = "-"
				}
				fmt.Printf("%-10s %-10s %s  %s\n",
					e.Kind, humanize.Bytes(uint64(e.Size)), digest, e.Path)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.version, "version", "latest", "version to print (latest|prior|N|key=value)")
	return cmd
}

func openStore() *weave.Store {
	return weave.Open(opts.file, fs.NewCompressedFS(fs.NewOSFS()))
}

// runScan builds the scanner from the flags and executes it. The returned
// cleanup closes the digest cache, if one was opened.
func runScan() (*snapshot.Snapshot, func(), error) {
	provider, err := hash.New(opts.hash)
	if err != nil {
		return nil, nil, err
	}

	scanner := &scan.Scanner{
		Root:     opts.dir,
		Provider: provider,
		Workers:  opts.workers,
		Progress: true,
	}

	cleanup := func() {}
	if !opts.noCache {
		c, err := cache.Open(filepath.Join(opts.dir, config.DefaultCacheFile))
		if err != nil {
			log.WithError(err).Warn("digest cache unavailable, rehashing everything")
		} else {
			scanner.Cache = c
			cleanup = func() { c.Close() }
		}
	}

	snap, err := scanner.Scan()
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return snap, cleanup, nil
}

// decodeTags turns repeated --tag key=value flags into the version tag map,
// defaulting name to the capture time and dir to the scanned directory.
func decodeTags() map[string]string {
	tags := make(map[string]string)
	for _, t := range opts.tags {
		fields := strings.SplitN(t, "=", 2)
		if len(fields) != 2 {
			log.WithField("tag", t).Warn("ignoring tag, want key=value")
			continue
		}
		tags[fields[0]] = fields[1]
	}
	if _, ok := tags["name"]; !ok {
		tags["name"] = time.Now().Format(time.RFC3339)
	}
	if _, ok := tags["dir"]; !ok {
		if abs, err := filepath.Abs(opts.dir); err == nil {
			tags["dir"] = abs
		}
	}
	return tags
}

func printReport(report compare.Report) {
	changed := report.Changed()
	if len(changed) == 0 {
		fmt.Println("no changes")
		return
	}
	for _, c := range changed {
		fmt.Printf("%-18s %s\n", c.Kind, c.Path)
	}
}
