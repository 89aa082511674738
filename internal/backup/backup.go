// Package backup exports stored networks to a checksummed archive file and
// imports them back.
package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/nvandessel/tensionflow/internal/network"
	"github.com/nvandessel/tensionflow/internal/tension"
)

// Archive is the payload of an archive file.
type Archive struct {
	CreatedAt time.Time       `json:"created_at"`
	Networks  []NetworkRecord `json:"networks"`
}

// NetworkRecord is one stored network in serializable form.
type NetworkRecord struct {
	Name      string             `json:"name"`
	Values    tension.Values     `json:"values"`
	Relations []network.Relation `json:"relations"`
}

func recordOf(n *network.Network) NetworkRecord {
	return NetworkRecord{Name: n.Name, Values: n.Values(), Relations: n.Relations()}
}

// Network rebuilds the stored network.
func (r NetworkRecord) Network() (*network.Network, error) {
	return network.FromRelations(r.Name, r.Values, r.Relations)
}

// Export writes the named networks (all networks when names is empty) to path.
func Export(ctx context.Context, store network.NetworkStore, path string, names ...string) (*Header, error) {
	if len(names) == 0 {
		summaries, err := store.ListNetworks(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list networks: %w", err)
		}
		for _, s := range summaries {
			names = append(names, s.Name)
		}
	}

	a := &Archive{
		CreatedAt: time.Now().UTC(),
		Networks:  make([]NetworkRecord, 0, len(names)),
	}
	for _, name := range names {
		n, err := store.LoadNetwork(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to export network: %w", err)
		}
		a.Networks = append(a.Networks, recordOf(n))
	}

	return Write(path, a)
}

// ImportMode controls how import handles networks that already exist.
type ImportMode string

const (
	// ImportMerge skips networks whose name is already stored (default).
	ImportMerge ImportMode = "merge"
	// ImportReplace overwrites networks whose name is already stored.
	ImportReplace ImportMode = "replace"
)

// ImportResult contains statistics about an import.
type ImportResult struct {
	Imported []string `json:"imported"`
	Skipped  []string `json:"skipped"`
}

// Import loads every network in the archive at path into store.
func Import(ctx context.Context, store network.NetworkStore, path string, mode ImportMode) (*ImportResult, error) {
	if mode != ImportMerge && mode != ImportReplace {
		return nil, fmt.Errorf("unknown import mode %q (use merge or replace)", mode)
	}

	a, err := Read(path)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Imported: []string{}, Skipped: []string{}}
	for _, rec := range a.Networks {
		if mode == ImportMerge {
			_, err := store.LoadNetwork(ctx, rec.Name)
			if err == nil {
				result.Skipped = append(result.Skipped, rec.Name)
				continue
			}
			if !errors.Is(err, network.ErrNotFound) {
				return nil, fmt.Errorf("failed to check existing network %q: %w", rec.Name, err)
			}
		}

		n, err := rec.Network()
		if err != nil {
			return nil, fmt.Errorf("invalid network %q in archive: %w", rec.Name, err)
		}
		if err := store.SaveNetwork(ctx, n); err != nil {
			return nil, fmt.Errorf("failed to import network %q: %w", rec.Name, err)
		}
		result.Imported = append(result.Imported, rec.Name)
	}

	return result, nil
}

// GeneratePath returns a timestamped archive filename in dir.
func GeneratePath(dir string) string {
	ts := time.Now().Format("20060102-150405")
	return filepath.Join(dir, fmt.Sprintf("networks-%s.tfa", ts))
}

// Rotate keeps the newest keepN archives in dir and deletes the rest.
// It returns the deleted paths.
func Rotate(dir string, keepN int) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read archive directory: %w", err)
	}

	var archives []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".tfa" {
			archives = append(archives, e.Name())
		}
	}

	// Timestamped names sort chronologically; newest first.
	sort.Sort(sort.Reverse(sort.StringSlice(archives)))

	var deleted []string
	if len(archives) > keepN {
		for _, name := range archives[keepN:] {
			path := filepath.Join(dir, name)
			if err := os.Remove(path); err != nil {
				return deleted, fmt.Errorf("failed to remove old archive %s: %w", name, err)
			}
			deleted = append(deleted, path)
		}
	}
	return deleted, nil
}
