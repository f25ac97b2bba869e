package migrations

import (
	"io/fs"
	"strings"
	"testing"
)

func TestMigrationsEmbedded(t *testing.T) {
	for name, fsys := range map[string]fs.FS{"events": EventsFS, "projections": ProjectionsFS} {
		entries, err := fs.ReadDir(fsys, name)
		if err != nil {
			t.Fatalf("read %s migrations: %v", name, err)
		}
		if len(entries) == 0 {
			t.Fatalf("expected %s migrations", name)
		}
		for _, entry := range entries {
			data, err := fs.ReadFile(fsys, name+"/"+entry.Name())
			if err != nil {
				t.Fatalf("read %s: %v", entry.Name(), err)
			}
			if !strings.Contains(string(data), "-- +migrate Up") {
				t.Fatalf("%s missing up marker", entry.Name())
			}
		}
	}
}
